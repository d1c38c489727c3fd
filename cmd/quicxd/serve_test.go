package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	goevents "github.com/docker/go-events"
	"github.com/stretchr/testify/require"

	"github.com/caozhiyi/quicx-go/config"
	"github.com/caozhiyi/quicx-go/events"
)

func TestResolveConfigurationRequiresAPath(t *testing.T) {
	_, err := resolveConfiguration(nil)
	require.Error(t, err)
}

func TestResolveConfigurationReadsArgPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quicxd.yml")
	require.NoError(t, os.WriteFile(path, []byte("version: 0.1\nendpoint:\n  addr: 127.0.0.1:4433\n"), 0o600))

	cfg, err := resolveConfiguration([]string{path})
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:4433", cfg.Endpoint.Addr)
}

func TestResolveConfigurationFallsBackToEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quicxd.yml")
	require.NoError(t, os.WriteFile(path, []byte("version: 0.1\nendpoint:\n  addr: 127.0.0.1:4433\n"), 0o600))

	t.Setenv("QUICXD_CONFIGURATION_PATH", path)
	cfg, err := resolveConfiguration(nil)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:4433", cfg.Endpoint.Addr)
}

func TestResolveConfigurationRejectsMissingFile(t *testing.T) {
	_, err := resolveConfiguration([]string{"/no/such/file.yml"})
	require.Error(t, err)
}

func TestTLSConfigForRequiresBothFiles(t *testing.T) {
	_, err := tlsConfigFor(config.TLS{CertFile: "cert.pem"})
	require.Error(t, err)

	_, err = tlsConfigFor(config.TLS{})
	require.Error(t, err)
}

func TestTLSConfigForLoadsKeyPair(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeSelfSignedCert(t, dir)

	tlsConfig, err := tlsConfigFor(config.TLS{CertFile: certPath, KeyFile: keyPath})
	require.NoError(t, err)
	require.Len(t, tlsConfig.Certificates, 1)
	require.Equal(t, []string{"quicx"}, tlsConfig.NextProtos)
}

func TestEventSinkForDefaultsToDiscard(t *testing.T) {
	sink := eventSinkFor(config.Events{})
	_, ok := sink.(*events.HTTPSink)
	require.False(t, ok)
	require.Implements(t, (*goevents.Sink)(nil), sink)
}

func TestEventSinkForHTTPRequiresURL(t *testing.T) {
	sink := eventSinkFor(config.Events{Sink: "http"})
	_, ok := sink.(*events.HTTPSink)
	require.False(t, ok, "an empty URL should not select the HTTP sink")
}

func TestEventSinkForHTTP(t *testing.T) {
	sink := eventSinkFor(config.Events{Sink: "http", HTTP: config.HTTPEventSink{URL: "http://example.invalid/events"}})
	_, ok := sink.(*events.HTTPSink)
	require.True(t, ok)
}

// writeSelfSignedCert writes a throwaway ECDSA certificate/key pair to dir
// and returns their paths, the way httptest generates a cert for tests that
// need a working tls.Config without a real CA.
func writeSelfSignedCert(t *testing.T, dir string) (certPath, keyPath string) {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "quicxd-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)

	certPath = filepath.Join(dir, "cert.pem")
	keyPath = filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))

	keyBytes, err := x509.MarshalECPrivateKey(priv)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes}), 0o600))

	return certPath, keyPath
}

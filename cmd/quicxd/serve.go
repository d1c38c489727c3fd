package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	goevents "github.com/docker/go-events"
	gometrics "github.com/docker/go-metrics"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/caozhiyi/quicx-go/config"
	quicendpoint "github.com/caozhiyi/quicx-go/endpoint"
	"github.com/caozhiyi/quicx-go/events"
	"github.com/caozhiyi/quicx-go/netdrv"
	"github.com/caozhiyi/quicx-go/qcontext"
)

var serveCmd = &cobra.Command{
	Use:   "serve <config>",
	Short: "serve runs a QUIC endpoint from a configuration file",
	Long:  "serve runs a QUIC endpoint from a configuration file.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := resolveConfiguration(args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
			// nolint:errcheck
			cmd.Usage()
			os.Exit(1)
		}

		if err := config.ConfigureLogging(cfg.Log); err != nil {
			fmt.Fprintf(os.Stderr, "unable to configure logging: %v\n", err)
			os.Exit(1)
		}

		ctx := qcontext.WithLogger(context.Background(), logrus.WithFields(config.StaticFields(cfg.Log)))

		if err := run(ctx, cfg); err != nil {
			logrus.Fatalln(err)
		}
	},
}

func resolveConfiguration(args []string) (*config.Configuration, error) {
	var path string
	if len(args) > 0 {
		path = args[0]
	} else if env := os.Getenv("QUICXD_CONFIGURATION_PATH"); env != "" {
		path = env
	}
	if path == "" {
		return nil, errors.New("configuration path unspecified")
	}

	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()

	return config.Parse(fp)
}

func run(ctx context.Context, cfg *config.Configuration) error {
	queue := events.NewQueue(eventSinkFor(cfg.Events))
	defer queue.Close()

	if cfg.Metrics.Addr != "" {
		go func() {
			qcontext.GetLogger(ctx).Infof("quicxd: serving metrics on %s", cfg.Metrics.Addr)
			if err := http.ListenAndServe(cfg.Metrics.Addr, gometrics.Handler()); err != nil {
				qcontext.GetLogger(ctx).Errorf("quicxd: metrics server stopped: %v", err)
			}
		}()
	}

	ep, err := quicendpoint.New(ctx, cfg.EndpointConfig(), func() netdrv.Driver { return netdrv.Default() })
	if err != nil {
		return fmt.Errorf("building endpoint: %w", err)
	}
	defer ep.Close()

	tlsConfig, err := tlsConfigFor(cfg.TLS)
	if err != nil {
		return fmt.Errorf("loading TLS certificate: %w", err)
	}

	if err := ep.Listen(cfg.Endpoint.Addr, tlsConfig, events.Factory(queue)); err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Endpoint.Addr, err)
	}
	qcontext.GetLogger(ctx).Infof("quicxd: listening on %s", cfg.Endpoint.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	qcontext.GetLogger(ctx).Info("quicxd: shutting down")
	return nil
}

func tlsConfigFor(t config.TLS) (*tls.Config, error) {
	if t.CertFile == "" || t.KeyFile == "" {
		return nil, errors.New("tls.certfile and tls.keyfile are required")
	}
	cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{"quicx"},
	}, nil
}

func eventSinkFor(e config.Events) goevents.Sink {
	if e.Sink == "http" && e.HTTP.URL != "" {
		return events.NewHTTPSink(e.HTTP.URL, e.HTTP.Timeout)
	}
	return events.NewDiscardSink()
}

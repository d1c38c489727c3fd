package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	goevents "github.com/docker/go-events"
)

// EventsMediaType is the content type used to POST events to an
// HTTPSink, following the vendor-specific versioned media type
// convention common to webhook notification systems.
const EventsMediaType = "application/vnd.quicx.events.v1+json"

// HTTPSink delivers each Event as an individual JSON POST to a
// configured endpoint, the simplest member of a webhook-sink family.
type HTTPSink struct {
	url    string
	client *http.Client
}

// NewHTTPSink returns a Sink POSTing to url with the given per-request
// timeout (0 means http.DefaultClient's).
func NewHTTPSink(url string, timeout time.Duration) *HTTPSink {
	client := http.DefaultClient
	if timeout > 0 {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPSink{url: url, client: client}
}

func (s *HTTPSink) Write(event goevents.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: marshaling event: %w", err)
	}

	resp, err := s.client.Post(s.url, EventsMediaType, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("events: posting event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("events: endpoint %s responded %s", s.url, resp.Status)
	}
	return nil
}

func (s *HTTPSink) Close() error { return nil }

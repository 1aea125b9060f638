package pagerduty

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/imgforge/imgforge-api/internal/observability/notify"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error when routing key missing")
	}
}

func TestBuildEventDefaults(t *testing.T) {
	client, err := NewClient(Config{
		RoutingKey: "key",
		Timeout:    time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event := client.buildEvent(notify.JobFailurePayload{
		JobID:      "123",
		Kind:       "build",
		Error:      "exit status 2",
		ErrorClass: "exit_status",
		Duration:   90 * time.Second,
	})

	section := event.Payload
	if section.Severity != notify.SeverityCritical {
		t.Errorf("expected default severity, got %v", section.Severity)
	}
	if section.Source != "imgforge" || section.Component != "imgforge" {
		t.Errorf("expected default source and component, got %v / %v", section.Source, section.Component)
	}
	if section.Summary != "imgforge build job 123 failed: exit status 2" {
		t.Errorf("unexpected summary %v", section.Summary)
	}

	custom := section.CustomDetails
	for _, key := range []string{"job_id", "kind", "error", "error_class"} {
		if _, exists := custom[key]; !exists {
			t.Errorf("expected key %s in custom details", key)
		}
	}
	if custom["duration_seconds"] != int64(90) {
		t.Errorf("expected duration_seconds 90, got %v", custom["duration_seconds"])
	}

	if event.DedupKey != "imgforge:build:123" {
		t.Errorf("unexpected dedup key %v", event.DedupKey)
	}
}

func TestBuildEventMetadataCannotOverrideJobFields(t *testing.T) {
	client, err := NewClient(Config{RoutingKey: "key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event := client.buildEvent(notify.JobFailurePayload{
		JobID:    "7",
		Severity: "ERROR",
		Metadata: map[string]string{"job_id": "spoofed", "host": "builder-2"},
	})
	if got := event.Payload.CustomDetails["job_id"]; got != "7" {
		t.Errorf("expected job id to win, got %v", got)
	}
	if got := event.Payload.CustomDetails["host"]; got != "builder-2" {
		t.Errorf("expected metadata to be carried, got %v", got)
	}
	if event.Payload.Severity != notify.SeverityError {
		t.Errorf("expected lowercased severity, got %v", event.Payload.Severity)
	}
	if event.DedupKey != "imgforge:7" {
		t.Errorf("unexpected dedup key %v", event.DedupKey)
	}
}

func TestBuildEventTruncatesLongErrors(t *testing.T) {
	client, err := NewClient(Config{RoutingKey: "key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event := client.buildEvent(notify.JobFailurePayload{JobID: "1", Kind: "flash", Error: strings.Repeat("x", 2000)})
	summary := event.Payload.Summary
	if len([]rune(summary)) > 1024 {
		t.Errorf("summary too long: %d runes", len([]rune(summary)))
	}
}

func TestSendJobFailureRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "try again", http.StatusServiceUnavailable)
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["routing_key"] != "key" {
			t.Errorf("unexpected routing key %v", body["routing_key"])
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client, err := NewClient(Config{RoutingKey: "key", Endpoint: srv.URL, RetryLimit: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := client.SendJobFailure(context.Background(), notify.JobFailurePayload{JobID: "1", Kind: "build"}); err != nil {
		t.Fatalf("expected delivery after retry, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestSendJobFailureReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid routing key", http.StatusBadRequest)
	}))
	defer srv.Close()

	client, err := NewClient(Config{RoutingKey: "key", Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = client.SendJobFailure(context.Background(), notify.JobFailurePayload{JobID: "1"})
	if err == nil || !strings.Contains(err.Error(), "invalid routing key") {
		t.Fatalf("expected api error, got %v", err)
	}
}

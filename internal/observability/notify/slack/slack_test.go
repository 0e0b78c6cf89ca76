package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/target/mmk-moderation/internal/observability/notify"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error when webhook url missing")
	}
}

func TestFormatMessageIncludesFields(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL: "https://hooks.slack.com/services/test",
		Channel:    "#moderation",
		Username:   "bot",
		Timeout:    time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := client.formatMessage(notify.FailurePayload{
		TaskID:     "task-123",
		Kind:       "image",
		SourceID:   "upload-9",
		Attempts:   3,
		Error:      "classifier returned 503",
		ErrorClass: "transient",
	})

	if msg["username"] != "bot" {
		t.Fatalf("expected username to be preserved, got %v", msg["username"])
	}
	if msg["channel"] != "#moderation" {
		t.Fatalf("expected channel to be set, got %v", msg["channel"])
	}

	text, ok := msg["text"].(string)
	if !ok {
		t.Fatalf("expected text field")
	}
	for _, want := range []string{"Moderation job failed", "(image)", "`task-123`", "upload-9", "Attempts: 3", "classifier returned 503", "transient"} {
		if !strings.Contains(text, want) {
			t.Fatalf("message text missing %q: %s", want, text)
		}
	}
}

func TestFormatMessageResultLink(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL:      "https://hooks.slack.com/services/test",
		ResultURLPrefix: "https://moderation.example.com",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text, _ := client.formatMessage(notify.FailurePayload{TaskID: "abc"})["text"].(string)
	expected := "<https://moderation.example.com/moderate/task/abc|abc>"
	if !strings.Contains(text, expected) {
		t.Fatalf("expected result link %q in text: %s", expected, text)
	}
}

func TestFormatMessageEscapesError(t *testing.T) {
	client, err := NewClient(Config{WebhookURL: "https://hooks.slack.com/services/test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text, _ := client.formatMessage(notify.FailurePayload{Error: "<script> & co"})["text"].(string)
	if !strings.Contains(text, "&lt;script&gt; &amp; co") {
		t.Fatalf("expected escaped error text: %s", text)
	}
}

func TestSendFailurePostsJSON(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewClient(Config{WebhookURL: srv.URL, Client: srv.Client()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := client.SendFailure(context.Background(), notify.FailurePayload{TaskID: "t-1", Kind: "text"}); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if got["username"] != "mmk-moderation" {
		t.Fatalf("expected default username, got %v", got["username"])
	}
}

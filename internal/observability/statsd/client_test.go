package statsd

import (
	"net"
	"strings"
	"testing"
	"time"
)

func TestClientLine(t *testing.T) {
	t.Parallel()

	c := &Client{prefix: "moderation", globalTags: map[string]string{"env": "prod", "service": "api"}}
	got := c.line(" job/transition ", "1", "c", map[string]string{"kind": " text ", "": "ignored", "env": "stage"})
	want := "moderation.job_transition:1|c|#env:stage,kind:text,service:api"
	if got != want {
		t.Fatalf("line mismatch\n got: %q\nwant: %q", got, want)
	}

	bare := &Client{}
	if got := bare.line("a..b", "2", "g", nil); got != "a.b:2|g" {
		t.Fatalf("unexpected bare line %q", got)
	}
	if got := bare.line("  ", "2", "g", nil); got != "" {
		t.Fatalf("expected empty metric to be dropped, got %q", got)
	}
}

func TestNormalizeMetricName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		" job/metric ": "job_metric",
		"foo..bar":     "foo.bar",
		"multi  space": "multi__space",
		".lead.":       "lead",
	}
	for input, want := range tests {
		if got := normalizeMetricName(input); got != want {
			t.Fatalf("normalizeMetricName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestClientEmitsOverUDP(t *testing.T) {
	t.Parallel()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("udp listen unavailable: %v", err)
	}
	defer pc.Close()

	client, err := NewClient(Config{Enabled: true, Address: pc.LocalAddr().String(), Prefix: "mod."})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	defer client.Close()

	if !client.Enabled() {
		t.Fatal("expected client to be enabled")
	}
	client.Timing("job.duration", 1500*time.Microsecond, map[string]string{"kind": "image"})

	buf := make([]byte, 512)
	_ = pc.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := pc.ReadFrom(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := string(buf[:n]); got != "mod.job.duration:1.5|ms|#kind:image" {
		t.Fatalf("unexpected packet %q", got)
	}
}

func TestClientCloseAndNil(t *testing.T) {
	t.Parallel()

	clientConn, peerConn := net.Pipe()
	defer peerConn.Close()

	client := &Client{conn: clientConn}
	if !client.Enabled() {
		t.Fatal("expected client.Enabled to report true with active connection")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if client.Enabled() {
		t.Fatal("expected client.Enabled to report false after Close")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close (second call) error: %v", err)
	}

	var nilClient *Client
	nilClient.Count("x", 1, nil)
	if nilClient.Enabled() {
		t.Fatal("nil client should report disabled")
	}
	if err := nilClient.Close(); err != nil {
		t.Fatalf("nil client Close error: %v", err)
	}
}

func TestNewClientDisabledAndDialError(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{Enabled: true, Address: "   "})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	if client.Enabled() {
		t.Fatal("expected client to stay disabled when address is empty")
	}

	_, err = NewClient(Config{Enabled: true, Address: "bad address"})
	if err == nil || !strings.Contains(err.Error(), "statsd dial") {
		t.Fatalf("expected dial error, got %v", err)
	}
}

func TestMemorySink(t *testing.T) {
	t.Parallel()

	var m MemorySink
	m.Count("job.transition", 1, map[string]string{"result": "success"})
	m.Timing("job.duration", 2*time.Millisecond, nil)
	m.Gauge("queue.depth", 3, nil)

	if len(m.Samples()) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(m.Samples()))
	}
	d := m.Named("job.duration")
	if len(d) != 1 || d[0].Value != 2 || d[0].Kind != "ms" {
		t.Fatalf("unexpected timing sample %+v", d)
	}
}

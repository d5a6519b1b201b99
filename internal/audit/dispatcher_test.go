package audit

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestDispatcherDeliversToSink(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)

	d.Emit(context.Background(), Event{EventType: "login_success", UserID: "u1"})
	d.Close()

	select {
	case event := <-sink.Events():
		if event.EventType != "login_success" || event.UserID != "u1" {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event never delivered")
	}
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NewChannelSink(1))
	if d != nil {
		t.Fatal("disabled dispatcher should be nil")
	}

	// nil dispatcher drops silently
	d.Emit(context.Background(), Event{EventType: "ignored"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reported drops")
	}
}

func TestDropIfFullCountsDrops(t *testing.T) {
	// A blocking sink keeps the worker busy while the buffer fills.
	blocked := make(chan struct{})
	release := make(chan struct{})
	sink := sinkFunc(func(context.Context, Event) {
		select {
		case blocked <- struct{}{}:
		default:
		}
		<-release
	})

	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	d.Emit(context.Background(), Event{EventType: "first"})
	<-blocked // worker now stuck inside the sink

	d.Emit(context.Background(), Event{EventType: "second"}) // fills the buffer
	d.Emit(context.Background(), Event{EventType: "third"})  // dropped

	if dropped := d.Dropped(); dropped == 0 {
		t.Fatal("expected at least one dropped event")
	}

	close(release)
	d.Close()
}

func TestEmitAfterCloseIsSafe(t *testing.T) {
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, NoOpSink{})
	d.Close()
	d.Emit(context.Background(), Event{EventType: "late"})
	d.Close()
}

func TestJSONWriterSinkOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{EventType: "login_success", UserID: "u1", Success: true})
	sink.Emit(context.Background(), Event{EventType: "logout_session", Success: true})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], `"event_type":"login_success"`) {
		t.Fatalf("first line missing event type: %s", lines[0])
	}
}

type sinkFunc func(ctx context.Context, event Event)

func (f sinkFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }

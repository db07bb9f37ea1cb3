package dashboard

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

func newTestHub(t *testing.T, buffer int) (*Hub, *logtest.Hook) {
	t.Helper()
	hookLogger, hook := logtest.NewNullLogger()
	return NewHub(buffer, logrus.NewEntry(hookLogger)), hook
}

func decodeFrame(t *testing.T, frame []byte) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	if err := json.Unmarshal(frame, &msg); err != nil {
		t.Fatalf("invalid frame %s: %v", frame, err)
	}
	return msg.Type, msg.Payload
}

func TestEventEncodeFlattensExtra(t *testing.T) {
	frame, err := Event{Name: EventSubscribe, ChatID: "42", Extra: map[string]any{"subscribed": true}}.Encode()
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}

	typ, payload := decodeFrame(t, frame)
	if typ != MessageType {
		t.Fatalf("expected type %s, got %s", MessageType, typ)
	}
	if payload["event"] != EventSubscribe || payload["chatId"] != "42" || payload["subscribed"] != true {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestEventEncodeExtraCannotOverrideIdentity(t *testing.T) {
	frame, err := Event{Name: EventBlock, ChatID: "1", Extra: map[string]any{"event": "spoofed", "chatId": "2"}}.Encode()
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}

	_, payload := decodeFrame(t, frame)
	if payload["event"] != EventBlock || payload["chatId"] != "1" {
		t.Fatalf("expected event and chatId to win over extra, got %v", payload)
	}
}

func TestPublishFansOutInOrder(t *testing.T) {
	hub, _ := newTestHub(t, 8)
	first := hub.Subscribe()
	second := hub.Subscribe()
	defer first.Close()
	defer second.Close()

	hub.Publish(Event{Name: EventStart, ChatID: "1"})
	hub.Publish(Event{Name: EventHelp, ChatID: "1"})

	for _, sub := range []*Subscription{first, second} {
		for _, want := range []string{EventStart, EventHelp} {
			_, payload := decodeFrame(t, <-sub.Frames())
			if payload["event"] != want {
				t.Fatalf("expected %s, got %v", want, payload["event"])
			}
		}
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	hub, _ := newTestHub(t, 1)
	hub.Publish(Event{Name: EventHelp, ChatID: "1"})

	var nilHub *Hub
	nilHub.Publish(Event{Name: EventHelp})
}

func TestPublishDropsForFullSubscriberOnly(t *testing.T) {
	hub, hook := newTestHub(t, 1)
	slow := hub.Subscribe()
	fast := hub.Subscribe()
	defer slow.Close()
	defer fast.Close()

	hub.Publish(Event{Name: EventStart, ChatID: "1"})
	<-fast.Frames()
	hub.Publish(Event{Name: EventHelp, ChatID: "1"})

	_, payload := decodeFrame(t, <-fast.Frames())
	if payload["event"] != EventHelp {
		t.Fatalf("expected fast subscriber to receive help, got %v", payload["event"])
	}

	_, payload = decodeFrame(t, <-slow.Frames())
	if payload["event"] != EventStart {
		t.Fatalf("expected slow subscriber to keep first event, got %v", payload["event"])
	}
	select {
	case frame := <-slow.Frames():
		t.Fatalf("expected second event to be dropped for slow subscriber, got %s", frame)
	default:
	}

	dropped := false
	for _, entry := range hook.AllEntries() {
		if entry.Data["event"] == "dashboard_event_dropped" {
			dropped = true
		}
	}
	if !dropped {
		t.Fatalf("expected drop to be logged")
	}
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	hub, _ := newTestHub(t, 1)
	sub := hub.Subscribe()

	if hub.Count() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", hub.Count())
	}

	sub.Close()
	sub.Close()

	if hub.Count() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", hub.Count())
	}
	if _, ok := <-sub.Frames(); ok {
		t.Fatalf("expected frames channel to be closed")
	}

	hub.Publish(Event{Name: EventHelp, ChatID: "1"})
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	hub, _ := newTestHub(t, 4)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub := hub.Subscribe()
			sub.Close()
		}()
		go func() {
			defer wg.Done()
			hub.Publish(Event{Name: EventStart, ChatID: "1"})
		}()
	}
	wg.Wait()

	if hub.Count() != 0 {
		t.Fatalf("expected all subscriptions to be closed, got %d", hub.Count())
	}
}

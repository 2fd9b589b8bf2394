package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/e7canasta/sequoia-bands/internal/config"
)

// doneToken is a completed paho.Token.
type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// pendingToken never completes.
type pendingToken struct{ doneToken }

func (pendingToken) Done() <-chan struct{} { return make(chan struct{}) }

type fakeMessage struct {
	paho.Message
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }

// fakeClient records calls; methods not overridden panic through the nil embed.
type fakeClient struct {
	paho.Client

	connectToken   paho.Token
	subscribeToken paho.Token

	mu           sync.Mutex
	connected    bool
	topic        string
	qos          byte
	handler      paho.MessageHandler
	unsubscribed []string
	disconnected bool
}

func (c *fakeClient) Connect() paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	return c.connectToken
}

func (c *fakeClient) Subscribe(topic string, qos byte, cb paho.MessageHandler) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topic, c.qos, c.handler = topic, qos, cb
	return c.subscribeToken
}

func (c *fakeClient) Unsubscribe(topics ...string) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubscribed = append(c.unsubscribed, topics...)
	return doneToken{}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.disconnected = true
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) publish(payload []byte) {
	c.handler(c, fakeMessage{topic: c.topic, payload: payload})
}

type recordingSink struct {
	mu   sync.Mutex
	msgs [][]byte
	err  error
}

func (s *recordingSink) Deliver(msg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return s.err
}

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker:         "localhost:1883",
		ClientID:       "test_node",
		Topic:          "sequoia/image_raw",
		QoS:            1,
		ConnectTimeout: 50 * time.Millisecond,
	}
}

func newTestSubscriber(client *fakeClient) *Subscriber {
	s := NewSubscriber(testConfig())
	s.newClient = func(*paho.ClientOptions) paho.Client { return client }
	return s
}

func TestSubscriberDelivers(t *testing.T) {
	client := &fakeClient{connectToken: doneToken{}, subscribeToken: doneToken{}}
	sub := newTestSubscriber(client)
	sink := &recordingSink{}

	if err := sub.Start(context.Background(), sink); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if client.topic != "sequoia/image_raw" || client.qos != 1 {
		t.Errorf("subscribed to %q qos %d", client.topic, client.qos)
	}

	client.publish([]byte("frame-1"))
	client.publish([]byte("frame-2"))

	if len(sink.msgs) != 2 || string(sink.msgs[1]) != "frame-2" {
		t.Errorf("sink got %q, want 2 messages", sink.msgs)
	}

	stats := sub.Stats()
	if !stats.Connected || stats.Received != 2 {
		t.Errorf("Stats = %+v, want connected with 2 received", stats)
	}
	group := map[string]any{}
	for _, a := range sub.StatsValue().Group() {
		group[a.Key] = a.Value.Any()
	}
	if group["connected"] != true || group["received"] != uint64(2) {
		t.Errorf("StatsValue = %v, want connected=true received=2", group)
	}

	if err := sub.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if len(client.unsubscribed) != 1 || !client.disconnected {
		t.Errorf("Stop: unsubscribed=%v disconnected=%v", client.unsubscribed, client.disconnected)
	}
	if sub.Stats().Connected {
		t.Error("still connected after Stop")
	}
}

func TestSubscriberReportsFirstDeliveryError(t *testing.T) {
	client := &fakeClient{connectToken: doneToken{}, subscribeToken: doneToken{}}
	sub := newTestSubscriber(client)
	sink := &recordingSink{err: errors.New("bad image")}

	if err := sub.Start(context.Background(), sink); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Second failure must not block the router goroutine
	client.publish([]byte("x"))
	client.publish([]byte("y"))

	select {
	case err := <-sub.Err():
		if err == nil || err.Error() != "bad image" {
			t.Errorf("Err() = %v, want bad image", err)
		}
	default:
		t.Fatal("no error reported")
	}
}

func TestSubscriberConnectFailure(t *testing.T) {
	client := &fakeClient{connectToken: doneToken{err: errors.New("refused")}}
	sub := newTestSubscriber(client)

	err := sub.Start(context.Background(), &recordingSink{})
	if err == nil {
		t.Fatal("Start succeeded, want connect error")
	}
	t.Logf("✅ connect failure: %v", err)
}

func TestSubscriberSubscribeTimeout(t *testing.T) {
	client := &fakeClient{connectToken: doneToken{}, subscribeToken: pendingToken{}}
	sub := newTestSubscriber(client)

	if err := sub.Start(context.Background(), &recordingSink{}); err == nil {
		t.Fatal("Start succeeded, want subscribe timeout")
	}
	if !client.disconnected {
		t.Error("client not disconnected after subscribe failure")
	}
}

func TestSubscriberStartCancelled(t *testing.T) {
	client := &fakeClient{connectToken: pendingToken{}}
	sub := newTestSubscriber(client)
	sub.cfg.ConnectTimeout = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := sub.Start(ctx, &recordingSink{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Start error = %v, want context.Canceled", err)
	}
}

func TestStopWithoutStart(t *testing.T) {
	if err := NewSubscriber(testConfig()).Stop(); err != nil {
		t.Errorf("Stop without Start = %v", err)
	}
}

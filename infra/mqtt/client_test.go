package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/ldsn-cm/ldsn/core/model"
	"github.com/ldsn-cm/ldsn/internal/eventbus"
)

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type fakeClient struct {
	opts         *paho.ClientOptions
	connected    bool
	disconnected bool
	published    []publishCall
	publishErrs  int
}

type publishCall struct {
	topic   string
	payload []byte
}

func (c *fakeClient) IsConnected() bool      { return c.connected }
func (c *fakeClient) IsConnectionOpen() bool { return c.connected }
func (c *fakeClient) Connect() paho.Token {
	c.connected = true
	if c.opts.OnConnect != nil {
		c.opts.OnConnect(c)
	}
	return &fakeToken{}
}
func (c *fakeClient) Disconnect(uint) { c.disconnected = true; c.connected = false }
func (c *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) paho.Token {
	if c.publishErrs > 0 {
		c.publishErrs--
		return &fakeToken{err: errors.New("broker unavailable")}
	}
	c.published = append(c.published, publishCall{topic: topic, payload: payload.([]byte)})
	return &fakeToken{}
}
func (c *fakeClient) Subscribe(string, byte, paho.MessageHandler) paho.Token {
	return &fakeToken{}
}
func (c *fakeClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &fakeToken{}
}
func (c *fakeClient) Unsubscribe(...string) paho.Token        { return &fakeToken{} }
func (c *fakeClient) AddRoute(string, paho.MessageHandler)    {}
func (c *fakeClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

func withFakeClient(t *testing.T, fc *fakeClient) {
	t.Helper()
	orig := newMQTTClient
	newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
		fc.opts = opts
		return fc
	}
	t.Cleanup(func() { newMQTTClient = orig })
}

func TestNewPahoClientPublishesOnlineOnConnect(t *testing.T) {
	fc := &fakeClient{}
	withFakeClient(t, fc)
	conn := eventbus.NewTyped[model.ConnState]()
	sub := conn.Subscribe()

	pc, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "test"}, nil, conn)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	select {
	case state := <-sub:
		if state != model.Online {
			t.Fatalf("expected online transition, got %v", state)
		}
	default:
		t.Fatalf("expected a connectivity event on connect")
	}
	if !pc.Connected() {
		t.Fatalf("client should report connected")
	}
}

func TestOnReportDecodesAndForwards(t *testing.T) {
	fc := &fakeClient{}
	withFakeClient(t, fc)

	var got model.FieldReport
	handler := func(_ context.Context, r model.FieldReport) error {
		got = r
		return nil
	}
	pc, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "test"}, handler, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	payload, _ := json.Marshal(model.FieldReport{
		Disease:    "anthrax",
		Location:   "Maroua",
		ReporterID: "chw-5",
		Mortality:  4,
	})
	pc.onReport(nil, &fakeMessage{topic: "ldsn/reports/maroua-01", payload: payload})

	if got.Disease != "anthrax" || got.Mortality != 4 {
		t.Fatalf("handler not invoked with decoded report: %+v", got)
	}
	if got.ReceivedAt.IsZero() {
		t.Fatalf("missing timestamps are stamped on arrival")
	}
}

func TestOnReportIgnoresMalformedPayload(t *testing.T) {
	fc := &fakeClient{}
	withFakeClient(t, fc)

	called := false
	handler := func(context.Context, model.FieldReport) error {
		called = true
		return nil
	}
	pc, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "test"}, handler, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	pc.onReport(nil, &fakeMessage{topic: "ldsn/reports/x", payload: []byte("{garbage")})
	if called {
		t.Fatalf("malformed payloads must not reach the handler")
	}
}

func TestPublishAlertRetries(t *testing.T) {
	fc := &fakeClient{publishErrs: 2}
	withFakeClient(t, fc)

	pc, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "test", BackoffMS: 1}, nil, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	alert := model.Alert{ID: "a-1", Disease: "anthrax", Priority: model.P1Critical}
	if err := pc.PublishAlert(alert); err != nil {
		t.Fatalf("publish should succeed after retries: %v", err)
	}
	if len(fc.published) != 1 {
		t.Fatalf("expected one successful publish, got %d", len(fc.published))
	}
	if fc.published[0].topic != "ldsn/alerts" {
		t.Fatalf("unexpected topic %s", fc.published[0].topic)
	}
	var decoded model.Alert
	if err := json.Unmarshal(fc.published[0].payload, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ID != "a-1" {
		t.Fatalf("unexpected alert %v", decoded)
	}
}

func TestDisconnectPublishesOffline(t *testing.T) {
	fc := &fakeClient{}
	withFakeClient(t, fc)
	conn := eventbus.NewTyped[model.ConnState]()

	pc, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", ClientID: "test"}, nil, conn)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	sub := conn.Subscribe()
	pc.Disconnect()
	select {
	case state := <-sub:
		if state != model.Offline {
			t.Fatalf("expected offline transition, got %v", state)
		}
	default:
		t.Fatalf("expected a connectivity event on disconnect")
	}
	if !fc.disconnected {
		t.Fatalf("underlying client must be disconnected")
	}
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	if cfg.ReportsTopic != "ldsn/reports/+" || cfg.AlertsTopic != "ldsn/alerts" {
		t.Fatalf("unexpected topic defaults %+v", cfg)
	}
	if cfg.MaxRetries != 3 || cfg.BackoffMS != 100 {
		t.Fatalf("unexpected retry defaults %+v", cfg)
	}
}

func TestLoadTLSConfigRequiresPaths(t *testing.T) {
	cfg := Config{UseTLS: true}
	if _, err := cfg.LoadTLSConfig(); err == nil {
		t.Fatalf("expected error without cert paths")
	}
}

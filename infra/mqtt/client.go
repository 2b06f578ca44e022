// Package mqtt connects the triage pipeline to field stations over MQTT:
// report ingestion, alert publication and broker connectivity tracking.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/ldsn-cm/ldsn/core/model"
	"github.com/ldsn-cm/ldsn/infra/logger"
	"github.com/ldsn-cm/ldsn/internal/eventbus"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker       string          `json:"broker"`
	ClientID     string          `json:"client_id"`
	Username     string          `json:"username"`
	Password     string          `json:"password"`
	ReportsTopic string          `json:"reports_topic"`
	AlertsTopic  string          `json:"alerts_topic"`
	UseTLS       bool            `json:"use_tls"`
	ClientCert   string          `json:"client_cert"`
	ClientKey    string          `json:"client_key"`
	CABundle     string          `json:"ca_bundle"`
	QoS          map[string]byte `json:"qos"`
	LWTTopic     string          `json:"lwt_topic"`
	LWTPayload   string          `json:"lwt_payload"`
	LWTQoS       byte            `json:"lwt_qos"`
	LWTRetain    bool            `json:"lwt_retain"`
	MaxRetries   int             `json:"max_retries"`
	BackoffMS    int             `json:"backoff_ms"`
	TLSConfig    *tls.Config     `json:"-"`
}

// SetDefaults fills topic and retry defaults.
func (c *Config) SetDefaults() {
	if c.ReportsTopic == "" {
		c.ReportsTopic = "ldsn/reports/+"
	}
	if c.AlertsTopic == "" {
		c.AlertsTopic = "ldsn/alerts"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
}

// ReportHandler receives decoded field reports from the reports topic.
type ReportHandler func(ctx context.Context, r model.FieldReport) error

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// PahoClient wires broker connectivity into the triage service. Connect and
// disconnect callbacks publish connectivity transitions on the bus so the
// service flips between live hand-off and offline buffering.
type PahoClient struct {
	cli          pahoClient
	reportsTopic string
	alertsTopic  string
	qos          map[string]byte
	maxRetries   int
	backoff      time.Duration

	handler ReportHandler
	conn    *eventbus.TypedBus[model.ConnState]
	logger  logger.Logger
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the broker, subscribes to the reports topic and
// starts publishing connectivity transitions on conn.
func NewPahoClient(cfg Config, handler ReportHandler, conn *eventbus.TypedBus[model.ConnState]) (*PahoClient, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_client")
	pc := &PahoClient{
		reportsTopic: cfg.ReportsTopic,
		alertsTopic:  cfg.AlertsTopic,
		qos:          cfg.QoS,
		maxRetries:   cfg.MaxRetries,
		backoff:      time.Duration(cfg.BackoffMS) * time.Millisecond,
		handler:      handler,
		conn:         conn,
		logger:       log,
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		qos := byte(0)
		if q, ok := pc.qos["reports"]; ok {
			qos = q
		}
		if token := c.Subscribe(pc.reportsTopic, qos, pc.onReport); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
		pc.publishConn(model.Online)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
		pc.publishConn(model.Offline)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	pc.cli = c
	return pc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}
	return cfg, nil
}

func (p *PahoClient) onReport(_ paho.Client, msg paho.Message) {
	var r model.FieldReport
	if err := json.Unmarshal(msg.Payload(), &r); err != nil {
		p.logger.Errorf("failed to decode report on %s: %v", msg.Topic(), err)
		return
	}
	if r.ReceivedAt.IsZero() {
		r.ReceivedAt = time.Now().UTC()
	}
	if p.handler == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.handler(ctx, r); err != nil {
		p.logger.Errorf("report from %s rejected: %v", msg.Topic(), err)
	}
}

// PublishAlert publishes the alert on the alerts topic with retries.
func (p *PahoClient) PublishAlert(a model.Alert) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return err
	}
	qos := byte(0)
	if q, ok := p.qos["alerts"]; ok {
		qos = q
	}
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(p.alertsTopic, qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.logger.Infof("published alert %s to %s", a.ID, p.alertsTopic)
			break
		}
		p.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		time.Sleep(p.backoff * time.Duration(1<<attempt))
	}
	return publishErr
}

// Connected reports whether the client currently holds a broker connection.
func (p *PahoClient) Connected() bool {
	return p.cli != nil && p.cli.IsConnected()
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
	p.publishConn(model.Offline)
}

func (p *PahoClient) publishConn(state model.ConnState) {
	if p.conn != nil {
		p.conn.Publish(state)
	}
}

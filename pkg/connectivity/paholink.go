package connectivity

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// PahoLinkConfig holds broker connection settings for the MQTT-backed link.
type PahoLinkConfig struct {
	BrokerURL          string
	ClientIDPrefix     string
	Username           string
	Password           string
	KeepAlive          time.Duration
	ConnectTimeout     time.Duration
	CACertFile         string
	ClientCertFile     string
	ClientKeyFile      string
	InsecureSkipVerify bool
}

// PahoLink adapts a Paho MQTT client to the Link interface. Paho's
// token-based Connect is naturally non-blocking, which is exactly the
// shape the Manager needs: StartConnect fires the attempt and returns,
// and the token is polled for completion on later ticks. Auto-reconnect
// is disabled so the Manager owns the retry policy.
type PahoLink struct {
	config PahoLinkConfig
	client mqtt.Client
	logger zerolog.Logger

	mu    sync.Mutex
	token mqtt.Token
}

// NewPahoLink creates the link but does not dial; the Manager decides
// when to connect.
func NewPahoLink(config PahoLinkConfig, logger zerolog.Logger) (*PahoLink, error) {
	l := &PahoLink{
		config: config,
		logger: logger.With().Str("component", "PahoLink").Logger(),
	}
	if config.BrokerURL == "" {
		return l, nil
	}

	if config.KeepAlive == 0 {
		config.KeepAlive = 60 * time.Second
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 10 * time.Second
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.BrokerURL)

	uniqueSuffix := time.Now().UnixNano() % 1000000
	opts.SetClientID(fmt.Sprintf("%s%d", config.ClientIDPrefix, uniqueSuffix))

	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetKeepAlive(config.KeepAlive)
	opts.SetConnectTimeout(config.ConnectTimeout)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		l.logger.Warn().Err(err).Msg("Link connection lost.")
	})

	lower := strings.ToLower(config.BrokerURL)
	if strings.HasPrefix(lower, "tls://") || strings.HasPrefix(lower, "ssl://") {
		tlsConfig, err := newTLSConfig(&config)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts.SetTLSConfig(tlsConfig)
		l.logger.Info().Msg("TLS configured for link.")
	}

	l.client = mqtt.NewClient(opts)
	return l, nil
}

// Configured reports whether a broker URL was supplied.
func (l *PahoLink) Configured() bool {
	return l.config.BrokerURL != ""
}

// StartConnect begins a connect attempt and returns immediately. The
// attempt's outcome is observed through AttemptDone.
func (l *PahoLink) StartConnect() error {
	if l.client == nil {
		return fmt.Errorf("link is not configured")
	}
	if l.client.IsConnected() {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Info().Str("broker", l.config.BrokerURL).Msg("Starting connect attempt.")
	l.token = l.client.Connect()
	return nil
}

// Connected reports whether the broker connection is established.
func (l *PahoLink) Connected() bool {
	return l.client != nil && l.client.IsConnected()
}

// AttemptDone polls the outstanding connect token without blocking.
func (l *PahoLink) AttemptDone() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.token == nil {
		return true, nil
	}
	select {
	case <-l.token.Done():
		return true, l.token.Error()
	default:
		return false, nil
	}
}

// Publish sends a fire-and-forget QoS 0 message, used for diagnostic
// status pings. Failures are non-fatal and surface only in logs.
func (l *PahoLink) Publish(topic string, payload []byte) error {
	if l.client == nil || !l.client.IsConnected() {
		return fmt.Errorf("link not connected")
	}
	l.client.Publish(topic, 0, false, payload)
	return nil
}

// Close disconnects from the broker, giving Paho time to quiesce.
func (l *PahoLink) Close() {
	if l.client != nil && l.client.IsConnected() {
		l.client.Disconnect(250)
	}
}

// newTLSConfig creates a TLS configuration for the MQTT client.
func newTLSConfig(cfg *PahoLinkConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}

	if cfg.CACertFile != "" {
		caCert, err := os.ReadFile(cfg.CACertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate file %s: %w", cfg.CACertFile, err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to append CA certificate from %s to pool", cfg.CACertFile)
		}
		tlsConfig.RootCAs = caCertPool
	}

	if cfg.ClientCertFile != "" && cfg.ClientKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCertFile, cfg.ClientKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate/key pair: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

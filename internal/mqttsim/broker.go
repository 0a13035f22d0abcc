package mqttsim

import (
	"fmt"
	"net"
	"time"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/rs/zerolog/log"
)

// EmbeddedBroker wraps an in-process MQTT broker for standalone
// deployments where no external broker is available, mirroring
// original_source/src/protocols/industrial/mqtt/mqtt_broker.py's
// EmbeddedMQTTBroker. Unlike the Python original (which only reaches an
// embedded broker if the optional `amqtt` package is installed, and
// otherwise assumes an external broker is already running), this uses
// github.com/mochi-mqtt/server/v2 — a real pack dependency — to actually
// provide one.
type EmbeddedBroker struct {
	Host string
	Port int

	server  *mochi.Server
	running bool
}

// NewEmbeddedBroker builds a broker bound to host:port, not yet started.
func NewEmbeddedBroker(host string, port int) *EmbeddedBroker {
	return &EmbeddedBroker{Host: host, Port: port}
}

// Start brings the embedded broker up, mirroring EmbeddedMQTTBroker.start.
func (b *EmbeddedBroker) Start() error {
	log.Info().Str("host", b.Host).Int("port", b.Port).Msg("starting embedded mqtt broker")

	server := mochi.New(nil)
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return fmt.Errorf("install embedded broker auth hook: %w", err)
	}

	tcp := listeners.NewTCP(listeners.Config{ID: "embedded", Address: fmt.Sprintf("%s:%d", b.Host, b.Port)})
	if err := server.AddListener(tcp); err != nil {
		return fmt.Errorf("bind embedded mqtt broker listener: %w", err)
	}

	go func() {
		if err := server.Serve(); err != nil {
			log.Error().Err(err).Msg("embedded mqtt broker stopped serving")
		}
	}()

	b.server = server
	b.running = true
	log.Info().Msg("embedded mqtt broker started successfully")
	return nil
}

// Stop shuts the embedded broker down, mirroring EmbeddedMQTTBroker.stop.
func (b *EmbeddedBroker) Stop() {
	if b.server != nil {
		log.Info().Msg("stopping embedded mqtt broker")
		_ = b.server.Close()
		b.server = nil
	}
	b.running = false
}

// IsRunning reports whether the embedded broker is active.
func (b *EmbeddedBroker) IsRunning() bool { return b.running }

// CheckBrokerReachable probes whether an MQTT broker is accepting TCP
// connections at host:port within timeout, mirroring
// check_broker_connectivity.
func CheckBrokerReachable(host string, port int, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", host, port), timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

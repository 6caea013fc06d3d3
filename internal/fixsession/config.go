package fixsession

import "time"

// Config is the configuration surface for one FIX session, per the
// session section of the configuration surface: host/port/credentials
// plus the timing and sent-store sizing knobs.
type Config struct {
	Host         string
	Port         int
	SenderCompID string
	TargetCompID string
	APIKey       string
	APISecret    string

	HeartbeatInterval     time.Duration
	MaxReconnectAttempts  int
	InitialReconnectDelay time.Duration
	MaxReconnectDelay     time.Duration
	MaxStoredMessages     int
	MessageRetention      time.Duration
}

// withDefaults returns a copy of c with zero-valued fields replaced by the
// configured defaults (heartbeat 30s, 10 reconnect attempts, 1s initial /
// 30s max backoff, 10000 stored messages, 1h retention).
func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = 10
	}
	if c.InitialReconnectDelay <= 0 {
		c.InitialReconnectDelay = time.Second
	}
	if c.MaxReconnectDelay <= 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
	if c.MaxStoredMessages <= 0 {
		c.MaxStoredMessages = 10000
	}
	if c.MessageRetention <= 0 {
		c.MessageRetention = time.Hour
	}
	return c
}

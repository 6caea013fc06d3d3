package pricesource

import "time"

// Config is the pricesource section of the configuration surface.
type Config struct {
	URL    string
	Symbol string
}

const (
	pingInterval     = 50 * time.Second
	readTimeout      = 90 * time.Second
	maxReconnectWait = 30 * time.Second
	writeTimeout     = 10 * time.Second
	updateBufferSize = 256
)

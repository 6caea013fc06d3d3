package hedgevenue

import "time"

// Config is the hedge venue REST client's configuration.
type Config struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	Timeout    time.Duration
	RetryCount int
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.kraken.com"
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
	if c.RetryCount == 0 {
		c.RetryCount = 3
	}
	return c
}

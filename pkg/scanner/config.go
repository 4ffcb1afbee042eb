package scanner

import (
	"errors"
	"time"

	"github.com/rescp17/pisco/pkg/content"
)

// Config holds the scanner app settings.
type Config struct {
	// LoadTimeout bounds a single page load.
	LoadTimeout time.Duration `json:"load_timeout"`
	// MaxPageBytes caps how much of a page body is read.
	MaxPageBytes int64 `json:"max_page_bytes"`
	// MessageBuffer is the capacity of the App -> TUI channel.
	MessageBuffer int `json:"message_buffer"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LoadTimeout:   15 * time.Second,
		MaxPageBytes:  content.DefaultMaxPageBytes,
		MessageBuffer: 10,
	}
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	if c.LoadTimeout <= 0 {
		return errors.New("load_timeout must be positive")
	}
	if c.MaxPageBytes <= 0 {
		return errors.New("max_page_bytes must be positive")
	}
	if c.MessageBuffer < 0 {
		return errors.New("message_buffer cannot be negative")
	}
	return nil
}

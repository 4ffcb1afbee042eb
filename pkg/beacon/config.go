package beacon

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/rescp17/pisco/pkg/discovery"
)

// Config describes the plug-in a beacon pretends to be.
type Config struct {
	Name       string `json:"name"`
	Port       int    `json:"port"`
	URI        string `json:"uri"`
	InstanceID string `json:"instance_id"`
	Domain     string `json:"domain"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "pisco"
	}
	id := uuid.New().String()
	return &Config{
		Name:       fmt.Sprintf("%s-%s", hostname, id[:8]),
		Port:       8080,
		URI:        "urn:pisco:beacon",
		InstanceID: id,
		Domain:     discovery.DefaultDomain,
	}
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	if c.Name == "" {
		return errors.New("name cannot be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	if c.URI == "" {
		return errors.New("uri cannot be empty")
	}
	return nil
}

// Registration returns the mDNS record a beacon publishes.
func (c *Config) Registration() discovery.Registration {
	text := map[string]string{discovery.AttrURI: c.URI}
	if c.InstanceID != "" {
		text[discovery.AttrInstanceID] = c.InstanceID
	}
	return discovery.Registration{
		Name:   c.Name,
		Type:   discovery.ServiceType,
		Domain: c.Domain,
		Port:   c.Port,
		Text:   text,
	}
}

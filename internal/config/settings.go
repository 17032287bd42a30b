package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings are operational knobs loaded from an optional YAML file. They
// cover things an operator may need to override without touching the flag
// surface: endpoint URLs, HTTP timeout, the post-creation settle delay.
type Settings struct {
	Endpoints EndpointSettings  `yaml:"endpoints"`
	HTTP      HTTPSettings      `yaml:"http"`
	Provision ProvisionSettings `yaml:"provision"`
}

// EndpointSettings contains the API base URL per environment.
type EndpointSettings struct {
	Production  string `yaml:"production"`
	Development string `yaml:"development"`
}

// HTTPSettings contains HTTP client settings.
type HTTPSettings struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// ProvisionSettings contains provisioning workflow settings.
type ProvisionSettings struct {
	SettleDelayMs int `yaml:"settle_delay_ms"`
}

// DefaultSettings returns the built-in settings used when no file is given.
func DefaultSettings() Settings {
	return Settings{
		Endpoints: EndpointSettings{
			Production:  "https://api.onalabs.biot-med.com",
			Development: "https://api.dev.onalabs.biot-med.com",
		},
		HTTP:      HTTPSettings{TimeoutSeconds: 30},
		Provision: ProvisionSettings{SettleDelayMs: 1000},
	}
}

// LoadSettings reads the YAML settings file at path on top of the defaults.
// An empty path returns the defaults unchanged.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse settings: %w", err)
	}
	if err := s.validate(); err != nil {
		return s, fmt.Errorf("settings %s: %w", path, err)
	}
	return s, nil
}

func (s Settings) validate() error {
	if s.Endpoints.Production == "" {
		return fmt.Errorf("endpoints.production must not be empty")
	}
	if s.Endpoints.Development == "" {
		return fmt.Errorf("endpoints.development must not be empty")
	}
	if s.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if s.Provision.SettleDelayMs < 0 {
		return fmt.Errorf("provision.settle_delay_ms must be >= 0")
	}
	return nil
}

// BaseURL returns the API base URL for the given environment.
func (s Settings) BaseURL(environment string) (string, error) {
	switch environment {
	case EnvProduction:
		return s.Endpoints.Production, nil
	case EnvDevelopment:
		return s.Endpoints.Development, nil
	}
	return "", fmt.Errorf("unknown environment %q", environment)
}

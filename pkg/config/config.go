package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultSubject is the JetStream subject eligibility responses are published on
const DefaultSubject = "EVENTS.coverageeligibilityresponse"

// Config holds all configuration for the eligibility contract and its hosts
type Config struct {
	// Logging configuration
	LogLevel string `mapstructure:"log_level"`

	// FHIR document-retrieval configuration
	FHIR FHIRConfig `mapstructure:"fhir"`

	// NATS JetStream configuration
	NATS NATSConfig `mapstructure:"nats"`

	// Response composition configuration
	Eligibility EligibilityConfig `mapstructure:"eligibility"`

	// HTTP gateway configuration
	Gateway GatewayConfig `mapstructure:"gateway"`
}

// FHIRConfig holds FHIR server configuration
type FHIRConfig struct {
	Server string `mapstructure:"server"`
	// InsecureSkipVerify disables TLS certificate verification. Never enable outside a demo network.
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify"`
}

// NATSConfig holds message bus configuration
type NATSConfig struct {
	Server       string `mapstructure:"server"`
	Subject      string `mapstructure:"subject"`
	NkeySeedFile string `mapstructure:"nkey_seed_file"`
	CAFile       string `mapstructure:"ca_file"`
	ClientName   string `mapstructure:"client_name"`
}

// EligibilityConfig holds response composition settings
type EligibilityConfig struct {
	IdentifierBase string `mapstructure:"identifier_base"`
}

// GatewayConfig holds HTTP host configuration
type GatewayConfig struct {
	Port       int           `mapstructure:"port"`
	RateLimit  int           `mapstructure:"rate_limit"`
	RatePeriod time.Duration `mapstructure:"rate_period"`
}

// InstanceConfig is the runtime configuration blob accepted by the Configure entry point
type InstanceConfig struct {
	NATSServer string `json:"nats_server"`
	FHIRServer string `json:"fhir_server"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/connect-contracts")

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return unmarshal(v)
}

// Default returns the configuration made of defaults only
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, _ := unmarshal(v)
	return cfg
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("fhir.server", "")
	v.SetDefault("fhir.insecure_skip_verify", false)

	v.SetDefault("nats.server", "")
	v.SetDefault("nats.subject", DefaultSubject)
	v.SetDefault("nats.nkey_seed_file", "certs/nats-client.nk")
	v.SetDefault("nats.ca_file", "certs/nats-server.crt")
	v.SetDefault("nats.client_name", "connect-contracts")

	v.SetDefault("eligibility.identifier_base", "https://linuxforhealth.org/fhir/CoverageEligibilityResponse/")

	v.SetDefault("gateway.port", 8080)
	v.SetDefault("gateway.rate_limit", 100)
	v.SetDefault("gateway.rate_period", time.Minute)
}

// ParseInstanceConfig decodes a {nats_server, fhir_server} configuration blob
func ParseInstanceConfig(data []byte) (*InstanceConfig, error) {
	var ic InstanceConfig
	if err := json.Unmarshal(data, &ic); err != nil {
		return nil, fmt.Errorf("invalid configuration JSON: %w", err)
	}
	if err := ic.Validate(); err != nil {
		return nil, err
	}
	return &ic, nil
}

// Validate checks that both servers are present and parse as URLs
func (ic *InstanceConfig) Validate() error {
	if ic.NATSServer == "" {
		return fmt.Errorf("nats_server is required")
	}
	if ic.FHIRServer == "" {
		return fmt.Errorf("fhir_server is required")
	}
	if _, err := url.Parse(ic.NATSServer); err != nil {
		return fmt.Errorf("invalid nats_server: %w", err)
	}
	u, err := url.Parse(ic.FHIRServer)
	if err != nil {
		return fmt.Errorf("invalid fhir_server: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("invalid fhir_server scheme %q", u.Scheme)
	}
	return nil
}

// Apply returns a copy of the configuration with the instance settings merged in
func (c Config) Apply(ic *InstanceConfig) *Config {
	if ic.NATSServer != "" {
		c.NATS.Server = ic.NATSServer
	}
	if ic.FHIRServer != "" {
		c.FHIR.Server = ic.FHIRServer
	}
	return &c
}

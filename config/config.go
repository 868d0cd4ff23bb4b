package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the broker server configuration. Values come from an
// optional YAML file; environment variables take precedence.
type Config struct {
	Listen Listen `yaml:"listen"`
	Admin  Admin  `yaml:"admin"`
	Broker Broker `yaml:"broker"`
	Client Client `yaml:"client"`
	Logger Logger `yaml:"logger"`
}

type Listen struct {
	TCP string `yaml:"tcp" envconfig:"BUSLINE_LISTEN_TCP" default:"0.0.0.0:7070"`
	UDP string `yaml:"udp" envconfig:"BUSLINE_LISTEN_UDP" default:"0.0.0.0:7070"`

	// Empty disables the WebSocket transport.
	WS string `yaml:"ws" envconfig:"BUSLINE_LISTEN_WS"`

	MaxClients int `yaml:"max_clients" envconfig:"BUSLINE_MAX_CLIENTS" default:"64"`
}

type Admin struct {
	// Empty disables the admin API and metrics endpoint.
	Addr string `yaml:"addr" envconfig:"BUSLINE_ADMIN_ADDR"`

	MCP bool `yaml:"mcp" envconfig:"BUSLINE_ADMIN_MCP" default:"false"`
}

type Broker struct {
	EchoToPublisher bool `yaml:"echo_to_publisher" envconfig:"BUSLINE_ECHO_TO_PUBLISHER" default:"true"`
}

// Client holds the settings shared by the publish and subscribe commands.
type Client struct {
	AckTimeout time.Duration `yaml:"ack_timeout" envconfig:"BUSLINE_ACK_TIMEOUT" default:"5s"`
}

type Logger struct {
	Level  string `yaml:"level" envconfig:"BUSLINE_LOG_LEVEL" default:"info"`
	Format string `yaml:"format" envconfig:"BUSLINE_LOG_FORMAT" default:"json"`
}

// Load reads path (when non-empty) and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	fileLoaded := false
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		fileLoaded = true
	}

	// envconfig applies its default over zero values coming from the
	// file, so fields where zero is meaningful (echo off, unbounded
	// client limit) are snapshot and restored unless the env var is
	// actually set.
	fileEcho := cfg.Broker.EchoToPublisher
	fileMaxClients := cfg.Listen.MaxClients

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing environment config: %w", err)
	}

	if fileLoaded && os.Getenv("BUSLINE_ECHO_TO_PUBLISHER") == "" {
		cfg.Broker.EchoToPublisher = fileEcho
	}
	if fileLoaded && os.Getenv("BUSLINE_MAX_CLIENTS") == "" {
		cfg.Listen.MaxClients = fileMaxClients
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	return decoder.Decode(cfg)
}

func (c *Config) Validate() error {
	for name, addr := range map[string]string{
		"listen.tcp": c.Listen.TCP,
		"listen.udp": c.Listen.UDP,
	} {
		if addr == "" {
			return fmt.Errorf("%s is required", name)
		}
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if c.Listen.MaxClients < 0 {
		return fmt.Errorf("listen.max_clients must not be negative")
	}
	if c.Client.AckTimeout <= 0 {
		return fmt.Errorf("client.ack_timeout must be positive")
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration values.
type Config struct {
	Serial  SerialConfig  `yaml:"serial"`
	Traccar TraccarConfig `yaml:"traccar"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	NATS    NATSConfig    `yaml:"nats"`
	AMQP    AMQPConfig    `yaml:"amqp"`
	Home    HomeConfig    `yaml:"home"`
	Status  StatusConfig  `yaml:"status"`
	Web     WebConfig     `yaml:"web"`
	Display DisplayConfig `yaml:"display"`
	Log     LogConfig     `yaml:"log"`
}

type SerialConfig struct {
	Port         string `yaml:"port"`
	BaudRate     int    `yaml:"baud_rate"`
	MaxLineBytes int    `yaml:"max_line_bytes"`
}

// TraccarConfig points at the OsmAnd listener of a Traccar server
// (port 5055 by default).
type TraccarConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type MQTTConfig struct {
	Enable          bool   `yaml:"enable"`
	Broker          string `yaml:"broker"`
	TopicFix        string `yaml:"topic_fix"`
	ClientIDGateway string `yaml:"client_id_gateway"`
	ClientIDConsole string `yaml:"client_id_console"`
	ClientIDWeb     string `yaml:"client_id_web"`
	ClientIDDisplay string `yaml:"client_id_display"`
}

// NATSConfig is optional; an empty URL disables the NATS sink.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// AMQPConfig is optional; an empty URL disables the AMQP sink.
type AMQPConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// HomeConfig is the gateway's own position, used to annotate reports with
// the distance to the heard station.
type HomeConfig struct {
	Enable    bool    `yaml:"enable"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

type StatusConfig struct {
	Addr string `yaml:"addr"`
}

type WebConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

// DisplayConfig drives the SSD1306 panel, which answers at 0x3C.
type DisplayConfig struct {
	UpdateInterval time.Duration `yaml:"update_interval"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	FilePath   string `yaml:"file_path"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Package-level unexported singleton, set once by InitGlobal and read via Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the YAML configuration file, applies defaults and validates it.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = 9600
	}
	if c.Serial.MaxLineBytes <= 0 {
		c.Serial.MaxLineBytes = 4096
	}
	if c.Traccar.Timeout <= 0 {
		c.Traccar.Timeout = 5 * time.Second
	}
	if c.MQTT.TopicFix == "" {
		c.MQTT.TopicFix = "dprs/fix"
	}
	if c.MQTT.ClientIDGateway == "" {
		c.MQTT.ClientIDGateway = "dprs-gateway"
	}
	if c.MQTT.ClientIDConsole == "" {
		c.MQTT.ClientIDConsole = "dprs-console"
	}
	if c.MQTT.ClientIDWeb == "" {
		c.MQTT.ClientIDWeb = "dprs-web"
	}
	if c.MQTT.ClientIDDisplay == "" {
		c.MQTT.ClientIDDisplay = "dprs-display"
	}
	if c.NATS.Subject == "" {
		c.NATS.Subject = "dprs.fix"
	}
	if c.AMQP.Exchange == "" {
		c.AMQP.Exchange = "dprs"
	}
	if c.Web.Addr == "" {
		c.Web.Addr = ":8080"
	}
	if c.Web.StaticDir == "" {
		c.Web.StaticDir = "web"
	}
	if c.Display.UpdateInterval <= 0 {
		c.Display.UpdateInterval = time.Second
	}
	if c.Log.MaxAgeDays <= 0 {
		c.Log.MaxAgeDays = 30
	}
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.Serial.Port == "" {
		return fmt.Errorf("serial.port is required")
	}
	if c.Serial.BaudRate < 0 {
		return fmt.Errorf("serial.baud_rate must be > 0, got %d", c.Serial.BaudRate)
	}
	if c.Traccar.URL == "" {
		return fmt.Errorf("traccar.url is required")
	}
	if !strings.HasPrefix(c.Traccar.URL, "http://") && !strings.HasPrefix(c.Traccar.URL, "https://") {
		return fmt.Errorf("traccar.url must be an http(s) URL, got %q", c.Traccar.URL)
	}
	if c.MQTT.Enable && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt.enable is true")
	}
	if c.Home.Enable {
		if c.Home.Latitude < -90 || c.Home.Latitude > 90 {
			return fmt.Errorf("home.latitude must be within [-90,90], got %v", c.Home.Latitude)
		}
		if c.Home.Longitude < -180 || c.Home.Longitude > 180 {
			return fmt.Errorf("home.longitude must be within [-180,180], got %v", c.Home.Longitude)
		}
	}
	return nil
}

// GetLogLevel maps the configured level name onto a logrus level.
func (c *Config) GetLogLevel() log.Level {
	switch strings.ToUpper(c.Log.Level) {
	case "DEBUG":
		return log.DebugLevel
	case "WARN":
		return log.WarnLevel
	case "ERROR":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// InitGlobal initializes the global configuration from file.
// Only the first call loads; later calls return that first result.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

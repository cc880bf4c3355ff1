package config

import (
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"kitchenedge/orders"
	"kitchenedge/settings"
)

// Config is the top-level application configuration.
type Config struct {
	mu sync.Mutex `yaml:"-"`

	StationID string   `yaml:"station_id"`
	Displays  []string `yaml:"displays"`

	Web        WebConfig                `yaml:"web"`
	OrderStore OrderStoreConfig         `yaml:"order_store"`
	Database   DatabaseConfig           `yaml:"database"`
	Mongo      MongoConfig              `yaml:"mongo"`
	Redis      RedisConfig              `yaml:"redis"`
	Messaging  MessagingConfig          `yaml:"messaging"`
	Print      PrintConfig              `yaml:"print"`
	Feed       FeedConfig               `yaml:"feed"`
	Alarm      AlarmConfig              `yaml:"alarm"`
	Display    settings.Display         `yaml:"display"`
	Restaurant orders.RestaurantProfile `yaml:"restaurant"`
}

// WebConfig defines the web server settings.
type WebConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	SessionSecret string `yaml:"session_secret"`
}

// OrderStoreConfig selects where orders come from and how changes are pushed.
type OrderStoreConfig struct {
	Backend string        `yaml:"backend"` // "http", "sql" or "mongo"
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	Push    string        `yaml:"push"` // "sse", "messaging", "local" or "none"
}

// DatabaseConfig holds SQL connection settings for the sql backend.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // "sqlite" or "postgres"
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// RedisConfig holds the per-display settings store. An empty address
// disables it and every display uses the defaults.
type RedisConfig struct {
	Address   string `yaml:"address"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// MessagingConfig defines the messaging backend.
type MessagingConfig struct {
	Backend           string        `yaml:"backend"` // "mqtt", "kafka", "nats", "amqp" or "" for none
	MQTT              MQTTConfig    `yaml:"mqtt"`
	Kafka             KafkaConfig   `yaml:"kafka"`
	NATS              NATSConfig    `yaml:"nats"`
	AMQP              AMQPConfig    `yaml:"amqp"`
	OrderEventsTopic  string        `yaml:"order_events_topic"`
	HeartbeatTopic    string        `yaml:"heartbeat_topic"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ClientID          string        `yaml:"client_id"`
}

type MQTTConfig struct {
	Broker string `yaml:"broker"`
	Port   int    `yaml:"port"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type AMQPConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// PrintConfig defines print transports and dispatcher limits.
type PrintConfig struct {
	DedupWindow          time.Duration `yaml:"dedup_window"`
	InFlightTimeout      time.Duration `yaml:"in_flight_timeout"`
	HostAckTimeout       time.Duration `yaml:"host_ack_timeout"`
	BridgeURL            string        `yaml:"bridge_url"`
	BridgeTimeout        time.Duration `yaml:"bridge_timeout"`
	BluetoothTopicPrefix string        `yaml:"bluetooth_topic_prefix"`
	ThermalScheme        string        `yaml:"thermal_scheme"`
}

type FeedConfig struct {
	PullInterval time.Duration `yaml:"pull_interval"`
	Throttle     time.Duration `yaml:"throttle"`
	StaleAfter   time.Duration `yaml:"stale_after"`
}

type AlarmConfig struct {
	Interval time.Duration `yaml:"interval"`
	Pulses   int           `yaml:"pulses"`
}

// Defaults returns a Config with sane defaults.
func Defaults() *Config {
	return &Config{
		StationID: "kitchen-1",
		Displays:  []string{"kitchen"},
		Web: WebConfig{
			Host: "0.0.0.0",
			Port: 8090,
		},
		OrderStore: OrderStoreConfig{
			Backend: "http",
			BaseURL: "http://localhost:3002/api",
			Timeout: 10 * time.Second,
			Push:    "sse",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: "kitchenedge.db"},
			Postgres: PostgresConfig{
				Host:    "localhost",
				Port:    5432,
				SSLMode: "disable",
			},
		},
		Mongo: MongoConfig{
			URI:        "mongodb://localhost:27017",
			Database:   "kitchen",
			Collection: "orders",
		},
		Redis: RedisConfig{
			KeyPrefix: "kitchenedge:display:",
		},
		Messaging: MessagingConfig{
			OrderEventsTopic:  "kitchen/orders/events",
			HeartbeatTopic:    "kitchen/displays/heartbeat",
			HeartbeatInterval: 30 * time.Second,
			MQTT: MQTTConfig{
				Broker: "localhost",
				Port:   1883,
			},
			AMQP: AMQPConfig{Exchange: "kitchen"},
		},
		Print: PrintConfig{
			DedupWindow:          2 * time.Second,
			InFlightTimeout:      30 * time.Second,
			HostAckTimeout:       20 * time.Second,
			BridgeTimeout:        10 * time.Second,
			BluetoothTopicPrefix: "kitchen/printers/bt",
			ThermalScheme:        "kitchenprint",
		},
		Feed: FeedConfig{
			PullInterval: 15 * time.Second,
			Throttle:     5 * time.Second,
			StaleAfter:   90 * time.Second,
		},
		Alarm: AlarmConfig{
			Interval: 2500 * time.Millisecond,
			Pulses:   3,
		},
		Display: settings.Display{
			AutoPrint:  true,
			PrintMode:  "system-dialog",
			PaperWidth: 80,
			FontScale:  1,
		},
	}
}

// Load reads a YAML config file. If the file doesn't exist, defaults are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to a YAML file.
func (c *Config) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ClientID returns the messaging client id, derived from the station id
// when unset.
func (c *Config) ClientID() string {
	if c.Messaging.ClientID != "" {
		return c.Messaging.ClientID
	}
	return "kitchenedge-" + c.StationID
}

// Lock acquires the config mutex for multi-step mutations.
func (c *Config) Lock() { c.mu.Lock() }

// Unlock releases the config mutex.
func (c *Config) Unlock() { c.mu.Unlock() }

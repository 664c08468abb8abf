package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the service configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	ServiceBus ServiceBusConfig
	NewRelic   NewRelicConfig
	Telegram   TelegramConfig
	Monitor    MonitorConfig
	Heartbeat  HeartbeatConfig
}

// ServerConfig holds the HTTP server configuration
type ServerConfig struct {
	Port int
	Mode string // debug, release, test
}

// DatabaseConfig holds the database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds the Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// ServiceBusConfig holds the Azure Service Bus configuration
type ServiceBusConfig struct {
	ConnectionString string
	QueueName        string
}

// NewRelicConfig holds the New Relic configuration
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// TelegramConfig holds the Telegram notifier configuration. An empty
// BotToken disables outgoing notifications.
type TelegramConfig struct {
	BotToken  string
	PublicURL string
}

// MonitorConfig holds the liveness monitor configuration
type MonitorConfig struct {
	IntervalSeconds         int
	HeartbeatTimeoutSeconds int
}

// HeartbeatConfig holds the heartbeat ingestion configuration
type HeartbeatConfig struct {
	// Shared secret expected in the X-Heartbeat-Token header; empty disables the check.
	Secret string
	// AutoCreate controls whether a heartbeat from an unknown device
	// provisions it or is rejected.
	AutoCreate bool
}

// InitConfig initializes the configuration using Viper
func InitConfig(cfgFile string) error {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/powermon")
		viper.SetConfigName("config")
	}

	// Environment overrides, e.g. POWERMON_SERVER_PORT -> server.port
	viper.SetEnvPrefix("POWERMON")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("No config file found, using defaults and environment variables")
		} else {
			return fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}

	return nil
}

// setDefaults sets default values for configuration
func setDefaults() {
	viper.SetDefault("server.port", 8094)
	viper.SetDefault("server.mode", "debug")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "powermon")
	viper.SetDefault("database.password", "powermon")
	viper.SetDefault("database.dbname", "powermon_db")
	viper.SetDefault("database.sslmode", "disable")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// No default connection string for security
	viper.SetDefault("servicebus.queuename", "power-transitions")

	viper.SetDefault("newrelic.appname", "Power Monitor Local")
	viper.SetDefault("newrelic.enabled", false)

	viper.SetDefault("monitor.intervalseconds", 30)
	viper.SetDefault("monitor.heartbeattimeoutseconds", 120)

	viper.SetDefault("heartbeat.autocreate", true)
}

// Load loads the configuration
func Load() (*Config, error) {
	serverConfig := ServerConfig{
		Port: viper.GetInt("server.port"),
		Mode: viper.GetString("server.mode"),
	}

	dbConfig := DatabaseConfig{
		Host:     viper.GetString("database.host"),
		Port:     viper.GetInt("database.port"),
		User:     viper.GetString("database.user"),
		Password: viper.GetString("database.password"),
		DBName:   viper.GetString("database.dbname"),
		SSLMode:  viper.GetString("database.sslmode"),
	}

	redisConfig := RedisConfig{
		Host:     viper.GetString("redis.host"),
		Port:     viper.GetInt("redis.port"),
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	}

	serviceBusConfig := ServiceBusConfig{
		ConnectionString: viper.GetString("servicebus.connectionstring"),
		QueueName:        viper.GetString("servicebus.queuename"),
	}

	newRelicConfig := NewRelicConfig{
		AppName:    viper.GetString("newrelic.appname"),
		LicenseKey: viper.GetString("newrelic.licensekey"),
		Enabled:    viper.GetBool("newrelic.enabled"),
	}

	telegramConfig := TelegramConfig{
		BotToken:  viper.GetString("telegram.bottoken"),
		PublicURL: viper.GetString("telegram.publicurl"),
	}

	monitorConfig := MonitorConfig{
		IntervalSeconds:         viper.GetInt("monitor.intervalseconds"),
		HeartbeatTimeoutSeconds: viper.GetInt("monitor.heartbeattimeoutseconds"),
	}

	heartbeatConfig := HeartbeatConfig{
		Secret:     viper.GetString("heartbeat.secret"),
		AutoCreate: viper.GetBool("heartbeat.autocreate"),
	}

	return &Config{
		Server:     serverConfig,
		Database:   dbConfig,
		Redis:      redisConfig,
		ServiceBus: serviceBusConfig,
		NewRelic:   newRelicConfig,
		Telegram:   telegramConfig,
		Monitor:    monitorConfig,
		Heartbeat:  heartbeatConfig,
	}, nil
}

// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Registry RegistryConfig `mapstructure:"registry"`
	Scan     ScanConfig     `mapstructure:"scan"`
	Acquire  AcquireConfig  `mapstructure:"acquire"`
	Harvest  HarvestConfig  `mapstructure:"harvest"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Security SecurityConfig `mapstructure:"security"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Version     string `mapstructure:"version" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required"`
	Debug       bool   `mapstructure:"debug"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host" validate:"required"`
	Port         string        `mapstructure:"port" validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level" validate:"required"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// RegistryConfig represents the persisted device store configuration
type RegistryConfig struct {
	DataDir       string `mapstructure:"data_dir"`
	DevicesFile   string `mapstructure:"devices_file"`
	TemplatesFile string `mapstructure:"templates_file"`
}

// ScanConfig represents scan orchestration configuration
type ScanConfig struct {
	// MaxWorkers bounds in-flight port probes; most OSes serialize or
	// heavily contend serial-port opens.
	MaxWorkers      int           `mapstructure:"max_workers"`
	MonitorInterval time.Duration `mapstructure:"monitor_interval"`
	StopTimeout     time.Duration `mapstructure:"stop_timeout"`
	USBEnrichment   bool          `mapstructure:"usb_enrichment"`
}

// AcquireConfig represents UID acquisition tuning. The retry counts and read
// windows are empirically tuned defaults carried over from field use.
type AcquireConfig struct {
	TextBaudRate      int           `mapstructure:"text_baud_rate"`
	TextReadWindow    time.Duration `mapstructure:"text_read_window"`
	TextRetries       int           `mapstructure:"text_retries"`
	TextRetryDelay    time.Duration `mapstructure:"text_retry_delay"`
	BootloaderTimeout time.Duration `mapstructure:"bootloader_timeout"`
	ToolTimeout       time.Duration `mapstructure:"tool_timeout"`
	ToolPaths         ToolPaths     `mapstructure:"tool_paths"`
}

// ToolPaths holds explicit overrides for external programmer binaries.
// Empty values fall back to install-path globbing, then PATH lookup.
type ToolPaths struct {
	ProgrammerCLI string `mapstructure:"programmer_cli"`
	OpenOCD       string `mapstructure:"openocd"`
	JLink         string `mapstructure:"jlink"`
	DfuUtil       string `mapstructure:"dfu_util"`
}

// HarvestConfig represents metadata harvesting configuration
type HarvestConfig struct {
	BaudRates  []int         `mapstructure:"baud_rates"`
	MaxBytes   int           `mapstructure:"max_bytes"`
	ReadWindow time.Duration `mapstructure:"read_window"`
}

// JournalConfig represents the optional provisioning journal database
type JournalConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	DBName       string        `mapstructure:"dbname"`
	SSLMode      string        `mapstructure:"sslmode"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	MaxLifetime  time.Duration `mapstructure:"max_lifetime"`
}

// SecurityConfig represents HTTP security configuration
type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(defaultAppDataDir())

	// Environment variable support
	viper.SetEnvPrefix("BOARD_SERVICE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// A missing config file is fine: defaults plus env cover everything.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// defaultAppDataDir returns the platform-appropriate application data path.
func defaultAppDataDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "board-service")
		}
	case "darwin":
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, "Library", "Application Support", "board-service")
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "board-service")
	}
	return "./data"
}

// setDefaults sets default configuration values
func setDefaults() {
	dataDir := defaultAppDataDir()

	// App defaults
	viper.SetDefault("app.name", "board-service")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)

	// Server defaults
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", "8086")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
	viper.SetDefault("logging.max_size", 100)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age", 28)
	viper.SetDefault("logging.compress", true)

	// Registry defaults
	viper.SetDefault("registry.data_dir", dataDir)
	viper.SetDefault("registry.devices_file", "devices.json")
	viper.SetDefault("registry.templates_file", "templates.json")

	// Scan defaults
	viper.SetDefault("scan.max_workers", 10)
	viper.SetDefault("scan.monitor_interval", "5s")
	viper.SetDefault("scan.stop_timeout", "30s")
	viper.SetDefault("scan.usb_enrichment", true)

	// Acquisition defaults (field-tuned; see AcquireConfig)
	viper.SetDefault("acquire.text_baud_rate", 115200)
	viper.SetDefault("acquire.text_read_window", "3s")
	viper.SetDefault("acquire.text_retries", 5)
	viper.SetDefault("acquire.text_retry_delay", "500ms")
	viper.SetDefault("acquire.bootloader_timeout", "2s")
	viper.SetDefault("acquire.tool_timeout", "20s")

	// Harvest defaults
	viper.SetDefault("harvest.baud_rates", []int{115200, 9600})
	viper.SetDefault("harvest.max_bytes", 768)
	viper.SetDefault("harvest.read_window", "2s")

	// Journal defaults
	viper.SetDefault("journal.enabled", false)
	viper.SetDefault("journal.host", "localhost")
	viper.SetDefault("journal.port", 5432)
	viper.SetDefault("journal.user", "postgres")
	viper.SetDefault("journal.password", "postgres")
	viper.SetDefault("journal.dbname", "board_service")
	viper.SetDefault("journal.sslmode", "disable")
	viper.SetDefault("journal.max_open_conns", 10)
	viper.SetDefault("journal.max_idle_conns", 2)
	viper.SetDefault("journal.max_lifetime", "5m")

	// Security defaults
	viper.SetDefault("security.allowed_origins", []string{"http://localhost:5173"})
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if config.Scan.MaxWorkers < 1 {
		return fmt.Errorf("scan.max_workers must be at least 1")
	}
	if config.Acquire.TextRetries < 1 {
		return fmt.Errorf("acquire.text_retries must be at least 1")
	}
	if len(config.Harvest.BaudRates) == 0 {
		return fmt.Errorf("harvest.baud_rates must not be empty")
	}

	validEnvs := []string{"development", "staging", "production", "test"}
	isValidEnv := false
	for _, env := range validEnvs {
		if config.App.Environment == env {
			isValidEnv = true
			break
		}
	}
	if !isValidEnv {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	isValidLevel := false
	for _, level := range validLevels {
		if config.Logging.Level == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	return nil
}

// DevicesPath returns the absolute path of the persisted device store.
func (c *Config) DevicesPath() string {
	return filepath.Join(c.Registry.DataDir, c.Registry.DevicesFile)
}

// TemplatesPath returns the absolute path of the persisted template store.
func (c *Config) TemplatesPath() string {
	return filepath.Join(c.Registry.DataDir, c.Registry.TemplatesFile)
}

// GetJournalDSN returns the journal database connection string.
func (c *Config) GetJournalDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Journal.Host, c.Journal.Port, c.Journal.User,
		c.Journal.Password, c.Journal.DBName, c.Journal.SSLMode)
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

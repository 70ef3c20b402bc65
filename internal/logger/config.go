package logger

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds logging configuration
type Config struct {
	Level          string `yaml:"level"`
	ConsoleEnabled bool   `yaml:"console_enabled"`
	ConsoleFormat  string `yaml:"console_format"`
	ConsoleTarget  string `yaml:"console_target"` // stderr (default) or stdout
	FileEnabled    bool   `yaml:"file_enabled"`
	FilePath       string `yaml:"file_path"`
	FileFormat     string `yaml:"file_format"`
	FileMaxSizeMB  int    `yaml:"file_max_size_mb"`
	FileMaxBackups int    `yaml:"file_max_backups"`
	FileMaxAgeDays int    `yaml:"file_max_age_days"`
	FileCompress   bool   `yaml:"file_compress"`

	// WireTrace logs every line sent to or received from the relay at DEBUG.
	WireTrace bool `yaml:"wire_trace"`
}

// LoggingConfig wraps the Config for YAML parsing
type LoggingConfig struct {
	Logging Config `yaml:"logging"`
}

// DefaultConfig returns console logging at INFO with file rotation prepared
// but disabled.
func DefaultConfig() Config {
	return Config{
		Level:          "INFO",
		ConsoleEnabled: true,
		ConsoleFormat:  "text",
		ConsoleTarget:  "stderr",
		FileEnabled:    false,
		FilePath:       "logs/tlcs.log",
		FileFormat:     "text",
		FileMaxSizeMB:  1,
		FileMaxBackups: 5,
		FileMaxAgeDays: 30,
	}
}

// LoadConfig loads logging configuration from a YAML file
// and applies environment variable overrides
func LoadConfig(configPath string) (Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err == nil {
			var loggingConfig LoggingConfig
			if err := yaml.Unmarshal(data, &loggingConfig); err == nil {
				merge(&config, loggingConfig.Logging)
			}
		}
		// Silently use defaults if file doesn't exist or can't be parsed
	}

	applyEnv(&config)
	return config, nil
}

func merge(config *Config, loaded Config) {
	if loaded.Level != "" {
		config.Level = loaded.Level
	}
	// Only override bool if explicitly set in YAML
	config.ConsoleEnabled = loaded.ConsoleEnabled
	if loaded.ConsoleFormat != "" {
		config.ConsoleFormat = loaded.ConsoleFormat
	}
	if loaded.ConsoleTarget != "" {
		config.ConsoleTarget = loaded.ConsoleTarget
	}
	config.FileEnabled = loaded.FileEnabled
	if loaded.FilePath != "" {
		config.FilePath = loaded.FilePath
	}
	if loaded.FileFormat != "" {
		config.FileFormat = loaded.FileFormat
	}
	if loaded.FileMaxSizeMB > 0 {
		config.FileMaxSizeMB = loaded.FileMaxSizeMB
	}
	if loaded.FileMaxBackups > 0 {
		config.FileMaxBackups = loaded.FileMaxBackups
	}
	if loaded.FileMaxAgeDays > 0 {
		config.FileMaxAgeDays = loaded.FileMaxAgeDays
	}
	config.FileCompress = loaded.FileCompress
	config.WireTrace = loaded.WireTrace
}

func applyEnv(config *Config) {
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.Level = logLevel
	}

	if consoleFormat := os.Getenv("LOG_CONSOLE_FORMAT"); consoleFormat != "" {
		config.ConsoleFormat = consoleFormat
	}

	if fileEnabled := os.Getenv("LOG_FILE_ENABLED"); fileEnabled != "" {
		if enabled, err := strconv.ParseBool(fileEnabled); err == nil {
			config.FileEnabled = enabled
		}
	}

	if target := os.Getenv("LOG_CONSOLE_TARGET"); target != "" {
		config.ConsoleTarget = target
	}

	if filePath := os.Getenv("LOG_FILE_PATH"); filePath != "" {
		config.FilePath = filePath
	}

	if wireTrace := os.Getenv("LOG_WIRE_TRACE"); wireTrace != "" {
		if enabled, err := strconv.ParseBool(wireTrace); err == nil {
			config.WireTrace = enabled
		}
	}
}

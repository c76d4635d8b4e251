// Package config defines the daemon configuration, populated from
// viper-bound flags and an optional config file in cmd/dispatchd.
package config

import "fmt"

// StorageType selects the checkpoint store backend.
type StorageType string

const (
	StorageMemory StorageType = "memory"
	StorageSQLite StorageType = "sqlite"
	StorageMySQL  StorageType = "mysql"
)

// ClassifierType selects the intent classifier implementation.
type ClassifierType string

const (
	ClassifierHeuristic ClassifierType = "heuristic"
	ClassifierAnthropic ClassifierType = "anthropic"
	ClassifierOpenAI    ClassifierType = "openai"
	ClassifierGoogle    ClassifierType = "google"
)

// Config is the full daemon configuration.
type Config struct {
	HTTPPort int

	StorageType StorageType
	SQLitePath  string // sqlite database file
	MySQLDSN    string // go-sql-driver DSN, parseTime=true recommended

	ClassifierType  ClassifierType
	ClassifierModel string
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GoogleAPIKey    string

	NotifyURL   string // notification gateway endpoint; empty uses a mock
	NotifyToken string

	LogLevel string
	LogJSON  bool

	MaxSteps int
	EmitJSON bool // event log output as JSONL instead of text
}

// Validate checks cross-field consistency before startup.
func (c Config) Validate() error {
	switch c.StorageType {
	case StorageMemory:
	case StorageSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite storage requires a database path")
		}
	case StorageMySQL:
		if c.MySQLDSN == "" {
			return fmt.Errorf("mysql storage requires a dsn")
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.StorageType)
	}

	switch c.ClassifierType {
	case ClassifierHeuristic:
	case ClassifierAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("anthropic classifier requires an api key")
		}
	case ClassifierOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("openai classifier requires an api key")
		}
	case ClassifierGoogle:
		// google falls back to GOOGLE_API_KEY at client construction
	default:
		return fmt.Errorf("unknown classifier type %q", c.ClassifierType)
	}

	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("http port %d out of range", c.HTTPPort)
	}
	return nil
}

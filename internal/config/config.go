// Package config provides centralized configuration management for the ETL job.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Config holds all job configuration.
// All settings can be configured via environment variables.
type Config struct {
	Source   SourceConfig
	Mongo    MongoConfig
	Database DatabaseConfig
	Tables   TablesConfig
	Run      RunConfig
	Logging  LoggingConfig
}

// SourceConfig holds the local file inputs.
type SourceConfig struct {
	// ComplaintsPath is the complaints CSV export (default: data/complaints.csv)
	ComplaintsPath string `env:"COMPLAINTS_CSV" default:"data/complaints.csv"`
}

// MongoConfig holds the demographics document store settings.
type MongoConfig struct {
	// URI is the MongoDB connection string (default: mongodb://localhost:27017/)
	URI string `env:"MONGO_URI" default:"mongodb://localhost:27017/"`

	// Database is the database holding the demographics (default: demographics)
	Database string `env:"MONGO_DATABASE" default:"demographics"`

	// Collection is the demographics collection (default: us_demo)
	Collection string `env:"MONGO_COLLECTION" default:"us_demo"`

	// Fields are the nested year-keyed fields to project, comma-separated
	Fields []string `env:"MONGO_FIELDS" default:"unemployment.employed,unemployment.unemployed,population_by_age.total.18_over,population_by_age.total.65_over"`

	// YearFrom is the first projected year (default: 2011)
	YearFrom int `env:"MONGO_YEAR_FROM" default:"2011"`

	// YearTo is the last projected year, inclusive (default: 2020)
	YearTo int `env:"MONGO_YEAR_TO" default:"2020"`

	// Timeout bounds connecting and querying (default: 30s)
	Timeout time.Duration `env:"MONGO_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds the destination PostgreSQL settings.
type DatabaseConfig struct {
	// URL is a full PostgreSQL connection string. When set it takes
	// precedence over the individual fields below.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	User     string `env:"DB_USER" default:"postgres"`
	Password string `env:"DB_PASSWORD" default:"root"`
	Host     string `env:"DB_HOST" default:"localhost"`
	Port     int    `env:"DB_PORT" default:"5432"`
	Name     string `env:"DB_NAME" default:"test1"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// TablesConfig names the destination tables.
type TablesConfig struct {
	Complaints   string `env:"TABLE_COMPLAINTS" default:"complaints"`
	Demographics string `env:"TABLE_DEMOGRAPHICS" default:"demographics"`
}

// RunConfig holds per-run behaviour.
type RunConfig struct {
	// Seed drives the random imputation. 0 seeds from the clock.
	Seed int64 `env:"ETL_SEED" default:"0"`

	// DryRun stops after the transform stage without touching PostgreSQL.
	DryRun bool `env:"ETL_DRY_RUN" default:"false"`

	// StateCodes rewrites state names in both tables to postal codes.
	StateCodes bool `env:"ETL_STATE_CODES" default:"false"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

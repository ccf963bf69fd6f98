// Package config loads the runtime configuration and opens the PostgreSQL connections for the library backend.
//
// Values come from an optional YAML file, overridden by LIBRARY_* environment variables
// (e.g. LIBRARY_DATABASE_DSN for database.dsn), on top of built-in defaults.
package config

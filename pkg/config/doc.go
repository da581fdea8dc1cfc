// Package config loads, defaults, validates and watches the taskwarden
// configuration file.
//
// Configuration is YAML with a fixed loading sequence: read the file,
// apply defaults for every zero-valued field, apply TASKWARDEN_*
// environment overrides, validate the result. Environment variables
// always win over file values.
//
// Watch re-reads the file on change with debouncing, so rapid editor
// saves trigger a single reload. Only rate-limit ceilings are applied at
// runtime; other sections require a restart.
package config

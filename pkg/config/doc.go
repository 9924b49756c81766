// Package config loads and validates the runtime configuration.
//
// Configuration comes from a YAML file with environment variable
// overrides. The loading sequence is:
//
//  1. Load YAML from file
//  2. Apply default values
//  3. Apply GANYMEDE_* environment overrides
//  4. Validate the final configuration
//
// Environment variables always take precedence over file-based
// configuration and follow the naming convention GANYMEDE_SECTION_FIELD
// (e.g. GANYMEDE_STORAGE_BACKEND).
package config

// Package file provides a file-based implementation of the ConfigStore
// port. Configuration is persisted as TOML and nested tables are exposed
// through dot-notation keys.
package file

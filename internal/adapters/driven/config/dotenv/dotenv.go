// Package dotenv loads environment configuration from .env files.
// Variables already present in the process environment always win.
package dotenv

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
)

var loadOnce sync.Once

// Load reads the given .env files into the process environment.
// Missing files are tolerated so the process can run on real environment
// variables alone. With no arguments it loads ./.env followed by
// ~/.knowledge-core/.env.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = defaultPaths()
	}

	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", path, err)
		}
	}
	return nil
}

// Getenv returns the value of an environment variable, loading the default
// .env files first. The load happens once per process.
func Getenv(key string) string {
	loadOnce.Do(func() {
		_ = Load()
	})
	return os.Getenv(key)
}

func defaultPaths() []string {
	paths := []string{".env"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".knowledge-core", ".env"))
	}
	return paths
}

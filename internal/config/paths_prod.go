//go:build prod

package config

import (
	"log"
	"os"
	"path/filepath"
)

// DefaultDataDir returns the data directory for production mode, inside the
// user's config directory.
func DefaultDataDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		log.Printf("Warning: Failed to get user config dir: %v. Using fallback.", err)
		return ".kharazmi"
	}
	return filepath.Join(configDir, "kharazmi")
}

func IsDevelopment() bool {
	return false
}

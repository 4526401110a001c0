//go:build !prod

package config

// DefaultDataDir returns the data directory for development mode.
// Settings, journal and logs live under the working directory for easy inspection.
func DefaultDataDir() string {
	return ".kharazmi"
}

func IsDevelopment() bool {
	return true
}

package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadDotenv reads .env files and sets variables that are not already
// defined. Missing files are silently ignored; existing env vars are never
// overridden.
func LoadDotenv(paths ...string) error {
	var present []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			present = append(present, p)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

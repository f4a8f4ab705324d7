package utils

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnvAsBool parses a boolean environment variable with a default.
func GetEnvAsBool(key string, defaultVal bool) bool {
	val := strings.ToLower(os.Getenv(key))
	switch val {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return defaultVal
	}
}

// GetEnvAsInt retrieves an environment variable as an integer with a default fallback.
func GetEnvAsInt(name string, defaultVal int) int {
	if valStr := os.Getenv(name); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			return val
		}
	}
	return defaultVal
}

// GetEnvAsFloat retrieves an environment variable as a float64 with a default fallback.
func GetEnvAsFloat(name string, defaultVal float64) float64 {
	if valStr := os.Getenv(name); valStr != "" {
		if val, err := strconv.ParseFloat(valStr, 64); err == nil {
			return val
		}
	}
	return defaultVal
}

// GetEnvAsDuration parses a Go duration string ("12h", "5m"). Non-positive or
// malformed values fall back to defaultVal.
func GetEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	if valStr := strings.TrimSpace(os.Getenv(name)); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil && val > 0 {
			return val
		}
	}
	return defaultVal
}

// GetEnvAsList splits a comma separated variable, trimming blanks and
// dropping empty items.
func GetEnvAsList(name string, defaultVal []string) []string {
	valStr := os.Getenv(name)
	if strings.TrimSpace(valStr) == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(valStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

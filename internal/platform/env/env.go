package env

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

func String(key string, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func Duration(key string, def time.Duration) (time.Duration, error) {
	if v, ok := lookup(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("parse %s: %w", key, err)
		}
		return d, nil
	}
	return def, nil
}

// Seconds reads a fractional number of seconds, the unit older GeoBench
// releases used for recording durations.
func Seconds(key string, def time.Duration) (time.Duration, error) {
	if v, ok := lookup(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("parse %s: %w", key, err)
		}
		if f < 0 {
			return 0, fmt.Errorf("parse %s: negative seconds", key)
		}
		return time.Duration(f * float64(time.Second)), nil
	}
	return def, nil
}

func Bool(key string, def bool) (bool, error) {
	if v, ok := lookup(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("parse %s: %w", key, err)
		}
		return b, nil
	}
	return def, nil
}

func Int(key string, def int) (int, error) {
	if v, ok := lookup(key); ok {
		i, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("parse %s: %w", key, err)
		}
		return i, nil
	}
	return def, nil
}

// Enum returns the lower-cased value of key, which must be one of allowed.
func Enum(key string, def string, allowed ...string) (string, error) {
	v, ok := lookup(key)
	if !ok {
		return def, nil
	}
	v = strings.ToLower(v)
	for _, candidate := range allowed {
		if v == candidate {
			return v, nil
		}
	}
	return "", fmt.Errorf("parse %s: %q is not one of %s", key, v, strings.Join(allowed, ", "))
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	return v, true
}

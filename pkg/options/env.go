package options

import (
	"os"
	"strconv"
	"strings"
)

// LookupEnv returns the first non-empty value among the given environment variables.
func LookupEnv(keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// EnvString overrides *dst from the environment while it still holds def.
// Values coming from a config file or a flag are left untouched.
func EnvString(dst *string, def string, keys ...string) {
	if *dst != def {
		return
	}
	if v, ok := LookupEnv(keys...); ok {
		*dst = v
	}
}

// EnvInt is EnvString for integers. Unparsable values are ignored.
func EnvInt(dst *int, def int, keys ...string) {
	if *dst != def {
		return
	}
	if v, ok := LookupEnv(keys...); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// EnvFloat is EnvString for floats. Unparsable values are ignored.
func EnvFloat(dst *float64, def float64, keys ...string) {
	if *dst != def {
		return
	}
	if v, ok := LookupEnv(keys...); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

// Package env centralizes access to environment-backed configuration.
package env

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

var (
	mu          sync.Mutex
	validations = map[string]string{}
)

func init() {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
}

// RegisterValidation declares a validation rule for a key. Rules are checked
// by Validate, typically called once at process start.
func RegisterValidation(key, rule string) {
	mu.Lock()
	defer mu.Unlock()
	validations[key] = rule
}

// Validate checks every registered rule against the current environment.
func Validate() error {
	mu.Lock()
	defer mu.Unlock()
	for key, rule := range validations {
		if rule == "required" && viper.GetString(key) == "" {
			return fmt.Errorf("required env var %s is not set", key)
		}
	}
	return nil
}

// GetString returns the string value of the env var named by key.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetStringOrDefault returns the value of key, or def if unset.
func GetStringOrDefault(key, def string) string {
	if v := viper.GetString(key); v != "" {
		return v
	}
	return def
}

// GetInt returns the int value of the env var named by key.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetIntOrDefault returns the value of key, or def if unset or unparsable.
func GetIntOrDefault(key string, def int) int {
	if !viper.IsSet(key) {
		return def
	}
	return viper.GetInt(key)
}

// GetBool returns the bool value of the env var named by key.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

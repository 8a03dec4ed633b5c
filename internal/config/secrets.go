package config

import (
	"fmt"
	"os"
	"strings"
)

// MQTTPasswordEnv names the environment variable that overrides the broker
// password. MQTTPasswordEnv+"_FILE" takes precedence over it.
const MQTTPasswordEnv = "PROGSIM_MQTT_PASSWORD"

// ResolveSecret reads a secret value using the *_FILE convention.
// If envName+"_FILE" is set, reads the secret from that file path.
// Otherwise falls back to the value of envName.
// Returns empty string if neither is set.
// Returns an error if the file cannot be read.
func ResolveSecret(envName string) (string, error) {
	fileEnv := envName + "_FILE"
	if filePath := os.Getenv(fileEnv); filePath != "" {
		content, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("failed to read secret from %s=%s: %w", fileEnv, filePath, err)
		}
		return strings.TrimSpace(string(content)), nil
	}

	return os.Getenv(envName), nil
}

// PasswordFromEnv returns the broker password: the environment (file first, then
// value) wins over the password written in the config file.
func (m MQTTConfig) PasswordFromEnv() (string, error) {
	secret, err := ResolveSecret(MQTTPasswordEnv)
	if err != nil {
		return "", err
	}
	if secret != "" {
		return secret, nil
	}
	return m.Password, nil
}

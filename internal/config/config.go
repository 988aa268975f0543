// Package config loads and resolves the application configuration.
package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Config is the root configuration.
type Config struct {
	API      APIConfig      `yaml:"api,omitempty"`
	Personas PersonasConfig `yaml:"personas,omitempty"`
	Gateway  GatewayConfig  `yaml:"gateway,omitempty"`
	Session  SessionConfig  `yaml:"session,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
}

// APIConfig configures access to the hosted model endpoint.
type APIConfig struct {
	Key   string `yaml:"key,omitempty"`   // supports ${ENV_VAR} references
	Model string `yaml:"model,omitempty"` // model id, e.g. "gemini-2.0-flash"
}

// PersonasConfig selects the active persona and allows overriding the
// system instruction text per persona.
type PersonasConfig struct {
	Default      string            `yaml:"default,omitempty"` // "precise" | "default" | "creative"
	Instructions map[string]string `yaml:"instructions,omitempty"`
}

// GatewayConfig controls the local WebSocket gateway for UI collaborators.
type GatewayConfig struct {
	Port int    `yaml:"port,omitempty"`
	Bind string `yaml:"bind,omitempty"` // "loopback" | "lan"
}

// SessionConfig controls session persistence.
type SessionConfig struct {
	Store string `yaml:"store,omitempty"` // "sqlite" | "memory"
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"`
}

// defaultInstruction is the base system instruction shared by all personas.
// Prompt wording is a configuration value; operators override it per persona
// via personas.instructions.
const defaultInstruction = "You are an account research assistant. You help the " +
	"user build a structured account plan for a target company. Use the " +
	"updateSection tool to record findings, startNewResearch to begin a new " +
	"account, and generateChart to visualize numeric comparisons. Cite sources " +
	"for factual claims."

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		API: APIConfig{
			Key:   "${GEMINI_API_KEY}",
			Model: "gemini-2.0-flash",
		},
		Personas: PersonasConfig{
			Default: "default",
		},
		Gateway: GatewayConfig{
			Port: 18790,
			Bind: "loopback",
		},
		Session: SessionConfig{
			Store: "sqlite",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Instruction returns the system instruction for the named persona, falling
// back to the built-in default.
func (c Config) Instruction(persona string) string {
	if s, ok := c.Personas.Instructions[persona]; ok && s != "" {
		return s
	}
	return defaultInstruction
}

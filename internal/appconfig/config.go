package appconfig

import (
	"os"
	"path/filepath"

	"pkt.systems/cmdbot/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int            `mapstructure:"config_version" yaml:"config_version"`
	Bot           BotConfig      `mapstructure:"bot" yaml:"bot"`
	Commands      CommandsConfig `mapstructure:"commands" yaml:"commands"`
	Texts         TextsConfig    `mapstructure:"texts" yaml:"texts"`
	Status        StatusConfig   `mapstructure:"status" yaml:"status"`
	Logging       LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// BotConfig controls the interactive front end.
type BotConfig struct {
	Name        string `mapstructure:"name" yaml:"name"`
	Prompt      string `mapstructure:"prompt" yaml:"prompt"`
	HistoryFile string `mapstructure:"history_file" yaml:"history_file"`
}

// CommandsConfig controls keyword matching and parameter handling.
type CommandsConfig struct {
	CaseInsensitive        bool     `mapstructure:"case_insensitive" yaml:"case_insensitive"`
	PayloadParameter       string   `mapstructure:"payload_parameter" yaml:"payload_parameter"`
	ParameterIgnore        []string `mapstructure:"parameter_ignore" yaml:"parameter_ignore"`
	ContextIgnore          []string `mapstructure:"context_ignore" yaml:"context_ignore"`
	DefaultClosed          []string `mapstructure:"default_closed" yaml:"default_closed"`
	DisableDefaultFallback bool     `mapstructure:"disable_default_fallback" yaml:"disable_default_fallback"`
}

// TextsConfig overrides the canned responses.
type TextsConfig struct {
	GeneralResponse string `mapstructure:"general_response" yaml:"general_response"`
	PossibleCommand string `mapstructure:"possible_command" yaml:"possible_command"`
	CommandClosed   string `mapstructure:"command_closed" yaml:"command_closed"`
}

// StatusConfig points at the hot-reloaded status file.
type StatusConfig struct {
	File       string `mapstructure:"file" yaml:"file"`
	Watch      bool   `mapstructure:"watch" yaml:"watch"`
	DebounceMS int    `mapstructure:"debounce_ms" yaml:"debounce_ms"`
}

// LoggingConfig controls audit logging behavior.
type LoggingConfig struct {
	DisableAuditTrails bool `mapstructure:"disable_audit_trails" yaml:"disable_audit_trails"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		Bot: BotConfig{
			Name:        "cmdbot",
			Prompt:      "> ",
			HistoryFile: filepath.Join(home, ".cmdbot", "history"),
		},
		Commands: CommandsConfig{
			CaseInsensitive:  false,
			PayloadParameter: schema.DefaultPayloadParameter,
			ParameterIgnore:  []string{"self"},
			ContextIgnore:    []string{"user"},
			DefaultClosed:    []string{"debug"},
		},
		Texts: TextsConfig{
			GeneralResponse: schema.DefaultTextGeneralResponse,
			PossibleCommand: schema.DefaultTextPossibleCommand,
			CommandClosed:   schema.DefaultTextCommandClosed,
		},
		Status: StatusConfig{
			File:       filepath.Join(home, ".cmdbot", "status.yaml"),
			Watch:      true,
			DebounceMS: 100,
		},
		Logging: LoggingConfig{
			DisableAuditTrails: false,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cmdbot", "config.yaml"), nil
}

// ManagerConfig maps the file configuration onto the manager configuration.
func (c Config) ManagerConfig() schema.Config {
	return schema.Config{
		TextGeneralResponse:    c.Texts.GeneralResponse,
		TextPossibleCommand:    c.Texts.PossibleCommand,
		TextCommandClosed:      c.Texts.CommandClosed,
		ParameterIgnore:        c.Commands.ParameterIgnore,
		ContextIgnore:          c.Commands.ContextIgnore,
		PayloadParameter:       c.Commands.PayloadParameter,
		CaseInsensitive:        c.Commands.CaseInsensitive,
		DisableDefaultFallback: c.Commands.DisableDefaultFallback,
		DisableAuditLogging:    c.Logging.DisableAuditTrails,
	}
}

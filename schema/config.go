package schema

import (
	"errors"
	"strings"
)

const (
	// DefaultTextGeneralResponse is returned when neither a command nor a similar one matches.
	DefaultTextGeneralResponse = "Copy! But the bot can't understand it."
	// DefaultTextPossibleCommand prefixes the list of similar commands.
	DefaultTextPossibleCommand = "Did you misspell it? Possible commands are:"
	// DefaultTextCommandClosed is returned when the matched command is disabled.
	DefaultTextCommandClosed = "Sorry, this command is currently disabled."
	// DefaultPayloadParameter names the argument that receives the input remainder.
	DefaultPayloadParameter = "payload"
	// DefaultFallbackPriority is used by Manager.Fallback.
	DefaultFallbackPriority = 10
	// HelpFallbackPriority is the priority of the built-in similar-command fallback.
	HelpFallbackPriority = -1
)

// Config defines dispatch texts and parameter handling for a manager.
type Config struct {
	TextGeneralResponse string
	TextPossibleCommand string
	TextCommandClosed   string
	// ParameterIgnore lists parameters never passed to handlers.
	ParameterIgnore []string
	// ContextIgnore lists parameters that receive caller arguments instead of contexts.
	ContextIgnore    []string
	PayloadParameter string
	// CaseInsensitive folds keywords at registration and lookup.
	CaseInsensitive bool
	// DisableDefaultFallback skips registering the similar-command fallback.
	DisableDefaultFallback bool
	// DisableAuditLogging disables audit trail debug logs for dispatched input.
	DisableAuditLogging bool
}

// NormalizeConfig applies defaults and validates the config.
func NormalizeConfig(cfg Config) (Config, error) {
	if cfg.TextGeneralResponse == "" {
		cfg.TextGeneralResponse = DefaultTextGeneralResponse
	}
	if cfg.TextPossibleCommand == "" {
		cfg.TextPossibleCommand = DefaultTextPossibleCommand
	}
	if cfg.TextCommandClosed == "" {
		cfg.TextCommandClosed = DefaultTextCommandClosed
	}
	cfg.PayloadParameter = strings.TrimSpace(cfg.PayloadParameter)
	if cfg.PayloadParameter == "" {
		cfg.PayloadParameter = DefaultPayloadParameter
	}
	if cfg.ParameterIgnore == nil {
		cfg.ParameterIgnore = []string{"self"}
	}
	for _, name := range cfg.ParameterIgnore {
		if name == cfg.PayloadParameter {
			return Config{}, errors.New("payload parameter must not be ignored")
		}
	}
	return cfg, nil
}

package appconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
	"pkt.systems/cmdbot/schema"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("bot.name", cfg.Bot.Name)
	v.SetDefault("bot.prompt", cfg.Bot.Prompt)
	v.SetDefault("bot.history_file", cfg.Bot.HistoryFile)
	v.SetDefault("commands.case_insensitive", cfg.Commands.CaseInsensitive)
	v.SetDefault("commands.payload_parameter", cfg.Commands.PayloadParameter)
	v.SetDefault("commands.parameter_ignore", cfg.Commands.ParameterIgnore)
	v.SetDefault("commands.context_ignore", cfg.Commands.ContextIgnore)
	v.SetDefault("commands.default_closed", cfg.Commands.DefaultClosed)
	v.SetDefault("commands.disable_default_fallback", cfg.Commands.DisableDefaultFallback)
	v.SetDefault("texts.general_response", cfg.Texts.GeneralResponse)
	v.SetDefault("texts.possible_command", cfg.Texts.PossibleCommand)
	v.SetDefault("texts.command_closed", cfg.Texts.CommandClosed)
	v.SetDefault("status.file", cfg.Status.File)
	v.SetDefault("status.watch", cfg.Status.Watch)
	v.SetDefault("status.debounce_ms", cfg.Status.DebounceMS)
	v.SetDefault("logging.disable_audit_trails", cfg.Logging.DisableAuditTrails)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validateCommandsConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateCommandsConfig(cfg Config) error {
	if _, err := schema.NormalizeConfig(cfg.ManagerConfig()); err != nil {
		return fmt.Errorf("commands: %w", err)
	}
	if _, err := schema.NormalizeNames(cfg.Commands.DefaultClosed); err != nil {
		return fmt.Errorf("commands.default_closed: %w", err)
	}
	if cfg.Status.DebounceMS < 0 {
		return fmt.Errorf("status.debounce_ms must not be negative")
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.Bot.HistoryFile = expandEnv(cfg.Bot.HistoryFile)
	cfg.Status.File = expandEnv(cfg.Status.File)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

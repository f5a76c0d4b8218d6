package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	configDir  = ".sqlgate"
	configFile = "config"
	configType = "yaml"
	envPrefix  = "SQLGATE"
)

// LoadOptions points the loader at explicit files.
type LoadOptions struct {
	// ConfigFile overrides ~/.sqlgate/config.yaml. It must exist when set.
	ConfigFile string
	// EnvFile is a dotenv file read before environment lookup. Missing files
	// are ignored. Empty means ".env".
	EnvFile string
}

// Load reads the configuration. Sources, highest precedence first:
// SQLGATE_* environment variables (including those from the dotenv file),
// the config file, then defaults. A missing default config file is not an
// error. Keyring passwords are not read here; see Database.ResolvePassword.
func Load(opts LoadOptions) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		dir, err := configDirPath()
		if err != nil {
			return nil, fmt.Errorf("config dir: %w", err)
		}
		v.SetConfigName(configFile)
		v.SetConfigType(configType)
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "postgres")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.use_keyring", false)

	v.SetDefault("server.addr", DefaultAddr)
	v.SetDefault("server.max_body_bytes", DefaultMaxBodyBytes)
	v.SetDefault("server.read_header_timeout", DefaultReadHeaderTimeout)
	v.SetDefault("server.shutdown_timeout", DefaultShutdownTimeout)

	v.SetDefault("query.timeout", DefaultQueryTimeout)
	v.SetDefault("query.read_only", true)
	v.SetDefault("query.max_rows", 0)
	v.SetDefault("query.admission", "denylist")

	v.SetDefault("metadata.schema", "public")
	v.SetDefault("metadata.strategy", StrategyPerTable)
	v.SetDefault("metadata.concurrency", 1)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("console.url", DefaultConsoleURL)
	v.SetDefault("console.preferences.theme", "default")
}

// Save writes the console section of cfg to path, keeping every other key
// already in the file. Empty path means ~/.sqlgate/config.yaml.
func Save(path string, cfg *Config) error {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(configType)
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read config: %w", err)
	}

	gateways := make([]map[string]any, 0, len(cfg.Console.Gateways))
	for _, g := range cfg.Console.Gateways {
		gateways = append(gateways, map[string]any{"name": g.Name, "url": g.URL})
	}
	v.Set("console.url", cfg.Console.URL)
	v.Set("console.gateways", gateways)
	v.Set("console.preferences.theme", cfg.Console.Preferences.Theme)
	v.Set("console.preferences.default_gateway", cfg.Console.Preferences.DefaultGateway)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// DefaultPath returns ~/.sqlgate/config.yaml.
func DefaultPath() (string, error) {
	dir, err := configDirPath()
	if err != nil {
		return "", fmt.Errorf("config dir: %w", err)
	}
	return filepath.Join(dir, configFile+"."+configType), nil
}

func configDirPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configDir), nil
}

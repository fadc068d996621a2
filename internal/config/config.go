package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	KeyServer            = "server"
	KeyServers           = "servers"
	KeyStagingDir        = "staging_dir"
	KeyLogLevel          = "log.level"
	KeyLogFormat         = "log.format"
	KeyConnectionTimeout = "connection_timeout_ms"

	EnvPrefix = "CUBEPUB"
)

// Settings is the resolved configuration.
type Settings struct {
	Server              string          `mapstructure:"server"`
	Servers             []ServerProfile `mapstructure:"servers"`
	StagingDir          string          `mapstructure:"staging_dir"`
	ConnectionTimeoutMs int             `mapstructure:"connection_timeout_ms"`
	Log                 struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

// GetConfigDir returns ~/.cubepub, creating it if needed.
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".cubepub")
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return "", err
		}
	}
	return configDir, nil
}

func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// SetDefaults registers the fallback value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyStagingDir, "models")
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyLogFormat, "auto")
	v.SetDefault(KeyConnectionTimeout, 5000)
}

// Init points v at cfgFile, or at ~/.cubepub/config.yaml when cfgFile is
// empty, and reads it. A missing default config file is not an error.
func Init(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := GetConfigDir()
		if err != nil {
			return err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// Load decodes the settings held by v.
func Load(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if s.StagingDir == "" {
		s.StagingDir = "models"
	}
	return &s, nil
}

// Save writes the settings held by v back to the file it was read from, or
// to the default config path.
func Save(v *viper.Viper) error {
	path := v.ConfigFileUsed()
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

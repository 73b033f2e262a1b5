package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/gabrielcapilla/playerwrap/internal/domain"
	"github.com/gabrielcapilla/playerwrap/internal/logger"
	"github.com/gabrielcapilla/playerwrap/internal/ports"
)

type ViperConfigService struct {
	v        *viper.Viper
	appDir   string
	explicit bool
}

// NewViperConfigService reads config.yml from path when set, otherwise from
// the playerwrap directory under the user's config dir or the working
// directory.
func NewViperConfigService(path string) ports.ConfigService {
	v := viper.New()
	s := &ViperConfigService{v: v}

	configDir, err := os.UserConfigDir()
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Could not find user config directory, using current directory")
	}

	if configDir != "" {
		s.appDir = filepath.Join(configDir, "playerwrap")
		if err := os.MkdirAll(s.appDir, 0755); err != nil {
			logger.Log.Error().Err(err).Msg("Could not create playerwrap config directory")
			s.appDir = ""
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		s.explicit = true
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		if s.appDir != "" {
			v.AddConfigPath(s.appDir)
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("PLAYERWRAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("mpv.path", "mpv")
	v.SetDefault("mpv.socketPath", filepath.Join(os.TempDir(), "playerwrap-mpv.sock"))
	v.SetDefault("mpv.extraArgs", []string{})
	v.SetDefault("mpv.prepareTimeout", "10s")
	v.SetDefault("mpv.video", false)
	v.SetDefault("historyLimit", 50)
	v.SetDefault("dbPath", "")
	v.SetDefault("logLevel", "info")

	return s
}

func (s *ViperConfigService) Load() (domain.Config, error) {
	var cfg domain.Config

	if err := s.v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) || s.explicit {
			return cfg, err
		}
		logger.Log.Info().Msg("Config file not found, creating with default values.")
		if err := s.v.SafeWriteConfig(); err != nil {
			logger.Log.Warn().Err(err).Msg("Could not write default config file")
		}
	}

	if err := s.v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}

	if cfg.DBPath == "" {
		dir := s.appDir
		if dir == "" {
			dir = "."
		}
		cfg.DBPath = filepath.Join(dir, "playerwrap.db")
	}

	return cfg, nil
}

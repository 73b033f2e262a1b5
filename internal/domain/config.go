package domain

import "time"

type MpvConfig struct {
	Path           string        `mapstructure:"path"`
	SocketPath     string        `mapstructure:"socketPath"`
	ExtraArgs      []string      `mapstructure:"extraArgs"`
	PrepareTimeout time.Duration `mapstructure:"prepareTimeout"`
	Video          bool          `mapstructure:"video"`
}

type Config struct {
	Mpv          MpvConfig `mapstructure:"mpv"`
	HistoryLimit int       `mapstructure:"historyLimit"`
	DBPath       string    `mapstructure:"dbPath"`
	LogLevel     string    `mapstructure:"logLevel"`
}

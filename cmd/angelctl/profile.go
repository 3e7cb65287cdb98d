package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const defaultBaseURL = "http://localhost:8080"

// profile persists base_url and token in $HOME/.angelctl.yaml. ANGELCTL_* env vars win.
type profile struct {
	v    *viper.Viper
	path string
}

func loadProfile(path string) (*profile, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, ".angelctl.yaml")
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("ANGELCTL")
	v.AutomaticEnv()
	v.SetDefault("base_url", defaultBaseURL)

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return &profile{v: v, path: path}, nil
}

func (p *profile) BaseURL() string { return p.v.GetString("base_url") }

func (p *profile) Token() string { return p.v.GetString("token") }

func (p *profile) SetToken(token string) error {
	p.v.Set("token", token)
	return p.v.WriteConfigAs(p.path)
}

func (p *profile) Clear() error {
	return p.SetToken("")
}

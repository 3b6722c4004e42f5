package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type appConfig struct {
	Binary             string
	AdminAddr          string
	MinRefreshInterval time.Duration
	InstancesPath      string
	StartupDir         string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
}

func defaultAppConfig() appConfig {
	return appConfig{
		Binary:    "wsl.exe",
		AdminAddr: "127.0.0.1:7617",
	}
}

type fileConfig struct {
	Binary             string `toml:"binary"`
	AdminAddr          string `toml:"admin_addr"`
	MinRefreshInterval string `toml:"min_refresh_interval"`
	InstancesPath      string `toml:"instances_path"`
	StartupDir         string `toml:"startup_dir"`
	ReadTimeout        string `toml:"read_timeout"`
	WriteTimeout       string `toml:"write_timeout"`
}

// loadAppConfig overlays the file's defined keys onto the defaults. A
// missing file is not an error; a malformed one is.
func loadAppConfig(path string) (appConfig, error) {
	cfg := defaultAppConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return appConfig{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("binary") {
		if binary := strings.TrimSpace(raw.Binary); binary != "" {
			cfg.Binary = binary
		}
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("min_refresh_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.MinRefreshInterval))
		if err != nil {
			return appConfig{}, fmt.Errorf("parse min_refresh_interval: %w", err)
		}
		cfg.MinRefreshInterval = d
	}
	if meta.IsDefined("instances_path") {
		cfg.InstancesPath = strings.TrimSpace(raw.InstancesPath)
	}
	if meta.IsDefined("startup_dir") {
		cfg.StartupDir = strings.TrimSpace(raw.StartupDir)
	}
	if meta.IsDefined("read_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ReadTimeout))
		if err != nil {
			return appConfig{}, fmt.Errorf("parse read_timeout: %w", err)
		}
		cfg.ReadTimeout = d
	}
	if meta.IsDefined("write_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.WriteTimeout))
		if err != nil {
			return appConfig{}, fmt.Errorf("parse write_timeout: %w", err)
		}
		cfg.WriteTimeout = d
	}
	return cfg, nil
}

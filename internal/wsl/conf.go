package wsl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Conf mirrors the per-distro /etc/wsl.conf switches the dashboard manages.
type Conf struct {
	Systemd            bool
	GenerateHosts      bool
	GenerateResolvConf bool
	InteropEnabled     bool
	AppendWindowsPath  bool
}

// DefaultConf returns the tool's documented defaults for an absent or
// unreadable wsl.conf.
func DefaultConf() Conf {
	return Conf{
		GenerateHosts:      true,
		GenerateResolvConf: true,
		InteropEnabled:     true,
		AppendWindowsPath:  true,
	}
}

// ReadConf reads /etc/wsl.conf inside the distro. Unreadable or missing
// files yield the defaults.
func (e *Executor) ReadConf(ctx context.Context, distro string) Conf {
	conf := DefaultConf()
	res := e.Run(ctx, "-d", distro, "-u", "root", "--", "cat", "/etc/wsl.conf")
	if !res.Success {
		return conf
	}
	parseConf(res.Output, &conf)
	return conf
}

func parseConf(content string, conf *Conf) {
	section := ""
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch section + "." + key {
		case "boot.systemd":
			conf.Systemd = value == "true"
		case "network.generateHosts":
			conf.GenerateHosts = value == "true"
		case "network.generateResolvConf":
			conf.GenerateResolvConf = value == "true"
		// [automount] also carries an enabled key; only the interop
		// one is managed here.
		case "interop.enabled":
			conf.InteropEnabled = value == "true"
		case "interop.appendWindowsPath":
			conf.AppendWindowsPath = value == "true"
		}
	}
}

func (c Conf) render() string {
	return fmt.Sprintf(
		"[boot]\nsystemd=%t\n\n[network]\ngenerateHosts=%t\ngenerateResolvConf=%t\n\n[interop]\nenabled=%t\nappendWindowsPath=%t\n",
		c.Systemd, c.GenerateHosts, c.GenerateResolvConf, c.InteropEnabled, c.AppendWindowsPath,
	)
}

// WriteConf rewrites /etc/wsl.conf wholesale. Untracked keys and comments
// are not preserved.
func (e *Executor) WriteConf(ctx context.Context, distro string, conf Conf) Result[string] {
	log.Info().Str("distro", distro).Msg("updating wsl.conf")
	script := fmt.Sprintf("printf '%s' > /etc/wsl.conf", conf.render())
	return e.Run(ctx, "-d", distro, "-u", "root", "--", "sh", "-c", script)
}

// GlobalConfig mirrors the host-wide .wslconfig [wsl2] keys. Empty fields
// are omitted when saving.
type GlobalConfig struct {
	Memory         string
	Processors     string
	NetworkingMode string
	Swap           string
}

// GlobalConfigPath resolves the host user's .wslconfig location.
func GlobalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".wslconfig"), nil
}

// LoadGlobalConfig reads .wslconfig; a missing file yields the zero config.
func LoadGlobalConfig(path string) GlobalConfig {
	var cfg GlobalConfig
	content, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "memory":
			cfg.Memory = value
		case "processors":
			cfg.Processors = value
		case "networkingMode":
			cfg.NetworkingMode = value
		case "swap":
			cfg.Swap = value
		}
	}
	return cfg
}

// SaveGlobalConfig rewrites .wslconfig with the managed [wsl2] keys.
func SaveGlobalConfig(path string, cfg GlobalConfig) error {
	lines := []string{"[wsl2]"}
	if cfg.Memory != "" {
		lines = append(lines, "memory="+cfg.Memory)
	}
	if cfg.Processors != "" {
		lines = append(lines, "processors="+cfg.Processors)
	}
	if cfg.NetworkingMode != "" {
		lines = append(lines, "networkingMode="+cfg.NetworkingMode)
	}
	if cfg.Swap != "" {
		lines = append(lines, "swap="+cfg.Swap)
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return fmt.Errorf("save global config: %w", err)
	}
	return nil
}

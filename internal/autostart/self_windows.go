//go:build windows

package autostart

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/windows/registry"
)

const (
	runKeyPath   = `Software\Microsoft\Windows\CurrentVersion\Run`
	runValueName = "WSLDashboard"
	selfScript   = "dashboard-autostart.vbs"
)

// SetSelfEnabled registers or removes the dashboard's own login
// autostart. The Run key is preferred; if it cannot be written, a VBS
// fallback lands in the Startup folder instead.
func (w *Writer) SetSelfEnabled(enable, silent bool) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	command := fmt.Sprintf("%q", exe)
	if silent {
		command += " /silent"
	}

	if !enable {
		regErr := deleteRunValue()
		vbsErr := os.Remove(w.selfScriptPath())
		if vbsErr != nil && os.IsNotExist(vbsErr) {
			vbsErr = nil
		}
		if regErr != nil && vbsErr != nil {
			return fmt.Errorf("disable dashboard autostart: registry: %v, script: %v", regErr, vbsErr)
		}
		return nil
	}

	if err := writeRunValue(command); err != nil {
		log.Warn().Err(err).Msg("run key write failed, falling back to startup script")
		return w.writeSelfScript(command)
	}
	// The fallback script must not linger once the key works.
	if err := os.Remove(w.selfScriptPath()); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("stale fallback script not removed")
	}
	return nil
}

// SelfEnabled reports whether either autostart mechanism is active.
func (w *Writer) SelfEnabled() bool {
	key, err := registry.OpenKey(registry.CURRENT_USER, runKeyPath, registry.QUERY_VALUE)
	if err == nil {
		defer key.Close()
		if _, _, err := key.GetStringValue(runValueName); err == nil {
			return true
		}
	}
	_, statErr := os.Stat(w.selfScriptPath())
	return statErr == nil
}

func (w *Writer) selfScriptPath() string {
	return filepath.Join(w.dir, selfScript)
}

func (w *Writer) writeSelfScript(command string) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create startup dir: %w", err)
	}
	escaped := strings.ReplaceAll(command, `"`, `""`)
	content := header + "\r\n" + fmt.Sprintf(`ws.run "%s", 0`, escaped) + "\r\n"
	return writeWithTimeout(w.selfScriptPath(), content)
}

func writeRunValue(command string) error {
	key, _, err := registry.CreateKey(registry.CURRENT_USER, runKeyPath, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("open run key: %w", err)
	}
	defer key.Close()
	if err := key.SetStringValue(runValueName, command); err != nil {
		return fmt.Errorf("set run value: %w", err)
	}
	return nil
}

func deleteRunValue() error {
	key, err := registry.OpenKey(registry.CURRENT_USER, runKeyPath, registry.SET_VALUE)
	if err != nil {
		if err == registry.ErrNotExist {
			return nil
		}
		return fmt.Errorf("open run key: %w", err)
	}
	defer key.Close()
	if err := key.DeleteValue(runValueName); err != nil && err != registry.ErrNotExist {
		return fmt.Errorf("delete run value: %w", err)
	}
	return nil
}

// Package autostart manages login-time startup: one VBS script in the
// user's Startup folder boots selected distros, and a Run-key entry (on
// Windows) starts the dashboard itself.
package autostart

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	scriptName = "wsl-dashboard.vbs"
	header     = `Set ws = WScript.CreateObject("WScript.Shell")`

	// Antivirus hooks have been seen stalling writes into the Startup
	// folder indefinitely.
	writeTimeout = 5 * time.Second
)

// Writer maintains the per-distro startup script under dir.
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// DefaultStartupDir resolves the user's Start Menu Startup folder.
func DefaultStartupDir() (string, error) {
	appData := os.Getenv("APPDATA")
	if appData == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve startup dir: %w", err)
		}
		appData = filepath.Join(home, "AppData", "Roaming")
	}
	return filepath.Join(appData, "Microsoft", "Windows", "Start Menu", "Programs", "Startup"), nil
}

func (w *Writer) scriptPath() string {
	return filepath.Join(w.dir, scriptName)
}

func entryLine(distro string) string {
	return fmt.Sprintf(`ws.run "wsl -d %s -u root /etc/init.wsl-dashboard start", vbhide`, distro)
}

// SetEnabled adds or removes the distro's startup line. Both directions
// are idempotent; the header is kept as the first line.
func (w *Writer) SetEnabled(distro string, enable bool) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create startup dir: %w", err)
	}

	lines := []string{header}
	if content, err := os.ReadFile(w.scriptPath()); err == nil {
		lines = lines[:0]
		for _, line := range strings.Split(string(content), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				lines = append(lines, line)
			}
		}
	}
	if !containsHeader(lines) {
		lines = append([]string{header}, lines...)
	}

	target := entryLine(distro)
	if enable {
		if !containsLine(lines, target) {
			lines = append(lines, target)
			log.Info().Str("distro", distro).Msg("autostart line added")
		}
	} else {
		kept := lines[:0]
		for _, line := range lines {
			if line != target {
				kept = append(kept, line)
			}
		}
		if len(kept) < len(lines) {
			log.Info().Str("distro", distro).Msg("autostart line removed")
		}
		lines = kept
	}

	return writeWithTimeout(w.scriptPath(), strings.Join(lines, "\r\n"))
}

// Enabled reports whether the distro's startup line is present.
func (w *Writer) Enabled(distro string) bool {
	content, err := os.ReadFile(w.scriptPath())
	if err != nil {
		return false
	}
	target := entryLine(distro)
	for _, line := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(line) == target {
			return true
		}
	}
	return false
}

func containsHeader(lines []string) bool {
	for _, line := range lines {
		if strings.Contains(line, "WScript.CreateObject") {
			return true
		}
	}
	return false
}

func containsLine(lines []string, target string) bool {
	for _, line := range lines {
		if line == target {
			return true
		}
	}
	return false
}

func writeWithTimeout(path, content string) error {
	done := make(chan error, 1)
	go func() {
		done <- os.WriteFile(path, []byte(content), 0o644)
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("write startup script: %w", err)
		}
		return nil
	case <-time.After(writeTimeout):
		log.Warn().Str("path", path).Msg("startup script write stalled")
		return fmt.Errorf("write startup script: timed out after %s", writeTimeout)
	}
}

package dashboard

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"wsldash/internal/wsl"
)

// DistroInfo aggregates everything known about one environment: the
// tool's view, the host registration, the disk image, and stored
// settings.
type DistroInfo struct {
	Name            string
	Status          string
	Version         string
	InstallLocation string
	VhdxPath        string
	VhdxSize        string
	ActualUsed      string
	Autostart       bool
	DefaultUser     string
}

// Info collects the distro's details. Pieces that cannot be resolved
// degrade to empty or placeholder values rather than failing the whole
// query.
func (d *Dashboard) Info(ctx context.Context, name string) DistroInfo {
	info := DistroInfo{Name: name, Status: "Unknown"}

	if d.deps.Launcher != nil {
		if rec, ok, err := d.deps.Launcher.Record(name); err == nil && ok {
			info.InstallLocation = rec.BasePath
			info.VhdxPath, info.VhdxSize = findDiskImage(rec.BasePath)
		} else if err != nil {
			log.Debug().Err(err).Str("distro", name).Msg("launcher record unavailable")
		}
	}

	if d.deps.Store != nil {
		if entry, ok, err := d.deps.Store.Instance(name); err == nil && ok {
			info.Autostart = entry.Autostart
			info.DefaultUser = entry.DefaultUser
			if info.InstallLocation == "" {
				info.InstallLocation = entry.InstallLocation
			}
		}
	}

	running := false
	if distro, ok := d.Distro(name); ok {
		info.Status = distro.Status.String()
		info.Version = distro.Version.String()
		running = distro.Status == wsl.StatusRunning
	}

	// Real usage inside the image is only observable from a running
	// environment.
	if running {
		info.ActualUsed = d.usedDiskSpace(ctx, name)
	} else {
		info.ActualUsed = "Unknown (Stopped)"
	}
	return info
}

func (d *Dashboard) usedDiskSpace(ctx context.Context, name string) string {
	res := d.deps.Runner.Run(ctx, "-d", name, "--exec", "df", "-B1M", "/")
	if !res.Success {
		return "Error"
	}
	return parseUsedDisk(res.Output)
}

// parseUsedDisk extracts the used column from `df -B1M /` output.
func parseUsedDisk(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) < 2 {
		return "No Output"
	}
	fields := strings.Fields(lines[1])
	if len(fields) < 3 {
		return "Parse Error"
	}
	mb, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return fields[2] + " MB"
	}
	return fmt.Sprintf("%.2f GB", mb/1024.0)
}

// findDiskImage locates the distro's vhdx under its base path. Store
// launchers keep it one level down in LocalState.
func findDiskImage(basePath string) (path, size string) {
	if basePath == "" {
		return "", ""
	}
	for _, dir := range []string{basePath, filepath.Join(basePath, "LocalState")} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.Type().IsRegular() && strings.EqualFold(filepath.Ext(entry.Name()), ".vhdx") {
				full := filepath.Join(dir, entry.Name())
				if fi, err := os.Stat(full); err == nil {
					size = fmt.Sprintf("%.2f GB", float64(fi.Size())/(1024*1024*1024))
				}
				return full, size
			}
		}
	}
	return "", ""
}

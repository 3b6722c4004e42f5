package dashboard

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"wsldash/internal/config"
	"wsldash/internal/launcher"
	"wsldash/internal/testutil/testlog"
	"wsldash/internal/wsl"
)

const dfOutput = `Filesystem     1M-blocks   Used Available Use% Mounted on
/dev/sdd          257732   5120    239462   3% /
`

func TestInfoRunningDistro(t *testing.T) {
	testlog.Start(t)

	base := t.TempDir()
	if err := os.WriteFile(filepath.Join(base, "ext4.vhdx"), make([]byte, 4096), 0o644); err != nil {
		t.Fatalf("seed vhdx: %v", err)
	}

	runner := newFakeRunner()
	runner.results[key([]string{"-d", "Ubuntu", "--exec", "df", "-B1M", "/"})] = wsl.Ok(dfOutput, "")
	dash, store, _, _, lookup := testDashboard(runner)
	lookup.records = []launcher.DistroRecord{{Name: "Ubuntu", BasePath: base, Version: 2}}
	store.entries["Ubuntu"] = config.InstanceEntry{Autostart: true, DefaultUser: "dev"}
	dash.Refresh(context.Background())

	info := dash.Info(context.Background(), "Ubuntu")
	if info.Status != "Running" || info.Version != "2" {
		t.Fatalf("unexpected status/version: %+v", info)
	}
	if info.InstallLocation != base {
		t.Fatalf("install location not resolved: %q", info.InstallLocation)
	}
	if info.VhdxPath != filepath.Join(base, "ext4.vhdx") || info.VhdxSize == "" {
		t.Fatalf("disk image not found: %+v", info)
	}
	if info.ActualUsed != "5.00 GB" {
		t.Fatalf("df parse: got %q", info.ActualUsed)
	}
	if !info.Autostart || info.DefaultUser != "dev" {
		t.Fatalf("stored settings lost: %+v", info)
	}
}

func TestInfoStoppedDistroSkipsDiskQuery(t *testing.T) {
	testlog.Start(t)

	runner := newFakeRunner()
	dash, _, _, _, _ := testDashboard(runner)
	dash.Refresh(context.Background())

	info := dash.Info(context.Background(), "Debian")
	if info.Status != "Stopped" {
		t.Fatalf("unexpected status: %+v", info)
	}
	if info.ActualUsed != "Unknown (Stopped)" {
		t.Fatalf("stopped distro queried for usage: %q", info.ActualUsed)
	}
	if n := runner.callCount(key([]string{"-d", "Debian", "--exec", "df", "-B1M", "/"})); n != 0 {
		t.Fatalf("df ran against a stopped distro")
	}
}

func TestParseUsedDisk(t *testing.T) {
	testlog.Start(t)

	if got := parseUsedDisk(dfOutput); got != "5.00 GB" {
		t.Fatalf("got %q", got)
	}
	if got := parseUsedDisk("header only"); got != "No Output" {
		t.Fatalf("got %q", got)
	}
	if got := parseUsedDisk("a\nb c"); got != "Parse Error" {
		t.Fatalf("got %q", got)
	}
}

func TestInfoUnknownDistro(t *testing.T) {
	testlog.Start(t)

	dash, _, _, _, _ := testDashboard(newFakeRunner())
	info := dash.Info(context.Background(), "Ghost")
	if info.Status != "Unknown" {
		t.Fatalf("unexpected status: %+v", info)
	}
	if info.ActualUsed != "Unknown (Stopped)" {
		t.Fatalf("unexpected usage: %q", info.ActualUsed)
	}
}

package launcher

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"

	"wsldash/internal/wsl"
)

// AppxRemover uninstalls a store launcher package by family name. Used
// after the last distro owned by a launcher is unregistered; the shell
// stays configurable for tests.
type AppxRemover struct {
	shell string
}

func NewAppxRemover() *AppxRemover {
	return &AppxRemover{shell: "powershell"}
}

// The PFN prefix narrows Get-AppxPackage's wildcard search; matching on
// the full family name alone enumerates every installed package.
const removeScript = `$pfn = "%s"
$namePart = $pfn.Split('_')[0]
$packages = Get-AppxPackage -Name "*$namePart*" | Where-Object {
    $_.PackageFamilyName -eq $pfn -or
    $_.PackageFullName -like "*$pfn*"
}
if ($packages) {
    foreach ($pkg in $packages) {
        Write-Host "removing $($pkg.PackageFullName)"
        Remove-AppxPackage -Package $pkg.PackageFullName -ErrorAction SilentlyContinue
    }
} else {
    Write-Host "no package matches $pfn"
}`

// Remove uninstalls every package matching the family name. Output is
// logged, not returned: callers fire this as best-effort cleanup.
func (r *AppxRemover) Remove(ctx context.Context, pfn string) error {
	if strings.TrimSpace(pfn) == "" {
		return nil
	}
	log.Info().Str("pfn", pfn).Msg("removing launcher package")

	script := fmt.Sprintf(removeScript, pfn)
	cmd := exec.CommandContext(ctx, r.shell, "-NoProfile", "-NonInteractive", "-Command", script)
	cmd.SysProcAttr = wsl.HiddenConsoleAttr()
	out, err := cmd.CombinedOutput()
	if detail := strings.TrimSpace(string(out)); detail != "" {
		log.Info().Str("pfn", pfn).Str("detail", detail).Msg("launcher cleanup output")
	}
	if err != nil {
		return fmt.Errorf("launcher cleanup for %s: %w", pfn, err)
	}
	return nil
}

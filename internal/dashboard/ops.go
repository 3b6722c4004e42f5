package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"wsldash/internal/launcher"
	"wsldash/internal/wsl"
)

// Start boots the distro and holds it open with a keep-alive process.
// The busy counter stays raised until the delayed status re-check
// completes in the background.
func (d *Dashboard) Start(ctx context.Context, name string) wsl.Result[string] {
	d.beginOp()
	res := d.startDistro(ctx, name)
	if !res.Success {
		d.endOp()
		return res
	}
	d.Refresh(ctx)
	d.recheckLater(name, "start")
	return res
}

// startDistro probes the distro with a trivial command, which boots it
// as a side effect, then detaches a keep-alive placeholder. The tool
// suspends an environment once its last process exits.
func (d *Dashboard) startDistro(ctx context.Context, name string) wsl.Result[string] {
	probe := d.deps.Runner.Run(ctx, "-d", name, "--", "sh", "-c", "echo 'starting'")
	if !probe.Success {
		log.Warn().Str("distro", name).Str("error", probe.Error).Msg("distro start probe failed")
		return probe
	}
	if d.deps.Runner.KeepAliveRunning(name) {
		log.Debug().Str("distro", name).Msg("keep-alive already present")
		return wsl.Ok(fmt.Sprintf("distro %q already held open", name), "")
	}
	if err := d.deps.Runner.SpawnKeepAlive(name); err != nil {
		// The distro did boot; a missing keep-alive only means it may
		// suspend again on its own.
		log.Error().Err(err).Str("distro", name).Msg("keep-alive spawn failed")
	}
	return wsl.Ok(fmt.Sprintf("distro %q started", name), "")
}

// Stop terminates the distro.
func (d *Dashboard) Stop(ctx context.Context, name string) wsl.Result[string] {
	d.beginOp()
	res := d.deps.Runner.Run(ctx, "--terminate", name)
	if !res.Success {
		d.endOp()
		return res
	}
	d.Refresh(ctx)
	d.recheckLater(name, "stop")
	return res
}

// Restart stops the distro, waits out the settle gap, then starts it.
// A failed stop short-circuits.
func (d *Dashboard) Restart(ctx context.Context, name string) wsl.Result[string] {
	log.Info().Str("distro", name).Msg("restarting distro")
	stop := d.Stop(ctx, name)
	if !stop.Success {
		return stop
	}
	// Restarting immediately after terminate races the tool's own
	// teardown and tends to resurrect the old session.
	time.Sleep(d.cfg.RestartSettleDelay)
	return d.Start(ctx, name)
}

// ShutdownAll stops every environment and the shared VM.
func (d *Dashboard) ShutdownAll(ctx context.Context) wsl.Result[string] {
	d.beginOp()
	defer d.endOp()

	log.Info().Msg("shutting down all environments")
	res := d.deps.Runner.Run(ctx, "--shutdown")
	if res.Success {
		d.Refresh(ctx)
	}
	return res
}

// Delete unregisters the distro, scrubs its stored settings and
// autostart entry, and, when this was the launcher package's last
// distro, uninstalls the package in the background.
func (d *Dashboard) Delete(ctx context.Context, name string) wsl.Result[string] {
	d.heavyMu.Lock()
	defer d.heavyMu.Unlock()
	d.beginOp()

	log.Warn().Str("distro", name).Msg("deleting distro, this is irreversible")
	pfn, sole := d.soleLauncherPackage(name)

	// Settings cleanup runs before unregister: afterwards the distro
	// name no longer resolves anywhere. Failures here must not block
	// the delete itself.
	if d.deps.Store != nil {
		if err := d.deps.Store.RemoveInstanceEntry(name); err != nil {
			log.Warn().Err(err).Str("distro", name).Msg("instance entry removal failed")
		}
	}
	if d.deps.Autostart != nil {
		if err := d.deps.Autostart.SetEnabled(name, false); err != nil {
			log.Warn().Err(err).Str("distro", name).Msg("autostart entry removal failed")
		}
	}

	res := d.deps.Runner.Run(ctx, "--unregister", name)
	if !res.Success {
		log.Warn().Str("distro", name).Str("error", res.Error).Msg("unregister failed")
		d.endOp()
		return res
	}
	d.Refresh(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.endOp()
		time.Sleep(d.cfg.DeleteSettleDelay)

		refreshCtx, cancel := context.WithTimeout(context.Background(), d.cfg.RefreshTimeout)
		d.Refresh(refreshCtx)
		cancel()

		if sole && pfn != "" && d.deps.Packages != nil {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), d.cfg.CleanupTimeout)
			defer cancel()
			if err := d.deps.Packages.Remove(cleanupCtx, pfn); err != nil {
				log.Warn().Err(err).Str("pfn", pfn).Msg("launcher cleanup failed")
			}
		}
	}()
	return res
}

// Export writes the distro's filesystem to a tar archive. Progress
// fragments stream to onProgress when non-nil.
func (d *Dashboard) Export(ctx context.Context, name, archive string, onProgress func(string)) wsl.Result[string] {
	d.heavyMu.Lock()
	defer d.heavyMu.Unlock()
	d.beginOp()
	defer d.endOp()

	log.Info().Str("distro", name).Str("archive", archive).Msg("exporting distro")
	if onProgress != nil {
		return d.deps.Runner.RunStreaming(ctx, onProgress, "--export", name, archive)
	}
	return d.deps.Runner.Run(ctx, "--export", name, archive)
}

// Import registers a new distro from a tar archive.
func (d *Dashboard) Import(ctx context.Context, name, location, archive string) wsl.Result[string] {
	d.heavyMu.Lock()
	defer d.heavyMu.Unlock()
	d.beginOp()
	defer d.endOp()

	log.Info().Str("distro", name).Str("location", location).Msg("importing distro")
	res := d.deps.Runner.Run(ctx, "--import", name, location, archive)
	if res.Success {
		d.Refresh(ctx)
	}
	return res
}

// Move relocates the distro's disk image.
func (d *Dashboard) Move(ctx context.Context, name, newPath string) wsl.Result[string] {
	d.heavyMu.Lock()
	defer d.heavyMu.Unlock()
	d.beginOp()
	defer d.endOp()

	log.Info().Str("distro", name).Str("path", newPath).Msg("moving distro")
	res := d.deps.Runner.Run(ctx, "--manage", name, "--move", newPath)
	if res.Success {
		d.Refresh(ctx)
	}
	return res
}

// recheckLater schedules the delayed status re-check that releases the
// busy counter once the tool's reported state has settled.
func (d *Dashboard) recheckLater(name, verb string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.endOp()
		time.Sleep(d.cfg.ProbeRecheckDelay)
		log.Debug().Str("distro", name).Str("op", verb).Msg("delayed status re-check")
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.RefreshTimeout)
		defer cancel()
		d.Refresh(ctx)
	}()
}

// soleLauncherPackage resolves the distro's launcher package and whether
// deleting the distro orphans it.
func (d *Dashboard) soleLauncherPackage(name string) (string, bool) {
	if d.deps.Launcher == nil {
		return "", false
	}
	records, err := d.deps.Launcher.Records()
	if err != nil {
		log.Warn().Err(err).Msg("launcher registry lookup failed")
		return "", false
	}
	pfn, sole := launcher.SoleUser(records, name)
	if pfn != "" {
		log.Info().Str("distro", name).Str("pfn", pfn).Bool("sole", sole).Msg("launcher package resolved")
	}
	return pfn, sole
}

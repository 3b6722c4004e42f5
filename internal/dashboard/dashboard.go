// Package dashboard coordinates the shared view of the managed
// environments: a cached distro snapshot, a busy counter gating UI
// state, a heavy-operation lock, and a change signal consumers wait on.
package dashboard

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"wsldash/internal/config"
	"wsldash/internal/launcher"
	"wsldash/internal/wsl"
)

// Runner is the executor surface the coordinator drives.
type Runner interface {
	Run(ctx context.Context, args ...string) wsl.Result[string]
	RunStreaming(ctx context.Context, onFragment func(string), args ...string) wsl.Result[string]
	SpawnKeepAlive(name string) error
	KeepAliveRunning(name string) bool
}

// InstanceStore persists per-distro settings across deletes and imports.
type InstanceStore interface {
	Instance(name string) (config.InstanceEntry, bool, error)
	SetInstance(name string, entry config.InstanceEntry) error
	RemoveInstanceEntry(name string) error
}

// AutostartWriter manages the per-distro login startup entries.
type AutostartWriter interface {
	SetEnabled(distro string, enable bool) error
	Enabled(distro string) bool
}

// PackageRemover uninstalls a distro's launcher package by family name.
type PackageRemover interface {
	Remove(ctx context.Context, pfn string) error
}

// Config carries the coordinator's timing knobs. The delays absorb the
// tool's lag between a lifecycle command returning and the reported
// state actually changing; tests compress them.
type Config struct {
	// ProbeRecheckDelay is how long to wait before the follow-up
	// refresh after a start or stop.
	ProbeRecheckDelay time.Duration
	// RestartSettleDelay separates the stop and start halves of a
	// restart.
	RestartSettleDelay time.Duration
	// DeleteSettleDelay precedes the post-unregister re-refresh.
	DeleteSettleDelay time.Duration
	// RefreshTimeout bounds background refreshes so a wedged tool
	// cannot pin the busy counter forever.
	RefreshTimeout time.Duration
	// CleanupTimeout bounds the launcher package removal.
	CleanupTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		ProbeRecheckDelay:  3 * time.Second,
		RestartSettleDelay: 4 * time.Second,
		DeleteSettleDelay:  1 * time.Second,
		RefreshTimeout:     5 * time.Second,
		CleanupTimeout:     15 * time.Second,
	}
}

// Deps bundles the coordinator's collaborators. Store, Launcher,
// Autostart and Packages may be nil; the affected cleanup steps then
// degrade to no-ops.
type Deps struct {
	Runner    Runner
	Store     InstanceStore
	Launcher  launcher.Lookup
	Autostart AutostartWriter
	Packages  PackageRemover
}

// Dashboard is the state coordinator. Safe for concurrent use.
type Dashboard struct {
	cfg  Config
	deps Deps

	mu      sync.RWMutex
	distros []wsl.Distro

	// refreshMu serializes refreshes so overlapping list commands
	// cannot interleave snapshot swaps out of order.
	refreshMu sync.Mutex

	// heavyMu serializes delete, export, import and move: the tool
	// misbehaves when two disk-image operations run at once.
	heavyMu sync.Mutex

	busy    atomic.Int64
	changed chan struct{}
	wg      sync.WaitGroup
}

func New(cfg Config, deps Deps) *Dashboard {
	def := DefaultConfig()
	if cfg.ProbeRecheckDelay <= 0 {
		cfg.ProbeRecheckDelay = def.ProbeRecheckDelay
	}
	if cfg.RestartSettleDelay <= 0 {
		cfg.RestartSettleDelay = def.RestartSettleDelay
	}
	if cfg.DeleteSettleDelay <= 0 {
		cfg.DeleteSettleDelay = def.DeleteSettleDelay
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = def.RefreshTimeout
	}
	if cfg.CleanupTimeout <= 0 {
		cfg.CleanupTimeout = def.CleanupTimeout
	}
	return &Dashboard{
		cfg:     cfg,
		deps:    deps,
		changed: make(chan struct{}, 1),
	}
}

// Changed yields at least one receive after any state change. Multiple
// changes between receives coalesce into one.
func (d *Dashboard) Changed() <-chan struct{} {
	return d.changed
}

func (d *Dashboard) signalChange() {
	select {
	case d.changed <- struct{}{}:
	default:
	}
}

// Busy reports whether any manual operation is still in flight,
// including its detached settle phase.
func (d *Dashboard) Busy() bool { return d.busy.Load() > 0 }

// BusyCount returns the number of in-flight manual operations.
func (d *Dashboard) BusyCount() int64 { return d.busy.Load() }

func (d *Dashboard) beginOp() {
	d.busy.Add(1)
	d.signalChange()
}

func (d *Dashboard) endOp() {
	if n := d.busy.Add(-1); n < 0 {
		log.Error().Int64("count", n).Msg("busy counter underflow")
		d.busy.Store(0)
	}
	d.signalChange()
}

// Refresh re-lists the environments and swaps the snapshot. Concurrent
// callers serialize; a failed list leaves the previous snapshot intact.
func (d *Dashboard) Refresh(ctx context.Context) wsl.Result[string] {
	d.refreshMu.Lock()
	defer d.refreshMu.Unlock()

	res := d.deps.Runner.Run(ctx, "-l", "-v")
	if !res.Success {
		log.Warn().Str("error", res.Error).Msg("distro list refresh failed")
		return res
	}
	distros := wsl.ParseDistroList(res.Output)

	d.mu.Lock()
	d.distros = distros
	d.mu.Unlock()

	log.Debug().Int("count", len(distros)).Msg("distro snapshot refreshed")
	d.signalChange()
	return res
}

// Distros returns a sorted copy of the current snapshot.
func (d *Dashboard) Distros() []wsl.Distro {
	d.mu.RLock()
	snapshot := make([]wsl.Distro, len(d.distros))
	copy(snapshot, d.distros)
	d.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool {
		return strings.ToLower(snapshot[i].Name) < strings.ToLower(snapshot[j].Name)
	})
	return snapshot
}

// Distro returns the snapshot entry for name, if present.
func (d *Dashboard) Distro(name string) (wsl.Distro, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, distro := range d.distros {
		if distro.Name == name {
			return distro, true
		}
	}
	return wsl.Distro{}, false
}

// ListAvailable queries the catalog of installable distros.
func (d *Dashboard) ListAvailable(ctx context.Context) wsl.Result[[]wsl.AvailableDistro] {
	res := d.deps.Runner.Run(ctx, "-l", "-o")
	if !res.Success {
		return wsl.Fail[[]wsl.AvailableDistro](res.Output, res.Error)
	}
	return wsl.Ok(res.Output, wsl.ParseAvailableDistros(res.Output))
}

// WaitIdle blocks until every detached settle phase has finished.
// Intended for shutdown paths and tests.
func (d *Dashboard) WaitIdle() {
	d.wg.Wait()
}

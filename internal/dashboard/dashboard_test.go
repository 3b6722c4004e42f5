package dashboard

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"wsldash/internal/config"
	"wsldash/internal/launcher"
	"wsldash/internal/testutil/testlog"
	"wsldash/internal/wsl"
)

const listOutput = `  NAME      STATE      VERSION
* Ubuntu    Running    2
  Debian    Stopped    2
`

type fakeRunner struct {
	mu           sync.Mutex
	delay        time.Duration
	results      map[string]wsl.Result[string]
	calls        [][]string
	times        []time.Time
	spawned      []string
	keepAlive    map[string]bool
	heavyActive  int
	heavyOverlap bool
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		results:   map[string]wsl.Result[string]{},
		keepAlive: map[string]bool{},
	}
}

func key(args []string) string { return strings.Join(args, " ") }

func isHeavyVerb(args []string) bool {
	if len(args) == 0 {
		return false
	}
	switch args[0] {
	case "--export", "--import", "--manage", "--unregister":
		return true
	}
	return false
}

func (f *fakeRunner) Run(_ context.Context, args ...string) wsl.Result[string] {
	f.mu.Lock()
	f.calls = append(f.calls, args)
	f.times = append(f.times, time.Now())
	res, found := f.results[key(args)]
	heavy := isHeavyVerb(args)
	if heavy {
		f.heavyActive++
		if f.heavyActive > 1 {
			f.heavyOverlap = true
		}
	}
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if heavy {
		f.mu.Lock()
		f.heavyActive--
		f.mu.Unlock()
	}
	if found {
		return res
	}
	if key(args) == "-l -v" {
		return wsl.Ok(listOutput, "")
	}
	return wsl.Ok("", "")
}

func (f *fakeRunner) RunStreaming(ctx context.Context, onFragment func(string), args ...string) wsl.Result[string] {
	if onFragment != nil {
		onFragment("progress chunk")
	}
	return f.Run(ctx, args...)
}

func (f *fakeRunner) SpawnKeepAlive(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spawned = append(f.spawned, name)
	return nil
}

func (f *fakeRunner) KeepAliveRunning(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keepAlive[name]
}

func (f *fakeRunner) callCount(joined string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, call := range f.calls {
		if key(call) == joined {
			n++
		}
	}
	return n
}

// firstCallTime returns when the command was first issued.
func (f *fakeRunner) firstCallTime(joined string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, call := range f.calls {
		if key(call) == joined {
			return f.times[i], true
		}
	}
	return time.Time{}, false
}

type fakeLookup struct {
	records []launcher.DistroRecord
	err     error
}

func (f *fakeLookup) Records() ([]launcher.DistroRecord, error) { return f.records, f.err }

func (f *fakeLookup) Record(name string) (launcher.DistroRecord, bool, error) {
	for _, rec := range f.records {
		if rec.Name == name {
			return rec, true, f.err
		}
	}
	return launcher.DistroRecord{}, false, f.err
}

type fakeStore struct {
	mu      sync.Mutex
	entries map[string]config.InstanceEntry
	removed []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: map[string]config.InstanceEntry{}}
}

func (f *fakeStore) Instance(name string) (config.InstanceEntry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[name]
	return entry, ok, nil
}

func (f *fakeStore) SetInstance(name string, entry config.InstanceEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[name] = entry
	return nil
}

func (f *fakeStore) RemoveInstanceEntry(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, name)
	f.removed = append(f.removed, name)
	return nil
}

type fakeAutostart struct {
	mu       sync.Mutex
	enabled  map[string]bool
	disabled []string
}

func newFakeAutostart() *fakeAutostart {
	return &fakeAutostart{enabled: map[string]bool{}}
}

func (f *fakeAutostart) SetEnabled(distro string, enable bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled[distro] = enable
	if !enable {
		f.disabled = append(f.disabled, distro)
	}
	return nil
}

func (f *fakeAutostart) Enabled(distro string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled[distro]
}

type fakePackages struct {
	mu      sync.Mutex
	removed []string
}

func (f *fakePackages) Remove(_ context.Context, pfn string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, pfn)
	return nil
}

func (f *fakePackages) removedPFNs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}

func testConfig() Config {
	return Config{
		ProbeRecheckDelay:  10 * time.Millisecond,
		RestartSettleDelay: 10 * time.Millisecond,
		DeleteSettleDelay:  10 * time.Millisecond,
		RefreshTimeout:     time.Second,
		CleanupTimeout:     time.Second,
	}
}

func testDashboard(runner *fakeRunner) (*Dashboard, *fakeStore, *fakeAutostart, *fakePackages, *fakeLookup) {
	store := newFakeStore()
	auto := newFakeAutostart()
	packages := &fakePackages{}
	lookup := &fakeLookup{}
	dash := New(testConfig(), Deps{
		Runner:    runner,
		Store:     store,
		Launcher:  lookup,
		Autostart: auto,
		Packages:  packages,
	})
	return dash, store, auto, packages, lookup
}

func TestRefreshUpdatesSnapshot(t *testing.T) {
	testlog.Start(t)

	runner := newFakeRunner()
	dash, _, _, _, _ := testDashboard(runner)

	if res := dash.Refresh(context.Background()); !res.Success {
		t.Fatalf("refresh failed: %s", res.Error)
	}
	distros := dash.Distros()
	if len(distros) != 2 {
		t.Fatalf("expected 2 distros, got %+v", distros)
	}
	// Snapshot is sorted case-insensitively by name.
	if distros[0].Name != "Debian" || distros[1].Name != "Ubuntu" {
		t.Fatalf("unexpected order: %+v", distros)
	}
	if !distros[1].Default || distros[1].Status != wsl.StatusRunning {
		t.Fatalf("default/running flags lost: %+v", distros[1])
	}

	select {
	case <-dash.Changed():
	default:
		t.Fatalf("refresh did not signal a change")
	}
}

func TestRefreshFailureKeepsSnapshot(t *testing.T) {
	testlog.Start(t)

	runner := newFakeRunner()
	dash, _, _, _, _ := testDashboard(runner)
	dash.Refresh(context.Background())

	runner.mu.Lock()
	runner.results["-l -v"] = wsl.Fail[string]("", "service unavailable")
	runner.mu.Unlock()

	if res := dash.Refresh(context.Background()); res.Success {
		t.Fatalf("expected refresh failure")
	}
	if got := dash.Distros(); len(got) != 2 {
		t.Fatalf("failed refresh clobbered snapshot: %+v", got)
	}
}

func TestChangedCoalesces(t *testing.T) {
	testlog.Start(t)

	dash, _, _, _, _ := testDashboard(newFakeRunner())
	for range 5 {
		dash.signalChange()
	}
	select {
	case <-dash.Changed():
	default:
		t.Fatalf("no signal after changes")
	}
	select {
	case <-dash.Changed():
		t.Fatalf("signals did not coalesce")
	default:
	}
}

func TestStartHoldsBusyUntilRecheck(t *testing.T) {
	testlog.Start(t)

	runner := newFakeRunner()
	dash, _, _, _, _ := testDashboard(runner)

	res := dash.Start(context.Background(), "Ubuntu")
	if !res.Success {
		t.Fatalf("start failed: %s", res.Error)
	}
	if !dash.Busy() {
		t.Fatalf("busy must stay raised until the delayed re-check")
	}
	dash.WaitIdle()
	if dash.Busy() {
		t.Fatalf("busy counter leaked: %d", dash.BusyCount())
	}

	runner.mu.Lock()
	spawned := append([]string(nil), runner.spawned...)
	runner.mu.Unlock()
	if len(spawned) != 1 || spawned[0] != "Ubuntu" {
		t.Fatalf("keep-alive not spawned: %v", spawned)
	}
	// Immediate refresh plus the delayed re-check.
	if n := runner.callCount("-l -v"); n < 2 {
		t.Fatalf("expected at least 2 refreshes, got %d", n)
	}
}

func TestStartProbeFailureReleasesBusy(t *testing.T) {
	testlog.Start(t)

	runner := newFakeRunner()
	runner.results[key([]string{"-d", "Ubuntu", "--", "sh", "-c", "echo 'starting'"})] =
		wsl.Fail[string]("", "there is no distribution with the supplied name")
	dash, _, _, _, _ := testDashboard(runner)

	res := dash.Start(context.Background(), "Ubuntu")
	if res.Success {
		t.Fatalf("expected probe failure")
	}
	if dash.Busy() {
		t.Fatalf("busy counter leaked on failure")
	}
	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.spawned) != 0 {
		t.Fatalf("keep-alive spawned despite failed probe")
	}
}

func TestStartSkipsDuplicateKeepAlive(t *testing.T) {
	testlog.Start(t)

	runner := newFakeRunner()
	runner.keepAlive["Ubuntu"] = true
	dash, _, _, _, _ := testDashboard(runner)

	if res := dash.Start(context.Background(), "Ubuntu"); !res.Success {
		t.Fatalf("start failed: %s", res.Error)
	}
	dash.WaitIdle()
	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.spawned) != 0 {
		t.Fatalf("duplicate keep-alive spawned: %v", runner.spawned)
	}
}

func TestRestartStopFailureShortCircuits(t *testing.T) {
	testlog.Start(t)

	runner := newFakeRunner()
	runner.results[key([]string{"--terminate", "Ubuntu"})] = wsl.Fail[string]("", "not running")
	dash, _, _, _, _ := testDashboard(runner)

	if res := dash.Restart(context.Background(), "Ubuntu"); res.Success {
		t.Fatalf("expected restart to fail with the stop")
	}
	dash.WaitIdle()
	if dash.Busy() {
		t.Fatalf("busy counter leaked")
	}
	if n := runner.callCount(key([]string{"-d", "Ubuntu", "--", "sh", "-c", "echo 'starting'"})); n != 0 {
		t.Fatalf("start half ran despite failed stop")
	}
}

func TestRestartWaitsOutSettleDelay(t *testing.T) {
	testlog.Start(t)

	runner := newFakeRunner()
	dash, _, _, _, _ := testDashboard(runner)

	res := dash.Restart(context.Background(), "Ubuntu")
	if !res.Success {
		t.Fatalf("restart failed: %s", res.Error)
	}

	terminated, ok := runner.firstCallTime(key([]string{"--terminate", "Ubuntu"}))
	if !ok {
		t.Fatalf("stop half never ran")
	}
	started, ok := runner.firstCallTime(key([]string{"-d", "Ubuntu", "--", "sh", "-c", "echo 'starting'"}))
	if !ok {
		t.Fatalf("start half never ran")
	}
	if !started.After(terminated) {
		t.Fatalf("start ran before stop")
	}
	// Starting straight after terminate resurrects the old session, so a
	// settle gap must separate the two halves.
	if gap := started.Sub(terminated); gap < testConfig().RestartSettleDelay {
		t.Fatalf("settle gap too short: %s", gap)
	}

	dash.WaitIdle()
	if dash.Busy() {
		t.Fatalf("busy counter leaked: %d", dash.BusyCount())
	}
	runner.mu.Lock()
	spawned := append([]string(nil), runner.spawned...)
	runner.mu.Unlock()
	if len(spawned) != 1 || spawned[0] != "Ubuntu" {
		t.Fatalf("keep-alive not spawned after restart: %v", spawned)
	}
}

func TestShutdownAllRefreshesOnlyOnSuccess(t *testing.T) {
	testlog.Start(t)

	runner := newFakeRunner()
	dash, _, _, _, _ := testDashboard(runner)
	if res := dash.ShutdownAll(context.Background()); !res.Success {
		t.Fatalf("shutdown failed: %s", res.Error)
	}
	if n := runner.callCount("-l -v"); n != 1 {
		t.Fatalf("expected 1 refresh, got %d", n)
	}

	runner.results[key([]string{"--shutdown"})] = wsl.Fail[string]("", "access denied")
	if res := dash.ShutdownAll(context.Background()); res.Success {
		t.Fatalf("expected shutdown failure")
	}
	if n := runner.callCount("-l -v"); n != 1 {
		t.Fatalf("failed shutdown must not refresh, got %d", n)
	}
	if dash.Busy() {
		t.Fatalf("busy counter leaked")
	}
}

func TestDeleteSoleLauncherCleanup(t *testing.T) {
	testlog.Start(t)

	runner := newFakeRunner()
	dash, store, auto, packages, lookup := testDashboard(runner)
	lookup.records = []launcher.DistroRecord{
		{Name: "Ubuntu", PackageFamilyName: "Canonical.Ubuntu_abc"},
		{Name: "Debian", PackageFamilyName: "Debian.Debian_def"},
	}
	store.entries["Ubuntu"] = config.InstanceEntry{Autostart: true}
	auto.enabled["Ubuntu"] = true

	res := dash.Delete(context.Background(), "Ubuntu")
	if !res.Success {
		t.Fatalf("delete failed: %s", res.Error)
	}
	dash.WaitIdle()

	if dash.Busy() {
		t.Fatalf("busy counter leaked: %d", dash.BusyCount())
	}
	if _, ok, _ := store.Instance("Ubuntu"); ok {
		t.Fatalf("instance entry survived delete")
	}
	if auto.Enabled("Ubuntu") {
		t.Fatalf("autostart entry survived delete")
	}
	if got := packages.removedPFNs(); len(got) != 1 || got[0] != "Canonical.Ubuntu_abc" {
		t.Fatalf("launcher package not removed: %v", got)
	}
}

func TestDeleteSharedLauncherKeepsPackage(t *testing.T) {
	testlog.Start(t)

	runner := newFakeRunner()
	dash, _, _, packages, lookup := testDashboard(runner)
	lookup.records = []launcher.DistroRecord{
		{Name: "Ubuntu", PackageFamilyName: "Canonical.Ubuntu_abc"},
		{Name: "Ubuntu-Clone", PackageFamilyName: "Canonical.Ubuntu_abc"},
	}

	if res := dash.Delete(context.Background(), "Ubuntu"); !res.Success {
		t.Fatalf("delete failed: %s", res.Error)
	}
	dash.WaitIdle()
	if got := packages.removedPFNs(); len(got) != 0 {
		t.Fatalf("shared launcher package removed: %v", got)
	}
}

func TestDeleteUnregisterFailure(t *testing.T) {
	testlog.Start(t)

	runner := newFakeRunner()
	runner.results[key([]string{"--unregister", "Ubuntu"})] = wsl.Fail[string]("", "in use")
	dash, _, _, packages, lookup := testDashboard(runner)
	lookup.records = []launcher.DistroRecord{
		{Name: "Ubuntu", PackageFamilyName: "Canonical.Ubuntu_abc"},
	}

	if res := dash.Delete(context.Background(), "Ubuntu"); res.Success {
		t.Fatalf("expected delete failure")
	}
	dash.WaitIdle()
	if dash.Busy() {
		t.Fatalf("busy counter leaked")
	}
	if got := packages.removedPFNs(); len(got) != 0 {
		t.Fatalf("launcher removed despite failed unregister: %v", got)
	}
}

func TestHeavyOperationsDoNotOverlap(t *testing.T) {
	testlog.Start(t)

	runner := newFakeRunner()
	runner.delay = 20 * time.Millisecond
	dash, _, _, _, _ := testDashboard(runner)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		dash.Export(context.Background(), "Ubuntu", `C:\backup.tar`, nil)
	}()
	go func() {
		defer wg.Done()
		dash.Import(context.Background(), "Restored", `C:\wsl\restored`, `C:\backup.tar`)
	}()
	go func() {
		defer wg.Done()
		dash.Move(context.Background(), "Ubuntu", `D:\wsl\ubuntu`)
	}()
	wg.Wait()
	dash.WaitIdle()

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if runner.heavyOverlap {
		t.Fatalf("heavy operations overlapped")
	}
}

func TestExportStreamsProgress(t *testing.T) {
	testlog.Start(t)

	runner := newFakeRunner()
	dash, _, _, _, _ := testDashboard(runner)

	var frags []string
	res := dash.Export(context.Background(), "Ubuntu", `C:\backup.tar`, func(frag string) {
		frags = append(frags, frag)
	})
	if !res.Success {
		t.Fatalf("export failed: %s", res.Error)
	}
	if len(frags) == 0 {
		t.Fatalf("no progress fragments delivered")
	}
	if dash.Busy() {
		t.Fatalf("busy counter leaked")
	}
}

func TestImportRefreshesOnSuccess(t *testing.T) {
	testlog.Start(t)

	runner := newFakeRunner()
	dash, _, _, _, _ := testDashboard(runner)
	if res := dash.Import(context.Background(), "Restored", `C:\wsl\restored`, `C:\backup.tar`); !res.Success {
		t.Fatalf("import failed: %s", res.Error)
	}
	if n := runner.callCount("-l -v"); n != 1 {
		t.Fatalf("expected refresh after import, got %d", n)
	}

	runner.results[key([]string{"--import", "Broken", `C:\wsl\broken`, `C:\missing.tar`})] =
		wsl.Fail[string]("", "archive not found")
	if res := dash.Import(context.Background(), "Broken", `C:\wsl\broken`, `C:\missing.tar`); res.Success {
		t.Fatalf("expected import failure")
	}
	if n := runner.callCount("-l -v"); n != 1 {
		t.Fatalf("failed import must not refresh, got %d", n)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"wsldash/internal/testutil/testlog"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "wsldash", "instances.toml"))
}

func TestStoreSetAndGet(t *testing.T) {
	testlog.Start(t)

	store := tempStore(t)
	entry := InstanceEntry{InstallLocation: `C:\wsl\ubuntu`, Autostart: true, DefaultUser: "dev"}
	if err := store.SetInstance("Ubuntu", entry); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, ok, err := store.Instance("Ubuntu")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got != entry {
		t.Fatalf("got %+v want %+v", got, entry)
	}

	if _, ok, err = store.Instance("Debian"); err != nil || ok {
		t.Fatalf("absent entry: ok=%v err=%v", ok, err)
	}
}

func TestStoreMissingFile(t *testing.T) {
	testlog.Start(t)

	store := tempStore(t)
	entries, err := store.Instances()
	if err != nil {
		t.Fatalf("load absent file: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty store, got %+v", entries)
	}
}

func TestStoreRemoveIsIdempotent(t *testing.T) {
	testlog.Start(t)

	store := tempStore(t)
	if err := store.SetInstance("Ubuntu", InstanceEntry{Autostart: true}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.RemoveInstanceEntry("Ubuntu"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := store.RemoveInstanceEntry("Ubuntu"); err != nil {
		t.Fatalf("second remove must not fail: %v", err)
	}
	if _, ok, _ := store.Instance("Ubuntu"); ok {
		t.Fatalf("entry survived removal")
	}
}

func TestStoreRejectsCorruptFile(t *testing.T) {
	testlog.Start(t)

	path := filepath.Join(t.TempDir(), "instances.toml")
	if err := os.WriteFile(path, []byte("instances = not-toml ["), 0o644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}
	store := NewStore(path)
	if _, err := store.Instances(); err == nil {
		t.Fatalf("corrupt file must surface an error")
	}
}

func TestStorePersistsAcrossInstances(t *testing.T) {
	testlog.Start(t)

	path := filepath.Join(t.TempDir(), "instances.toml")
	if err := NewStore(path).SetInstance("Debian", InstanceEntry{DefaultUser: "admin"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := NewStore(path).Instance("Debian")
	if err != nil || !ok || got.DefaultUser != "admin" {
		t.Fatalf("reload failed: %+v ok=%v err=%v", got, ok, err)
	}
}

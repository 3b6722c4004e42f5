//go:build windows

package launcher

import (
	"fmt"

	"golang.org/x/sys/windows/registry"
)

const lxssKeyPath = `Software\Microsoft\Windows\CurrentVersion\Lxss`

// RegistryLookup reads the per-user environment registrations the tool
// itself maintains. Reading them directly is far cheaper than shelling
// out to PowerShell for the same data.
type RegistryLookup struct{}

func NewRegistryLookup() RegistryLookup { return RegistryLookup{} }

func (RegistryLookup) Records() ([]DistroRecord, error) {
	root, err := registry.OpenKey(registry.CURRENT_USER, lxssKeyPath, registry.READ)
	if err != nil {
		if err == registry.ErrNotExist {
			return nil, nil
		}
		return nil, fmt.Errorf("open lxss key: %w", err)
	}
	defer root.Close()

	guids, err := root.ReadSubKeyNames(-1)
	if err != nil {
		return nil, fmt.Errorf("enumerate lxss subkeys: %w", err)
	}

	var records []DistroRecord
	for _, guid := range guids {
		rec, ok := readRecord(guid)
		if ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (l RegistryLookup) Record(name string) (DistroRecord, bool, error) {
	records, err := l.Records()
	if err != nil {
		return DistroRecord{}, false, err
	}
	for _, rec := range records {
		if rec.Name == name {
			return rec, true, nil
		}
	}
	return DistroRecord{}, false, nil
}

func readRecord(guid string) (DistroRecord, bool) {
	key, err := registry.OpenKey(registry.CURRENT_USER, lxssKeyPath+`\`+guid, registry.READ)
	if err != nil {
		return DistroRecord{}, false
	}
	defer key.Close()

	name, _, err := key.GetStringValue("DistributionName")
	if err != nil || name == "" {
		return DistroRecord{}, false
	}
	basePath, _, _ := key.GetStringValue("BasePath")
	pfn, _, _ := key.GetStringValue("PackageFamilyName")
	version, _, err := key.GetIntegerValue("Version")
	if err != nil {
		version = 1
	}
	return DistroRecord{
		Name:              name,
		BasePath:          basePath,
		PackageFamilyName: pfn,
		Version:           int(version),
	}, true
}

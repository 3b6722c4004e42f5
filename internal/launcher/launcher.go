// Package launcher resolves how a distro was installed on the host: its
// on-disk location and, for store-installed distros, the package that
// owns the launcher executable.
package launcher

import "errors"

// ErrUnsupported marks host facilities that only exist on Windows.
var ErrUnsupported = errors.New("launcher registry is only available on windows")

// DistroRecord is one registered environment as the host platform sees
// it, independent of whether the tool currently lists it.
type DistroRecord struct {
	Name              string
	BasePath          string
	PackageFamilyName string
	Version           int
}

// Lookup enumerates the host's registered environments.
type Lookup interface {
	Records() ([]DistroRecord, error)
	Record(name string) (DistroRecord, bool, error)
}

// SoleUser reports the package family name of the named distro and
// whether no other registered distro shares it. A shared launcher
// package must survive the removal of one of its distros.
func SoleUser(records []DistroRecord, name string) (pfn string, sole bool) {
	for _, rec := range records {
		if rec.Name == name {
			pfn = rec.PackageFamilyName
			break
		}
	}
	if pfn == "" {
		return "", false
	}
	for _, rec := range records {
		if rec.Name != name && rec.PackageFamilyName == pfn {
			return pfn, false
		}
	}
	return pfn, true
}

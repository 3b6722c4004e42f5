//go:build !windows

package launcher

// RegistryLookup is a stub off-Windows so the rest of the tree builds
// and tests everywhere.
type RegistryLookup struct{}

func NewRegistryLookup() RegistryLookup { return RegistryLookup{} }

func (RegistryLookup) Records() ([]DistroRecord, error) {
	return nil, ErrUnsupported
}

func (RegistryLookup) Record(name string) (DistroRecord, bool, error) {
	return DistroRecord{}, false, ErrUnsupported
}

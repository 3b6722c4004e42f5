package wsl

// Status is the lifecycle state the tool reports for one distro.
type Status int

const (
	StatusStopped Status = iota
	StatusRunning
)

func (s Status) String() string {
	if s == StatusRunning {
		return "Running"
	}
	return "Stopped"
}

// Version is the backing-store version of a distro.
type Version int

const (
	V1 Version = 1
	V2 Version = 2
)

func (v Version) String() string {
	if v == V1 {
		return "1"
	}
	return "2"
}

// Distro is one managed environment as parsed from a list refresh. Name is
// the identity key. The cache replaces these wholesale; they are never
// mutated in place.
type Distro struct {
	Name    string
	Status  Status
	Version Version
	Default bool
}

// AvailableDistro is one entry of the installable-distribution catalog.
type AvailableDistro struct {
	Name         string
	FriendlyName string
}

package wsl

import "strings"

// ParseDistroList parses `-l -v` output: a header row followed by one row
// per distro, the default distro marked with a leading asterisk. Stray NUL
// bytes from a mis-decoded legacy console are stripped first.
func ParseDistroList(output string) []Distro {
	var distros []Distro
	sawHeader := false
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(strings.ReplaceAll(line, "\x00", ""))
		if line == "" {
			continue
		}
		if !sawHeader {
			sawHeader = true
			continue
		}
		isDefault := strings.HasPrefix(line, "*")
		line = strings.TrimSpace(strings.TrimPrefix(line, "*"))
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		d := Distro{
			Name:    fields[0],
			Default: isDefault,
		}
		if strings.EqualFold(fields[1], "Running") {
			d.Status = StatusRunning
		}
		if fields[2] == "1" {
			d.Version = V1
		} else {
			d.Version = V2
		}
		distros = append(distros, d)
	}
	return distros
}

// ParseAvailableDistros parses `-l -o` output. Everything before the
// NAME / FRIENDLY NAME header is banner text and is skipped; the friendly
// name spans the remainder of each row.
func ParseAvailableDistros(output string) []AvailableDistro {
	var available []AvailableDistro
	inTable := false
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(strings.ReplaceAll(line, "\x00", ""))
		if line == "" {
			continue
		}
		if !inTable {
			if strings.HasPrefix(line, "NAME") && strings.Contains(line, "FRIENDLY") {
				inTable = true
			}
			continue
		}
		name, friendly, ok := strings.Cut(line, " ")
		if !ok {
			available = append(available, AvailableDistro{Name: name, FriendlyName: name})
			continue
		}
		available = append(available, AvailableDistro{
			Name:         name,
			FriendlyName: strings.TrimSpace(friendly),
		})
	}
	return available
}

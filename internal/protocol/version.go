// Package protocol implements the versioned wire codec of the game protocol:
// the version table, the byte cursor and writer, the packet catalog, the
// typed packets with their decode and encode routines, and the connection
// phase machine.
package protocol

import (
	"fmt"
	"sort"
)

// Version is a protocol revision number. Revisions are totally ordered and
// are the sole input to every version-conditional branch.
type Version int32

// Named epoch boundaries.
const (
	V1_7_2  Version = 4
	V1_7_6  Version = 5
	V1_8    Version = 47
	V1_9    Version = 107
	V1_9_1  Version = 108
	V1_9_2  Version = 109
	V1_9_4  Version = 110
	V1_10   Version = 210
	V1_11   Version = 315
	V1_11_2 Version = 316
	V1_12   Version = 335
	V1_12_1 Version = 338
	V1_12_2 Version = 340
)

// Latest is the newest supported revision.
const Latest = V1_12_2

var versionNames = map[Version]string{
	V1_7_2:  "1.7.2",
	V1_7_6:  "1.7.10",
	V1_8:    "1.8.9",
	V1_9:    "1.9",
	V1_9_1:  "1.9.1",
	V1_9_2:  "1.9.2",
	V1_9_4:  "1.9.4",
	V1_10:   "1.10.2",
	V1_11:   "1.11",
	V1_11_2: "1.11.2",
	V1_12_1: "1.12.1",
	V1_12_2: "1.12.2",
}

func (v Version) String() string {
	if name, ok := versionNames[v]; ok {
		return name
	}
	return fmt.Sprintf("protocol-%d", int32(v))
}

// Supported reports whether the catalog carries packet tables for v.
func (v Version) Supported() bool {
	_, ok := versionNames[v]
	return ok
}

// AtLeast reports v >= o.
func (v Version) AtLeast(o Version) bool { return v >= o }

// SupportedVersions lists every supported revision in ascending order.
func SupportedVersions() []Version {
	out := make([]Version, 0, len(versionNames))
	for v := range versionNames {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseVersion resolves a release name ("1.8.9") or a protocol number ("47").
func ParseVersion(s string) (Version, error) {
	for v, name := range versionNames {
		if name == s {
			return v, nil
		}
	}
	var n int32
	if _, err := fmt.Sscanf(s, "%d", &n); err == nil && fmt.Sprint(n) == s {
		if v := Version(n); v.Supported() {
			return v, nil
		}
		return 0, fmt.Errorf("unsupported protocol version %d", n)
	}
	return 0, fmt.Errorf("unknown version %q", s)
}

// Range is an inclusive span of revisions.
type Range struct {
	Min, Max Version
}

// Contains reports whether v lies inside the range.
func (r Range) Contains(v Version) bool { return v >= r.Min && v <= r.Max }

// Width is the number of revisions covered; narrower ranges win lookups.
func (r Range) Width() int32 { return int32(r.Max - r.Min) }

func (r Range) String() string {
	if r.Min == r.Max {
		return r.Min.String()
	}
	return r.Min.String() + ".." + r.Max.String()
}

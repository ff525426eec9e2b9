package entities

import "fmt"

// The launcher plugin protocol version implemented by this SDK.
const (
	APIVersionMajor = 2
	APIVersionMinor = 0
	APIVersionPatch = 0
)

// Version identifies a launcher plugin protocol version. The major version
// gates compatibility: a launcher and a plugin interoperate only when their
// major versions match.
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

// APIVersion returns the protocol version implemented by this SDK.
func APIVersion() Version {
	return Version{Major: APIVersionMajor, Minor: APIVersionMinor, Patch: APIVersionPatch}
}

// String returns the version in dotted form, e.g. "2.0.0".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

package versioning

import "fmt"

// Status is the lifecycle stage of an API version. Versions only move forward:
// current, supported, deprecated, sunset.
type Status string

const (
	StatusCurrent    Status = "current"
	StatusSupported  Status = "supported"
	StatusDeprecated Status = "deprecated"
	StatusSunset     Status = "sunset"
)

var statusRank = map[Status]int{
	StatusCurrent:    0,
	StatusSupported:  1,
	StatusDeprecated: 2,
	StatusSunset:     3,
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", fmt.Errorf("unknown version status %q", s)
	}
	return st, nil
}

func (s Status) IsValid() bool {
	_, ok := statusRank[s]
	return ok
}

func (s Status) String() string { return string(s) }

// CanAdvanceTo reports whether a version in status s may move to next.
// Staying put is allowed; moving backward is not.
func (s Status) CanAdvanceTo(next Status) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	return ok && to >= from
}

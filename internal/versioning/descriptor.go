package versioning

import (
	"slices"
	"time"
)

// DateLayout is the layout of release and sunset dates in configuration.
const DateLayout = time.DateOnly

// Descriptor describes one API version. Descriptors are immutable once the
// registry is built; accessors return copies.
type Descriptor struct {
	Version             string
	Status              Status
	ReleaseDate         time.Time
	SunsetDate          time.Time // zero when no sunset is scheduled
	features            map[string]struct{}
	breakingChanges     []string
	deprecatedEndpoints []string
}

// NewDescriptor builds a descriptor. Dates are YYYY-MM-DD; sunset may be empty.
func NewDescriptor(version string, status Status, release, sunset string, features, breakingChanges, deprecatedEndpoints []string) (Descriptor, error) {
	d := Descriptor{
		Version:             version,
		Status:              status,
		features:            make(map[string]struct{}, len(features)),
		breakingChanges:     slices.Clone(breakingChanges),
		deprecatedEndpoints: slices.Clone(deprecatedEndpoints),
	}
	var err error
	if d.ReleaseDate, err = time.Parse(DateLayout, release); err != nil {
		return Descriptor{}, err
	}
	if sunset != "" {
		if d.SunsetDate, err = time.Parse(DateLayout, sunset); err != nil {
			return Descriptor{}, err
		}
	}
	for _, f := range features {
		d.features[f] = struct{}{}
	}
	return d, nil
}

func mustDescriptor(version string, status Status, release, sunset string, features, breakingChanges, deprecatedEndpoints []string) Descriptor {
	d, err := NewDescriptor(version, status, release, sunset, features, breakingChanges, deprecatedEndpoints)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Descriptor) HasFeature(feature string) bool {
	_, ok := d.features[feature]
	return ok
}

// Features returns the enabled feature flags, sorted.
func (d Descriptor) Features() []string {
	out := make([]string, 0, len(d.features))
	for f := range d.features {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

func (d Descriptor) BreakingChanges() []string {
	return slices.Clone(d.breakingChanges)
}

func (d Descriptor) DeprecatedEndpoints() []string {
	return slices.Clone(d.deprecatedEndpoints)
}

func (d Descriptor) HasSunset() bool {
	return !d.SunsetDate.IsZero()
}

func (d Descriptor) IsDeprecated() bool {
	return d.Status == StatusDeprecated
}

// IsDeprecatedEndpoint reports whether path is listed as deprecated in this version.
func (d Descriptor) IsDeprecatedEndpoint(path string) bool {
	return slices.Contains(d.deprecatedEndpoints, path)
}

// Retired reports whether the version is sunset and now is past its sunset day.
func (d Descriptor) Retired(now time.Time) bool {
	if d.Status != StatusSunset {
		return false
	}
	// The sunset day itself is still served.
	return !now.UTC().Before(d.SunsetDate.AddDate(0, 0, 1))
}

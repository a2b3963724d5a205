// Package versioning holds the API version registry: which versions exist,
// their lifecycle status, the feature flags each one enables and when each
// one is retired.
//
// The registry is built once at startup and is read-only afterwards, so it
// is safe for concurrent use without locking.
//
// Usage:
//
//	reg, err := versioning.NewRegistry(versioning.DefaultDescriptors(), versioning.DefaultVersion)
//	d, err := reg.Resolve(ctx, "")          // default version
//	d, err = reg.Resolve(ctx, "1.0")        // deprecated, still served
//	ok := reg.HasFeature("2.0", "webhook_support")
package versioning

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	dErrors "diyetlenio/pkg/domain-errors"
	"diyetlenio/pkg/requestcontext"
)

type Registry struct {
	versions       map[string]Descriptor
	order          []string
	defaultVersion string
	current        string
}

// NewRegistry validates descriptors and builds a registry.
// It rejects duplicate versions, more than one current version, an unknown
// default, a sunset default and sunset versions without a sunset date.
func NewRegistry(descriptors []Descriptor, defaultVersion string) (*Registry, error) {
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("version registry: no versions configured")
	}

	r := &Registry{
		versions:       make(map[string]Descriptor, len(descriptors)),
		defaultVersion: normalize(defaultVersion),
	}
	for _, d := range descriptors {
		d.Version = normalize(d.Version)
		if d.Version == "" {
			return nil, fmt.Errorf("version registry: empty version string")
		}
		if !d.Status.IsValid() {
			return nil, fmt.Errorf("version registry: version %s has unknown status %q", d.Version, d.Status)
		}
		if _, dup := r.versions[d.Version]; dup {
			return nil, fmt.Errorf("version registry: duplicate version %s", d.Version)
		}
		if d.Status == StatusCurrent {
			if r.current != "" {
				return nil, fmt.Errorf("version registry: versions %s and %s are both current", r.current, d.Version)
			}
			r.current = d.Version
		}
		if d.Status == StatusSunset && !d.HasSunset() {
			return nil, fmt.Errorf("version registry: sunset version %s has no sunset date", d.Version)
		}
		if d.HasSunset() && d.SunsetDate.Before(d.ReleaseDate) {
			return nil, fmt.Errorf("version registry: version %s sunsets before its release", d.Version)
		}
		r.versions[d.Version] = d
		r.order = append(r.order, d.Version)
	}

	def, ok := r.versions[r.defaultVersion]
	if !ok {
		return nil, fmt.Errorf("version registry: default version %q is not registered", defaultVersion)
	}
	if def.Status == StatusSunset {
		return nil, fmt.Errorf("version registry: default version %s is sunset", def.Version)
	}

	slices.SortFunc(r.order, compareVersions)
	return r, nil
}

// Resolve returns the descriptor for requested, or the default when requested is empty.
// Unknown versions yield a NotFound error; versions past their sunset date yield Unavailable.
func (r *Registry) Resolve(ctx context.Context, requested string) (Descriptor, error) {
	version := normalize(requested)
	if version == "" {
		version = r.defaultVersion
	}

	d, ok := r.versions[version]
	if !ok {
		return Descriptor{}, dErrors.WithDetails(dErrors.KindNotFound,
			fmt.Sprintf("API version %s is not supported", requested),
			map[string]any{
				dErrors.DetailResourceType: "api_version",
				"supported_versions":       r.servedVersions(ctx),
			})
	}

	if d.Retired(requestcontext.Now(ctx)) {
		return Descriptor{}, dErrors.WithDetails(dErrors.KindUnavailable,
			fmt.Sprintf("API version %s was retired on %s", d.Version, d.SunsetDate.Format(DateLayout)),
			map[string]any{
				"sunset_date":     d.SunsetDate.Format(DateLayout),
				"current_version": r.current,
			})
	}
	return d, nil
}

// HasFeature reports whether version enables feature. Unknown versions have no features.
func (r *Registry) HasFeature(version, feature string) bool {
	d, ok := r.versions[normalize(version)]
	return ok && d.HasFeature(feature)
}

// Lookup returns the descriptor for version without lifecycle checks.
func (r *Registry) Lookup(version string) (Descriptor, bool) {
	d, ok := r.versions[normalize(version)]
	return d, ok
}

// Versions returns every descriptor ordered by version.
func (r *Registry) Versions() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, v := range r.order {
		out = append(out, r.versions[v])
	}
	return out
}

func (r *Registry) Default() Descriptor {
	return r.versions[r.defaultVersion]
}

// Current returns the current descriptor, if any version holds that status.
func (r *Registry) Current() (Descriptor, bool) {
	if r.current == "" {
		return Descriptor{}, false
	}
	return r.versions[r.current], true
}

func (r *Registry) servedVersions(ctx context.Context) []string {
	now := requestcontext.Now(ctx)
	out := make([]string, 0, len(r.order))
	for _, v := range r.order {
		if !r.versions[v].Retired(now) {
			out = append(out, v)
		}
	}
	return out
}

// normalize trims whitespace and a leading "v" so "v1.1" and "1.1" match.
func normalize(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(strings.TrimPrefix(v, "v"), "V")
	return v
}

// compareVersions orders dotted numeric versions, falling back to string order.
func compareVersions(a, b string) int {
	ap, bp := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(ap) && i < len(bp); i++ {
		ai, errA := strconv.Atoi(ap[i])
		bi, errB := strconv.Atoi(bp[i])
		if errA != nil || errB != nil {
			if c := strings.Compare(ap[i], bp[i]); c != 0 {
				return c
			}
			continue
		}
		if ai != bi {
			return ai - bi
		}
	}
	return len(ap) - len(bp)
}

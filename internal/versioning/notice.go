package versioning

import (
	"fmt"
	"strings"
)

// DeprecationNotice is attached to responses served under a deprecated
// version or for a deprecated endpoint.
type DeprecationNotice struct {
	Version   string
	Successor string
	Sunset    string // YYYY-MM-DD, empty when none is scheduled
	Message   string
}

// Notice returns the deprecation notice for a request to path under d, if any.
func (r *Registry) Notice(d Descriptor, path string) (DeprecationNotice, bool) {
	endpoint := d.IsDeprecatedEndpoint(path)
	if !d.IsDeprecated() && !endpoint {
		return DeprecationNotice{}, false
	}

	n := DeprecationNotice{Version: d.Version}
	if d.HasSunset() {
		n.Sunset = d.SunsetDate.Format(DateLayout)
	}

	var parts []string
	if d.IsDeprecated() {
		msg := fmt.Sprintf("API version %s is deprecated", d.Version)
		if n.Sunset != "" {
			msg += " and will be retired on " + n.Sunset
		}
		parts = append(parts, msg)
	}
	if endpoint {
		parts = append(parts, fmt.Sprintf("endpoint %s is deprecated in version %s", path, d.Version))
	} else if eps := d.DeprecatedEndpoints(); len(eps) > 0 {
		parts = append(parts, "deprecated endpoints: "+strings.Join(eps, ", "))
	}
	if cur, ok := r.Current(); ok && cur.Version != d.Version {
		n.Successor = cur.Version
		msg := "migrate to " + cur.Version
		if bc := cur.BreakingChanges(); len(bc) > 0 {
			msg += " (breaking changes: " + strings.Join(bc, "; ") + ")"
		}
		parts = append(parts, msg)
	}
	n.Message = strings.Join(parts, "; ")
	return n, true
}

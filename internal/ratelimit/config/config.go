// Package config holds the parsed, immutable rate-limit policy.
//
// Rate strings are parsed once when the policy is built; resolving a path at
// request time is a map lookup plus a prefix scan over the exemptions.
package config

import (
	"fmt"
	"sort"
	"strings"

	"diyetlenio/internal/ratelimit/models"
)

// Well-known paths with their own limits.
const (
	PathLogin         = "/api/v1/auth/login/"
	PathRegister      = "/api/v1/auth/register/"
	PathNotifications = "/notifications/api/"
)

// DefaultRate applies to any path without an override.
const DefaultRate = "200/hour"

// DefaultOverrides returns the exact-path limits applied out of the box.
func DefaultOverrides() map[string]string {
	return map[string]string{
		PathLogin:         "5/minute",
		PathRegister:      "3/minute",
		PathNotifications: "120/hour",
	}
}

// DefaultExemptPrefixes bypass the limiter entirely.
func DefaultExemptPrefixes() []string {
	return []string{"/admin/", "/static/", "/media/", "/metrics"}
}

// Override pairs an exact path with its rate.
type Override struct {
	Path string
	Rate models.Rate
}

// Policy resolves the rate for a request path.
type Policy struct {
	overrides      map[string]models.Rate
	ordered        []Override
	defaultRate    models.Rate
	exemptPrefixes []string
}

// NewPolicy parses the default rate and every override. Any invalid rate
// string or empty path fails the whole policy.
func NewPolicy(defaultRate string, overrides map[string]string, exemptPrefixes []string) (*Policy, error) {
	def, err := models.ParseRate(defaultRate)
	if err != nil {
		return nil, fmt.Errorf("default rate: %w", err)
	}

	p := &Policy{
		overrides:   make(map[string]models.Rate, len(overrides)),
		defaultRate: def,
	}
	for path, raw := range overrides {
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("rate override with empty path")
		}
		rate, err := models.ParseRate(raw)
		if err != nil {
			return nil, fmt.Errorf("override for %s: %w", path, err)
		}
		p.overrides[path] = rate
		p.ordered = append(p.ordered, Override{Path: path, Rate: rate})
	}
	sort.Slice(p.ordered, func(i, j int) bool { return p.ordered[i].Path < p.ordered[j].Path })

	for _, prefix := range exemptPrefixes {
		if prefix = strings.TrimSpace(prefix); prefix != "" {
			p.exemptPrefixes = append(p.exemptPrefixes, prefix)
		}
	}
	return p, nil
}

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() *Policy {
	p, err := NewPolicy(DefaultRate, DefaultOverrides(), DefaultExemptPrefixes())
	if err != nil {
		panic(err)
	}
	return p
}

// IsExempt reports whether path starts with an exempt prefix.
func (p *Policy) IsExempt(path string) bool {
	for _, prefix := range p.exemptPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Resolve returns the rate for path. Overrides match the exact path only;
// everything else gets the default. ok is false for exempt paths.
func (p *Policy) Resolve(path string) (rate models.Rate, ok bool) {
	if p.IsExempt(path) {
		return models.Rate{}, false
	}
	if r, found := p.overrides[path]; found {
		return r, true
	}
	return p.defaultRate, true
}

// Default returns the fallback rate.
func (p *Policy) Default() models.Rate {
	return p.defaultRate
}

// Overrides returns the exact-path overrides sorted by path.
func (p *Policy) Overrides() []Override {
	return append([]Override(nil), p.ordered...)
}

// ExemptPrefixes returns a copy of the exempt prefixes.
func (p *Policy) ExemptPrefixes() []string {
	return append([]string(nil), p.exemptPrefixes...)
}

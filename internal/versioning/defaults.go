package versioning

import (
	"fmt"

	"diyetlenio/internal/platform/config"
)

// DefaultVersion is served when a request names no version.
const DefaultVersion = "1.1"

// DefaultDescriptors is the built-in version table.
func DefaultDescriptors() []Descriptor {
	return []Descriptor{
		mustDescriptor("1.0", StatusDeprecated, "2024-01-01", "2024-12-31",
			[]string{"basic_auth", "user_management", "appointment_booking", "basic_notifications"},
			nil,
			[]string{"/api/v1/legacy-auth/"},
		),
		mustDescriptor("1.1", StatusSupported, "2024-06-01", "2025-12-31",
			[]string{"jwt_auth", "enhanced_user_management", "appointment_booking", "advanced_notifications", "payment_integration", "file_upload"},
			[]string{"Changed authentication from basic to JWT", "Modified user response format"},
			nil,
		),
		mustDescriptor("2.0", StatusCurrent, "2024-10-01", "",
			[]string{
				"oauth2_auth", "comprehensive_user_management", "advanced_appointment_system",
				"real_time_notifications", "payment_integration", "file_management", "analytics",
				"webhook_support", "rate_limiting", "role_based_permissions", "webrtc_video_calls",
			},
			[]string{
				"Moved to OAuth2 authentication",
				"Restructured all response formats",
				"Changed date/time formats to ISO 8601",
				"Removed legacy endpoints",
			},
			nil,
		),
	}
}

// FromConfig builds the registry from configuration, using the built-in
// table when no versions are configured.
func FromConfig(cfg config.VersioningConfig) (*Registry, error) {
	if len(cfg.Versions) == 0 {
		return NewRegistry(DefaultDescriptors(), cfg.Default)
	}

	descriptors := make([]Descriptor, 0, len(cfg.Versions))
	for _, vc := range cfg.Versions {
		status, err := ParseStatus(vc.Status)
		if err != nil {
			return nil, fmt.Errorf("version %s: %w", vc.Version, err)
		}
		d, err := NewDescriptor(vc.Version, status, vc.ReleaseDate, vc.SunsetDate, vc.Features, vc.BreakingChanges, vc.DeprecatedEndpoints)
		if err != nil {
			return nil, fmt.Errorf("version %s: %w", vc.Version, err)
		}
		descriptors = append(descriptors, d)
	}
	return NewRegistry(descriptors, cfg.Default)
}

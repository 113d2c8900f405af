// Package user defines the user profile context: a local cache of platform
// user records so templates can name people without a platform round trip.
package user

import (
	"context"

	"github.com/penny-university/pennybot/pkg/domain"
)

// Profile is a cached platform user record.
type Profile struct {
	// SlackID is the platform user ID ("U..."), the natural key.
	SlackID     string           `json:"slack_id"`
	RealName    string           `json:"real_name"`
	DisplayName string           `json:"display_name"`
	Timezone    string           `json:"timezone"`
	UpdatedAt   domain.Timestamp `json:"updated_at"`
}

// Name returns the best human-readable name for the profile.
func (p *Profile) Name() string {
	if p.RealName != "" {
		return p.RealName
	}
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.SlackID
}

// Repository is the persistence contract for cached profiles.
type Repository interface {
	// Get retrieves a cached profile, or nil if never seen.
	Get(slackID string) (*Profile, error)
	// Save upserts a profile.
	Save(p *Profile) error
}

// Directory resolves platform user IDs to profiles, fetching and caching
// unknown ones from the platform.
type Directory interface {
	// Lookup returns profiles keyed by platform ID for each requested ID.
	Lookup(ctx context.Context, slackIDs []string) (map[string]*Profile, error)
}

package slack

import (
	"context"
	"fmt"

	"github.com/penny-university/pennybot/pkg/domain/user"
	"github.com/penny-university/pennybot/pkg/logger"
)

// Directory resolves platform user IDs to profiles, reading through a local
// cache and fetching unknown users from the Web API.
type Directory struct {
	repo   user.Repository
	client Client
}

// NewDirectory creates a read-through user directory.
func NewDirectory(repo user.Repository, client Client) *Directory {
	return &Directory{repo: repo, client: client}
}

// Lookup implements user.Directory.
func (d *Directory) Lookup(ctx context.Context, slackIDs []string) (map[string]*user.Profile, error) {
	out := make(map[string]*user.Profile, len(slackIDs))
	for _, id := range slackIDs {
		if id == "" {
			continue
		}
		if _, ok := out[id]; ok {
			continue
		}

		cached, err := d.repo.Get(id)
		if err != nil {
			return nil, fmt.Errorf("read user cache: %w", err)
		}
		if cached != nil {
			out[id] = cached
			continue
		}

		u, err := d.client.UserInfo(ctx, id)
		if err != nil {
			return nil, err
		}
		p := &user.Profile{
			SlackID:     id,
			RealName:    u.RealName,
			DisplayName: u.Profile.DisplayName,
			Timezone:    u.TZ,
		}
		if err := d.repo.Save(p); err != nil {
			// Cache misses are recoverable; the lookup itself succeeded.
			logger.WarnCF("slack", "User cache write failed", map[string]interface{}{
				"user":  id,
				"error": err.Error(),
			})
		}
		out[id] = p
	}
	return out, nil
}

var _ user.Directory = (*Directory)(nil)

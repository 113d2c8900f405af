package slack

import (
	"context"
	"errors"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penny-university/pennybot/pkg/domain/user"
)

type fakeUserRepo struct {
	profiles map[string]*user.Profile
	saveErr  error
}

func (f *fakeUserRepo) Get(slackID string) (*user.Profile, error) {
	return f.profiles[slackID], nil
}

func (f *fakeUserRepo) Save(p *user.Profile) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.profiles[p.SlackID] = p
	return nil
}

type fakeAPI struct {
	Client
	infoCalls int
	users     map[string]*slack.User
}

func (f *fakeAPI) UserInfo(ctx context.Context, userID string) (*slack.User, error) {
	f.infoCalls++
	u, ok := f.users[userID]
	if !ok {
		return nil, errors.New("user_not_found")
	}
	return u, nil
}

func TestLookupFetchesAndCaches(t *testing.T) {
	repo := &fakeUserRepo{profiles: map[string]*user.Profile{}}
	api := &fakeAPI{users: map[string]*slack.User{
		"U0AAA": {
			ID:       "U0AAA",
			RealName: "Pat Example",
			TZ:       "America/Chicago",
			Profile:  slack.UserProfile{DisplayName: "pat"},
		},
	}}
	d := NewDirectory(repo, api)

	got, err := d.Lookup(context.Background(), []string{"U0AAA"})
	require.NoError(t, err)
	require.Contains(t, got, "U0AAA")
	assert.Equal(t, "Pat Example", got["U0AAA"].RealName)
	assert.Equal(t, "America/Chicago", got["U0AAA"].Timezone)
	assert.Equal(t, 1, api.infoCalls)

	// Second lookup reads from the cache.
	_, err = d.Lookup(context.Background(), []string{"U0AAA"})
	require.NoError(t, err)
	assert.Equal(t, 1, api.infoCalls)
}

func TestLookupDeduplicatesAndSkipsEmpty(t *testing.T) {
	repo := &fakeUserRepo{profiles: map[string]*user.Profile{
		"U0AAA": {SlackID: "U0AAA", RealName: "Pat Example"},
	}}
	api := &fakeAPI{users: map[string]*slack.User{}}
	d := NewDirectory(repo, api)

	got, err := d.Lookup(context.Background(), []string{"", "U0AAA", "U0AAA"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Zero(t, api.infoCalls)
}

func TestLookupSurvivesCacheWriteFailure(t *testing.T) {
	repo := &fakeUserRepo{profiles: map[string]*user.Profile{}, saveErr: errors.New("disk full")}
	api := &fakeAPI{users: map[string]*slack.User{
		"U0AAA": {ID: "U0AAA", RealName: "Pat Example"},
	}}
	d := NewDirectory(repo, api)

	got, err := d.Lookup(context.Background(), []string{"U0AAA"})
	require.NoError(t, err)
	assert.Equal(t, "Pat Example", got["U0AAA"].RealName)
}

package pennychat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSplitComma(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty string", in: "", want: []string{}},
		{name: "single", in: "C1", want: []string{"C1"}},
		{name: "normal list", in: "a,b,c", want: []string{"a", "b", "c"}},
		{name: "empty segments dropped", in: "a,,b", want: []string{"a", "b"}},
		{name: "only delimiters", in: ",,,", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitComma(tt.in))
		})
	}
}

func TestJoinCommaRoundTrip(t *testing.T) {
	assert.Equal(t, "a,b", JoinComma([]string{"a", "b"}))
	assert.Equal(t, "", JoinComma(nil))
	assert.Equal(t, []string{"a", "b"}, SplitComma(JoinComma([]string{"a", "b"})))
}

func TestNewStartsAsDraft(t *testing.T) {
	pc := New("U_ORG")

	assert.True(t, pc.IsDraft())
	assert.Equal(t, "U_ORG", pc.OrganizerID)
	assert.False(t, pc.ID().IsZero())

	events := pc.PullEvents()
	assert.Len(t, events, 1)
	assert.Equal(t, "pennychat.created", string(events[0].EventType()))
}

func TestDestinationsUnion(t *testing.T) {
	pc := New("U_ORG")
	pc.SetChannels([]string{"C1", "C2"})
	pc.SetInvitees([]string{"U1"})

	assert.Equal(t, []string{"C1", "C2", "U1"}, pc.Destinations())
}

func TestMarkSharedReplacesShares(t *testing.T) {
	pc := New("U_ORG")
	pc.PullEvents()
	pc.Shares = map[string]string{"C_OLD": "111.1", "U_DM": "222.2"}

	pc.MarkShared(map[string]string{"C_NEW": "333.3"})

	assert.Equal(t, StatusShared, pc.Status)
	assert.Equal(t, map[string]string{"C_NEW": "333.3"}, pc.Shares,
		"stale entries are dropped, not merged")

	events := pc.PullEvents()
	assert.Len(t, events, 1)
	assert.Equal(t, "pennychat.shared", string(events[0].EventType()))
}

func TestIsChannelDestination(t *testing.T) {
	assert.True(t, IsChannelDestination("C024BE91L"))
	assert.False(t, IsChannelDestination("U024BE7LH"), "user DMs cannot be retracted")
	assert.False(t, IsChannelDestination("D024BE7LH"))
	assert.False(t, IsChannelDestination(""))
}

func TestMarkReminded(t *testing.T) {
	pc := New("U_ORG")
	pc.SetDate(time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC))
	pc.MarkShared(map[string]string{"C1": "1.1"})
	pc.PullEvents()

	pc.MarkReminded()
	assert.True(t, pc.ReminderSent)

	events := pc.PullEvents()
	assert.Len(t, events, 1)
	assert.Equal(t, "pennychat.reminder.sent", string(events[0].EventType()))
}

func TestStatusAndRoleStrings(t *testing.T) {
	assert.Equal(t, "draft", StatusDraft.String())
	assert.Equal(t, "shared", StatusShared.String())
	assert.Equal(t, "organizer", RoleOrganizer.String())
	assert.Equal(t, "attendee", RoleAttendee.String())
	assert.Equal(t, "invitee", RoleInvitee.String())
}

// Package pennychat defines the Penny Chat bounded context.
// A PennyChat is an aggregate root describing a scheduled chat event, its
// invitation draft, and its current distribution (share) state.
package pennychat

import (
	"errors"
	"strings"
	"time"

	"github.com/penny-university/pennybot/pkg/domain"
)

// ErrNotFound is returned by repositories when no record matches.
var ErrNotFound = errors.New("pennychat: not found")

// Status tracks whether an invitation has ever been distributed.
type Status int

const (
	StatusDraft  Status = 1
	StatusShared Status = 2
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusDraft:
		return "draft"
	case StatusShared:
		return "shared"
	default:
		return "unknown"
	}
}

// ---------------------------------------------------------------------------
// PennyChat aggregate root
// ---------------------------------------------------------------------------

// PennyChat is the aggregate root for the penny chat context. It serves as
// both the invitation and the record of the chat itself.
type PennyChat struct {
	domain.AggregateRoot

	Title       string `json:"title"`
	Description string `json:"description"`

	// Date is the scheduled start, UTC. Zero means not yet chosen.
	Date   time.Time `json:"date"`
	Status Status    `json:"status"`

	// OrganizerID is the platform user ID of the organizer.
	OrganizerID string `json:"organizer_id"`

	// Invitees and Channels are the configured destinations. The external
	// schema stores them as comma-delimited text; they are parsed at the
	// persistence boundary and handled as slices everywhere else.
	Invitees []string `json:"invitees"`
	Channels []string `json:"channels"`

	// UserTZ is the organizer's timezone name, captured at creation because
	// the platform's date/time pickers are timezone-naive.
	UserTZ string `json:"user_tz"`

	// ViewID is the platform view (modal) currently editing this draft.
	// Used to correlate block actions back to the invitation.
	ViewID string `json:"view_id"`

	// Shares maps destination ID -> posted message timestamp for every
	// currently live copy of the invitation message. Replaced wholesale on
	// each share.
	Shares map[string]string `json:"shares"`

	// ReminderSent records that the post-chat follow-up prompt went out.
	ReminderSent bool `json:"reminder_sent"`

	CreatedAt domain.Timestamp `json:"created_at"`
	UpdatedAt domain.Timestamp `json:"updated_at"`
}

// New creates a draft invitation for an organizer.
func New(organizerID string) *PennyChat {
	pc := &PennyChat{
		Status:      StatusDraft,
		OrganizerID: organizerID,
		Shares:      map[string]string{},
		CreatedAt:   domain.Now(),
		UpdatedAt:   domain.Now(),
	}
	pc.SetID(domain.NewID())
	pc.RecordEvent(domain.NewEvent(domain.EventChatCreated, pc.ID(), map[string]string{
		"organizer": organizerID,
	}))
	return pc
}

// ---------------------------------------------------------------------------
// Behavior
// ---------------------------------------------------------------------------

// IsDraft reports whether the invitation has never been distributed.
func (pc *PennyChat) IsDraft() bool { return pc.Status == StatusDraft }

// SetDetails updates title and description.
func (pc *PennyChat) SetDetails(title, description string) {
	pc.Title = title
	pc.Description = description
	pc.touch()
}

// SetDate sets the scheduled start.
func (pc *PennyChat) SetDate(t time.Time) {
	pc.Date = t.UTC()
	pc.touch()
}

// SetInvitees replaces the invitee destination list.
func (pc *PennyChat) SetInvitees(ids []string) {
	pc.Invitees = ids
	pc.touch()
}

// SetChannels replaces the channel destination list.
func (pc *PennyChat) SetChannels(ids []string) {
	pc.Channels = ids
	pc.touch()
}

// AttachView records the modal view currently editing this invitation.
func (pc *PennyChat) AttachView(viewID string) {
	pc.ViewID = viewID
	pc.touch()
}

// Destinations returns every destination the invitation should be posted to:
// the configured channels followed by the individual invitees.
func (pc *PennyChat) Destinations() []string {
	out := make([]string, 0, len(pc.Channels)+len(pc.Invitees))
	out = append(out, pc.Channels...)
	out = append(out, pc.Invitees...)
	return out
}

// MarkShared transitions the invitation to Shared and replaces the live
// shares map with the newly posted copies. Stale entries are dropped even if
// their retraction failed.
func (pc *PennyChat) MarkShared(shares map[string]string) {
	pc.Status = StatusShared
	pc.Shares = shares
	pc.touch()
	pc.RecordEvent(domain.NewEvent(domain.EventChatShared, pc.ID(), map[string]interface{}{
		"title":        pc.Title,
		"destinations": len(shares),
	}))
}

// MarkReminded records that the follow-up prompt has been sent.
func (pc *PennyChat) MarkReminded() {
	pc.ReminderSent = true
	pc.touch()
	pc.RecordEvent(domain.NewEvent(domain.EventReminderSent, pc.ID(), nil))
}

func (pc *PennyChat) touch() {
	pc.UpdatedAt = domain.Now()
}

// IsChannelDestination reports whether a destination is a group channel.
// Channel IDs start with "C"; anything else (user DMs, groups) cannot have
// its messages retracted by the bot.
func IsChannelDestination(dest string) bool {
	return strings.HasPrefix(dest, "C")
}

// ---------------------------------------------------------------------------
// Comma lists: legacy external schema quirk
// ---------------------------------------------------------------------------

// SplitComma splits comma-delimited text into discrete identifiers,
// discarding empty segments. An empty string yields an empty slice.
func SplitComma(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// JoinComma is the inverse of SplitComma for the persistence boundary.
func JoinComma(ids []string) string {
	return strings.Join(ids, ",")
}

// ---------------------------------------------------------------------------
// Participants
// ---------------------------------------------------------------------------

// Role types a participant's relationship to a chat.
type Role int

const (
	RoleOrganizer Role = 1
	RoleAttendee  Role = 2
	RoleInvitee   Role = 3
)

// String implements fmt.Stringer.
func (r Role) String() string {
	switch r {
	case RoleOrganizer:
		return "organizer"
	case RoleAttendee:
		return "attendee"
	case RoleInvitee:
		return "invitee"
	default:
		return "unknown"
	}
}

// Participant associates a user with a chat. At most one participant record
// exists per (chat, user) pair; re-adding a user updates the role.
type Participant struct {
	ChatID domain.EntityID `json:"chat_id"`
	UserID string          `json:"user_id"`
	Role   Role            `json:"role"`
}

// FollowUp is a post-chat contribution from a participant.
type FollowUp struct {
	ID      domain.EntityID `json:"id"`
	ChatID  domain.EntityID `json:"chat_id"`
	UserID  string          `json:"user_id"`
	Content string          `json:"content"`
	Date    time.Time       `json:"date"`
}

// ---------------------------------------------------------------------------
// Repository contract
// ---------------------------------------------------------------------------

// Repository is the persistence contract for the penny chat context.
type Repository interface {
	// Get retrieves a chat by ID, or ErrNotFound.
	Get(id domain.EntityID) (*PennyChat, error)
	// FindByView retrieves the chat whose draft modal has the given view ID.
	FindByView(viewID string) (*PennyChat, error)
	// FindDraftByOrganizer retrieves the organizer's current draft, if any.
	FindDraftByOrganizer(organizerID string) (*PennyChat, error)
	// Save persists the chat (create or update).
	Save(pc *PennyChat) error
	// DueForReminder returns shared chats whose date has passed without a
	// follow-up reminder going out.
	DueForReminder(now time.Time) ([]*PennyChat, error)

	// SetParticipant upserts the (chat, user) participant record.
	SetParticipant(chatID domain.EntityID, userID string, role Role) error
	// Participants lists all participant records for a chat.
	Participants(chatID domain.EntityID) ([]Participant, error)
	// AddFollowUp appends a follow-up record.
	AddFollowUp(fu *FollowUp) error
	// FollowUps lists follow-ups for a chat in insertion order.
	FollowUps(chatID domain.EntityID) ([]FollowUp, error)

	// RecordPrompt remembers a posted follow-up prompt message so thread
	// replies to it can be correlated back to the chat.
	RecordPrompt(chatID domain.EntityID, userID, messageTS string) error
	// ChatForPrompt retrieves the chat whose follow-up prompt carries the
	// given message timestamp, or ErrNotFound.
	ChatForPrompt(messageTS string) (*PennyChat, error)
}

// Package persistence provides SQLite-backed repository implementations for
// the domain repository interfaces. The external schema keeps the legacy
// text encodings (comma-delimited destination lists, JSON-serialized shares)
// and this package is the only place that reads or writes them.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/penny-university/pennybot/pkg/domain"
	"github.com/penny-university/pennybot/pkg/domain/pennychat"
	"github.com/penny-university/pennybot/pkg/domain/user"
)

const schema = `
CREATE TABLE IF NOT EXISTS penny_chats (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	date          INTEGER NOT NULL DEFAULT 0,
	status        INTEGER NOT NULL DEFAULT 1,
	organizer_id  TEXT NOT NULL,
	invitees      TEXT NOT NULL DEFAULT '',
	channels      TEXT NOT NULL DEFAULT '',
	user_tz       TEXT NOT NULL DEFAULT '',
	view_id       TEXT NOT NULL DEFAULT '',
	shares        TEXT NOT NULL DEFAULT '{}',
	reminder_sent INTEGER NOT NULL DEFAULT 0,
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_penny_chats_view ON penny_chats(view_id);
CREATE INDEX IF NOT EXISTS idx_penny_chats_organizer ON penny_chats(organizer_id, status);

CREATE TABLE IF NOT EXISTS participants (
	penny_chat_id TEXT NOT NULL REFERENCES penny_chats(id) ON DELETE CASCADE,
	user_id       TEXT NOT NULL,
	role          INTEGER NOT NULL,
	UNIQUE (penny_chat_id, user_id)
);

CREATE TABLE IF NOT EXISTS follow_ups (
	id            TEXT PRIMARY KEY,
	penny_chat_id TEXT NOT NULL REFERENCES penny_chats(id) ON DELETE CASCADE,
	user_id       TEXT NOT NULL,
	content       TEXT NOT NULL,
	date          INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS reminder_prompts (
	message_ts    TEXT PRIMARY KEY,
	penny_chat_id TEXT NOT NULL REFERENCES penny_chats(id) ON DELETE CASCADE,
	user_id       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	slack_id     TEXT PRIMARY KEY,
	real_name    TEXT NOT NULL DEFAULT '',
	display_name TEXT NOT NULL DEFAULT '',
	timezone     TEXT NOT NULL DEFAULT '',
	updated_at   INTEGER NOT NULL
);
`

// Store owns the SQLite handle and the schema.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the database at path. Use ":memory:"
// for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Penny chat repository
// ---------------------------------------------------------------------------

// PennyChatRepository is the SQLite implementation of pennychat.Repository.
type PennyChatRepository struct {
	db *sql.DB
}

// NewPennyChatRepository creates the repository over an open store.
func NewPennyChatRepository(s *Store) *PennyChatRepository {
	return &PennyChatRepository{db: s.db}
}

const chatColumns = `id, title, description, date, status, organizer_id,
	invitees, channels, user_tz, view_id, shares, reminder_sent,
	created_at, updated_at`

// Get implements pennychat.Repository.
func (r *PennyChatRepository) Get(id domain.EntityID) (*pennychat.PennyChat, error) {
	row := r.db.QueryRow(`SELECT `+chatColumns+` FROM penny_chats WHERE id = ?`, id.String())
	return scanChat(row)
}

// FindByView implements pennychat.Repository.
func (r *PennyChatRepository) FindByView(viewID string) (*pennychat.PennyChat, error) {
	if viewID == "" {
		return nil, pennychat.ErrNotFound
	}
	row := r.db.QueryRow(`SELECT `+chatColumns+` FROM penny_chats WHERE view_id = ?`, viewID)
	return scanChat(row)
}

// FindDraftByOrganizer implements pennychat.Repository.
func (r *PennyChatRepository) FindDraftByOrganizer(organizerID string) (*pennychat.PennyChat, error) {
	row := r.db.QueryRow(`SELECT `+chatColumns+` FROM penny_chats
		WHERE organizer_id = ? AND status = ?
		ORDER BY updated_at DESC LIMIT 1`,
		organizerID, int(pennychat.StatusDraft))
	return scanChat(row)
}

// Save implements pennychat.Repository with an upsert keyed on the ID.
func (r *PennyChatRepository) Save(pc *pennychat.PennyChat) error {
	shares, err := json.Marshal(pc.Shares)
	if err != nil {
		return fmt.Errorf("encode shares: %w", err)
	}

	_, err = r.db.Exec(`INSERT INTO penny_chats (`+chatColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			date = excluded.date,
			status = excluded.status,
			organizer_id = excluded.organizer_id,
			invitees = excluded.invitees,
			channels = excluded.channels,
			user_tz = excluded.user_tz,
			view_id = excluded.view_id,
			shares = excluded.shares,
			reminder_sent = excluded.reminder_sent,
			updated_at = excluded.updated_at`,
		pc.ID().String(), pc.Title, pc.Description, unix(pc.Date), int(pc.Status),
		pc.OrganizerID,
		pennychat.JoinComma(pc.Invitees), pennychat.JoinComma(pc.Channels),
		pc.UserTZ, pc.ViewID, string(shares), boolInt(pc.ReminderSent),
		pc.CreatedAt.Unix(), pc.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("save penny chat %s: %w", pc.ID(), err)
	}
	return nil
}

// DueForReminder implements pennychat.Repository.
func (r *PennyChatRepository) DueForReminder(now time.Time) ([]*pennychat.PennyChat, error) {
	rows, err := r.db.Query(`SELECT `+chatColumns+` FROM penny_chats
		WHERE status = ? AND reminder_sent = 0 AND date > 0 AND date <= ?`,
		int(pennychat.StatusShared), now.UTC().Unix())
	if err != nil {
		return nil, fmt.Errorf("query due chats: %w", err)
	}
	defer rows.Close()

	var out []*pennychat.PennyChat
	for rows.Next() {
		pc, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pc)
	}
	return out, rows.Err()
}

// SetParticipant implements pennychat.Repository. Re-adding a (chat, user)
// pair updates the role instead of duplicating the record.
func (r *PennyChatRepository) SetParticipant(chatID domain.EntityID, userID string, role pennychat.Role) error {
	_, err := r.db.Exec(`INSERT INTO participants (penny_chat_id, user_id, role)
		VALUES (?, ?, ?)
		ON CONFLICT(penny_chat_id, user_id) DO UPDATE SET role = excluded.role`,
		chatID.String(), userID, int(role))
	if err != nil {
		return fmt.Errorf("set participant %s/%s: %w", chatID, userID, err)
	}
	return nil
}

// Participants implements pennychat.Repository.
func (r *PennyChatRepository) Participants(chatID domain.EntityID) ([]pennychat.Participant, error) {
	rows, err := r.db.Query(`SELECT user_id, role FROM participants
		WHERE penny_chat_id = ? ORDER BY rowid`, chatID.String())
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	var out []pennychat.Participant
	for rows.Next() {
		p := pennychat.Participant{ChatID: chatID}
		var role int
		if err := rows.Scan(&p.UserID, &role); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		p.Role = pennychat.Role(role)
		out = append(out, p)
	}
	return out, rows.Err()
}

// AddFollowUp implements pennychat.Repository.
func (r *PennyChatRepository) AddFollowUp(fu *pennychat.FollowUp) error {
	if fu.ID.IsZero() {
		fu.ID = domain.NewID()
	}
	if fu.Date.IsZero() {
		fu.Date = time.Now().UTC()
	}
	_, err := r.db.Exec(`INSERT INTO follow_ups (id, penny_chat_id, user_id, content, date)
		VALUES (?, ?, ?, ?, ?)`,
		fu.ID.String(), fu.ChatID.String(), fu.UserID, fu.Content, fu.Date.UTC().Unix())
	if err != nil {
		return fmt.Errorf("add follow up: %w", err)
	}
	return nil
}

// FollowUps implements pennychat.Repository.
func (r *PennyChatRepository) FollowUps(chatID domain.EntityID) ([]pennychat.FollowUp, error) {
	rows, err := r.db.Query(`SELECT id, user_id, content, date FROM follow_ups
		WHERE penny_chat_id = ? ORDER BY rowid`, chatID.String())
	if err != nil {
		return nil, fmt.Errorf("query follow ups: %w", err)
	}
	defer rows.Close()

	var out []pennychat.FollowUp
	for rows.Next() {
		fu := pennychat.FollowUp{ChatID: chatID}
		var id string
		var date int64
		if err := rows.Scan(&id, &fu.UserID, &fu.Content, &date); err != nil {
			return nil, fmt.Errorf("scan follow up: %w", err)
		}
		fu.ID = domain.EntityID(id)
		fu.Date = time.Unix(date, 0).UTC()
		out = append(out, fu)
	}
	return out, rows.Err()
}

// RecordPrompt implements pennychat.Repository. Re-recording the same
// message timestamp is a no-op.
func (r *PennyChatRepository) RecordPrompt(chatID domain.EntityID, userID, messageTS string) error {
	_, err := r.db.Exec(`INSERT INTO reminder_prompts (message_ts, penny_chat_id, user_id)
		VALUES (?, ?, ?)
		ON CONFLICT(message_ts) DO NOTHING`,
		messageTS, chatID.String(), userID)
	if err != nil {
		return fmt.Errorf("record prompt for %s: %w", chatID, err)
	}
	return nil
}

// ChatForPrompt implements pennychat.Repository.
func (r *PennyChatRepository) ChatForPrompt(messageTS string) (*pennychat.PennyChat, error) {
	if messageTS == "" {
		return nil, pennychat.ErrNotFound
	}
	row := r.db.QueryRow(`SELECT `+chatColumns+` FROM penny_chats
		WHERE id = (SELECT penny_chat_id FROM reminder_prompts WHERE message_ts = ?)`,
		messageTS)
	return scanChat(row)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChat(row rowScanner) (*pennychat.PennyChat, error) {
	var (
		pc                             pennychat.PennyChat
		id, invitees, channels, shares string
		date, created, updated         int64
		status, reminded               int
	)
	err := row.Scan(&id, &pc.Title, &pc.Description, &date, &status, &pc.OrganizerID,
		&invitees, &channels, &pc.UserTZ, &pc.ViewID, &shares, &reminded,
		&created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pennychat.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan penny chat: %w", err)
	}

	pc.SetID(domain.EntityID(id))
	pc.Status = pennychat.Status(status)
	if date > 0 {
		pc.Date = time.Unix(date, 0).UTC()
	}
	pc.Invitees = pennychat.SplitComma(invitees)
	pc.Channels = pennychat.SplitComma(channels)
	pc.ReminderSent = reminded != 0
	pc.CreatedAt = domain.TimestampFrom(time.Unix(created, 0))
	pc.UpdatedAt = domain.TimestampFrom(time.Unix(updated, 0))

	pc.Shares = map[string]string{}
	if shares != "" {
		if err := json.Unmarshal([]byte(shares), &pc.Shares); err != nil {
			return nil, fmt.Errorf("decode shares for %s: %w", id, err)
		}
	}
	return &pc, nil
}

func unix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().Unix()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ---------------------------------------------------------------------------
// User repository
// ---------------------------------------------------------------------------

// UserRepository is the SQLite implementation of user.Repository.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates the repository over an open store.
func NewUserRepository(s *Store) *UserRepository {
	return &UserRepository{db: s.db}
}

// Get implements user.Repository. A never-seen user returns (nil, nil).
func (r *UserRepository) Get(slackID string) (*user.Profile, error) {
	row := r.db.QueryRow(`SELECT slack_id, real_name, display_name, timezone, updated_at
		FROM users WHERE slack_id = ?`, slackID)

	var p user.Profile
	var updated int64
	err := row.Scan(&p.SlackID, &p.RealName, &p.DisplayName, &p.Timezone, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user %s: %w", slackID, err)
	}
	p.UpdatedAt = domain.TimestampFrom(time.Unix(updated, 0))
	return &p, nil
}

// Save implements user.Repository with an upsert.
func (r *UserRepository) Save(p *user.Profile) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = domain.Now()
	}
	_, err := r.db.Exec(`INSERT INTO users (slack_id, real_name, display_name, timezone, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(slack_id) DO UPDATE SET
			real_name = excluded.real_name,
			display_name = excluded.display_name,
			timezone = excluded.timezone,
			updated_at = excluded.updated_at`,
		p.SlackID, p.RealName, p.DisplayName, p.Timezone, p.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("save user %s: %w", p.SlackID, err)
	}
	return nil
}

var (
	_ pennychat.Repository = (*PennyChatRepository)(nil)
	_ user.Repository      = (*UserRepository)(nil)
)

package tasks

import (
	"context"
	"fmt"

	"github.com/penny-university/pennybot/pkg/domain"
	"github.com/penny-university/pennybot/pkg/domain/pennychat"
	"github.com/penny-university/pennybot/pkg/domain/user"
	"github.com/penny-university/pennybot/pkg/logger"
	slackclient "github.com/penny-university/pennybot/pkg/slack"
	"github.com/penny-university/pennybot/pkg/templates"
)

// Penny chat task names.
const (
	TaskShareInvitation = "share_penny_chat_invitation"
	TaskNotifyOrganizer = "post_organizer_edit_after_share"
	TaskReminderSweep   = "penny_chat_reminder_sweep"
)

// ArgChatID is the args key carrying the invitation ID.
const ArgChatID = "penny_chat_id"

// PennyChatTasks holds the collaborators for the deferred penny chat work:
// share/re-share distribution, organizer confirmation, and follow-up
// reminders. Each invocation is a standalone unit; coordination happens only
// through the persisted record.
type PennyChatTasks struct {
	chats  pennychat.Repository
	users  user.Directory
	client slackclient.Client
	queue  Submitter
	bus    domain.EventBus
}

// NewPennyChatTasks wires the penny chat task handlers.
func NewPennyChatTasks(
	chats pennychat.Repository,
	users user.Directory,
	client slackclient.Client,
	queue Submitter,
	bus domain.EventBus,
) *PennyChatTasks {
	return &PennyChatTasks{chats: chats, users: users, client: client, queue: queue, bus: bus}
}

// Register binds the handlers onto a queue.
func (t *PennyChatTasks) Register(q *Queue) {
	q.Register(TaskShareInvitation, t.ShareInvitation)
	q.Register(TaskNotifyOrganizer, t.NotifyOrganizer)
	q.Register(TaskReminderSweep, t.ReminderSweep)
}

// ShareInvitation distributes (or re-distributes) an invitation:
//
//  1. Best-effort retraction of the prior live copies. Only channel
//     destinations are attempted (direct messages cannot be retracted)
//     and any delete failure is swallowed.
//  2. Render the invitation with RSVP affordances.
//  3. Post to every configured destination. Any post failure aborts the
//     task before persistence, so a retry re-runs the whole share.
//  4. Replace the shares map wholesale and persist.
//  5. Queue the organizer confirmation.
func (t *PennyChatTasks) ShareInvitation(ctx context.Context, args Args) error {
	pc, err := t.chats.Get(domain.EntityID(args[ArgChatID]))
	if err != nil {
		return fmt.Errorf("load invitation: %w", err)
	}

	organizerName, err := t.lookupName(ctx, pc.OrganizerID)
	if err != nil {
		return err
	}

	for dest, ts := range pc.Shares {
		if !pennychat.IsChannelDestination(dest) {
			continue
		}
		if err := t.client.DeleteMessage(ctx, dest, ts); err != nil {
			logger.DebugCF("tasks", "Stale share retraction failed", map[string]interface{}{
				"destination": dest,
				"error":       err.Error(),
			})
		}
	}

	blocks := templates.SharedMessage(pc, organizerName, true)

	shares := make(map[string]string)
	for _, dest := range pc.Destinations() {
		channelID, ts, err := t.client.PostMessage(ctx, dest, blocks)
		if err != nil {
			return fmt.Errorf("share to %s: %w", dest, err)
		}
		shares[channelID] = ts
	}

	pc.MarkShared(shares)
	if err := t.chats.Save(pc); err != nil {
		return fmt.Errorf("persist shares: %w", err)
	}
	domain.PublishPending(t.bus, pc)

	if err := t.chats.SetParticipant(pc.ID(), pc.OrganizerID, pennychat.RoleOrganizer); err != nil {
		return fmt.Errorf("record organizer: %w", err)
	}

	if t.queue != nil {
		if _, err := t.queue.Submit(TaskNotifyOrganizer, args); err != nil {
			return fmt.Errorf("queue organizer confirmation: %w", err)
		}
	}

	logger.InfoCF("tasks", "Invitation shared", map[string]interface{}{
		"penny_chat":   pc.ID().String(),
		"destinations": len(shares),
	})
	return nil
}

// NotifyOrganizer sends the organizer the post-share confirmation with the
// pluralized recipient listing and the edit affordance.
func (t *PennyChatTasks) NotifyOrganizer(ctx context.Context, args Args) error {
	pc, err := t.chats.Get(domain.EntityID(args[ArgChatID]))
	if err != nil {
		return fmt.Errorf("load invitation: %w", err)
	}

	profiles, err := t.users.Lookup(ctx, pc.Invitees)
	if err != nil {
		return fmt.Errorf("resolve invitees: %w", err)
	}

	recipients := make([]string, 0, len(pc.Invitees)+len(pc.Channels))
	for _, id := range pc.Invitees {
		if p, ok := profiles[id]; ok {
			recipients = append(recipients, p.Name())
		} else {
			recipients = append(recipients, id)
		}
	}
	for _, ch := range pc.Channels {
		recipients = append(recipients, templates.ChannelMention(ch))
	}

	organizerName, err := t.lookupName(ctx, pc.OrganizerID)
	if err != nil {
		return err
	}

	blocks := templates.OrganizerEditAfterShare(pc, organizerName, recipients)
	if _, _, err := t.client.PostMessage(ctx, pc.OrganizerID, blocks); err != nil {
		return fmt.Errorf("notify organizer: %w", err)
	}
	return nil
}

// ReminderSweep finds shared chats whose scheduled time has passed without a
// follow-up prompt and messages their participants. Runs on the cron
// scheduler; marking the chat reminded keeps repeat sweeps idempotent.
func (t *PennyChatTasks) ReminderSweep(ctx context.Context, _ Args) error {
	due, err := t.chats.DueForReminder(domain.Now().Time)
	if err != nil {
		return fmt.Errorf("find due chats: %w", err)
	}

	for _, pc := range due {
		participants, err := t.chats.Participants(pc.ID())
		if err != nil {
			return fmt.Errorf("load participants for %s: %w", pc.ID(), err)
		}

		blocks := templates.FollowUpPrompt(pc)
		for _, p := range participants {
			_, ts, err := t.client.PostMessage(ctx, p.UserID, blocks)
			if err != nil {
				return fmt.Errorf("follow-up prompt to %s: %w", p.UserID, err)
			}
			// Losing the correlation only costs thread capture for this
			// prompt; the prompt itself went out.
			if err := t.chats.RecordPrompt(pc.ID(), p.UserID, ts); err != nil {
				logger.WarnCF("tasks", "Prompt correlation not recorded", map[string]interface{}{
					"penny_chat": pc.ID().String(),
					"error":      err.Error(),
				})
			}
		}

		pc.MarkReminded()
		if err := t.chats.Save(pc); err != nil {
			return fmt.Errorf("persist reminder state: %w", err)
		}
		domain.PublishPending(t.bus, pc)

		logger.InfoCF("tasks", "Follow-up reminder sent", map[string]interface{}{
			"penny_chat":   pc.ID().String(),
			"participants": len(participants),
		})
	}
	return nil
}

func (t *PennyChatTasks) lookupName(ctx context.Context, slackID string) (string, error) {
	profiles, err := t.users.Lookup(ctx, []string{slackID})
	if err != nil {
		return "", fmt.Errorf("resolve user %s: %w", slackID, err)
	}
	if p, ok := profiles[slackID]; ok {
		return p.Name(), nil
	}
	return slackID, nil
}

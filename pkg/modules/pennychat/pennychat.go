// Package pennychat groups the penny chat behaviors as one dispatch unit:
// invitation creation through the modal, draft updates from modal
// interactions, share submission, the edit affordance, and RSVP handling.
package pennychat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/penny-university/pennybot/pkg/bot"
	"github.com/penny-university/pennybot/pkg/domain"
	chatdomain "github.com/penny-university/pennybot/pkg/domain/pennychat"
	"github.com/penny-university/pennybot/pkg/domain/user"
	"github.com/penny-university/pennybot/pkg/logger"
	slackclient "github.com/penny-university/pennybot/pkg/slack"
	"github.com/penny-university/pennybot/pkg/tasks"
	"github.com/penny-university/pennybot/pkg/templates"
)

// Handlers owns the penny chat behaviors' collaborators.
type Handlers struct {
	chats  chatdomain.Repository
	users  user.Directory
	client slackclient.Client
	queue  tasks.Submitter
	bus    domain.EventBus
}

// NewHandlers wires the penny chat handlers.
func NewHandlers(
	chats chatdomain.Repository,
	users user.Directory,
	client slackclient.Client,
	queue tasks.Submitter,
	bus domain.EventBus,
) *Handlers {
	return &Handlers{chats: chats, users: users, client: client, queue: queue, bus: bus}
}

// Module builds the dispatch unit. Binding order matters: the share
// submission and edit button are checked before the generic in-view field
// updates.
func (h *Handlers) Module() *bot.Module {
	blockActions := bot.TypeIs("block_actions")
	return bot.NewModule("penny_chat").
		Handle("share_submission", h.shareSubmission,
			bot.TypeIs("view_submission"),
			bot.CallbackIDIs(templates.CallbackShare)).
		Handle("open_edit", h.openEdit,
			blockActions,
			bot.ActionIDIs(templates.ActionEdit)).
		Handle("rsvp_accept", h.rsvp(chatdomain.RoleAttendee),
			blockActions,
			bot.ActionIDIs(templates.ActionCanAttend)).
		Handle("rsvp_decline", h.rsvp(chatdomain.RoleInvitee),
			blockActions,
			bot.ActionIDIs(templates.ActionCanNotAttend)).
		Handle("update_date", h.updateDate,
			blockActions, bot.InView(),
			bot.ActionIDIs(templates.ActionDateSelect)).
		Handle("update_time", h.updateTime,
			blockActions, bot.InView(),
			bot.ActionIDIs(templates.ActionTimeSelect)).
		Handle("update_invitees", h.updateInvitees,
			blockActions, bot.InView(),
			bot.ActionIDIs(templates.ActionUserSelect)).
		Handle("update_channels", h.updateChannels,
			blockActions, bot.InView(),
			bot.ActionIDIs(templates.ActionChannelSelect)).
		Handle("record_follow_up", h.recordFollowUp,
			bot.TypeIs("message"),
			bot.NotSubtype("bot_message"),
			bot.HasField("thread_ts"))
}

// ---------------------------------------------------------------------------
// Slash command entry
// ---------------------------------------------------------------------------

// CreateChat begins invitation creation for a slash command event: it reuses
// the organizer's existing draft or starts a new one, then opens the modal.
func (h *Handlers) CreateChat(ctx context.Context, e bot.Event) error {
	organizerID := e.String("user_id")
	triggerID := e.String("trigger_id")
	if organizerID == "" || triggerID == "" {
		return fmt.Errorf("pennychat: command event missing user_id or trigger_id")
	}

	pc, err := h.chats.FindDraftByOrganizer(organizerID)
	switch {
	case errors.Is(err, chatdomain.ErrNotFound):
		pc = chatdomain.New(organizerID)
		if profiles, lerr := h.users.Lookup(ctx, []string{organizerID}); lerr == nil {
			if p, ok := profiles[organizerID]; ok {
				pc.UserTZ = p.Timezone
			}
		}
	case err != nil:
		return fmt.Errorf("find draft: %w", err)
	}

	viewID, err := h.client.OpenView(ctx, triggerID, templates.ChatModal(pc))
	if err != nil {
		return fmt.Errorf("open creation modal: %w", err)
	}

	pc.AttachView(viewID)
	if err := h.chats.Save(pc); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	domain.PublishPending(h.bus, pc)

	logger.InfoCF("pennychat", "Draft invitation opened", map[string]interface{}{
		"penny_chat": pc.ID().String(),
		"organizer":  organizerID,
	})
	return nil
}

// ---------------------------------------------------------------------------
// Modal field updates
// ---------------------------------------------------------------------------

func (h *Handlers) draftForView(e bot.Event) (*chatdomain.PennyChat, error) {
	viewID := e.Map("view").String("id")
	pc, err := h.chats.FindByView(viewID)
	if err != nil {
		return nil, fmt.Errorf("draft for view %s: %w", viewID, err)
	}
	return pc, nil
}

func (h *Handlers) saveDraft(pc *chatdomain.PennyChat) error {
	if err := h.chats.Save(pc); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	domain.PublishPending(h.bus, pc)
	if h.bus != nil {
		h.bus.Publish(domain.NewEvent(domain.EventChatUpdated, pc.ID(), nil))
	}
	return nil
}

func (h *Handlers) updateDate(e bot.Event) (bot.Result, error) {
	pc, err := h.draftForView(e)
	if err != nil {
		return nil, err
	}
	selected := e.Action().String("selected_date")
	if selected == "" {
		return nil, nil
	}
	pc.SetDate(combineDate(pc.Date, selected, pc.UserTZ))
	return nil, h.saveDraft(pc)
}

func (h *Handlers) updateTime(e bot.Event) (bot.Result, error) {
	pc, err := h.draftForView(e)
	if err != nil {
		return nil, err
	}
	selected := e.Action().String("selected_time")
	if selected == "" {
		return nil, nil
	}
	pc.SetDate(combineTime(pc.Date, selected, pc.UserTZ))
	return nil, h.saveDraft(pc)
}

func (h *Handlers) updateInvitees(e bot.Event) (bot.Result, error) {
	pc, err := h.draftForView(e)
	if err != nil {
		return nil, err
	}
	pc.SetInvitees(e.Action().Strings("selected_users"))
	return nil, h.saveDraft(pc)
}

func (h *Handlers) updateChannels(e bot.Event) (bot.Result, error) {
	pc, err := h.draftForView(e)
	if err != nil {
		return nil, err
	}
	pc.SetChannels(e.Action().Strings("selected_channels"))
	return nil, h.saveDraft(pc)
}

// ---------------------------------------------------------------------------
// Share submission
// ---------------------------------------------------------------------------

// shareSubmission validates the submitted modal and, when valid, persists
// the invitation and queues the distribution task. Validation failures are
// echoed back into the modal synchronously.
func (h *Handlers) shareSubmission(e bot.Event) (bot.Result, error) {
	pc, err := h.draftForView(e)
	if err != nil {
		return nil, err
	}

	values := e.Map("view").Map("state").Map("values")
	title := values.Map("penny_chat_title").Map("penny_chat_title").String("value")
	dateStr := values.Map(templates.ActionDateSelect).Map(templates.ActionDateSelect).String("selected_date")
	timeStr := values.Map(templates.ActionTimeSelect).Map(templates.ActionTimeSelect).String("selected_time")
	invitees := values.Map(templates.ActionUserSelect).Map(templates.ActionUserSelect).Strings("selected_users")
	channels := values.Map(templates.ActionChannelSelect).Map(templates.ActionChannelSelect).Strings("selected_channels")
	details := values.Map(templates.ActionDetails).Map(templates.ActionDetails).String("value")

	pc.SetDetails(title, details)
	pc.SetInvitees(invitees)
	pc.SetChannels(channels)
	if dateStr != "" {
		pc.SetDate(combineDate(pc.Date, dateStr, pc.UserTZ))
	}
	if timeStr != "" {
		pc.SetDate(combineTime(pc.Date, timeStr, pc.UserTZ))
	}

	if errs := validateForShare(pc); len(errs) > 0 {
		// Keep the corrected draft anyway so the user doesn't lose edits.
		if err := h.saveDraft(pc); err != nil {
			return nil, err
		}
		return bot.Result{
			"response_action": "errors",
			"errors":          errs,
		}, nil
	}

	if err := h.saveDraft(pc); err != nil {
		return nil, err
	}

	if _, err := h.queue.Submit(tasks.TaskShareInvitation, tasks.Args{
		tasks.ArgChatID: pc.ID().String(),
	}); err != nil {
		return nil, fmt.Errorf("queue share: %w", err)
	}

	logger.InfoCF("pennychat", "Share queued", map[string]interface{}{
		"penny_chat": pc.ID().String(),
	})
	return nil, nil
}

func validateForShare(pc *chatdomain.PennyChat) map[string]string {
	errs := map[string]string{}
	if pc.Title == "" {
		errs["penny_chat_title"] = "Give your Penny Chat a title."
	}
	if pc.Date.IsZero() {
		errs[templates.ActionDateSelect] = "Pick a date and time for your chat."
	} else if pc.Date.Before(time.Now().UTC()) {
		errs[templates.ActionDateSelect] = "Your chat needs to be scheduled in the future."
	}
	if len(pc.Invitees) == 0 && len(pc.Channels) == 0 {
		errs[templates.ActionChannelSelect] = "Pick at least one invitee or channel."
	}
	return errs
}

// ---------------------------------------------------------------------------
// Edit affordance
// ---------------------------------------------------------------------------

func (h *Handlers) openEdit(e bot.Event) (bot.Result, error) {
	value, err := templates.DecodeActionValue(e.Action().String("value"))
	if err != nil {
		return nil, err
	}
	pc, err := h.chats.Get(domain.EntityID(value.PennyChatID))
	if err != nil {
		return nil, fmt.Errorf("load invitation: %w", err)
	}

	triggerID := e.String("trigger_id")
	viewID, err := h.client.OpenView(context.Background(), triggerID, templates.ChatModal(pc))
	if err != nil {
		return nil, fmt.Errorf("open edit modal: %w", err)
	}

	pc.AttachView(viewID)
	return nil, h.saveDraft(pc)
}

// ---------------------------------------------------------------------------
// RSVP
// ---------------------------------------------------------------------------

// rsvp builds the handler for an accept or decline button. Responding again
// updates the existing participant record rather than duplicating it.
func (h *Handlers) rsvp(role chatdomain.Role) bot.HandlerFunc {
	return func(e bot.Event) (bot.Result, error) {
		value, err := templates.DecodeActionValue(e.Action().String("value"))
		if err != nil {
			return nil, err
		}
		userID := e.Map("user").String("id")
		if userID == "" {
			return nil, fmt.Errorf("pennychat: rsvp payload missing user")
		}

		pc, err := h.chats.Get(domain.EntityID(value.PennyChatID))
		if err != nil {
			return nil, fmt.Errorf("load invitation: %w", err)
		}

		if err := h.chats.SetParticipant(pc.ID(), userID, role); err != nil {
			return nil, fmt.Errorf("record rsvp: %w", err)
		}

		attending := role == chatdomain.RoleAttendee
		eventType := domain.EventRSVPAccepted
		if !attending {
			eventType = domain.EventRSVPDeclined
		}
		if h.bus != nil {
			h.bus.Publish(domain.NewEvent(eventType, pc.ID(), map[string]string{
				"user": userID,
			}))
		}

		ctx := context.Background()
		name := userID
		if profiles, lerr := h.users.Lookup(ctx, []string{userID}); lerr == nil {
			if p, ok := profiles[userID]; ok {
				name = p.Name()
			}
		}

		blocks := templates.RSVPNotification(name, pc.Title, attending)
		if _, _, err := h.client.PostMessage(ctx, pc.OrganizerID, blocks); err != nil {
			return nil, fmt.Errorf("notify organizer of rsvp: %w", err)
		}
		return nil, nil
	}
}

// ---------------------------------------------------------------------------
// Follow-up capture
// ---------------------------------------------------------------------------

// recordFollowUp captures a thread reply to a follow-up prompt as a FollowUp
// on the chat. Replies in threads we never prompted are ignored.
func (h *Handlers) recordFollowUp(e bot.Event) (bot.Result, error) {
	pc, err := h.chats.ChatForPrompt(e.String("thread_ts"))
	if errors.Is(err, chatdomain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chat for prompt: %w", err)
	}

	userID := e.String("user")
	content := e.String("text")
	if userID == "" || content == "" {
		return nil, nil
	}

	fu := &chatdomain.FollowUp{ChatID: pc.ID(), UserID: userID, Content: content}
	if err := h.chats.AddFollowUp(fu); err != nil {
		return nil, fmt.Errorf("record follow up: %w", err)
	}
	if h.bus != nil {
		h.bus.Publish(domain.NewEvent(domain.EventFollowUpAdded, pc.ID(), map[string]string{
			"user": userID,
		}))
	}

	logger.InfoCF("pennychat", "Follow-up recorded", map[string]interface{}{
		"penny_chat": pc.ID().String(),
		"user":       userID,
	})
	return nil, nil
}

// ---------------------------------------------------------------------------
// Date/time assembly
// ---------------------------------------------------------------------------

func location(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// combineDate replaces the calendar date of base with selected (2006-01-02),
// keeping the time of day, interpreted in the organizer's timezone.
func combineDate(base time.Time, selected, tz string) time.Time {
	loc := location(tz)
	day, err := time.ParseInLocation("2006-01-02", selected, loc)
	if err != nil {
		return base
	}
	local := base.In(loc)
	return time.Date(day.Year(), day.Month(), day.Day(),
		local.Hour(), local.Minute(), 0, 0, loc)
}

// combineTime replaces the time of day of base with selected (15:04),
// keeping the calendar date, interpreted in the organizer's timezone.
func combineTime(base time.Time, selected, tz string) time.Time {
	loc := location(tz)
	clock, err := time.ParseInLocation("15:04", selected, loc)
	if err != nil {
		return base
	}
	local := base.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(),
		clock.Hour(), clock.Minute(), 0, 0, loc)
}

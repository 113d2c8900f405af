// Package templates renders Penny Chat content into Slack Block Kit
// structures: the shared invitation message, the organizer's post-share
// confirmation, the creation modal, and the small notification messages.
package templates

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/penny-university/pennybot/pkg/domain/pennychat"
)

// Interactive element identifiers. These travel through Slack payloads and
// back into the event filters, so they must stay stable.
const (
	ActionDateSelect    = "penny_chat_date"
	ActionTimeSelect    = "penny_chat_time"
	ActionUserSelect    = "penny_chat_user_select"
	ActionChannelSelect = "penny_chat_channel_select"
	ActionDetails       = "penny_chat_details"
	ActionEdit          = "penny_chat_edit"
	ActionCanAttend     = "penny_chat_can_attend"
	ActionCanNotAttend  = "penny_chat_can_not_attend"

	CallbackShare = "penny_chat_share"
)

// ---------------------------------------------------------------------------
// Opaque action values
// ---------------------------------------------------------------------------

// ActionValue is the opaque payload attached to interactive elements for
// later correlation.
type ActionValue struct {
	PennyChatID string `json:"penny_chat_id"`
}

// EncodeActionValue serializes the invitation reference for a button value.
func EncodeActionValue(id string) string {
	data, _ := json.Marshal(ActionValue{PennyChatID: id})
	return string(data)
}

// DecodeActionValue parses a button value back into an invitation reference.
func DecodeActionValue(raw string) (ActionValue, error) {
	var v ActionValue
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return ActionValue{}, fmt.Errorf("decode action value: %w", err)
	}
	return v, nil
}

// ---------------------------------------------------------------------------
// Content helpers
// ---------------------------------------------------------------------------

// DateTimeToken renders Slack's localized date token with a plain fallback,
// readable by both humans and the client.
func DateTimeToken(t time.Time) string {
	utc := t.UTC()
	return fmt.Sprintf("<!date^%d^{date_pretty} at {time}|%s>", utc.Unix(), utc.Format("2006-01-02 15:04 UTC"))
}

// CalendarURL builds a Google Calendar event-template link for a one-hour
// chat starting at start.
func CalendarURL(title, description string, start time.Time) string {
	const stamp = "20060102T150405Z"
	s := start.UTC()
	return "https://calendar.google.com/calendar/render?action=TEMPLATE" +
		"&text=" + url.QueryEscape(title) +
		"&dates=" + s.Format(stamp) + "/" + s.Add(time.Hour).Format(stamp) +
		"&details=" + url.QueryEscape(description)
}

// JoinRecipients renders a recipient list for prose: one name stands alone,
// two are joined by "and", three or more become a comma list with "and"
// before the last.
func JoinRecipients(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		last := len(names) - 1
		joined := make([]string, len(names))
		copy(joined, names)
		joined[last] = "and " + joined[last]
		return strings.Join(joined, ", ")
	}
}

// ChannelMention renders a channel ID as a Slack channel link.
func ChannelMention(channelID string) string {
	return fmt.Sprintf("<#%s>", channelID)
}

func mrkdwn(text string) *slack.SectionBlock {
	return slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil)
}

func plain(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, text, true, false)
}

// ---------------------------------------------------------------------------
// Invitation message
// ---------------------------------------------------------------------------

// SharedMessage renders the invitation body: intro, title, description, and
// the date section with a calendar link. When includeRSVP is set (sharing,
// as opposed to previewing) the accept/decline actions are appended with the
// invitation ID as their opaque value.
func SharedMessage(pc *pennychat.PennyChat, organizerName string, includeRSVP bool) []slack.Block {
	calendar := slack.NewButtonBlockElement("", "", plain("Add to Google Calendar :calendar:"))
	calendar.URL = CalendarURL(pc.Title, pc.Description, pc.Date)

	dateSection := slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType, "*Date and Time*\n"+DateTimeToken(pc.Date), false, false),
		nil,
		slack.NewAccessory(calendar),
	)

	blocks := []slack.Block{
		mrkdwn(fmt.Sprintf("_*%s* invited you to a new Penny Chat!_", organizerName)),
		mrkdwn("*Title*\n" + pc.Title),
		mrkdwn("*Description*\n" + pc.Description),
		dateSection,
	}

	if includeRSVP {
		value := EncodeActionValue(pc.ID().String())

		accept := slack.NewButtonBlockElement(ActionCanAttend, value, plain("Count me in :thumbsup:"))
		accept.Style = slack.StylePrimary
		decline := slack.NewButtonBlockElement(ActionCanNotAttend, value, plain("I can't make it :thumbsdown:"))
		decline.Style = slack.StylePrimary

		blocks = append(blocks, slack.NewActionBlock("penny_chat_rsvp", accept, decline))
	}

	return blocks
}

// OrganizerEditAfterShare renders the organizer's confirmation: a preview of
// what was shared, the recipient listing, and an edit button carrying the
// invitation ID.
func OrganizerEditAfterShare(pc *pennychat.PennyChat, organizerName string, recipients []string) []slack.Block {
	edit := slack.NewButtonBlockElement(ActionEdit, EncodeActionValue(pc.ID().String()), plain("Edit Details :pencil2:"))
	edit.Style = slack.StylePrimary

	blocks := SharedMessage(pc, organizerName, false)
	blocks = append(blocks,
		slack.NewDividerBlock(),
		mrkdwn(fmt.Sprintf(
			"*:point_up: You just shared this invitation with:* %s. "+
				"We will notify you as invitees respond.\n\n"+
				"In the meantime if you need to update the event, click the button below.",
			JoinRecipients(recipients),
		)),
		slack.NewActionBlock("penny_chat_organizer_edit", edit),
	)
	return blocks
}

// RSVPNotification renders the organizer-facing note that someone responded.
func RSVPNotification(attendeeName, title string, attending bool) []slack.Block {
	verdict := "*can* attend"
	if !attending {
		verdict = "*can not* attend"
	}
	return []slack.Block{
		mrkdwn(fmt.Sprintf("%s %s your Penny Chat *%s*.", attendeeName, verdict, title)),
	}
}

// FollowUpPrompt renders the post-chat message asking participants to share
// follow-ups.
func FollowUpPrompt(pc *pennychat.PennyChat) []slack.Block {
	return []slack.Block{
		mrkdwn(fmt.Sprintf(
			"Your Penny Chat *%s* has wrapped up. What did you learn? "+
				"Reply in this thread to share a follow-up with the other participants.",
			pc.Title,
		)),
	}
}

// HelpMessage renders the slash command usage notice.
func HelpMessage() []slack.Block {
	return []slack.Block{
		mrkdwn("I can help you make a new Penny Chat! Type `/penny chat` to get started.\n" +
			"_More features coming soon..._"),
	}
}

// ---------------------------------------------------------------------------
// Creation modal
// ---------------------------------------------------------------------------

// ChatModal builds the invitation creation/edit modal, prefilled from the
// draft. Block IDs mirror action IDs so validation errors land on the right
// input.
func ChatModal(pc *pennychat.PennyChat) slack.ModalViewRequest {
	date := slack.NewDatePickerBlockElement(ActionDateSelect)
	timePicker := slack.NewTimePickerBlockElement(ActionTimeSelect)
	if !pc.Date.IsZero() {
		date.InitialDate = pc.Date.UTC().Format("2006-01-02")
		timePicker.InitialTime = pc.Date.UTC().Format("15:04")
	}

	users := slack.NewOptionsMultiSelectBlockElement(
		slack.MultiOptTypeUser, plain("Select invitees"), ActionUserSelect)
	users.InitialUsers = pc.Invitees

	channels := slack.NewOptionsMultiSelectBlockElement(
		slack.MultiOptTypeChannels, plain("Select channels"), ActionChannelSelect)
	channels.InitialChannels = pc.Channels

	details := slack.NewPlainTextInputBlockElement(plain("What will you talk about?"), ActionDetails)
	details.Multiline = true
	details.InitialValue = pc.Description

	title := slack.NewPlainTextInputBlockElement(plain("Give your chat a title"), "penny_chat_title")
	title.InitialValue = pc.Title

	titleInput := slack.NewInputBlock("penny_chat_title", plain("Title"), nil, title)

	dateInput := slack.NewInputBlock(ActionDateSelect, plain("Date"), nil, date)
	dateInput.DispatchAction = true
	timeInput := slack.NewInputBlock(ActionTimeSelect, plain("Time"), nil, timePicker)
	timeInput.DispatchAction = true

	userInput := slack.NewInputBlock(ActionUserSelect, plain("Invitees"), nil, users)
	userInput.Optional = true
	userInput.DispatchAction = true
	channelInput := slack.NewInputBlock(ActionChannelSelect, plain("Channels"), nil, channels)
	channelInput.Optional = true
	channelInput.DispatchAction = true

	detailsInput := slack.NewInputBlock(ActionDetails, plain("Description"), nil, details)

	return slack.ModalViewRequest{
		Type:       slack.VTModal,
		CallbackID: CallbackShare,
		Title:      plain("Penny Chat"),
		Submit:     plain("Share Invitation"),
		Close:      plain("Cancel"),
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			titleInput,
			dateInput,
			timeInput,
			userInput,
			channelInput,
			detailsInput,
		}},
	}
}

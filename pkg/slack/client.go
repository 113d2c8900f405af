// Package slack wraps the outbound Slack Web API behind a narrow contract so
// handlers and tasks can be tested against fakes.
package slack

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// Client is the outbound platform contract the core calls into.
type Client interface {
	// PostMessage posts blocks to a destination (channel or user ID) and
	// returns the resolved channel ID and message timestamp.
	PostMessage(ctx context.Context, destination string, blocks []slack.Block) (channelID, timestamp string, err error)
	// PostEphemeral posts blocks visible only to one user in a channel.
	PostEphemeral(ctx context.Context, channel, userID string, blocks []slack.Block) error
	// DeleteMessage removes a previously posted message.
	DeleteMessage(ctx context.Context, channel, timestamp string) error
	// OpenView opens a modal for an interaction trigger and returns the
	// created view ID.
	OpenView(ctx context.Context, triggerID string, view slack.ModalViewRequest) (viewID string, err error)
	// UserInfo fetches a user's profile.
	UserInfo(ctx context.Context, userID string) (*slack.User, error)
}

// Web is the production Client backed by the Slack Web API.
type Web struct {
	api *slack.Client
}

// NewWeb creates a Web API client from a bot token.
func NewWeb(token string) *Web {
	return &Web{api: slack.New(token)}
}

// PostMessage implements Client.
func (w *Web) PostMessage(ctx context.Context, destination string, blocks []slack.Block) (string, string, error) {
	channelID, timestamp, err := w.api.PostMessageContext(ctx, destination, slack.MsgOptionBlocks(blocks...))
	if err != nil {
		return "", "", fmt.Errorf("post message to %s: %w", destination, err)
	}
	return channelID, timestamp, nil
}

// PostEphemeral implements Client.
func (w *Web) PostEphemeral(ctx context.Context, channel, userID string, blocks []slack.Block) error {
	if _, err := w.api.PostEphemeralContext(ctx, channel, userID, slack.MsgOptionBlocks(blocks...)); err != nil {
		return fmt.Errorf("post ephemeral to %s: %w", channel, err)
	}
	return nil
}

// DeleteMessage implements Client.
func (w *Web) DeleteMessage(ctx context.Context, channel, timestamp string) error {
	if _, _, err := w.api.DeleteMessageContext(ctx, channel, timestamp); err != nil {
		return fmt.Errorf("delete message %s in %s: %w", timestamp, channel, err)
	}
	return nil
}

// OpenView implements Client.
func (w *Web) OpenView(ctx context.Context, triggerID string, view slack.ModalViewRequest) (string, error) {
	resp, err := w.api.OpenViewContext(ctx, triggerID, view)
	if err != nil {
		return "", fmt.Errorf("open view: %w", err)
	}
	return resp.View.ID, nil
}

// UserInfo implements Client.
func (w *Web) UserInfo(ctx context.Context, userID string) (*slack.User, error) {
	u, err := w.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user info %s: %w", userID, err)
	}
	return u, nil
}

var _ Client = (*Web)(nil)

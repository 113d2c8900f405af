// Package greeting groups the bot's welcome behaviors: greeting members who
// join a channel the bot lives in, and answering direct hellos.
package greeting

import (
	"context"

	"github.com/penny-university/pennybot/pkg/bot"
	"github.com/penny-university/pennybot/pkg/logger"
	slackclient "github.com/penny-university/pennybot/pkg/slack"
	"github.com/penny-university/pennybot/pkg/templates"
)

// Handlers owns the greeting behaviors' collaborators.
type Handlers struct {
	client slackclient.Client
}

// NewHandlers creates the greeting handlers.
func NewHandlers(client slackclient.Client) *Handlers {
	return &Handlers{client: client}
}

// Module builds the dispatch unit for greeting behaviors.
func (h *Handlers) Module() *bot.Module {
	return bot.NewModule("greeting").
		Handle("welcome_new_member", h.welcomeNewMember,
			bot.TypeIs("member_joined_channel")).
		Handle("greet_back", h.greetBack,
			bot.TypeIs("message"),
			bot.NotSubtype("bot_message"),
			bot.TextMatches(`(?i)^(hi|hello|hey)[,!.]?\s+penny\b`))
}

func (h *Handlers) welcomeNewMember(e bot.Event) (bot.Result, error) {
	channel := e.String("channel")
	userID := e.String("user")
	if channel == "" || userID == "" {
		return nil, nil
	}

	err := h.client.PostEphemeral(context.Background(), channel, userID, templates.HelpMessage())
	if err != nil {
		return nil, err
	}

	logger.InfoCF("greeting", "Welcomed new member", map[string]interface{}{
		"channel": channel,
		"user":    userID,
	})
	return nil, nil
}

func (h *Handlers) greetBack(e bot.Event) (bot.Result, error) {
	channel := e.String("channel")
	if channel == "" {
		return nil, nil
	}

	_, _, err := h.client.PostMessage(context.Background(), channel, templates.HelpMessage())
	return nil, err
}

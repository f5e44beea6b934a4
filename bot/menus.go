package bot

import (
	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"

	"giveabot/lib/sl"
)

// Command list for Telegram's menu button (the "/" icon in the chat
// input), pushed via SetMyCommands on startup. Key gating happens at
// handler level, so one menu serves everyone.

var botCommands = []tgbotapi.BotCommand{
	{Command: "start", Description: "Get your access key and command list"},
	{Command: "create", Description: "Start a new giveaway"},
	{Command: "templates", Description: "Create from a template"},
	{Command: "list", Description: "Show active giveaways"},
	{Command: "listjoin", Description: "Show participant counts"},
	{Command: "points", Description: "Your points summary"},
	{Command: "leaderboard", Description: "Top players"},
	{Command: "end", Description: "End a giveaway manually"},
	{Command: "mykey", Description: "Show your access key"},
	{Command: "getkey", Description: "Generate a new access key"},
	{Command: "help", Description: "Show available commands"},
}

func (t *TgBot) setDefaultCommands() {
	_, err := t.api.SetMyCommands(botCommands, &tgbotapi.SetMyCommandsOpts{
		Scope: tgbotapi.BotCommandScopeDefault{},
	})
	if err != nil {
		t.log.Warn("setting default commands", sl.Err(err))
	}
}

package bot

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"

	"giveabot/internal/engine"
)

const commandHelp = "*Available Commands:*\n" +
	"`/create` \\- Start a new giveaway\n" +
	"`/templates` \\- Use giveaway templates\n" +
	"`/list` \\- Show active giveaways\n" +
	"`/listjoin` \\- Show participant counts\n" +
	"`/points` \\- Your points summary\n" +
	"`/leaderboard` \\- Top players\n" +
	"`/end <id>` \\- End a giveaway manually\n" +
	"`/mykey` \\- Show your access key\n" +
	"`/getkey` \\- Generate a new access key"

// start greets the user with their key, issuing a fresh one when none is
// valid. /help is an alias.
func (t *TgBot) start(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveChat.Id
	userId := ctx.EffectiveUser.Id
	t.deleteTrigger(ctx)

	if key, ok := t.keys.Describe(userId); ok {
		t.ephemeralResponse(chatId, fmt.Sprintf(
			"Welcome back\\!\n\n*Your active key:*\n`%s`\n\n%s",
			key.Key, commandHelp,
		), 20*time.Second)
		return nil
	}

	token, err := t.keys.Issue(userId, displayName(ctx.EffectiveUser))
	if err != nil {
		t.reportError(chatId, "/start", err)
		return nil
	}
	t.ephemeralResponse(chatId, fmt.Sprintf(
		"Welcome\\!\n\n*Your new key:*\n`%s`\n\n"+
			"This key is valid for 24 hours\\.\n\n%s",
		token, commandHelp,
	), 20*time.Second)
	return nil
}

func (t *TgBot) help(b *tgbotapi.Bot, ctx *ext.Context) error {
	return t.start(b, ctx)
}

// getkey always generates a fresh key, replacing any existing one.
func (t *TgBot) getkey(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveChat.Id
	userId := ctx.EffectiveUser.Id
	t.deleteTrigger(ctx)

	token, err := t.keys.Issue(userId, displayName(ctx.EffectiveUser))
	if err != nil {
		t.reportError(chatId, "/getkey", err)
		return nil
	}
	t.ephemeralResponse(chatId, fmt.Sprintf(
		"*Your new key:*\n`%s`\n\nValid for 24 hours\\.", token,
	), 20*time.Second)
	return nil
}

// mykey shows the current key with its expiry detail.
func (t *TgBot) mykey(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveChat.Id
	userId := ctx.EffectiveUser.Id
	t.deleteTrigger(ctx)

	key, ok := t.keys.Describe(userId)
	if !ok {
		t.ephemeralResponse(chatId,
			"*No active key or key has expired\\!*\n\nUse /getkey to get a new key\\.",
			10*time.Second)
		return nil
	}

	remaining := key.ExpiresAt.Sub(t.clock.Now())
	hours := int(remaining.Hours())
	minutes := int(remaining.Minutes()) % 60

	t.ephemeralResponse(chatId, fmt.Sprintf(
		"*Your active key:*\n`%s`\n\n"+
			"*Generated:* %s\n"+
			"*Time remaining:* %d hours %d minutes\n"+
			"*Expires:* %s",
		key.Key,
		Sanitize(key.GeneratedAt.Format("02/01/2006 15:04:05")),
		hours, minutes,
		Sanitize(key.ExpiresAt.Format("02/01/2006 15:04:05")),
	), 20*time.Second)
	return nil
}

// create starts the giveaway creation dialogue.
func (t *TgBot) create(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveChat.Id
	userId := ctx.EffectiveUser.Id
	t.deleteTrigger(ctx)

	if !t.requireKey(chatId, userId) {
		return nil
	}

	t.flows.Begin(userId)
	t.plainResponse(chatId, "Enter giveaway title:")
	return nil
}

// templates offers the canned drafts via inline keyboard.
func (t *TgBot) templates(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveChat.Id
	userId := ctx.EffectiveUser.Id
	t.deleteTrigger(ctx)

	if !t.requireKey(chatId, userId) {
		return nil
	}

	_, err := t.api.SendMessage(chatId,
		"*Choose a giveaway template:*\n\nSelect one to create a giveaway with pre\\-filled fields\\.",
		&tgbotapi.SendMessageOpts{
			ParseMode:   "MarkdownV2",
			ReplyMarkup: buildTemplatesKeyboard(),
		})
	if err != nil {
		t.reportError(chatId, "/templates", err)
	}
	return nil
}

// list shows active giveaways with remaining time.
func (t *TgBot) list(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveChat.Id
	userId := ctx.EffectiveUser.Id
	t.deleteTrigger(ctx)

	if !t.requireKey(chatId, userId) {
		return nil
	}

	actives := t.engine.Actives()
	if len(actives) == 0 {
		t.plainResponse(chatId, "No active giveaways\\.")
		return nil
	}

	now := t.clock.Now()
	var sb strings.Builder
	sb.WriteString("*Active Giveaways:*\n\n")
	for _, g := range actives {
		remaining := "Unlimited"
		if !g.Unlimited() {
			left := g.Remaining(now)
			if left <= 0 {
				remaining = "Ended"
			} else {
				remaining = Sanitize(left.Round(time.Second).String())
			}
		}
		sb.WriteString(fmt.Sprintf("• *%s* \\(`%d`\\) \\- %s \\- %s\n",
			Sanitize(g.Title), g.Id, Sanitize(g.Gift), remaining))
	}
	t.plainResponse(chatId, sb.String())
	return nil
}

// listjoin shows participant counts per active giveaway.
func (t *TgBot) listjoin(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveChat.Id
	userId := ctx.EffectiveUser.Id
	t.deleteTrigger(ctx)

	if !t.requireKey(chatId, userId) {
		return nil
	}

	actives := t.engine.Actives()
	if len(actives) == 0 {
		t.plainResponse(chatId, "No active giveaways\\.")
		return nil
	}

	var sb strings.Builder
	sb.WriteString("*Giveaway Participants:*\n\n")
	for _, g := range actives {
		sb.WriteString(fmt.Sprintf("• *%s* \\- %d participants\n",
			Sanitize(g.Title), t.engine.ParticipantCount(g.Id)))
	}
	t.plainResponse(chatId, sb.String())
	return nil
}

// points shows the sender's points summary.
func (t *TgBot) points(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveChat.Id
	userId := ctx.EffectiveUser.Id
	t.deleteTrigger(ctx)

	if !t.requireKey(chatId, userId) {
		return nil
	}

	stats, ok := t.stats.Stats(userId)
	if !ok {
		t.plainResponse(chatId, "No statistics yet\\. Join a giveaway first\\!")
		return nil
	}

	t.plainResponse(chatId, fmt.Sprintf(
		"*Your Points Summary:*\n\n"+
			"*Player:* %s\n"+
			"*Total points:* %d\n\n"+
			"*Breakdown:*\n"+
			"• Participations: %d\n"+
			"• Wins: %d\n"+
			"• Win rate: %s%%",
		Sanitize(stats.Name),
		stats.Points(),
		stats.TotalParticipations,
		stats.TotalWins,
		Sanitize(fmt.Sprintf("%.1f", stats.WinRate())),
	))
	return nil
}

// leaderboard shows the top ten players by points.
func (t *TgBot) leaderboard(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveChat.Id
	userId := ctx.EffectiveUser.Id
	t.deleteTrigger(ctx)

	if !t.requireKey(chatId, userId) {
		return nil
	}

	all := t.stats.AllStats()
	if len(all) == 0 {
		t.plainResponse(chatId, "No statistics available yet\\.")
		return nil
	}

	type row struct {
		name   string
		points int
		wins   int
		joins  int
	}
	rows := make([]row, 0, len(all))
	for _, s := range all {
		rows = append(rows, row{s.Name, s.Points(), s.TotalWins, s.TotalParticipations})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].points > rows[j].points })
	if len(rows) > 10 {
		rows = rows[:10]
	}

	var sb strings.Builder
	sb.WriteString("*Leaderboard \\- Top Players:*\n\n")
	for i, r := range rows {
		sb.WriteString(fmt.Sprintf("%d\\. *%s*\n   %d points \\| %d wins \\| %d joins\n",
			i+1, Sanitize(r.name), r.points, r.wins, r.joins))
	}
	t.plainResponse(chatId, sb.String())
	return nil
}

// end terminates a giveaway by message id.
func (t *TgBot) end(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveChat.Id

	args := strings.Fields(ctx.EffectiveMessage.Text)
	if len(args) < 2 {
		t.plainResponse(chatId, "Wrong format\\. Use: `/end <message_id>`")
		return nil
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		t.plainResponse(chatId, "Message ID must be a number\\. Use: `/end <message_id>`")
		return nil
	}

	if _, ok := t.engine.Terminate(id, engine.ReasonManual); !ok {
		t.plainResponse(chatId, fmt.Sprintf("Giveaway `%d` not found\\.", id))
		return nil
	}
	t.plainResponse(chatId, fmt.Sprintf("Giveaway `%d` ended\\.", id))
	return nil
}

// onText feeds free text into the creation dialogue. Without a flow and
// without a valid key the text is treated as a redemption attempt.
func (t *TgBot) onText(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveChat.Id
	userId := ctx.EffectiveUser.Id
	text := ctx.EffectiveMessage.Text

	if t.flows.Active(userId) {
		return t.advanceFlow(ctx)
	}

	if t.keys.Validate(userId) {
		return nil
	}

	// A pasted token transfers its key to the sender.
	token := strings.TrimSpace(text)
	if strings.ContainsAny(token, " \n") {
		return nil
	}
	t.deleteTrigger(ctx)
	if t.keys.Redeem(userId, displayName(ctx.EffectiveUser), token) {
		t.ephemeralResponse(chatId,
			"*Key accepted\\!* You can now use the bot commands\\.\nSend /help for the list\\.",
			10*time.Second)
	} else {
		t.ephemeralResponse(chatId,
			"*Invalid or expired key\\!*\n\nUse /getkey to get a new key\\.",
			10*time.Second)
	}
	return nil
}

// advanceFlow runs one step of the creation dialogue.
func (t *TgBot) advanceFlow(ctx *ext.Context) error {
	chatId := ctx.EffectiveChat.Id
	userId := ctx.EffectiveUser.Id
	text := ctx.EffectiveMessage.Text

	draft, done, err := t.flows.Advance(userId, text)
	switch {
	case errors.Is(err, ErrBadDuration):
		t.plainResponse(chatId, "Enter a positive number of minutes:")
		return nil
	case errors.Is(err, ErrBadState):
		t.plainResponse(chatId, "Choose a duration with the buttons above\\.")
		return nil
	case err != nil:
		return nil
	}

	if done {
		t.deleteTrigger(ctx)
		draft.ChatId = chatId
		t.sendGiveaway(chatId, draft)
		return nil
	}

	switch t.flows.State(userId) {
	case StateWaitGift:
		t.plainResponse(chatId, "Enter prize/gift:")
	case StateWaitDuration:
		t.sendDurationKeyboard(chatId)
	case StateWaitPlace:
		t.plainResponse(chatId, "Enter location \\(or '\\-' if none\\):")
	case StateWaitInfo:
		t.plainResponse(chatId, "Enter additional info \\(or '\\-' if none\\):")
	}
	return nil
}

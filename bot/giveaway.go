package bot

import (
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"

	"giveabot/entity"
	"giveabot/internal/engine"
	"giveabot/lib/sl"
)

// announcementText renders the live giveaway message.
func announcementText(g entity.Giveaway, count int) string {
	duration := "Unlimited"
	if g.Duration > 0 {
		duration = fmt.Sprintf("%d minutes", g.Duration)
	}
	place := g.Place
	if place == "" {
		place = "-"
	}
	info := g.Info
	if info == "" {
		info = "-"
	}
	return fmt.Sprintf(
		"*GIVEAWAY STARTED\\!*\n\n"+
			"*Title:* %s\n"+
			"*Prize:* %s\n"+
			"*Duration:* %s\n"+
			"*Location:* %s\n"+
			"*Info:* %s\n"+
			"*Participants:* %d people\n\n"+
			"Press the button below to JOIN\\!",
		Sanitize(g.Title), Sanitize(g.Gift), Sanitize(duration),
		Sanitize(place), Sanitize(info), count,
	)
}

// sendGiveaway posts the announcement, attaches the join button, and
// commits the giveaway to the engine. The announcement message id becomes
// the giveaway id, so the button can only be attached after the send.
func (t *TgBot) sendGiveaway(chatId int64, draft entity.Giveaway) {
	msg, err := t.api.SendMessage(chatId, announcementText(draft, 0), &tgbotapi.SendMessageOpts{
		ParseMode: "MarkdownV2",
	})
	if err != nil {
		t.reportError(chatId, "announce giveaway", err)
		return
	}

	draft.Id = msg.MessageId
	draft.ChatId = chatId

	_, _, err = t.api.EditMessageReplyMarkup(&tgbotapi.EditMessageReplyMarkupOpts{
		ChatId:      chatId,
		MessageId:   msg.MessageId,
		ReplyMarkup: buildJoinKeyboard(msg.MessageId),
	})
	if err != nil {
		t.log.Warn("attaching join button", sl.GiveawayId(msg.MessageId), sl.Err(err))
	}

	if err := t.engine.CreateGiveaway(&draft); err != nil {
		// engine keeps the giveaway in memory; the failure is durable-state only
		t.log.Warn("giveaway created without persistence", sl.GiveawayId(draft.Id), sl.Err(err))
	}
}

// refreshAnnouncement re-renders the announcement with the current
// participant count after a successful join.
func (t *TgBot) refreshAnnouncement(giveawayId int64, count int) {
	actives := t.engine.Actives()
	for _, g := range actives {
		if g.Id != giveawayId {
			continue
		}
		_, _, err := t.api.EditMessageText(announcementText(g, count), &tgbotapi.EditMessageTextOpts{
			ChatId:      g.ChatId,
			MessageId:   g.Id,
			ParseMode:   "MarkdownV2",
			ReplyMarkup: buildJoinKeyboard(g.Id),
		})
		if err != nil {
			t.log.Warn("updating announcement", sl.GiveawayId(g.Id), sl.Err(err))
		}
		return
	}
}

// AnnounceResult implements engine.Notifier: edits the announcement with
// the outcome and schedules its deletion after the grace period. Runs
// outside the engine lock; every Telegram failure here is degradation
// only, the termination is already committed.
func (t *TgBot) AnnounceResult(res engine.Result) {
	g := res.Giveaway

	header := "*GIVEAWAY ENDED\\!*"
	if res.Reason == engine.ReasonOfflineExpiry {
		header = "*GIVEAWAY ENDED\\!* \\(ended while the bot was offline\\)"
	}

	var text string
	if res.WinnerId != 0 {
		text = fmt.Sprintf(
			"%s\n\n*Winner:* %s\n*Total participants:* %d users\n\n*Prize:* %s",
			header, Sanitize(t.resolveWinnerName(g.ChatId, res.WinnerId)),
			res.Participants, Sanitize(g.Gift),
		)
	} else {
		text = fmt.Sprintf("%s\n\nNo participants for this giveaway", header)
	}

	_, _, err := t.api.EditMessageText(text, &tgbotapi.EditMessageTextOpts{
		ChatId:    g.ChatId,
		MessageId: g.Id,
		ParseMode: "MarkdownV2",
	})
	if err != nil {
		t.log.Warn("editing result announcement", sl.GiveawayId(g.Id), sl.Err(err))
		return
	}

	grace := time.Duration(t.config.DeleteGraceSec) * time.Second
	if res.Reason == engine.ReasonOfflineExpiry {
		grace = time.Duration(t.config.OfflineDeleteGraceSec) * time.Second
	}
	t.deleteAfter(g.ChatId, g.Id, grace)
}

// resolveWinnerName asks Telegram for the winner's display name; on any
// failure the numeric fallback is used.
func (t *TgBot) resolveWinnerName(chatId, userId int64) string {
	fallback := fmt.Sprintf("User ID %d", userId)
	if chatId == 0 {
		return fallback
	}
	member, err := t.api.GetChatMember(chatId, userId, nil)
	if err != nil {
		t.log.Debug("resolving winner name",
			slog.Int64("user_id", userId),
			sl.Err(err),
		)
		return fallback
	}
	user := member.GetUser()
	name := displayName(&user)
	if name == "" {
		return fallback
	}
	return fmt.Sprintf("%s (ID: %d)", name, userId)
}

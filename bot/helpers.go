package bot

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"

	"giveabot/lib/sl"
)

func (t *TgBot) plainResponse(chatId int64, text string) {
	if text == "" {
		t.log.With("id", chatId).Debug("empty message")
		return
	}

	_, err := t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{
		ParseMode: "MarkdownV2",
	})
	if err != nil {
		t.log.With(slog.Int64("id", chatId)).Warn("sending message", sl.Err(err))
		_, err = t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{})
		if err != nil {
			t.log.With(slog.Int64("id", chatId)).Error("sending safe message", sl.Err(err))
		}
	}
}

// ephemeralResponse sends a message and schedules its deletion. Used for
// key-bearing replies that should not linger in the chat history.
func (t *TgBot) ephemeralResponse(chatId int64, text string, after time.Duration) {
	msg, err := t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{
		ParseMode: "MarkdownV2",
	})
	if err != nil {
		t.log.With(slog.Int64("id", chatId)).Warn("sending ephemeral message", sl.Err(err))
		return
	}
	t.deleteAfter(chatId, msg.MessageId, after)
}

// deleteAfter removes a message once the grace period elapses. Failure is
// expected when the message was already deleted by hand.
func (t *TgBot) deleteAfter(chatId int64, messageId int64, after time.Duration) {
	time.AfterFunc(after, func() {
		_, err := t.api.DeleteMessage(chatId, messageId, nil)
		if err != nil {
			t.log.Debug("deleting message",
				slog.Int64("chat_id", chatId),
				slog.Int64("message_id", messageId),
				sl.Err(err),
			)
		}
	})
}

// deleteTrigger removes the user's own command message so tokens and
// command usage stay out of the chat history.
func (t *TgBot) deleteTrigger(ctx *ext.Context) {
	msg := ctx.EffectiveMessage
	if msg == nil {
		return
	}
	_, _ = t.api.DeleteMessage(msg.Chat.Id, msg.MessageId, nil)
}

func Sanitize(input string) string {
	reservedChars := "\\_{}#+-.!|()[]=*"
	sanitized := ""
	for _, char := range input {
		if strings.ContainsRune(reservedChars, char) {
			sanitized += "\\" + string(char)
		} else {
			sanitized += string(char)
		}
	}
	return sanitized
}

// displayName joins first and last name the way Telegram shows them.
func displayName(user *tgbotapi.User) string {
	if user == nil {
		return ""
	}
	name := user.FirstName
	if user.LastName != "" {
		name += " " + user.LastName
	}
	return name
}

// requireKey checks the sender's access key and, when missing or expired,
// replies with instructions that self-delete shortly after.
func (t *TgBot) requireKey(chatId, userId int64) bool {
	if t.keys.Validate(userId) {
		return true
	}
	t.ephemeralResponse(chatId,
		"*Invalid or expired key\\!*\n\n"+
			"Use /getkey to get a new key\\.\n"+
			"Each key is valid for 24 hours\\.",
		10*time.Second)
	return false
}

// reportError logs the error, notifies the admin chat with details, and
// sends a neutral message to the user.
func (t *TgBot) reportError(chatId int64, command string, err error) {
	t.log.Error("bot command failed",
		slog.String("command", command),
		slog.Int64("user_id", chatId),
		sl.Err(err),
	)
	t.NotifyAdmin(fmt.Sprintf(
		"Command `%s` failed\nUser: `%d`\nError: `%s`",
		Sanitize(command), chatId, Sanitize(err.Error()),
	))
	t.plainResponse(chatId, "Something went wrong\\. Please try again later\\.")
}

package bot

import (
	"strconv"
	"strings"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"

	"giveabot/entity"
	"giveabot/internal/engine"
)

// Callback data prefixes for inline keyboard buttons.
// Telegram limits callback data to 64 bytes, so prefixes are kept short.
// Format: prefix + value (e.g., "join:123456", "duration:60").
const (
	cbJoin     = "join:"     // join:<message_id>
	cbDuration = "duration:" // duration:<minutes>, -1 for custom
	cbTemplate = "template:" // template:<name>
)

// templateDrafts are the canned giveaways offered by /templates.
var templateDrafts = map[string]entity.Giveaway{
	"gaming": {
		Title:    "Gaming Account Giveaway",
		Gift:     "Premium Gaming Account",
		Duration: 60,
		Place:    "Online",
		Info:     "Premium account with exclusive features",
	},
	"cash": {
		Title:    "Cash Prize Giveaway",
		Gift:     "$100 Cash Prize",
		Duration: 120,
		Place:    "Global",
		Info:     "Cash prize via PayPal or bank transfer",
	},
	"product": {
		Title:    "Product Giveaway",
		Gift:     "Brand New Product",
		Duration: 180,
		Place:    "Worldwide",
		Info:     "Free shipping included",
	},
	"software": {
		Title:    "Software License Giveaway",
		Gift:     "1-Year Software License",
		Duration: 90,
		Place:    "Digital",
		Info:     "Full license with support",
	},
	"premium": {
		Title:    "Premium Access Giveaway",
		Gift:     "Premium Membership",
		Duration: 240,
		Place:    "Online",
		Info:     "Premium features and benefits",
	},
}

// --- Keyboard builders ---

func buildJoinKeyboard(giveawayId int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{
			{{
				Text:         "I Want to Join!",
				CallbackData: cbJoin + strconv.FormatInt(giveawayId, 10),
			}},
		},
	}
}

func buildDurationKeyboard() tgbotapi.InlineKeyboardMarkup {
	options := []struct {
		minutes int
		label   string
	}{
		{1, "1 minute"},
		{5, "5 minutes"},
		{10, "10 minutes"},
		{0, "Unlimited"},
		{DurationCustom, "Custom time"},
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(options))
	for _, o := range options {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{{
			Text:         o.label,
			CallbackData: cbDuration + strconv.Itoa(o.minutes),
		}})
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func buildTemplatesKeyboard() tgbotapi.InlineKeyboardMarkup {
	options := []struct {
		name  string
		label string
	}{
		{"gaming", "Gaming Account"},
		{"cash", "Cash Prize"},
		{"product", "Product Giveaway"},
		{"software", "Software License"},
		{"premium", "Premium Access"},
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(options))
	for _, o := range options {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{{
			Text:         o.label,
			CallbackData: cbTemplate + o.name,
		}})
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func (t *TgBot) sendDurationKeyboard(chatId int64) {
	_, err := t.api.SendMessage(chatId, "Choose giveaway duration:", &tgbotapi.SendMessageOpts{
		ReplyMarkup: buildDurationKeyboard(),
	})
	if err != nil {
		t.reportError(chatId, "duration keyboard", err)
	}
}

// --- Callback handlers ---

// onJoinCallback registers the pressing user as a participant and updates
// the announcement with the new count.
func (t *TgBot) onJoinCallback(_ *tgbotapi.Bot, ctx *ext.Context) error {
	cq := ctx.CallbackQuery

	giveawayId, err := strconv.ParseInt(strings.TrimPrefix(cq.Data, cbJoin), 10, 64)
	if err != nil {
		_, _ = cq.Answer(t.api, &tgbotapi.AnswerCallbackQueryOpts{Text: "Invalid data.", ShowAlert: true})
		return nil
	}

	res := t.engine.Join(giveawayId, cq.From.Id, displayName(&cq.From))
	switch res.Outcome {
	case engine.GiveawayNotFound:
		_, _ = cq.Answer(t.api, &tgbotapi.AnswerCallbackQueryOpts{Text: "This giveaway has ended.", ShowAlert: true})
	case engine.AlreadyJoined:
		_, _ = cq.Answer(t.api, &tgbotapi.AnswerCallbackQueryOpts{Text: "You already joined.", ShowAlert: true})
	case engine.Joined:
		_, _ = cq.Answer(t.api, &tgbotapi.AnswerCallbackQueryOpts{Text: "You have joined the giveaway!"})
		t.refreshAnnouncement(giveawayId, res.Count)
	}
	return nil
}

// onDurationCallback handles the duration pick in the creation dialogue.
func (t *TgBot) onDurationCallback(_ *tgbotapi.Bot, ctx *ext.Context) error {
	cq := ctx.CallbackQuery
	chatId := cq.From.Id
	if msg, ok := cq.Message.(tgbotapi.Message); ok {
		chatId = msg.Chat.Id
	}

	minutes, err := strconv.Atoi(strings.TrimPrefix(cq.Data, cbDuration))
	if err != nil {
		_, _ = cq.Answer(t.api, &tgbotapi.AnswerCallbackQueryOpts{Text: "Invalid duration."})
		return nil
	}

	if err := t.flows.ChooseDuration(cq.From.Id, minutes); err != nil {
		_, _ = cq.Answer(t.api, &tgbotapi.AnswerCallbackQueryOpts{
			Text:      "Session expired. Start over with /create",
			ShowAlert: true,
		})
		return nil
	}

	if minutes == DurationCustom {
		_, _ = cq.Answer(t.api, &tgbotapi.AnswerCallbackQueryOpts{Text: "Custom time selected!"})
		t.plainResponse(chatId, "Enter duration in minutes \\(example: 30, 60, 120\\):")
	} else {
		_, _ = cq.Answer(t.api, &tgbotapi.AnswerCallbackQueryOpts{Text: "Duration selected!"})
		t.plainResponse(chatId, "Enter location \\(or '\\-' if none\\):")
	}
	return nil
}

// onTemplateCallback creates a giveaway from a canned draft, skipping the
// dialogue entirely.
func (t *TgBot) onTemplateCallback(_ *tgbotapi.Bot, ctx *ext.Context) error {
	cq := ctx.CallbackQuery
	chatId := cq.From.Id
	if msg, ok := cq.Message.(tgbotapi.Message); ok {
		chatId = msg.Chat.Id
	}

	name := strings.TrimPrefix(cq.Data, cbTemplate)
	draft, ok := templateDrafts[name]
	if !ok {
		_, _ = cq.Answer(t.api, &tgbotapi.AnswerCallbackQueryOpts{Text: "Template not found."})
		return nil
	}

	_, _ = cq.Answer(t.api, &tgbotapi.AnswerCallbackQueryOpts{Text: "Template '" + name + "' selected!"})
	if msg, ok := cq.Message.(tgbotapi.Message); ok {
		_, _ = t.api.DeleteMessage(chatId, msg.MessageId, nil)
	}

	draft.ChatId = chatId
	t.sendGiveaway(chatId, draft)
	return nil
}

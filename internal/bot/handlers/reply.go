package handlers

import (
	"bytes"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/vitrine-bot/internal/bot/keyboard"
)

// Reply is the outbound side of a single inbound update.
type Reply interface {
	UserID() int64
	ChatID() int64
	Language() string
	DisplayName() string
	// FromButton reports whether the update is an inline button press.
	FromButton() bool
	// Send posts a new message.
	Send(text string, markup *telebot.ReplyMarkup) error
	// Edit replaces the pressed message for button presses and sends a new message otherwise.
	Edit(text string, markup *telebot.ReplyMarkup) error
	// SendPhoto posts an image with a caption.
	SendPhoto(image []byte, caption string, markup *telebot.ReplyMarkup) error
	// Ack answers a button press; it is a no-op for other updates.
	Ack(text string, alert bool) error
}

// Messenger delivers messages to chats other than the one that triggered the update.
type Messenger interface {
	SendTo(chatID int64, text string, markup *telebot.ReplyMarkup) error
}

// Payload extracts the callback payload or, for messages, the trimmed text.
func Payload(c telebot.Context) string {
	if c == nil {
		return ""
	}

	if cb := c.Callback(); cb != nil {
		_, data, err := keyboard.DecodeCallback(cb.Data)
		if err != nil {
			return ""
		}
		return data
	}

	return strings.TrimSpace(c.Text())
}

type telebotReply struct {
	c telebot.Context
}

// NewReply adapts a telebot context.
func NewReply(c telebot.Context) Reply {
	return telebotReply{c: c}
}

func (r telebotReply) UserID() int64 {
	if sender := r.c.Sender(); sender != nil {
		return sender.ID
	}
	return 0
}

func (r telebotReply) ChatID() int64 {
	if chat := r.c.Chat(); chat != nil {
		return chat.ID
	}
	return r.UserID()
}

func (r telebotReply) Language() string {
	if sender := r.c.Sender(); sender != nil {
		return sender.LanguageCode
	}
	return ""
}

func (r telebotReply) DisplayName() string {
	sender := r.c.Sender()
	if sender == nil {
		return ""
	}

	name := strings.TrimSpace(sender.FirstName + " " + sender.LastName)
	if sender.Username != "" {
		name = strings.TrimSpace(name + " (@" + sender.Username + ")")
	}
	return name
}

func (r telebotReply) FromButton() bool {
	return r.c.Callback() != nil
}

func (r telebotReply) Send(text string, markup *telebot.ReplyMarkup) error {
	return r.c.Send(text, sendOptions(markup)...)
}

func (r telebotReply) Edit(text string, markup *telebot.ReplyMarkup) error {
	if r.c.Callback() == nil || r.c.Message() == nil {
		return r.Send(text, markup)
	}
	return r.c.Edit(text, sendOptions(markup)...)
}

func (r telebotReply) SendPhoto(image []byte, caption string, markup *telebot.ReplyMarkup) error {
	photo := &telebot.Photo{
		File:    telebot.FromReader(bytes.NewReader(image)),
		Caption: caption,
	}
	return r.c.Send(photo, sendOptions(markup)...)
}

func (r telebotReply) Ack(text string, alert bool) error {
	if r.c.Callback() == nil {
		return nil
	}
	return r.c.Respond(&telebot.CallbackResponse{Text: text, ShowAlert: alert})
}

// BotMessenger sends messages through a telebot.Bot.
type BotMessenger struct {
	bot *telebot.Bot
}

// NewBotMessenger wraps bot as a Messenger.
func NewBotMessenger(bot *telebot.Bot) *BotMessenger {
	return &BotMessenger{bot: bot}
}

// SendTo delivers text to chatID.
func (m *BotMessenger) SendTo(chatID int64, text string, markup *telebot.ReplyMarkup) error {
	_, err := m.bot.Send(telebot.ChatID(chatID), text, sendOptions(markup)...)
	return err
}

func sendOptions(markup *telebot.ReplyMarkup) []interface{} {
	opts := []interface{}{telebot.ModeHTML}
	if markup != nil {
		opts = append(opts, markup)
	}
	return opts
}

// Package telegram adapts the Telegram Bot API into the gateway contract,
// grounded on the teacher's plugin/chat_apps/channels/telegram.TelegramChannel
// and plugin/chat_apps/channels/base.go's ChatChannel shape — trimmed from
// a webhook-driven multi-platform channel down to the single long-polling
// Telegram surface this orchestration core actually wires end-to-end.
package telegram

import (
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hrygo/swarmchat/core/chatmodel"
	"github.com/hrygo/swarmchat/core/orchestrator"
	"github.com/hrygo/swarmchat/gateway"
)

// Config holds the Telegram channel's own settings.
type Config struct {
	BotToken string
	// ParseMode is applied to outgoing AI-response sends, e.g. "Markdown".
	ParseMode string
}

// Channel bridges one Telegram bot into an Orchestrator: inbound text
// updates become Orchestrator.AddMessage calls, and ai-response /
// topic-suggested events become outgoing Telegram sends to the room's chat.
type Channel struct {
	bot          *tgbotapi.BotAPI
	parseMode    string
	orchestrator gateway.Orchestrator
}

// New creates a Channel and verifies the bot token by calling GetMe,
// matching the teacher's NewTelegramChannel construction.
func New(cfg Config, orch gateway.Orchestrator) (*Channel, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram: failed to create bot: %w", err)
	}
	return &Channel{bot: bot, parseMode: cfg.ParseMode, orchestrator: orch}, nil
}

// Run starts the long-polling update loop and blocks until the update
// channel closes (i.e. until Stop is called). Telegram's chat id, stringified,
// is used directly as the swarmchat RoomID: each Telegram chat is one room.
func (c *Channel) Run() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	for update := range updates {
		c.handleUpdate(update)
	}
}

// Stop halts the update loop.
func (c *Channel) Stop() {
	c.bot.StopReceivingUpdates()
}

func (c *Channel) handleUpdate(update tgbotapi.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	if msg.Text == "" {
		return
	}

	roomID := strconv.FormatInt(msg.Chat.ID, 10)
	sender := msg.From.UserName
	if sender == "" {
		sender = msg.From.FirstName
	}

	c.orchestrator.AddMessage(chatmodel.Message{
		Sender:     sender,
		Content:    msg.Text,
		RoomID:     roomID,
		SenderType: chatmodel.SenderUser,
	})
}

// HandleEvent satisfies gateway.EventSink: it forwards ai-response content
// (and a fixed nudge for topic-suggested events) to the Telegram chat for
// ev.RoomID. Other event types (generating-start/stop, sleep/wake,
// topic-changed, errors) have no Telegram-visible effect in this adapter.
func (c *Channel) HandleEvent(ev orchestrator.OutboundEvent) {
	switch ev.Type {
	case orchestrator.EventAIResponse:
		c.send(ev.RoomID, ev.Message.Sender+": "+ev.Message.Content)
	case orchestrator.EventTopicSuggested:
		c.send(ev.RoomID, "(the conversation has gone quiet — maybe try a new topic?)")
	}
}

func (c *Channel) send(roomID, text string) {
	chatID, err := strconv.ParseInt(roomID, 10, 64)
	if err != nil {
		slog.Warn("telegram: room id is not a Telegram chat id, dropping outbound send", "room_id", roomID)
		return
	}
	tgMsg := tgbotapi.NewMessage(chatID, text)
	if c.parseMode != "" {
		tgMsg.ParseMode = c.parseMode
	}
	if _, err := c.bot.Send(tgMsg); err != nil {
		slog.Warn("telegram: failed to send message", "room_id", roomID, "error", err)
	}
}

var _ gateway.EventSink = (*Channel)(nil)

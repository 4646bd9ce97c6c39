// Package telegram connects the questionnaire engine to a Telegram bot and
// lets the same bot deliver finished reports to reviewers.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"waitroom-intake/internal/core"
	"waitroom-intake/pkg/logging"
)

const pollTimeout = 60

// Conversation is the part of core.Engine the bot drives.
type Conversation interface {
	Start(ctx context.Context, key string, id core.Identity) (core.Reply, error)
	Handle(ctx context.Context, key, text string) (core.Reply, error)
	Cancel(ctx context.Context, key string) (core.Reply, error)
}

// botAPI is satisfied by *tgbotapi.BotAPI.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot long-polls Telegram and feeds every private message into the
// conversation, one session per chat.
type Bot struct {
	api    botAPI
	conv   Conversation
	logger *logging.Logger
}

// New connects to the Bot API with token.
func New(token string, conv Conversation, logger *logging.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}
	if logger == nil {
		logger = logging.Default()
	}
	logger.Info("telegram: authorized", "bot", api.Self.UserName)
	return newBot(api, conv, logger), nil
}

func newBot(api botAPI, conv Conversation, logger *logging.Logger) *Bot {
	if logger == nil {
		logger = logging.Default()
	}
	return &Bot{api: api, conv: conv, logger: logger}
}

// SetConversation attaches the engine after construction, which lets the
// bot serve as the engine's reviewer sink.
func (b *Bot) SetConversation(conv Conversation) {
	b.conv = conv
}

// Run processes updates until ctx is cancelled or the update channel
// closes, then waits for queued messages to finish.  Messages from one
// chat are handled in arrival order; different chats run in parallel.
func (b *Bot) Run(ctx context.Context) error {
	if b.conv == nil {
		return errors.New("telegram: no conversation attached")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := b.api.GetUpdatesChan(u)

	q := newChatQueues(func(msg *tgbotapi.Message) { b.handleMessage(ctx, msg) })
	defer q.wait()
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.Chat == nil {
				continue
			}
			q.push(update.Message)
		}
	}
}

// chatQueues runs one worker per chat with pending messages.  A worker
// exits once its queue is empty, so idle chats hold no goroutine.
type chatQueues struct {
	mu      sync.Mutex
	pending map[int64][]*tgbotapi.Message
	handle  func(*tgbotapi.Message)
	wg      sync.WaitGroup
}

func newChatQueues(handle func(*tgbotapi.Message)) *chatQueues {
	return &chatQueues{pending: make(map[int64][]*tgbotapi.Message), handle: handle}
}

func (q *chatQueues) push(msg *tgbotapi.Message) {
	id := msg.Chat.ID
	q.mu.Lock()
	queued, busy := q.pending[id]
	q.pending[id] = append(queued, msg)
	q.mu.Unlock()
	if busy {
		return
	}
	q.wg.Add(1)
	go q.drain(id)
}

func (q *chatQueues) drain(id int64) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		queued := q.pending[id]
		if len(queued) == 0 {
			delete(q.pending, id)
			q.mu.Unlock()
			return
		}
		msg := queued[0]
		q.pending[id] = queued[1:]
		q.mu.Unlock()

		q.handle(msg)
	}
}

func (q *chatQueues) wait() {
	q.wg.Wait()
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	key := strconv.FormatInt(msg.Chat.ID, 10)

	// photos, stickers and other non-text updates are not answers
	if msg.Text == "" {
		b.logger.Debug("telegram: ignoring non-text message", "chat_id", msg.Chat.ID)
		return
	}

	var (
		reply core.Reply
		err   error
	)
	switch {
	case msg.IsCommand() && msg.Command() == "start":
		reply, err = b.conv.Start(ctx, key, identity(msg))
	case msg.IsCommand() && msg.Command() == "cancel":
		reply, err = b.conv.Cancel(ctx, key)
	case msg.IsCommand():
		reply = core.Reply{Text: core.CommandHint}
	default:
		reply, err = b.conv.Handle(ctx, key, msg.Text)
		if errors.Is(err, core.ErrSessionNotFound) {
			reply, err = core.Reply{Text: core.StartHint}, nil
		}
	}
	if err != nil {
		b.logger.Error("telegram: conversation failed", "chat_id", msg.Chat.ID, "error", err)
		return
	}
	if _, err := b.api.Send(render(msg.Chat.ID, reply)); err != nil {
		b.logger.Error("telegram: send reply failed", "chat_id", msg.Chat.ID, "step", reply.Step.String(), "error", err)
	}
}

// Notify sends text to a reviewer chat.  It implements notify.Sink.
func (b *Bot) Notify(ctx context.Context, recipientID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chatID, err := strconv.ParseInt(recipientID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: bad chat id %q: %w", recipientID, err)
	}
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("telegram: send to %d: %w", chatID, err)
	}
	return nil
}

func identity(msg *tgbotapi.Message) core.Identity {
	if msg.From == nil {
		return core.Identity{UserID: strconv.FormatInt(msg.Chat.ID, 10)}
	}
	return core.Identity{
		UserID:      strconv.FormatInt(msg.From.ID, 10),
		Username:    msg.From.UserName,
		DisplayName: msg.From.FirstName,
	}
}

// render turns a reply into a message with a one-time reply keyboard, a
// keyboard removal, or neither.
func render(chatID int64, r core.Reply) tgbotapi.MessageConfig {
	out := tgbotapi.NewMessage(chatID, r.Text)
	switch {
	case len(r.Keyboard) > 0:
		rows := make([][]tgbotapi.KeyboardButton, 0, len(r.Keyboard))
		for _, row := range r.Keyboard {
			buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
			for _, label := range row {
				buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
			}
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(buttons...))
		}
		kb := tgbotapi.NewReplyKeyboard(rows...)
		kb.OneTimeKeyboard = true
		kb.ResizeKeyboard = true
		out.ReplyMarkup = kb
	case r.RemoveKeyboard:
		out.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	}
	return out
}

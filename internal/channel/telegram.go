package channel

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stellarlinkco/daypost/internal/bus"
	"github.com/stellarlinkco/daypost/internal/config"
)

// TelegramChannelName routes outbound messages to the Telegram transport.
const TelegramChannelName = "telegram"

// Telegram has a 4096 char limit per message.
const telegramMaxLen = 4000

// TelegramBot interface for mocking telegram bot API
type TelegramBot interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetSelf() tgbotapi.User
}

// tgBotWrapper wraps tgbotapi.BotAPI to implement TelegramBot interface
type tgBotWrapper struct {
	bot *tgbotapi.BotAPI
}

func (w *tgBotWrapper) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return w.bot.GetUpdatesChan(config)
}

func (w *tgBotWrapper) StopReceivingUpdates() {
	w.bot.StopReceivingUpdates()
}

func (w *tgBotWrapper) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return w.bot.Send(c)
}

func (w *tgBotWrapper) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return w.bot.Request(c)
}

func (w *tgBotWrapper) GetSelf() tgbotapi.User {
	return w.bot.Self
}

// BotFactory creates TelegramBot instances (allows mocking)
type BotFactory func(token, apiEndpoint string, client *http.Client) (TelegramBot, error)

// defaultBotFactory creates real telegram bot
var defaultBotFactory BotFactory = func(token, apiEndpoint string, client *http.Client) (TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, apiEndpoint, client)
	if err != nil {
		return nil, err
	}
	return &tgBotWrapper{bot: bot}, nil
}

type TelegramChannel struct {
	BaseChannel
	token      string
	bot        TelegramBot
	proxy      string
	cancel     context.CancelFunc
	botFactory BotFactory

	mu        sync.Mutex
	transient map[int64][]int
}

// NewTelegramChannelWithFactory creates a TelegramChannel. A nil factory
// builds real bots; tests pass a mock.
func NewTelegramChannelWithFactory(cfg config.TelegramConfig, b *bus.MessageBus, factory BotFactory) (*TelegramChannel, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if factory == nil {
		factory = defaultBotFactory
	}

	ch := &TelegramChannel{
		BaseChannel: NewBaseChannel(TelegramChannelName, b, cfg.AllowFrom),
		token:       cfg.Token,
		proxy:       cfg.Proxy,
		botFactory:  factory,
		transient:   make(map[int64][]int),
	}
	return ch, nil
}

func (t *TelegramChannel) initBot() error {
	client := http.DefaultClient
	if t.proxy != "" {
		proxyURL, err := url.Parse(t.proxy)
		if err != nil {
			return fmt.Errorf("parse proxy url: %w", err)
		}
		client = &http.Client{
			Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		}
	}

	bot, err := t.botFactory(t.token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return fmt.Errorf("create telegram bot: %w", err)
	}
	t.bot = bot
	log.Printf("[telegram] authorized as @%s", bot.GetSelf().UserName)
	return nil
}

// Connect authorizes the bot for sending only. No updates are polled.
func (t *TelegramChannel) Connect() error {
	return t.initBot()
}

func (t *TelegramChannel) Start(ctx context.Context) error {
	if err := t.initBot(); err != nil {
		return err
	}

	ctx, t.cancel = context.WithCancel(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message == nil {
					continue
				}
				t.handleMessage(ctx, update.Message)
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Printf("[telegram] polling started")
	return nil
}

func (t *TelegramChannel) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	senderID := strconv.FormatInt(msg.From.ID, 10)

	if !t.IsAllowed(senderID) {
		log.Printf("[telegram] rejected message from %s (%s)", senderID, msg.From.UserName)
		return
	}

	metadata := map[string]any{
		"username":   msg.From.UserName,
		"first_name": msg.From.FirstName,
		"message_id": msg.MessageID,
	}
	// Stickers, photos and service messages have no text; the handler
	// ignores them, but they still pass through so the flow stays visible.
	if msg.Text == "" {
		metadata[bus.MetaNonText] = true
	}

	inbound := bus.InboundMessage{
		Channel:  TelegramChannelName,
		SenderID: senderID,
		ChatID:   strconv.FormatInt(msg.Chat.ID, 10),
		Content:  msg.Text,
		Sender: bus.Sender{
			ID:        msg.From.ID,
			FirstName: msg.From.FirstName,
			LastName:  msg.From.LastName,
			Username:  msg.From.UserName,
			IsBot:     msg.From.IsBot,
		},
		Metadata: metadata,
	}

	select {
	case t.bus.Inbound <- inbound:
	case <-ctx.Done():
	}
}

func (t *TelegramChannel) Stop() error {
	if t.cancel != nil {
		t.cancel()
	}
	if t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
	log.Printf("[telegram] stopped")
	return nil
}

// SetBot sets the bot (for testing)
func (t *TelegramChannel) SetBot(bot TelegramBot) {
	t.bot = bot
}

func (t *TelegramChannel) Send(msg bus.OutboundMessage) error {
	if t.bot == nil {
		return fmt.Errorf("telegram bot not initialized")
	}

	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", msg.ChatID, err)
	}

	if msg.ClearTransient {
		t.clearTransient(chatID)
	}

	var ids []int
	if msg.Sticker != "" {
		sent, err := t.bot.Send(tgbotapi.NewSticker(chatID, tgbotapi.FileID(msg.Sticker)))
		if err != nil {
			return fmt.Errorf("send telegram sticker: %w", err)
		}
		ids = append(ids, sent.MessageID)
	} else {
		ids, err = t.sendText(chatID, msg.Content, msg.Markdown)
		if err != nil {
			return err
		}
	}

	if msg.Transient {
		t.mu.Lock()
		t.transient[chatID] = append(t.transient[chatID], ids...)
		t.mu.Unlock()
	}
	return nil
}

// sendText delivers content in chunks. Markdown content is converted to
// Telegram HTML and falls back to the plain chunk if Telegram rejects it.
func (t *TelegramChannel) sendText(chatID int64, content string, markdown bool) ([]int, error) {
	var ids []int
	for _, chunk := range splitMessage(content, telegramMaxLen) {
		tgMsg := tgbotapi.NewMessage(chatID, chunk)
		if markdown {
			tgMsg.Text = toTelegramHTML(chunk)
			tgMsg.ParseMode = tgbotapi.ModeHTML
		}
		sent, err := t.bot.Send(tgMsg)
		if err != nil && markdown {
			// Retry without HTML parse mode
			tgMsg.ParseMode = ""
			tgMsg.Text = chunk
			sent, err = t.bot.Send(tgMsg)
		}
		if err != nil {
			return ids, fmt.Errorf("send telegram message: %w", err)
		}
		ids = append(ids, sent.MessageID)
	}
	return ids, nil
}

// clearTransient deletes the status messages remembered for chatID. A
// failed delete is logged and forgotten.
func (t *TelegramChannel) clearTransient(chatID int64) {
	t.mu.Lock()
	ids := t.transient[chatID]
	delete(t.transient, chatID)
	t.mu.Unlock()

	for _, id := range ids {
		if _, err := t.bot.Request(tgbotapi.NewDeleteMessage(chatID, id)); err != nil {
			log.Printf("[telegram] delete message %d in %d failed: %v", id, chatID, err)
		}
	}
}

// splitMessage cuts s into chunks of at most maxLen bytes, preferring to
// break after a newline.
func splitMessage(s string, maxLen int) []string {
	var chunks []string
	for len(s) > 0 {
		chunk := s
		if len(chunk) > maxLen {
			if idx := strings.LastIndex(chunk[:maxLen], "\n"); idx > 0 {
				chunk = chunk[:idx+1]
			} else {
				cut := maxLen
				for cut > 0 && !utf8.RuneStart(chunk[cut]) {
					cut--
				}
				if cut == 0 {
					cut = maxLen
				}
				chunk = chunk[:cut]
			}
		}
		chunks = append(chunks, chunk)
		s = s[len(chunk):]
	}
	return chunks
}

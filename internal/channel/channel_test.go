package channel

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stellarlinkco/daypost/internal/bus"
	"github.com/stellarlinkco/daypost/internal/config"
)

func TestBaseChannel_Name(t *testing.T) {
	b := bus.NewMessageBus(10)
	ch := NewBaseChannel("test", b, nil)
	if ch.Name() != "test" {
		t.Errorf("Name = %q, want test", ch.Name())
	}
}

func TestBaseChannel_IsAllowed_NoFilter(t *testing.T) {
	b := bus.NewMessageBus(10)
	ch := NewBaseChannel("test", b, nil)
	if !ch.IsAllowed("anyone") {
		t.Error("should allow anyone when allowFrom is empty")
	}
}

func TestBaseChannel_IsAllowed_WithFilter(t *testing.T) {
	b := bus.NewMessageBus(10)
	ch := NewBaseChannel("test", b, []string{"user1", "", "user2"})

	if !ch.IsAllowed("user1") || !ch.IsAllowed("user2") {
		t.Error("should allow listed users")
	}
	if ch.IsAllowed("user3") {
		t.Error("should reject user3")
	}
	if ch.IsAllowed("") {
		t.Error("empty entry should not admit empty sender")
	}
}

func TestNewTelegramChannel_NoToken(t *testing.T) {
	b := bus.NewMessageBus(10)
	_, err := NewTelegramChannelWithFactory(config.TelegramConfig{}, b, nil)
	if err == nil {
		t.Error("expected error for empty token")
	}
}

func TestNewTelegramChannel_Valid(t *testing.T) {
	b := bus.NewMessageBus(10)
	ch, err := NewTelegramChannelWithFactory(config.TelegramConfig{Token: "fake-token", Proxy: "http://proxy.local:8080"}, b, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch.botFactory == nil {
		t.Error("nil factory should fall back to the real bot factory")
	}
	if ch.Name() != "telegram" {
		t.Errorf("Name = %q, want telegram", ch.Name())
	}
	if ch.proxy != "http://proxy.local:8080" {
		t.Errorf("proxy = %q", ch.proxy)
	}
}

func TestToTelegramHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "hello", "hello"},
		{"bold", "**bold**", "<b>bold</b>"},
		{"inline code", "`code`", "<code>code</code>"},
		{"ampersand", "a & b", "a &amp; b"},
		{"tags", "<tag>", "&lt;tag&gt;"},
		{"italic", "*italic*", "<i>italic</i>"},
		{"mixed", "**bold** and *italic*", "<b>bold</b> and <i>italic</i>"},
		{"fence with language", "```go\nfunc main() {}\n```", "<pre>func main() {}\n</pre>"},
		{"fence without language", "```\ncode here\n```", "<pre>\ncode here\n</pre>"},
		{"unclosed fence", "```code", "<code></code>`code"},
		{"unclosed inline code", "`code", "`code"},
		{"unclosed bold", "**bold", "<i></i>bold"},
		{"unclosed italic", "*italic", "*italic"},
		{"event list", "Team meeting at 10am, Lunch with client", "Team meeting at 10am, Lunch with client"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := toTelegramHTML(tt.input); got != tt.want {
				t.Errorf("toTelegramHTML(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSplitMessage(t *testing.T) {
	if got := splitMessage("", 10); len(got) != 0 {
		t.Errorf("empty input should give no chunks, got %v", got)
	}
	if got := splitMessage("short", 10); len(got) != 1 || got[0] != "short" {
		t.Errorf("short input = %v", got)
	}

	got := splitMessage("aaaa\nbbbb\ncccc", 10)
	if len(got) != 2 || got[0] != "aaaa\nbbbb\n" || got[1] != "cccc" {
		t.Errorf("newline split = %q", got)
	}

	// Never cut through a multi-byte rune.
	long := strings.Repeat("é", 10)
	for _, chunk := range splitMessage(long, 5) {
		if !utf8.ValidString(chunk) {
			t.Errorf("chunk %q is not valid utf8", chunk)
		}
	}
	if strings.Join(splitMessage(long, 5), "") != long {
		t.Error("chunks should reassemble to the input")
	}
}

// mockChannel implements Channel interface for testing
type mockChannel struct {
	name     string
	started  bool
	stopped  bool
	startErr error
	stopErr  error
	sentMsgs []bus.OutboundMessage
}

func (m *mockChannel) Name() string { return m.name }

func (m *mockChannel) Start(ctx context.Context) error {
	m.started = true
	return m.startErr
}

func (m *mockChannel) Stop() error {
	m.stopped = true
	return m.stopErr
}

func (m *mockChannel) Send(msg bus.OutboundMessage) error {
	m.sentMsgs = append(m.sentMsgs, msg)
	return nil
}

func TestChannelManager_Disabled(t *testing.T) {
	b := bus.NewMessageBus(10)
	m, err := NewChannelManager(config.TelegramConfig{}, b, nil)
	if err != nil {
		t.Fatalf("NewChannelManager error: %v", err)
	}
	if len(m.EnabledChannels()) != 0 {
		t.Errorf("expected 0 enabled channels, got %d", len(m.EnabledChannels()))
	}
	if err := m.StartAll(context.Background()); err != nil {
		t.Errorf("StartAll error: %v", err)
	}
	if err := m.StopAll(); err != nil {
		t.Errorf("StopAll error: %v", err)
	}
}

func TestChannelManager_EnabledWithoutToken(t *testing.T) {
	b := bus.NewMessageBus(10)
	if _, err := NewChannelManager(config.TelegramConfig{Enabled: true}, b, nil); err == nil {
		t.Error("expected error for enabled telegram without token")
	}
}

func TestChannelManager_Telegram(t *testing.T) {
	b := bus.NewMessageBus(10)
	m, err := NewChannelManager(config.TelegramConfig{Enabled: true, Token: "fake-token"}, b, func(string, string, *http.Client) (TelegramBot, error) {
		return newMockBot(), nil
	})
	if err != nil {
		t.Fatalf("NewChannelManager error: %v", err)
	}
	if got := m.EnabledChannels(); len(got) != 1 || got[0] != "telegram" {
		t.Errorf("EnabledChannels = %v, want [telegram]", got)
	}
}

func TestChannelManager_WithMockChannel(t *testing.T) {
	b := bus.NewMessageBus(10)
	mock := &mockChannel{name: "mock"}

	m := &ChannelManager{channels: map[string]Channel{}, bus: b}
	m.Register(mock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.StartAll(ctx); err != nil {
		t.Errorf("StartAll error: %v", err)
	}
	if !mock.started {
		t.Error("mock channel should be started")
	}

	if err := m.StopAll(); err != nil {
		t.Errorf("StopAll error: %v", err)
	}
	if !mock.stopped {
		t.Error("mock channel should be stopped")
	}
}

type routedChannel struct {
	mockChannel
	got chan bus.OutboundMessage
}

func (r *routedChannel) Send(msg bus.OutboundMessage) error {
	r.got <- msg
	return nil
}

func TestChannelManager_RegisterRoutesOutbound(t *testing.T) {
	b := bus.NewMessageBus(10)
	ch := &routedChannel{mockChannel: mockChannel{name: "mock"}, got: make(chan bus.OutboundMessage, 1)}
	m := &ChannelManager{channels: map[string]Channel{}, bus: b}
	m.Register(ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.DispatchOutbound(ctx)

	b.Outbound <- bus.OutboundMessage{Channel: "mock", ChatID: "1", Content: "hi"}
	select {
	case msg := <-ch.got:
		if msg.Content != "hi" {
			t.Errorf("content = %q", msg.Content)
		}
	case <-time.After(time.Second):
		t.Fatal("outbound message was not routed")
	}
}

func TestChannelManager_StartAll_Error(t *testing.T) {
	b := bus.NewMessageBus(10)
	mock := &mockChannel{name: "mock", startErr: fmt.Errorf("start failed")}
	m := &ChannelManager{channels: map[string]Channel{"mock": mock}, bus: b}

	if err := m.StartAll(context.Background()); err == nil {
		t.Error("expected error from StartAll")
	}
}

func TestChannelManager_StopAll_Error(t *testing.T) {
	b := bus.NewMessageBus(10)
	mock := &mockChannel{name: "mock", stopErr: fmt.Errorf("stop failed")}
	m := &ChannelManager{channels: map[string]Channel{"mock": mock}, bus: b}

	// Should not return error (errors are logged)
	if err := m.StopAll(); err != nil {
		t.Errorf("StopAll should not return error: %v", err)
	}
}

func TestChannelManager_ConnectAll(t *testing.T) {
	b := bus.NewMessageBus(10)

	empty, _ := NewChannelManager(config.TelegramConfig{}, b, nil)
	if err := empty.ConnectAll(); err == nil {
		t.Error("expected error with no channels enabled")
	}

	bot := newMockBot()
	m, err := NewChannelManager(config.TelegramConfig{Enabled: true, Token: "fake-token"}, b, func(string, string, *http.Client) (TelegramBot, error) {
		return bot, nil
	})
	if err != nil {
		t.Fatalf("NewChannelManager error: %v", err)
	}
	if err := m.ConnectAll(); err != nil {
		t.Fatalf("ConnectAll error: %v", err)
	}

	// Connected channels send but never poll.
	b.Outbound <- bus.OutboundMessage{Channel: "telegram", ChatID: "7", Content: "digest"}
	if n := b.FlushOutbound(); n != 1 {
		t.Errorf("flushed %d, want 1", n)
	}
	if len(bot.sentMsgs) != 1 {
		t.Errorf("sent %d messages, want 1", len(bot.sentMsgs))
	}
	if bot.polled {
		t.Error("ConnectAll should not poll for updates")
	}

	plain := &ChannelManager{channels: map[string]Channel{}, bus: b}
	plain.Register(&mockChannel{name: "mock"})
	if err := plain.ConnectAll(); err == nil {
		t.Error("expected error for a channel without send-only mode")
	}

	failing, _ := NewChannelManager(config.TelegramConfig{Enabled: true, Token: "bad"}, b, func(string, string, *http.Client) (TelegramBot, error) {
		return nil, fmt.Errorf("unauthorized")
	})
	if err := failing.ConnectAll(); err == nil {
		t.Error("expected error when the bot cannot authorize")
	}
}

// mockTelegramBot implements TelegramBot interface for testing
type mockTelegramBot struct {
	updatesChan chan tgbotapi.Update
	polled      bool
	stopped     bool
	sentMsgs    []tgbotapi.Chattable
	requests    []tgbotapi.Chattable
	sendErr     error
	requestErr  error
	nextID      int
	self        tgbotapi.User
}

func newMockBot() *mockTelegramBot {
	return &mockTelegramBot{
		updatesChan: make(chan tgbotapi.Update, 10),
		self:        tgbotapi.User{UserName: "daypost_bot"},
	}
}

func (m *mockTelegramBot) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	m.polled = true
	return m.updatesChan
}

func (m *mockTelegramBot) StopReceivingUpdates() {
	m.stopped = true
}

func (m *mockTelegramBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.sentMsgs = append(m.sentMsgs, c)
	if m.sendErr != nil {
		return tgbotapi.Message{}, m.sendErr
	}
	m.nextID++
	return tgbotapi.Message{MessageID: m.nextID}, nil
}

func (m *mockTelegramBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	m.requests = append(m.requests, c)
	if m.requestErr != nil {
		return nil, m.requestErr
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (m *mockTelegramBot) GetSelf() tgbotapi.User {
	return m.self
}

func newTestChannel(t *testing.T, allowFrom ...string) (*TelegramChannel, *bus.MessageBus) {
	t.Helper()
	b := bus.NewMessageBus(10)
	ch, err := NewTelegramChannelWithFactory(config.TelegramConfig{Token: "fake-token", AllowFrom: allowFrom}, b, nil)
	if err != nil {
		t.Fatalf("NewTelegramChannel error: %v", err)
	}
	return ch, b
}

func TestTelegramChannel_HandleMessage_Allowed(t *testing.T) {
	ch, b := newTestChannel(t)

	ch.handleMessage(context.Background(), &tgbotapi.Message{
		MessageID: 9,
		From:      &tgbotapi.User{ID: 123, FirstName: "Ada", LastName: "Lovelace", UserName: "ada"},
		Chat:      &tgbotapi.Chat{ID: 456},
		Text:      "Team meeting at 10am",
		Date:      1718452800,
	})

	select {
	case inbound := <-b.Inbound:
		if inbound.Content != "Team meeting at 10am" {
			t.Errorf("content = %q", inbound.Content)
		}
		if inbound.SenderID != "123" || inbound.ChatID != "456" {
			t.Errorf("sender/chat = %q/%q, want 123/456", inbound.SenderID, inbound.ChatID)
		}
		if inbound.Sender.ID != 123 || inbound.Sender.FirstName != "Ada" || inbound.Sender.LastName != "Lovelace" || inbound.Sender.Username != "ada" {
			t.Errorf("sender = %+v", inbound.Sender)
		}
		if !inbound.IsText() {
			t.Error("text message flagged as non-text")
		}
	default:
		t.Error("expected inbound message")
	}
}

func TestTelegramChannel_HandleMessage_Rejected(t *testing.T) {
	ch, b := newTestChannel(t, "999")

	ch.handleMessage(context.Background(), &tgbotapi.Message{
		From: &tgbotapi.User{ID: 123, UserName: "testuser"},
		Chat: &tgbotapi.Chat{ID: 456},
		Text: "hello",
	})

	select {
	case <-b.Inbound:
		t.Error("should not receive message from rejected user")
	default:
	}
}

func TestTelegramChannel_HandleMessage_NonText(t *testing.T) {
	ch, b := newTestChannel(t)

	ch.handleMessage(context.Background(), &tgbotapi.Message{
		From:    &tgbotapi.User{ID: 123},
		Chat:    &tgbotapi.Chat{ID: 456},
		Caption: "photo caption",
		Sticker: &tgbotapi.Sticker{FileID: "s"},
	})

	select {
	case inbound := <-b.Inbound:
		if inbound.IsText() {
			t.Error("sticker should be flagged non-text")
		}
		if inbound.Content != "" {
			t.Errorf("caption leaked into content: %q", inbound.Content)
		}
	default:
		t.Error("expected inbound message")
	}
}

func TestTelegramChannel_HandleMessage_NoSender(t *testing.T) {
	ch, b := newTestChannel(t)

	ch.handleMessage(context.Background(), &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 456}, Text: "channel post"})

	select {
	case <-b.Inbound:
		t.Error("messages without a sender should be dropped")
	default:
	}
}

func TestTelegramChannel_InitBot(t *testing.T) {
	b := bus.NewMessageBus(10)
	mockBot := newMockBot()
	ch, _ := NewTelegramChannelWithFactory(config.TelegramConfig{Token: "fake-token"}, b,
		func(token, apiEndpoint string, client *http.Client) (TelegramBot, error) {
			if token != "fake-token" || apiEndpoint != tgbotapi.APIEndpoint {
				t.Errorf("factory got %q %q", token, apiEndpoint)
			}
			return mockBot, nil
		})

	if err := ch.initBot(); err != nil {
		t.Fatalf("initBot error: %v", err)
	}
	if ch.bot != mockBot {
		t.Error("bot should be set")
	}
}

func TestTelegramChannel_InitBot_Errors(t *testing.T) {
	b := bus.NewMessageBus(10)

	ch, _ := NewTelegramChannelWithFactory(config.TelegramConfig{Token: "fake-token"}, b,
		func(string, string, *http.Client) (TelegramBot, error) { return nil, fmt.Errorf("auth failed") })
	if err := ch.initBot(); err == nil {
		t.Error("expected error from factory")
	}

	ch, _ = NewTelegramChannelWithFactory(config.TelegramConfig{Token: "fake-token", Proxy: "://invalid-url"}, b, nil)
	if err := ch.initBot(); err == nil {
		t.Error("expected error for invalid proxy URL")
	}
}

func TestTelegramChannel_StartStop(t *testing.T) {
	b := bus.NewMessageBus(10)
	mockBot := newMockBot()
	ch, _ := NewTelegramChannelWithFactory(config.TelegramConfig{Token: "fake-token"}, b,
		func(string, string, *http.Client) (TelegramBot, error) { return mockBot, nil })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ch.Start(ctx); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	mockBot.updatesChan <- tgbotapi.Update{Message: nil}
	mockBot.updatesChan <- tgbotapi.Update{
		Message: &tgbotapi.Message{
			From: &tgbotapi.User{ID: 123},
			Chat: &tgbotapi.Chat{ID: 456},
			Text: "test message",
		},
	}

	select {
	case inbound := <-b.Inbound:
		if inbound.Content != "test message" {
			t.Errorf("content = %q, want 'test message'", inbound.Content)
		}
	case <-time.After(time.Second):
		t.Fatal("expected inbound message")
	}

	if err := ch.Stop(); err != nil {
		t.Errorf("Stop error: %v", err)
	}
	if !mockBot.stopped {
		t.Error("bot should be stopped")
	}
}

func TestTelegramChannel_Stop_NotStarted(t *testing.T) {
	ch, _ := newTestChannel(t)
	if err := ch.Stop(); err != nil {
		t.Errorf("Stop error: %v", err)
	}
}

func TestTelegramChannel_Send_Errors(t *testing.T) {
	ch, _ := newTestChannel(t)
	if err := ch.Send(bus.OutboundMessage{ChatID: "123", Content: "test"}); err == nil {
		t.Error("expected error when bot is nil")
	}

	ch.SetBot(newMockBot())
	if err := ch.Send(bus.OutboundMessage{ChatID: "not-a-number", Content: "test"}); err == nil {
		t.Error("expected error for invalid chat ID")
	}

	failing := newMockBot()
	failing.sendErr = fmt.Errorf("send failed")
	ch.SetBot(failing)
	if err := ch.Send(bus.OutboundMessage{ChatID: "123", Content: "test"}); err == nil {
		t.Error("expected error when the plain send fails")
	}
	if len(failing.sentMsgs) != 1 {
		t.Errorf("plain text is not retried, got %d sends", len(failing.sentMsgs))
	}
	failing.sentMsgs = nil
	if err := ch.Send(bus.OutboundMessage{ChatID: "123", Content: "test", Markdown: true}); err == nil {
		t.Error("expected error when both sends fail")
	}
	if len(failing.sentMsgs) != 2 {
		t.Errorf("expected HTML attempt plus plain retry, got %d sends", len(failing.sentMsgs))
	}
	if err := ch.Send(bus.OutboundMessage{ChatID: "123", Sticker: "s"}); err == nil {
		t.Error("expected sticker error")
	}
}

func TestTelegramChannel_Send_Text(t *testing.T) {
	ch, _ := newTestChannel(t)
	mockBot := newMockBot()
	ch.SetBot(mockBot)

	if err := ch.Send(bus.OutboundMessage{ChatID: "123", Content: "a & b", Markdown: true}); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if len(mockBot.sentMsgs) != 1 {
		t.Fatalf("expected 1 sent message, got %d", len(mockBot.sentMsgs))
	}
	msg, ok := mockBot.sentMsgs[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("sent %T, want MessageConfig", mockBot.sentMsgs[0])
	}
	if msg.ChatID != 123 || msg.Text != "a &amp; b" || msg.ParseMode != tgbotapi.ModeHTML {
		t.Errorf("message = %+v", msg)
	}
}

func TestTelegramChannel_Send_PlainTextVerbatim(t *testing.T) {
	ch, _ := newTestChannel(t)
	mockBot := newMockBot()
	ch.SetBot(mockBot)

	tests := []string{
		"2*3=6, 5*5=25",
		"a*b, c*d",
		"use `go test` & <b>not</b> __this__",
	}
	for _, content := range tests {
		mockBot.sentMsgs = nil
		if err := ch.Send(bus.OutboundMessage{ChatID: "123", Content: content}); err != nil {
			t.Fatalf("Send(%q) error: %v", content, err)
		}
		msg := mockBot.sentMsgs[0].(tgbotapi.MessageConfig)
		if msg.Text != content || msg.ParseMode != "" {
			t.Errorf("Send(%q) sent text=%q parse_mode=%q, want verbatim plain text", content, msg.Text, msg.ParseMode)
		}
	}
}

func TestTelegramChannel_Send_LongMessage(t *testing.T) {
	ch, _ := newTestChannel(t)
	mockBot := newMockBot()
	ch.SetBot(mockBot)

	longContent := strings.Repeat("This is a long line of text that will be repeated.\n", 100)
	if err := ch.Send(bus.OutboundMessage{ChatID: "123", Content: longContent}); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if len(mockBot.sentMsgs) < 2 {
		t.Errorf("expected multiple sent messages for long content, got %d", len(mockBot.sentMsgs))
	}

	mockBot.sentMsgs = nil
	if err := ch.Send(bus.OutboundMessage{ChatID: "123", Content: strings.Repeat("x", 5000)}); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if len(mockBot.sentMsgs) != 2 {
		t.Errorf("expected 2 messages, got %d", len(mockBot.sentMsgs))
	}
}

type flakyHTMLBot struct {
	*mockTelegramBot
	calls int
}

func (f *flakyHTMLBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.calls++
	if msg, ok := c.(tgbotapi.MessageConfig); ok && msg.ParseMode == tgbotapi.ModeHTML {
		return tgbotapi.Message{}, fmt.Errorf("can't parse entities")
	}
	return f.mockTelegramBot.Send(c)
}

func TestTelegramChannel_Send_HTMLError_Retry(t *testing.T) {
	ch, _ := newTestChannel(t)
	bot := &flakyHTMLBot{mockTelegramBot: newMockBot()}
	ch.SetBot(bot)

	if err := ch.Send(bus.OutboundMessage{ChatID: "123", Content: "*unbalanced <b>", Markdown: true}); err != nil {
		t.Fatalf("Send should succeed after retry: %v", err)
	}
	if bot.calls != 2 {
		t.Errorf("calls = %d, want 2", bot.calls)
	}
	plain := bot.sentMsgs[0].(tgbotapi.MessageConfig)
	if plain.Text != "*unbalanced <b>" || plain.ParseMode != "" {
		t.Errorf("retry = %+v, want raw text without parse mode", plain)
	}
}

func TestTelegramChannel_TransientMessages(t *testing.T) {
	ch, _ := newTestChannel(t)
	mockBot := newMockBot()
	ch.SetBot(mockBot)

	if err := ch.Send(bus.OutboundMessage{ChatID: "123", Content: "Please wait", Transient: true}); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if err := ch.Send(bus.OutboundMessage{ChatID: "123", Sticker: "loading", Transient: true}); err != nil {
		t.Fatalf("Send sticker error: %v", err)
	}
	sticker, ok := mockBot.sentMsgs[1].(tgbotapi.StickerConfig)
	if !ok {
		t.Fatalf("sent %T, want StickerConfig", mockBot.sentMsgs[1])
	}
	if sticker.ChatID != 123 {
		t.Errorf("sticker chat = %d", sticker.ChatID)
	}

	// Another chat's transients are untouched.
	if err := ch.Send(bus.OutboundMessage{ChatID: "777", Content: "other", Transient: true}); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	if err := ch.Send(bus.OutboundMessage{ChatID: "123", Content: "done", ClearTransient: true}); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if len(mockBot.requests) != 2 {
		t.Fatalf("expected 2 deletions, got %d", len(mockBot.requests))
	}
	for i, want := range []int{1, 2} {
		del, ok := mockBot.requests[i].(tgbotapi.DeleteMessageConfig)
		if !ok {
			t.Fatalf("request %T, want DeleteMessageConfig", mockBot.requests[i])
		}
		if del.ChatID != 123 || del.MessageID != want {
			t.Errorf("delete = %+v, want chat 123 message %d", del, want)
		}
	}

	// Cleared ids are forgotten.
	if err := ch.Send(bus.OutboundMessage{ChatID: "123", Content: "again", ClearTransient: true}); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if len(mockBot.requests) != 2 {
		t.Errorf("expected no further deletions, got %d", len(mockBot.requests))
	}
}

func TestTelegramChannel_TransientDeleteFailureIsLogged(t *testing.T) {
	ch, _ := newTestChannel(t)
	mockBot := newMockBot()
	mockBot.requestErr = fmt.Errorf("message to delete not found")
	ch.SetBot(mockBot)

	_ = ch.Send(bus.OutboundMessage{ChatID: "5", Content: "wait", Transient: true})
	if err := ch.Send(bus.OutboundMessage{ChatID: "5", Content: "done", ClearTransient: true}); err != nil {
		t.Errorf("failed deletion should not fail the send: %v", err)
	}
}

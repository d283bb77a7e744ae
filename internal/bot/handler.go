// Package bot maps inbound chat messages onto the user directory and the
// event ledger and produces the replies.
package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/stellarlinkco/daypost/internal/bus"
	"github.com/stellarlinkco/daypost/internal/ledger"
	"github.com/stellarlinkco/daypost/internal/summarize"
)

// Replier delivers one outbound message. Handlers call it as soon as a
// reply is ready so transient status messages show up before slow work.
type Replier func(bus.OutboundMessage)

type Handler struct {
	directory      *ledger.Directory
	ledger         *ledger.Ledger
	summarizer     summarize.Summarizer
	loadingSticker string
}

type Options struct {
	// Summarizer is optional. Without it /generate lists the raw texts.
	Summarizer     summarize.Summarizer
	LoadingSticker string
}

func NewHandler(d *ledger.Directory, l *ledger.Ledger, opts Options) *Handler {
	return &Handler{
		directory:      d,
		ledger:         l,
		summarizer:     opts.Summarizer,
		loadingSticker: opts.LoadingSticker,
	}
}

// Handle processes one inbound message and emits its replies through reply.
func (h *Handler) Handle(ctx context.Context, msg bus.InboundMessage, reply Replier) {
	send := func(text string) {
		reply(bus.OutboundMessage{Channel: msg.Channel, ChatID: msg.ChatID, Content: text})
	}

	switch u := Parse(msg.Content, msg.IsText()).(type) {
	case Command:
		h.handleCommand(ctx, msg, u, reply, send)
	case PlainText:
		h.handleText(ctx, msg, u, send)
	case Unknown:
		// ignored
	}
}

func (h *Handler) handleCommand(ctx context.Context, msg bus.InboundMessage, cmd Command, reply Replier, send func(string)) {
	from := msg.Sender
	switch cmd.Name {
	case "start":
		if _, err := h.directory.EnsureUser(ctx, identity(from)); err != nil {
			log.Printf("[bot] ensure user %d error: %v", from.ID, err)
			send(replyStartError)
			return
		}
		send(replyWelcome(from.FirstName))

	case "generate":
		h.generate(ctx, msg, reply)

	case "time":
		send(replyTime(h.ledger.Now().Format(time.TimeOnly)))

	case "help":
		send(replyHelp)

	case "deleteevents":
		n, err := h.ledger.DeleteForDay(ctx, from.ID, time.Time{})
		if err != nil {
			log.Printf("[bot] delete events for %d error: %v", from.ID, err)
			send(replyDeleteError)
			return
		}
		log.Printf("[bot] deleted %d events for %d", n, from.ID)
		send(replyDeleted)

	case "stats":
		n, err := h.ledger.CountForDay(ctx, from.ID, time.Time{})
		if err != nil {
			log.Printf("[bot] count events for %d error: %v", from.ID, err)
			send(replyStartError)
			return
		}
		send(replyStats(n))

	case "about":
		send(replyAbout)

	case "quit":
		send(replyStopping)

	default:
		send(replyUnknown)
	}
}

func (h *Handler) handleText(ctx context.Context, msg bus.InboundMessage, t PlainText, send func(string)) {
	switch {
	case thanksPhrases[t.Body]:
		send(replyWelcomeBack)
		return
	case greetingPhrases[t.Body]:
		send(replyGreeting(msg.Sender.FirstName))
		return
	}

	if _, err := h.ledger.Record(ctx, msg.Sender.ID, t.Body); err != nil {
		log.Printf("[bot] record event for %d error: %v", msg.Sender.ID, err)
		send(replyEventError)
		return
	}
	send(replyEventAdded)
}

func (h *Handler) generate(ctx context.Context, msg bus.InboundMessage, reply Replier) {
	reply(bus.OutboundMessage{
		Channel:   msg.Channel,
		ChatID:    msg.ChatID,
		Content:   replyGenerating(msg.Sender.FirstName),
		Transient: true,
	})
	if h.loadingSticker != "" {
		reply(bus.OutboundMessage{
			Channel:   msg.Channel,
			ChatID:    msg.ChatID,
			Sticker:   h.loadingSticker,
			Transient: true,
		})
	}

	posts, err := h.Compose(ctx, msg.Sender.ID)
	if err != nil {
		log.Printf("[bot] generate for %d error: %v", msg.Sender.ID, err)
		posts = []Post{{Text: replyGenerateError}}
	} else if len(posts) == 0 {
		posts = []Post{{Text: replyNoEvents}}
	}

	for i, p := range posts {
		reply(bus.OutboundMessage{
			Channel:        msg.Channel,
			ChatID:         msg.ChatID,
			Content:        p.Text,
			Markdown:       p.Markdown,
			ClearTransient: i == 0,
		})
	}
}

// Post is one reply body. Only summarizer output is Markdown; raw event
// texts are sent as typed.
type Post struct {
	Text     string
	Markdown bool
}

// Compose builds the reply bodies for ownerID's events today. It returns no
// bodies when there are no events. A failing summarizer falls back to the
// raw texts.
func (h *Handler) Compose(ctx context.Context, ownerID int64) ([]Post, error) {
	events, err := h.ledger.ListForDay(ctx, ownerID, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	if len(events) == 0 {
		return nil, nil
	}

	texts := make([]string, 0, len(events))
	for _, ev := range events {
		texts = append(texts, ev.Text)
	}

	if h.summarizer != nil {
		summary, err := h.summarizer.Summarize(ctx, texts)
		if err == nil {
			return []Post{{Text: summary, Markdown: true}}, nil
		}
		log.Printf("[bot] summarizer error for %d, listing raw events: %v", ownerID, err)
	}
	return []Post{{Text: replyPostsHeader}, {Text: strings.Join(texts, ", ")}}, nil
}

// Digest sends today's compiled posts to every known user who recorded
// something. It returns how many users were served.
func (h *Handler) Digest(ctx context.Context, channel string, reply Replier) (int, error) {
	users, err := h.directory.Users(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	served := 0
	for _, u := range users {
		if ctx.Err() != nil {
			return served, ctx.Err()
		}
		posts, err := h.Compose(ctx, u.TgID)
		if err != nil {
			log.Printf("[bot] digest for %d error: %v", u.TgID, err)
			continue
		}
		if len(posts) == 0 {
			continue
		}
		chatID := strconv.FormatInt(u.TgID, 10)
		for _, p := range posts {
			reply(bus.OutboundMessage{Channel: channel, ChatID: chatID, Content: p.Text, Markdown: p.Markdown})
		}
		served++
	}
	return served, nil
}

func identity(s bus.Sender) ledger.Identity {
	return ledger.Identity{
		ID:        s.ID,
		FirstName: s.FirstName,
		LastName:  s.LastName,
		IsBot:     s.IsBot,
		Username:  s.Username,
	}
}

package gateway

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/stellarlinkco/daypost/internal/bot"
	"github.com/stellarlinkco/daypost/internal/bus"
	"github.com/stellarlinkco/daypost/internal/channel"
	"github.com/stellarlinkco/daypost/internal/config"
	"github.com/stellarlinkco/daypost/internal/cron"
	"github.com/stellarlinkco/daypost/internal/ledger"
	"github.com/stellarlinkco/daypost/internal/store"
	"github.com/stellarlinkco/daypost/internal/store/mongostore"
	"github.com/stellarlinkco/daypost/internal/store/sqlitestore"
	"github.com/stellarlinkco/daypost/internal/summarize"
)

const (
	digestJobName = "daily-digest"
	// drainTimeout bounds how long shutdown waits for queued inbound
	// messages before the store is closed.
	drainTimeout = 10 * time.Second
)

// StoreOpener connects the configured store (allows injection in tests).
type StoreOpener func(ctx context.Context, cfg config.StoreConfig) (store.Store, error)

// Options for creating a Gateway
type Options struct {
	StoreOpener StoreOpener
	BotFactory  channel.BotFactory
	// Summarizer overrides the one built from config.
	Summarizer summarize.Summarizer
	Clock      ledger.Clock
	SignalChan chan os.Signal // for testing signal handling
}

// OpenStore connects the driver named in cfg. A mongo store that cannot be
// reached yields store.ErrUnavailable.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case config.StoreDriverMongo:
		if strings.TrimSpace(cfg.MongoURI) == "" {
			return nil, fmt.Errorf("mongo store requires a uri")
		}
		return mongostore.Open(ctx, cfg.MongoURI, cfg.Database)
	case "", config.StoreDriverSQLite:
		return sqlitestore.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

type Gateway struct {
	cfg        *config.Config
	bus        *bus.MessageBus
	store      store.Store
	directory  *ledger.Directory
	ledger     *ledger.Ledger
	handler    *bot.Handler
	channels   *channel.ChannelManager
	cron       *cron.Service
	signalChan chan os.Signal // for testing

	loopStop   chan struct{}
	loopDone   chan struct{}
	loopCancel context.CancelFunc
	stopOnce   sync.Once
}

// New creates a Gateway with default options
func New(cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions creates a Gateway with custom options for testing. Failing
// to reach the store is fatal.
func NewWithOptions(cfg *config.Config, opts Options) (*Gateway, error) {
	g := &Gateway{cfg: cfg, signalChan: opts.SignalChan}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	// Message bus
	g.bus = bus.NewMessageBus(config.DefaultBufSize)

	opener := opts.StoreOpener
	if opener == nil {
		opener = OpenStore
	}
	openCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	st, err := opener(openCtx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	g.store = st
	log.Printf("[gateway] store ready (%s)", cfg.Store.Driver)

	var ledgerOpts []ledger.Option
	if opts.Clock != nil {
		ledgerOpts = append(ledgerOpts, ledger.WithClock(opts.Clock))
	}
	g.directory = ledger.NewDirectory(st)
	g.ledger = ledger.New(st, loc, ledgerOpts...)

	sum := opts.Summarizer
	if sum == nil {
		sum, err = summarize.New(cfg.Summarizer)
		if err != nil {
			log.Printf("[gateway] summarizer disabled: %v", err)
			sum = nil
		}
	}
	g.handler = bot.NewHandler(g.directory, g.ledger, bot.Options{
		Summarizer:     sum,
		LoadingSticker: cfg.Stickers.Loading,
	})

	// Cron
	g.cron = cron.NewService(loc)
	if cfg.Digest.Enabled {
		if err := g.cron.AddJob(digestJobName, cfg.Digest.Schedule, g.runDigest); err != nil {
			g.closeStore()
			return nil, fmt.Errorf("schedule digest: %w", err)
		}
	}

	chMgr, err := channel.NewChannelManager(cfg.Telegram, g.bus, opts.BotFactory)
	if err != nil {
		g.closeStore()
		return nil, fmt.Errorf("create channel manager: %w", err)
	}
	g.channels = chMgr

	return g, nil
}

func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go g.bus.DispatchOutbound(ctx)

	if err := g.channels.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	log.Printf("[gateway] channels started: %v", g.channels.EnabledChannels())

	if err := g.cron.Start(ctx); err != nil {
		log.Printf("[gateway] cron start warning: %v", err)
	}

	// The loop outlives ctx so Shutdown can drain queued messages before
	// the store closes.
	loopCtx, loopCancel := context.WithCancel(context.WithoutCancel(ctx))
	g.loopStop = make(chan struct{})
	g.loopDone = make(chan struct{})
	g.loopCancel = loopCancel
	go func() {
		defer close(g.loopDone)
		g.processLoop(loopCtx, g.loopStop)
	}()

	log.Printf("[gateway] running, day boundaries in %s", g.ledger.Location())

	// Use injected signal channel for testing, or create default
	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
	}

	select {
	case sig := <-sigCh:
		log.Printf("[gateway] received %v, shutting down...", sig)
	case <-ctx.Done():
		log.Printf("[gateway] context done, shutting down...")
	}
	return g.Shutdown()
}

// processLoop handles inbound messages one at a time so replies to one
// chat keep their order. Closing stop drains what is queued, then returns.
func (g *Gateway) processLoop(ctx context.Context, stop <-chan struct{}) {
	for {
		select {
		case msg := <-g.bus.Inbound:
			g.handle(ctx, msg)
		case <-stop:
			g.drainInbound(ctx)
			return
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) drainInbound(ctx context.Context) {
	for ctx.Err() == nil {
		select {
		case msg := <-g.bus.Inbound:
			g.handle(ctx, msg)
		default:
			return
		}
	}
}

func (g *Gateway) handle(ctx context.Context, msg bus.InboundMessage) {
	log.Printf("[gateway] inbound from %s/%s: %s", msg.Channel, msg.SenderID, truncate(msg.Content, 80))
	g.handler.Handle(ctx, msg, g.reply(ctx))
}

func (g *Gateway) reply(ctx context.Context) bot.Replier {
	return func(out bus.OutboundMessage) {
		select {
		case g.bus.Outbound <- out:
		case <-ctx.Done():
		}
	}
}

func (g *Gateway) runDigest(ctx context.Context) (string, error) {
	served, err := g.handler.Digest(ctx, channel.TelegramChannelName, g.reply(ctx))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("digest sent to %d users", served), nil
}

// DigestJobs lists the scheduled digest with its next run time. It is empty
// when the digest is disabled.
func (g *Gateway) DigestJobs() []cron.Job {
	return g.cron.ListJobs()
}

// DigestNow sends today's digest once, outside the schedule, without
// polling for updates. It is meant for a one-shot process; the store is
// closed when it returns.
func (g *Gateway) DigestNow(ctx context.Context) (string, error) {
	defer g.closeStore()

	if err := g.channels.ConnectAll(); err != nil {
		return "", fmt.Errorf("connect channels: %w", err)
	}
	if !g.cfg.Digest.Enabled {
		if err := g.cron.AddJob(digestJobName, g.cfg.Digest.Schedule, g.runDigest); err != nil {
			return "", fmt.Errorf("schedule digest: %w", err)
		}
	}

	dispatchCtx, cancel := context.WithCancel(ctx)
	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		g.bus.DispatchOutbound(dispatchCtx)
	}()

	result, err := g.cron.RunNow(digestJobName)
	cancel()
	<-dispatched
	g.bus.FlushOutbound()
	return result, err
}

// Shutdown stops intake first, lets queued inbound messages finish, and
// only then closes the store.
func (g *Gateway) Shutdown() error {
	_ = g.channels.StopAll()
	g.cron.Stop()
	g.stopLoop()
	g.closeStore()
	log.Printf("[gateway] shutdown complete")
	return nil
}

func (g *Gateway) stopLoop() {
	if g.loopStop == nil {
		return
	}
	g.stopOnce.Do(func() { close(g.loopStop) })
	select {
	case <-g.loopDone:
	case <-time.After(drainTimeout):
		log.Printf("[gateway] inbound drain timed out, dropping the rest")
		g.loopCancel()
		<-g.loopDone
	}
	g.loopCancel()
}

func (g *Gateway) closeStore() {
	if g.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.store.Close(ctx); err != nil {
		log.Printf("[gateway] close store warning: %v", err)
	}
}

// truncate shortens s to at most n bytes for logging without splitting a
// rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/stellarlinkco/daypost/internal/config"
	"github.com/stellarlinkco/daypost/internal/cron"
	"github.com/stellarlinkco/daypost/internal/gateway"
	"github.com/stellarlinkco/daypost/internal/ledger"
	"github.com/stellarlinkco/daypost/internal/store"
)

const dayLayout = "2006-01-02"

var rootCmd = &cobra.Command{
	Use:          "daypost",
	Short:        "daypost - record your day in Telegram, get it back as posts",
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bot (telegram + store + digest)",
	RunE:  runBot,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config and data directory",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daypost status",
	RunE:  runStatus,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count a user's events for a day",
	RunE:  runStats,
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List (or delete) a user's events for a day",
	RunE:  runEvents,
}

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Show the daily digest schedule, or send it now",
	RunE:  runDigest,
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List known users",
	RunE:  runUsers,
}

var (
	userFlag   int64
	dayFlag    string
	deleteFlag bool
	pingFlag   bool
	nowFlag    bool
)

// gatewayOptions is passed to every gateway the CLI builds.
var gatewayOptions gateway.Options

func init() {
	for _, c := range []*cobra.Command{statsCmd, eventsCmd} {
		c.Flags().Int64VarP(&userFlag, "user", "u", 0, "Telegram user id")
		c.Flags().StringVarP(&dayFlag, "day", "d", "", "Day as YYYY-MM-DD in the ledger timezone (default today)")
		_ = c.MarkFlagRequired("user")
	}
	statusCmd.Flags().BoolVar(&pingFlag, "ping", true, "Ping the configured store")
	eventsCmd.Flags().BoolVar(&deleteFlag, "delete", false, "Delete the listed events")
	digestCmd.Flags().BoolVar(&nowFlag, "now", false, "Send today's digest to every user immediately")
	rootCmd.AddCommand(runCmd, onboardCmd, statusCmd, statsCmd, eventsCmd, digestCmd, usersCmd)
}

func main() {
	// A missing .env is fine; real deployments use the environment.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Telegram.Enabled && cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token not set. Run 'daypost onboard' or set DAYPOST_TELEGRAM_TOKEN / BOT_TOKEN")
	}

	gw, err := gateway.NewWithOptions(cfg, gatewayOptions)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	return gw.Run(context.Background())
}

func runDigest(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if !nowFlag {
		loc, _ := cfg.Location()
		fmt.Fprintf(out, "Digest: %s\n", digestSummary(cfg.Digest, loc))
		return nil
	}

	if !cfg.Telegram.Enabled || cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram is not configured; the digest has nowhere to go")
	}
	gw, err := gateway.NewWithOptions(cfg, gatewayOptions)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	result, err := gw.DigestNow(ctx)
	if err != nil {
		return fmt.Errorf("send digest: %w", err)
	}
	fmt.Fprintf(out, "Digest: %s\n", result)
	return nil
}

func runOnboard(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfgDir := config.ConfigDir()
	cfgPath := config.ConfigPath()

	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.SaveConfig(config.DefaultConfig()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Fprintf(out, "Created config: %s\n", cfgPath)
	} else {
		fmt.Fprintf(out, "Config already exists: %s\n", cfgPath)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Store.Driver == config.StoreDriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Store.SQLitePath), 0755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		fmt.Fprintf(out, "Data dir ready: %s\n", filepath.Dir(cfg.Store.SQLitePath))
	}

	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintf(out, "  1. Edit %s to set your Telegram token\n", cfgPath)
	fmt.Fprintln(out, "  2. Or set DAYPOST_TELEGRAM_TOKEN (BOT_TOKEN also works)")
	fmt.Fprintln(out, "  3. Run 'daypost run'")

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(out, "Config: error (%v)\n", err)
		return nil
	}

	fmt.Fprintf(out, "Config: %s\n", config.ConfigPath())
	fmt.Fprintf(out, "Telegram: enabled=%v token=%s\n", cfg.Telegram.Enabled, maskSecret(cfg.Telegram.Token))
	if len(cfg.Telegram.AllowFrom) > 0 {
		fmt.Fprintf(out, "Allowed senders: %s\n", strings.Join(cfg.Telegram.AllowFrom, ", "))
	}

	switch cfg.Store.Driver {
	case config.StoreDriverMongo:
		fmt.Fprintf(out, "Store: mongo (%s/%s)\n", redactURI(cfg.Store.MongoURI), cfg.Store.Database)
	default:
		fmt.Fprintf(out, "Store: sqlite (%s)\n", cfg.Store.SQLitePath)
	}

	if pingFlag {
		fmt.Fprintf(out, "Store ping: %s\n", pingStore(cfg.Store))
	}

	loc, _ := cfg.Location()
	fmt.Fprintf(out, "Timezone: %s\n", loc)

	if cfg.Summarizer.Enabled {
		fmt.Fprintf(out, "Summarizer: %s model=%s key=%s\n", cfg.Summarizer.Provider, cfg.Summarizer.Model, maskSecret(cfg.Summarizer.APIKey))
	} else {
		fmt.Fprintln(out, "Summarizer: disabled (raw event list)")
	}

	fmt.Fprintf(out, "Digest: %s\n", digestSummary(cfg.Digest, loc))
	return nil
}

// digestSummary describes the digest schedule and its next run in loc.
func digestSummary(cfg config.DigestConfig, loc *time.Location) string {
	if !cfg.Enabled {
		return "disabled"
	}
	svc := cron.NewService(loc)
	noop := func(context.Context) (string, error) { return "", nil }
	if err := svc.AddJob("digest", cfg.Schedule, noop); err != nil {
		return fmt.Sprintf("invalid (%v)", err)
	}
	job := svc.ListJobs()[0]
	return fmt.Sprintf("%s (next run %s)", job.Schedule, job.Next.Format("2006-01-02 15:04:05 MST"))
}

func runStats(cmd *cobra.Command, args []string) error {
	return withLedger(func(ctx context.Context, l *ledger.Ledger, _ *ledger.Directory) error {
		day, err := parseDay(dayFlag, l.Location())
		if err != nil {
			return err
		}
		n, err := l.CountForDay(ctx, userFlag, day)
		if err != nil {
			return fmt.Errorf("count events: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "User %d recorded %d event(s) on %s.\n", userFlag, n, dayLabel(day, l))
		return nil
	})
}

func runEvents(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	return withLedger(func(ctx context.Context, l *ledger.Ledger, _ *ledger.Directory) error {
		day, err := parseDay(dayFlag, l.Location())
		if err != nil {
			return err
		}

		if deleteFlag {
			n, err := l.DeleteForDay(ctx, userFlag, day)
			if err != nil {
				return fmt.Errorf("delete events: %w", err)
			}
			fmt.Fprintf(out, "Deleted %d event(s) for user %d on %s.\n", n, userFlag, dayLabel(day, l))
			return nil
		}

		events, err := l.ListForDay(ctx, userFlag, day)
		if err != nil {
			return fmt.Errorf("list events: %w", err)
		}
		printEvents(out, events, l.Location())
		return nil
	})
}

func runUsers(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	return withLedger(func(ctx context.Context, _ *ledger.Ledger, d *ledger.Directory) error {
		users, err := d.Users(ctx)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		if len(users) == 0 {
			fmt.Fprintln(out, "No users yet")
			return nil
		}
		for _, u := range users {
			name := strings.TrimSpace(u.FirstName + " " + u.LastName)
			if u.Username != "" {
				name += " (@" + u.Username + ")"
			}
			fmt.Fprintf(out, "%d\t%s\tsince %s\n", u.TgID, name, u.CreatedAt.Format(dayLayout))
		}
		return nil
	})
}

func pingStore(cfg config.StoreConfig) string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	st, err := gateway.OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Sprintf("failed (%v)", err)
	}
	defer st.Close(context.Background())

	if err := st.Ping(ctx); err != nil {
		return fmt.Sprintf("failed (%v)", err)
	}
	return "ok"
}

// withLedger opens the configured store for one CLI operation.
func withLedger(fn func(ctx context.Context, l *ledger.Ledger, d *ledger.Directory) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := gateway.OpenStore(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close(context.Background())

	return fn(ctx, ledger.New(st, loc), ledger.NewDirectory(st))
}

// parseDay reads YYYY-MM-DD in loc. Empty means today (zero time).
func parseDay(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	day, err := time.ParseInLocation(dayLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: want YYYY-MM-DD", s)
	}
	return day, nil
}

func dayLabel(day time.Time, l *ledger.Ledger) string {
	if day.IsZero() {
		day = l.Now()
	}
	return day.Format(dayLayout)
}

func printEvents(w io.Writer, events []store.Event, loc *time.Location) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events found")
		return
	}
	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s\n", ev.CreatedAt.In(loc).Format("15:04:05.000"), ev.Text)
	}
}

func maskSecret(s string) string {
	switch {
	case s == "":
		return "not set"
	case len(s) > 8:
		return s[:4] + "..." + s[len(s)-4:]
	default:
		return "set"
	}
}

// redactURI hides credentials in a connection string.
func redactURI(uri string) string {
	if uri == "" {
		return "no uri"
	}
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return uri
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest = "***@" + rest[at+1:]
	}
	return scheme + "://" + rest
}

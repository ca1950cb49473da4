package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"igengage/pkg/auth"
	"igengage/pkg/config"
	"igengage/pkg/engagement"
	"igengage/pkg/instagram"
	"igengage/pkg/logger"
	"igengage/pkg/quota"
	"igengage/pkg/ratelimit"
	"igengage/pkg/report"
	"igengage/pkg/schedule"
	"igengage/pkg/session"
	"igengage/pkg/ui"
)

var (
	// Run command flags
	hashtags        []string
	accountName     string
	requestsPerMin  int
	reportDir       string
	prefetchWorkers int
	unfollowStale   bool
	unfollowGrace   time.Duration
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an engagement session over the configured hashtags",
	Long: `Run one engagement session: fetch each configured hashtag feed, then
like, follow and comment on its posts subject to the daily quotas and
randomized pacing delays.

Quota state persists between runs, so a second session on the same day
continues against the same ceilings instead of starting fresh.

Credentials are resolved from stored accounts ('igengage auth login'),
environment variables (IGENGAGE_SESSION_ID and IGENGAGE_CSRF_TOKEN), or the
configuration file.`,
	Example: `  # Run with hashtags from the config file
  igengage run

  # Run against specific hashtags
  igengage run --hashtags sunset,travel

  # Use a specific stored account and slower request pacing
  igengage run --account myaccount --rate-limit 20

  # Also unfollow accounts followed more than 72h ago
  igengage run --unfollow-stale`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runSession(cmd, args)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSliceVar(&hashtags, "hashtags", nil, "hashtags to engage with (comma separated, overrides config)")
	runCmd.Flags().StringVarP(&accountName, "account", "a", "", "use specific stored account")
	runCmd.Flags().IntVar(&requestsPerMin, "rate-limit", 0, "requests per minute (0 = use config)")
	runCmd.Flags().StringVar(&reportDir, "report-dir", "", "directory for activity reports")
	runCmd.Flags().IntVar(&prefetchWorkers, "prefetch", 1, "concurrent feed fetch workers")
	runCmd.Flags().BoolVar(&unfollowStale, "unfollow-stale", false, "unfollow accounts past the grace period")
	runCmd.Flags().DurationVar(&unfollowGrace, "unfollow-grace", 72*time.Hour, "how long to keep following an account")
}

func runSession(cmd *cobra.Command, args []string) {
	flags := make(map[string]interface{})
	if len(hashtags) > 0 {
		flags["hashtags"] = hashtags
	}
	if requestsPerMin > 0 {
		flags["requests-per-minute"] = requestsPerMin
	}
	if reportDir != "" {
		flags["report-dir"] = reportDir
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logger", err.Error())
		os.Exit(1)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("igengage starting")

	resolveCredentials(cfg, log)

	// Final credential validation, after every store had its chance
	if err := cfg.ValidateCredentials(); err != nil {
		log.WithError(err).Error("Missing Instagram credentials")
		ui.PrintError("Missing Instagram credentials", "Run 'igengage auth login' to store credentials")
		os.Exit(1)
	}

	if len(cfg.Targeting.Hashtags) == 0 {
		ui.PrintError("No hashtags configured", "Use --hashtags or set targeting.hashtags in the config file")
		os.Exit(1)
	}
	ui.PrintInfo("Target hashtags", strings.Join(cfg.Targeting.Hashtags, ", "))

	limiter := ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, time.Minute)
	client := instagram.NewClient(30*time.Second, limiter, log)
	client.SetCredentials(cfg.Instagram.SessionID, cfg.Instagram.CSRFToken)
	if cfg.Instagram.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.Instagram.UserAgent)
	}

	tracker := quota.NewTracker(quota.Limits{
		quota.CategoryLike:     cfg.Limits.Like,
		quota.CategoryFollow:   cfg.Limits.Follow,
		quota.CategoryUnfollow: cfg.Limits.Unfollow,
		quota.CategoryComment:  cfg.Limits.Comment,
	})

	// Restore quota state from the previous run so ceilings survive restarts
	var stateMgr *session.Manager
	var state *session.State
	if cfg.Session.Persist {
		stateMgr, err = session.NewManager(cfg.Instagram.Username, cfg.Session.StateDirectory)
		if err != nil {
			ui.PrintError("Failed to open session state", err.Error())
			os.Exit(1)
		}
		state, err = stateMgr.Load()
		if err != nil {
			ui.PrintError("Failed to load session state", err.Error())
			os.Exit(1)
		}
		if state != nil {
			tracker.Restore(state.Quota)
			log.InfoWithFields("Restored quota state", map[string]interface{}{
				"counts": tracker.Counts(),
			})
		}
	}

	sched := schedule.New(tracker, cfg.Delays.Min, cfg.Delays.Max,
		schedule.WithFixedDelay(cfg.Delays.PerAction),
		schedule.WithLogger(log),
	)

	sink, closeSinks := buildSinks(cfg, log)
	defer closeSinks()

	var opts []engagement.Option
	if prefetchWorkers > 1 {
		opts = append(opts, engagement.WithPrefetchWorkers(prefetchWorkers))
	}
	engager := engagement.New(client, sched, sink, cfg, log, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui.PrintHighlight("[ENGAGEMENT SESSION STARTING]")

	summary, runErr := engager.RunSession(ctx)

	if unfollowStale && state != nil {
		due := state.DueForUnfollow(unfollowGrace, time.Now())
		if len(due) > 0 {
			log.WithField("count", len(due)).Info("Unfollowing stale accounts")
			removed, err := engager.Unfollow(ctx, due, summary)
			if err != nil {
				log.WithError(err).Warn("Unfollow pass interrupted")
			}
			if len(removed) > 0 {
				if err := stateMgr.RemoveFollowed(state, removed); err != nil {
					log.WithError(err).Warn("Failed to prune unfollow backlog")
				}
			}
		}
	}

	if stateMgr != nil {
		if state == nil {
			state, err = stateMgr.Create(cfg.Instagram.Username, tracker.State())
			if err != nil {
				log.WithError(err).Error("Failed to create session state")
			}
		}
		if state != nil {
			for _, f := range engager.FollowedUsers() {
				if err := stateMgr.RecordFollow(state, f.UserID, f.Username); err != nil {
					log.WithError(err).Warn("Failed to record follow in backlog")
					break
				}
			}
			state.Quota = tracker.State()
			state.LastSessionID = summary.SessionID
			if err := stateMgr.Save(state); err != nil {
				log.WithError(err).Error("Failed to save session state")
			}
		}
	}

	logger.LogSessionSummary(log, summary.Likes, summary.Follows, summary.Comments, summary.Hashtags)
	printSummary(summary)

	if runErr != nil && ctx.Err() != nil {
		ui.PrintWarning("Session interrupted", runErr.Error())
		os.Exit(130)
	}
	ui.PrintSuccess("[SESSION COMPLETED]")
}

// resolveCredentials fills cfg.Instagram from the credential manager when
// the config and environment did not provide them.
func resolveCredentials(cfg *config.Config, log logger.Logger) {
	credManager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	var account *auth.Account
	if accountName != "" {
		account, err = credManager.Retrieve(accountName)
		if err != nil {
			ui.PrintError("Account not found", accountName)
			ui.PrintInfo("Available accounts", "Use 'igengage auth list' to see stored accounts")
			os.Exit(1)
		}
	} else if cfg.Instagram.SessionID != "" && cfg.Instagram.CSRFToken != "" {
		log.Info("Using credentials from configuration")
		return
	} else {
		account, err = credManager.RetrieveDefault()
		if err != nil {
			log.Error("No credentials found")
			ui.PrintError("No Instagram credentials found", "")
			fmt.Println("\nTo store credentials securely, run:")
			fmt.Println("  igengage auth login")
			fmt.Println("\nYou can also set environment variables:")
			fmt.Println("  export IGENGAGE_SESSION_ID=your_session_id")
			fmt.Println("  export IGENGAGE_CSRF_TOKEN=your_csrf_token")
			os.Exit(1)
		}
	}

	cfg.Instagram.SessionID = account.SessionID
	cfg.Instagram.CSRFToken = account.CSRFToken
	if cfg.Instagram.Username == "" {
		cfg.Instagram.Username = account.Username
	}
	if account.UserAgent != "" {
		cfg.Instagram.UserAgent = account.UserAgent
	}
	log.WithField("account", account.Username).Info("Using stored credentials")
	ui.PrintInfo("Using account", account.Username)
}

// buildSinks assembles the report sinks: CSV always, Postgres when a DSN is
// configured.
func buildSinks(cfg *config.Config, log logger.Logger) (report.Sink, func()) {
	var sinks report.MultiSink

	csvSink, err := report.NewCSVSink(cfg.Report.Directory, log)
	if err != nil {
		ui.PrintError("Failed to open report directory", err.Error())
		os.Exit(1)
	}
	sinks = append(sinks, csvSink)

	if cfg.Report.PostgresDSN != "" {
		sqlSink, err := report.NewSQLSink(cfg.Report.PostgresDSN, log)
		if err != nil {
			ui.PrintError("Failed to connect to Postgres", err.Error())
			os.Exit(1)
		}
		sinks = append(sinks, sqlSink)
	}

	return sinks, func() {
		if err := sinks.Close(); err != nil {
			log.WithError(err).Warn("Failed to close report sinks")
		}
	}
}

func printSummary(summary *report.SessionSummary) {
	fmt.Println()
	ui.PrintInfo("Session", summary.SessionID)
	ui.PrintInfo("Likes", fmt.Sprintf("%d", summary.Likes))
	ui.PrintInfo("Follows", fmt.Sprintf("%d", summary.Follows))
	ui.PrintInfo("Unfollows", fmt.Sprintf("%d", summary.Unfollows))
	ui.PrintInfo("Comments", fmt.Sprintf("%d", summary.Comments))
	ui.PrintInfo("Failures", fmt.Sprintf("%d", summary.Failures))
	ui.PrintInfo("Skipped by quota", fmt.Sprintf("%d", summary.Skipped))
	ui.PrintInfo("Duration", summary.Duration.Round(time.Second).String())
}

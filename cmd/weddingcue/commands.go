package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/weddingcue-core/internal/audit"
	"github.com/nerrad567/weddingcue-core/internal/auth"
	"github.com/nerrad567/weddingcue-core/internal/engine"
	"github.com/nerrad567/weddingcue-core/internal/infrastructure/redislock"
	"github.com/nerrad567/weddingcue-core/internal/rehearsal"
	"github.com/nerrad567/weddingcue-core/internal/sweep"
	"github.com/nerrad567/weddingcue-core/internal/timeline"
	"github.com/nerrad567/weddingcue-core/migrations"
)

// auditSource marks audit entries written by terminal commands.
const auditSource = "cli"

// Command flags.
var (
	flagMigrateDown bool

	flagSweepEvent string

	flagStartCue bool

	flagAdjustDuration int
	flagAdjustCascade  bool
	flagAdjustReason   string

	flagJumpLead time.Duration

	flagTimelineLang string
	flagTimelineJSON bool

	flagTokenRole    string
	flagTokenSubject string
	flagTokenEvent   string
	flagTokenTTL     time.Duration

	flagAuditEvent string
	flagAuditLimit int
)

func init() {
	migrateCmd.Flags().BoolVar(&flagMigrateDown, "down", false, "roll back the most recent migration")

	sweepCmd.Flags().StringVar(&flagSweepEvent, "event", "", "sweep one event instead of every event active today")

	startTimerCmd.Flags().BoolVar(&flagStartCue, "cue", false, "start a punctual or manual timer without moving the current timer")

	adjustCmd.Flags().IntVar(&flagAdjustDuration, "duration", 0, "new duration in minutes (0 makes the timer punctual)")
	adjustCmd.Flags().BoolVar(&flagAdjustCascade, "cascade", false, "shift later scheduled starts by the same delta")
	adjustCmd.Flags().StringVar(&flagAdjustReason, "reason", "", "why the timeline changed")
	_ = adjustCmd.MarkFlagRequired("duration")

	jumpCmd.Flags().DurationVar(&flagJumpLead, "lead", 0, "how soon the first cue falls due (default from config)")

	timelineCmd.Flags().StringVar(&flagTimelineLang, "lang", "en", "description language (en, fr, br)")
	timelineCmd.Flags().BoolVar(&flagTimelineJSON, "json", false, "print the timeline as JSON")

	tokenCmd.Flags().StringVar(&flagTokenRole, "role", string(auth.RoleViewOnly), "owner, coordinator, participant or view_only")
	tokenCmd.Flags().StringVar(&flagTokenSubject, "subject", "", "who the token is for")
	tokenCmd.Flags().StringVar(&flagTokenEvent, "event", "", "limit the token to one event")
	tokenCmd.Flags().DurationVar(&flagTokenTTL, "ttl", 0, "token lifetime (default from config)")
	_ = tokenCmd.MarkFlagRequired("subject")

	auditCmd.Flags().StringVar(&flagAuditEvent, "event", "", "only entries for this event")
	auditCmd.Flags().IntVar(&flagAuditLimit, "limit", 20, "number of entries")

	rootCmd.AddCommand(
		migrateCmd,
		sweepCmd,
		startCmd,
		startTimerCmd,
		completeCmd,
		adjustCmd,
		jumpCmd,
		resetCmd,
		rebaseCmd,
		timelineCmd,
		tokenCmd,
		auditCmd,
	)
}

// ─── Database ───────────────────────────────────────────────────────────────

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations and print the schema status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		m := a.db.Migrator(migrations.FS, migrations.Dir)
		out := cmd.OutOrStdout()
		if flagMigrateDown {
			version, err := m.Down(cmd.Context())
			if err != nil {
				return fmt.Errorf("rolling back: %w", err)
			}
			fmt.Fprintf(out, "%s rolled back %s\n", okStyle.Render("✓"), version)
		}

		applied, pending, err := m.Status(cmd.Context())
		if err != nil {
			return fmt.Errorf("reading migration status: %w", err)
		}
		for _, rec := range applied {
			fmt.Fprintf(out, "%s %s %s\n", okStyle.Render("applied"), rec.Version, rec.Name)
		}
		for _, mig := range pending {
			fmt.Fprintf(out, "%s %s %s\n", pendingStyle.Render("pending"), mig.Version, mig.Name)
		}
		return nil
	},
}

// ─── Operator Commands ──────────────────────────────────────────────────────

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Start punctual timers whose scheduled time has passed",
	Long: "Runs one clock sweep, the same pass the server runs on its interval.\n" +
		"Useful from an external scheduler when the server's sweep is disabled.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, eng, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		locker, err := a.sweepLocker()
		if err != nil {
			return err
		}
		sw := sweep.New(eng, locker, a.cfg.SweepInterval(), a.cfg.SweepLockTTL(), a.log.Component("sweep"))
		out := cmd.OutOrStdout()

		if flagSweepEvent != "" {
			if _, err := a.store.GetEvent(ctx, flagSweepEvent); err != nil {
				return err
			}
			timerID, locked, err := sw.SweepEvent(ctx, flagSweepEvent)
			if err != nil {
				return err
			}
			switch {
			case locked:
				fmt.Fprintf(out, "%s another instance is sweeping %s\n", warnStyle.Render("locked"), flagSweepEvent)
			case timerID != "":
				a.audit(ctx, audit.ActionSweep, "event", flagSweepEvent, flagSweepEvent, map[string]any{"timer_id": timerID})
				fmt.Fprintf(out, "%s started %s\n", okStyle.Render("✓"), timerID)
			default:
				fmt.Fprintln(out, "nothing due")
			}
			return nil
		}

		report, err := sw.SweepAll(ctx)
		if err != nil {
			return err
		}
		for _, s := range report.Started {
			a.audit(ctx, audit.ActionSweep, "event", s.EventID, s.EventID, map[string]any{"timer_id": s.TimerID})
			fmt.Fprintf(out, "%s %s started %s\n", okStyle.Render("✓"), s.EventID, s.TimerID)
		}
		for _, id := range report.Locked {
			fmt.Fprintf(out, "%s %s\n", warnStyle.Render("locked"), id)
		}
		for _, f := range report.Failures {
			fmt.Fprintf(out, "%s %s: %s\n", errStyle.Render("failed"), f.EventID, f.Message)
		}
		fmt.Fprintf(out, "%d active event(s), %d started\n", report.Events, len(report.Started))
		return report.Err()
	},
}

var startCmd = &cobra.Command{
	Use:   "start EVENT_ID",
	Short: "Start the wedding: run the first timer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, eng, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		t, err := eng.StartWedding(ctx, args[0])
		if err != nil {
			return err
		}
		a.audit(ctx, audit.ActionStartShow, "event", args[0], args[0], map[string]any{"timer_id": t.ID})
		fmt.Fprintf(cmd.OutOrStdout(), "%s started %s (%s)\n", okStyle.Render("✓"), t.Name, t.ID)
		return nil
	},
}

var startTimerCmd = &cobra.Command{
	Use:   "start-timer TIMER_ID",
	Short: "Start one pending timer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, eng, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		var t *timeline.Timer
		action := audit.ActionStart
		if flagStartCue {
			t, err = eng.StartPunctualOrManual(ctx, args[0])
			action = audit.ActionStartCue
		} else {
			t, err = eng.StartTimer(ctx, args[0])
		}
		if err != nil {
			return err
		}
		a.audit(ctx, action, "timer", t.ID, t.EventID, nil)
		fmt.Fprintf(cmd.OutOrStdout(), "%s started %s (%s)\n", okStyle.Render("✓"), t.Name, t.ID)
		return nil
	},
}

var completeCmd = &cobra.Command{
	Use:   "complete TIMER_ID",
	Short: "Complete a timer and advance the timeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, eng, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := eng.CompleteTimer(ctx, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if res.AlreadyCompleted {
			fmt.Fprintf(out, "%s was already completed\n", res.TimerID)
			return nil
		}

		t, err := a.store.GetTimer(ctx, res.TimerID)
		if err != nil {
			return err
		}
		a.audit(ctx, audit.ActionComplete, "timer", res.TimerID, t.EventID, map[string]any{
			"next_timer_id":   res.NextTimerID,
			"next_started":    res.NextStarted,
			"event_completed": res.EventCompleted,
		})

		fmt.Fprintf(out, "%s completed %s\n", okStyle.Render("✓"), res.TimerID)
		switch {
		case res.EventCompleted:
			fmt.Fprintln(out, "the timeline is finished")
		case res.NextTimerID == nil:
		case res.NextStarted:
			fmt.Fprintf(out, "%s started %s\n", okStyle.Render("✓"), *res.NextTimerID)
		default:
			fmt.Fprintf(out, "next up: %s (waiting for its time or an operator)\n", *res.NextTimerID)
		}
		if res.ChainError != nil {
			fmt.Fprintf(out, "%s %v\n", warnStyle.Render("next timer not started:"), res.ChainError)
		}
		return nil
	},
}

var adjustCmd = &cobra.Command{
	Use:   "adjust TIMER_ID",
	Short: "Change a timer's duration, optionally shifting later timers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, eng, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		t, err := a.store.GetTimer(ctx, args[0])
		if err != nil {
			return err
		}

		params := engine.AdjustParams{
			TimerID:            t.ID,
			NewDurationMinutes: &flagAdjustDuration,
			Cascade:            flagAdjustCascade,
		}
		if flagAdjustReason != "" {
			params.Reason = &flagAdjustReason
		}
		report, err := eng.CascadeAdjust(ctx, params)
		if err != nil {
			return err
		}

		a.audit(ctx, audit.ActionAdjust, "timer", t.ID, t.EventID, map[string]any{
			"duration_minutes": flagAdjustDuration,
			"delta_minutes":    report.DeltaMinutes,
			"cascade":          flagAdjustCascade,
			"shifted":          len(report.Shifted),
			"failed":           len(report.FailedIDs()),
		})

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %s adjusted by %+d min, %d later timer(s) shifted\n",
			okStyle.Render("✓"), t.ID, report.DeltaMinutes, len(report.Shifted))
		return report.Err()
	},
}

var jumpCmd = &cobra.Command{
	Use:   "jump TIMER_ID",
	Short: "Rehearsal: fast-forward the timeline to a timer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, eng, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		rc := rehearsal.NewController(eng, a.log.Component("rehearsal"))
		rc.SetDefaultLead(a.cfg.RehearsalLead())

		res, err := rc.JumpToTimer(ctx, args[0], flagJumpLead)
		if err != nil {
			return err
		}
		a.audit(ctx, audit.ActionJump, "timer", res.TimerID, res.EventID, map[string]any{
			"started_at":       res.StartedAt,
			"completed_before": res.CompletedBefore,
		})
		fmt.Fprintf(cmd.OutOrStdout(), "%s jumped to %s, %d earlier timer(s) completed\n",
			okStyle.Render("✓"), res.TimerID, res.CompletedBefore)
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset EVENT_ID",
	Short: "Rehearsal: put every timer back to pending",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, eng, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := rehearsal.NewController(eng, a.log.Component("rehearsal")).Reset(ctx, args[0]); err != nil {
			return err
		}
		a.audit(ctx, audit.ActionReset, "event", args[0], args[0], nil)
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s reset\n", okStyle.Render("✓"), args[0])
		return nil
	},
}

var rebaseCmd = &cobra.Command{
	Use:   "rebase EVENT_ID",
	Short: "Demo: move a demo event's schedule onto today",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, eng, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		moved, err := rehearsal.NewController(eng, a.log.Component("rehearsal")).RebaseToToday(ctx, args[0])
		if err != nil {
			return err
		}
		a.audit(ctx, audit.ActionRebase, "event", args[0], args[0], map[string]any{"timers_moved": moved})
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s moved to today, %d timer(s) rescheduled\n", okStyle.Render("✓"), args[0], moved)
		return nil
	},
}

// ─── Read Commands ──────────────────────────────────────────────────────────

var timelineCmd = &cobra.Command{
	Use:   "timeline EVENT_ID",
	Short: "Print an event's timers and their state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		view, err := a.newEngine(nil).Timeline(ctx, args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if flagTimelineJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		}
		renderTimeline(out, view, flagTimelineLang, a.location())
		return nil
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "List recent operator activity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := audit.NewSQLiteRepository(a.db.DB).List(ctx, audit.Filter{
			EventID: flagAuditEvent,
			Limit:   flagAuditLimit,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		loc := a.location()
		for _, l := range res.Logs {
			fmt.Fprintf(out, "%s  %-13s %-6s %-24s %s@%s\n",
				dimStyle.Render(l.CreatedAt.In(loc).Format("2006-01-02 15:04:05")),
				l.Action, l.EntityType, l.EntityID, l.Actor, l.Source)
		}
		fmt.Fprintf(out, "%d of %d entries\n", len(res.Logs), res.Total)
		return nil
	},
}

// ─── Tokens ─────────────────────────────────────────────────────────────────

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an access token for an operator, player or viewer",
	Long: "Tokens are signed with security.jwt.secret and verified offline by the server.\n" +
		"Hand owner tokens to the planner, coordinator tokens to whoever runs the day,\n" +
		"participant tokens to players and view_only tokens to guest displays.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		role, err := auth.ParseRole(flagTokenRole)
		if err != nil {
			return fmt.Errorf("%w: %q", err, flagTokenRole)
		}
		if flagTokenEvent != "" {
			if _, err := a.store.GetEvent(cmd.Context(), flagTokenEvent); err != nil {
				return err
			}
		}

		ttl := flagTokenTTL
		if ttl <= 0 {
			ttl = time.Duration(a.cfg.Security.JWT.AccessTokenTTL) * time.Minute
		}
		token, err := auth.GenerateAccessToken(auth.TokenParams{
			Subject: flagTokenSubject,
			Role:    role,
			EventID: flagTokenEvent,
			TTL:     ttl,
		}, a.cfg.Security.JWT.Secret)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// openEngine is openApp plus an engine publishing to the external transports.
func openEngine(ctx context.Context) (*app, *engine.Engine, error) {
	a, err := openApp(ctx, false)
	if err != nil {
		return nil, nil, err
	}
	eng, err := a.commandEngine()
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, eng, nil
}

// sweepLocker returns the Redis lease when configured, so a terminal sweep
// never races a running server's sweep.
func (a *app) sweepLocker() (redislock.Locker, error) {
	if !a.cfg.Redis.Enabled {
		return redislock.NewLocalLocker(), nil
	}
	l, err := redislock.Connect(a.cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}
	a.onClose(func() {
		if closeErr := l.Close(); closeErr != nil {
			a.log.Error("error closing Redis", "error", closeErr)
		}
	})
	return l, nil
}

// audit records a terminal action. Failures are logged, never returned:
// the timeline change already happened.
func (a *app) audit(ctx context.Context, action, entityType, entityID, eventID string, details map[string]any) {
	entry := &audit.AuditLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		EventID:    eventID,
		Actor:      cliActor(),
		Role:       string(auth.RoleOwner),
		Source:     auditSource,
		Details:    details,
	}
	if err := audit.NewSQLiteRepository(a.db.DB).Create(ctx, entry); err != nil {
		a.log.Error("audit log write failed", "action", action, "error", err)
	}
}

// location is the site timezone used for display, UTC when unset or unknown.
func (a *app) location() *time.Location {
	loc, err := time.LoadLocation(a.cfg.Site.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// cliActor names whoever ran the command.
func cliActor() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "operator"
}

// writeLine is fmt.Fprintln for renderers that ignore write errors.
func writeLine(w io.Writer, s string) {
	fmt.Fprintln(w, s)
}

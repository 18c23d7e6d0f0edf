package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/weddingcue-core/internal/auth"
	"github.com/nerrad567/weddingcue-core/internal/engine"
	"github.com/nerrad567/weddingcue-core/internal/timeline"
)

const testSecret = "test-secret-that-is-at-least-32-characters"

// setupEnv points every command at a fresh database file and a valid secret.
func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv(configEnv, "")
	t.Setenv("WEDDINGCUE_JWT_SECRET", testSecret)
	t.Setenv("WEDDINGCUE_DATABASE_PATH", filepath.Join(t.TempDir(), "weddingcue.db"))
	t.Setenv("WEDDINGCUE_LOG_LEVEL", "error")
}

// resetFlags restores package-level flag values between command runs;
// cobra keeps them on the global command tree.
func resetFlags() {
	flagConfig = ""
	flagEnvFiles = nil
	flagEphemeral = false
	flagMigrateDown = false
	flagSweepEvent = ""
	flagStartCue = false
	flagAdjustDuration = 0
	flagAdjustCascade = false
	flagAdjustReason = ""
	flagJumpLead = 0
	flagTimelineLang = "en"
	flagTimelineJSON = false
	flagTokenRole = string(auth.RoleViewOnly)
	flagTokenSubject = ""
	flagTokenEvent = ""
	flagTokenTTL = 0
	flagAuditEvent = ""
	flagAuditLimit = 20
	flagSeedDemo = false
	flagSeedFile = ""
}

// execute runs the CLI with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

// mustExecute fails the test when the command fails.
func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, args...)
	if err != nil {
		t.Fatalf("%v: %v\noutput:\n%s", args, err, out)
	}
	return out
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	resetFlags()
	t.Setenv(configEnv, "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingSecret verifies the server refuses to start unsigned.
func TestRun_MissingSecret(t *testing.T) {
	resetFlags()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
site:
  id: test-site
database:
  path: "` + filepath.Join(tmpDir, "test.db") + `"
logging:
  level: error
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv(configEnv, configPath)
	t.Setenv("WEDDINGCUE_JWT_SECRET", "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail without a JWT secret")
	}
	if !strings.Contains(err.Error(), "jwt.secret") {
		t.Errorf("error = %v, want it to name the jwt secret", err)
	}
}

func TestGetConfigPath(t *testing.T) {
	resetFlags()
	t.Setenv(configEnv, "")
	if got := getConfigPath(); got != "" {
		t.Errorf("getConfigPath() = %q, want empty when nothing is configured", got)
	}

	t.Setenv(configEnv, "/etc/weddingcue.yaml")
	if got := getConfigPath(); got != "/etc/weddingcue.yaml" {
		t.Errorf("getConfigPath() = %q, want env path", got)
	}

	flagConfig = "/tmp/flag.yaml"
	defer resetFlags()
	if got := getConfigPath(); got != "/tmp/flag.yaml" {
		t.Errorf("getConfigPath() = %q, want flag path", got)
	}
}

func TestMigrate_ReportsApplied(t *testing.T) {
	setupEnv(t)

	out := mustExecute(t, "migrate")
	if !strings.Contains(out, "applied 20260301_090000 timeline") {
		t.Errorf("output missing timeline migration:\n%s", out)
	}
	if strings.Contains(out, "pending") {
		t.Errorf("no migration should be pending:\n%s", out)
	}
}

func TestSeedDemo_AndTimeline(t *testing.T) {
	setupEnv(t)

	out := mustExecute(t, "seed", "--demo")
	if !strings.Contains(out, demoEventID+": 16 timer(s)") {
		t.Errorf("seed output = %q", out)
	}

	out = mustExecute(t, "timeline", demoEventID, "--lang", "fr")
	for _, want := range []string{"Mariage Tony et Neka", "[demo]", "Atterrissage des mariés", "16:00", "manual", "punctual"} {
		if !strings.Contains(out, want) {
			t.Errorf("timeline output missing %q:\n%s", want, out)
		}
	}

	if _, err := execute(t, "seed", "--demo"); !errors.Is(err, timeline.ErrAlreadyExists) {
		t.Errorf("second seed error = %v, want ErrAlreadyExists", err)
	}
}

func TestSeed_RequiresExactlyOneSource(t *testing.T) {
	setupEnv(t)

	if _, err := execute(t, "seed"); err == nil {
		t.Error("seed with no source should fail")
	}
	if _, err := execute(t, "seed", "--demo", "--file", "x.yaml"); err == nil {
		t.Error("seed with two sources should fail")
	}
}

func TestSeedFile_TimelineJSON(t *testing.T) {
	setupEnv(t)

	path := filepath.Join(t.TempDir(), "timeline.yaml")
	content := `
event:
  id: smith-jones
  name: Smith & Jones
  date: "2026-06-20"
  timezone: Europe/Paris
timers:
  - name: Ceremony
    start: "15:00"
    duration: 30
    descriptions:
      en: Ceremony
      fr: Cérémonie
    actions:
      - type: SOUND
        asset: /assets/sounds/processional.mp3
  - name: First dance
    start: "16:00"
  - name: Speeches
    duration: 20
    actions:
      - type: IMAGE
        trigger: BEFORE_END
        offset: 5
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing timeline file: %v", err)
	}

	out := mustExecute(t, "seed", "--file", path)
	if !strings.Contains(out, "smith-jones: 3 timer(s), 2 cue(s)") {
		t.Errorf("seed output = %q", out)
	}

	out = mustExecute(t, "timeline", "smith-jones", "--json")
	var view engine.TimelineView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decoding timeline JSON: %v\n%s", err, out)
	}
	if len(view.Timers) != 3 {
		t.Fatalf("timers = %d, want 3", len(view.Timers))
	}

	ceremony := view.Timers[0]
	if ceremony.ID != "smith-jones-timer-1" {
		t.Errorf("derived timer ID = %q", ceremony.ID)
	}
	// 15:00 in Paris in June is 13:00 UTC.
	wantStart := time.Date(2026, 6, 20, 13, 0, 0, 0, time.UTC)
	if ceremony.ScheduledStartTime == nil || !ceremony.ScheduledStartTime.Equal(wantStart) {
		t.Errorf("scheduled start = %v, want %v", ceremony.ScheduledStartTime, wantStart)
	}
	if ceremony.Description("fr") != "Cérémonie" {
		t.Errorf("fr description = %q", ceremony.Description("fr"))
	}
	if !view.Timers[1].IsPunctual() {
		t.Error("timer without duration should be punctual")
	}
	if view.Timers[2].ScheduledStartTime != nil {
		t.Error("timer without start should have no scheduled start")
	}
	speechCue := view.Timers[2].Actions[0]
	if speechCue.Trigger != timeline.TriggerBeforeEnd || speechCue.TriggerOffsetMinutes != 5 {
		t.Errorf("speech cue = %+v", speechCue)
	}
}

func TestParseSeedFile_RejectsUnknownKeys(t *testing.T) {
	_, err := parseSeedFile([]byte(`
event:
  id: e
  name: E
  date: "2026-06-20"
timers:
  - name: T
    durration: 10
`))
	if err == nil {
		t.Fatal("parseSeedFile should reject a misspelt key")
	}
}

func TestOperatorFlow(t *testing.T) {
	setupEnv(t)
	mustExecute(t, "seed", "--demo")

	out := mustExecute(t, "start", demoEventID)
	if !strings.Contains(out, "started Video + Sound - Landing of the bride and groom (timer-1)") {
		t.Errorf("start output = %q", out)
	}

	if _, err := execute(t, "start", demoEventID); !errors.Is(err, timeline.ErrAlreadyRunning) {
		t.Errorf("second start error = %v, want ErrAlreadyRunning", err)
	}

	out = mustExecute(t, "complete", "timer-1")
	if !strings.Contains(out, "completed timer-1") {
		t.Errorf("complete output = %q", out)
	}
	// timer-2 is punctual: it waits for its time instead of chaining.
	if !strings.Contains(out, "next up: timer-2") {
		t.Errorf("complete output should name the waiting successor: %q", out)
	}

	out = mustExecute(t, "complete", "timer-1")
	if !strings.Contains(out, "already completed") {
		t.Errorf("repeat complete output = %q", out)
	}

	out = mustExecute(t, "start-timer", "timer-6", "--cue")
	if !strings.Contains(out, "started Surprise (timer-6)") {
		t.Errorf("start-timer output = %q", out)
	}

	out = mustExecute(t, "adjust", "timer-3", "--duration", "15", "--cascade", "--reason", "photographer late")
	if !strings.Contains(out, "adjusted by +5 min") {
		t.Errorf("adjust output = %q", out)
	}

	out = mustExecute(t, "audit", "--event", demoEventID)
	for _, want := range []string{"start_wedding", "complete", "start_cue", "adjust", "@cli"} {
		if !strings.Contains(out, want) {
			t.Errorf("audit output missing %q:\n%s", want, out)
		}
	}
}

func TestRehearsalCommands(t *testing.T) {
	setupEnv(t)
	mustExecute(t, "seed", "--demo")

	out := mustExecute(t, "jump", "timer-4", "--lead", "30s")
	if !strings.Contains(out, "jumped to timer-4") {
		t.Errorf("jump output = %q", out)
	}

	out = mustExecute(t, "timeline", demoEventID)
	if !strings.Contains(out, "RUNNING") {
		t.Errorf("timeline after jump should show a running timer:\n%s", out)
	}

	mustExecute(t, "reset", demoEventID)
	out = mustExecute(t, "timeline", demoEventID)
	if strings.Contains(out, "RUNNING") || strings.Contains(out, "COMPLETED") {
		t.Errorf("timeline after reset should be all pending:\n%s", out)
	}

	out = mustExecute(t, "rebase", demoEventID)
	if !strings.Contains(out, "moved to today") {
		t.Errorf("rebase output = %q", out)
	}

	out = mustExecute(t, "sweep", "--event", demoEventID)
	if out == "" {
		t.Error("sweep should report its outcome")
	}
}

func TestRebase_RefusesLiveEvent(t *testing.T) {
	setupEnv(t)

	path := filepath.Join(t.TempDir(), "live.yaml")
	content := "event:\n  id: live\n  name: Live\n  date: \"2026-06-20\"\ntimers:\n  - name: Ceremony\n    duration: 30\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing timeline file: %v", err)
	}
	mustExecute(t, "seed", "--file", path)

	if _, err := execute(t, "rebase", "live"); !errors.Is(err, timeline.ErrNotDemo) {
		t.Errorf("rebase error = %v, want ErrNotDemo", err)
	}
}

func TestToken(t *testing.T) {
	setupEnv(t)
	mustExecute(t, "seed", "--demo")

	out := mustExecute(t, "token", "--role", "coordinator", "--subject", "dj-booth", "--event", demoEventID, "--ttl", "2h")
	claims, err := auth.ParseToken(strings.TrimSpace(out), testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Role != auth.RoleCoordinator {
		t.Errorf("role = %q, want COORDINATOR", claims.Role)
	}
	if !claims.CanAccessEvent(demoEventID) || claims.CanAccessEvent("other") {
		t.Error("token should be scoped to the demo event")
	}

	if _, err := execute(t, "token", "--role", "superuser", "--subject", "x"); !errors.Is(err, auth.ErrInvalidRole) {
		t.Errorf("bad role error = %v, want ErrInvalidRole", err)
	}
	if _, err := execute(t, "token", "--subject", "x", "--event", "missing"); !errors.Is(err, timeline.ErrEventNotFound) {
		t.Errorf("unknown event error = %v, want ErrEventNotFound", err)
	}
}

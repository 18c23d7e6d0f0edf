package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nerrad567/weddingcue-core/internal/timeline"
)

var (
	flagSeedDemo bool
	flagSeedFile string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load an event timeline from YAML, or the built-in demo wedding",
	Example: "  weddingcue seed --demo\n" +
		"  weddingcue seed --file configs/timeline.example.yaml",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if flagSeedDemo == (flagSeedFile != "") {
			return errors.New("use exactly one of --demo or --file")
		}

		ctx := cmd.Context()
		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		var sf *seedFile
		if flagSeedDemo {
			sf = demoWedding()
		} else {
			data, err := os.ReadFile(flagSeedFile)
			if err != nil {
				return fmt.Errorf("reading timeline file: %w", err)
			}
			if sf, err = parseSeedFile(data); err != nil {
				return err
			}
		}

		timers, actions, err := loadSeed(ctx, a.store, sf, a.location())
		if err != nil {
			return err
		}
		a.log.Info("event seeded", "event_id", sf.Event.ID, "timers", timers, "actions", actions)
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d timer(s), %d cue(s)\n",
			okStyle.Render("✓"), sf.Event.ID, timers, actions)
		if sf.Event.Demo {
			fmt.Fprintf(cmd.OutOrStdout(), "run `weddingcue rebase %s` to move it onto today\n", sf.Event.ID)
		}
		return nil
	},
}

func init() {
	seedCmd.Flags().BoolVar(&flagSeedDemo, "demo", false, "load the built-in demo wedding")
	seedCmd.Flags().StringVar(&flagSeedFile, "file", "", "timeline YAML file to load")
	rootCmd.AddCommand(seedCmd)
}

// ─── Timeline File ──────────────────────────────────────────────────────────

// seedFile is the YAML layout of an importable timeline.
type seedFile struct {
	Event  seedEvent   `yaml:"event"`
	Timers []seedTimer `yaml:"timers"`
}

type seedEvent struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Location    string `yaml:"location"`
	Date        string `yaml:"date"` // YYYY-MM-DD
	Demo        bool   `yaml:"demo"`

	// Timezone of the timers' start times. Empty uses site.timezone.
	Timezone string `yaml:"timezone"`
}

type seedTimer struct {
	ID           string            `yaml:"id"`
	Name         string            `yaml:"name"`
	Start        string            `yaml:"start"`    // HH:MM on the event date, empty for none
	Duration     int               `yaml:"duration"` // minutes, 0 for punctual or manual
	Manual       bool              `yaml:"manual"`
	AutoChain    *bool             `yaml:"auto_chain"`
	Descriptions map[string]string `yaml:"descriptions"`
	Actions      []seedAction      `yaml:"actions"`
}

type seedAction struct {
	ID             string `yaml:"id"`
	Type           string `yaml:"type"`
	Trigger        string `yaml:"trigger"` // default AFTER_START
	Offset         int    `yaml:"offset"`  // minutes
	DisplaySeconds int    `yaml:"display_seconds"`
	Asset          string `yaml:"asset"`
}

// parseSeedFile decodes a timeline file, rejecting unknown keys so a typo
// does not silently drop a timer setting.
func parseSeedFile(data []byte) (*seedFile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var sf seedFile
	if err := dec.Decode(&sf); err != nil {
		return nil, fmt.Errorf("parsing timeline file: %w", err)
	}
	if len(sf.Timers) == 0 {
		return nil, fmt.Errorf("timeline file has no timers")
	}
	return &sf, nil
}

// loadSeed writes the event, its timers and their actions.
//
// Timer order follows the file. IDs left empty are derived from the event
// ID ("<event>-timer-3") and the timer ID ("<timer>-cue-1").
//
// Returns:
//   - int: Timers created
//   - int: Actions created
//   - error: Validation or store failure; timeline.ErrAlreadyExists if the
//     event was seeded before
func loadSeed(ctx context.Context, store timeline.Store, sf *seedFile, loc *time.Location) (int, int, error) {
	if sf.Event.Timezone != "" {
		tz, err := time.LoadLocation(sf.Event.Timezone)
		if err != nil {
			return 0, 0, fmt.Errorf("event timezone: %w", err)
		}
		loc = tz
	}

	day, err := time.ParseInLocation(time.DateOnly, sf.Event.Date, loc)
	if err != nil {
		return 0, 0, fmt.Errorf("event date %q: %w", sf.Event.Date, err)
	}

	evt := &timeline.Event{
		ID:        sf.Event.ID,
		Name:      sf.Event.Name,
		EventDate: day.UTC(),
		IsDemo:    sf.Event.Demo,
	}
	if sf.Event.Description != "" {
		evt.Description = &sf.Event.Description
	}
	if sf.Event.Location != "" {
		evt.Location = &sf.Event.Location
	}
	if err := store.CreateEvent(ctx, evt); err != nil {
		return 0, 0, fmt.Errorf("creating event %s: %w", evt.ID, err)
	}

	var timers, actions int
	for i, st := range sf.Timers {
		t := &timeline.Timer{
			ID:           st.ID,
			EventID:      evt.ID,
			OrderIndex:   i,
			Name:         st.Name,
			Descriptions: st.Descriptions,
			IsManual:     st.Manual,
			AutoChain:    st.AutoChain,
		}
		if t.ID == "" {
			t.ID = fmt.Sprintf("%s-timer-%d", evt.ID, i+1)
		}
		if st.Duration > 0 {
			t.DurationMinutes = timeline.IntPtr(st.Duration)
		}
		if st.Start != "" {
			clock, err := time.Parse("15:04", st.Start)
			if err != nil {
				return timers, actions, fmt.Errorf("timer %s start %q: %w", t.ID, st.Start, err)
			}
			start := time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
			t.ScheduledStartTime = timeline.TimePtr(start.UTC())
		}
		if err := store.CreateTimer(ctx, t); err != nil {
			return timers, actions, fmt.Errorf("creating timer %s: %w", t.ID, err)
		}
		timers++

		for j, sa := range st.Actions {
			act := &timeline.Action{
				ID:                   sa.ID,
				TimerID:              t.ID,
				OrderIndex:           j,
				Type:                 timeline.ActionType(sa.Type),
				Trigger:              timeline.Trigger(sa.Trigger),
				TriggerOffsetMinutes: sa.Offset,
				DisplayDurationSec:   sa.DisplaySeconds,
			}
			if act.ID == "" {
				act.ID = fmt.Sprintf("%s-cue-%d", t.ID, j+1)
			}
			if act.Trigger == "" {
				act.Trigger = timeline.TriggerAfterStart
			}
			if sa.Asset != "" {
				act.AssetURL = &sa.Asset
			}
			if err := store.CreateAction(ctx, act); err != nil {
				return timers, actions, fmt.Errorf("creating action %s: %w", act.ID, err)
			}
			actions++
		}
	}
	return timers, actions, nil
}

// ─── Demo Wedding ───────────────────────────────────────────────────────────

// demoEventID is the ID of the built-in demo wedding.
const demoEventID = "wedding-event-1"

// demoWedding is a full reception timeline used for rehearsals and demos:
// duration timers, clock-triggered punctual cues and manual cues.
func demoWedding() *seedFile {
	desc := func(fr, en, br string) map[string]string {
		return map[string]string{"fr": fr, "en": en, "br": br}
	}
	sound := func(asset string, display int) seedAction {
		return seedAction{Type: string(timeline.ActionSound), Asset: asset, DisplaySeconds: display}
	}
	beforeEnd := func(a seedAction, offset int) seedAction {
		a.Trigger = string(timeline.TriggerBeforeEnd)
		a.Offset = offset
		return a
	}
	image := func(asset string, display int) seedAction {
		return seedAction{Type: string(timeline.ActionImage), Asset: asset, DisplaySeconds: display}
	}
	video := func(asset string, display int) seedAction {
		return seedAction{Type: string(timeline.ActionVideo), Asset: asset, DisplaySeconds: display}
	}

	landing := desc("Atterrissage des mariés", "Landing of the bride and groom", "Desembarque dos noivos")

	return &seedFile{
		Event: seedEvent{
			ID:          demoEventID,
			Name:        "Mariage Tony et Neka",
			Description: "Demo reception timeline",
			Location:    "Recife",
			Date:        "2025-10-25",
			Demo:        true,
			Timezone:    "UTC",
		},
		Timers: []seedTimer{
			{ID: "timer-1", Name: "Video + Sound - Landing of the bride and groom", Start: "16:00", Duration: 30,
				Descriptions: landing,
				Actions: []seedAction{
					video("/assets/videos/1-atterissage.mp4", 0),
					sound("/assets/sounds/1-entree-des-maries.mp3", 0),
				}},
			{ID: "timer-2", Name: "Sound - Landing of the bride and groom", Start: "16:20",
				Descriptions: landing,
				Actions:      []seedAction{sound("/assets/sounds/1-atterissage.mp3", 600)}},
			{ID: "timer-3", Name: "Sound - Photos", Start: "16:40", Duration: 10,
				Descriptions: desc("Photos", "Photos", "Fotos"),
				Actions:      []seedAction{sound("/assets/sounds/2-photo-de-groupe.mp3", 120)}},
			{ID: "timer-4", Name: "Sound - Speech of best men and maids of honour", Start: "17:05", Duration: 40,
				Descriptions: desc("Discours des témoins", "Speech of best men and maids of honour", "Discurso das testemunhas"),
				Actions:      []seedAction{beforeEnd(sound("/assets/sounds/3-discours-temoins.mp3", 600), 10)}},
			{ID: "timer-5", Name: "Activity - Phone", Start: "17:30",
				Actions: []seedAction{
					sound("/assets/sounds/3-telephone.mp3", 0),
					image("/assets/images/telephone.png", 60),
				}},
			{ID: "timer-6", Name: "Surprise", Manual: true,
				Actions: []seedAction{sound("/assets/sounds/4-surprise.mp3", 0)}},
			{ID: "timer-7", Name: "Sound - Table-by-table", Start: "18:15", Duration: 45,
				Descriptions: desc("Activité table par table", "Table-by-table activity", "Atividade mesa por mesa"),
				Actions:      []seedAction{beforeEnd(sound("/assets/sounds/6-table.mp3", 600), 10)}},
			{ID: "timer-8", Name: "Activity - Digital game", Start: "18:30",
				Actions: []seedAction{
					sound("/assets/sounds/5-cosmic-love.mp3", 0),
					image("/assets/images/cosmic-love.png", 0),
				}},
			{ID: "timer-9", Name: "Sound - Bouquet toss", Start: "19:00", Duration: 50,
				Descriptions: desc("Lancer de bouquet", "Bouquet toss", "Jogar o buquê"),
				Actions:      []seedAction{beforeEnd(sound("/assets/sounds/7-bouquet.mp3", 600), 10)}},
			{ID: "timer-10", Name: "Sound - Starting Bouquet toss", Manual: true,
				Actions: []seedAction{sound("/assets/sounds/countdown.mp3", 0)}},
			{ID: "timer-11", Name: "Sound - Ending Bouquet - Cachaca toss", Manual: true,
				Actions: []seedAction{sound("/assets/sounds/8-cachaca.mp3", 0)}},
			{ID: "timer-12", Name: "Sound - Starting Cachaca toss", Manual: true,
				Actions: []seedAction{sound("/assets/sounds/countdown.mp3", 0)}},
			{ID: "timer-13", Name: "Sound - French Shot", Start: "20:15", Duration: 35,
				Descriptions: desc("Trou normand", "French shot of Normandy", "Shot francês da Normandia"),
				Actions:      []seedAction{sound("/assets/sounds/10-shot.mp3", 120)}},
			{ID: "timer-14", Name: "Activity - Photomaton", Start: "20:30",
				Actions: []seedAction{
					sound("/assets/sounds/9-photomaton.mp3", 0),
					image("/assets/images/photomaton.png", 0),
				}},
			{ID: "timer-15", Name: "Carnival", Start: "20:52", Duration: 8,
				Descriptions: desc("Carnaval", "Carnival", "Carnaval"),
				Actions: []seedAction{
					sound("/assets/sounds/11-carnaval.mp3", 120),
					video("/assets/videos/carnaval.mp4", 300),
				}},
			{ID: "timer-16", Name: "Wedding cake", Start: "21:05", Duration: 55,
				Descriptions: desc("Gâteau de mariage", "Wedding cake", "Bolo do casamento"),
				Actions:      []seedAction{sound("/assets/sounds/12-dessert.mp3", 300)}},
		},
	}
}

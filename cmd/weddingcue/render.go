package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nerrad567/weddingcue-core/internal/engine"
	"github.com/nerrad567/weddingcue-core/internal/timeline"
)

// Terminal styles.
var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

// renderTimeline prints one line per timer, its description underneath.
//
//	▶ 3  16:40  10 min    RUNNING    Sound - Photos      cues 1/1
func renderTimeline(w io.Writer, view *engine.TimelineView, lang string, loc *time.Location) {
	evt := view.Event

	title := evt.Name
	if evt.IsDemo {
		title += " " + warnStyle.Render("[demo]")
	}
	writeLine(w, titleStyle.Render(title))

	meta := []string{evt.EventDate.In(loc).Format("Mon 2 Jan 2006")}
	if evt.Location != nil && *evt.Location != "" {
		meta = append(meta, *evt.Location)
	}
	if evt.CompletedAt != nil {
		meta = append(meta, "finished "+evt.CompletedAt.In(loc).Format("15:04"))
	}
	writeLine(w, dimStyle.Render(strings.Join(meta, " · ")))
	writeLine(w, "")

	for i := range view.Timers {
		t := &view.Timers[i]

		marker := " "
		if evt.CurrentTimerID != nil && *evt.CurrentTimerID == t.ID {
			marker = runningStyle.Render("▶")
		}

		sched := "--:--"
		if t.ScheduledStartTime != nil {
			sched = t.ScheduledStartTime.In(loc).Format("15:04")
		}

		executed := 0
		for _, a := range t.Actions {
			if a.IsExecuted() {
				executed++
			}
		}

		line := fmt.Sprintf("%s %2d  %s  %-9s %s %s",
			marker,
			t.OrderIndex+1,
			sched,
			timerKind(t),
			statusLabel(t.Status),
			t.Name,
		)
		if len(t.Actions) > 0 {
			line += dimStyle.Render(fmt.Sprintf("  cues %d/%d", executed, len(t.Actions)))
		}
		writeLine(w, line)

		if desc := descriptionFor(t, lang); desc != "" && desc != t.Name {
			writeLine(w, "        "+dimStyle.Render(desc))
		}
	}
}

// timerKind is "30 min", "punctual" or "manual".
func timerKind(t *timeline.Timer) string {
	switch {
	case t.IsDurationBearing():
		return fmt.Sprintf("%d min", *t.DurationMinutes)
	case t.IsManual:
		return "manual"
	default:
		return "punctual"
	}
}

// statusLabel pads before styling so ANSI codes do not break alignment.
func statusLabel(s timeline.Status) string {
	label := fmt.Sprintf("%-10s", s)
	switch s {
	case timeline.StatusRunning:
		return runningStyle.Render(label)
	case timeline.StatusCompleted:
		return dimStyle.Render(label)
	default:
		return pendingStyle.Render(label)
	}
}

// descriptionFor picks lang, then English.
func descriptionFor(t *timeline.Timer, lang string) string {
	if d := t.Description(lang); d != "" {
		return d
	}
	return t.Description("en")
}

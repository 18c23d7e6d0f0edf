package mqtt

import "testing"

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"Timeline", topics.Timeline("wedding-timers", "timer-started"), "weddingcue/timeline/wedding-timers/timer-started"},
		{"Command", topics.Command("evt-1", CommandComplete), "weddingcue/command/evt-1/complete"},
		{"SystemStatus", topics.SystemStatus(), "weddingcue/system/status"},
		{"AllTimeline", topics.AllTimeline("wedding-timers"), "weddingcue/timeline/wedding-timers/#"},
		{"AllCommands", topics.AllCommands(), "weddingcue/command/+/+"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		topic       string
		wantEventID string
		wantVerb    string
		wantOK      bool
	}{
		{"weddingcue/command/evt-1/start", "evt-1", "start", true},
		{"weddingcue/command/evt-1/start-cue", "evt-1", "start-cue", true},
		{"weddingcue/command/evt-1", "", "", false},
		{"weddingcue/command/evt-1/start/extra", "", "", false},
		{"weddingcue/command//start", "", "", false},
		{"weddingcue/timeline/evt-1/start", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			eventID, verb, ok := Topics{}.ParseCommand(tt.topic)
			if eventID != tt.wantEventID || verb != tt.wantVerb || ok != tt.wantOK {
				t.Errorf("ParseCommand(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.topic, eventID, verb, ok, tt.wantEventID, tt.wantVerb, tt.wantOK)
			}
		})
	}
}

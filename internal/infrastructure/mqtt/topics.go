package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the weddingcue MQTT hierarchy.
const (
	// TopicPrefix is the root of every weddingcue topic.
	TopicPrefix = "weddingcue"

	// TopicPrefixTimeline carries outbound timeline notifications.
	TopicPrefixTimeline = "weddingcue/timeline"

	// TopicPrefixCommand carries inbound cue commands from venue buttons.
	TopicPrefixCommand = "weddingcue/command"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "weddingcue/system"
)

// Command verbs accepted on command topics.
const (
	CommandStart    = "start"
	CommandComplete = "complete"
	CommandStartCue = "start-cue"
	CommandSweep    = "sweep"
)

// Topics provides builders for weddingcue MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.Timeline("wedding-timers", "timer-started")
//	// Returns: "weddingcue/timeline/wedding-timers/timer-started"
type Topics struct{}

// Timeline returns the topic a notification event is published on.
//
// Example: weddingcue/timeline/wedding-timers/timer-completed
func (Topics) Timeline(channel, event string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixTimeline, channel, event)
}

// Command returns the topic a cue command for an event arrives on.
//
// Example: weddingcue/command/evt-123/complete
func (Topics) Command(eventID, verb string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixCommand, eventID, verb)
}

// SystemStatus returns the retained online/offline status topic.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// AllTimeline subscribes to every notification on one channel.
func (Topics) AllTimeline(channel string) string {
	return fmt.Sprintf("%s/%s/#", TopicPrefixTimeline, channel)
}

// AllCommands subscribes to every command for every event.
func (Topics) AllCommands() string {
	return TopicPrefixCommand + "/+/+"
}

// ParseCommand splits a concrete command topic into event ID and verb.
//
// Returns ok=false when the topic is not under TopicPrefixCommand or does
// not have exactly two segments after it.
func (Topics) ParseCommand(topic string) (eventID, verb string, ok bool) {
	rest, found := strings.CutPrefix(topic, TopicPrefixCommand+"/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

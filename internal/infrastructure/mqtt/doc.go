// Package mqtt provides MQTT client connectivity for weddingcue.
//
// This package manages:
//   - Connection to the venue broker with auto-reconnect
//   - Publishing timeline notifications to lighting desks and stage displays
//   - Subscriptions for cue button commands, restored after reconnect
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// MQTT is an optional outbound sink and inbound trigger source. The engine
// never depends on it: notify.MQTTSink adapts Client.Publish, and the remote
// package turns command messages into engine calls.
//
//	Engine → notify.MQTTSink → Broker → venue hardware
//	cue button → Broker → remote.Listener → Engine
//
// # Topics
//
//	weddingcue/timeline/{channel}/{event}   notifications (not retained)
//	weddingcue/command/{eventId}/{verb}     cue commands
//	weddingcue/system/status                retained online/offline JSON
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS=true) when the broker is off-site
//   - Credentials are validated against the broker ACL
//   - Restrict publish rights on weddingcue/command/# to cue hardware
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        eventID, verb, _ := mqtt.Topics{}.ParseCommand(topic)
//	        return handle(eventID, verb, payload)
//	    })
package mqtt

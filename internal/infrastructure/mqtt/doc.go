// Package mqtt connects Lumen Core to the broker that serves as its
// outward-facing event bus.
//
// # Architecture
//
// Device state snapshots go out as retained messages after every refresh
// cycle and every optimistic command, so automation consumers mirror state
// without polling the HTTP API. Commands flow the other way on per-device
// command topics, and the system topics carry the online/offline status
// (with LWT), the reauth-required signal, and quota snapshots.
//
//	Lumen Core <-> MQTT Broker <-> Automation consumers
//
// The topic scheme is lumen/{category}/{id}[/suffix]; the Topics type
// builds every topic used in the codebase.
//
// # Reliability
//
// The client auto-reconnects with exponential backoff between the
// configured initial and max delays, replays tracked subscriptions on
// every reconnect, and arms a Last Will so consumers learn about crashes.
// Handlers run with panic recovery.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        // decode and dispatch
//	        return nil
//	    })
//
//	client.PublishRetained(mqtt.Topics{}.DeviceState(dev.ID), stateJSON)
//
// Production deployments should enable broker TLS and credentials; payloads
// are otherwise plaintext on the wire.
package mqtt

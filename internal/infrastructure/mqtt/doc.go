// Package mqtt provides MQTT client connectivity for Input Dock Core.
//
// This package manages:
//   - Connection to Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Input Dock publishes device lifecycle and focus transitions over MQTT so
// other services on the host (overlays, session managers, dashboards) can
// react without linking against the daemon. Hosts feed keyboard environment
// signals back on the per-surface environment topic, which the bridge
// forwards to the focus tracker.
//
//	Input Dock Core <-> MQTT Broker <-> Consumers
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all device lifecycle events
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceEvents(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
package mqtt

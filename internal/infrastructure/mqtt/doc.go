// Package mqtt provides MQTT client connectivity for HomeWatt Core.
//
// This package manages:
//   - Connection to the cloud broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Topic builders/parsers for the shared cloud namespace
//
// # Architecture
//
// The broker hosts the hierarchical cloud store that remote dashboards
// and companion apps share with the controller. Retained messages make
// every state topic behave like a key in a realtime database: the last
// value is stored broker-side and replayed to each new subscriber.
// That replay is the "initial load" the cloud adapter distinguishes
// from live changes via the retained flag.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.Cloud)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllControl(), 1,
//	    func(topic string, payload []byte, retained bool) error {
//	        room, dev, _ := mqtt.ParseControl(topic)
//	        log.Printf("%s/%s = %s (replay=%v)", room, dev, payload, retained)
//	        return nil
//	    })
package mqtt

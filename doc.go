// Package mqttc is a from-scratch MQTT v3.1.1 client library.
//
// The client speaks the full v3.1.1 protocol: all three QoS levels with
// their acknowledgement handshakes, keepalive probing, clean and persistent
// sessions, last-will messages, and topic wildcards. Connections are plain
// TCP or TLS, with a pluggable dialer for anything else.
//
// A minimal publisher:
//
//	client, err := mqttc.Dial("tcp://localhost:1883",
//	    mqttc.WithClientID("sensor-1"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Disconnect(context.Background())
//
//	token := client.Publish("sensors/temp", []byte("22.5"), mqttc.WithQoS(mqttc.AtLeastOnce))
//	if err := token.Wait(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//
// A minimal subscriber:
//
//	client.Subscribe("sensors/#", mqttc.AtLeastOnce,
//	    func(c *mqttc.Client, msg mqttc.Message) {
//	        fmt.Printf("%s: %s\n", msg.Topic, msg.Payload)
//	    })
//
// The client is safe for concurrent use. Publish, Subscribe and Unsubscribe
// return a Token that completes when the operation is acknowledged at its
// QoS level.
package mqttc

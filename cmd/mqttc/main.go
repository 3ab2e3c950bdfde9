// Command mqttc is an interactive MQTT publish/subscribe console.
//
// Usage:
//
//	mqttc sub [flags]    subscribe to a topic filter and stream messages
//	mqttc pub [flags]    publish a message and wait for the acknowledgment
//
// Connection settings come from flags, a YAML config file (--config,
// default mqttc.yaml), MQTTC_* environment variables, or interactive
// prompts for anything still missing.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

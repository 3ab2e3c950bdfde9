package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mmarban/mqttc"
	"github.com/mmarban/mqttc/internal/display"
)

var (
	flagMessage     string
	flagPayloadFile string
	flagRetain      bool
)

var pubCmd = &cobra.Command{
	Use:   "pub",
	Short: "Publish a message and wait for the acknowledgment",
	Long: `Publish a single message. The payload comes from --message or from a
JSON file (--payload). The command waits for the acknowledgment matching the
QoS level before disconnecting.

Example:

  mqttc pub -t sensors/temp -m '22.5' -q 1
  mqttc pub -t devices/state --payload payload.json -q 2 --retain`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(),
			os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("retain") {
			cfg.Retain = flagRetain
		}

		rend := display.New(os.Stdout)

		if err := promptConnection(cfg); err != nil {
			return err
		}
		if cfg.Topic == "" {
			cfg.Topic = promptString("topic", "")
			if cfg.Topic == "" {
				return fmt.Errorf("topic is required")
			}
		}
		if cfg.Broker.ClientID == "" && !cmd.Flags().Changed("client-id") {
			cfg.Broker.ClientID = promptClientID("-pub")
		}

		payload, err := loadPayload(cmd)
		if err != nil {
			return err
		}

		client, err := mqttc.DialContext(ctx, cfg.ServerURL(), clientOptions(cfg, rend)...)
		if err != nil {
			return err
		}
		defer disconnect(client)

		token := client.Publish(cfg.Topic, payload,
			mqttc.WithQoS(mqttc.QoS(cfg.QoS)),
			mqttc.WithRetain(cfg.Retain))

		if err := token.Wait(ctx); err != nil {
			var de *mqttc.DeliveryError
			if errors.As(err, &de) {
				rend.Error("delivery not confirmed after %d attempts", de.Attempts)
				return err
			}
			return err
		}

		rend.Status("published %d bytes to %s (qos %d, retain %v)",
			len(payload), cfg.Topic, cfg.QoS, cfg.Retain)
		return nil
	},
}

func init() {
	pubCmd.Flags().StringVarP(&flagMessage, "message", "m", "", "payload literal")
	pubCmd.Flags().StringVar(&flagPayloadFile, "payload", "", "path to JSON payload file")
	pubCmd.Flags().BoolVarP(&flagRetain, "retain", "r", false, "set the retain flag")
}

// loadPayload resolves the payload from --message or --payload. A payload
// file must contain valid JSON; a literal is sent as-is.
func loadPayload(cmd *cobra.Command) ([]byte, error) {
	if cmd.Flags().Changed("message") {
		return []byte(flagMessage), nil
	}

	path := flagPayloadFile
	if path == "" {
		path = "payload.json"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading payload file: %w", err)
	}

	if !json.Valid(data) {
		return nil, fmt.Errorf("payload file %s is not valid JSON", path)
	}

	return data, nil
}

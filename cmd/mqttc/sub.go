package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmarban/mqttc"
	"github.com/mmarban/mqttc/internal/display"
)

var subCmd = &cobra.Command{
	Use:   "sub",
	Short: "Subscribe to a topic filter and stream messages",
	Long: `Subscribe to a topic filter and print every received message until
interrupted.

Topic filters support MQTT wildcards:
  +    single level  (sensors/+/temperature)
  #    multi level   (sensors/#)

Example:

  mqttc sub -t 'sensors/#' -q 1 --host broker.hivemq.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(),
			os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		rend := display.New(os.Stdout)

		if err := promptConnection(cfg); err != nil {
			return err
		}
		if cfg.Topic == "" {
			cfg.Topic = promptString("topic filter", "#")
		}
		if cfg.Broker.ClientID == "" && !cmd.Flags().Changed("client-id") {
			cfg.Broker.ClientID = promptClientID("-sub")
		}

		client, err := mqttc.DialContext(ctx, cfg.ServerURL(), clientOptions(cfg, rend)...)
		if err != nil {
			return err
		}

		token := client.Subscribe(cfg.Topic, mqttc.QoS(cfg.QoS),
			func(_ *mqttc.Client, msg mqttc.Message) {
				rend.Message(msg.Topic, msg.Payload, uint8(msg.QoS), msg.Retained)
			})
		if err := token.Wait(ctx); err != nil {
			disconnect(client)
			return err
		}

		rend.Status("subscribed to %s (granted qos %d), waiting for messages...",
			cfg.Topic, token.GrantedQoS())

		<-ctx.Done()
		stop()

		rend.Status("disconnecting")
		disconnect(client)
		return nil
	},
}

// disconnect sends DISCONNECT with a fresh short deadline, independent of the
// (likely already cancelled) signal context.
func disconnect(client *mqttc.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client.Disconnect(ctx)
}

package main

import (
	"crypto/tls"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmarban/mqttc"
	"github.com/mmarban/mqttc/internal/config"
	"github.com/mmarban/mqttc/internal/display"
)

var (
	flagConfig   string
	flagHost     string
	flagPort     int
	flagUsername string
	flagPassword string
	flagClientID string
	flagTLS      bool
	flagInsecure bool
	flagQoS      int
	flagTopic    string
	flagVerbose  bool
)

var rootCmd = &cobra.Command{
	Use:           "mqttc",
	Short:         "Interactive MQTT publish/subscribe console",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagConfig, "config", "c", "mqttc.yaml", "path to YAML config file")
	pf.StringVar(&flagHost, "host", "", "broker hostname")
	pf.IntVar(&flagPort, "port", 0, "broker port")
	pf.StringVarP(&flagUsername, "username", "u", "", "username")
	pf.StringVarP(&flagPassword, "password", "P", "", "password")
	pf.StringVarP(&flagClientID, "client-id", "i", "", "client identifier")
	pf.BoolVar(&flagTLS, "tls", false, "connect over TLS")
	pf.BoolVar(&flagInsecure, "insecure", false, "skip TLS certificate verification")
	pf.IntVarP(&flagQoS, "qos", "q", -1, "quality of service (0, 1, 2)")
	pf.StringVarP(&flagTopic, "topic", "t", "", "topic (pub) or topic filter (sub)")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(subCmd)
	rootCmd.AddCommand(pubCmd)
}

// loadConfig merges the YAML config, environment, and command-line flags.
// Flags win when explicitly set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("host") {
		cfg.Broker.Host = flagHost
		cfg.Provided.Host = true
	}
	if cmd.Flags().Changed("port") {
		cfg.Broker.Port = flagPort
	}
	if cmd.Flags().Changed("username") {
		cfg.Auth.Username = flagUsername
	}
	if cmd.Flags().Changed("password") {
		cfg.Auth.Password = flagPassword
	}
	if cmd.Flags().Changed("client-id") {
		cfg.Broker.ClientID = flagClientID
	}
	if cmd.Flags().Changed("tls") {
		cfg.Broker.TLS = flagTLS
	}
	if cmd.Flags().Changed("insecure") {
		cfg.Broker.Insecure = flagInsecure
	}
	if cmd.Flags().Changed("qos") {
		cfg.QoS = flagQoS
		cfg.Provided.QoS = true
	}
	if cmd.Flags().Changed("topic") {
		cfg.Topic = flagTopic
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// promptConnection interactively asks for the connection settings that no
// flag, config file, or environment variable supplied.
func promptConnection(cfg *config.Config) error {
	if !cfg.Provided.Host {
		cfg.Broker.Host = promptString("broker host", cfg.Broker.Host)
	}
	if !cfg.Provided.QoS {
		qos, err := promptQoS(cfg.QoS)
		if err != nil {
			return err
		}
		cfg.QoS = qos
	}
	return nil
}

// clientOptions builds the mqttc dial options shared by sub and pub.
func clientOptions(cfg *config.Config, rend *display.Renderer) []mqttc.Option {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(display.NewLogHandler(os.Stderr, level))

	opts := []mqttc.Option{
		mqttc.WithKeepAlive(cfg.Session.KeepAlive),
		mqttc.WithCleanSession(cfg.Session.CleanSession),
		mqttc.WithConnectTimeout(30 * time.Second),
		mqttc.WithLogger(logger),
		mqttc.WithOnConnectionLost(func(_ *mqttc.Client, err error) {
			rend.Error("connection lost: %v", err)
		}),
		mqttc.WithOnConnect(func(_ *mqttc.Client) {
			rend.Status("connected to %s", cfg.ServerURL())
		}),
	}

	if cfg.Broker.ClientID != "" {
		opts = append(opts, mqttc.WithClientID(cfg.Broker.ClientID))
	}
	if cfg.Auth.Username != "" {
		opts = append(opts, mqttc.WithCredentials(cfg.Auth.Username, cfg.Auth.Password))
	}
	if cfg.Broker.TLS && cfg.Broker.Insecure {
		opts = append(opts, mqttc.WithTLS(&tls.Config{InsecureSkipVerify: true}))
	}

	return opts
}

package main

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkarlsen/busline/client"
	"github.com/mkarlsen/busline/config"
)

func newClientTransport(transport string) (client.Transport, error) {
	switch transport {
	case "tcp":
		return client.NewTCPTransport(), nil
	case "udp":
		return client.NewUDPTransport(), nil
	default:
		return nil, fmt.Errorf("unknown transport %q (want tcp or udp)", transport)
	}
}

// resolveAckTimeout prefers an explicit --timeout flag, then the config
// file's client.ack_timeout, then the flag default.
func resolveAckTimeout(cmd *cobra.Command, configPath string, flagValue time.Duration) (time.Duration, error) {
	if cmd.Flags().Changed("timeout") || configPath == "" {
		return flagValue, nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return 0, err
	}
	return cfg.Client.AckTimeout, nil
}

func publishCmd() *cobra.Command {
	var (
		addr       string
		transport  string
		topic      string
		timeout    time.Duration
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish stdin lines to a topic",
		Long: `Reads lines from standard input and publishes each one to the given
topic, waiting up to the ack timeout for the broker's confirmation.
On end of input the session is terminated cleanly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := newClientTransport(transport)
			if err != nil {
				return err
			}
			ackTimeout, err := resolveAckTimeout(cmd, configPath, timeout)
			if err != nil {
				return err
			}

			c := client.New(t, client.WithEvents(consoleEvents{}), client.WithAckTimeout(ackTimeout))
			if err := c.Connect(addr); err != nil {
				return err
			}
			defer c.Close()

			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				if err := c.Publish(topic, scanner.Bytes()); err != nil {
					return err
				}
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("reading input: %w", err)
			}

			return c.Terminate()
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "localhost:7070", "broker address")
	cmd.Flags().StringVar(&transport, "transport", "tcp", "transport to use (tcp or udp)")
	cmd.Flags().StringVarP(&topic, "topic", "t", "", "topic to publish to")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "ack wait bound")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	cmd.MarkFlagRequired("topic")
	return cmd
}

package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/mkarlsen/busline/client"
)

func subscribeCmd() *cobra.Command {
	var (
		addr       string
		transport  string
		topics     []string
		timeout    time.Duration
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Subscribe to topics and print every delivery",
		Long: `Subscribes to the given topics and then prints every received
message until interrupted. On the datagram transport the subscribe
handshake tolerates deliveries arriving ahead of the ack.`,
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

			if err := c.Subscribe(topics...); err != nil {
				return err
			}
			return c.Listen()
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "localhost:7070", "broker address")
	cmd.Flags().StringVar(&transport, "transport", "tcp", "transport to use (tcp or udp)")
	cmd.Flags().StringSliceVarP(&topics, "topic", "t", nil, "topic to subscribe to (repeatable)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "ack wait bound")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	cmd.MarkFlagRequired("topic")
	return cmd
}

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mkarlsen/busline/config"
	"github.com/mkarlsen/busline/server"
)

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			var mcpServer *server.MCPServer
			if cfg.Admin.MCP {
				mcpServer = server.NewMCPServer()
			}

			srv := server.NewBrokerServer(server.BrokerServerOptions{
				MCPServer:       mcpServer,
				AdminAddr:       cfg.Admin.Addr,
				EchoToPublisher: cfg.Broker.EchoToPublisher,
				Logging: &server.LogConfig{
					Level:  server.ParseLogLevel(cfg.Logger.Level),
					Format: cfg.Logger.Format,
					Output: os.Stdout,
				},
			})

			tcpTransport := server.NewTCPTransport(cfg.Listen.TCP)
			tcpTransport.SetMaxClients(cfg.Listen.MaxClients)
			srv.RegisterTransport(tcpTransport)

			srv.RegisterTransport(server.NewUDPTransport(cfg.Listen.UDP))

			if cfg.Listen.WS != "" {
				wsTransport := server.NewWSTransport(cfg.Listen.WS)
				wsTransport.SetMaxClients(cfg.Listen.MaxClients)
				srv.RegisterTransport(wsTransport)
			}

			return srv.Start()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	return cmd
}

package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type BrokerServerOptions struct {
	Broker    *Broker         // defaults to a new Broker
	Registry  *ClientRegistry // defaults to a new ClientRegistry
	MCPServer *MCPServer      // optional stdio MCP server to run alongside
	AdminAddr string          // optional admin API bind address
	Logging   *LogConfig      // defaults to DefaultLogConfig
	Context   context.Context // defaults to context.Background

	// EchoToPublisher decides whether a publisher subscribed to its own
	// topic receives the MSG it just published.
	EchoToPublisher bool
}

// BrokerServer assembles the coordinator, transports, metrics, and the
// optional admin/MCP surfaces into one runnable unit.
type BrokerServer struct {
	options     BrokerServerOptions
	coordinator *Coordinator
	promReg     *prometheus.Registry
	admin       *http.Server
}

func NewBrokerServer(opts BrokerServerOptions) *BrokerServer {
	if opts.Broker == nil {
		opts.Broker = NewBroker()
	}
	if opts.Registry == nil {
		opts.Registry = NewClientRegistry()
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}

	promReg := prometheus.NewRegistry()
	metrics := NewMetrics(promReg)

	coordinator := NewCoordinator(opts.Broker, opts.Registry, metrics)
	coordinator.EchoToPublisher = opts.EchoToPublisher

	if opts.MCPServer != nil {
		coordinator.AttachMCP(opts.MCPServer)
	}

	return &BrokerServer{
		options:     opts,
		coordinator: coordinator,
		promReg:     promReg,
	}
}

// RegisterTransport attaches a transport to the dispatcher and hands it
// the metrics instruments.
func (s *BrokerServer) RegisterTransport(t Transport) {
	if m, ok := t.(interface{ SetMetrics(*Metrics) }); ok {
		m.SetMetrics(s.coordinator.Metrics)
	}
	s.coordinator.RegisterTransport(t)
}

func (s *BrokerServer) Coordinator() *Coordinator {
	return s.coordinator
}

// Start runs everything and blocks until the context is cancelled or an
// interrupt arrives.
func (s *BrokerServer) Start() error {
	setupLogger(s.options.Logging)

	ctx, stop := signal.NotifyContext(s.options.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if s.options.MCPServer != nil {
		go func() {
			if err := s.options.MCPServer.Start(); err != nil {
				slog.Error("MCP server stopped", "error", err.Error())
			}
		}()
	}

	if s.options.AdminAddr != "" {
		s.admin = &http.Server{
			Addr:    s.options.AdminAddr,
			Handler: s.coordinator.AdminRouter(s.promReg),
		}
		go func() {
			slog.Info("Starting admin api", "addr", s.options.AdminAddr)
			if err := s.admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("Admin api stopped", "error", err.Error())
			}
		}()
	}

	err := s.coordinator.Start(ctx)

	if s.admin != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if aerr := s.admin.Shutdown(shutdownCtx); aerr != nil {
			slog.Error("Error shutting down admin api", "error", aerr.Error())
		}
	}
	return err
}

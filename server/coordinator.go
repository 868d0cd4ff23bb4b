package server

import (
	"context"
	"log/slog"
)

// Coordinator wires transports to the subscription registry and owns the
// dispatch logic. Each transport delivers decoded frames to Handle on its
// own goroutine(s); the Broker's mutex is the only synchronization point.
type Coordinator struct {
	Broker     *Broker
	Registry   *ClientRegistry
	Metrics    *Metrics
	Transports []Transport

	// EchoToPublisher controls whether a publisher that also subscribed
	// to the topic receives its own MSG during fan-out.
	EchoToPublisher bool
}

func NewCoordinator(broker *Broker, registry *ClientRegistry, metrics *Metrics) *Coordinator {
	return &Coordinator{
		Broker:          broker,
		Registry:        registry,
		Metrics:         metrics,
		EchoToPublisher: true,
	}
}

// RegisterTransport hooks a transport's lifecycle callbacks into the
// coordinator. Must be called before Start.
func (c *Coordinator) RegisterTransport(t Transport) {
	t.OnMessage(c.Handle)
	t.OnConnect(c.registerClient)
	t.OnDisconnect(c.dropClient)
	c.Transports = append(c.Transports, t)
}

func (c *Coordinator) registerClient(client Client) error {
	c.Registry.Store(client)
	slog.Info("Registered client", "id", client.Meta().ID, "transport", client.Meta().Transport, "remote", client.Meta().Remote)
	return nil
}

// dropClient runs when a stream connection closes or a datagram session
// is explicitly terminated. Datagram peers without a TERMINATE are never
// dropped; there is no disconnect signal to observe.
func (c *Coordinator) dropClient(client Client) {
	removed := c.Broker.UnsubscribeAll(client)
	c.Metrics.AddSubscriptions(-removed)
	c.Registry.Delete(client.Meta().ID)
	slog.Info("Dropped client", "id", client.Meta().ID, "subscriptions", removed)
}

// Start runs every registered transport and blocks until ctx is done,
// then shuts the transports down.
func (c *Coordinator) Start(ctx context.Context) error {
	for _, t := range c.Transports {
		go func(t Transport) {
			if err := t.Start(); err != nil {
				slog.Error("Transport stopped", "name", t.Meta().Name, "error", err.Error())
			}
		}(t)
	}

	<-ctx.Done()
	slog.Info("Shutting down transports")

	for _, t := range c.Transports {
		if err := t.Shutdown(); err != nil {
			slog.Error("Error shutting down transport", "name", t.Meta().Name, "error", err.Error())
		}
	}
	return nil
}

package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AdminRouter serves the read-only introspection API plus the metrics
// endpoint. It exposes registry state; it never mutates the broker.
func (c *Coordinator) AdminRouter(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/api/topics", c.handleTopics)
	r.Get("/api/topics/{topic}", c.handleTopicDetail)
	r.Get("/api/clients", c.handleClients)
	r.Get("/api/transports", c.handleTransports)

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

type topicInfo struct {
	Topic       string `json:"topic"`
	Subscribers int    `json:"subscribers"`
}

type clientInfo struct {
	ID        string    `json:"id"`
	Transport string    `json:"transport"`
	Remote    string    `json:"remote"`
	Connected time.Time `json:"connected_at"`
	LastSeen  time.Time `json:"last_seen"`
	Topics    []string  `json:"topics"`
}

func (c *Coordinator) handleTopics(w http.ResponseWriter, _ *http.Request) {
	counts := c.Broker.TopicCounts()
	topics := make([]topicInfo, 0, len(counts))
	for topic, n := range counts {
		topics = append(topics, topicInfo{Topic: topic, Subscribers: n})
	}
	writeJSON(w, topics)
}

func (c *Coordinator) handleTopicDetail(w http.ResponseWriter, r *http.Request) {
	topic := chi.URLParam(r, "topic")
	subs := c.Broker.Subscribers(topic)
	if len(subs) == 0 {
		http.NotFound(w, r)
		return
	}
	ids := make([]string, 0, len(subs))
	for _, sub := range subs {
		ids = append(ids, sub.Meta().ID)
	}
	writeJSON(w, map[string]any{"topic": topic, "subscribers": ids})
}

func (c *Coordinator) handleClients(w http.ResponseWriter, _ *http.Request) {
	clients := c.Registry.List()
	infos := make([]clientInfo, 0, len(clients))
	for _, client := range clients {
		meta := client.Meta()
		infos = append(infos, clientInfo{
			ID:        meta.ID,
			Transport: meta.Transport,
			Remote:    meta.Remote,
			Connected: meta.ConnectedAt,
			LastSeen:  meta.LastSeen(),
			Topics:    c.Broker.TopicsOf(client),
		})
	}
	writeJSON(w, infos)
}

func (c *Coordinator) handleTransports(w http.ResponseWriter, _ *http.Request) {
	metas := make([]TransportMetadata, 0, len(c.Transports))
	for _, t := range c.Transports {
		metas = append(metas, t.Meta())
	}
	writeJSON(w, metas)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

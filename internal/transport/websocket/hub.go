// Package websocket streams published samples and metadata to subscribed
// clients.
package websocket

import (
	"context"
	"encoding/json"
	"errors"

	"rpimon/internal/domain"
	"rpimon/internal/logger"
)

var ErrHubClosed = errors.New("websocket hub closed")

type Hub struct {
	clients  map[*Client]bool
	channels map[string]map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	subscribe   chan *Subscription
	unsubscribe chan *Subscription

	events chan *domain.WsServerEvent
	done   chan struct{}

	log logger.Logger
}

type Subscription struct {
	client  *Client
	channel string
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		clients:  make(map[*Client]bool),
		channels: make(map[string]map[*Client]bool),

		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan *Subscription),
		unsubscribe: make(chan *Subscription),

		events: make(chan *domain.WsServerEvent, 100),
		done:   make(chan struct{}),

		log: log,
	}
}

// Run owns all hub state until ctx is done. Every client is disconnected on
// return.
func (h *Hub) Run(ctx context.Context) error {
	defer func() {
		close(h.done)
		for client := range h.clients {
			h.remove(client)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case client := <-h.register:
			h.clients[client] = true
			h.log.Info("ws: client registered", "remote_addr", client.remoteAddr(), "total_clients", len(h.clients))

		case client := <-h.unregister:
			h.remove(client)

		case sub := <-h.subscribe:
			if !h.clients[sub.client] {
				continue
			}
			if h.channels[sub.channel] == nil {
				h.channels[sub.channel] = make(map[*Client]bool)
			}
			h.channels[sub.channel][sub.client] = true
			h.log.Debug("ws: client subscribed", "remote_addr", sub.client.remoteAddr(), "channel", sub.channel)

		case sub := <-h.unsubscribe:
			if subs, ok := h.channels[sub.channel]; ok {
				delete(subs, sub.client)
				if len(subs) == 0 {
					delete(h.channels, sub.channel)
				}
				h.log.Debug("ws: client unsubscribed", "remote_addr", sub.client.remoteAddr(), "channel", sub.channel)
			}

		case event := <-h.events:
			h.handleEvent(event)
		}
	}
}

func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	for channel, subs := range h.channels {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
	h.log.Info("ws: client unregistered", "remote_addr", client.remoteAddr(), "total_clients", len(h.clients))
}

func (h *Hub) handleEvent(event *domain.WsServerEvent) {
	subs, ok := h.channels[event.Channel]
	if !ok {
		return
	}

	message, err := json.Marshal(event)
	if err != nil {
		h.log.Error("ws: failed to marshal server event", "error", err)
		return
	}

	for client := range subs {
		select {
		case client.send <- message:
		default:
			h.log.Warn("ws: client buffer full, dropping client", "remote_addr", client.remoteAddr())
			h.remove(client)
		}
	}
}

func (h *Hub) Broadcast(ctx context.Context, channel, event string, payload any) error {
	select {
	case h.events <- &domain.WsServerEvent{Channel: channel, Event: event, Payload: payload}:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) PublishValue(ctx context.Context, s domain.Sample) error {
	return h.Broadcast(ctx, domain.WsChannelVitals, domain.WsEventSamplePublished, s)
}

func (h *Hub) PublishMetadata(ctx context.Context, path domain.MetricPath, unit domain.Unit) error {
	return h.Broadcast(ctx, domain.WsChannelMeta, domain.WsEventMetaRegistered, map[string]any{
		"path": path,
		"unit": unit,
	})
}

func (h *Hub) join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) send(ch chan *Subscription, sub *Subscription) {
	select {
	case ch <- sub:
	case <-h.done:
	}
}

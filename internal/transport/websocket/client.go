package websocket

import (
	"encoding/json"
	"errors"
	"time"

	"rpimon/internal/domain"
	"rpimon/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

// Client is one websocket subscriber. The hub writes encoded events to send;
// closing send ends the connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	log  logger.Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, log logger.Logger) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		log:  log,
	}
}

func (c *Client) remoteAddr() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

func (c *Client) extendReadDeadline(string) error {
	return c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.extendReadDeadline("")
	c.conn.SetPongHandler(c.extendReadDeadline)

	for {
		var msg domain.WsClientMessage
		err := c.conn.ReadJSON(&msg)

		var (
			syntaxErr *json.SyntaxError
			typeErr   *json.UnmarshalTypeError
		)
		switch {
		case err == nil:
			c.handle(msg)
		case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
			c.log.Warn("ws: invalid json message", "remote_addr", c.remoteAddr(), "error", err)
		default:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("ws: client disconnected", "remote_addr", c.remoteAddr(), "error", err)
			}
			return
		}
	}
}

func (c *Client) handle(msg domain.WsClientMessage) {
	sub := &Subscription{client: c, channel: msg.Channel}

	switch msg.Type {
	case domain.WsSubscribe:
		c.hub.send(c.hub.subscribe, sub)
	case domain.WsUnsubscribe:
		c.hub.send(c.hub.unsubscribe, sub)
	default:
		c.log.Warn("ws: unknown message type", "type", msg.Type)
	}
}

func (c *Client) write(messageType int, data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

func (c *Client) writePump() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, open := <-c.send:
			if !open {
				c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.write(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ping.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

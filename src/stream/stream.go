package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"

	"reboundtrader/src/model"
)

// tickMessage is the wire shape of one quote frame.
type tickMessage struct {
	Timestamp int64   `json:"timestamp"` // epoch milliseconds
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
}

// Client consumes a websocket quote feed and hands each tick to the
// handler. Disconnects trigger reconnection with exponential backoff; the
// loop only stops when the context is cancelled.
type Client struct {
	url     string
	market  string
	handler func(model.Tick)
	log     *logger.Entry
}

func NewClient(url, market string, handler func(model.Tick)) *Client {
	return &Client{
		url:     url,
		market:  market,
		handler: handler,
		log:     logger.WithField("component", "stream").WithField("market", market),
	}
}

// Run blocks until ctx is cancelled, reconnecting on any read failure.
func (c *Client) Run(ctx context.Context) error {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		err := c.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.log.WithError(err).WithField("retry_in", backoff).Warn("stream disconnected, reconnecting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *Client) consume(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout:  15 * time.Second,
		EnableCompression: true,
	}

	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("ws dial failed: %w", err)
	}
	defer conn.Close()

	c.log.Info("stream connected")

	subscribe := map[string]string{"action": "subscribe", "market": c.market}
	if err := conn.WriteJSON(subscribe); err != nil {
		return fmt.Errorf("ws subscribe failed: %w", err)
	}

	// Close the connection when the context ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("ws read failed: %w", err)
		}

		var msg tickMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.WithError(err).Debug("skipping unparseable frame")
			continue
		}
		if msg.Bid <= 0 || msg.Ask <= 0 {
			continue
		}

		c.handler(model.Tick{
			Timestamp: time.UnixMilli(msg.Timestamp).UTC(),
			Bid:       msg.Bid,
			Ask:       msg.Ask,
		})
	}
}

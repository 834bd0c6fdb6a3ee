package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"AccessibilityScanner/internal/domain"
	"AccessibilityScanner/internal/ports"
)

// LocateHandler answers a locate command with a locate-result message.
type LocateHandler func(ctx context.Context, selector string) Message

// ToggleHandler switches a review view on or off.
type ToggleHandler func(ctx context.Context, view string, enabled bool) error

// Handlers serve the commands a board sends to the engine. Nil handlers ignore the command.
type Handlers struct {
	Locate LocateHandler
	Toggle ToggleHandler
}

// Client is the engine side of the relay: it publishes audit output and serves commands
// coming back from the board.
type Client struct {
	conn     *websocket.Conn
	handlers Handlers
	logger   *slog.Logger

	writeMu sync.Mutex
}

var _ ports.Publisher = (*Client)(nil)

// Dial connects to the relay as an engine peer.
func Dial(ctx context.Context, relayURL string, handlers Handlers, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(relayURL)
	if err != nil {
		return nil, fmt.Errorf("parse relay url: %w", err)
	}
	q := u.Query()
	q.Set("role", RoleEngine)
	u.RawQuery = q.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial relay %s: %w", relayURL, err)
	}
	return &Client{conn: conn, handlers: handlers, logger: logger}, nil
}

// Progress implements ports.Publisher.
func (c *Client) Progress(ctx context.Context, guidelineID string) error {
	return c.write(ctx, ProgressMessage(guidelineID))
}

// Batch implements ports.Publisher.
func (c *Client) Batch(ctx context.Context, findings []domain.Finding) error {
	return c.write(ctx, BatchMessage(findings))
}

// Finished implements ports.Publisher.
func (c *Client) Finished(ctx context.Context, scanID int64, totalIssues int) error {
	return c.write(ctx, FinishedMessage(scanID, totalIssues))
}

func (c *Client) write(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteJSON(m); err != nil {
		return fmt.Errorf("write %s: %w", m.Type, err)
	}
	return nil
}

// Listen serves incoming board commands until the connection or ctx closes.
func (c *Client) Listen(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = c.conn.Close()
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read relay: %w", err)
		}
		msg, err := Decode(raw)
		if err != nil {
			if c.logger != nil {
				c.logger.Warn("dropping malformed frame", "error", err)
			}
			continue
		}
		reply, ok := c.handle(ctx, msg)
		if !ok {
			continue
		}
		if err := c.write(ctx, reply); err != nil {
			return err
		}
	}
}

func (c *Client) handle(ctx context.Context, msg Message) (Message, bool) {
	switch {
	case msg.Type == TypeLocate && c.handlers.Locate != nil:
		reply := c.handlers.Locate(ctx, msg.Selector)
		reply.Type = TypeLocateResult
		reply.Selector = msg.Selector
		return reply, true
	case msg.Type == TypeToggleView && c.handlers.Toggle != nil:
		enabled := msg.Enabled != nil && *msg.Enabled
		reply := Message{Type: TypeViewState, View: msg.View, Enabled: &enabled}
		if err := c.handlers.Toggle(ctx, msg.View, enabled); err != nil {
			reply.Error = err.Error()
		}
		return reply, true
	}
	return Message{}, false
}

// Close sends a close frame and releases the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}

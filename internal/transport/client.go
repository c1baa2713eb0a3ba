// Package transport carries screens, instructions and error reports to the
// controller over TCP and reads its replies.
package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrNotConnected is returned when sending without a connection.
var ErrNotConnected = errors.New("not connected to controller")

const maxLine = 1 << 20

// Options configures a Client.
type Options struct {
	Address           string
	DialTimeout       time.Duration
	ReconnectInterval time.Duration
}

// Client is a controller connection. Sends are safe for concurrent use.
type Client struct {
	opts    Options
	logger  *zap.Logger
	limiter *rate.Limiter
	dialer  func(ctx context.Context, network, address string) (net.Conn, error)

	mu   sync.Mutex
	conn net.Conn
}

// NewClient creates a Client. It does not connect.
func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = 2 * time.Second
	}
	d := &net.Dialer{Timeout: opts.DialTimeout}
	return &Client{
		opts:    opts,
		logger:  logger.Named("transport"),
		limiter: rate.NewLimiter(rate.Every(opts.ReconnectInterval), 1),
		dialer:  d.DialContext,
	}
}

// Connect dials the controller, retrying at the reconnect interval until
// it succeeds or ctx is done.
func (c *Client) Connect(ctx context.Context) error {
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			// Wait fails early when the next slot lies past the deadline.
			<-ctx.Done()
			return ctx.Err()
		}
		conn, err := c.dialer(ctx, "tcp", c.opts.Address)
		if err == nil {
			c.mu.Lock()
			if c.conn != nil {
				c.conn.Close()
			}
			c.conn = conn
			c.mu.Unlock()
			c.logger.Info("connected to controller", zap.String("address", c.opts.Address))
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("controller dial failed", zap.String("address", c.opts.Address), zap.Error(err))
	}
}

// Close drops the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// SendInstruction sends an I frame.
func (c *Client) SendInstruction(ctx context.Context, text string) error {
	return c.write(ctx, "instruction", append([]byte{typeInstruction}, oneLine(text)+"\n"...))
}

// SendScreen sends an X frame carrying a hierarchy document.
func (c *Client) SendScreen(ctx context.Context, xml []byte) error {
	return c.write(ctx, "screen", sized(typeScreen, xml))
}

// SendError sends an E frame.
func (c *Client) SendError(ctx context.Context, report ErrorReport) error {
	return c.write(ctx, "error", sized(typeError, report.Encode()))
}

// RequestActions sends a G frame asking for the action list.
func (c *Client) RequestActions(ctx context.Context) error {
	return c.write(ctx, "get-actions", []byte{typeGetActions, '\n'})
}

func sized(t byte, payload []byte) []byte {
	var b bytes.Buffer
	b.WriteByte(t)
	b.WriteString(strconv.Itoa(len(payload)))
	b.WriteByte('\n')
	b.Write(payload)
	return b.Bytes()
}

func (c *Client) write(ctx context.Context, what string, frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("send %s: %w", what, err)
	}
	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("send %s: %w", what, err)
	}
	c.logger.Debug("sent", zap.String("frame", what), zap.Int("bytes", len(frame)))
	return nil
}

// Receive reads controller lines and passes each to handle until the
// connection closes or ctx is done. A clean close returns io.EOF.
func (c *Client) Receive(ctx context.Context, handle func(Message)) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	stop := context.AfterFunc(ctx, func() { conn.SetReadDeadline(time.Unix(1, 0)) })
	defer stop()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		msg := ParseMessage(line)
		c.logger.Debug("received", zap.Stringer("kind", msg.Kind), zap.Int("bytes", len(line)))
		handle(msg)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("receive: %w", err)
	}
	return io.EOF
}

// Run keeps the connection up and feeds every message to handle until ctx
// is done. onConnect runs after each successful (re)connect.
func (c *Client) Run(ctx context.Context, onConnect func(context.Context) error, handle func(Message)) error {
	for {
		if err := c.Connect(ctx); err != nil {
			return err
		}
		if onConnect != nil {
			if err := onConnect(ctx); err != nil {
				c.logger.Warn("connect hook failed", zap.Error(err))
			}
		}
		err := c.Receive(ctx, handle)
		if ctx.Err() != nil {
			c.Close()
			return ctx.Err()
		}
		c.logger.Warn("controller connection lost, reconnecting", zap.Error(err))
		c.Close()
	}
}

package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/hub"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/protocol"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/session"
	"github.com/shubham-shewale/stock-ticker/pkg/config"
)

const (
	defaultMaxMessageSize = 512 * 1024
	defaultSendBuffer     = 256
)

type Options struct {
	SendBuffer     int
	MaxMessageSize int64
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
}

func OptionsFromConfig(cfg config.GatewayConfig) Options {
	return Options{
		SendBuffer:     cfg.SendBuffer,
		MaxMessageSize: cfg.MaxMessageSize,
		WriteWait:      cfg.WriteWait,
		PongWait:       cfg.PongWait,
		PingPeriod:     cfg.PingPeriod,
	}
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = defaultSendBuffer
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = defaultMaxMessageSize
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 5 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = (o.PongWait * 9) / 10
	}
	return o
}

// frame is one queued server message; writePump is the only writer to conn.
type frame struct {
	op      ws.OpCode
	payload []byte
}

// ClientAdapter binds one websocket connection to a session.
type ClientAdapter struct {
	conn      net.Conn
	hub       *hub.Hub
	logger    *zap.Logger
	opts      Options
	sessionID string

	mu     sync.RWMutex // guards send against close
	send   chan frame
	closed bool
}

func NewClient(conn net.Conn, h *hub.Hub, logger *zap.Logger, opts Options) *ClientAdapter {
	opts = opts.withDefaults()
	return &ClientAdapter{
		conn:   conn,
		hub:    h,
		send:   make(chan frame, opts.SendBuffer),
		logger: logger,
		opts:   opts,
	}
}

// Start registers the session and launches the pumps.
func (c *ClientAdapter) Start() {
	c.sessionID = c.hub.Register(c)
	go c.writePump()
	go c.readPump()
}

func (c *ClientAdapter) ID() string { return c.conn.RemoteAddr().String() }

// Close only closes the channel; writePump closes the conn.
func (c *ClientAdapter) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// SendJSON queues v without blocking.
func (c *ClientAdapter) SendJSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return c.SendBytes(b)
}

func (c *ClientAdapter) SendBytes(b []byte) error {
	return c.enqueue(frame{op: ws.OpText, payload: b})
}

func (c *ClientAdapter) enqueue(f frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return session.ErrClientClosed
	}
	select {
	case c.send <- f:
		return nil
	default:
		return session.ErrSendBufferFull
	}
}

func (c *ClientAdapter) readPump() {
	defer func() {
		c.hub.Unregister(c.sessionID)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))

	for {
		header, err := ws.ReadHeader(c.conn)
		if err != nil {
			break
		}

		if header.Length > c.opts.MaxMessageSize {
			c.logger.Warn("Msg too big", zap.Int64("size", header.Length))
			break
		}

		if !header.Fin {
			c.logger.Warn("Client sent fragmented message (not supported)")
			break
		}

		payload := make([]byte, header.Length)
		if _, err := io.ReadFull(c.conn, payload); err != nil {
			break
		}

		if header.Masked {
			ws.Cipher(payload, header.Mask, 0)
		}

		switch header.OpCode {
		case ws.OpClose:
			return
		case ws.OpPong:
			c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
			continue
		case ws.OpPing:
			c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
			if err := c.enqueue(frame{op: ws.OpPong, payload: payload}); err != nil {
				c.logger.Debug("Dropping pong", zap.Error(err))
			}
			continue
		case ws.OpText:
			c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))

			var req protocol.WSRequest
			if err := json.Unmarshal(payload, &req); err != nil {
				c.SendJSON(protocol.WSResponse{Type: protocol.TypeError, Status: "error", Message: "Invalid JSON"})
				continue
			}

			c.hub.HandleCommand(c.sessionID, c, req)
		}
	}
}

func (c *ClientAdapter) writePump() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case f, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if !ok {
				c.conn.Write(ws.CompiledClose)
				return
			}
			if err := wsutil.WriteServerMessage(c.conn, f.op, f.payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := wsutil.WriteServerMessage(c.conn, ws.OpPing, nil); err != nil {
				return
			}
		}
	}
}

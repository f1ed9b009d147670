package ws

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	sendBuffer     = 64
)

// client is one connection. Writes go through out so only writePump touches
// the socket's writer.
type client struct {
	bridge   *Bridge
	conn     *websocket.Conn
	deviceID string
	log      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	out       chan []byte
	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup
}

func newClient(b *Bridge, conn *websocket.Conn, deviceID string) *client {
	ctx, cancel := context.WithCancel(context.Background())
	return &client{
		bridge:   b,
		conn:     conn,
		deviceID: deviceID,
		log:      b.log.With(zap.String("device_id", deviceID)),
		ctx:      ctx,
		cancel:   cancel,
		out:      make(chan []byte, sendBuffer),
		closed:   make(chan struct{}),
	}
}

// send encodes msg and queues it.
func (c *client) send(msg Outbound) {
	data, err := sonic.Marshal(msg)
	if err != nil {
		c.log.Error("failed to encode message", zap.Error(err))
		return
	}
	if c.sendRaw(data) {
		if typ, ok := msg["type"].(string); ok {
			c.bridge.metrics.RecordWSMessage("out", typ)
		}
	}
}

// sendRaw queues data and reports whether it was accepted. A client whose
// buffer is full is dropped.
func (c *client) sendRaw(data []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.out <- data:
		return true
	case <-c.closed:
		return false
	default:
		c.log.Warn("send buffer full, dropping client")
		c.close()
		return false
	}
}

func (c *client) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("websocket read error", zap.Error(err))
			}
			break
		}

		var msg Inbound
		if err := sonic.Unmarshal(raw, &msg); err != nil {
			c.send(errorMessage("Invalid JSON", ""))
			continue
		}
		c.bridge.metrics.RecordWSMessage("in", msg.Type)

		// Handlers may block on a confirmation answered over this socket.
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.bridge.handle(c, msg)
		}()
	}
	c.cancel()
	c.wg.Wait()
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

// shutdown sends a normal close frame and closes the connection.
func (c *client) shutdown(reason string) {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
		time.Now().Add(writeWait))
	c.close()
	c.conn.Close()
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.cancel()
	})
}

func splitHost(hostport string) (string, int) {
	host, p, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport, 80
	}
	port, _ := strconv.Atoi(p)
	return host, port
}

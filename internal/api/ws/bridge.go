package ws

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/CometPilot/backend/internal/ai"
	"github.com/GriffinCanCode/CometPilot/backend/internal/api/middleware"
	"github.com/GriffinCanCode/CometPilot/backend/internal/command"
	"github.com/GriffinCanCode/CometPilot/backend/internal/dispatch"
	"github.com/GriffinCanCode/CometPilot/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/CometPilot/backend/internal/ocr"
	"github.com/GriffinCanCode/CometPilot/backend/internal/robot"
	"github.com/GriffinCanCode/CometPilot/backend/internal/sequencer"
	"github.com/GriffinCanCode/CometPilot/backend/internal/vision"
)

const (
	// CloseUnauthorized is sent to clients with a wrong token.
	CloseUnauthorized = 4001
	// PairingTTL is how long a pairing code stays valid.
	PairingTTL = 5 * time.Minute
	// PairingVersion is the pairing payload format.
	PairingVersion = "1.0"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Native clients send no Origin; browsers must be local.
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || middleware.IsLoopbackOrigin(origin)
	},
}

// Scanner reads the screen.
type Scanner interface {
	CaptureAndOCR(ctx context.Context, displayID string) ([]ocr.Word, error)
}

// Clicker clicks on-screen text.
type Clicker interface {
	OCRClick(ctx context.Context, target string) vision.ClickResult
}

// Describer summarises the screen.
type Describer interface {
	Describe(ctx context.Context) (string, error)
}

// Deps wires a Bridge. Nil collaborators turn their message types into
// errors.
type Deps struct {
	// Secret is the pairing token. A random one is generated when empty.
	Secret        string
	Chat          ai.ChatEngine
	Scanner       Scanner
	Clicker       Clicker
	Describer     Describer
	Queue         *sequencer.Manager
	Confirmations *robot.Queue
	Logger        *zap.Logger
	Metrics       *monitoring.Metrics
}

// Bridge manages WebSocket connections
type Bridge struct {
	deps    Deps
	log     *zap.Logger
	metrics *monitoring.Metrics

	mu      sync.RWMutex
	secret  string
	clients map[*client]struct{}
	stopped bool
}

// NewBridge creates a bridge and subscribes it to queue progress and
// confirmation requests.
func NewBridge(d Deps) *Bridge {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	secret := d.Secret
	if secret == "" {
		secret = newSecret()
	}
	b := &Bridge{
		deps:    d,
		log:     log.Named("bridge"),
		metrics: d.Metrics,
		secret:  secret,
		clients: make(map[*client]struct{}),
	}

	if d.Queue != nil {
		d.Queue.OnProgress(func(p sequencer.Progress) {
			b.Broadcast(Outbound{"type": TypeProgress, "progress": p})
		})
	}
	if d.Confirmations != nil {
		d.Confirmations.OnRequest(func(r robot.Request) {
			b.Broadcast(Outbound{"type": TypeConfirmRequest, "request": r})
		})
	}
	return b
}

// Register mounts the bridge routes on r.
func (b *Bridge) Register(r gin.IRouter) {
	r.GET("/bridge", b.HandleConnection)
	r.GET("/bridge/pairing", b.Pairing)
	r.POST("/bridge/rotate", b.Rotate)
}

// HandleConnection handles WebSocket upgrade and messages
func (b *Bridge) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		b.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	if !b.authorized(c.Query("token")) {
		b.log.Warn("rejected unauthorized connection", zap.String("remote", c.ClientIP()))
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(CloseUnauthorized, "Unauthorized"), deadline)
		conn.Close()
		return
	}

	deviceID := c.Query("deviceId")
	if deviceID == "" {
		deviceID = "device-" + uuid.NewString()
	}

	cl := newClient(b, conn, deviceID)
	if !b.add(cl) {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down"), time.Now().Add(time.Second))
		conn.Close()
		return
	}
	b.log.Info("device connected", zap.String("device_id", deviceID))

	cl.send(Outbound{"type": TypeConnected, "deviceId": deviceID})
	go cl.writePump()
	cl.readPump()

	b.remove(cl)
	b.log.Info("device disconnected", zap.String("device_id", deviceID))
}

func (b *Bridge) authorized(token string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return subtle.ConstantTimeCompare([]byte(token), []byte(b.secret)) == 1
}

func (b *Bridge) add(cl *client) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return false
	}
	b.clients[cl] = struct{}{}
	b.metrics.IncWSConnections()
	return true
}

func (b *Bridge) remove(cl *client) {
	b.mu.Lock()
	_, ok := b.clients[cl]
	delete(b.clients, cl)
	b.mu.Unlock()

	if ok {
		b.metrics.DecWSConnections()
	}
	cl.close()
}

// ConnectedCount returns the number of open connections.
func (b *Bridge) ConnectedCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Broadcast sends msg to every client and returns how many it was queued for.
func (b *Bridge) Broadcast(msg Outbound) int {
	data, err := sonic.Marshal(msg)
	if err != nil {
		b.log.Error("failed to encode broadcast", zap.Error(err))
		return 0
	}

	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for cl := range b.clients {
		clients = append(clients, cl)
	}
	b.mu.RUnlock()

	n := 0
	for _, cl := range clients {
		if cl.sendRaw(data) {
			n++
		}
	}
	if typ, ok := msg["type"].(string); ok {
		b.metrics.RecordWSMessage("out", typ)
	}
	return n
}

// Send forwards a browser-surface command to every connected shell. It
// implements dispatch.BrowserShell.
func (b *Bridge) Send(_ context.Context, cmd command.Command) (string, error) {
	n := b.Broadcast(Outbound{"type": TypeCommand, "command": cmd, "label": command.Describe(cmd)})
	if n == 0 {
		return "", dispatch.ErrNoBrowser
	}
	return fmt.Sprintf("Sent to %d shell(s)", n), nil
}

// PairingPayload is the decoded pairing code.
type PairingPayload struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Secret  string `json:"secret"`
	Version string `json:"version"`
	// Expires is Unix milliseconds.
	Expires int64 `json:"expires"`
}

// PairingCode returns a base64 pairing payload for host:port.
func (b *Bridge) PairingCode(host string, port int) string {
	b.mu.RLock()
	p := PairingPayload{
		Host:    host,
		Port:    port,
		Secret:  b.secret,
		Version: PairingVersion,
		Expires: time.Now().Add(PairingTTL).UnixMilli(),
	}
	b.mu.RUnlock()

	data, _ := sonic.Marshal(p)
	return base64.StdEncoding.EncodeToString(data)
}

// RotateSecret replaces the pairing token. Open connections stay open.
func (b *Bridge) RotateSecret() string {
	s := newSecret()
	b.mu.Lock()
	b.secret = s
	b.mu.Unlock()
	b.log.Info("bridge secret rotated")
	return s
}

// Pairing returns a pairing code for the host the request reached.
func (b *Bridge) Pairing(c *gin.Context) {
	host, port := splitHost(c.Request.Host)
	c.JSON(http.StatusOK, gin.H{
		"code":      b.PairingCode(host, port),
		"connected": b.ConnectedCount(),
		"expiresIn": int(PairingTTL.Seconds()),
	})
}

// Rotate replaces the pairing token.
func (b *Bridge) Rotate(c *gin.Context) {
	b.RotateSecret()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Stop closes every connection and refuses new ones.
func (b *Bridge) Stop() {
	b.mu.Lock()
	b.stopped = true
	clients := make([]*client, 0, len(b.clients))
	for cl := range b.clients {
		clients = append(clients, cl)
	}
	b.mu.Unlock()

	for _, cl := range clients {
		cl.shutdown("Server shutting down")
	}
	b.log.Info("bridge stopped")
}

func newSecret() string {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(buf)
}

// Package gateway is the HTTP surface of the economy. It authenticates
// requests, translates them into store operations and streams committed
// events to websocket subscribers.
package gateway

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/timelinkhq/tlcore/internal/auth"
	"github.com/timelinkhq/tlcore/internal/charts"
	"github.com/timelinkhq/tlcore/internal/store"
	"github.com/timelinkhq/tlcore/internal/verification"
	"github.com/timelinkhq/tlcore/pkg/messaging"
)

// Config holds gateway configuration
type Config struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RateLimitWindow time.Duration
	RateLimitMax    int
}

// Gateway is the public API server
type Gateway struct {
	router   *gin.Engine
	store    *store.Store
	auth     *auth.Service
	charts   *charts.Service
	verifier verification.Verifier
	msg      *messaging.Client
	log      *logrus.Entry

	wsClients map[uuid.UUID]*WSClient
	wsMu      sync.RWMutex

	rateLimiter *RateLimiter
}

// WSClient is one live websocket subscriber
type WSClient struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Conn   *websocket.Conn
	Send   chan []byte
	Done   chan struct{}
}

// New assembles the gateway. msg may be nil; the websocket feed then only
// carries pings.
func New(cfg Config, st *store.Store, authSvc *auth.Service, chartSvc *charts.Service, verifier verification.Verifier, msg *messaging.Client, log *logrus.Entry) *Gateway {
	g := &Gateway{
		router:    gin.New(),
		store:     st,
		auth:      authSvc,
		charts:    chartSvc,
		verifier:  verifier,
		msg:       msg,
		log:       log,
		wsClients: make(map[uuid.UUID]*WSClient),
		rateLimiter: &RateLimiter{
			requests: make(map[string][]time.Time),
			limit:    cfg.RateLimitMax,
			window:   cfg.RateLimitWindow,
		},
	}

	g.router.Use(gin.Recovery())
	g.setupRoutes()
	return g
}

func (g *Gateway) setupRoutes() {
	g.router.Use(g.rateLimitMiddleware())
	g.router.Use(g.tracingMiddleware())

	g.router.GET("/health", g.healthCheck)

	v1 := g.router.Group("/api/v1")
	{
		v1.POST("/auth/register", g.register)
		v1.POST("/auth/login", g.login)

		v1.GET("/wallet", g.authMiddleware(), g.getWallet)
		v1.GET("/wallet/transactions", g.authMiddleware(), g.listTransactions)
		v1.GET("/wallet/reputation", g.authMiddleware(), g.listReputationEvents)
		v1.POST("/wallet/exchange", g.authMiddleware(), g.exchange)

		v1.POST("/escrows", g.authMiddleware(), g.createEscrow)
		v1.GET("/escrows", g.authMiddleware(), g.listEscrows)
		v1.GET("/escrows/:id", g.getEscrow)
		v1.POST("/escrows/:id/charge", g.authMiddleware(), g.chargeEscrow)
		v1.POST("/escrows/:id/share", g.authMiddleware(), g.setShared)
		v1.POST("/escrows/:id/verification", g.authMiddleware(), g.submitVerification)
		v1.POST("/escrows/:id/verification/decision", g.authMiddleware(), g.decideVerification)
		v1.GET("/escrows/:id/playbacks", g.listPlaybacks)
		v1.POST("/escrows/:id/playback", g.optionalAuthMiddleware(), g.playback)
		v1.POST("/escrows/:id/disputes", g.authMiddleware(), g.openDispute)
		v1.GET("/escrows/:id/disputes", g.listDisputes)

		v1.GET("/disputes/:id", g.getDispute)
		v1.POST("/disputes/:id/review", g.authMiddleware(), g.reviewDispute)
		v1.POST("/disputes/:id/resolve", g.authMiddleware(), g.resolveDispute)

		v1.GET("/charts", g.getCharts)

		v1.GET("/ws", g.authMiddleware(), g.handleWebSocket)
	}
}

// SubscribeFeed bridges the committed event stream into the websocket
// fan-out. Safe to skip when no broker is configured.
func (g *Gateway) SubscribeFeed() error {
	if g.msg == nil {
		return nil
	}
	return g.msg.Subscribe(messaging.SubjectAll, func(m *nats.Msg) {
		g.broadcast(m.Subject, m.Data)
	})
}

// Router exposes the handler for tests
func (g *Gateway) Router() http.Handler {
	return g.router
}

// Middleware

func (g *Gateway) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := g.claimsFromRequest(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("user_id", claims.UserID)
		c.Next()
	}
}

// optionalAuthMiddleware attaches the user when a valid token is present but
// lets anonymous requests through. Playback does not require an account.
func (g *Gateway) optionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := g.claimsFromRequest(c); err == nil {
			c.Set("user_id", claims.UserID)
		}
		c.Next()
	}
}

func (g *Gateway) claimsFromRequest(c *gin.Context) (*auth.Claims, error) {
	header := c.GetHeader("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" {
		return nil, auth.ErrInvalidToken
	}
	return g.auth.ValidateToken(token)
}

func (g *Gateway) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.rateLimiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func (g *Gateway) tracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		c.Set("correlation_id", correlationID)
		c.Header("X-Correlation-ID", correlationID)
		c.Next()
	}
}

func (g *Gateway) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Websocket fan-out

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type wsEnvelope struct {
	Subject string          `json:"subject"`
	Data    json.RawMessage `json:"data"`
}

func (g *Gateway) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := &WSClient{
		ID:     uuid.New(),
		UserID: c.MustGet("user_id").(uuid.UUID),
		Conn:   conn,
		Send:   make(chan []byte, 64),
		Done:   make(chan struct{}),
	}

	g.wsMu.Lock()
	g.wsClients[client.ID] = client
	g.wsMu.Unlock()

	go g.wsReadPump(client)
	go g.wsWritePump(client)
}

func (g *Gateway) wsReadPump(client *WSClient) {
	defer func() {
		g.wsMu.Lock()
		delete(g.wsClients, client.ID)
		g.wsMu.Unlock()
		close(client.Done)
		client.Conn.Close()
	}()

	// The feed is one-way; reads only detect the close
	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (g *Gateway) wsWritePump(client *WSClient) {
	for {
		select {
		case message := <-client.Send:
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-client.Done:
			return
		}
	}
}

func (g *Gateway) broadcast(subject string, data []byte) {
	payload, err := json.Marshal(wsEnvelope{Subject: subject, Data: data})
	if err != nil {
		return
	}

	g.wsMu.RLock()
	defer g.wsMu.RUnlock()
	for _, client := range g.wsClients {
		select {
		case client.Send <- payload:
		default:
			// Slow consumer, drop the event rather than block the feed
		}
	}
}

// RateLimiter is a per-key sliding window counter
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int
	window   time.Duration
}

// Allow reports whether another request fits in the window
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	valid := rl.requests[key][:0]
	for _, t := range rl.requests[key] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}
	rl.requests[key] = append(valid, now)
	return true
}

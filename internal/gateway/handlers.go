package gateway

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/timelinkhq/tlcore/internal/auth"
	"github.com/timelinkhq/tlcore/internal/charts"
	"github.com/timelinkhq/tlcore/internal/domain"
	"github.com/timelinkhq/tlcore/internal/playback"
	"github.com/timelinkhq/tlcore/internal/store"
	"github.com/timelinkhq/tlcore/internal/verification"
)

func (g *Gateway) userID(c *gin.Context) uuid.UUID {
	return c.MustGet("user_id").(uuid.UUID)
}

func pathID(c *gin.Context) (uuid.UUID, error) {
	return uuid.Parse(c.Param("id"))
}

func intQuery(c *gin.Context, name string) int {
	n, _ := strconv.Atoi(c.Query(name))
	return n
}

// Auth

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (g *Gateway) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	reg, err := g.auth.PrepareRegistration(c.Request.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrEmailExists) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// User row and economy account commit as one transaction
	acct, err := g.store.RegisterAccount(c.Request.Context(), reg)
	if err != nil {
		if errors.Is(err, auth.ErrEmailExists) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		g.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": reg.User, "account": acct})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (g *Gateway) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	token, err := g.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Wallet

func (g *Gateway) getWallet(c *gin.Context) {
	wallet, err := g.store.Wallet(c.Request.Context(), g.userID(c))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, wallet)
}

func (g *Gateway) listTransactions(c *gin.Context) {
	txs, err := g.store.ListTransactions(c.Request.Context(), g.userID(c), intQuery(c, "limit"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

func (g *Gateway) listReputationEvents(c *gin.Context) {
	events, err := g.store.ListReputationEvents(c.Request.Context(), g.userID(c), intQuery(c, "limit"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

type exchangeRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

func (g *Gateway) exchange(c *gin.Context) {
	var req exchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	tx, err := g.store.ExchangeTokens(c.Request.Context(), g.userID(c), req.Amount)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// Escrows

type createEscrowRequest struct {
	Title         string          `json:"title" binding:"required"`
	Artist        string          `json:"artist"`
	Genre         string          `json:"genre"`
	Country       string          `json:"country"`
	MediaType     string          `json:"media_type"`
	InitialCharge decimal.Decimal `json:"initial_charge" binding:"required"`
}

func (g *Gateway) createEscrow(c *gin.Context) {
	var req createEscrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.MediaType == "" {
		req.MediaType = "audio"
	}

	esc, err := g.store.CreateEscrow(c.Request.Context(), g.userID(c), store.EscrowParams{
		Title:         req.Title,
		Artist:        req.Artist,
		Genre:         req.Genre,
		Country:       req.Country,
		MediaType:     req.MediaType,
		InitialCharge: req.InitialCharge,
	})
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, esc)
}

func (g *Gateway) listEscrows(c *gin.Context) {
	escrows, err := g.store.ListEscrowsByOwner(c.Request.Context(), g.userID(c))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"escrows": escrows})
}

func (g *Gateway) getEscrow(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid escrow ID"})
		return
	}
	esc, err := g.store.GetEscrow(c.Request.Context(), id)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"escrow": esc, "playable": esc.Playable()})
}

type chargeRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

func (g *Gateway) chargeEscrow(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid escrow ID"})
		return
	}
	var req chargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	tx, err := g.store.ChargeEscrow(c.Request.Context(), id, g.userID(c), req.Amount)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

type shareRequest struct {
	Shared *bool `json:"shared" binding:"required"`
}

func (g *Gateway) setShared(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid escrow ID"})
		return
	}
	var req shareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := g.store.SetShared(c.Request.Context(), id, g.userID(c), *req.Shared); err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shared": *req.Shared})
}

// Verification

func (g *Gateway) submitVerification(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid escrow ID"})
		return
	}
	var sub verification.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	result, err := g.store.SubmitVerification(c.Request.Context(), id, g.userID(c), sub, g.verifier)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type decisionRequest struct {
	Approved *bool `json:"approved" binding:"required"`
}

func (g *Gateway) decideVerification(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid escrow ID"})
		return
	}
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	esc, err := g.store.FinalizeVerification(c.Request.Context(), id, *req.Approved)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, esc)
}

// Playback

type playbackRequest struct {
	DurationSeconds int  `json:"duration_seconds" binding:"required"`
	Boost           bool `json:"boost"`
}

func (g *Gateway) playback(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid escrow ID"})
		return
	}
	var req playbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	var playerID *uuid.UUID
	if v, ok := c.Get("user_id"); ok {
		id := v.(uuid.UUID)
		playerID = &id
	}

	result, err := g.store.Playback(c.Request.Context(), id, playerID, req.DurationSeconds, req.Boost)
	if err != nil {
		g.fail(c, err)
		return
	}

	// Chart counters are best-effort, updated only after the commit
	g.charts.RecordPlay(c.Request.Context(), id, playback.Pulse(result.Event.DurationSeconds))

	c.JSON(http.StatusOK, result.Event)
}

func (g *Gateway) listPlaybacks(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid escrow ID"})
		return
	}
	events, err := g.store.ListPlaybackEvents(c.Request.Context(), id, intQuery(c, "limit"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// Disputes

type openDisputeRequest struct {
	Category     string   `json:"category" binding:"required"`
	Reason       string   `json:"reason" binding:"required"`
	EvidenceRefs []string `json:"evidence_refs"`
}

func (g *Gateway) openDispute(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid escrow ID"})
		return
	}
	var req openDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	d, err := g.store.OpenDispute(c.Request.Context(), id, g.userID(c),
		domain.DisputeCategory(req.Category), req.Reason, req.EvidenceRefs)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (g *Gateway) listDisputes(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid escrow ID"})
		return
	}
	disputes, err := g.store.ListDisputesByEscrow(c.Request.Context(), id)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"disputes": disputes})
}

func (g *Gateway) getDispute(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dispute ID"})
		return
	}
	d, err := g.store.GetDispute(c.Request.Context(), id)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (g *Gateway) reviewDispute(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dispute ID"})
		return
	}
	d, err := g.store.ReviewDispute(c.Request.Context(), id)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

type resolveRequest struct {
	Upheld *bool  `json:"upheld" binding:"required"`
	Note   string `json:"note"`
}

func (g *Gateway) resolveDispute(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dispute ID"})
		return
	}
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	d, err := g.store.ResolveDispute(c.Request.Context(), id, *req.Upheld, req.Note)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// Charts

func (g *Gateway) getCharts(c *gin.Context) {
	board := c.DefaultQuery("board", "hot")
	limit := intQuery(c, "limit")

	var entries []*charts.Entry
	var err error
	switch board {
	case "hot":
		entries, err = g.charts.Top(c.Request.Context(), limit)
	case "rising":
		entries, err = g.charts.Rising(c.Request.Context(), limit)
	case "new":
		entries, err = g.charts.Newest(c.Request.Context(), limit)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown board"})
		return
	}
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"board": board, "entries": entries})
}

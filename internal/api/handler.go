// Package api exposes subscription and note management over HTTP.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/finotif/finotif/internal/models"
	"github.com/finotif/finotif/internal/service"
	"github.com/finotif/finotif/internal/storage"
)

type Handler struct {
	subscriptions *service.Subscriptions
	instruments   storage.InstrumentStore
	ticks         storage.TickStore
	notes         storage.NoteStore
}

func NewHandler(
	subscriptions *service.Subscriptions,
	instruments storage.InstrumentStore,
	ticks storage.TickStore,
	notes storage.NoteStore,
) *Handler {
	return &Handler{
		subscriptions: subscriptions,
		instruments:   instruments,
		ticks:         ticks,
		notes:         notes,
	}
}

type createSubscriptionRequest struct {
	OwnerID   int64   `json:"owner_id" binding:"required"`
	Symbol    string  `json:"symbol" binding:"required"`
	MIC       string  `json:"mic" binding:"required"`
	Property  string  `json:"property" binding:"required"`
	Channel   string  `json:"channel" binding:"required"`
	Title     string  `json:"title" binding:"required"`
	Content   string  `json:"content"`
	Kind      string  `json:"kind" binding:"required"`
	Threshold float64 `json:"threshold"`
	Interval  string  `json:"interval"` // Go duration string, e.g. "24h"
}

func (h *Handler) CreateSubscription(c *gin.Context) {
	var req createSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var interval time.Duration
	if req.Interval != "" {
		var err error
		interval, err = time.ParseDuration(req.Interval)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid interval: " + err.Error()})
			return
		}
	}

	sub, err := h.subscriptions.Create(c.Request.Context(), service.CreateRequest{
		OwnerID:   req.OwnerID,
		Symbol:    req.Symbol,
		MIC:       req.MIC,
		Property:  models.Property(req.Property),
		Channel:   models.Channel(req.Channel),
		Title:     req.Title,
		Content:   req.Content,
		Active:    true,
		Kind:      models.SubscriptionKind(req.Kind),
		Threshold: req.Threshold,
		Interval:  interval,
	})
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": sub.ID})
}

func (h *Handler) DeactivateSubscription(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription id"})
		return
	}
	if err := h.subscriptions.Deactivate(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetLatestTick(c *gin.Context) {
	instr, ok := h.lookupInstrument(c)
	if !ok {
		return
	}

	property := models.Property(c.Query("property"))
	if !models.KnownProperty(property) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown property"})
		return
	}

	tick, err := h.ticks.LatestFor(c.Request.Context(), instr.ID, property)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if tick == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no observations yet"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":     instr.Symbol,
		"property":   tick.Property,
		"value":      tick.Value,
		"currency":   tick.CurrencyCode,
		"created_at": tick.CreatedAt,
	})
}

type createNoteRequest struct {
	UserID  int64  `json:"user_id" binding:"required"`
	Title   string `json:"title" binding:"required"`
	Content string `json:"content"`
}

func (h *Handler) CreateNote(c *gin.Context) {
	instr, ok := h.lookupInstrument(c)
	if !ok {
		return
	}

	var req createNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	note := &models.Note{
		UserID:       req.UserID,
		InstrumentID: instr.ID,
		Title:        req.Title,
		Content:      req.Content,
	}
	if err := h.notes.Create(c.Request.Context(), note); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": note.ID})
}

func (h *Handler) ListNotes(c *gin.Context) {
	instr, ok := h.lookupInstrument(c)
	if !ok {
		return
	}

	notes, err := h.notes.ForInstrument(c.Request.Context(), instr.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, notes)
}

// lookupInstrument resolves the :symbol path parameter. On failure it has
// already written the response.
func (h *Handler) lookupInstrument(c *gin.Context) (*models.Instrument, bool) {
	symbol := models.NormalizeSymbol(c.Param("symbol"))
	instr, err := h.instruments.BySymbol(c.Request.Context(), symbol)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	if instr == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown instrument " + symbol})
		return nil, false
	}
	return instr, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrDuplicateSubscription):
		return http.StatusConflict
	case errors.Is(err, models.ErrUnknownExchange),
		errors.Is(err, models.ErrUnknownInstrument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrInvalidThreshold),
		errors.Is(err, models.ErrInvalidInterval),
		errors.Is(err, models.ErrInvalidSubscription):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

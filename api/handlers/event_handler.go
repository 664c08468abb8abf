package handlers

import (
	"errors"
	"net/http"

	"example.com/powermon/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// EventHandler handles event export/import requests
type EventHandler struct {
	service service.Service
	log     *logrus.Logger
}

// NewEventHandler creates a new EventHandler instance
func NewEventHandler(svc service.Service, log *logrus.Logger) *EventHandler {
	return &EventHandler{
		service: svc,
		log:     log,
	}
}

// ExportEvents handles exporting the full event log
func (h *EventHandler) ExportEvents(c *gin.Context) {
	events, err := h.service.ExportEvents(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("Failed to export events")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export events"})
		return
	}

	c.JSON(http.StatusOK, events)
}

// ImportEvents handles importing an event set. The set is validated against
// the interval invariants before anything is committed.
func (h *EventHandler) ImportEvents(c *gin.Context) {
	var events []service.ExportedEvent
	if err := c.ShouldBindJSON(&events); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event format"})
		return
	}

	if err := h.service.ImportEvents(c.Request.Context(), events); err != nil {
		if errors.Is(err, service.ErrInvariantViolation) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		h.log.WithError(err).Error("Failed to import events")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to import events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"imported": len(events)})
}

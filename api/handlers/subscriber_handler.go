package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"example.com/powermon/internal/models"
	"example.com/powermon/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SubscriberHandler handles subscriber management requests
type SubscriberHandler struct {
	service service.Service
	log     *logrus.Logger
}

// NewSubscriberHandler creates a new SubscriberHandler instance
func NewSubscriberHandler(svc service.Service, log *logrus.Logger) *SubscriberHandler {
	return &SubscriberHandler{
		service: svc,
		log:     log,
	}
}

// CreateSubscriber handles subscriber registration
func (h *SubscriberHandler) CreateSubscriber(c *gin.Context) {
	var sub models.Subscriber
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscriber format"})
		return
	}

	if err := h.service.CreateSubscriber(c.Request.Context(), &sub); err != nil {
		if errors.Is(err, service.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Chat ID is required"})
			return
		}
		h.log.WithError(err).Error("Failed to create subscriber")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create subscriber"})
		return
	}

	c.JSON(http.StatusOK, sub)
}

// ListSubscribers handles listing all subscribers
func (h *SubscriberHandler) ListSubscribers(c *gin.Context) {
	subs, err := h.service.ListSubscribers(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("Failed to list subscribers")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list subscribers"})
		return
	}

	c.JSON(http.StatusOK, subs)
}

// UpdateSubscriber handles subscriber updates (active flag, device filter)
func (h *SubscriberHandler) UpdateSubscriber(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscriber ID"})
		return
	}

	var sub models.Subscriber
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscriber format"})
		return
	}
	sub.ID = uint(id)

	if err := h.service.UpdateSubscriber(c.Request.Context(), &sub); err != nil {
		h.log.WithError(err).Error("Failed to update subscriber")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update subscriber"})
		return
	}

	c.JSON(http.StatusOK, sub)
}

// DeleteSubscriber handles subscriber removal
func (h *SubscriberHandler) DeleteSubscriber(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscriber ID"})
		return
	}

	if err := h.service.DeleteSubscriber(c.Request.Context(), uint(id)); err != nil {
		h.log.WithError(err).Error("Failed to delete subscriber")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete subscriber"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

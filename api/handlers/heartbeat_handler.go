package handlers

import (
	"errors"
	"net/http"
	"time"

	"example.com/powermon/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// HeartbeatHandler handles heartbeat ingestion requests
type HeartbeatHandler struct {
	service service.Service
	log     *logrus.Logger
}

// NewHeartbeatHandler creates a new HeartbeatHandler instance
func NewHeartbeatHandler(svc service.Service, log *logrus.Logger) *HeartbeatHandler {
	return &HeartbeatHandler{
		service: svc,
		log:     log,
	}
}

type heartbeatRequest struct {
	DeviceID    string     `json:"device_id"`
	Timestamp   *time.Time `json:"timestamp"`
	Description string     `json:"description"`
}

// ReceiveHeartbeat handles a heartbeat ping. The device ID may come from
// the JSON body or the deviceId query parameter; an optional per-device key
// is read from the Heartbeat-Key header.
func (h *HeartbeatHandler) ReceiveHeartbeat(c *gin.Context) {
	var req heartbeatRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.log.WithError(err).Warn("Invalid heartbeat format")
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid heartbeat format",
			})
			return
		}
	}
	if req.DeviceID == "" {
		req.DeviceID = c.Query("deviceId")
	}

	device, err := h.service.RecordHeartbeat(c.Request.Context(), service.HeartbeatInput{
		DeviceID:    req.DeviceID,
		Timestamp:   req.Timestamp,
		Description: req.Description,
		DeviceKey:   c.GetHeader("Heartbeat-Key"),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Device ID is required"})
		case errors.Is(err, service.ErrUnknownDevice):
			c.JSON(http.StatusNotFound, gin.H{"error": "Unknown device"})
		case errors.Is(err, service.ErrUnauthorized):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid device heartbeat key"})
		default:
			h.log.WithError(err).Error("Failed to record heartbeat")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record heartbeat"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"device_id": device.ID,
		"heartbeat": device.Heartbeat,
	})
}

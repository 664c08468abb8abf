package handlers

import (
	"errors"
	"net/http"

	"example.com/powermon/internal/models"
	"example.com/powermon/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// DeviceHandler handles device-related requests
type DeviceHandler struct {
	service service.Service
	log     *logrus.Logger
}

// NewDeviceHandler creates a new DeviceHandler instance
func NewDeviceHandler(svc service.Service, log *logrus.Logger) *DeviceHandler {
	return &DeviceHandler{
		service: svc,
		log:     log,
	}
}

// CreateDevice handles device pre-provisioning
func (h *DeviceHandler) CreateDevice(c *gin.Context) {
	var device models.Device
	if err := c.ShouldBindJSON(&device); err != nil {
		h.log.WithError(err).Warn("Invalid device format")
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid device format",
		})
		return
	}

	if err := h.service.CreateDevice(c.Request.Context(), &device); err != nil {
		if errors.Is(err, service.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Device ID is required"})
			return
		}
		h.log.WithError(err).Error("Failed to create device")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create device",
		})
		return
	}

	c.JSON(http.StatusOK, device)
}

// GetDevice handles device information retrieval
func (h *DeviceHandler) GetDevice(c *gin.Context) {
	device, err := h.service.GetDevice(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrUnknownDevice) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
			return
		}
		h.log.WithError(err).Error("Failed to get device")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get device",
		})
		return
	}

	c.JSON(http.StatusOK, device)
}

// ListDevices handles listing all devices with their current power state
func (h *DeviceHandler) ListDevices(c *gin.Context) {
	statuses, err := h.service.ListDeviceStatuses(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("Failed to list devices")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list devices",
		})
		return
	}

	c.JSON(http.StatusOK, statuses)
}

// GetDeviceEvents handles listing a device's power-state intervals
func (h *DeviceHandler) GetDeviceEvents(c *gin.Context) {
	events, err := h.service.ListDeviceEvents(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrUnknownDevice) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
			return
		}
		h.log.WithError(err).Error("Failed to list device events")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list device events",
		})
		return
	}

	c.JSON(http.StatusOK, events)
}

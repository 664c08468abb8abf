package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"example.com/powermon/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// StatsHandler handles statistics requests
type StatsHandler struct {
	service service.Service
	log     *logrus.Logger
}

// NewStatsHandler creates a new StatsHandler instance
func NewStatsHandler(svc service.Service, log *logrus.Logger) *StatsHandler {
	return &StatsHandler{
		service: svc,
		log:     log,
	}
}

// GetMonthlyStats handles a monthly statistics query. Year and month
// default to the current month.
func (h *StatsHandler) GetMonthlyStats(c *gin.Context) {
	now := time.Now()
	year := now.Year()
	month := now.Month()

	if yearStr := c.Query("year"); yearStr != "" {
		y, err := strconv.Atoi(yearStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid year"})
			return
		}
		year = y
	}
	if monthStr := c.Query("month"); monthStr != "" {
		m, err := strconv.Atoi(monthStr)
		if err != nil || m < 1 || m > 12 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid month"})
			return
		}
		month = time.Month(m)
	}

	stats, err := h.service.GetMonthlyStats(c.Request.Context(), c.Param("id"), year, month, now)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownDevice):
			c.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
		case errors.Is(err, service.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid statistics period"})
		default:
			h.log.WithError(err).Error("Failed to compute statistics")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute statistics"})
		}
		return
	}

	c.JSON(http.StatusOK, stats)
}

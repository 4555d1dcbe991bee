package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AgileSeagull/DIAS/internal/alerts"
	"github.com/AgileSeagull/DIAS/internal/ingestion"
	"github.com/AgileSeagull/DIAS/internal/models"
	"github.com/AgileSeagull/DIAS/internal/scheduler"
)

func (h *Handler) syncAll(c *gin.Context) {
	h.logger.Info("manual sync triggered")
	summary, err := h.deps.Triggers.TriggerSync(c.Request.Context())
	if errors.Is(err, scheduler.ErrStopped) {
		fail(c, http.StatusServiceUnavailable, "server is shutting down")
		return
	}

	message := "Disaster data sync completed"
	if !summary.Success {
		message = "Every disaster source failed"
	}
	c.JSON(http.StatusOK, gin.H{
		"success": summary.Success,
		"message": message,
		"data":    summary,
	})
}

func (h *Handler) syncType(c *gin.Context) {
	t, valid := models.ParseDisasterType(c.Param("type"))
	if !valid {
		fail(c, http.StatusBadRequest, "Invalid disaster type. Must be: earthquake, flood, fire, or cyclone")
		return
	}

	h.logger.Info("manual sync triggered", "type", t)
	result, err := h.deps.Triggers.TriggerSyncType(c.Request.Context(), t)
	switch {
	case errors.Is(err, ingestion.ErrUnknownType):
		fail(c, http.StatusNotFound, fmt.Sprintf("%s source is not enabled", t))
		return
	case errors.Is(err, scheduler.ErrStopped):
		fail(c, http.StatusServiceUnavailable, "server is shutting down")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	if !result.Success {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": fmt.Sprintf("Failed to sync %s data", t),
			"error":   result.Error,
		})
		return
	}
	success(c, fmt.Sprintf("%s data sync completed", t), result)
}

func (h *Handler) syncStatus(c *gin.Context) {
	data := gin.H{
		"running":       h.deps.Sync.Running(),
		"enabled_types": h.deps.Sync.Types(),
		"last_results":  h.deps.Sync.LastResults(),
	}
	if summary, found := h.deps.Sync.LastSummary(); found {
		data["last_summary"] = summary
	}
	success(c, "", data)
}

func (h *Handler) runAlerts(c *gin.Context) {
	h.logger.Info("manual alert cycle triggered")
	report, err := h.deps.Triggers.TriggerAlerts(c.Request.Context())
	switch {
	case errors.Is(err, alerts.ErrCycleInProgress):
		fail(c, http.StatusConflict, "An alert cycle is already running")
		return
	case errors.Is(err, scheduler.ErrStopped):
		fail(c, http.StatusServiceUnavailable, "server is shutting down")
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Alert cycle failed",
			"data":    report,
		})
		return
	}
	success(c, "Alert cycle completed", report)
}

func (h *Handler) alertStatus(c *gin.Context) {
	data := gin.H{"state": h.deps.Alerts.State()}
	if report, found := h.deps.Alerts.LastReport(); found {
		data["last_report"] = report
	}
	success(c, "", data)
}

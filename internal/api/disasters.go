package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AgileSeagull/DIAS/internal/models"
	"github.com/AgileSeagull/DIAS/internal/repository"
)

const (
	defaultLimit = 100
	maxLimit     = 500
)

func (h *Handler) getDisasters(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	disasters, err := h.deps.Store.ListDisasters(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list disasters", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch disasters",
		})
		return
	}

	fc := toGeoJSON(disasters)
	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, fc)
}

// parseFilter reads the list query. Only active disasters are returned
// unless active=false or active=all is given.
func parseFilter(c *gin.Context) (repository.Filter, error) {
	active := true
	filter := repository.Filter{
		Limit:  defaultLimit,
		Active: &active,
	}

	if t := c.Query("type"); t != "" {
		dt, ok := models.ParseDisasterType(t)
		if !ok {
			return filter, fmt.Errorf("invalid type: %s", t)
		}
		filter.Type = &dt
	}
	if s := c.Query("severity"); s != "" {
		sev, ok := models.ParseSeverity(s)
		if !ok {
			return filter, fmt.Errorf("invalid severity: %s", s)
		}
		filter.Severity = &sev
	}
	if s := c.Query("min_severity"); s != "" {
		sev, ok := models.ParseSeverity(s)
		if !ok {
			return filter, fmt.Errorf("invalid min_severity: %s", s)
		}
		filter.MinSeverity = &sev
	}
	if m := c.Query("min_magnitude"); m != "" {
		mag, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return filter, fmt.Errorf("invalid min_magnitude: %s", m)
		}
		filter.MinMagnitude = &mag
	}
	if s := c.Query("since"); s != "" {
		t, err := parseSince(s)
		if err != nil {
			return filter, err
		}
		filter.Since = &t
	}
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= maxLimit {
			filter.Limit = lim
		}
	}
	if o := c.Query("offset"); o != "" {
		if off, err := strconv.Atoi(o); err == nil && off > 0 {
			filter.Offset = off
		}
	}
	switch c.Query("active") {
	case "", "true":
	case "false":
		inactive := false
		filter.Active = &inactive
	case "all":
		filter.Active = nil
	default:
		return filter, fmt.Errorf("invalid active: %s", c.Query("active"))
	}

	return filter, nil
}

func parseSince(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid since: %s", s)
}

func (h *Handler) getDisaster(c *gin.Context) {
	d, err := h.deps.Store.FindByDisasterID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		fail(c, http.StatusNotFound, "Disaster not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get disaster", "disaster_id", c.Param("id"), "error", err)
		fail(c, http.StatusInternalServerError, "failed to fetch disaster")
		return
	}
	success(c, "", d)
}

func (h *Handler) getStats(c *gin.Context) {
	stats, err := h.deps.Store.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to compute stats", "error", err)
		fail(c, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	success(c, "", stats)
}

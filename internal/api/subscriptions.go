package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AgileSeagull/DIAS/internal/geocode"
	"github.com/AgileSeagull/DIAS/internal/models"
	"github.com/AgileSeagull/DIAS/internal/notify"
	"github.com/AgileSeagull/DIAS/internal/repository"
)

// welcomeLimit caps how many active disasters a welcome message lists.
const welcomeLimit = 20

type subscribeRequest struct {
	Email   string `json:"email" binding:"required"`
	Country string `json:"country" binding:"required"`
}

func (h *Handler) subscribe(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Email and country are required")
		return
	}

	ctx := c.Request.Context()
	res, err := h.deps.Subscriptions.Subscribe(ctx, req.Email, req.Country, nil)
	if errors.Is(err, notify.ErrInvalidSubscription) {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("subscribe failed", "country", req.Country, "error", err)
		fail(c, http.StatusBadGateway, "Failed to subscribe to alerts")
		return
	}

	country := res.Subscription.Country
	current, err := h.activeIn(ctx, country)
	if err != nil {
		h.logger.Warn("failed to load active disasters for welcome", "country", country, "error", err)
	}
	// the subscription stands even when the welcome cannot be sent
	if _, err := h.deps.Subscriptions.SendWelcome(ctx, country, current); err != nil {
		h.logger.Warn("failed to send welcome message", "country", country, "error", err)
	}

	success(c, res.Message, gin.H{
		"id":               res.Subscription.ID,
		"email":            res.Subscription.Email,
		"country":          country,
		"status":           res.Subscription.Status,
		"active_disasters": len(current),
	})
}

// activeIn returns up to welcomeLimit active disasters resolved to country,
// newest first.
func (h *Handler) activeIn(ctx context.Context, country string) ([]models.Disaster, error) {
	active, err := h.deps.Store.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	countries := h.deps.Resolver.ResolveAll(ctx, active)

	var out []models.Disaster
	for _, d := range active {
		if !strings.EqualFold(countries[d.DisasterID], country) {
			continue
		}
		out = append(out, d)
		if len(out) == welcomeLimit {
			break
		}
	}
	return out, nil
}

func (h *Handler) mySubscriptions(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		success(c, "Provide email as query parameter to see subscriptions.", []models.Subscription{})
		return
	}

	subs, err := h.deps.Subscriptions.ListSubscriptions(c.Request.Context(), email)
	if err != nil {
		h.logger.Error("failed to list subscriptions", "error", err)
		fail(c, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	if subs == nil {
		subs = []models.Subscription{}
	}
	success(c, "", subs)
}

func (h *Handler) unsubscribe(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid subscription id")
		return
	}
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		fail(c, http.StatusBadRequest, "Email is required. Provide it as a query parameter.")
		return
	}

	sub, err := h.deps.Subscriptions.Unsubscribe(c.Request.Context(), uint(id), email)
	if errors.Is(err, repository.ErrNotFound) {
		fail(c, http.StatusNotFound, "Subscription not found")
		return
	}
	if err != nil {
		h.logger.Error("unsubscribe failed", "subscription_id", id, "error", err)
		fail(c, http.StatusInternalServerError, "failed to unsubscribe")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Successfully unsubscribed from %s alerts", sub.Country),
	})
}

type countryCount struct {
	Country       string `json:"country"`
	DisasterCount int    `json:"disaster_count"`
}

// countries lists the countries that currently have active disasters, in
// alphabetical order. Disasters that resolve to no country are left out.
func (h *Handler) countries(c *gin.Context) {
	ctx := c.Request.Context()
	active, err := h.deps.Store.ListActive(ctx)
	if err != nil {
		h.logger.Error("failed to list active disasters", "error", err)
		fail(c, http.StatusInternalServerError, "failed to list countries")
		return
	}

	counts := geocode.CountryCounts(active, h.deps.Resolver.ResolveAll(ctx, active))
	out := make([]countryCount, 0, len(counts))
	for country, n := range counts {
		if country == geocode.Unknown {
			continue
		}
		out = append(out, countryCount{Country: country, DisasterCount: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Country < out[j].Country })

	message := ""
	if len(out) == 0 {
		message = "No countries with active disasters. Please sync disaster data first."
	}
	success(c, message, out)
}

func (h *Handler) topics(c *gin.Context) {
	topics, err := h.deps.Subscriptions.ListTopics(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list topics", "error", err)
		fail(c, http.StatusInternalServerError, "failed to list topics")
		return
	}
	if topics == nil {
		topics = []models.CountryTopic{}
	}
	success(c, "", topics)
}

func (h *Handler) subscriptionStats(c *gin.Context) {
	stats, err := h.deps.Subscriptions.SubscriptionStats(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to compute subscription stats", "error", err)
		fail(c, http.StatusInternalServerError, "failed to compute subscription stats")
		return
	}
	success(c, "", stats)
}

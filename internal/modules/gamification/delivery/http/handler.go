package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gamificationDto "pivoine.art/gamification/internal/modules/gamification/dto"
	gamification "pivoine.art/gamification/internal/modules/gamification/service"
	"pivoine.art/gamification/pkg/apperror"
	"pivoine.art/gamification/pkg/logger"
	"pivoine.art/gamification/pkg/metrics"
	"pivoine.art/gamification/pkg/response"
	"pivoine.art/gamification/pkg/validator"
)

type GamificationHandler struct {
	service            gamification.GamificationService
	metrics            *metrics.Manager
	log                logger.Logger
	recalculateTimeout time.Duration
	recalculating      atomic.Bool

	// background work started by requests, waited on by Drain
	inflight sync.WaitGroup
}

func NewGamificationHandler(service gamification.GamificationService, m *metrics.Manager, log logger.Logger, recalculateTimeout time.Duration) *GamificationHandler {
	if recalculateTimeout <= 0 {
		recalculateTimeout = 30 * time.Minute
	}
	return &GamificationHandler{
		service:            service,
		metrics:            m,
		log:                log.Named("gamification.http"),
		recalculateTimeout: recalculateTimeout,
	}
}

// Drain waits for accepted events and a running recalculation to finish, or
// for ctx to end, whichever comes first.
func (h *GamificationHandler) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *GamificationHandler) bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
}

// ReceiveEvent accepts a platform event and processes it in the background.
// The caller gets 202 as soon as the payload is valid.
func (h *GamificationHandler) ReceiveEvent(c *gin.Context) {
	var req gamificationDto.EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	ev, err := gamification.EventFromRequest(req)
	if err != nil {
		response.ResponseError(c, h.log, err)
		return
	}
	h.metrics.EventReceived(ev.Type, "webhook")

	ctx := context.WithoutCancel(c.Request.Context())
	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		h.service.Dispatch(ctx, ev)
	}()

	c.JSON(http.StatusAccepted, gin.H{"message": "event accepted"})
}

func (h *GamificationHandler) GetLeaderboard(c *gin.Context) {
	var query gamificationDto.LeaderboardQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.bindError(c, err)
		return
	}

	board, err := h.service.Leaderboard(c.Request.Context(), query.Limit, query.Offset)
	if err != nil {
		response.ResponseError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, board)
}

func (h *GamificationHandler) GetAchievements(c *gin.Context) {
	var query gamificationDto.AchievementsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.bindError(c, err)
		return
	}

	achievements, err := h.service.Achievements(c.Request.Context(), query.Category)
	if err != nil {
		response.ResponseError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": achievements})
}

func (h *GamificationHandler) GetMySummary(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, h.log, err)
		return
	}
	h.writeSummary(c, userID)
}

func (h *GamificationHandler) GetUserSummary(c *gin.Context) {
	userID, ok := h.pathUserID(c)
	if !ok {
		return
	}
	h.writeSummary(c, userID)
}

func (h *GamificationHandler) writeSummary(c *gin.Context, userID uuid.UUID) {
	summary, err := h.service.UserSummary(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summary})
}

// GetUserScore computes the decayed score live, optionally as of an RFC3339
// instant given in ?as_of.
func (h *GamificationHandler) GetUserScore(c *gin.Context) {
	userID, ok := h.pathUserID(c)
	if !ok {
		return
	}

	var query gamificationDto.ScoreQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.bindError(c, err)
		return
	}

	var asOf time.Time
	if query.AsOf != "" {
		t, err := time.Parse(time.RFC3339, query.AsOf)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "as_of must be an RFC3339 timestamp"})
			return
		}
		asOf = t
	}

	score, err := h.service.CalculateWeightedScore(c.Request.Context(), userID, asOf)
	if err != nil {
		response.ResponseError(c, h.log, err)
		return
	}
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	c.JSON(http.StatusOK, gin.H{"data": gamificationDto.ScoreResponse{
		UserID:        userID,
		AsOf:          asOf,
		WeightedScore: score,
	}})
}

// RefreshUser recomputes stats and re-evaluates every achievement of a user.
func (h *GamificationHandler) RefreshUser(c *gin.Context) {
	userID, ok := h.pathUserID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.service.UpdateUserStats(ctx, userID); err != nil {
		response.ResponseError(c, h.log, err)
		return
	}
	if err := h.service.CheckAchievements(ctx, userID, ""); err != nil {
		response.ResponseError(c, h.log, err)
		return
	}

	h.writeSummary(c, userID)
}

// Recalculate starts a full stats recompute unless one is already running.
func (h *GamificationHandler) Recalculate(c *gin.Context) {
	if !h.recalculating.CompareAndSwap(false, true) {
		c.JSON(http.StatusConflict, gin.H{"error": "recalculation already running"})
		return
	}

	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		defer h.recalculating.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), h.recalculateTimeout)
		defer cancel()

		if _, err := h.service.RecalculateAll(ctx); err != nil {
			h.log.Error("recalculation failed", logger.Err(err))
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"message": "recalculation started"})
}

func (h *GamificationHandler) pathUserID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ResponseError(c, h.log, apperror.New(http.StatusBadRequest, "invalid user id", nil))
		return uuid.Nil, false
	}
	return id, true
}

package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	notification "pivoine.art/gamification/internal/modules/notification/service"
	"pivoine.art/gamification/pkg/apperror"
	"pivoine.art/gamification/pkg/logger"
	"pivoine.art/gamification/pkg/response"
)

type NotificationHandler struct {
	redisClient *redis.Client
	upgrader    websocket.Upgrader
	log         logger.Logger
}

func NewNotificationHandler(redisClient *redis.Client, allowedOrigins []string, log logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		redisClient: redisClient,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log: log.Named("notification.ws"),
	}
}

// originChecker accepts requests without an Origin header (non-browser
// clients) and browser requests from the configured origins. "*" allows all.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set["*"]; ok {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// Stream forwards the caller's achievement notifications until either side
// goes away.
func (h *NotificationHandler) Stream(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, h.log, err)
		return
	}
	if h.redisClient == nil {
		response.ResponseError(c, h.log, apperror.New(http.StatusServiceUnavailable, "notifications unavailable", nil))
		return
	}

	ctx := c.Request.Context()
	pubsub := h.redisClient.Subscribe(ctx, notification.Channel(userID))
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		h.log.Error("subscribe failed", logger.String("user_id", userID.String()), logger.Err(err))
		response.ResponseError(c, h.log, apperror.New(http.StatusServiceUnavailable, "notifications unavailable", nil))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader already wrote the HTTP error
		h.log.Warn("websocket upgrade failed", logger.Err(err))
		return
	}
	defer conn.Close()

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				h.log.Debug("websocket write failed", logger.Err(err))
				return
			}
		case <-clientClosed:
			return
		case <-ctx.Done():
			return
		}
	}
}

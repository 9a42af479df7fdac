package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/chat_gateway/internal/api/http/converter"
	"github.com/immxrtalbeast/chat_gateway/internal/auth"
	"github.com/immxrtalbeast/chat_gateway/internal/repository"
	"github.com/immxrtalbeast/chat_gateway/internal/service"
	"github.com/immxrtalbeast/chat_gateway/lib/logger/sl"
)

type RoomController struct {
	base     context.Context
	rooms    *service.RoomService
	verifier service.TokenVerifier
	session  service.SessionConfig
	upgrader websocket.Upgrader
	log      *slog.Logger
	sessions sync.WaitGroup
}

// NewRoomController serves chat connections until base is cancelled.
func NewRoomController(
	base context.Context,
	rooms *service.RoomService,
	verifier service.TokenVerifier,
	session service.SessionConfig,
	allowedOrigins []string,
	log *slog.Logger,
) *RoomController {
	if log == nil {
		log = slog.Default()
	}
	return &RoomController{
		base:     base,
		rooms:    rooms,
		verifier: verifier,
		session:  session,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(origin, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.TrimRight(origin, "/")]
		return ok
	}
}

// JoinRoom upgrades the request and runs a chat session on it.
// Authentication happens on the open socket so a failure can be reported in-band.
func (c *RoomController) JoinRoom(ctx *gin.Context) {
	roomName := strings.TrimSpace(ctx.Param("roomName"))
	if roomName == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "room name is required"})
		return
	}
	token := auth.TokenFromRequest(ctx.Request)

	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		c.log.Warn("failed to upgrade connection", slog.String("room", roomName), sl.Err(err))
		return
	}

	c.sessions.Add(1)
	defer c.sessions.Done()

	session := service.NewSession(conn, roomName, token, c.rooms, c.verifier, c.session, c.log)
	session.Run(c.base)
}

// Wait blocks until every running chat session has finished closing or ctx is done.
// Hijacked connections are not tracked by http.Server.Shutdown, so call it after
// the base context is cancelled.
func (c *RoomController) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *RoomController) ListMessages(ctx *gin.Context) {
	limit, err := queryInt(ctx, "limit", 0)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	offset, err := queryInt(ctx, "offset", 0)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}

	messages, err := c.rooms.History(ctx.Request.Context(), ctx.Param("roomName"), limit, offset)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.log.Error("failed to list messages", sl.Err(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"messages": converter.MessagesToApi(messages)})
}

func (c *RoomController) TagProduct(ctx *gin.Context) {
	type request struct {
		ProductID int64 `json:"product_id" binding:"required,min=1"`
	}

	messageID, err := strconv.ParseInt(ctx.Param("messageID"), 10, 64)
	if err != nil || messageID < 1 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	msg, err := c.rooms.TagProduct(ctx.Request.Context(), messageID, req.ProductID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrMessageNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidProduct):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.log.Error("failed to tag product", sl.Err(err))
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "failed to tag product"})
		}
		return
	}

	if ident, ok := IdentityFrom(ctx); ok {
		c.log.Info("product tagged",
			slog.Int64("message_id", msg.ID),
			slog.Int64("product_id", req.ProductID),
			slog.Int64("user_id", ident.UserID),
		)
	}
	ctx.JSON(http.StatusOK, gin.H{"message": converter.MessageToApi(msg)})
}

func (c *RoomController) OnlineCount(ctx *gin.Context) {
	roomName := ctx.Param("roomName")
	ctx.JSON(http.StatusOK, gin.H{"room": roomName, "count": c.rooms.OnlineCount(roomName)})
}

func queryInt(ctx *gin.Context, key string, fallback int) (int, error) {
	raw := ctx.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

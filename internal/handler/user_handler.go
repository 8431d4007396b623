package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coinrush-app/coinrush-backend/internal/domain"
	"github.com/coinrush-app/coinrush-backend/internal/repository"
	"github.com/coinrush-app/coinrush-backend/internal/user"
)

// UserHandler exposes the admin endpoints for browsing and managing players.
type UserHandler struct {
	service *user.Service
}

func NewUserHandler(service *user.Service) *UserHandler {
	return &UserHandler{service: service}
}

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
)

// List returns a paginated, searchable, sortable page of players together
// with aggregate stats for the admin dashboard.
func (h *UserHandler) List(c *gin.Context) {
	q := repository.ListUsersQuery{
		Page:      queryInt(c, "page", defaultPage),
		Limit:     queryInt(c, "limit", defaultLimit),
		Search:    c.Query("search"),
		SortBy:    c.DefaultQuery("sortBy", "registered_at"),
		SortOrder: c.DefaultQuery("sortOrder", "desc"),
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}

	users, total, stats, err := h.service.List(c.Request.Context(), q)
	if err != nil {
		Fail(c, err)
		return
	}

	pages := 0
	if q.Limit > 0 {
		pages = (total + q.Limit - 1) / q.Limit
	}

	OK(c, gin.H{
		"users": users,
		"pagination": gin.H{
			"page":  q.Page,
			"limit": q.Limit,
			"total": total,
			"pages": pages,
		},
		"stats": stats,
	})
}

// Get returns one player profile by telegram id.
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	record, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}

	OK(c, record)
}

type updateUserRequest struct {
	GameData  *domain.GameData `json:"gameData"`
	LastLogin *time.Time       `json:"lastLogin"`
}

// Update stores a new game state snapshot sent by the game client or edited
// in the admin panel.
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		FailValidation(c, "неверное тело запроса")
		return
	}
	if req.GameData == nil {
		FailValidation(c, "gameData is required")
		return
	}

	record, err := h.service.UpdateGameData(c.Request.Context(), id, *req.GameData, req.LastLogin)
	if err != nil {
		Fail(c, err)
		return
	}

	OK(c, record)
}

type userActionRequest struct {
	Action string `json:"action" binding:"required"`
}

// Action applies a moderation action to a player. Supported actions are
// "block" (toggles the flag) and "reset" (wipes game progress).
func (h *UserHandler) Action(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req userActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		FailValidation(c, "неверное тело запроса")
		return
	}

	var (
		record *domain.User
		err    error
	)

	switch req.Action {
	case "block":
		record, err = h.service.ToggleBlocked(c.Request.Context(), id)
	case "reset":
		record, err = h.service.ResetProgress(c.Request.Context(), id)
	default:
		FailValidation(c, "unknown action: "+req.Action)
		return
	}

	if err != nil {
		Fail(c, err)
		return
	}

	OK(c, record)
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}

	return value
}

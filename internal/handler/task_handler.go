package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coinrush-app/coinrush-backend/internal/domain"
	apperrors "github.com/coinrush-app/coinrush-backend/internal/errors"
	"github.com/coinrush-app/coinrush-backend/internal/repository"
	"github.com/coinrush-app/coinrush-backend/internal/upload"
)

// TaskHandler exposes the admin endpoints for in-game tasks.
type TaskHandler struct {
	tasks   repository.TaskRepository
	uploads *upload.Storage
}

func NewTaskHandler(tasks repository.TaskRepository, uploads *upload.Storage) *TaskHandler {
	return &TaskHandler{tasks: tasks, uploads: uploads}
}

// List returns all tasks, newest first.
func (h *TaskHandler) List(c *gin.Context) {
	tasks, err := h.tasks.List(c.Request.Context())
	if err != nil {
		Fail(c, apperrors.NewDatabaseError(err))
		return
	}

	OK(c, tasks)
}

type taskRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Reward      int64  `json:"reward"`
	Link        string `json:"link"`
	Active      *bool  `json:"active"`
}

// Create adds a new task.
func (h *TaskHandler) Create(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		FailValidation(c, "неверное тело запроса")
		return
	}
	if req.Reward < 0 {
		FailValidation(c, "reward must not be negative")
		return
	}

	task := &domain.Task{
		Title:       req.Title,
		Description: req.Description,
		Reward:      req.Reward,
		Link:        req.Link,
		Active:      req.Active == nil || *req.Active,
		CreatedAt:   time.Now().UTC(),
	}

	if err := h.tasks.Create(c.Request.Context(), task); err != nil {
		Fail(c, apperrors.NewDatabaseError(err))
		return
	}

	Created(c, task)
}

// Update edits a task in place.
func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		FailValidation(c, "неверное тело запроса")
		return
	}

	current, err := h.tasks.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, mapRepoErr(err, "task"))
		return
	}

	current.Title = req.Title
	current.Description = req.Description
	current.Reward = req.Reward
	current.Link = req.Link
	if req.Active != nil {
		current.Active = *req.Active
	}

	updated, err := h.tasks.Update(c.Request.Context(), current)
	if err != nil {
		Fail(c, mapRepoErr(err, "task"))
		return
	}

	OK(c, updated)
}

// Delete removes a task and its stored image.
func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	current, err := h.tasks.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, mapRepoErr(err, "task"))
		return
	}

	if err := h.tasks.Delete(c.Request.Context(), id); err != nil {
		Fail(c, mapRepoErr(err, "task"))
		return
	}

	_ = h.uploads.Remove(current.ImageURL)

	OK(c, gin.H{"deleted": true})
}

// UploadImage stores a task image and records its file name.
func (h *TaskHandler) UploadImage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("image")
	if err != nil {
		FailValidation(c, "image file is required")
		return
	}

	name, err := h.uploads.SaveImage(fh, "task")
	if err != nil {
		Fail(c, err)
		return
	}

	updated, err := h.tasks.SetImage(c.Request.Context(), id, name)
	if err != nil {
		_ = h.uploads.Remove(name)
		Fail(c, mapRepoErr(err, "task"))
		return
	}

	OK(c, updated)
}

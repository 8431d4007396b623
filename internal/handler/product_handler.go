package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coinrush-app/coinrush-backend/internal/domain"
	apperrors "github.com/coinrush-app/coinrush-backend/internal/errors"
	"github.com/coinrush-app/coinrush-backend/internal/repository"
	"github.com/coinrush-app/coinrush-backend/internal/upload"
)

// ProductHandler exposes the admin shop management endpoints.
type ProductHandler struct {
	products repository.ProductRepository
	uploads  *upload.Storage
}

func NewProductHandler(products repository.ProductRepository, uploads *upload.Storage) *ProductHandler {
	return &ProductHandler{products: products, uploads: uploads}
}

// List returns all products in display order.
func (h *ProductHandler) List(c *gin.Context) {
	products, err := h.products.List(c.Request.Context())
	if err != nil {
		Fail(c, apperrors.NewDatabaseError(err))
		return
	}

	OK(c, products)
}

type productRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Active      *bool  `json:"active"`
}

// Create adds a product at the end of the display order.
func (h *ProductHandler) Create(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		FailValidation(c, "неверное тело запроса")
		return
	}
	if req.Price < 0 {
		FailValidation(c, "price must not be negative")
		return
	}

	product := &domain.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Active:      req.Active == nil || *req.Active,
		CreatedAt:   time.Now().UTC(),
	}

	if err := h.products.Create(c.Request.Context(), product); err != nil {
		Fail(c, apperrors.NewDatabaseError(err))
		return
	}

	Created(c, product)
}

// Update edits a product in place.
func (h *ProductHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		FailValidation(c, "неверное тело запроса")
		return
	}

	current, err := h.products.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, mapRepoErr(err, "product"))
		return
	}

	current.Name = req.Name
	current.Description = req.Description
	current.Price = req.Price
	if req.Active != nil {
		current.Active = *req.Active
	}

	updated, err := h.products.Update(c.Request.Context(), current)
	if err != nil {
		Fail(c, mapRepoErr(err, "product"))
		return
	}

	OK(c, updated)
}

// Delete removes a product and its stored image.
func (h *ProductHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	current, err := h.products.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, mapRepoErr(err, "product"))
		return
	}

	if err := h.products.Delete(c.Request.Context(), id); err != nil {
		Fail(c, mapRepoErr(err, "product"))
		return
	}

	_ = h.uploads.Remove(current.ImageURL)

	OK(c, gin.H{"deleted": true})
}

type reorderRequest struct {
	OrderedIDs []int64 `json:"orderedIds" binding:"required"`
}

// Reorder rewrites the display order of the whole product list.
func (h *ProductHandler) Reorder(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		FailValidation(c, "неверное тело запроса")
		return
	}
	if len(req.OrderedIDs) == 0 {
		FailValidation(c, "orderedIds must not be empty")
		return
	}

	if err := h.products.Reorder(c.Request.Context(), req.OrderedIDs); err != nil {
		Fail(c, apperrors.NewDatabaseError(err))
		return
	}

	OK(c, gin.H{"reordered": true})
}

// UploadImage stores a product image and records its file name.
func (h *ProductHandler) UploadImage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("image")
	if err != nil {
		FailValidation(c, "image file is required")
		return
	}

	name, err := h.uploads.SaveImage(fh, "product")
	if err != nil {
		Fail(c, err)
		return
	}

	updated, err := h.products.SetImage(c.Request.Context(), id, name)
	if err != nil {
		_ = h.uploads.Remove(name)
		Fail(c, mapRepoErr(err, "product"))
		return
	}

	OK(c, updated)
}

// RecentClaims lists the latest purchase requests across all products.
func (h *ProductHandler) RecentClaims(c *gin.Context) {
	claims, err := h.products.RecentClaims(c.Request.Context(), queryInt(c, "limit", 10))
	if err != nil {
		Fail(c, apperrors.NewDatabaseError(err))
		return
	}

	OK(c, claims)
}

// ClaimsByProduct lists purchase requests for one product.
func (h *ProductHandler) ClaimsByProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	claims, err := h.products.ClaimsByProduct(c.Request.Context(), id)
	if err != nil {
		Fail(c, apperrors.NewDatabaseError(err))
		return
	}

	OK(c, claims)
}

type claimStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

// UpdateClaimStatus moves a purchase request between pending, completed and
// cancelled.
func (h *ProductHandler) UpdateClaimStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req claimStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		FailValidation(c, "неверное тело запроса")
		return
	}

	status := domain.ClaimStatus(req.Status)
	switch status {
	case domain.ClaimPending, domain.ClaimCompleted, domain.ClaimCancelled:
	default:
		FailValidation(c, "unknown claim status: "+req.Status)
		return
	}

	claim, err := h.products.UpdateClaimStatus(c.Request.Context(), id, status, req.Note)
	if err != nil {
		Fail(c, mapRepoErr(err, "claim"))
		return
	}

	OK(c, claim)
}

func mapRepoErr(err error, entity string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFoundError(entity)
	}
	return apperrors.NewDatabaseError(err)
}

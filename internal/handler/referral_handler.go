package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coinrush-app/coinrush-backend/internal/domain"
	apperrors "github.com/coinrush-app/coinrush-backend/internal/errors"
	"github.com/coinrush-app/coinrush-backend/internal/repository"
)

// ReferralHandler records referral attributions reported by the game client.
type ReferralHandler struct {
	referrals repository.ReferralRepository
}

func NewReferralHandler(referrals repository.ReferralRepository) *ReferralHandler {
	return &ReferralHandler{referrals: referrals}
}

type createReferralRequest struct {
	ReferrerID int64  `json:"referrerId" binding:"required"`
	UserID     int64  `json:"userId" binding:"required"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Username   string `json:"username"`
}

// Create stores an attribution. Each invited user counts once, repeat posts
// and self-referrals are acknowledged without creating a record.
func (h *ReferralHandler) Create(c *gin.Context) {
	var req createReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		FailValidation(c, "неверное тело запроса")
		return
	}

	if req.ReferrerID == req.UserID {
		OK(c, gin.H{"created": false})
		return
	}

	created, err := h.referrals.Create(c.Request.Context(), &domain.Referral{
		ReferrerID: req.ReferrerID,
		UserID:     req.UserID,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Username:   req.Username,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		Fail(c, apperrors.NewDatabaseError(err))
		return
	}

	OK(c, gin.H{"created": created})
}

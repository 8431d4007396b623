package domain

import "time"

// ClaimStatus describes the processing state of a product claim.
type ClaimStatus string

const (
	ClaimPending   ClaimStatus = "pending"
	ClaimCompleted ClaimStatus = "completed"
	ClaimCancelled ClaimStatus = "cancelled"
)

// Product is a reward item claimable from the in-game shop.
type Product struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Price       int64        `json:"price"`
	ImageURL    string       `json:"imageUrl"`
	Active      bool         `json:"active"`
	Order       int          `json:"order"`
	Stats       ProductStats `json:"stats"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// ProductStats counts claims against a product.
type ProductStats struct {
	Claims          int `json:"claims"`
	CompletedClaims int `json:"completedClaims"`
	CancelledClaims int `json:"cancelledClaims"`
}

// ProductClaim is a user's request to redeem a product.
type ProductClaim struct {
	ID        int64       `json:"id"`
	ProductID int64       `json:"productId"`
	UserID    int64       `json:"userId"`
	Status    ClaimStatus `json:"status"`
	Note      string      `json:"note"`
	Product   *Product    `json:"product,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

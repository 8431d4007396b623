package domain

import "time"

// Referral records that UserID was referred by ReferrerID, together with a
// snapshot of the referred user's profile fields at signup time. At most one
// record exists per referred user.
type Referral struct {
	ID         int64     `json:"id"`
	ReferrerID int64     `json:"referrerId"`
	UserID     int64     `json:"userId"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Username   string    `json:"username"`
	CreatedAt  time.Time `json:"createdAt"`
}

package domain

import "time"

// WishlistEntry is one saved product; (UserID, ProductID) is unique.
type WishlistEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ProductID string    `json:"productId"`
	AddedAt   time.Time `json:"addedAt"`
}

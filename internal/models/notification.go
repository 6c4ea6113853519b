package models

import "time"

/** --------------------ENTITIES-------------------- */
// Notification is a server-side notification as returned by the durable API.
// IsRead is the only field mutated locally.
type Notification struct {
	ID         uint      `json:"id"`
	UserID     string    `json:"userId"`
	Type       string    `json:"type"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	IsRead     bool      `json:"isRead"`
	RelatedURL *string   `json:"relatedUrl,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

/** -------------------- DTOs -------------------- */
// Request
type SendNotificationRequest struct {
	UserID     string  `json:"userId" binding:"required"`
	Type       string  `json:"type" binding:"required"`
	Title      string  `json:"title" binding:"required"`
	Message    string  `json:"message"`
	RelatedURL *string `json:"relatedUrl,omitempty"`
}

// Response
type NotificationListResponse struct {
	Items []Notification `json:"items"`
	Total int            `json:"total"`
}

type UnreadCountResponse struct {
	Count int `json:"count"`
}

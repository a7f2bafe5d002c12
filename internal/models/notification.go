package models

import "time"

// NotificationType categorises notifications.
type NotificationType string

const (
	NotificationFriendRequest    NotificationType = "friend_request"
	NotificationFriendAccepted   NotificationType = "friend_accepted"
	NotificationDocumentShared   NotificationType = "document_shared"
	NotificationOfficialDocument NotificationType = "official_document"
	NotificationSystem           NotificationType = "system"
)

// Notification is a message delivered to a single user.
type Notification struct {
	ID                string           `db:"id" json:"id"`
	UserID            string           `db:"user_id" json:"user_id"`
	Type              NotificationType `db:"type" json:"type"`
	Title             string           `db:"title" json:"title"`
	Message           string           `db:"message" json:"message"`
	RelatedUserID     *string          `db:"related_user_id" json:"related_user_id,omitempty"`
	RelatedDocumentID *string          `db:"related_document_id" json:"related_document_id,omitempty"`
	IsRead            bool             `db:"is_read" json:"is_read"`
	ReadAt            *time.Time       `db:"read_at" json:"read_at,omitempty"`
	CreatedAt         time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter narrows a user's notification listing.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Page       int
	PageSize   int
}

package dto

import "github.com/noah-isme/safedocs-api/internal/models"

// SendFriendRequest addresses a new friend request.
type SendFriendRequest struct {
	ReceiverID string `json:"receiverId" validate:"required,uuid"`
}

// RespondFriendRequest accepts or rejects a pending request.
type RespondFriendRequest struct {
	RequestID string `json:"requestId" validate:"required,uuid"`
}

// RemoveFriendRequest names the friend to remove.
type RemoveFriendRequest struct {
	FriendID string `json:"friendId" validate:"required,uuid"`
}

// FriendStatusResponse describes the relationship with another user.
type FriendStatusResponse struct {
	UserID string              `json:"user_id"`
	Status models.FriendStatus `json:"status"`
}

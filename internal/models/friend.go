package models

import "time"

// FriendRequestStatus is the lifecycle state of a friend request.
type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestRejected FriendRequestStatus = "rejected"
)

// FriendRequest is a directed invitation from sender to receiver.
type FriendRequest struct {
	ID         string              `db:"id" json:"id"`
	SenderID   string              `db:"sender_id" json:"sender_id"`
	ReceiverID string              `db:"receiver_id" json:"receiver_id"`
	Status     FriendRequestStatus `db:"status" json:"status"`
	CreatedAt  time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time           `db:"updated_at" json:"updated_at"`
}

// FriendRequestView is a request joined with the other party's profile.
type FriendRequestView struct {
	FriendRequest
	Sender   *PublicProfile `json:"sender,omitempty"`
	Receiver *PublicProfile `json:"receiver,omitempty"`
}

// Friendship is an undirected edge stored with User1ID < User2ID.
type Friendship struct {
	ID        string    `db:"id" json:"id"`
	User1ID   string    `db:"user1_id" json:"user1_id"`
	User2ID   string    `db:"user2_id" json:"user2_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Friend is a friend's public profile with the date the edge was created.
type Friend struct {
	PublicProfile
	FriendsSince time.Time `db:"friends_since" json:"friends_since"`
}

// CanonicalPair orders two user ids so that the same pair always maps to the
// same friendship row.
func CanonicalPair(a, b string) (lo, hi string) {
	if a < b {
		return a, b
	}
	return b, a
}

// FriendStatus describes the relationship between the caller and another user.
type FriendStatus string

const (
	FriendStatusFriend   FriendStatus = "friend"
	FriendStatusSent     FriendStatus = "sent"
	FriendStatusReceived FriendStatus = "received"
	FriendStatusNone     FriendStatus = "none"
)

// UserSearchResult annotates a profile with the caller's relationship to it.
type UserSearchResult struct {
	PublicProfile
	Status FriendStatus `json:"status"`
}

// FriendSuggestion is a ranked candidate for a new friendship.
type FriendSuggestion struct {
	PublicProfile
	MutualFriends int    `db:"mutual_friends" json:"mutual_friends"`
	Reason        string `db:"reason" json:"reason"`
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/safedocs-api/internal/models"
)

const requestColumns = `fr.id, fr.sender_id, fr.receiver_id, fr.status, fr.created_at, fr.updated_at`

const otherProfileColumns = `u.id AS other_id, u.email AS other_email, u.full_name AS other_full_name, u.career AS other_career,
       u.profile_picture AS other_profile_picture, u.is_online AS other_is_online, u.last_seen AS other_last_seen`

// FriendRepository stores friend requests and the canonical friendship edges.
type FriendRepository struct {
	db *sqlx.DB
}

// NewFriendRepository creates a friend repository.
func NewFriendRepository(db *sqlx.DB) *FriendRepository {
	return &FriendRepository{db: db}
}

type requestWithProfile struct {
	models.FriendRequest
	OtherID             string     `db:"other_id"`
	OtherEmail          string     `db:"other_email"`
	OtherFullName       string     `db:"other_full_name"`
	OtherCareer         string     `db:"other_career"`
	OtherProfilePicture string     `db:"other_profile_picture"`
	OtherIsOnline       bool       `db:"other_is_online"`
	OtherLastSeen       *time.Time `db:"other_last_seen"`
}

func (r requestWithProfile) profile() *models.PublicProfile {
	return &models.PublicProfile{
		ID:             r.OtherID,
		Email:          r.OtherEmail,
		FullName:       r.OtherFullName,
		Career:         r.OtherCareer,
		ProfilePicture: r.OtherProfilePicture,
		IsOnline:       r.OtherIsOnline,
		LastSeen:       r.OtherLastSeen,
	}
}

// CreateRequest persists a new request. The ordered pair is unique, so a
// concurrent duplicate yields ErrDuplicate.
func (r *FriendRepository) CreateRequest(ctx context.Context, req *models.FriendRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now
	if req.Status == "" {
		req.Status = models.FriendRequestPending
	}
	const query = `INSERT INTO friend_requests (id, sender_id, receiver_id, status, created_at, updated_at)
VALUES (:id, :sender_id, :receiver_id, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return mapUniqueViolation(err, "create friend request")
	}
	return nil
}

// FindRequestByID returns a request by id.
func (r *FriendRepository) FindRequestByID(ctx context.Context, id string) (*models.FriendRequest, error) {
	const query = `SELECT id, sender_id, receiver_id, status, created_at, updated_at FROM friend_requests WHERE id = $1`
	var req models.FriendRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find friend request: %w", err)
	}
	return &req, nil
}

// FindRequestBetween returns the most recent request between a and b in
// either direction and with any status.
func (r *FriendRepository) FindRequestBetween(ctx context.Context, a, b string) (*models.FriendRequest, error) {
	const query = `SELECT id, sender_id, receiver_id, status, created_at, updated_at FROM friend_requests
WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
ORDER BY created_at DESC LIMIT 1`
	var req models.FriendRequest
	if err := r.db.GetContext(ctx, &req, query, a, b); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find friend request between users: %w", err)
	}
	return &req, nil
}

// AcceptRequest moves a pending request addressed to receiverID to accepted
// and creates the canonical friendship in the same transaction. A request that
// is no longer pending yields ErrStaleState and nothing is written.
func (r *FriendRepository) AcceptRequest(ctx context.Context, requestID, receiverID string) (*models.Friendship, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin accept friend request: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	var senderID string
	err = tx.GetContext(ctx, &senderID, `UPDATE friend_requests SET status = $4, updated_at = $5
WHERE id = $1 AND receiver_id = $2 AND status = $3
RETURNING sender_id`, requestID, receiverID, models.FriendRequestPending, models.FriendRequestAccepted, now)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrStaleState
			return nil, err
		}
		err = fmt.Errorf("transition friend request: %w", err)
		return nil, err
	}

	// an existing edge for the pair is kept and returned as stored
	lo, hi := models.CanonicalPair(senderID, receiverID)
	var friendship models.Friendship
	if err = tx.GetContext(ctx, &friendship, `INSERT INTO friendships (id, user1_id, user2_id, created_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (user1_id, user2_id) DO UPDATE SET user1_id = EXCLUDED.user1_id
RETURNING id, user1_id, user2_id, created_at`, uuid.NewString(), lo, hi, now); err != nil {
		err = fmt.Errorf("create friendship: %w", err)
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("commit accept friend request: %w", err)
		return nil, err
	}
	return &friendship, nil
}

// RejectRequest moves a pending request addressed to receiverID to rejected.
func (r *FriendRepository) RejectRequest(ctx context.Context, requestID, receiverID string) error {
	const query = `UPDATE friend_requests SET status = $4, updated_at = $5
WHERE id = $1 AND receiver_id = $2 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, requestID, receiverID, models.FriendRequestPending, models.FriendRequestRejected, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("reject friend request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reject friend request rows affected: %w", err)
	}
	if affected == 0 {
		return ErrStaleState
	}
	return nil
}

// ListPendingReceived returns pending requests addressed to userID with the
// sender's public profile.
func (r *FriendRepository) ListPendingReceived(ctx context.Context, userID string) ([]models.FriendRequestView, error) {
	query := `SELECT ` + requestColumns + `, ` + otherProfileColumns + `
FROM friend_requests fr
JOIN users u ON u.id = fr.sender_id
WHERE fr.receiver_id = $1 AND fr.status = $2 AND u.active = TRUE
ORDER BY fr.created_at DESC`
	var rows []requestWithProfile
	if err := r.db.SelectContext(ctx, &rows, query, userID, models.FriendRequestPending); err != nil {
		return nil, fmt.Errorf("list received friend requests: %w", err)
	}
	views := make([]models.FriendRequestView, 0, len(rows))
	for _, row := range rows {
		views = append(views, models.FriendRequestView{FriendRequest: row.FriendRequest, Sender: row.profile()})
	}
	return views, nil
}

// ListPendingSent returns pending requests sent by userID with the receiver's
// public profile.
func (r *FriendRepository) ListPendingSent(ctx context.Context, userID string) ([]models.FriendRequestView, error) {
	query := `SELECT ` + requestColumns + `, ` + otherProfileColumns + `
FROM friend_requests fr
JOIN users u ON u.id = fr.receiver_id
WHERE fr.sender_id = $1 AND fr.status = $2
ORDER BY fr.created_at DESC`
	var rows []requestWithProfile
	if err := r.db.SelectContext(ctx, &rows, query, userID, models.FriendRequestPending); err != nil {
		return nil, fmt.Errorf("list sent friend requests: %w", err)
	}
	views := make([]models.FriendRequestView, 0, len(rows))
	for _, row := range rows {
		views = append(views, models.FriendRequestView{FriendRequest: row.FriendRequest, Receiver: row.profile()})
	}
	return views, nil
}

// CreateFriendship stores the canonical edge for a and b.
func (r *FriendRepository) CreateFriendship(ctx context.Context, a, b string) (*models.Friendship, error) {
	lo, hi := models.CanonicalPair(a, b)
	friendship := &models.Friendship{ID: uuid.NewString(), User1ID: lo, User2ID: hi, CreatedAt: time.Now().UTC()}
	const query = `INSERT INTO friendships (id, user1_id, user2_id, created_at) VALUES (:id, :user1_id, :user2_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, friendship); err != nil {
		return nil, mapUniqueViolation(err, "create friendship")
	}
	return friendship, nil
}

// AreFriends reports whether an edge exists between a and b.
func (r *FriendRepository) AreFriends(ctx context.Context, a, b string) (bool, error) {
	lo, hi := models.CanonicalPair(a, b)
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM friendships WHERE user1_id = $1 AND user2_id = $2)`, lo, hi); err != nil {
		return false, fmt.Errorf("check friendship: %w", err)
	}
	return exists, nil
}

// ListFriends returns the other party of every edge touching userID. Edges
// whose other user no longer resolves to an active account are skipped.
func (r *FriendRepository) ListFriends(ctx context.Context, userID string, onlineOnly bool) ([]models.Friend, error) {
	query := `SELECT u.id, u.email, u.full_name, u.career, u.profile_picture, u.is_online, u.last_seen, f.created_at AS friends_since
FROM friendships f
JOIN users u ON u.id = CASE WHEN f.user1_id = $1 THEN f.user2_id ELSE f.user1_id END
WHERE (f.user1_id = $1 OR f.user2_id = $1) AND u.id <> $1 AND u.active = TRUE`
	if onlineOnly {
		query += ` AND u.is_online = TRUE`
	}
	query += ` ORDER BY u.full_name ASC`

	var friends []models.Friend
	if err := r.db.SelectContext(ctx, &friends, query, userID); err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	return friends, nil
}

// FriendIDsAmong returns the subset of ids that are friends of userID.
func (r *FriendRepository) FriendIDsAmong(ctx context.Context, userID string, ids []string) (map[string]bool, error) {
	result := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	const query = `SELECT CASE WHEN user1_id = $1 THEN user2_id ELSE user1_id END
FROM friendships
WHERE (user1_id = $1 AND user2_id = ANY($2)) OR (user2_id = $1 AND user1_id = ANY($2))`
	var friendIDs []string
	if err := r.db.SelectContext(ctx, &friendIDs, query, userID, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list friend ids: %w", err)
	}
	for _, id := range friendIDs {
		result[id] = true
	}
	return result, nil
}

// PendingAmong returns the pending request status between userID and each of
// ids that has one, from userID's point of view.
func (r *FriendRepository) PendingAmong(ctx context.Context, userID string, ids []string) (map[string]models.FriendStatus, error) {
	result := make(map[string]models.FriendStatus, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	const query = `SELECT sender_id, receiver_id FROM friend_requests
WHERE status = $3 AND ((sender_id = $1 AND receiver_id = ANY($2)) OR (receiver_id = $1 AND sender_id = ANY($2)))`
	var rows []struct {
		SenderID   string `db:"sender_id"`
		ReceiverID string `db:"receiver_id"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, userID, pq.Array(ids), models.FriendRequestPending); err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	for _, row := range rows {
		if row.SenderID == userID {
			result[row.ReceiverID] = models.FriendStatusSent
		} else {
			result[row.SenderID] = models.FriendStatusReceived
		}
	}
	return result, nil
}

// RemoveFriendship deletes the edge between a and b. sql.ErrNoRows is
// returned when there is none. Historical requests are kept.
func (r *FriendRepository) RemoveFriendship(ctx context.Context, a, b string) error {
	lo, hi := models.CanonicalPair(a, b)
	res, err := r.db.ExecContext(ctx, `DELETE FROM friendships WHERE user1_id = $1 AND user2_id = $2`, lo, hi)
	if err != nil {
		return fmt.Errorf("remove friendship: %w", err)
	}
	return requireAffected(res, "remove friendship")
}

// Suggestions ranks friends of friends by mutual count, then users sharing the
// caller's career. Existing friends and anyone with a request either way are
// excluded.
func (r *FriendRepository) Suggestions(ctx context.Context, userID, career string, limit int) ([]models.FriendSuggestion, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	const query = `WITH my_friends AS (
    SELECT CASE WHEN user1_id = $1 THEN user2_id ELSE user1_id END AS id
    FROM friendships WHERE user1_id = $1 OR user2_id = $1
), excluded AS (
    SELECT id FROM my_friends
    UNION SELECT receiver_id FROM friend_requests WHERE sender_id = $1
    UNION SELECT sender_id FROM friend_requests WHERE receiver_id = $1
), mutual AS (
    SELECT CASE WHEN f.user1_id = m.id THEN f.user2_id ELSE f.user1_id END AS candidate, COUNT(*) AS mutual_friends
    FROM friendships f
    JOIN my_friends m ON f.user1_id = m.id OR f.user2_id = m.id
    GROUP BY 1
)
SELECT u.id, u.email, u.full_name, u.career, u.profile_picture, u.is_online, u.last_seen,
       COALESCE(mu.mutual_friends, 0) AS mutual_friends,
       CASE WHEN mu.candidate IS NOT NULL THEN 'mutual_friends' ELSE 'same_career' END AS reason
FROM users u
LEFT JOIN mutual mu ON mu.candidate = u.id
WHERE u.active = TRUE
  AND u.id <> $1
  AND u.id NOT IN (SELECT id FROM excluded)
  AND (mu.candidate IS NOT NULL OR ($2 <> '' AND LOWER(u.career) = LOWER($2)))
ORDER BY mutual_friends DESC, u.full_name ASC
LIMIT $3`
	var suggestions []models.FriendSuggestion
	if err := r.db.SelectContext(ctx, &suggestions, query, userID, career, limit); err != nil {
		return nil, fmt.Errorf("friend suggestions: %w", err)
	}
	return suggestions, nil
}

// CountFriendships returns the number of friendship edges.
func (r *FriendRepository) CountFriendships(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM friendships`); err != nil {
		return 0, fmt.Errorf("count friendships: %w", err)
	}
	return total, nil
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/safedocs-api/internal/dto"
	"github.com/noah-isme/safedocs-api/internal/models"
	"github.com/noah-isme/safedocs-api/internal/repository"
	appErrors "github.com/noah-isme/safedocs-api/pkg/errors"
)

type friendRepository interface {
	CreateRequest(ctx context.Context, req *models.FriendRequest) error
	FindRequestByID(ctx context.Context, id string) (*models.FriendRequest, error)
	FindRequestBetween(ctx context.Context, a, b string) (*models.FriendRequest, error)
	AcceptRequest(ctx context.Context, requestID, receiverID string) (*models.Friendship, error)
	RejectRequest(ctx context.Context, requestID, receiverID string) error
	ListPendingReceived(ctx context.Context, userID string) ([]models.FriendRequestView, error)
	ListPendingSent(ctx context.Context, userID string) ([]models.FriendRequestView, error)
	AreFriends(ctx context.Context, a, b string) (bool, error)
	ListFriends(ctx context.Context, userID string, onlineOnly bool) ([]models.Friend, error)
	FriendIDsAmong(ctx context.Context, userID string, ids []string) (map[string]bool, error)
	PendingAmong(ctx context.Context, userID string, ids []string) (map[string]models.FriendStatus, error)
	RemoveFriendship(ctx context.Context, a, b string) error
	Suggestions(ctx context.Context, userID, career string, limit int) ([]models.FriendSuggestion, error)
}

type friendUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	Search(ctx context.Context, callerID, q string, limit int) ([]models.PublicProfile, error)
}

type suggestionCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
}

// FriendConfig tunes suggestion listing.
type FriendConfig struct {
	SuggestionLimit int
	SuggestionTTL   time.Duration
	SearchLimit     int
}

// FriendService runs the friend request state machine and serves the
// friendship graph.
type FriendService struct {
	friends   friendRepository
	users     friendUserRepository
	notifier  Notifier
	cache     suggestionCache
	validator *validator.Validate
	logger    *zap.Logger
	config    FriendConfig
}

// NewFriendService constructs a FriendService. notifier and cache may be nil.
func NewFriendService(friends friendRepository, users friendUserRepository, notifier Notifier, cache suggestionCache, validate *validator.Validate, logger *zap.Logger, config FriendConfig) *FriendService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if config.SuggestionLimit <= 0 {
		config.SuggestionLimit = 10
	}
	if config.SuggestionTTL <= 0 {
		config.SuggestionTTL = 10 * time.Minute
	}
	if config.SearchLimit <= 0 {
		config.SearchLimit = 20
	}
	return &FriendService{
		friends:   friends,
		users:     users,
		notifier:  notifier,
		cache:     cache,
		validator: validate,
		logger:    logger,
		config:    config,
	}
}

// SendRequest creates a pending request from senderID to the receiver. Any
// earlier request between the pair, whatever its status, blocks a new one.
func (s *FriendService) SendRequest(ctx context.Context, senderID string, req dto.SendFriendRequest) (*models.FriendRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid friend request payload")
	}
	if req.ReceiverID == senderID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot send a friend request to yourself")
	}

	receiver, err := s.users.FindByID(ctx, req.ReceiverID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if !receiver.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}

	friends, err := s.friends.AreFriends(ctx, senderID, receiver.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check friendship")
	}
	if friends {
		return nil, appErrors.Clone(appErrors.ErrConflict, "you are already friends")
	}

	if _, err := s.friends.FindRequestBetween(ctx, senderID, receiver.ID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a friend request already exists between these users")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing requests")
	}

	request := &models.FriendRequest{SenderID: senderID, ReceiverID: receiver.ID, Status: models.FriendRequestPending}
	if err := s.friends.CreateRequest(ctx, request); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a friend request already exists between these users")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create friend request")
	}

	s.notify(ctx, models.Notification{
		UserID:        receiver.ID,
		Type:          models.NotificationFriendRequest,
		Title:         "New friend request",
		Message:       fmt.Sprintf("%s sent you a friend request", s.displayName(ctx, senderID)),
		RelatedUserID: &senderID,
	})
	s.invalidateSuggestions(ctx, senderID, receiver.ID)
	return request, nil
}

// AcceptRequest accepts a pending request addressed to actorID and creates the
// friendship. Errors are checked in the order not found, forbidden, conflict.
func (s *FriendService) AcceptRequest(ctx context.Context, actorID string, req dto.RespondFriendRequest) (*models.Friendship, error) {
	request, err := s.pendingFor(ctx, actorID, req)
	if err != nil {
		return nil, err
	}

	friendship, err := s.friends.AcceptRequest(ctx, request.ID, actorID)
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "friend request already processed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to accept friend request")
	}

	s.notify(ctx, models.Notification{
		UserID:        request.SenderID,
		Type:          models.NotificationFriendAccepted,
		Title:         "Friend request accepted",
		Message:       fmt.Sprintf("%s accepted your friend request", s.displayName(ctx, actorID)),
		RelatedUserID: &actorID,
	})
	s.invalidateSuggestions(ctx, request.SenderID, actorID)
	return friendship, nil
}

// RejectRequest rejects a pending request addressed to actorID.
func (s *FriendService) RejectRequest(ctx context.Context, actorID string, req dto.RespondFriendRequest) error {
	request, err := s.pendingFor(ctx, actorID, req)
	if err != nil {
		return err
	}

	if err := s.friends.RejectRequest(ctx, request.ID, actorID); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return appErrors.Clone(appErrors.ErrConflict, "friend request already processed")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject friend request")
	}
	return nil
}

func (s *FriendService) pendingFor(ctx context.Context, actorID string, req dto.RespondFriendRequest) (*models.FriendRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid friend request payload")
	}
	request, err := s.friends.FindRequestByID(ctx, req.RequestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "friend request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load friend request")
	}
	if request.ReceiverID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the receiver can respond to this request")
	}
	if request.Status != models.FriendRequestPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "friend request already processed")
	}
	return request, nil
}

// ListPending returns pending requests addressed to userID.
func (s *FriendService) ListPending(ctx context.Context, userID string) ([]models.FriendRequestView, error) {
	requests, err := s.friends.ListPendingReceived(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list friend requests")
	}
	return requests, nil
}

// ListSent returns pending requests sent by userID.
func (s *FriendService) ListSent(ctx context.Context, userID string) ([]models.FriendRequestView, error) {
	requests, err := s.friends.ListPendingSent(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sent friend requests")
	}
	return requests, nil
}

// ListFriends returns userID's friends.
func (s *FriendService) ListFriends(ctx context.Context, userID string) ([]models.Friend, error) {
	return s.listFriends(ctx, userID, false)
}

// ListOnlineFriends returns userID's friends that are currently online.
func (s *FriendService) ListOnlineFriends(ctx context.Context, userID string) ([]models.Friend, error) {
	return s.listFriends(ctx, userID, true)
}

func (s *FriendService) listFriends(ctx context.Context, userID string, onlineOnly bool) ([]models.Friend, error) {
	friends, err := s.friends.ListFriends(ctx, userID, onlineOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list friends")
	}
	out := make([]models.Friend, 0, len(friends))
	for _, f := range friends {
		if f.ID == "" || f.ID == userID {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

// RemoveFriend deletes the friendship between userID and the named friend.
func (s *FriendService) RemoveFriend(ctx context.Context, userID string, req dto.RemoveFriendRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid remove friend payload")
	}
	if req.FriendID == userID {
		return appErrors.Clone(appErrors.ErrValidation, "cannot remove yourself")
	}
	if err := s.friends.RemoveFriendship(ctx, userID, req.FriendID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "friendship not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove friend")
	}
	s.invalidateSuggestions(ctx, userID, req.FriendID)
	return nil
}

// Status describes the relationship between callerID and otherID.
func (s *FriendService) Status(ctx context.Context, callerID, otherID string) (*dto.FriendStatusResponse, error) {
	parsed, err := uuid.Parse(otherID)
	if err != nil {
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrValidation, "invalid user id"),
			[]appErrors.FieldError{{Field: "userId", Message: "must be a valid identifier"}},
		)
	}
	// canonical pairs and stored ids are lowercase hyphenated
	otherID = parsed.String()
	resp := &dto.FriendStatusResponse{UserID: otherID, Status: models.FriendStatusNone}
	if otherID == callerID {
		return resp, nil
	}

	friends, err := s.friends.AreFriends(ctx, callerID, otherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check friendship")
	}
	if friends {
		resp.Status = models.FriendStatusFriend
		return resp, nil
	}

	pending, err := s.friends.PendingAmong(ctx, callerID, []string{otherID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check friend requests")
	}
	if status, ok := pending[otherID]; ok {
		resp.Status = status
	}
	return resp, nil
}

// Search finds active users matching q, annotated with their relationship to callerID.
func (s *FriendService) Search(ctx context.Context, callerID, q string) ([]models.UserSearchResult, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrValidation, "search query required"),
			[]appErrors.FieldError{{Field: "q", Message: "is required"}},
		)
	}

	profiles, err := s.users.Search(ctx, callerID, q, s.config.SearchLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search users")
	}
	ids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.ID)
	}

	friendIDs, err := s.friends.FriendIDsAmong(ctx, callerID, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check friendships")
	}
	pending, err := s.friends.PendingAmong(ctx, callerID, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check friend requests")
	}

	results := make([]models.UserSearchResult, 0, len(profiles))
	for _, p := range profiles {
		status := models.FriendStatusNone
		if friendIDs[p.ID] {
			status = models.FriendStatusFriend
		} else if st, ok := pending[p.ID]; ok {
			status = st
		}
		results = append(results, models.UserSearchResult{PublicProfile: p, Status: status})
	}
	return results, nil
}

// Suggestions returns ranked friend candidates for userID.
func (s *FriendService) Suggestions(ctx context.Context, userID string) ([]models.FriendSuggestion, error) {
	key := suggestionKey(userID)
	if s.cache != nil {
		var cached []models.FriendSuggestion
		if s.cache.Get(ctx, key, &cached) {
			return cached, nil
		}
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	suggestions, err := s.friends.Suggestions(ctx, userID, user.Career, s.config.SuggestionLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load suggestions")
	}
	if suggestions == nil {
		suggestions = []models.FriendSuggestion{}
	}
	if s.cache != nil {
		s.cache.Set(ctx, key, suggestions, s.config.SuggestionTTL)
	}
	return suggestions, nil
}

func (s *FriendService) notify(ctx context.Context, n models.Notification) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, n)
}

func (s *FriendService) displayName(ctx context.Context, userID string) string {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to resolve user for notification", zap.String("user_id", userID), zap.Error(err))
		return "Someone"
	}
	return user.FullName
}

func (s *FriendService) invalidateSuggestions(ctx context.Context, userIDs ...string) {
	if s.cache == nil {
		return
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = suggestionKey(id)
	}
	s.cache.Delete(ctx, keys...)
}

func suggestionKey(userID string) string {
	return "friends:suggestions:" + userID
}

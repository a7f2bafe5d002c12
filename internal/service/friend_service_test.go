package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/safedocs-api/internal/dto"
	"github.com/noah-isme/safedocs-api/internal/models"
	"github.com/noah-isme/safedocs-api/internal/repository"
)

type memoryUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemoryUsers(users ...*models.User) *memoryUsers {
	m := &memoryUsers{users: map[string]*models.User{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memoryUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

func (m *memoryUsers) Search(_ context.Context, callerID, q string, _ int) ([]models.PublicProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PublicProfile
	for _, u := range m.users {
		if u.ID == callerID || !u.Active {
			continue
		}
		if strings.Contains(strings.ToLower(u.FullName), strings.ToLower(q)) {
			out = append(out, u.Profile())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (m *memoryUsers) ListActiveIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, u := range m.users {
		if u.Active {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// memoryFriendStore mirrors the conditional update semantics of the
// PostgreSQL repository.
type memoryFriendStore struct {
	mu              sync.Mutex
	users           *memoryUsers
	requests        map[string]*models.FriendRequest
	friendships     map[[2]string]models.Friendship
	suggestionCalls int
}

func newMemoryFriendStore(users *memoryUsers) *memoryFriendStore {
	return &memoryFriendStore{
		users:       users,
		requests:    map[string]*models.FriendRequest{},
		friendships: map[[2]string]models.Friendship{},
	}
}

func (m *memoryFriendStore) CreateRequest(_ context.Context, req *models.FriendRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.requests {
		if existing.SenderID == req.SenderID && existing.ReceiverID == req.ReceiverID {
			return repository.ErrDuplicate
		}
	}
	req.ID = uuid.NewString()
	req.CreatedAt = time.Now().UTC()
	clone := *req
	m.requests[req.ID] = &clone
	return nil
}

func (m *memoryFriendStore) FindRequestByID(_ context.Context, id string) (*models.FriendRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *req
	return &clone, nil
}

func (m *memoryFriendStore) FindRequestBetween(_ context.Context, a, b string) (*models.FriendRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, req := range m.requests {
		if (req.SenderID == a && req.ReceiverID == b) || (req.SenderID == b && req.ReceiverID == a) {
			clone := *req
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryFriendStore) AcceptRequest(_ context.Context, requestID, receiverID string) (*models.Friendship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[requestID]
	if !ok || req.ReceiverID != receiverID || req.Status != models.FriendRequestPending {
		return nil, repository.ErrStaleState
	}
	req.Status = models.FriendRequestAccepted
	lo, hi := models.CanonicalPair(req.SenderID, req.ReceiverID)
	key := [2]string{lo, hi}
	if existing, ok := m.friendships[key]; ok {
		return &existing, nil
	}
	f := models.Friendship{ID: uuid.NewString(), User1ID: lo, User2ID: hi, CreatedAt: time.Now().UTC()}
	m.friendships[key] = f
	return &f, nil
}

func (m *memoryFriendStore) RejectRequest(_ context.Context, requestID, receiverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[requestID]
	if !ok || req.ReceiverID != receiverID || req.Status != models.FriendRequestPending {
		return repository.ErrStaleState
	}
	req.Status = models.FriendRequestRejected
	return nil
}

func (m *memoryFriendStore) pending(match func(*models.FriendRequest) (string, bool)) []models.FriendRequestView {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.FriendRequestView
	for _, req := range m.requests {
		other, ok := match(req)
		if !ok || req.Status != models.FriendRequestPending {
			continue
		}
		u, err := m.users.FindByID(context.Background(), other)
		if err != nil {
			continue
		}
		profile := u.Profile()
		out = append(out, models.FriendRequestView{FriendRequest: *req, Sender: &profile})
	}
	return out
}

func (m *memoryFriendStore) ListPendingReceived(_ context.Context, userID string) ([]models.FriendRequestView, error) {
	return m.pending(func(r *models.FriendRequest) (string, bool) { return r.SenderID, r.ReceiverID == userID }), nil
}

func (m *memoryFriendStore) ListPendingSent(_ context.Context, userID string) ([]models.FriendRequestView, error) {
	return m.pending(func(r *models.FriendRequest) (string, bool) { return r.ReceiverID, r.SenderID == userID }), nil
}

func (m *memoryFriendStore) AreFriends(_ context.Context, a, b string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lo, hi := models.CanonicalPair(a, b)
	_, ok := m.friendships[[2]string{lo, hi}]
	return ok, nil
}

func (m *memoryFriendStore) ListFriends(_ context.Context, userID string, onlineOnly bool) ([]models.Friend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Friend
	for _, f := range m.friendships {
		other := ""
		switch userID {
		case f.User1ID:
			other = f.User2ID
		case f.User2ID:
			other = f.User1ID
		default:
			continue
		}
		u, err := m.users.FindByID(context.Background(), other)
		if err != nil || (onlineOnly && !u.IsOnline) {
			continue
		}
		out = append(out, models.Friend{PublicProfile: u.Profile(), FriendsSince: f.CreatedAt})
	}
	return out, nil
}

func (m *memoryFriendStore) FriendIDsAmong(ctx context.Context, userID string, ids []string) (map[string]bool, error) {
	out := map[string]bool{}
	for _, id := range ids {
		if ok, _ := m.AreFriends(ctx, userID, id); ok {
			out[id] = true
		}
	}
	return out, nil
}

func (m *memoryFriendStore) PendingAmong(_ context.Context, userID string, ids []string) (map[string]models.FriendStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := map[string]bool{}
	for _, id := range ids {
		wanted[id] = true
	}
	out := map[string]models.FriendStatus{}
	for _, req := range m.requests {
		if req.Status != models.FriendRequestPending {
			continue
		}
		if req.SenderID == userID && wanted[req.ReceiverID] {
			out[req.ReceiverID] = models.FriendStatusSent
		}
		if req.ReceiverID == userID && wanted[req.SenderID] {
			out[req.SenderID] = models.FriendStatusReceived
		}
	}
	return out, nil
}

func (m *memoryFriendStore) RemoveFriendship(_ context.Context, a, b string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lo, hi := models.CanonicalPair(a, b)
	key := [2]string{lo, hi}
	if _, ok := m.friendships[key]; !ok {
		return sql.ErrNoRows
	}
	delete(m.friendships, key)
	return nil
}

func (m *memoryFriendStore) Suggestions(_ context.Context, userID, _ string, _ int) ([]models.FriendSuggestion, error) {
	m.mu.Lock()
	m.suggestionCalls++
	m.mu.Unlock()
	u, err := m.users.FindByID(context.Background(), userD)
	if err != nil || userID == userD {
		return nil, nil
	}
	return []models.FriendSuggestion{{PublicProfile: u.Profile(), MutualFriends: 1, Reason: "mutual_friends"}}, nil
}

type friendFixture struct {
	svc      *FriendService
	store    *memoryFriendStore
	users    *memoryUsers
	notifier *recordingNotifier
	cache    *memoryCache
}

func newFriendFixture() *friendFixture {
	users := newMemoryUsers(
		&models.User{ID: userA, Email: "ana@uni.edu", FullName: "Ana", Career: "Law", Active: true, IsOnline: true, PasswordHash: "secret-hash"},
		&models.User{ID: userB, Email: "bruno@uni.edu", FullName: "Bruno", Career: "Law", Active: true, PasswordHash: "secret-hash"},
		&models.User{ID: userC, Email: "carla@uni.edu", FullName: "Carla", Active: false},
		&models.User{ID: userD, Email: "diego@uni.edu", FullName: "Diego", Active: true},
	)
	store := newMemoryFriendStore(users)
	notifier := &recordingNotifier{}
	cache := newMemoryCache()
	svc := NewFriendService(store, users, notifier, cache, nil, zap.NewNop(), FriendConfig{})
	return &friendFixture{svc: svc, store: store, users: users, notifier: notifier, cache: cache}
}

func (f *friendFixture) send(t *testing.T, from, to string) *models.FriendRequest {
	t.Helper()
	req, err := f.svc.SendRequest(context.Background(), from, dto.SendFriendRequest{ReceiverID: to})
	require.NoError(t, err)
	return req
}

func TestFriendServiceSendRequestValidation(t *testing.T) {
	f := newFriendFixture()
	ctx := context.Background()

	_, err := f.svc.SendRequest(ctx, userA, dto.SendFriendRequest{})
	appErr := requireStatus(t, err, http.StatusBadRequest)
	require.Len(t, appErr.Details, 1)
	assert.Equal(t, "receiverId", appErr.Details[0].Field)

	_, err = f.svc.SendRequest(ctx, userA, dto.SendFriendRequest{ReceiverID: "not-a-uuid"})
	requireStatus(t, err, http.StatusBadRequest)

	_, err = f.svc.SendRequest(ctx, userA, dto.SendFriendRequest{ReceiverID: userA})
	requireStatus(t, err, http.StatusBadRequest)

	_, err = f.svc.SendRequest(ctx, userA, dto.SendFriendRequest{ReceiverID: uuid.NewString()})
	requireStatus(t, err, http.StatusNotFound)

	_, err = f.svc.SendRequest(ctx, userA, dto.SendFriendRequest{ReceiverID: userC})
	requireStatus(t, err, http.StatusNotFound)

	assert.Empty(t, f.notifier.sent)
}

func TestFriendServiceSendRequestBlocksDuplicatesBothWays(t *testing.T) {
	f := newFriendFixture()
	ctx := context.Background()

	req := f.send(t, userA, userB)
	assert.Equal(t, models.FriendRequestPending, req.Status)

	_, err := f.svc.SendRequest(ctx, userA, dto.SendFriendRequest{ReceiverID: userB})
	requireStatus(t, err, http.StatusConflict)
	_, err = f.svc.SendRequest(ctx, userB, dto.SendFriendRequest{ReceiverID: userA})
	requireStatus(t, err, http.StatusConflict)

	notes := f.notifier.forUser(userB)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationFriendRequest, notes[0].Type)
	assert.Contains(t, notes[0].Message, "Ana")
	require.NotNil(t, notes[0].RelatedUserID)
	assert.Equal(t, userA, *notes[0].RelatedUserID)
}

func TestFriendServiceAcceptCreatesCanonicalFriendship(t *testing.T) {
	f := newFriendFixture()
	ctx := context.Background()

	// userB sorts after userA, so the stored pair must be reordered.
	req := f.send(t, userB, userA)
	friendship, err := f.svc.AcceptRequest(ctx, userA, dto.RespondFriendRequest{RequestID: req.ID})
	require.NoError(t, err)
	assert.Equal(t, userA, friendship.User1ID)
	assert.Equal(t, userB, friendship.User2ID)

	ab, _ := f.store.AreFriends(ctx, userA, userB)
	ba, _ := f.store.AreFriends(ctx, userB, userA)
	assert.True(t, ab)
	assert.True(t, ba)

	friends, err := f.svc.ListFriends(ctx, userA)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, userB, friends[0].ID)
	for _, friend := range friends {
		assert.NotEqual(t, userA, friend.ID)
	}
	payload, err := json.Marshal(friends)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "secret-hash")
	assert.NotContains(t, string(payload), "password")

	accepted := f.notifier.forUser(userB)
	require.Len(t, accepted, 1)
	assert.Equal(t, models.NotificationFriendAccepted, accepted[0].Type)

	_, err = f.svc.AcceptRequest(ctx, userA, dto.RespondFriendRequest{RequestID: req.ID})
	requireStatus(t, err, http.StatusConflict)
	assert.Len(t, f.store.friendships, 1)

	_, err = f.svc.SendRequest(ctx, userA, dto.SendFriendRequest{ReceiverID: userB})
	requireStatus(t, err, http.StatusConflict)
}

func TestFriendServiceRespondErrorOrdering(t *testing.T) {
	f := newFriendFixture()
	ctx := context.Background()

	_, err := f.svc.AcceptRequest(ctx, userB, dto.RespondFriendRequest{RequestID: uuid.NewString()})
	requireStatus(t, err, http.StatusNotFound)

	req := f.send(t, userA, userB)
	_, err = f.svc.AcceptRequest(ctx, userA, dto.RespondFriendRequest{RequestID: req.ID})
	requireStatus(t, err, http.StatusForbidden)
	err = f.svc.RejectRequest(ctx, userD, dto.RespondFriendRequest{RequestID: req.ID})
	requireStatus(t, err, http.StatusForbidden)

	require.NoError(t, f.svc.RejectRequest(ctx, userB, dto.RespondFriendRequest{RequestID: req.ID}))

	// A stranger still gets forbidden on a processed request.
	_, err = f.svc.AcceptRequest(ctx, userD, dto.RespondFriendRequest{RequestID: req.ID})
	requireStatus(t, err, http.StatusForbidden)
	_, err = f.svc.AcceptRequest(ctx, userB, dto.RespondFriendRequest{RequestID: req.ID})
	requireStatus(t, err, http.StatusConflict)

	_, err = f.svc.AcceptRequest(ctx, userB, dto.RespondFriendRequest{RequestID: "bad"})
	requireStatus(t, err, http.StatusBadRequest)
}

func TestFriendServiceRejectBlocksResend(t *testing.T) {
	f := newFriendFixture()
	ctx := context.Background()

	req := f.send(t, userA, userB)
	require.NoError(t, f.svc.RejectRequest(ctx, userB, dto.RespondFriendRequest{RequestID: req.ID}))

	ok, _ := f.store.AreFriends(ctx, userA, userB)
	assert.False(t, ok)
	pending, err := f.svc.ListPending(ctx, userB)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = f.svc.SendRequest(ctx, userA, dto.SendFriendRequest{ReceiverID: userB})
	requireStatus(t, err, http.StatusConflict)
	_, err = f.svc.SendRequest(ctx, userB, dto.SendFriendRequest{ReceiverID: userA})
	requireStatus(t, err, http.StatusConflict)
}

func TestFriendServiceResendAfterRejectionAllowed(t *testing.T) {
	t.Skip("a rejected request currently blocks any new request between the pair; enable once rejected requests stop counting as duplicates")

	f := newFriendFixture()
	ctx := context.Background()
	req := f.send(t, userA, userB)
	require.NoError(t, f.svc.RejectRequest(ctx, userB, dto.RespondFriendRequest{RequestID: req.ID}))
	f.send(t, userA, userB)
}

func TestFriendServiceConcurrentResponses(t *testing.T) {
	run := func(t *testing.T, respond func(f *friendFixture, requestID string) error) {
		f := newFriendFixture()
		req := f.send(t, userA, userB)

		var wg sync.WaitGroup
		results := make([]error, 8)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = respond(f, req.ID)
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range results {
			if err == nil {
				succeeded++
				continue
			}
			requireStatus(t, err, http.StatusConflict)
		}
		assert.Equal(t, 1, succeeded)
		assert.LessOrEqual(t, len(f.store.friendships), 1)
	}

	t.Run("accept and accept", func(t *testing.T) {
		run(t, func(f *friendFixture, id string) error {
			_, err := f.svc.AcceptRequest(context.Background(), userB, dto.RespondFriendRequest{RequestID: id})
			return err
		})
	})

	t.Run("accept and reject", func(t *testing.T) {
		var n int32
		var mu sync.Mutex
		run(t, func(f *friendFixture, id string) error {
			mu.Lock()
			n++
			even := n%2 == 0
			mu.Unlock()
			if even {
				return f.svc.RejectRequest(context.Background(), userB, dto.RespondFriendRequest{RequestID: id})
			}
			_, err := f.svc.AcceptRequest(context.Background(), userB, dto.RespondFriendRequest{RequestID: id})
			return err
		})
	})
}

func TestFriendServiceRemoveFriend(t *testing.T) {
	f := newFriendFixture()
	ctx := context.Background()

	req := f.send(t, userA, userB)
	_, err := f.svc.AcceptRequest(ctx, userB, dto.RespondFriendRequest{RequestID: req.ID})
	require.NoError(t, err)

	require.NoError(t, f.svc.RemoveFriend(ctx, userB, dto.RemoveFriendRequest{FriendID: userA}))

	ok, _ := f.store.AreFriends(ctx, userA, userB)
	assert.False(t, ok)
	friends, err := f.svc.ListFriends(ctx, userA)
	require.NoError(t, err)
	assert.Empty(t, friends)

	err = f.svc.RemoveFriend(ctx, userB, dto.RemoveFriendRequest{FriendID: userA})
	requireStatus(t, err, http.StatusNotFound)

	history, err := f.store.FindRequestBetween(ctx, userA, userB)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestAccepted, history.Status)

	err = f.svc.RemoveFriend(ctx, userA, dto.RemoveFriendRequest{FriendID: userA})
	requireStatus(t, err, http.StatusBadRequest)
}

func TestFriendServiceStatus(t *testing.T) {
	f := newFriendFixture()
	ctx := context.Background()

	f.send(t, userA, userB)
	req := f.send(t, userD, userA)

	status, err := f.svc.Status(ctx, userA, userB)
	require.NoError(t, err)
	assert.Equal(t, models.FriendStatusSent, status.Status)

	status, err = f.svc.Status(ctx, userB, userA)
	require.NoError(t, err)
	assert.Equal(t, models.FriendStatusReceived, status.Status)

	_, err = f.svc.AcceptRequest(ctx, userA, dto.RespondFriendRequest{RequestID: req.ID})
	require.NoError(t, err)
	status, err = f.svc.Status(ctx, userD, userA)
	require.NoError(t, err)
	assert.Equal(t, models.FriendStatusFriend, status.Status)

	status, err = f.svc.Status(ctx, userB, userD)
	require.NoError(t, err)
	assert.Equal(t, models.FriendStatusNone, status.Status)

	_, err = f.svc.Status(ctx, userA, "nope")
	requireStatus(t, err, http.StatusBadRequest)
}

func TestFriendServiceStatusNormalizesUserID(t *testing.T) {
	f := newFriendFixture()
	ctx := context.Background()

	req := f.send(t, userD, userA)
	status, err := f.svc.Status(ctx, userA, strings.ToUpper(userD))
	require.NoError(t, err)
	assert.Equal(t, models.FriendStatusReceived, status.Status)
	assert.Equal(t, userD, status.UserID)

	_, err = f.svc.AcceptRequest(ctx, userA, dto.RespondFriendRequest{RequestID: req.ID})
	require.NoError(t, err)

	for _, raw := range []string{strings.ToUpper(userA), "{" + userA + "}", "urn:uuid:" + userA} {
		status, err = f.svc.Status(ctx, userD, raw)
		require.NoError(t, err, raw)
		assert.Equal(t, models.FriendStatusFriend, status.Status, raw)
		assert.Equal(t, userA, status.UserID, raw)
	}

	status, err = f.svc.Status(ctx, userA, strings.ToUpper(userA))
	require.NoError(t, err)
	assert.Equal(t, models.FriendStatusNone, status.Status)
}

func TestFriendServiceSearchAnnotatesStatus(t *testing.T) {
	f := newFriendFixture()
	ctx := context.Background()
	f.send(t, userA, userB)

	results, err := f.svc.Search(ctx, userA, "o")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Bruno", results[0].FullName)
	assert.Equal(t, models.FriendStatusSent, results[0].Status)
	assert.Equal(t, "Diego", results[1].FullName)
	assert.Equal(t, models.FriendStatusNone, results[1].Status)

	_, err = f.svc.Search(ctx, userA, "  ")
	requireStatus(t, err, http.StatusBadRequest)
}

func TestFriendServiceSuggestionsCached(t *testing.T) {
	f := newFriendFixture()
	ctx := context.Background()

	first, err := f.svc.Suggestions(ctx, userA)
	require.NoError(t, err)
	require.Len(t, first, 1)
	second, err := f.svc.Suggestions(ctx, userA)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.store.suggestionCalls)

	f.send(t, userA, userB)
	assert.Contains(t, f.cache.deleted, suggestionKey(userA))
	assert.Contains(t, f.cache.deleted, suggestionKey(userB))

	_, err = f.svc.Suggestions(ctx, userA)
	require.NoError(t, err)
	assert.Equal(t, 2, f.store.suggestionCalls)
}

func TestFriendServiceListOnlineFriends(t *testing.T) {
	f := newFriendFixture()
	ctx := context.Background()
	for _, other := range []string{userB, userD} {
		req := f.send(t, other, userA)
		_, err := f.svc.AcceptRequest(ctx, userA, dto.RespondFriendRequest{RequestID: req.ID})
		require.NoError(t, err)
	}
	f.users.users[userD].IsOnline = true

	online, err := f.svc.ListOnlineFriends(ctx, userA)
	require.NoError(t, err)
	require.Len(t, online, 1)
	assert.Equal(t, userD, online[0].ID)

	sent, err := f.svc.ListSent(ctx, userA)
	require.NoError(t, err)
	assert.Empty(t, sent)
}

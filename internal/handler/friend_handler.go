package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/safedocs-api/internal/dto"
	"github.com/noah-isme/safedocs-api/internal/models"
	"github.com/noah-isme/safedocs-api/pkg/response"
)

type friendService interface {
	SendRequest(ctx context.Context, senderID string, req dto.SendFriendRequest) (*models.FriendRequest, error)
	AcceptRequest(ctx context.Context, actorID string, req dto.RespondFriendRequest) (*models.Friendship, error)
	RejectRequest(ctx context.Context, actorID string, req dto.RespondFriendRequest) error
	ListPending(ctx context.Context, userID string) ([]models.FriendRequestView, error)
	ListSent(ctx context.Context, userID string) ([]models.FriendRequestView, error)
	ListFriends(ctx context.Context, userID string) ([]models.Friend, error)
	ListOnlineFriends(ctx context.Context, userID string) ([]models.Friend, error)
	RemoveFriend(ctx context.Context, userID string, req dto.RemoveFriendRequest) error
	Status(ctx context.Context, callerID, otherID string) (*dto.FriendStatusResponse, error)
	Search(ctx context.Context, callerID, q string) ([]models.UserSearchResult, error)
	Suggestions(ctx context.Context, userID string) ([]models.FriendSuggestion, error)
}

// FriendHandler exposes friend requests and friendships.
type FriendHandler struct {
	service friendService
}

// NewFriendHandler constructs the handler.
func NewFriendHandler(svc friendService) *FriendHandler {
	return &FriendHandler{service: svc}
}

// List godoc
// @Summary List friends
// @Tags Friends
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /friends [get]
func (h *FriendHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	friends, err := h.service.ListFriends(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, friends, nil)
}

// Online godoc
// @Summary List online friends
// @Tags Friends
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /friends/online [get]
func (h *FriendHandler) Online(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	friends, err := h.service.ListOnlineFriends(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, friends, nil)
}

// Search godoc
// @Summary Search users to befriend
// @Tags Friends
// @Produce json
// @Param q query string true "Name or email fragment"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /friends/search [get]
func (h *FriendHandler) Search(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	results, err := h.service.Search(c.Request.Context(), claims.UserID, c.Query("q"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}

// SendRequest godoc
// @Summary Send friend request
// @Tags Friends
// @Accept json
// @Produce json
// @Param payload body dto.SendFriendRequest true "Receiver"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /friends/request [post]
func (h *FriendHandler) SendRequest(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.SendFriendRequest
	if !bindJSON(c, &req, "invalid friend request payload") {
		return
	}
	request, err := h.service.SendRequest(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// Accept godoc
// @Summary Accept friend request
// @Tags Friends
// @Accept json
// @Produce json
// @Param payload body dto.RespondFriendRequest true "Request"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /friends/requests/accept [post]
func (h *FriendHandler) Accept(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.RespondFriendRequest
	if !bindJSON(c, &req, "invalid friend request payload") {
		return
	}
	friendship, err := h.service.AcceptRequest(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "friend request accepted", friendship)
}

// Reject godoc
// @Summary Reject friend request
// @Tags Friends
// @Accept json
// @Produce json
// @Param payload body dto.RespondFriendRequest true "Request"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /friends/requests/reject [post]
func (h *FriendHandler) Reject(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.RespondFriendRequest
	if !bindJSON(c, &req, "invalid friend request payload") {
		return
	}
	if err := h.service.RejectRequest(c.Request.Context(), claims.UserID, req); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "friend request rejected", nil)
}

// Remove godoc
// @Summary Remove friend
// @Tags Friends
// @Accept json
// @Produce json
// @Param payload body dto.RemoveFriendRequest true "Friend"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /friends/remove [delete]
func (h *FriendHandler) Remove(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.RemoveFriendRequest
	if !bindJSON(c, &req, "invalid remove payload") {
		return
	}
	if err := h.service.RemoveFriend(c.Request.Context(), claims.UserID, req); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "friend removed", nil)
}

// Pending godoc
// @Summary Incoming pending requests
// @Tags Friends
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /friends/requests/pending [get]
func (h *FriendHandler) Pending(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	requests, err := h.service.ListPending(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// Sent godoc
// @Summary Outgoing pending requests
// @Tags Friends
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /friends/requests/sent [get]
func (h *FriendHandler) Sent(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	requests, err := h.service.ListSent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// Suggestions godoc
// @Summary Friend suggestions
// @Description Friends of friends ranked by mutual friend count
// @Tags Friends
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /friends/suggestions [get]
func (h *FriendHandler) Suggestions(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	suggestions, err := h.service.Suggestions(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, suggestions, nil)
}

// Status godoc
// @Summary Relationship with another user
// @Tags Friends
// @Produce json
// @Param userId path string true "Other user"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /friends/status/{userId} [get]
func (h *FriendHandler) Status(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	status, err := h.service.Status(c.Request.Context(), claims.UserID, c.Param("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

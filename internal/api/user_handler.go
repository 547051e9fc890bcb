package api

import (
	"alcyxob/navistream/internal/pipeline"
	"alcyxob/navistream/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// UserHandler serves profiles, subscriptions and the watch-later list.
type UserHandler struct {
	users service.UserService
}

func NewUserHandler(users service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// --- Request/Response Structs ---

type UpdateProfileRequest struct {
	Username    *string           `json:"username" binding:"omitempty,min=3,max=50"`
	Bio         *string           `json:"bio"`
	SocialLinks map[string]string `json:"socialLinks"`
}

type SubscriptionResponse struct {
	Subscribed  bool  `json:"subscribed"`
	Subscribers int64 `json:"subscribers"`
}

// --- Handler Methods for Profiles ---

// UpdateProfile godoc
// @Summary Update the caller's profile
// @Description Changes username, bio and social links. Omitted fields are left as they are; social links merge per key.
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param profileRequest body UpdateProfileRequest true "Fields to change"
// @Success 200 {object} domain.User "Updated profile"
// @Failure 400 {object} gin.H "Validation error, username taken, bio too long or unknown social link"
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 404 {object} gin.H "User not found"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /users/profile [put]
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, pipeline.ErrAuthFailure.Error())
		return
	}
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithValidation(c, err)
		return
	}
	user, err := h.users.UpdateProfile(c.Request.Context(), userID, service.ProfileInput{
		Username:    req.Username,
		Bio:         req.Bio,
		SocialLinks: req.SocialLinks,
	})
	if err != nil {
		respondServiceError(c, err, "Failed to update profile")
		return
	}
	c.JSON(http.StatusOK, user)
}

// Profile godoc
// @Summary Get a public profile
// @Description Returns the public view of a user (no email) and their latest videos.
// @Tags Users
// @Produce json
// @Param id path string true "User ObjectID Hex"
// @Success 200 {object} service.Profile "Profile and videos"
// @Failure 400 {object} gin.H "Invalid user ID"
// @Failure 404 {object} gin.H "User not found"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /users/{id} [get]
func (h *UserHandler) Profile(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}
	profile, err := h.users.GetProfile(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "Failed to fetch profile")
		return
	}
	c.JSON(http.StatusOK, profile)
}

// --- Handler Methods for Subscriptions ---

// Subscribe godoc
// @Summary Toggle a subscription
// @Description Subscribes the caller to a channel, or unsubscribes if already subscribed.
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path string true "Channel (user) ObjectID Hex"
// @Success 200 {object} SubscriptionResponse "New subscription state and the channel's subscriber count"
// @Failure 400 {object} gin.H "Invalid ID or self-subscription"
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 404 {object} gin.H "Channel not found"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /users/{id}/subscribe [post]
func (h *UserHandler) Subscribe(c *gin.Context) {
	channelID, ok := parseObjectID(c, "id")
	if !ok {
		return
	}
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, pipeline.ErrAuthFailure.Error())
		return
	}
	subscribed, subscribers, err := h.users.ToggleSubscription(c.Request.Context(), userID, channelID)
	if err != nil {
		respondServiceError(c, err, "Failed to update subscription")
		return
	}
	c.JSON(http.StatusOK, SubscriptionResponse{Subscribed: subscribed, Subscribers: subscribers})
}

// --- Handler Methods for Watch Later ---

// ToggleWatchLater godoc
// @Summary Toggle a video in the watch-later list
// @Description Adds the video to the caller's watch-later list, or removes it if present.
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path string true "Video ObjectID Hex"
// @Success 200 {object} gin.H "saved flag and the updated watchLater id list"
// @Failure 400 {object} gin.H "Invalid video ID"
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 404 {object} gin.H "Video not found"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /videos/{id}/watch-later [post]
func (h *UserHandler) ToggleWatchLater(c *gin.Context) {
	videoID, ok := parseObjectID(c, "id")
	if !ok {
		return
	}
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, pipeline.ErrAuthFailure.Error())
		return
	}
	saved, list, err := h.users.ToggleWatchLater(c.Request.Context(), userID, videoID)
	if err != nil {
		respondServiceError(c, err, "Failed to update watch later")
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": saved, "watchLater": list})
}

// WatchLater godoc
// @Summary List the caller's watch-later videos
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.Video "Saved videos, newest first"
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /watch-later [get]
func (h *UserHandler) WatchLater(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, pipeline.ErrAuthFailure.Error())
		return
	}
	videos, err := h.users.WatchLater(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err, "Failed to fetch watch later")
		return
	}
	c.JSON(http.StatusOK, videos)
}

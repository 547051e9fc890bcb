package api

import (
	"alcyxob/navistream/internal/pipeline"
	"alcyxob/navistream/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PlaylistHandler struct {
	playlists service.PlaylistService
}

func NewPlaylistHandler(playlists service.PlaylistService) *PlaylistHandler {
	return &PlaylistHandler{playlists: playlists}
}

// --- Request/Response Structs ---

type CreatePlaylistRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	IsPublic    bool   `json:"isPublic"`
}

type AddToPlaylistRequest struct {
	VideoID string `json:"videoId" binding:"required"`
}

// --- Handler Methods ---

// Create godoc
// @Summary Create a playlist
// @Tags Playlists
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param playlistRequest body CreatePlaylistRequest true "Playlist details"
// @Success 201 {object} domain.Playlist "Playlist created"
// @Failure 400 {object} gin.H "Validation error (empty or over-long name or description)"
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /playlists [post]
func (h *PlaylistHandler) Create(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, pipeline.ErrAuthFailure.Error())
		return
	}
	var req CreatePlaylistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithValidation(c, err)
		return
	}
	playlist, err := h.playlists.Create(c.Request.Context(), userID, req.Name, req.Description, req.IsPublic)
	if err != nil {
		respondServiceError(c, err, "Failed to create playlist")
		return
	}
	c.JSON(http.StatusCreated, playlist)
}

// List godoc
// @Summary List the caller's playlists
// @Tags Playlists
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.Playlist "Playlists, newest first"
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /playlists [get]
func (h *PlaylistHandler) List(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, pipeline.ErrAuthFailure.Error())
		return
	}
	playlists, err := h.playlists.ListMine(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err, "Failed to fetch playlists")
		return
	}
	c.JSON(http.StatusOK, playlists)
}

// AddVideo godoc
// @Summary Add a video to a playlist
// @Description Appends a video to one of the caller's playlists. A video can appear only once.
// @Tags Playlists
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Playlist ObjectID Hex"
// @Param addRequest body AddToPlaylistRequest true "Video to add"
// @Success 200 {object} gin.H "Video added"
// @Failure 400 {object} gin.H "Invalid ID or video already in playlist"
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 403 {object} gin.H "Forbidden (not the playlist owner)"
// @Failure 404 {object} gin.H "Playlist or video not found"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /playlists/{id}/videos [post]
func (h *PlaylistHandler) AddVideo(c *gin.Context) {
	playlistID, ok := parseObjectID(c, "id")
	if !ok {
		return
	}
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, pipeline.ErrAuthFailure.Error())
		return
	}
	var req AddToPlaylistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithValidation(c, err)
		return
	}
	videoID, err := primitive.ObjectIDFromHex(req.VideoID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid videoId format")
		return
	}
	if err := h.playlists.AddVideo(c.Request.Context(), playlistID, userID, videoID); err != nil {
		respondServiceError(c, err, "Failed to add video to playlist")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Video added to playlist"})
}

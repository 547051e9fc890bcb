package api

import (
	"alcyxob/navistream/internal/domain"
	"alcyxob/navistream/internal/pipeline"
	"alcyxob/navistream/internal/repository"
	"alcyxob/navistream/internal/service"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Ingester runs the upload pipeline for one request.
type Ingester interface {
	Ingest(ctx context.Context, ownerID primitive.ObjectID, contentLength int64, mr *multipart.Reader) (*domain.Video, error)
	MaxRequestBytes() int64
}

type VideoHandler struct {
	videos   service.VideoService
	ingester Ingester
	log      zerolog.Logger

	// uploadTimeout bounds one Ingest call; zero means no limit.
	uploadTimeout time.Duration
}

func NewVideoHandler(videos service.VideoService, ingester Ingester, logger zerolog.Logger) *VideoHandler {
	return &VideoHandler{videos: videos, ingester: ingester, log: logger}
}

type UpdateVideoRequest struct {
	Title       *string          `json:"title" binding:"omitempty,max=200"`
	Description *string          `json:"description" binding:"omitempty,max=5000"`
	Category    *domain.Category `json:"category"`
}

type CommentRequest struct {
	Text string `json:"text" binding:"required"`
}

// --- Handler Methods for Uploads ---

// Upload godoc
// @Summary Upload a video
// @Description Streams a multipart body (title, description, category, video) through admission, staging and remote upload, then records the metadata.
// @Tags Videos
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param title formData string true "Video title"
// @Param description formData string false "Video description"
// @Param category formData string false "One of gaming, music, education, entertainment, sports, other"
// @Param video formData file true "Video file"
// @Success 201 {object} gin.H "message and the created video"
// @Failure 400 {object} gin.H "Admission failure (code TooLarge, UnsupportedType, MissingField)"
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 500 {object} gin.H "Staging, remote upload or metadata failure"
// @Router /videos/upload [post]
func (h *VideoHandler) Upload(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, pipeline.ErrAuthFailure.Error())
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.ingester.MaxRequestBytes())
	mr, err := c.Request.MultipartReader()
	if err != nil {
		abortWithDetails(c, http.StatusBadRequest, "Expected a multipart/form-data body", err.Error())
		return
	}

	ctx := c.Request.Context()
	if h.uploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.uploadTimeout)
		defer cancel()
	}
	video, err := h.ingester.Ingest(ctx, userID, c.Request.ContentLength, mr)
	if err != nil {
		respondPipelineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Video uploaded successfully", "video": video})
}

func respondPipelineError(c *gin.Context, err error) {
	var pe *pipeline.Error
	if !errors.As(err, &pe) {
		abortWithDetails(c, http.StatusInternalServerError, "Upload failed", err.Error())
		return
	}

	status := http.StatusInternalServerError
	if pe.Stage == pipeline.StageAdmission {
		status = http.StatusBadRequest
	}
	details := pe.Details
	if details == "" && pe.Err != nil {
		details = pe.Err.Error()
	}
	body := gin.H{"error": pe.Kind.Error(), "code": pe.Code()}
	if details != "" {
		body["details"] = []string{details}
	}
	c.AbortWithStatusJSON(status, body)
}

// respondServiceError maps service sentinels to HTTP statuses.
func respondServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrVideoNotFound),
		errors.Is(err, service.ErrCommentNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrPlaylistNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrForbidden):
		abortWithError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrEmptyComment),
		errors.Is(err, service.ErrCommentTooLong),
		errors.Is(err, service.ErrInvalidCategory),
		errors.Is(err, service.ErrInvalidSort),
		errors.Is(err, service.ErrEmptyTitle),
		errors.Is(err, service.ErrUsernameTaken),
		errors.Is(err, service.ErrInvalidUsername),
		errors.Is(err, service.ErrBioTooLong),
		errors.Is(err, service.ErrUnknownSocialLink),
		errors.Is(err, service.ErrSelfSubscription),
		errors.Is(err, service.ErrEmptyPlaylistName),
		errors.Is(err, service.ErrPlaylistNameTooLong),
		errors.Is(err, service.ErrPlaylistDescTooLong),
		errors.Is(err, service.ErrVideoAlreadyInList):
		abortWithError(c, http.StatusBadRequest, err.Error())
	default:
		abortWithDetails(c, http.StatusInternalServerError, fallback, err.Error())
	}
}

func parseObjectID(c *gin.Context, param string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(param))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Invalid %s format", param))
		return primitive.NilObjectID, false
	}
	return id, true
}

// --- Handler Methods for Browsing ---

// List godoc
// @Summary List videos
// @Description Returns videos filtered by category and ordered by sort.
// @Tags Videos
// @Produce json
// @Param category query string false "Category, or all"
// @Param sort query string false "newest, oldest, most-viewed or most-liked"
// @Success 200 {array} domain.Video "Videos"
// @Failure 400 {object} gin.H "Invalid category or sort"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /videos [get]
func (h *VideoHandler) List(c *gin.Context) {
	videos, err := h.videos.List(c.Request.Context(), c.Query("category"), c.Query("sort"))
	if err != nil {
		respondServiceError(c, err, "Failed to fetch videos")
		return
	}
	c.JSON(http.StatusOK, videos)
}

// Trending godoc
// @Summary Trending videos
// @Description Returns the most viewed videos, most liked breaking ties.
// @Tags Videos
// @Produce json
// @Success 200 {array} domain.Video "Videos"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /videos/trending [get]
func (h *VideoHandler) Trending(c *gin.Context) {
	videos, err := h.videos.Trending(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "Failed to fetch trending videos")
		return
	}
	c.JSON(http.StatusOK, videos)
}

// Search godoc
// @Summary Search videos
// @Description Matches q literally, case-insensitively, against title and description. Newest first.
// @Tags Videos
// @Produce json
// @Param q query string false "Search text"
// @Param category query string false "Category, or all"
// @Success 200 {array} domain.Video "Matching videos"
// @Failure 400 {object} gin.H "Invalid category"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /videos/search [get]
func (h *VideoHandler) Search(c *gin.Context) {
	videos, err := h.videos.Search(c.Request.Context(), c.Query("q"), c.Query("category"))
	if err != nil {
		respondServiceError(c, err, "Failed to search videos")
		return
	}
	c.JSON(http.StatusOK, videos)
}

// Recommendations godoc
// @Summary Recommended videos
// @Description Returns the most viewed videos, optionally within one category.
// @Tags Videos
// @Produce json
// @Param category query string false "Category, or all"
// @Success 200 {array} domain.Video "Videos"
// @Failure 400 {object} gin.H "Invalid category"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /videos/recommendations [get]
func (h *VideoHandler) Recommendations(c *gin.Context) {
	videos, err := h.videos.Recommendations(c.Request.Context(), c.Query("category"))
	if err != nil {
		respondServiceError(c, err, "Failed to fetch recommendations")
		return
	}
	c.JSON(http.StatusOK, videos)
}

// MyVideos godoc
// @Summary List the caller's videos
// @Tags Videos
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.Video "Videos, newest first"
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /videos/my-videos [get]
func (h *VideoHandler) MyVideos(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, pipeline.ErrAuthFailure.Error())
		return
	}
	videos, err := h.videos.ListByOwner(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err, "Failed to fetch your videos")
		return
	}
	c.JSON(http.StatusOK, videos)
}

// Liked godoc
// @Summary List videos the caller liked
// @Tags Videos
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.Video "Videos, newest first"
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /videos/liked [get]
func (h *VideoHandler) Liked(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, pipeline.ErrAuthFailure.Error())
		return
	}
	videos, err := h.videos.ListLikedBy(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err, "Failed to fetch liked videos")
		return
	}
	c.JSON(http.StatusOK, videos)
}

// Get godoc
// @Summary Get a video
// @Tags Videos
// @Produce json
// @Param id path string true "Video ObjectID Hex"
// @Success 200 {object} domain.Video "Video"
// @Failure 400 {object} gin.H "Invalid video ID"
// @Failure 404 {object} gin.H "Video not found"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /videos/{id} [get]
func (h *VideoHandler) Get(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}
	video, err := h.videos.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "Failed to fetch video")
		return
	}
	c.JSON(http.StatusOK, video)
}

// --- Handler Methods for Engagement ---

// View godoc
// @Summary Record a view
// @Tags Videos
// @Produce json
// @Param id path string true "Video ObjectID Hex"
// @Success 200 {object} gin.H "Updated view count"
// @Failure 400 {object} gin.H "Invalid video ID"
// @Failure 404 {object} gin.H "Video not found"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /videos/{id}/view [post]
func (h *VideoHandler) View(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}
	views, err := h.videos.RecordView(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "Failed to record view")
		return
	}
	c.JSON(http.StatusOK, gin.H{"views": views})
}

// Like godoc
// @Summary Toggle a like
// @Description Likes the video, or removes the caller's like if present.
// @Tags Videos
// @Produce json
// @Security BearerAuth
// @Param id path string true "Video ObjectID Hex"
// @Success 200 {object} gin.H "likes count and isLiked"
// @Failure 400 {object} gin.H "Invalid video ID"
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 404 {object} gin.H "Video not found"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /videos/{id}/like [post]
func (h *VideoHandler) Like(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, pipeline.ErrAuthFailure.Error())
		return
	}
	liked, likes, err := h.videos.ToggleLike(c.Request.Context(), id, userID)
	if err != nil {
		respondServiceError(c, err, "Failed to toggle like")
		return
	}
	c.JSON(http.StatusOK, gin.H{"likes": likes, "isLiked": liked})
}

// AddComment godoc
// @Summary Comment on a video
// @Tags Videos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Video ObjectID Hex"
// @Param commentRequest body CommentRequest true "Comment text"
// @Success 201 {object} domain.Comment "Created comment"
// @Failure 400 {object} gin.H "Invalid ID, empty or over-long comment"
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 404 {object} gin.H "Video not found"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /videos/{id}/comments [post]
func (h *VideoHandler) AddComment(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, pipeline.ErrAuthFailure.Error())
		return
	}
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, service.ErrEmptyComment.Error())
		return
	}
	comment, err := h.videos.AddComment(c.Request.Context(), id, userID, req.Text)
	if err != nil {
		respondServiceError(c, err, "Failed to add comment")
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// RemoveComment godoc
// @Summary Delete one of the caller's comments
// @Tags Videos
// @Produce json
// @Security BearerAuth
// @Param id path string true "Video ObjectID Hex"
// @Param commentId path string true "Comment ObjectID Hex"
// @Success 200 {object} gin.H "Comment deleted"
// @Failure 400 {object} gin.H "Invalid ID"
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 403 {object} gin.H "Forbidden (not the comment author)"
// @Failure 404 {object} gin.H "Video or comment not found"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /videos/{id}/comments/{commentId} [delete]
func (h *VideoHandler) RemoveComment(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}
	commentID, ok := parseObjectID(c, "commentId")
	if !ok {
		return
	}
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, pipeline.ErrAuthFailure.Error())
		return
	}
	if err := h.videos.RemoveComment(c.Request.Context(), id, commentID, userID); err != nil {
		respondServiceError(c, err, "Failed to delete comment")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}

// --- Handler Methods for Owner Actions ---

// Update godoc
// @Summary Edit a video's metadata
// @Tags Videos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Video ObjectID Hex"
// @Param updateRequest body UpdateVideoRequest true "Fields to change"
// @Success 200 {object} domain.Video "Updated video"
// @Failure 400 {object} gin.H "Validation error"
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 403 {object} gin.H "Forbidden (not the owner)"
// @Failure 404 {object} gin.H "Video not found"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /videos/{id} [put]
func (h *VideoHandler) Update(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, pipeline.ErrAuthFailure.Error())
		return
	}
	var req UpdateVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithValidation(c, err)
		return
	}
	video, err := h.videos.Update(c.Request.Context(), id, userID, repository.VideoUpdate{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
	})
	if err != nil {
		respondServiceError(c, err, "Failed to update video")
		return
	}
	c.JSON(http.StatusOK, video)
}

// Delete godoc
// @Summary Delete a video
// @Description Removes the record, then the source and derivative objects. Object delete failures are logged, not returned.
// @Tags Videos
// @Produce json
// @Security BearerAuth
// @Param id path string true "Video ObjectID Hex"
// @Success 200 {object} gin.H "Video deleted"
// @Failure 400 {object} gin.H "Invalid video ID"
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 403 {object} gin.H "Forbidden (not the owner)"
// @Failure 404 {object} gin.H "Video not found"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /videos/{id} [delete]
func (h *VideoHandler) Delete(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, pipeline.ErrAuthFailure.Error())
		return
	}
	if err := h.videos.Delete(c.Request.Context(), id, userID); err != nil {
		h.log.Error().Err(err).Str("video_id", id.Hex()).Msg("delete video failed")
		respondServiceError(c, err, "Failed to delete video")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Video deleted successfully"})
}

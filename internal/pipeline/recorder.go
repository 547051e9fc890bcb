package pipeline

import (
	"alcyxob/navistream/internal/domain"
	"alcyxob/navistream/internal/repository"
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MetadataRecorder writes the canonical record for an uploaded asset.
type MetadataRecorder struct {
	videos repository.VideoRepository
}

func NewMetadataRecorder(videos repository.VideoRepository) *MetadataRecorder {
	return &MetadataRecorder{videos: videos}
}

// Record creates a video with no views, likes or comments.
func (r *MetadataRecorder) Record(ctx context.Context, asset *domain.RemoteAsset, req domain.UploadRequest, sf *StagedFile) (*domain.Video, error) {
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = domain.DefaultDescription
	}
	video := &domain.Video{
		Title:        strings.TrimSpace(req.Title),
		Description:  description,
		Category:     req.Category,
		URL:          asset.SecureURL,
		ThumbnailURL: asset.ThumbnailURL,
		PublicID:     asset.PublicID,
		SourceKey:    asset.ObjectKey,
		Duration:     asset.DurationSeconds,
		Width:        asset.Width,
		Height:       asset.Height,
		OwnerID:      req.OwnerID,
		Views:        0,
		LikedBy:      []primitive.ObjectID{},
		Comments:     []domain.Comment{},
	}
	if sf != nil {
		ext := extensionFor(sf.DetectedMimeType)
		if ext == "" {
			ext = extensionFor(sf.DeclaredMimeType)
		}
		video.Format = strings.TrimPrefix(ext, ".")
		video.Size = sf.SizeBytes
	}

	if _, err := r.videos.Create(ctx, video); err != nil {
		return nil, &Error{Stage: StagePersistence, Kind: ErrPersistenceFailure, Err: err}
	}
	return video, nil
}

package mongo

import (
	"alcyxob/navistream/internal/domain"
	"alcyxob/navistream/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const playlistCollectionName = "playlists"

type mongoPlaylistRepository struct {
	collection *mongo.Collection
}

func NewMongoPlaylistRepository(db *mongo.Database) repository.PlaylistRepository {
	return &mongoPlaylistRepository{
		collection: db.Collection(playlistCollectionName),
	}
}

func (r *mongoPlaylistRepository) Create(ctx context.Context, playlist *domain.Playlist) (primitive.ObjectID, error) {
	if playlist.OwnerID == primitive.NilObjectID || playlist.Name == "" {
		return primitive.NilObjectID, repository.ErrInvalidInput
	}

	playlist.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	playlist.CreatedAt = now
	playlist.UpdatedAt = now
	if playlist.Videos == nil {
		playlist.Videos = []domain.PlaylistEntry{}
	}
	if playlist.Tags == nil {
		playlist.Tags = []string{}
	}

	if _, err := r.collection.InsertOne(ctx, playlist); err != nil {
		return primitive.NilObjectID, err
	}
	return playlist.ID, nil
}

func (r *mongoPlaylistRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Playlist, error) {
	var playlist domain.Playlist
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&playlist); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &playlist, nil
}

func (r *mongoPlaylistRepository) ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]domain.Playlist, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"userId": ownerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	playlists := []domain.Playlist{}
	if err := cursor.All(ctx, &playlists); err != nil {
		return nil, err
	}
	return playlists, nil
}

// AddVideo pushes entry only while the video is absent, so two concurrent
// adds of the same video store it once.
func (r *mongoPlaylistRepository) AddVideo(ctx context.Context, id, ownerID primitive.ObjectID, entry domain.PlaylistEntry) error {
	update := bson.M{
		"$push": bson.M{"videos": entry},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	result, err := r.collection.UpdateOne(ctx, addToPlaylistFilter(id, ownerID, entry.VideoID), update)
	if err != nil {
		return err
	}
	if result.MatchedCount > 0 {
		return nil
	}

	// Nothing matched: tell a missing playlist apart from a duplicate video.
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": id, "userId": ownerID}, options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return repository.ErrDuplicate
}

func EnsurePlaylistIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
		Options: options.Index(),
	})
	return err
}

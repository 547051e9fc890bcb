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

const videoCollectionName = "videos"

// defaultListLimit caps listings when the caller does not set one.
const defaultListLimit = 50

// mongoVideoRepository implements repository.VideoRepository
type mongoVideoRepository struct {
	collection *mongo.Collection
}

// NewMongoVideoRepository creates a new Video repository backed by MongoDB.
func NewMongoVideoRepository(db *mongo.Database) repository.VideoRepository {
	return &mongoVideoRepository{
		collection: db.Collection(videoCollectionName),
	}
}

// Create inserts a new video record. The remote asset fields must already be set.
func (r *mongoVideoRepository) Create(ctx context.Context, video *domain.Video) (primitive.ObjectID, error) {
	if video.OwnerID == primitive.NilObjectID ||
		video.URL == "" ||
		video.ThumbnailURL == "" ||
		video.PublicID == "" {
		return primitive.NilObjectID, repository.ErrInvalidInput
	}

	video.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	video.CreatedAt = now
	video.UpdatedAt = now
	if video.LikedBy == nil {
		video.LikedBy = []primitive.ObjectID{}
	}
	if video.Comments == nil {
		video.Comments = []domain.Comment{}
	}

	result, err := r.collection.InsertOne(ctx, video)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// GetByID retrieves a video by its ID.
func (r *mongoVideoRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Video, error) {
	var video domain.Video
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&video)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &video, nil
}

// List returns videos matching filter. Like counts are computed server-side
// so "mostLiked" orders by set size rather than by array contents.
func (r *mongoVideoRepository) List(ctx context.Context, filter repository.VideoFilter) ([]domain.Video, error) {
	match := bson.M{}
	if filter.Category != "" {
		match["category"] = filter.Category
	}
	if filter.OwnerID != primitive.NilObjectID {
		match["userId"] = filter.OwnerID
	}
	if filter.LikedBy != primitive.NilObjectID {
		match["likes"] = filter.LikedBy
	}
	if filter.Query != "" {
		match["$or"] = textSearch(filter.Query)
	}
	if len(filter.IDs) > 0 {
		match["_id"] = bson.M{"$in": filter.IDs}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$addFields", Value: bson.M{
			"likeCount": bson.M{"$size": bson.M{"$ifNull": bson.A{"$likes", bson.A{}}}},
		}}},
		{{Key: "$sort", Value: sortStage(filter.Sort)}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$project", Value: bson.M{"likeCount": 0}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	videos := []domain.Video{}
	if err = cursor.All(ctx, &videos); err != nil {
		return nil, err
	}
	return videos, nil
}

func sortStage(sort repository.VideoSort) bson.D {
	switch sort {
	case repository.SortOldest:
		return bson.D{{Key: "createdAt", Value: 1}}
	case repository.SortMostViewed:
		return bson.D{{Key: "views", Value: -1}, {Key: "createdAt", Value: -1}}
	case repository.SortMostLiked:
		return bson.D{{Key: "likeCount", Value: -1}, {Key: "createdAt", Value: -1}}
	case repository.SortTrending:
		return bson.D{{Key: "views", Value: -1}, {Key: "likeCount", Value: -1}}
	default:
		return bson.D{{Key: "createdAt", Value: -1}}
	}
}

// ExistsByPublicID reports whether any record references publicID.
func (r *mongoVideoRepository) ExistsByPublicID(ctx context.Context, publicID string) (bool, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"publicId": publicID}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Update modifies the owner-editable fields of a video.
func (r *mongoVideoRepository) Update(ctx context.Context, id, ownerID primitive.ObjectID, update repository.VideoUpdate) (*domain.Video, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if update.Title != nil {
		set["title"] = *update.Title
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}
	if update.Category != nil {
		set["category"] = *update.Category
	}

	// Prevent changing the owner or any remote asset pointer
	filter := bson.M{"_id": id, "userId": ownerID}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var video domain.Video
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&video)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &video, nil
}

// Delete removes a video, ensuring it belongs to the specified owner.
func (r *mongoVideoRepository) Delete(ctx context.Context, id, ownerID primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "userId": ownerID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// IncrementViews atomically bumps the view counter and returns the new value.
func (r *mongoVideoRepository) IncrementViews(ctx context.Context, id primitive.ObjectID) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"views": 1})

	var out struct {
		Views int64 `bson:"views"`
	}
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"views": 1}}, opts).Decode(&out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, repository.ErrNotFound
		}
		return 0, err
	}
	return out.Views, nil
}

// ToggleLike flips userID's membership in the like set in one pipeline update.
func (r *mongoVideoRepository) ToggleLike(ctx context.Context, id, userID primitive.ObjectID) (bool, int, error) {
	update := toggleMemberUpdate("likes", userID)
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"likes": 1})

	var video domain.Video
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&video)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, 0, repository.ErrNotFound
		}
		return false, 0, err
	}
	return video.IsLikedBy(userID), len(video.LikedBy), nil
}

// AddComment appends a comment to the video.
func (r *mongoVideoRepository) AddComment(ctx context.Context, id primitive.ObjectID, comment domain.Comment) error {
	update := bson.M{
		"$push": bson.M{"comments": comment},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// RemoveComment pulls a comment written by authorID.
func (r *mongoVideoRepository) RemoveComment(ctx context.Context, id, commentID, authorID primitive.ObjectID) error {
	filter := removeCommentFilter(id, commentID, authorID)
	update := removeCommentUpdate(commentID, authorID, time.Now().UTC())
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		// Either the video is gone or the comment is not the caller's.
		return repository.ErrNotFound
	}
	return nil
}

// EnsureVideoIndexes creates necessary indexes for the videos collection.
func EnsureVideoIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// Storage keys are unique, so are the records pointing at them
			Keys:    bson.D{{Key: "publicId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "category", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "likes", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "views", Value: -1}},
			Options: options.Index(),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}

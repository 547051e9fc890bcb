package mongo

import (
	"alcyxob/navistream/internal/domain"
	"alcyxob/navistream/internal/repository"
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const userCollectionName = "users"

// mongoUserRepository implements the repository.UserRepository interface using MongoDB.
type mongoUserRepository struct {
	collection *mongo.Collection
}

// NewMongoUserRepository creates a new instance of mongoUserRepository.
func NewMongoUserRepository(db *mongo.Database) repository.UserRepository {
	return &mongoUserRepository{
		collection: db.Collection(userCollectionName),
	}
}

// Create inserts a new user into the database.
func (r *mongoUserRepository) Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error) {
	if user.Email == "" || user.PasswordHash == "" || user.Username == "" {
		return primitive.NilObjectID, repository.ErrInvalidInput
	}

	user.ID = primitive.NewObjectID()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.SubscribedTo == nil {
		user.SubscribedTo = []primitive.ObjectID{}
	}
	if user.WatchLater == nil {
		user.WatchLater = []primitive.ObjectID{}
	}

	result, err := r.collection.InsertOne(ctx, user)
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

// GetByEmail looks a user up by email, case-insensitively.
func (r *mongoUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (r *mongoUserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var user domain.User
	if err := r.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpdateProfile sets the given profile fields. Social links are set per key
// so links not named in the update are kept.
func (r *mongoUserRepository) UpdateProfile(ctx context.Context, id primitive.ObjectID, update repository.ProfileUpdate) (*domain.User, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if update.Username != nil {
		set["username"] = *update.Username
	}
	if update.Bio != nil {
		set["bio"] = *update.Bio
	}
	for key, link := range update.SocialLinks {
		set["socialLinks."+key] = link
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user domain.User
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, repository.ErrDuplicate
		}
		return nil, err
	}
	return &user, nil
}

// ToggleSubscription flips channelID in subscribedTo in one pipeline update.
func (r *mongoUserRepository) ToggleSubscription(ctx context.Context, id, channelID primitive.ObjectID) (bool, error) {
	user, err := r.toggle(ctx, id, "subscribedTo", channelID)
	if err != nil {
		return false, err
	}
	return user.IsSubscribedTo(channelID), nil
}

// AddSubscribers bumps the subscriber counter; the count never drops below zero.
func (r *mongoUserRepository) AddSubscribers(ctx context.Context, id primitive.ObjectID, delta int64) (int64, error) {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"subscribers": bson.M{"$max": bson.A{0, bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$subscribers", 0}}, delta}}}},
		}}},
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"subscribers": 1})

	var out struct {
		Subscribers int64 `bson:"subscribers"`
	}
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, repository.ErrNotFound
		}
		return 0, err
	}
	return out.Subscribers, nil
}

func (r *mongoUserRepository) ToggleWatchLater(ctx context.Context, id, videoID primitive.ObjectID) ([]primitive.ObjectID, error) {
	user, err := r.toggle(ctx, id, "watchLater", videoID)
	if err != nil {
		return nil, err
	}
	if user.WatchLater == nil {
		return []primitive.ObjectID{}, nil
	}
	return user.WatchLater, nil
}

func (r *mongoUserRepository) toggle(ctx context.Context, id primitive.ObjectID, field string, member primitive.ObjectID) (*domain.User, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{field: 1})

	var user domain.User
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, toggleMemberUpdate(field, member), opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// EnsureUserIndexes makes email and username unique. Registration relies on
// the duplicate-key error instead of a read-then-insert check.
func EnsureUserIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}

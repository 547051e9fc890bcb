package service

import (
	"alcyxob/navistream/internal/domain"
	"alcyxob/navistream/internal/repository"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUsernameTaken     = errors.New("username already taken")
	ErrInvalidUsername   = errors.New("username must be between 3 and 50 characters")
	ErrBioTooLong        = fmt.Errorf("bio cannot exceed %d characters", domain.MaxBioLength)
	ErrUnknownSocialLink = errors.New("unknown social link")
	ErrSelfSubscription  = errors.New("cannot subscribe to yourself")
)

const (
	minUsernameLength = 3
	maxUsernameLength = 50
	profileVideoLimit = 20
)

// ProfileInput is a partial profile edit; nil fields are left unchanged.
type ProfileInput struct {
	Username    *string
	Bio         *string
	SocialLinks map[string]string
}

// Profile is what GET /users/:id returns.
type Profile struct {
	User   domain.PublicUser `json:"user"`
	Videos []domain.Video    `json:"videos"`
}

// --- Service Interface ---
type UserService interface {
	// Profiles
	UpdateProfile(ctx context.Context, userID primitive.ObjectID, input ProfileInput) (*domain.User, error)
	GetProfile(ctx context.Context, userID primitive.ObjectID) (*Profile, error)

	// Subscriptions
	ToggleSubscription(ctx context.Context, userID, channelID primitive.ObjectID) (subscribed bool, subscribers int64, err error)

	// Watch later
	ToggleWatchLater(ctx context.Context, userID, videoID primitive.ObjectID) (saved bool, list []primitive.ObjectID, err error)
	WatchLater(ctx context.Context, userID primitive.ObjectID) ([]domain.Video, error)
}

// --- Service Implementation ---

type userService struct {
	users  repository.UserRepository
	videos repository.VideoRepository
	log    zerolog.Logger
}

func NewUserService(users repository.UserRepository, videos repository.VideoRepository, logger zerolog.Logger) UserService {
	return &userService{
		users:  users,
		videos: videos,
		log:    logger.With().Str("component", "user_service").Logger(),
	}
}

func mapUserNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

// === Profiles ===

func (s *userService) UpdateProfile(ctx context.Context, userID primitive.ObjectID, input ProfileInput) (*domain.User, error) {
	update := repository.ProfileUpdate{}

	// 1. Validate each provided field
	if input.Username != nil {
		name := strings.TrimSpace(*input.Username)
		if n := utf8.RuneCountInString(name); n < minUsernameLength || n > maxUsernameLength {
			return nil, ErrInvalidUsername
		}
		update.Username = &name
	}
	if input.Bio != nil {
		bio := strings.TrimSpace(*input.Bio)
		if utf8.RuneCountInString(bio) > domain.MaxBioLength {
			return nil, ErrBioTooLong
		}
		update.Bio = &bio
	}
	if len(input.SocialLinks) > 0 {
		update.SocialLinks = make(map[string]string, len(input.SocialLinks))
		for key, link := range input.SocialLinks {
			if !slices.Contains(domain.SocialLinkKeys, key) {
				return nil, fmt.Errorf("%w %q", ErrUnknownSocialLink, key)
			}
			update.SocialLinks[key] = strings.TrimSpace(link)
		}
	}

	// 2. Write; username uniqueness is enforced by the store
	user, err := s.users.UpdateProfile(ctx, userID, update)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, mapUserNotFound(err)
	}
	return user, nil
}

// GetProfile returns the public view of a user and their latest videos.
func (s *userService) GetProfile(ctx context.Context, userID primitive.ObjectID) (*Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapUserNotFound(err)
	}
	videos, err := s.videos.List(ctx, repository.VideoFilter{
		OwnerID: userID,
		Sort:    repository.SortNewest,
		Limit:   profileVideoLimit,
	})
	if err != nil {
		return nil, err
	}
	return &Profile{User: user.Public(), Videos: videos}, nil
}

// === Subscriptions ===

// ToggleSubscription flips the caller's subscription to channelID and moves
// the channel's subscriber count with it.
func (s *userService) ToggleSubscription(ctx context.Context, userID, channelID primitive.ObjectID) (bool, int64, error) {
	if userID == channelID {
		return false, 0, ErrSelfSubscription
	}
	// The channel must exist before the caller's list references it
	if _, err := s.users.GetByID(ctx, channelID); err != nil {
		return false, 0, mapUserNotFound(err)
	}

	subscribed, err := s.users.ToggleSubscription(ctx, userID, channelID)
	if err != nil {
		return false, 0, mapUserNotFound(err)
	}
	delta := int64(-1)
	if subscribed {
		delta = 1
	}
	subscribers, err := s.users.AddSubscribers(ctx, channelID, delta)
	if err != nil {
		// The two documents are now out of step; the caller's list is the source of truth.
		s.log.Error().Err(err).
			Str("user_id", userID.Hex()).
			Str("channel_id", channelID.Hex()).
			Bool("subscribed", subscribed).
			Msg("subscriber count not updated")
		return false, 0, mapUserNotFound(err)
	}
	return subscribed, subscribers, nil
}

// === Watch Later ===

func (s *userService) ToggleWatchLater(ctx context.Context, userID, videoID primitive.ObjectID) (bool, []primitive.ObjectID, error) {
	if _, err := s.videos.GetByID(ctx, videoID); err != nil {
		return false, nil, mapNotFound(err)
	}
	list, err := s.users.ToggleWatchLater(ctx, userID, videoID)
	if err != nil {
		return false, nil, mapUserNotFound(err)
	}
	return slices.Contains(list, videoID), list, nil
}

// WatchLater lists the saved videos that still exist, newest first.
func (s *userService) WatchLater(ctx context.Context, userID primitive.ObjectID) ([]domain.Video, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapUserNotFound(err)
	}
	if len(user.WatchLater) == 0 {
		return []domain.Video{}, nil
	}
	return s.videos.List(ctx, repository.VideoFilter{
		IDs:   user.WatchLater,
		Sort:  repository.SortNewest,
		Limit: int64(len(user.WatchLater)),
	})
}

package service

import (
	"alcyxob/navistream/internal/domain"
	"alcyxob/navistream/internal/repository/memory"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type userFixture struct {
	svc    UserService
	users  *memory.UserRepository
	videos *memory.VideoRepository
	alice  *domain.User
	bob    *domain.User
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()
	ctx := context.Background()
	users := memory.NewUserRepository()
	videos := memory.NewVideoRepository()

	alice := &domain.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x"}
	_, err := users.Create(ctx, alice)
	require.NoError(t, err)
	bob := &domain.User{Username: "bob", Email: "bob@example.com", PasswordHash: "x"}
	_, err = users.Create(ctx, bob)
	require.NoError(t, err)

	return &userFixture{
		svc:    NewUserService(users, videos, zerolog.Nop()),
		users:  users,
		videos: videos,
		alice:  alice,
		bob:    bob,
	}
}

func (f *userFixture) addVideo(t *testing.T, owner primitive.ObjectID, publicID string) primitive.ObjectID {
	t.Helper()
	id, err := f.videos.Create(context.Background(), &domain.Video{
		Title:        publicID,
		URL:          "https://cdn.example.com/" + publicID + ".mp4",
		ThumbnailURL: "https://cdn.example.com/" + publicID + ".jpg",
		PublicID:     publicID,
		OwnerID:      owner,
	})
	require.NoError(t, err)
	return id
}

func TestUserService_ToggleSubscription(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	subscribed, subscribers, err := f.svc.ToggleSubscription(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)
	assert.True(t, subscribed)
	assert.Equal(t, int64(1), subscribers)

	alice, err := f.users.GetByID(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.True(t, alice.IsSubscribedTo(f.bob.ID))

	subscribed, subscribers, err = f.svc.ToggleSubscription(ctx, f.alice.ID, f.bob.ID)
	require.NoError(t, err)
	assert.False(t, subscribed)
	assert.Zero(t, subscribers)

	_, _, err = f.svc.ToggleSubscription(ctx, f.alice.ID, f.alice.ID)
	assert.ErrorIs(t, err, ErrSelfSubscription)
	_, _, err = f.svc.ToggleSubscription(ctx, f.alice.ID, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserService_UpdateProfile(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	taken := "bob"
	_, err := f.svc.UpdateProfile(ctx, f.alice.ID, ProfileInput{Username: &taken})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	short := "al"
	_, err = f.svc.UpdateProfile(ctx, f.alice.ID, ProfileInput{Username: &short})
	assert.ErrorIs(t, err, ErrInvalidUsername)

	long := strings.Repeat("é", domain.MaxBioLength+1)
	_, err = f.svc.UpdateProfile(ctx, f.alice.ID, ProfileInput{Bio: &long})
	assert.ErrorIs(t, err, ErrBioTooLong)

	_, err = f.svc.UpdateProfile(ctx, f.alice.ID, ProfileInput{SocialLinks: map[string]string{"myspace": "x"}})
	assert.ErrorIs(t, err, ErrUnknownSocialLink)

	name, bio := "alice2", " drummer "
	user, err := f.svc.UpdateProfile(ctx, f.alice.ID, ProfileInput{
		Username:    &name,
		Bio:         &bio,
		SocialLinks: map[string]string{"twitter": "@alice"},
	})
	require.NoError(t, err)
	assert.Equal(t, "alice2", user.Username)
	assert.Equal(t, "drummer", user.Bio)
	assert.Equal(t, "@alice", user.SocialLinks.Twitter)
}

func TestUserService_GetProfileHidesEmail(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	f.addVideo(t, f.bob.ID, "navistream/videos/b1")
	f.addVideo(t, f.alice.ID, "navistream/videos/a1")

	profile, err := f.svc.GetProfile(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", profile.User.Username)
	require.Len(t, profile.Videos, 1)
	assert.Equal(t, f.bob.ID, profile.Videos[0].OwnerID)

	_, err = f.svc.GetProfile(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserService_WatchLater(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	first := f.addVideo(t, f.bob.ID, "navistream/videos/w1")
	second := f.addVideo(t, f.bob.ID, "navistream/videos/w2")

	videos, err := f.svc.WatchLater(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Empty(t, videos)

	saved, list, err := f.svc.ToggleWatchLater(ctx, f.alice.ID, first)
	require.NoError(t, err)
	assert.True(t, saved)
	assert.Equal(t, []primitive.ObjectID{first}, list)
	_, _, err = f.svc.ToggleWatchLater(ctx, f.alice.ID, second)
	require.NoError(t, err)

	videos, err = f.svc.WatchLater(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Len(t, videos, 2)

	saved, list, err = f.svc.ToggleWatchLater(ctx, f.alice.ID, first)
	require.NoError(t, err)
	assert.False(t, saved)
	assert.Equal(t, []primitive.ObjectID{second}, list)

	_, _, err = f.svc.ToggleWatchLater(ctx, f.alice.ID, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrVideoNotFound)
}

package api

import (
	"alcyxob/navistream/internal/derivative"
	"alcyxob/navistream/internal/domain"
	"alcyxob/navistream/internal/media"
	"alcyxob/navistream/internal/pipeline"
	"alcyxob/navistream/internal/repository/memory"
	"alcyxob/navistream/internal/service"
	"alcyxob/navistream/internal/storage"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type testServer struct {
	router     *gin.Engine
	auth       service.AuthService
	token      string
	userID     primitive.ObjectID
	videos     *memory.VideoRepository
	stagingDir string
}

func newTestServer(t *testing.T, maxBytes int64) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zerolog.Nop()

	users := memory.NewUserRepository()
	videos := memory.NewVideoRepository()
	auth, err := service.NewAuthService(users, "test-secret", time.Hour)
	require.NoError(t, err)

	store, err := storage.NewLocalStorage(t.TempDir(), "http://cdn.test")
	require.NoError(t, err)
	stagingDir := t.TempDir()
	staging, err := pipeline.NewStagingStore(stagingDir, logger)
	require.NoError(t, err)

	urls := pipeline.NewURLBuilder(store, 1280)
	uploader := pipeline.NewRemoteUploader(store, media.NopProber{}, urls, derivative.NopRequester{}, pipeline.UploaderConfig{
		Folder:        "navistream/videos",
		MaxRetries:    3,
		RetryInterval: time.Millisecond,
	}, nil, logger)
	t.Cleanup(uploader.Wait)

	orch := pipeline.NewOrchestrator(
		pipeline.NewAdmissionFilter([]string{"video/mp4", "video/quicktime"}, maxBytes),
		staging, uploader, pipeline.NewMetadataRecorder(videos), nil, logger)

	router := NewRouter(Dependencies{
		AuthService:     auth,
		VideoService:    service.NewVideoService(videos, store, urls, logger),
		UserService:     service.NewUserService(users, videos, logger),
		PlaylistService: service.NewPlaylistService(memory.NewPlaylistRepository(), videos),
		Ingester:        orch,
		Logger:          logger,
		Gatherer:        prometheus.NewRegistry(),
	})

	ctx := context.Background()
	user, err := auth.Register(ctx, "uploader", "uploader@example.com", "secret-pass")
	require.NoError(t, err)
	token, _, err := auth.Login(ctx, "uploader@example.com", "secret-pass")
	require.NoError(t, err)

	return &testServer{router: router, auth: auth, token: token, userID: user.ID, videos: videos, stagingDir: stagingDir}
}

func (s *testServer) do(req *http.Request, authed bool) *httptest.ResponseRecorder {
	if authed {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// clip starts with an mp4 ftyp box so content sniffing sees a video.
var clip = append([]byte("\x00\x00\x00\x18ftypisom\x00\x00\x02\x00isomiso2"), make([]byte, 64)...)

func uploadRequest(t *testing.T, title, contentType string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if title != "" {
		require.NoError(t, mw.WriteField("title", title))
	}
	require.NoError(t, mw.WriteField("category", "education"))

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="video"; filename="clip.mp4"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/videos/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func stagingEmpty(t *testing.T, dir string) bool {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries) == 0
}

func TestUpload_Created(t *testing.T) {
	s := newTestServer(t, 100<<20)
	w := s.do(uploadRequest(t, "Test", "video/mp4", bytes.Repeat([]byte{1}, 10<<20)), true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := decode[struct {
		Message string       `json:"message"`
		Video   domain.Video `json:"video"`
	}](t, w)
	assert.Equal(t, "Video uploaded successfully", resp.Message)
	assert.Equal(t, "Test", resp.Video.Title)
	assert.Zero(t, resp.Video.Views)
	assert.Empty(t, resp.Video.LikedBy)
	assert.NotEmpty(t, resp.Video.URL)
	assert.Equal(t, domain.CategoryEducation, resp.Video.Category)
	assert.Equal(t, s.userID, resp.Video.OwnerID)
	assert.True(t, stagingEmpty(t, s.stagingDir))
	assert.Equal(t, 1, s.videos.Len())
}

func TestUpload_DeclaredTooLarge(t *testing.T) {
	s := newTestServer(t, 100<<20)
	req := uploadRequest(t, "Test", "video/mp4", []byte("tiny"))
	req.ContentLength = 150 << 20

	w := s.do(req, true)
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "TooLarge", body["code"])
	assert.IsType(t, []any{}, body["details"])
	assert.True(t, stagingEmpty(t, s.stagingDir))
	assert.Zero(t, s.videos.Len())
}

func TestUpload_StreamedTooLarge(t *testing.T) {
	s := newTestServer(t, 1024)
	w := s.do(uploadRequest(t, "Test", "video/mp4", make([]byte, 8192)), true)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "TooLarge", decode[map[string]any](t, w)["code"])
	assert.True(t, stagingEmpty(t, s.stagingDir))
}

func TestUpload_Rejections(t *testing.T) {
	s := newTestServer(t, 1<<20)

	w := s.do(uploadRequest(t, "Test", "image/png", []byte("png")), true)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "UnsupportedType", decode[map[string]any](t, w)["code"])

	w = s.do(uploadRequest(t, "Test", "video/mp4", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")), true)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "UnsupportedType", decode[map[string]any](t, w)["code"])

	w = s.do(uploadRequest(t, "", "video/mp4", clip), true)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MissingField", decode[map[string]any](t, w)["code"])

	w = s.do(uploadRequest(t, "Test", "video/mp4", clip), false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/videos/upload", bytes.NewBufferString(`{"title":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w = s.do(req, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.True(t, stagingEmpty(t, s.stagingDir))
	assert.Zero(t, s.videos.Len())
}

func TestVideoRoutes_LikeViewComment(t *testing.T) {
	s := newTestServer(t, 1<<20)
	w := s.do(uploadRequest(t, "Test", "video/mp4", clip), true)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[struct {
		Video domain.Video `json:"video"`
	}](t, w).Video.ID.Hex()

	like := func() map[string]any {
		w := s.do(httptest.NewRequest(http.MethodPost, "/api/videos/"+id+"/like", nil), true)
		require.Equal(t, http.StatusOK, w.Code)
		return decode[map[string]any](t, w)
	}
	first := like()
	assert.Equal(t, true, first["isLiked"])
	assert.Equal(t, float64(1), first["likes"])
	second := like()
	assert.Equal(t, false, second["isLiked"])
	assert.Equal(t, float64(0), second["likes"])

	w = s.do(httptest.NewRequest(http.MethodPost, "/api/videos/"+id+"/view", nil), false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, w)["views"])

	w = s.do(httptest.NewRequest(http.MethodPost, "/api/videos/"+id+"/comments", bytes.NewBufferString(`{"text":"great"}`)), true)
	require.Equal(t, http.StatusCreated, w.Code)
	comment := decode[domain.Comment](t, w)

	w = s.do(httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/videos/%s/comments/%s", id, comment.ID.Hex()), nil), true)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/videos/not-an-id", nil), false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(httptest.NewRequest(http.MethodGet, "/api/videos/"+primitive.NewObjectID().Hex(), nil), false)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/videos/my-videos", nil), true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.Video](t, w), 1)

	w = s.do(httptest.NewRequest(http.MethodDelete, "/api/videos/"+id, nil), true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, s.videos.Len())
}

func TestAuthRoutes(t *testing.T) {
	s := newTestServer(t, 1<<20)

	w := s.do(httptest.NewRequest(http.MethodPost, "/api/auth/register",
		bytes.NewBufferString(`{"username":"carol","email":"carol@example.com","password":"secret-pass"}`)), false)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(httptest.NewRequest(http.MethodPost, "/api/auth/login",
		bytes.NewBufferString(`{"email":"carol@example.com","password":"secret-pass"}`)), false)
	require.Equal(t, http.StatusOK, w.Code)
	login := decode[LoginResponse](t, w)
	assert.NotEmpty(t, login.Token)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	w = s.do(req, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "carol", decode[domain.User](t, w).Username)

	w = s.do(httptest.NewRequest(http.MethodPost, "/api/auth/register",
		bytes.NewBufferString(`{"username":"da","email":"not-an-email"}`)), false)
	require.Equal(t, http.StatusBadRequest, w.Code)
	invalid := decode[struct {
		Error   string   `json:"error"`
		Details []string `json:"details"`
	}](t, w)
	assert.Equal(t, "Validation error", invalid.Error)
	assert.ElementsMatch(t, []string{
		"Username fails min=3",
		"Email must be a valid email",
		"Password is required",
	}, invalid.Details)

	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Token abc")
	w = s.do(req, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMetricsRoute(t *testing.T) {
	s := newTestServer(t, 1<<20)
	w := s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil), false)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestVideoRoutes_ForeignOwnerForbidden(t *testing.T) {
	s := newTestServer(t, 1<<20)
	w := s.do(uploadRequest(t, "Test", "video/mp4", clip), true)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[struct {
		Video domain.Video `json:"video"`
	}](t, w).Video.ID.Hex()

	ctx := context.Background()
	_, err := s.auth.Register(ctx, "intruder", "intruder@example.com", "secret-pass")
	require.NoError(t, err)
	token, _, err := s.auth.Login(ctx, "intruder@example.com", "secret-pass")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/api/videos/"+id, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = s.do(req, false)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodPut, "/api/videos/"+id, bytes.NewBufferString(`{"title":"hijacked"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	w = s.do(req, false)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 1, s.videos.Len())
}

// second registers another account and returns its id and token.
func (s *testServer) second(t *testing.T, name string) (primitive.ObjectID, string) {
	t.Helper()
	ctx := context.Background()
	user, err := s.auth.Register(ctx, name, name+"@example.com", "secret-pass")
	require.NoError(t, err)
	token, _, err := s.auth.Login(ctx, name+"@example.com", "secret-pass")
	require.NoError(t, err)
	return user.ID, token
}

func (s *testServer) upload(t *testing.T, title string) string {
	t.Helper()
	w := s.do(uploadRequest(t, title, "video/mp4", clip), true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[struct {
		Video domain.Video `json:"video"`
	}](t, w).Video.ID.Hex()
}

func TestVideoRoutes_SearchAndRecommendations(t *testing.T) {
	s := newTestServer(t, 1<<20)
	id := s.upload(t, "Guitar lesson")
	s.upload(t, "Cooking show")

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/videos/search?q=guitar", nil), false)
	require.Equal(t, http.StatusOK, w.Code)
	found := decode[[]domain.Video](t, w)
	require.Len(t, found, 1)
	assert.Equal(t, id, found[0].ID.Hex())

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/videos/search?q=guitar&category=nope", nil), false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(httptest.NewRequest(http.MethodPost, "/api/videos/"+id+"/view", nil), false)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(httptest.NewRequest(http.MethodGet, "/api/videos/recommendations?category=education", nil), false)
	require.Equal(t, http.StatusOK, w.Code)
	recommended := decode[[]domain.Video](t, w)
	require.Len(t, recommended, 2)
	assert.Equal(t, id, recommended[0].ID.Hex())
}

func TestUserRoutes_ProfileSubscribeWatchLater(t *testing.T) {
	s := newTestServer(t, 1<<20)
	id := s.upload(t, "Test")
	viewerID, viewerToken := s.second(t, "viewer")

	req := httptest.NewRequest(http.MethodPut, "/api/users/profile",
		bytes.NewBufferString(`{"bio":"I film things","socialLinks":{"website":"https://example.com"}}`))
	w := s.do(req, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "I film things", decode[domain.User](t, w).Bio)

	w = s.do(httptest.NewRequest(http.MethodPut, "/api/users/profile", bytes.NewBufferString(`{"username":"viewer"}`)), true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(httptest.NewRequest(http.MethodPut, "/api/users/profile", bytes.NewBufferString(`{"socialLinks":{"myspace":"x"}}`)), true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/users/"+s.userID.Hex(), nil), false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "uploader@example.com")
	profile := decode[struct {
		User   domain.PublicUser `json:"user"`
		Videos []domain.Video    `json:"videos"`
	}](t, w)
	assert.Equal(t, "https://example.com", profile.User.SocialLinks.Website)
	assert.Len(t, profile.Videos, 1)

	subscribe := func() SubscriptionResponse {
		req := httptest.NewRequest(http.MethodPost, "/api/users/"+s.userID.Hex()+"/subscribe", nil)
		req.Header.Set("Authorization", "Bearer "+viewerToken)
		w := s.do(req, false)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		return decode[SubscriptionResponse](t, w)
	}
	assert.Equal(t, SubscriptionResponse{Subscribed: true, Subscribers: 1}, subscribe())
	assert.Equal(t, SubscriptionResponse{Subscribed: false, Subscribers: 0}, subscribe())

	w = s.do(httptest.NewRequest(http.MethodPost, "/api/users/"+s.userID.Hex()+"/subscribe", nil), true)
	assert.Equal(t, http.StatusBadRequest, w.Code, "self-subscription")
	w = s.do(httptest.NewRequest(http.MethodGet, "/api/users/"+primitive.NewObjectID().Hex(), nil), false)
	assert.Equal(t, http.StatusNotFound, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/videos/"+id+"/watch-later", nil)
	req.Header.Set("Authorization", "Bearer "+viewerToken)
	w = s.do(req, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode[map[string]any](t, w)["saved"])

	req = httptest.NewRequest(http.MethodGet, "/api/watch-later", nil)
	req.Header.Set("Authorization", "Bearer "+viewerToken)
	w = s.do(req, false)
	require.Equal(t, http.StatusOK, w.Code)
	saved := decode[[]domain.Video](t, w)
	require.Len(t, saved, 1)
	assert.Equal(t, id, saved[0].ID.Hex())
	assert.NotEqual(t, viewerID, saved[0].OwnerID)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/watch-later", nil), false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPlaylistRoutes(t *testing.T) {
	s := newTestServer(t, 1<<20)
	id := s.upload(t, "Test")

	w := s.do(httptest.NewRequest(http.MethodPost, "/api/playlists", bytes.NewBufferString(`{"description":"no name"}`)), true)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []any{"Name is required"}, decode[map[string]any](t, w)["details"])

	w = s.do(httptest.NewRequest(http.MethodPost, "/api/playlists", bytes.NewBufferString(`{"name":"Favourites","isPublic":true}`)), true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	playlist := decode[domain.Playlist](t, w)
	assert.Equal(t, s.userID, playlist.OwnerID)

	add := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/playlists/"+playlist.ID.Hex()+"/videos",
			bytes.NewBufferString(fmt.Sprintf(`{"videoId":%q}`, id)))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
			return s.do(req, false)
		}
		return s.do(req, true)
	}
	w = add("")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = add("")
	assert.Equal(t, http.StatusBadRequest, w.Code, "duplicate video")

	_, otherToken := s.second(t, "stranger")
	w = add(otherToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/playlists", nil), true)
	require.Equal(t, http.StatusOK, w.Code)
	mine := decode[[]domain.Playlist](t, w)
	require.Len(t, mine, 1)
	require.Len(t, mine[0].Videos, 1)
	assert.Equal(t, id, mine[0].Videos[0].VideoID.Hex())
}

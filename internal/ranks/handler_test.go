package ranks

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rolelink/rolelink/internal/identity"
)

func newRanksRouter(t *testing.T, repo *identityRepoMock, source *sourceMock, writer *writerMock, discordID string) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(repo, testCatalog(t), source, writer, logger)
	h := NewHandler(logger, svc)

	r := chi.NewRouter()
	if discordID != "" {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				sess := identity.Session{Identity: &identity.Identity{DiscordID: discordID}}
				next.ServeHTTP(w, req.WithContext(identity.ContextWithSession(req.Context(), sess)))
			})
		})
	}
	r.Route("/api/ranks", h.MountRoutes)
	return r
}

func TestHandleSetRank(t *testing.T) {
	repo := new(identityRepoMock)
	source := new(sourceMock)
	writer := new(writerMock)
	repo.On("GetByDiscordID", mock.Anything, "d-setter").Return(linked("d-setter", "100"), nil)
	repo.On("GetByDiscordID", mock.Anything, "d-target").Return(linked("d-target", "200"), nil)
	source.On("Ranks", mock.Anything, "100").Return(map[string]int{"Eden": 5}, nil)
	source.On("Ranks", mock.Anything, "200").Return(map[string]int{"Eden": 4}, nil)
	writer.On("SetRank", mock.Anything, "200", "Eden", 3).Return(nil)

	router := newRanksRouter(t, repo, source, writer, "d-setter")

	body := `{"targetDiscordId":"d-target","rank":3}`
	req := httptest.NewRequest(http.MethodPost, "/api/ranks/Eden", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	writer.AssertExpectations(t)
}

func TestHandleSetRankForbidden(t *testing.T) {
	repo := new(identityRepoMock)
	source := new(sourceMock)
	writer := new(writerMock)
	repo.On("GetByDiscordID", mock.Anything, "d-setter").Return(linked("d-setter", "100"), nil)
	repo.On("GetByDiscordID", mock.Anything, "d-target").Return(linked("d-target", "200"), nil)
	source.On("Ranks", mock.Anything, "100").Return(map[string]int{"Eden": 2}, nil)
	source.On("Ranks", mock.Anything, "200").Return(map[string]int{"Eden": 1}, nil)

	router := newRanksRouter(t, repo, source, writer, "d-setter")

	body := `{"targetDiscordId":"d-target","rank":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/ranks/Eden", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	writer.AssertNotCalled(t, "SetRank", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleSetRankWithoutSession(t *testing.T) {
	router := newRanksRouter(t, new(identityRepoMock), new(sourceMock), new(writerMock), "")

	body := `{"targetDiscordId":"d-target","rank":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/ranks/Eden", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleSetRankMissingTarget(t *testing.T) {
	router := newRanksRouter(t, new(identityRepoMock), new(sourceMock), new(writerMock), "d-setter")

	req := httptest.NewRequest(http.MethodPost, "/api/ranks/Eden", strings.NewReader(`{"rank":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleExile(t *testing.T) {
	repo := new(identityRepoMock)
	source := new(sourceMock)
	writer := new(writerMock)
	repo.On("GetByDiscordID", mock.Anything, "d-setter").Return(linked("d-setter", "100"), nil)
	repo.On("GetByDiscordID", mock.Anything, "d-target").Return(linked("d-target", "200"), nil)
	source.On("Ranks", mock.Anything, "100").Return(map[string]int{"Eden": 5}, nil)
	source.On("Ranks", mock.Anything, "200").Return(map[string]int{"Eden": 2}, nil)
	writer.On("SetRank", mock.Anything, "200", "Eden", 0).Return(nil)

	router := newRanksRouter(t, repo, source, writer, "d-setter")

	body := `{"targetDiscordId":"d-target"}`
	req := httptest.NewRequest(http.MethodPost, "/api/ranks/Eden/exile", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	writer.AssertExpectations(t)
}

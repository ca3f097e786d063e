package groups

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalogRouter(t *testing.T) http.Handler {
	t.Helper()

	catalog, err := Load()
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, catalog, nil)

	router := chi.NewRouter()
	router.Route("/groups", handler.MountRoutes)
	return router
}

func TestHandleList(t *testing.T) {
	router := newCatalogRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/groups", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var views []GroupView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 2)

	byName := make(map[string]GroupView, len(views))
	for _, view := range views {
		byName[view.Name] = view
	}

	eden, ok := byName["Eden"]
	require.True(t, ok)
	assert.Empty(t, eden.Parent)
	assert.Equal(t, 7, eden.RankCount)

	architects, ok := byName["Architects"]
	require.True(t, ok)
	assert.Equal(t, "Eden", architects.Parent)
}

func TestHandleListOmitsNilParent(t *testing.T) {
	router := newCatalogRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/groups", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var raw []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	for _, entry := range raw {
		var name string
		require.NoError(t, json.Unmarshal(entry["name"], &name))
		if name == "Eden" {
			_, present := entry["parent"]
			assert.False(t, present, "top-level group must not carry a parent")
		}
	}
}

func TestHandleListSkipsHiddenGroups(t *testing.T) {
	data := []byte(`{
		"Visible": {"Icon": "", "Parent": null, "IsPublic": true, "IsHidden": false,
			"Classes": {"Member": 1, "Officer": 2, "Command": 3, "Leader": 4},
			"Ranks": {"1": "Recruit"}},
		"Shadow": {"Icon": "", "Parent": null, "IsPublic": false, "IsHidden": true,
			"Classes": {"Member": 1, "Officer": 2, "Command": 3, "Leader": 4},
			"Ranks": {"1": "Ghost"}}
	}`)
	catalog, err := LoadFrom(data)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, catalog, nil)

	router := chi.NewRouter()
	router.Route("/groups", handler.MountRoutes)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/groups", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var views []GroupView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "Visible", views[0].Name)
}

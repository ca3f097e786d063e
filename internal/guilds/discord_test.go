package guilds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rolelink/rolelink/internal/shared"
)

func newTestDirectory(t *testing.T, handler http.HandlerFunc) *DiscordDirectory {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewDiscordDirectory("bot-token", "bot-1").WithBaseURL(server.URL)
}

func TestRolesParsesPermissionStrings(t *testing.T) {
	directory := newTestDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bot bot-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/guilds/guild-1/roles", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"r1","name":"Admins","position":5,"permissions":"8"},
			{"id":"r2","name":"Bots","position":3,"managed":true,"permissions":"268435456"}
		]`))
	})

	roles, err := directory.Roles(context.Background(), "guild-1")
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, PermissionAdministrator, roles[0].Permissions)
	assert.Equal(t, PermissionManageRoles, roles[1].Permissions)
	assert.True(t, roles[1].Managed)
}

func TestMemberResolvesPermissionsFromRoles(t *testing.T) {
	directory := newTestDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/guilds/guild-1/members/user-1":
			_, _ = w.Write([]byte(`{"user":{"id":"user-1"},"roles":["r1"]}`))
		case "/guilds/guild-1/roles":
			_, _ = w.Write([]byte(`[
				{"id":"guild-1","name":"@everyone","position":0,"permissions":"1024"},
				{"id":"r1","name":"Admins","position":5,"permissions":"8"}
			]`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	member, err := directory.Member(context.Background(), "guild-1", "user-1")
	require.NoError(t, err)
	assert.True(t, member.Admin())
	// @everyone permissions apply even though it is not in the role list.
	assert.NotZero(t, member.Permissions&1024)
	assert.Equal(t, 5, member.TopPosition)
}

func TestMemberNotFound(t *testing.T) {
	directory := newTestDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := directory.Member(context.Background(), "guild-1", "ghost")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUserGuildsUsesBearerToken(t *testing.T) {
	directory := newTestDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-token", r.Header.Get("Authorization"))
		assert.Equal(t, "true", r.URL.Query().Get("with_counts"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"g1","name":"Eden HQ","approximate_member_count":40,"permissions":"8"},
			{"id":"g2","name":"Plaza","approximate_member_count":9,"permissions":"1024"}
		]`))
	})

	guilds, err := directory.UserGuilds(context.Background(), "access-token")
	require.NoError(t, err)
	require.Len(t, guilds, 2)
	assert.True(t, guilds[0].Admin())
	assert.False(t, guilds[1].Admin())
	assert.Equal(t, 40, guilds[0].MemberCount)
}

func TestMembersPagination(t *testing.T) {
	const pageSize = memberPageSize

	firstPage := `[`
	for i := 0; i < pageSize; i++ {
		if i > 0 {
			firstPage += ","
		}
		firstPage += `{"user":{"id":"` + strconv.Itoa(i) + `"},"roles":[]}`
	}
	firstPage += `]`

	directory := newTestDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/guilds/guild-1/roles":
			_, _ = w.Write([]byte(`[]`))
		case r.URL.Query().Get("after") == "":
			_, _ = w.Write([]byte(firstPage))
		default:
			assert.Equal(t, strconv.Itoa(pageSize-1), r.URL.Query().Get("after"))
			_, _ = w.Write([]byte(`[{"user":{"id":"last"},"roles":[]}]`))
		}
	})

	members, err := directory.Members(context.Background(), "guild-1")
	require.NoError(t, err)
	assert.Len(t, members, pageSize+1)
	assert.Equal(t, "last", members[pageSize].UserID)
}

func TestRemoveRoleIdempotentOn404(t *testing.T) {
	directory := newTestDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	require.NoError(t, directory.RemoveRole(context.Background(), "guild-1", "user-1", "r1"))
	require.ErrorIs(t, directory.AddRole(context.Background(), "guild-1", "user-1", "r1"), shared.ErrNotFound)
}

package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookieRoundTrip(t *testing.T) {
	cred := Credential{Token: "abc", RefreshToken: "def", ExpiresAt: 1}

	res := httptest.NewRecorder()
	WriteCookie(res, cred, DefaultCookieTTL)

	cookies := res.Result().Cookies()
	require.Len(t, cookies, 1)
	set := cookies[0]
	assert.Equal(t, CookieName, set.Name)
	assert.True(t, set.HttpOnly)
	assert.True(t, set.Secure)
	assert.Equal(t, http.SameSiteNoneMode, set.SameSite)
	assert.Equal(t, int(DefaultCookieTTL/time.Second), set.MaxAge)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: set.Name, Value: set.Value})

	got := ReadCookie(req)
	assert.Equal(t, Cookie{Token: "abc", RefreshToken: "def"}, got)
}

func TestReadCookieMissingOrMalformed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, Cookie{}, ReadCookie(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "not-json"})
	assert.Equal(t, Cookie{}, ReadCookie(req))
}

func TestClearCookie(t *testing.T) {
	res := httptest.NewRecorder()
	ClearCookie(res)

	cookies := res.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
	assert.Empty(t, cookies[0].Value)
}

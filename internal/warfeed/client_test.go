package warfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fortrealm/server/internal/errs"
)

func feedServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchParsesForts(t *testing.T) {
	srv := feedServer(t, http.StatusOK, `{
		"forts": [
			{"name": "Keep (17)", "owner": "B"},
			{"name": "North Wall (3)", "owner": "alpha"},
			{"name": "Harbor (21)", "owner": "c"}
		]
	}`)

	c := NewClient(srv.URL, time.Second, zap.NewNop())
	forts, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Fort{
		{TerritoryID: 17, Owner: "B"},
		{TerritoryID: 21, Owner: "C"},
	}, forts)
}

func TestFetchSkipsEmptyOwnerAndBadNames(t *testing.T) {
	srv := feedServer(t, http.StatusOK, `{
		"forts": [
			{"name": "Keep (17)", "owner": ""},
			{"name": "No ID Fort", "owner": "A"},
			{"name": "Keep (18)", "owner": "a"}
		]
	}`)

	c := NewClient(srv.URL, time.Second, zap.NewNop())
	forts, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Fort{{TerritoryID: 18, Owner: "A"}}, forts)
}

func TestFetchErrorStatus(t *testing.T) {
	srv := feedServer(t, http.StatusBadGateway, `upstream broke`)

	c := NewClient(srv.URL, time.Second, zap.NewNop())
	_, err := c.Fetch(context.Background())
	assert.ErrorIs(t, err, errs.ErrExternalFeedFailed)
}

func TestFetchMalformedBody(t *testing.T) {
	srv := feedServer(t, http.StatusOK, `{not json`)

	c := NewClient(srv.URL, time.Second, zap.NewNop())
	_, err := c.Fetch(context.Background())
	assert.ErrorIs(t, err, errs.ErrExternalFeedFailed)
}

func TestFetchUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1/feed", 200*time.Millisecond, zap.NewNop())
	_, err := c.Fetch(context.Background())
	assert.ErrorIs(t, err, errs.ErrExternalFeedFailed)
}

func TestTerritoryIDPattern(t *testing.T) {
	cases := map[string]string{
		"Keep (17)":        "17",
		"Fort Alpha (3) ":  "3",
		"Two (1) Keep (9)": "9",
		"Nameless":         "",
		"Paren (x)":        "",
	}
	for name, want := range cases {
		m := territoryIDPattern.FindStringSubmatch(name)
		if want == "" {
			assert.Nil(t, m, name)
			continue
		}
		require.NotNil(t, m, name)
		assert.Equal(t, want, m[1], name)
	}
}

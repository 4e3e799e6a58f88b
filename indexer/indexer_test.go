package indexer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/decred/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// graphqlStub serves canned responses and records the variables it saw.
func graphqlStub(t *testing.T, body string, seen *map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req struct {
			Variables map[string]interface{} `json:"variables"`
		}
		require.NoError(t, json.Unmarshal(raw, &req))
		if seen != nil {
			*seen = req.Variables
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}))
}

func TestResolvedGames(t *testing.T) {
	const body = `{"data":{"gameResolveds":[
		{"requestId":"42","player":"0xabc","didWin":true,"payout":"20000000000000000000","blockTimestamp":"1700000000","transactionHash":"0xdead"},
		{"requestId":"41","player":"0xabc","didWin":false,"payout":"0","blockTimestamp":"1699990000","transactionHash":"0xbeef"}
	]}}`

	var seen map[string]interface{}
	srv := graphqlStub(t, body, &seen)
	defer srv.Close()

	c := New(slog.Disabled, srv.URL)
	games, err := c.ResolvedGames(context.Background(), "0xABC", 10, 0)
	require.NoError(t, err)
	require.Len(t, games, 2)

	assert.Equal(t, "42", games[0].RequestID.String())
	assert.True(t, games[0].Won)
	assert.Equal(t, "20000000000000000000", games[0].Payout.String())
	assert.Equal(t, int64(1700000000), games[0].Timestamp.Unix())
	assert.False(t, games[1].Won)

	// Addresses are lowercased before querying; the subgraph stores them
	// that way.
	assert.Equal(t, "0xabc", seen["player"])
	assert.Equal(t, float64(10), seen["first"])
	assert.Equal(t, float64(0), seen["skip"])
}

func TestResolvedGamesSkipsMalformedEntries(t *testing.T) {
	const body = `{"data":{"gameResolveds":[
		{"requestId":"not-a-number","player":"0xabc","didWin":true,"payout":"1","blockTimestamp":"1","transactionHash":"0x1"},
		{"requestId":"7","player":"0xabc","didWin":true,"payout":"1","blockTimestamp":"1","transactionHash":"0x2"}
	]}}`

	srv := graphqlStub(t, body, nil)
	defer srv.Close()

	c := New(slog.Disabled, srv.URL)
	games, err := c.ResolvedGames(context.Background(), "0xabc", 10, 0)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "7", games[0].RequestID.String())
}

func TestCreatedGames(t *testing.T) {
	const body = `{"data":{"gameCreateds":[
		{"gameId":"3","creator":"0xabc","betAmount":"5000000000000000000","tokenAddress":"0xtok","blockTimestamp":"1700000100"}
	]}}`

	srv := graphqlStub(t, body, nil)
	defer srv.Close()

	c := New(slog.Disabled, srv.URL)
	games, err := c.CreatedGames(context.Background(), "0xabc", 5, 0)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, uint64(3), games[0].GameID)
	assert.Equal(t, "5000000000000000000", games[0].BetAmount.String())
}

func TestQueryErrorSurfaces(t *testing.T) {
	srv := graphqlStub(t, `{"errors":[{"message":"store is syncing"}]}`, nil)
	defer srv.Close()

	c := New(slog.Disabled, srv.URL)
	_, err := c.ResolvedGames(context.Background(), "0xabc", 5, 0)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "store is syncing"))
}

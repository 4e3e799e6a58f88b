// Package indexer reads historical game activity from the subgraph. The chain
// only answers point lookups; listing a player's past flips and created games
// needs the indexed event store.
package indexer

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/decred/slog"
	"github.com/machinebox/graphql"
)

// ResolvedGame is one settled flip from the subgraph's gameResolveds
// collection.
type ResolvedGame struct {
	RequestID *big.Int
	Player    string
	Won       bool
	Payout    *big.Int
	Timestamp time.Time
	TxHash    string
}

// CreatedGame is one gameCreateds entry.
type CreatedGame struct {
	GameID    uint64
	Creator   string
	BetAmount *big.Int
	Token     string
	Timestamp time.Time
}

// Client queries the FlipIt subgraph.
type Client struct {
	log slog.Logger
	gql *graphql.Client
}

func New(log slog.Logger, url string) *Client {
	hc := &http.Client{Timeout: 15 * time.Second}
	return &Client{
		log: log,
		gql: graphql.NewClient(url, graphql.WithHTTPClient(hc)),
	}
}

const resolvedQuery = `
query ($player: Bytes!, $first: Int!, $skip: Int!) {
  gameResolveds(
    where: {player: $player}
    orderBy: blockTimestamp
    orderDirection: desc
    first: $first
    skip: $skip
  ) {
    requestId
    player
    didWin
    payout
    blockTimestamp
    transactionHash
  }
}`

const createdQuery = `
query ($creator: Bytes!, $first: Int!, $skip: Int!) {
  gameCreateds(
    where: {creator: $creator}
    orderBy: blockTimestamp
    orderDirection: desc
    first: $first
    skip: $skip
  ) {
    gameId
    creator
    betAmount
    tokenAddress
    blockTimestamp
  }
}`

type resolvedResp struct {
	GameResolveds []struct {
		RequestID       string `json:"requestId"`
		Player          string `json:"player"`
		DidWin          bool   `json:"didWin"`
		Payout          string `json:"payout"`
		BlockTimestamp  string `json:"blockTimestamp"`
		TransactionHash string `json:"transactionHash"`
	} `json:"gameResolveds"`
}

type createdResp struct {
	GameCreateds []struct {
		GameID         string `json:"gameId"`
		Creator        string `json:"creator"`
		BetAmount      string `json:"betAmount"`
		TokenAddress   string `json:"tokenAddress"`
		BlockTimestamp string `json:"blockTimestamp"`
	} `json:"gameCreateds"`
}

// ResolvedGames returns up to limit settled flips for player, newest first.
// skip selects deeper pages.
func (c *Client) ResolvedGames(ctx context.Context, player string, limit, skip int) ([]*ResolvedGame, error) {
	req := graphql.NewRequest(resolvedQuery)
	req.Var("player", strings.ToLower(player))
	req.Var("first", limit)
	req.Var("skip", skip)

	var resp resolvedResp
	if err := c.gql.Run(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("query resolved games: %w", err)
	}

	out := make([]*ResolvedGame, 0, len(resp.GameResolveds))
	for _, r := range resp.GameResolveds {
		id, ok := new(big.Int).SetString(r.RequestID, 10)
		if !ok {
			c.log.Warnf("indexer: bad requestId %q, skipping entry", r.RequestID)
			continue
		}
		out = append(out, &ResolvedGame{
			RequestID: id,
			Player:    r.Player,
			Won:       r.DidWin,
			Payout:    parseWei(r.Payout),
			Timestamp: parseUnix(r.BlockTimestamp),
			TxHash:    r.TransactionHash,
		})
	}
	c.log.Debugf("indexer: %d resolved games for %s", len(out), player)
	return out, nil
}

// CreatedGames returns up to limit games created by creator, newest first.
func (c *Client) CreatedGames(ctx context.Context, creator string, limit, skip int) ([]*CreatedGame, error) {
	req := graphql.NewRequest(createdQuery)
	req.Var("creator", strings.ToLower(creator))
	req.Var("first", limit)
	req.Var("skip", skip)

	var resp createdResp
	if err := c.gql.Run(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("query created games: %w", err)
	}

	out := make([]*CreatedGame, 0, len(resp.GameCreateds))
	for _, r := range resp.GameCreateds {
		id, ok := new(big.Int).SetString(r.GameID, 10)
		if !ok || !id.IsUint64() {
			c.log.Warnf("indexer: bad gameId %q, skipping entry", r.GameID)
			continue
		}
		out = append(out, &CreatedGame{
			GameID:    id.Uint64(),
			Creator:   r.Creator,
			BetAmount: parseWei(r.BetAmount),
			Token:     r.TokenAddress,
			Timestamp: parseUnix(r.BlockTimestamp),
		})
	}
	return out, nil
}

// parseWei decodes a decimal base-unit amount, zero on malformed input.
func parseWei(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0)
	}
	return v
}

// parseUnix decodes a unix-seconds string, zero time on malformed input.
func parseUnix(s string) time.Time {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || !v.IsInt64() {
		return time.Time{}
	}
	return time.Unix(v.Int64(), 0).UTC()
}

package client

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	flipit "github.com/Pradise2/FlipIt"
)

// FetchBalanceAndSymbol reads the owner's balance and the token symbol as one
// unit: both values are stored together or not at all, so the UI never shows
// a fresh balance next to a stale symbol. The chain session already retries
// the fallback provider underneath; a failure here means both paths failed.
func (c *FlipClient) FetchBalanceAndSymbol(ctx context.Context, token common.Address) (*big.Int, string, error) {
	owner := c.be.Owner()
	if owner == (common.Address{}) {
		return nil, "", flipit.ErrNotConnected
	}

	balance, err := c.be.TokenBalance(ctx, token, owner)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", flipit.ErrTokenUnavailable, err)
	}
	symbol, err := c.be.TokenSymbol(ctx, token)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", flipit.ErrTokenUnavailable, err)
	}

	c.Lock()
	c.token = token
	c.balance = balance
	c.symbol = symbol
	c.Unlock()
	return balance, symbol, nil
}

// FetchAllowance reads what owner has authorized the game contract to spend.
// On failure the caller must treat the allowance as unknown — and proceed as
// though it were insufficient, never sufficient.
func (c *FlipClient) FetchAllowance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	allowance, err := c.be.Allowance(ctx, token, owner)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", flipit.ErrAllowanceUnavailable, err)
	}
	return allowance, nil
}

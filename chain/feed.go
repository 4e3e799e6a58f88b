package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// StreamBetResults subscribes to BetResult logs from the game contract and
// calls deliver for each decoded outcome, blocking until ctx is cancelled or
// the subscription dies. It needs a websocket endpoint; plain HTTP providers
// return an error immediately and callers fall back to polling.
func (s *Session) StreamBetResults(ctx context.Context, deliver func(*Outcome)) error {
	ec, err := s.providers.Primary(ctx)
	if err != nil {
		return err
	}

	q := ethereum.FilterQuery{
		Addresses: []common.Address{s.addr},
		Topics:    [][]common.Hash{{FlipABI.Events["BetResult"].ID}},
	}
	logs := make(chan types.Log, 16)
	sub, err := ec.SubscribeFilterLogs(ctx, q, logs)
	if err != nil {
		return fmt.Errorf("subscribe BetResult logs: %w", err)
	}
	defer sub.Unsubscribe()
	s.log.Infof("chain: BetResult log feed started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return fmt.Errorf("BetResult log feed: %w", err)
		case lg := <-logs:
			if lg.Removed {
				continue
			}
			out, err := DecodeBetResult(&lg)
			if err != nil {
				s.log.Warnf("chain: undecodable BetResult log in tx %s: %v", lg.TxHash, err)
				continue
			}
			deliver(out)
		}
	}
}

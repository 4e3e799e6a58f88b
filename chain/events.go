package chain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// RequestIDFromLogs extracts the randomness request identifier from the
// BetSent event in a confirmed flip receipt. The second return is false when
// no BetSent log from the contract is present; callers must treat that as a
// protocol mismatch, never as success.
func RequestIDFromLogs(contract common.Address, logs []*types.Log) (*big.Int, bool) {
	sig := FlipABI.Events["BetSent"].ID
	for _, lg := range logs {
		if lg == nil || lg.Address != contract {
			continue
		}
		if len(lg.Topics) < 2 || lg.Topics[0] != sig {
			continue
		}
		return new(big.Int).SetBytes(lg.Topics[1].Bytes()), true
	}
	return nil, false
}

// DecodeBetResult decodes a BetResult log into an Outcome.
func DecodeBetResult(lg *types.Log) (*Outcome, error) {
	ev := FlipABI.Events["BetResult"]
	if len(lg.Topics) < 2 || lg.Topics[0] != ev.ID {
		return nil, fmt.Errorf("not a BetResult log")
	}
	vals, err := ev.Inputs.NonIndexed().Unpack(lg.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack BetResult: %w", err)
	}
	return &Outcome{
		RequestID:  new(big.Int).SetBytes(lg.Topics[1].Bytes()),
		Won:        vals[0].(bool),
		RolledFace: vals[1].(bool),
		Payout:     vals[2].(*big.Int),
	}, nil
}

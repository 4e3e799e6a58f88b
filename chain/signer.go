package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer produces transact options for write calls. Implementations may
// refuse (a wallet-style rejection); callers must treat that as a clean abort
// with no state change.
type Signer interface {
	Address() common.Address
	Opts(ctx context.Context) (*bind.TransactOpts, error)
}

// KeyedSigner signs with an in-process private key.
type KeyedSigner struct {
	addr common.Address
	opts *bind.TransactOpts
}

// NewKeyedSigner builds a signer from a hex-encoded private key bound to
// chainID.
func NewKeyedSigner(privHex string, chainID *big.Int) (*KeyedSigner, error) {
	key, err := crypto.HexToECDSA(privHex)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("build transactor: %w", err)
	}
	return &KeyedSigner{addr: crypto.PubkeyToAddress(key.PublicKey), opts: opts}, nil
}

func (k *KeyedSigner) Address() common.Address { return k.addr }

func (k *KeyedSigner) Opts(ctx context.Context) (*bind.TransactOpts, error) {
	o := *k.opts
	o.Context = ctx
	return &o, nil
}

package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/decred/slog"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Providers holds the process-wide RPC handles: a primary endpoint and an
// optional fallback tried when the primary fails. Handles are dialed lazily,
// once, and shared by every reader.
type Providers struct {
	log         slog.Logger
	primaryURL  string
	fallbackURL string

	mu       sync.Mutex
	primary  *ethclient.Client
	fallback *ethclient.Client
}

func NewProviders(log slog.Logger, primaryURL, fallbackURL string) *Providers {
	return &Providers{
		log:         log,
		primaryURL:  primaryURL,
		fallbackURL: fallbackURL,
	}
}

// Primary returns the primary RPC client, dialing it on first use.
func (p *Providers) Primary(ctx context.Context) (*ethclient.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.primary != nil {
		return p.primary, nil
	}
	ec, err := ethclient.DialContext(ctx, p.primaryURL)
	if err != nil {
		return nil, fmt.Errorf("dial primary rpc: %w", err)
	}
	p.log.Debugf("chain: primary provider connected (%s)", p.primaryURL)
	p.primary = ec
	return ec, nil
}

// Fallback returns the fallback RPC client, dialing it on first use. Returns
// an error when no fallback endpoint is configured.
func (p *Providers) Fallback(ctx context.Context) (*ethclient.Client, error) {
	if p.fallbackURL == "" {
		return nil, fmt.Errorf("no fallback rpc configured")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fallback != nil {
		return p.fallback, nil
	}
	ec, err := ethclient.DialContext(ctx, p.fallbackURL)
	if err != nil {
		return nil, fmt.Errorf("dial fallback rpc: %w", err)
	}
	p.log.Debugf("chain: fallback provider connected (%s)", p.fallbackURL)
	p.fallback = ec
	return ec, nil
}

// Close tears down any dialed handles.
func (p *Providers) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.primary != nil {
		p.primary.Close()
		p.primary = nil
	}
	if p.fallback != nil {
		p.fallback.Close()
		p.fallback = nil
	}
}

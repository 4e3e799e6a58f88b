package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/Pradise2/FlipIt/chain"
	"github.com/Pradise2/FlipIt/client"
	"github.com/Pradise2/FlipIt/games"
	"github.com/Pradise2/FlipIt/indexer"
	"github.com/Pradise2/FlipIt/logging"
	"github.com/Pradise2/FlipIt/watcher"
)

var (
	datadir      = flag.String("datadir", "", "Directory for logs and state")
	flagRPC      = flag.String("rpcurl", "", "Primary chain RPC endpoint")
	flagFallback = flag.String("fallbackrpc", "", "Fallback chain RPC endpoint")
	flagContract = flag.String("contract", "", "FlipIt contract address")
	flagSubgraph = flag.String("subgraph", "", "Subgraph query URL")
	flagPrivKey  = flag.String("privkey", "", "Hex private key (omit for read-only mode)")
	flagDebug    = flag.String("debuglevel", "info", "Log level")
)

func realMain() error {
	flag.Parse()
	if *datadir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home dir: %w", err)
		}
		*datadir = filepath.Join(home, ".flipit")
	}

	cfg, err := client.LoadAppConfig(client.ConfigOverrides{
		DataDir:        *datadir,
		RPCURL:         *flagRPC,
		FallbackRPCURL: *flagFallback,
		ContractAddr:   *flagContract,
		SubgraphURL:    *flagSubgraph,
		PrivKeyHex:     *flagPrivKey,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lb, err := logging.NewLogBackend(logging.LogConfig{
		LogFile:        filepath.Join(cfg.DataDir, "logs", "flipit.log"),
		DebugLevel:     *flagDebug,
		MaxLogFiles:    10,
		MaxBufferLines: 1000,
	})
	if err != nil {
		return err
	}
	defer lb.Close()
	log := lb.Logger("FLIP")

	providers := chain.NewProviders(lb.Logger("CHAN"), cfg.RPCURL, cfg.FallbackRPCURL)
	defer providers.Close()

	var signer chain.Signer
	if cfg.PrivKeyHex != "" {
		ks, err := chain.NewKeyedSigner(cfg.PrivKeyHex, big.NewInt(cfg.ChainID))
		if err != nil {
			return fmt.Errorf("load key: %w", err)
		}
		signer = ks
		log.Infof("wallet %s on chain %d", ks.Address(), cfg.ChainID)
	} else {
		log.Warnf("no private key configured, running read-only")
	}

	session := chain.NewSession(lb.Logger("CHAN"), providers, cfg.Contract(), signer)

	w := watcher.New(lb.Logger("WTCH"), session, cfg.PollInterval)
	fc, err := client.NewFlipClient(cfg, log, session, w)
	if err != nil {
		return err
	}

	lister := games.NewLister(lb.Logger("LIST"), session, cfg.PageSize)

	var history *indexer.Client
	if cfg.SubgraphURL != "" {
		history = indexer.New(lb.Logger("IDXR"), cfg.SubgraphURL)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w.Run(gctx)
		return nil
	})
	g.Go(func() error {
		// Push backing: feed decoded BetResult logs into the watcher. HTTP
		// providers reject subscriptions; polling still covers settlement.
		err := session.StreamBetResults(gctx, func(out *chain.Outcome) {
			w.Deliver(watcher.Fulfillment{
				RequestID:  out.RequestID,
				Won:        out.Won,
				RolledFace: out.RolledFace,
				Payout:     out.Payout,
			})
		})
		if err != nil && gctx.Err() == nil {
			log.Debugf("log feed unavailable, polling only: %v", err)
		}
		return nil
	})

	as := newAppState(ctx, cancel, lb, log, fc, lister, history)
	p := tea.NewProgram(as)
	if _, err := p.Run(); err != nil {
		return err
	}

	cancel()
	return g.Wait()
}

func main() {
	if err := realMain(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

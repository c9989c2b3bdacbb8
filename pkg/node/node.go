// Package node assembles a ledger node service from its configuration: one
// ledger store and signing key per replica, the PBFT engine over them and
// the Harn coordinator holding each replica's identity key.
package node

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/Caqil/harn-ledger/pkg/audit"
	"github.com/Caqil/harn-ledger/pkg/config"
	"github.com/Caqil/harn-ledger/pkg/harn"
	"github.com/Caqil/harn-ledger/pkg/keygen"
	"github.com/Caqil/harn-ledger/pkg/ledger"
	"github.com/Caqil/harn-ledger/pkg/logger"
	"github.com/Caqil/harn-ledger/pkg/metrics"
	"github.com/Caqil/harn-ledger/pkg/pbft"
)

// Options carries the observability sinks shared by every component
type Options struct {
	Metrics *metrics.Metrics
	Audit   *audit.Logger
	Logger  *logger.Logger
}

// Node is a running cluster
type Node struct {
	Engine      *pbft.Engine
	Coordinator *harn.Coordinator
	Officer     *keygen.KeyPair
	RandomVals  map[string]*big.Int

	files []*ledger.FileStore
}

// Build parses cfg, opens the stores and wires the engine and coordinator
func Build(cfg *config.Config, opts Options) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cluster, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = logger.Component("node")
	}

	pkg, err := harn.NewPKG(cluster.PKG)
	if err != nil {
		return nil, fmt.Errorf("pkg: %w", err)
	}

	n := &Node{
		Officer:    cluster.Officer,
		RandomVals: make(map[string]*big.Int, len(cluster.Nodes)),
	}

	replicas := make([]pbft.Replica, 0, len(cluster.Nodes))
	signers := make([]*harn.Signer, 0, len(cluster.Nodes))
	for _, c := range cluster.Nodes {
		name := c.Key.Name

		store, err := n.openStore(cfg, name)
		if err != nil {
			n.Close()
			return nil, fmt.Errorf("store %s: %w", name, err)
		}
		replicas = append(replicas, pbft.Replica{Key: c.Key, Store: store})

		var salt []byte
		if c.RandomVal != nil {
			salt = c.RandomVal.Bytes()
			n.RandomVals[name] = c.RandomVal
		}
		signer, err := pkg.Extract(name, c.Identity, salt)
		if err != nil {
			n.Close()
			return nil, fmt.Errorf("extract %s: %w", name, err)
		}
		signers = append(signers, signer)
	}

	engineCfg := pbft.DefaultConfig()
	engineCfg.RequirePrimary = cfg.RequirePrimary
	engineCfg.MaxFaulty = cfg.MaxFaulty
	engineCfg.ReconcileInterval = cfg.ReconcileInterval

	n.Engine, err = pbft.NewEngine(engineCfg, replicas,
		pbft.WithAudit(opts.Audit),
		pbft.WithMetrics(opts.Metrics),
		pbft.WithLogger(log),
	)
	if err != nil {
		n.Close()
		return nil, err
	}

	n.Coordinator, err = harn.NewCoordinator(pkg.Params(), signers...)
	if err != nil {
		n.Close()
		return nil, err
	}

	log.InfoEvent().
		Int("replicas", len(replicas)).
		Int("max_faulty", n.Engine.MaxFaulty()).
		Bool("persistent", cfg.DataDir != "").
		Bool("encrypted", cfg.StorePassphrase != "").
		Msg("cluster ready")

	return n, nil
}

func (n *Node) openStore(cfg *config.Config, name string) (ledger.Store, error) {
	if cfg.DataDir == "" {
		return ledger.NewMemoryStore(name), nil
	}

	storeCfg := ledger.DefaultStoreConfig(cfg.DataDir)
	storeCfg.Passphrase = cfg.StorePassphrase

	fs, err := ledger.OpenFileStore(storeCfg, name)
	if err != nil {
		return nil, err
	}
	n.files = append(n.files, fs)
	return fs, nil
}

// Close releases the file stores
func (n *Node) Close() error {
	var errs []error
	for _, fs := range n.files {
		if err := fs.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	n.files = nil
	return errors.Join(errs...)
}

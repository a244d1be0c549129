// Package node assembles the attestord and aggregatord processes from the
// signer, networking, attestor, aggregator and light client packages.
package node

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/attestlabs/attestor/attestor"
	"github.com/attestlabs/attestor/config"
	"github.com/attestlabs/attestor/networking"
	"github.com/attestlabs/attestor/networking/reqresp"
	"github.com/attestlabs/attestor/signer"
	"github.com/attestlabs/attestor/types"
)

// AttestorNode runs one attestor: a signer polling a chain adapter, the
// bounded attestation store, the req/resp server and the gossip announcer.
type AttestorNode struct {
	svc    *attestor.Service
	net    *networking.Service
	pubkey types.PublicKey
	logger *slog.Logger
}

// NewAttestor wires an attestor node from its config. Adapter may be nil, in
// which case the built-in devnet adapter is used.
func NewAttestor(ctx context.Context, cfg *config.AttestorConfig, adapter attestor.ChainAdapter, logger *slog.Logger) (*AttestorNode, error) {
	if logger == nil {
		logger = slog.Default()
	}

	key, err := signer.Load(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}

	host, err := networking.NewHost(ctx, networking.HostConfig{
		ListenAddrs: cfg.ListenAddrs,
	})
	if err != nil {
		return nil, fmt.Errorf("create host: %w", err)
	}

	peers, err := networking.ParseEndpoints(cfg.Peers)
	if err != nil {
		host.Close()
		return nil, fmt.Errorf("parse peers: %w", err)
	}

	netSvc, err := networking.NewService(ctx, networking.ServiceConfig{
		Host:   host,
		Peers:  peers,
		Logger: logger,
	})
	if err != nil {
		host.Close()
		return nil, fmt.Errorf("create networking service: %w", err)
	}

	if adapter == nil {
		genesisTime := cfg.GenesisTime
		if genesisTime == 0 {
			genesisTime = uint64(time.Now().Unix())
		}
		adapter = attestor.NewDevnetAdapter(genesisTime, cfg.BlockTime)
	}

	svc, err := attestor.NewService(ctx, attestor.Config{
		Signer:        key,
		Adapter:       adapter,
		Store:         attestor.NewStore(cfg.StoreCapacity),
		Publisher:     netSvc,
		PollInterval:  cfg.PollInterval.Std(),
		FinalizedOnly: cfg.FinalizedOnly,
		Logger:        logger,
	})
	if err != nil {
		netSvc.Stop()
		return nil, fmt.Errorf("create attestor service: %w", err)
	}

	server := reqresp.NewServer(host, logger)
	server.ServeAttestations(svc)

	return &AttestorNode{
		svc:    svc,
		net:    netSvc,
		pubkey: key.PublicKey(),
		logger: logger,
	}, nil
}

// Start begins attestor operation.
func (n *AttestorNode) Start() {
	n.net.Start()
	n.svc.Start()
	n.logger.Info("attestor node started", "public_key", n.pubkey)
}

// Stop gracefully shuts down the attestor.
func (n *AttestorNode) Stop() {
	n.svc.Stop()
	n.net.Stop()
	n.logger.Info("attestor node stopped")
}

// PublicKey returns the attestor's compressed public key.
func (n *AttestorNode) PublicKey() types.PublicKey {
	return n.pubkey
}

// PeerCount returns the number of connected peers.
func (n *AttestorNode) PeerCount() int {
	return n.net.PeerCount()
}

package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/attestlabs/attestor/aggregator"
	"github.com/attestlabs/attestor/config"
	"github.com/attestlabs/attestor/lightclient"
	"github.com/attestlabs/attestor/networking"
	"github.com/attestlabs/attestor/networking/reqresp"
	"github.com/attestlabs/attestor/storage"
	"github.com/attestlabs/attestor/storage/memory"
	"github.com/attestlabs/attestor/storage/pebbledb"
	"github.com/attestlabs/attestor/types"
)

// DefaultSyncInterval paces the aggregator's update loop.
const DefaultSyncInterval = 12 * time.Second

// AggregatorNode runs one aggregator: the fan-out collector, the gossip
// liveness tracker, the relayer-facing req/resp surface, and a light client
// kept in sync from the aggregates it produces.
type AggregatorNode struct {
	agg     *aggregator.Aggregator
	tracker *aggregator.HeightTracker
	net     *networking.Service
	client  *lightclient.Client
	store   storage.ClientStore

	trustedKeys []types.PublicKey
	quorum      uint32
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAggregator wires an aggregator node from its config.
func NewAggregator(ctx context.Context, cfg *config.AggregatorConfig, logger *slog.Logger) (*AggregatorNode, error) {
	if logger == nil {
		logger = slog.Default()
	}

	trustedKeys, err := cfg.ParseTrustedKeys()
	if err != nil {
		return nil, fmt.Errorf("parse trusted keys: %w", err)
	}

	endpoints, err := networking.ParseEndpoints(cfg.AttestorEndpoints)
	if err != nil {
		return nil, fmt.Errorf("parse attestor endpoints: %w", err)
	}

	host, err := networking.NewHost(ctx, networking.HostConfig{
		ListenAddrs: cfg.ListenAddrs,
	})
	if err != nil {
		return nil, fmt.Errorf("create host: %w", err)
	}

	tracker := aggregator.NewHeightTracker(trustedKeys, cfg.Quorum, logger)

	netSvc, err := networking.NewService(ctx, networking.ServiceConfig{
		Host:    host,
		Handler: tracker.OnAttestation,
		Peers:   endpoints,
		Logger:  logger,
	})
	if err != nil {
		host.Close()
		return nil, fmt.Errorf("create networking service: %w", err)
	}

	agg, err := aggregator.New(aggregator.Config{
		Fetcher:        aggregator.NewHostFetcher(host),
		Endpoints:      endpoints,
		TrustedKeys:    trustedKeys,
		Quorum:         cfg.Quorum,
		RequestTimeout: cfg.RequestTimeout.Std(),
		Logger:         logger,
	})
	if err != nil {
		netSvc.Stop()
		return nil, fmt.Errorf("create aggregator: %w", err)
	}

	var store storage.ClientStore
	if cfg.DataDir != "" {
		store, err = pebbledb.Open(cfg.DataDir)
		if err != nil {
			netSvc.Stop()
			return nil, fmt.Errorf("open client store: %w", err)
		}
	} else {
		store = memory.New()
	}

	server := reqresp.NewServer(host, logger)
	server.ServeAggregates(agg)
	server.ServeAttestations(agg)

	ctx, cancel := context.WithCancel(ctx)
	return &AggregatorNode{
		agg:         agg,
		tracker:     tracker,
		net:         netSvc,
		client:      lightclient.NewClient(store, logger),
		store:       store,
		trustedKeys: trustedKeys,
		quorum:      cfg.Quorum,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start begins aggregator operation.
func (n *AggregatorNode) Start() {
	n.net.Start()

	n.wg.Add(1)
	go n.syncLoop()

	n.logger.Info("aggregator node started", "quorum", n.quorum)
}

// Stop gracefully shuts down the aggregator.
func (n *AggregatorNode) Stop() {
	n.cancel()
	n.wg.Wait()
	n.net.Stop()
	if err := n.store.Close(); err != nil {
		n.logger.Warn("close client store", "error", err)
	}
	n.logger.Info("aggregator node stopped")
}

// Client exposes the tracking light client.
func (n *AggregatorNode) Client() *lightclient.Client {
	return n.client
}

// QuorumHeight returns the gossip-derived liveness height.
func (n *AggregatorNode) QuorumHeight() (uint64, error) {
	return n.tracker.QuorumHeight()
}

func (n *AggregatorNode) syncLoop() {
	defer n.wg.Done()

	ticker := time.NewTicker(DefaultSyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			if err := n.syncOnce(); err != nil {
				n.logger.Warn("sync cycle failed", "error", err)
			}
		}
	}
}

// syncOnce runs one aggregation round and feeds the result to the light
// client. Insufficient attestor responses are retried with exponential
// backoff within the cycle; anything else fails the cycle.
func (n *AggregatorNode) syncOnce() error {
	var aggregate *types.AggregatedAttestation

	op := func() error {
		agg, err := n.agg.Aggregate(n.ctx, n.client.LatestHeight()+1, n.quorum)
		if err != nil {
			var insufficient *aggregator.InsufficientResponsesError
			if errors.As(err, &insufficient) {
				return err
			}
			return backoff.Permanent(err)
		}
		aggregate = agg
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), n.ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return err
	}
	if aggregate == nil {
		// No state has reached quorum past our height yet.
		return nil
	}

	if n.client.Status() == lightclient.StatusUnknown {
		return n.initializeClient(aggregate)
	}

	header := aggregate.ToHeader(n.client.LatestHeight())
	if _, err := n.client.UpdateClient(header); err != nil {
		return fmt.Errorf("update client: %w", err)
	}
	return nil
}

// initializeClient bootstraps the light client from the first quorum
// aggregate observed.
func (n *AggregatorNode) initializeClient(aggregate *types.AggregatedAttestation) error {
	var payload types.StateAttestation
	if err := payload.UnmarshalSSZ(aggregate.AttestationData); err != nil {
		return fmt.Errorf("decode aggregate payload: %w", err)
	}

	cs := types.NewClientState(n.trustedKeys, n.quorum, aggregate.Height)
	// StateDigest is the attested claim-set root, the same value Update
	// stores, so proofs anchor at the bootstrap height exactly as they do at
	// updated heights. aggregate.StateDigest hashes the payload encoding and
	// must not end up here.
	cons := &types.ConsensusState{
		Height:      aggregate.Height,
		Timestamp:   payload.Timestamp,
		StateDigest: payload.StateRoot,
	}
	if err := n.client.Initialize(cs, cons); err != nil {
		return fmt.Errorf("initialize client: %w", err)
	}

	n.logger.Info("light client initialized",
		"height", aggregate.Height,
		"digest", payload.StateRoot.Short(),
	)
	return nil
}

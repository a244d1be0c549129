package attestor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/attestlabs/attestor/signer"
	"github.com/attestlabs/attestor/types"
)

// DefaultPollInterval is used when the config does not set one.
const DefaultPollInterval = 6 * time.Second

// Publisher announces freshly signed attestations to the network.
type Publisher interface {
	PublishAttestation(ctx context.Context, att *types.SignedAttestation) error
}

// Config holds configuration for the attestor service.
type Config struct {
	Signer  *signer.Signer
	Adapter ChainAdapter
	Store   *Store

	// Publisher is optional; a nil publisher disables announcements.
	Publisher Publisher

	PollInterval time.Duration

	// FinalizedOnly restricts attestations to finalized snapshots.
	FinalizedOnly bool

	Logger *slog.Logger
}

// Service polls the chain adapter on a fixed interval, signs a canonical
// attestation for each new height, retains it, and announces it.
type Service struct {
	signer    *signer.Signer
	adapter   ChainAdapter
	store     *Store
	publisher Publisher
	logger    *slog.Logger

	pollInterval  time.Duration
	finalizedOnly bool

	// Highest height attested so far; polls at or below it are skipped.
	lastHeight uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a new attestor service.
func NewService(ctx context.Context, cfg Config) (*Service, error) {
	if cfg.Signer == nil {
		return nil, errors.New("attestor: signer is required")
	}
	if cfg.Adapter == nil {
		return nil, errors.New("attestor: chain adapter is required")
	}
	if cfg.Store == nil {
		cfg.Store = NewStore(DefaultStoreCapacity)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(ctx)
	return &Service{
		signer:        cfg.Signer,
		adapter:       cfg.Adapter,
		store:         cfg.Store,
		publisher:     cfg.Publisher,
		logger:        cfg.Logger,
		pollInterval:  cfg.PollInterval,
		finalizedOnly: cfg.FinalizedOnly,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Start begins the poll loop.
func (s *Service) Start() {
	s.wg.Add(1)
	go s.pollLoop()

	s.logger.Info("attestor service started",
		"public_key", fmt.Sprintf("%x", s.signer.PublicKey()),
		"poll_interval", s.pollInterval,
		"finalized_only", s.finalizedOnly,
	)
}

// Stop shuts down the service and waits for the in-flight poll to finish.
func (s *Service) Stop() {
	s.cancel()
	s.wg.Wait()
	s.logger.Info("attestor service stopped")
}

// Store exposes the attestation store, for the req/resp server.
func (s *Service) Store() *Store {
	return s.store
}

// AttestationsFrom returns stored attestations with height >= minHeight in
// ascending order. Satisfies the req/resp attestation source.
func (s *Service) AttestationsFrom(_ context.Context, minHeight uint64) ([]*types.SignedAttestation, error) {
	return s.store.RangeFrom(minHeight), nil
}

func (s *Service) pollLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.pollOnce(); err != nil {
				s.logger.Warn("poll cycle failed", "error", err)
			}
		}
	}
}

// pollOnce reads the current chain state and, if it advances past the last
// attested height, signs and records a new attestation. Failures leave no
// partial state; the next tick retries from scratch.
func (s *Service) pollOnce() error {
	ctx, cancel := context.WithTimeout(s.ctx, s.pollInterval)
	defer cancel()

	var state *ChainState
	var err error
	if s.finalizedOnly {
		state, err = s.adapter.LatestFinalizedState(ctx)
	} else {
		state, err = s.adapter.LatestUnfinalizedState(ctx)
	}
	if err != nil {
		return fmt.Errorf("read chain state: %w", err)
	}

	if state.Height <= s.lastHeight {
		return nil
	}

	signed, err := s.attest(state)
	if err != nil {
		return err
	}

	s.store.Push(state.Height, signed)
	s.lastHeight = state.Height

	s.logger.Info("attested state",
		"height", state.Height,
		"state_root", state.StateRoot.Short(),
	)

	if s.publisher != nil {
		if err := s.publisher.PublishAttestation(ctx, signed); err != nil {
			s.logger.Warn("announce attestation failed", "height", state.Height, "error", err)
		}
	}

	return nil
}

// attest builds and signs the canonical attestation payload for a snapshot.
func (s *Service) attest(state *ChainState) (*types.SignedAttestation, error) {
	att := &types.StateAttestation{
		Height:    state.Height,
		Timestamp: state.Timestamp,
		StateRoot: state.StateRoot,
	}
	data, err := att.MarshalSSZ()
	if err != nil {
		return nil, fmt.Errorf("marshal attestation: %w", err)
	}

	sig, err := s.signer.Sign(data)
	if err != nil {
		return nil, fmt.Errorf("sign attestation: %w", err)
	}

	return &types.SignedAttestation{
		Height:    state.Height,
		Data:      data,
		Signature: sig,
		PublicKey: s.signer.PublicKey(),
	}, nil
}

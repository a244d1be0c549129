package networking

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/attestlabs/attestor/types"
)

// AttestationHandler processes incoming attestation announcements.
type AttestationHandler func(ctx context.Context, att *types.SignedAttestation, from peer.ID) error

// Service manages the gossip side of an attestor or aggregator process:
// joining the attestation topic, publishing announcements, and fanning
// received announcements out to a handler.
type Service struct {
	host    host.Host
	pubsub  *pubsub.PubSub
	handler AttestationHandler
	logger  *slog.Logger

	topic *pubsub.Topic
	sub   *pubsub.Subscription

	// Peers that failed initial connection, to be retried.
	failedPeers []peer.AddrInfo

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ServiceConfig holds configuration for the networking service.
type ServiceConfig struct {
	Host    host.Host
	Handler AttestationHandler
	Peers   []peer.AddrInfo
	Logger  *slog.Logger
}

// NewService creates a new networking service.
func NewService(ctx context.Context, cfg ServiceConfig) (*Service, error) {
	ctx, cancel := context.WithCancel(ctx)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ps, err := NewGossipSub(ctx, cfg.Host)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create gossipsub: %w", err)
	}

	topic, err := ps.Join(AttestationTopic)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("join attestation topic: %w", err)
	}

	sub, err := topic.Subscribe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe attestation topic: %w", err)
	}

	svc := &Service{
		host:    cfg.Host,
		pubsub:  ps,
		handler: cfg.Handler,
		logger:  logger,
		topic:   topic,
		sub:     sub,
		ctx:     ctx,
		cancel:  cancel,
	}

	for _, pi := range cfg.Peers {
		if err := cfg.Host.Connect(ctx, pi); err != nil {
			logger.Warn("failed to connect to peer", "peer", pi.ID, "error", err)
			svc.failedPeers = append(svc.failedPeers, pi)
		} else {
			logger.Info("connected to peer", "peer", pi.ID)
		}
	}

	return svc, nil
}

// Start begins processing announcements.
func (s *Service) Start() {
	s.wg.Add(1)
	go s.processAnnouncements()

	if len(s.failedPeers) > 0 {
		s.wg.Add(1)
		go s.retryPeers()
	}

	s.logger.Info("networking service started",
		"peer_id", s.host.ID(),
		"addrs", s.host.Addrs(),
	)
}

// Stop shuts down the networking service.
func (s *Service) Stop() {
	s.cancel()
	s.sub.Cancel()
	s.wg.Wait()
	_ = s.host.Close()
	s.logger.Info("networking service stopped")
}

// PublishAttestation announces a freshly signed attestation.
func (s *Service) PublishAttestation(ctx context.Context, att *types.SignedAttestation) error {
	data, err := att.MarshalSSZ()
	if err != nil {
		return fmt.Errorf("marshal attestation: %w", err)
	}
	return s.topic.Publish(ctx, CompressMessage(data))
}

// PeerCount returns the number of connected peers.
func (s *Service) PeerCount() int {
	return len(s.host.Network().Peers())
}

const peerRetryInterval = 30 * time.Second

// retryPeers periodically retries connecting to peers that failed at startup.
func (s *Service) retryPeers() {
	defer s.wg.Done()

	ticker := time.NewTicker(peerRetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			var remaining []peer.AddrInfo
			for _, pi := range s.failedPeers {
				if err := s.host.Connect(s.ctx, pi); err != nil {
					s.logger.Debug("peer reconnect failed", "peer", pi.ID, "error", err)
					remaining = append(remaining, pi)
				} else {
					s.logger.Info("reconnected to peer", "peer", pi.ID)
				}
			}
			s.failedPeers = remaining
			if len(s.failedPeers) == 0 {
				return
			}
		}
	}
}

// processAnnouncements handles incoming attestation announcements.
func (s *Service) processAnnouncements() {
	defer s.wg.Done()

	for {
		msg, err := s.sub.Next(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return // context cancelled
			}
			s.logger.Error("attestation subscription error", "error", err)
			continue
		}

		// Skip self-published messages
		if msg.ReceivedFrom == s.host.ID() {
			continue
		}
		if s.handler == nil {
			continue
		}

		decoded, err := DecompressMessage(msg.Data)
		if err != nil {
			s.logger.Debug("decompress announcement failed", "error", err)
			continue
		}
		var att types.SignedAttestation
		if err := att.UnmarshalSSZ(decoded); err != nil {
			s.logger.Debug("unmarshal announcement failed", "error", err)
			continue
		}

		if err := s.handler(s.ctx, &att, msg.ReceivedFrom); err != nil {
			s.logger.Error("handle announcement error", "error", err)
		}
	}
}

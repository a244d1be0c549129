// Package aggregator collects signed attestations from a set of attestor
// endpoints and condenses them into quorum aggregates that a light client
// update can be built from.
package aggregator

import (
	"context"
	"crypto/sha256"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/attestlabs/attestor/networking/reqresp"
	"github.com/attestlabs/attestor/types"
)

// DefaultRequestTimeout bounds one attestor round trip.
const DefaultRequestTimeout = 5 * time.Second

// AttestationFetcher retrieves signed attestations from one attestor
// endpoint. The network implementation wraps the req/resp client; tests
// substitute a fake.
type AttestationFetcher interface {
	FetchAttestations(ctx context.Context, endpoint peer.AddrInfo, minHeight uint64) ([]*types.SignedAttestation, error)
}

// hostFetcher fetches over libp2p req/resp streams.
type hostFetcher struct {
	host host.Host
}

// NewHostFetcher returns a fetcher that dials endpoints through the given
// host.
func NewHostFetcher(h host.Host) AttestationFetcher {
	return &hostFetcher{host: h}
}

func (f *hostFetcher) FetchAttestations(ctx context.Context, endpoint peer.AddrInfo, minHeight uint64) ([]*types.SignedAttestation, error) {
	f.host.Peerstore().AddAddrs(endpoint.ID, endpoint.Addrs, time.Hour)
	return reqresp.RequestAttestations(ctx, f.host, endpoint.ID, minHeight)
}

// Config holds configuration for the aggregator.
type Config struct {
	Fetcher     AttestationFetcher
	Endpoints   []peer.AddrInfo
	TrustedKeys []types.PublicKey

	// Quorum is the minimum number of distinct trusted signers an aggregate
	// must carry. Requests asking for less are raised to this floor.
	Quorum uint32

	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// Aggregator fans requests out to attestor endpoints and selects the best
// quorum aggregate from their responses.
type Aggregator struct {
	fetcher     AttestationFetcher
	endpoints   []peer.AddrInfo
	trustedKeys map[types.PublicKey]struct{}
	quorum      uint32
	timeout     time.Duration
	logger      *slog.Logger
}

// New creates an aggregator.
func New(cfg Config) (*Aggregator, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("aggregator: fetcher is required")
	}
	if len(cfg.Endpoints) == 0 {
		return nil, errors.New("aggregator: at least one attestor endpoint is required")
	}
	if cfg.Quorum == 0 {
		return nil, errors.New("aggregator: quorum must be positive")
	}
	if len(cfg.TrustedKeys) == 0 {
		return nil, errors.New("aggregator: trusted keys are required")
	}
	if int(cfg.Quorum) > len(cfg.TrustedKeys) {
		return nil, errors.New("aggregator: quorum exceeds trusted key count")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	trusted := make(map[types.PublicKey]struct{}, len(cfg.TrustedKeys))
	for _, pk := range cfg.TrustedKeys {
		trusted[pk] = struct{}{}
	}

	return &Aggregator{
		fetcher:     cfg.Fetcher,
		endpoints:   cfg.Endpoints,
		trustedKeys: trusted,
		quorum:      cfg.Quorum,
		timeout:     cfg.RequestTimeout,
		logger:      cfg.Logger,
	}, nil
}

// endpointResult is one endpoint's response, or its failure.
type endpointResult struct {
	endpoint     peer.ID
	attestations []*types.SignedAttestation
	err          error
}

// collect fans the request out to every endpoint concurrently and gathers
// whatever arrives before the per-request timeout. Endpoint failures are
// logged, never fatal.
func (a *Aggregator) collect(ctx context.Context, minHeight uint64) []endpointResult {
	results := make([]endpointResult, len(a.endpoints))

	var wg sync.WaitGroup
	for i, endpoint := range a.endpoints {
		wg.Add(1)
		go func(i int, endpoint peer.AddrInfo) {
			defer wg.Done()

			reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			atts, err := a.fetcher.FetchAttestations(reqCtx, endpoint, minHeight)
			results[i] = endpointResult{endpoint: endpoint.ID, attestations: atts, err: err}
		}(i, endpoint)
	}
	wg.Wait()

	for _, res := range results {
		if res.err != nil {
			a.logger.Warn("attestor endpoint failed", "endpoint", res.endpoint, "error", res.err)
		}
	}
	return results
}

// bucketKey groups attestations that attest the same state.
type bucketKey struct {
	height uint64
	digest types.Root
}

type bucket struct {
	data       []byte
	signatures []types.Signature
	publicKeys []types.PublicKey
	seen       map[types.PublicKey]struct{}
}

// Aggregate collects attestations at or after minHeight from all endpoints
// and returns the highest-height aggregate carrying at least quorum distinct
// trusted signers. Returns (nil, nil) when responses arrived but no state
// reached quorum, and *InsufficientResponsesError when fewer than quorum
// endpoints responded at all.
func (a *Aggregator) Aggregate(ctx context.Context, minHeight uint64, quorum uint32) (*types.AggregatedAttestation, error) {
	if quorum < a.quorum {
		quorum = a.quorum
	}

	results := a.collect(ctx, minHeight)

	responded := 0
	buckets := make(map[bucketKey]*bucket)
	for _, res := range results {
		if res.err != nil {
			continue
		}
		responded++
		for _, att := range res.attestations {
			if err := a.admit(att, minHeight); err != nil {
				a.logger.Debug("dropped attestation",
					"endpoint", res.endpoint,
					"height", att.Height,
					"error", err,
				)
				continue
			}

			key := bucketKey{height: att.Height, digest: sha256.Sum256(att.Data)}
			b, ok := buckets[key]
			if !ok {
				b = &bucket{data: att.Data, seen: make(map[types.PublicKey]struct{})}
				buckets[key] = b
			}
			if _, dup := b.seen[att.PublicKey]; dup {
				continue
			}
			b.seen[att.PublicKey] = struct{}{}
			b.signatures = append(b.signatures, att.Signature)
			b.publicKeys = append(b.publicKeys, att.PublicKey)
		}
	}

	if responded < int(quorum) {
		return nil, &InsufficientResponsesError{Received: responded, Required: int(quorum)}
	}

	var best *types.AggregatedAttestation
	for key, b := range buckets {
		if uint32(len(b.publicKeys)) < quorum {
			continue
		}
		if best != nil && key.height <= best.Height {
			continue
		}
		best = &types.AggregatedAttestation{
			Height:          key.height,
			StateDigest:     key.digest,
			AttestationData: b.data,
			Signatures:      b.signatures,
			PublicKeys:      b.publicKeys,
		}
	}

	if best != nil {
		a.logger.Info("aggregated attestation",
			"height", best.Height,
			"signers", len(best.PublicKeys),
			"state_digest", best.StateDigest.Short(),
		)
	}
	return best, nil
}

// AggregateFrom satisfies the req/resp aggregate provider.
func (a *Aggregator) AggregateFrom(ctx context.Context, minHeight uint64, quorum uint64) (*types.AggregatedAttestation, error) {
	return a.Aggregate(ctx, minHeight, uint32(quorum))
}

// AttestationsFrom serves the raw collected attestations to relayers,
// satisfying the req/resp attestation source. Drops nothing beyond signature
// and trust checks; quorum judgment is the caller's.
func (a *Aggregator) AttestationsFrom(ctx context.Context, minHeight uint64) ([]*types.SignedAttestation, error) {
	results := a.collect(ctx, minHeight)

	var out []*types.SignedAttestation
	for _, res := range results {
		if res.err != nil {
			continue
		}
		for _, att := range res.attestations {
			if err := a.admit(att, minHeight); err != nil {
				continue
			}
			out = append(out, att)
		}
	}
	return out, nil
}

// admit validates one attestation before it can enter a bucket: trusted
// signer, valid signature, consistent heights.
func (a *Aggregator) admit(att *types.SignedAttestation, minHeight uint64) error {
	if att.Height < minHeight {
		return errors.New("below requested height")
	}
	if _, ok := a.trustedKeys[att.PublicKey]; !ok {
		return errors.New("untrusted public key")
	}

	var payload types.StateAttestation
	if err := payload.UnmarshalSSZ(att.Data); err != nil {
		return errors.New("malformed payload")
	}
	if payload.Height != att.Height {
		return errors.New("payload height mismatch")
	}

	if !att.Verify() {
		return errors.New("invalid signature")
	}
	return nil
}

// SelectQuorumHeight returns the minimum of the reported heights once at
// least quorum attestors have reported. A quorum of zero is rejected as
// invalid input: no height is backed by an empty signer set. It is a
// liveness lower bound only: it says nothing about whether those attestors
// agree on state, so it must never gate an update by itself.
func SelectQuorumHeight(heights []uint64, quorum uint32) (uint64, error) {
	if quorum == 0 {
		return 0, ErrZeroQuorum
	}
	if uint32(len(heights)) < quorum {
		return 0, &InsufficientResponsesError{Received: len(heights), Required: int(quorum)}
	}

	min := heights[0]
	for _, h := range heights[1:] {
		if h < min {
			min = h
		}
	}
	return min, nil
}

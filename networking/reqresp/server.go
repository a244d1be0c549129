package reqresp

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/protocol"

	"github.com/attestlabs/attestor/types"
)

// AttestationSource supplies signed attestations at or after a height, in
// ascending height order. Implemented by the attestor's in-memory store and
// by the aggregator's live collection path.
type AttestationSource interface {
	AttestationsFrom(ctx context.Context, minHeight uint64) ([]*types.SignedAttestation, error)
}

// AggregateProvider runs a quorum aggregation round on demand. A nil
// aggregate with a nil error means no bucket reached quorum.
type AggregateProvider interface {
	AggregateFrom(ctx context.Context, minHeight, quorum uint64) (*types.AggregatedAttestation, error)
}

const handlerTimeout = 15 * time.Second

// Server registers and dispatches the request/response protocol handlers on
// a libp2p host.
type Server struct {
	host   host.Host
	logger *slog.Logger
}

// NewServer creates a server bound to the given host. Protocols are
// registered individually so attestors and aggregators can expose only the
// surfaces they serve.
func NewServer(h host.Host, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{host: h, logger: logger}
}

// ServeAttestations registers the attestations-by-height protocol backed by
// the given source.
func (s *Server) ServeAttestations(source AttestationSource) {
	s.host.SetStreamHandler(protocol.ID(AttestationsProtocolV1), func(stream network.Stream) {
		s.handleAttestationsRequest(stream, source)
	})
}

// ServeAggregates registers the aggregate-attestation protocol backed by the
// given provider.
func (s *Server) ServeAggregates(provider AggregateProvider) {
	s.host.SetStreamHandler(protocol.ID(AggregateProtocolV1), func(stream network.Stream) {
		s.handleAggregateRequest(stream, provider)
	})
}

func (s *Server) handleAttestationsRequest(stream network.Stream, source AttestationSource) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	_ = stream.SetDeadline(time.Now().Add(handlerTimeout))

	req := &AttestationsRequest{}
	if err := s.readRequest(stream, req); err != nil {
		s.logger.Debug("bad attestations request", "peer", stream.Conn().RemotePeer(), "error", err)
		closeStream(stream, writeErrorResponse(stream, RespCodeInvalidReq, "malformed request"))
		return
	}

	attestations, err := source.AttestationsFrom(ctx, req.MinHeight)
	if err != nil {
		s.logger.Error("attestation lookup failed", "min_height", req.MinHeight, "error", err)
		closeStream(stream, writeErrorResponse(stream, RespCodeServerError, "internal error"))
		return
	}
	if len(attestations) > MaxResponseChunks {
		attestations = attestations[:MaxResponseChunks]
	}

	for _, att := range attestations {
		data, err := att.MarshalSSZ()
		if err != nil {
			s.logger.Error("marshal attestation failed", "height", att.Height, "error", err)
			closeStream(stream, err)
			return
		}
		if err := writeResponseChunk(stream, RespCodeSuccess, data); err != nil {
			closeStream(stream, err)
			return
		}
	}

	closeStream(stream, nil)
}

func (s *Server) handleAggregateRequest(stream network.Stream, provider AggregateProvider) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	_ = stream.SetDeadline(time.Now().Add(handlerTimeout))

	req := &AggregateRequest{}
	if err := s.readRequest(stream, req); err != nil {
		s.logger.Debug("bad aggregate request", "peer", stream.Conn().RemotePeer(), "error", err)
		closeStream(stream, writeErrorResponse(stream, RespCodeInvalidReq, "malformed request"))
		return
	}
	if req.Quorum == 0 {
		closeStream(stream, writeErrorResponse(stream, RespCodeInvalidReq, "quorum must be positive"))
		return
	}

	agg, err := provider.AggregateFrom(ctx, req.MinHeight, req.Quorum)
	if err != nil {
		s.logger.Warn("aggregation round failed",
			"min_height", req.MinHeight,
			"quorum", req.Quorum,
			"error", err,
		)
		closeStream(stream, writeErrorResponse(stream, RespCodeServerError, "aggregation failed"))
		return
	}
	if agg == nil {
		closeStream(stream, writeErrorResponse(stream, RespCodeNotFound, "no quorum aggregate"))
		return
	}

	data, err := agg.MarshalSSZ()
	if err != nil {
		s.logger.Error("marshal aggregate failed", "height", agg.Height, "error", err)
		closeStream(stream, err)
		return
	}
	closeStream(stream, writeResponseChunk(stream, RespCodeSuccess, data))
}

type sszUnmarshaler interface {
	UnmarshalSSZ(buf []byte) error
}

func (s *Server) readRequest(stream network.Stream, req sszUnmarshaler) error {
	chunk, err := readChunk(bufio.NewReader(stream))
	if err != nil {
		return err
	}
	if err := req.UnmarshalSSZ(chunk); err != nil {
		return fmt.Errorf("unmarshal request: %w", err)
	}
	return nil
}

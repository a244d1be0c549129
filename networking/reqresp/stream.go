package reqresp

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/golang/snappy"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"

	"github.com/attestlabs/attestor/types"
)

const (
	// maxChunkSize bounds one compressed chunk on the wire. Attestation
	// payloads are small; anything near this limit is hostile.
	maxChunkSize = 1 << 20

	requestTimeout = 10 * time.Second
)

// writeChunk frames data as a uvarint compressed-length prefix followed by
// the snappy-compressed payload.
func writeChunk(w io.Writer, data []byte) error {
	compressed := snappy.Encode(nil, data)

	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(compressed)))
	if _, err := w.Write(lenBuf[:n]); err != nil {
		return fmt.Errorf("write length prefix: %w", err)
	}
	if _, err := w.Write(compressed); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}

// readChunk reads one length-prefixed, snappy-compressed chunk.
func readChunk(r *bufio.Reader) ([]byte, error) {
	size, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("read length prefix: %w", err)
	}
	if size > maxChunkSize {
		return nil, fmt.Errorf("chunk size %d exceeds limit %d", size, maxChunkSize)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}

	decoded, err := snappy.Decode(nil, buf)
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}
	return decoded, nil
}

// writeResponseChunk writes a response code byte followed by one chunk.
func writeResponseChunk(w io.Writer, code byte, data []byte) error {
	if _, err := w.Write([]byte{code}); err != nil {
		return fmt.Errorf("write response code: %w", err)
	}
	return writeChunk(w, data)
}

// writeErrorResponse writes a non-success response code with a message.
func writeErrorResponse(w io.Writer, code byte, msg string) error {
	return writeResponseChunk(w, code, []byte(msg))
}

// readResponseChunk reads a response code byte and, on success, the chunk
// that follows. Returns io.EOF once the stream is exhausted.
func readResponseChunk(r *bufio.Reader) (byte, []byte, error) {
	code, err := r.ReadByte()
	if err != nil {
		return 0, nil, err
	}
	data, err := readChunk(r)
	if err != nil {
		return code, nil, err
	}
	return code, data, nil
}

// checkResponseCode maps non-success codes to errors. The payload of an
// error chunk carries the peer's message.
func checkResponseCode(code byte, data []byte) error {
	switch code {
	case RespCodeSuccess:
		return nil
	case RespCodeNotFound:
		return ErrNotFound
	case RespCodeInvalidReq:
		return fmt.Errorf("peer rejected request: %s", data)
	default:
		return fmt.Errorf("peer error (code %#x): %s", code, data)
	}
}

// RequestAttestations asks a peer for all signed attestations it holds with
// height >= minHeight. Responses arrive as one chunk per attestation until
// the peer closes the stream.
func RequestAttestations(ctx context.Context, h host.Host, pid peer.ID, minHeight uint64) ([]*types.SignedAttestation, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	stream, err := h.NewStream(ctx, pid, protocol.ID(AttestationsProtocolV1))
	if err != nil {
		return nil, fmt.Errorf("open stream to %s: %w", pid, err)
	}
	defer stream.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetDeadline(deadline)
	}

	req := &AttestationsRequest{MinHeight: minHeight}
	data, err := req.MarshalSSZ()
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	if err := writeChunk(stream, data); err != nil {
		return nil, err
	}
	if err := stream.CloseWrite(); err != nil {
		return nil, fmt.Errorf("close write side: %w", err)
	}

	reader := bufio.NewReader(stream)
	var attestations []*types.SignedAttestation
	for len(attestations) < MaxResponseChunks {
		code, chunk, err := readResponseChunk(reader)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := checkResponseCode(code, chunk); err != nil {
			return nil, err
		}

		att := &types.SignedAttestation{}
		if err := att.UnmarshalSSZ(chunk); err != nil {
			return nil, fmt.Errorf("unmarshal attestation chunk: %w", err)
		}
		attestations = append(attestations, att)
	}

	return attestations, nil
}

// RequestAggregate asks a peer (an aggregator) for the best quorum aggregate
// with height >= minHeight. Returns ErrNotFound if the peer has none.
func RequestAggregate(ctx context.Context, h host.Host, pid peer.ID, minHeight, quorum uint64) (*types.AggregatedAttestation, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	stream, err := h.NewStream(ctx, pid, protocol.ID(AggregateProtocolV1))
	if err != nil {
		return nil, fmt.Errorf("open stream to %s: %w", pid, err)
	}
	defer stream.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetDeadline(deadline)
	}

	req := &AggregateRequest{MinHeight: minHeight, Quorum: quorum}
	data, err := req.MarshalSSZ()
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	if err := writeChunk(stream, data); err != nil {
		return nil, err
	}
	if err := stream.CloseWrite(); err != nil {
		return nil, fmt.Errorf("close write side: %w", err)
	}

	reader := bufio.NewReader(stream)
	code, chunk, err := readResponseChunk(reader)
	if err != nil {
		return nil, err
	}
	if err := checkResponseCode(code, chunk); err != nil {
		return nil, err
	}

	agg := &types.AggregatedAttestation{}
	if err := agg.UnmarshalSSZ(chunk); err != nil {
		return nil, fmt.Errorf("unmarshal aggregate: %w", err)
	}
	return agg, nil
}

// closeStream resets on error so the remote sees the failure instead of a
// clean EOF.
func closeStream(stream network.Stream, err error) {
	if err != nil {
		_ = stream.Reset()
		return
	}
	_ = stream.Close()
}

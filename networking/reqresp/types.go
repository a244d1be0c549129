// Package reqresp implements the request/response protocols of the attestor
// network: attestors serve signed attestations keyed by minimum height, and
// aggregators serve quorum aggregates to relayers over the same transport.
package reqresp

import (
	"errors"

	ssz "github.com/ferranbt/fastssz"
)

const (
	// AttestationsProtocolV1 serves all stored attestations with height >= min.
	AttestationsProtocolV1 = "/attestor/req/attestations_by_height/1/ssz_snappy"
	// AggregateProtocolV1 serves a single quorum aggregate, or NotFound.
	AggregateProtocolV1 = "/attestor/req/aggregate_attestation/1/ssz_snappy"

	// MaxResponseChunks bounds how many attestations one request returns.
	MaxResponseChunks = 1024
)

// Response codes.
const (
	RespCodeSuccess     byte = 0x00
	RespCodeInvalidReq  byte = 0x01
	RespCodeServerError byte = 0x02
	RespCodeNotFound    byte = 0x03
)

// ErrNotFound is returned by clients when the peer has no aggregate
// satisfying the request. Soft failure; callers retry later.
var ErrNotFound = errors.New("no matching attestation on peer")

// AttestationsRequest asks for attestations at or after MinHeight.
type AttestationsRequest struct {
	MinHeight uint64
}

// AggregateRequest asks for the best quorum aggregate at or after MinHeight.
type AggregateRequest struct {
	MinHeight uint64
	Quorum    uint64
}

func (r *AttestationsRequest) MarshalSSZ() ([]byte, error) {
	return ssz.MarshalUint64(make([]byte, 0, 8), r.MinHeight), nil
}

func (r *AttestationsRequest) UnmarshalSSZ(buf []byte) error {
	if len(buf) != 8 {
		return ssz.ErrSize
	}
	r.MinHeight = ssz.UnmarshallUint64(buf)
	return nil
}

func (r *AggregateRequest) MarshalSSZ() ([]byte, error) {
	dst := make([]byte, 0, 16)
	dst = ssz.MarshalUint64(dst, r.MinHeight)
	dst = ssz.MarshalUint64(dst, r.Quorum)
	return dst, nil
}

func (r *AggregateRequest) UnmarshalSSZ(buf []byte) error {
	if len(buf) != 16 {
		return ssz.ErrSize
	}
	r.MinHeight = ssz.UnmarshallUint64(buf[0:8])
	r.Quorum = ssz.UnmarshallUint64(buf[8:16])
	return nil
}

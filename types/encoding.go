package types

import (
	ssz "github.com/ferranbt/fastssz"
)

// SSZ encodings, written in sszgen's layout: fixed-size fields in declaration
// order, 4-byte little-endian offsets for variable fields, no padding. The
// payload encodings below are the canonical bytes that attestors sign, so two
// honest attestors observing the same state produce identical digests.

const (
	stateAttestationSize       = 48  // height(8) + timestamp(8) + state root(32)
	claimSize                  = 64  // path(32) + commitment(32)
	packetAttestationFixedSize = 12  // height(8) + claims offset(4)
	signedAttestationFixedSize = 110 // height(8) + data offset(4) + sig(65) + pubkey(33)
	headerFixedSize            = 20  // trusted height(8) + 3 offsets(12)
	aggregatedFixedSize        = 52  // height(8) + digest(32) + 3 offsets(12)
	clientStateFixedSize       = 17  // latest height(8) + min sigs(4) + frozen(1) + keys offset(4)
	consensusStateSize         = 48  // height(8) + timestamp(8) + digest(32)
)

// MarshalSSZ implements the canonical encoding of a state attestation.
func (s *StateAttestation) MarshalSSZ() ([]byte, error) {
	dst := make([]byte, 0, stateAttestationSize)
	dst = ssz.MarshalUint64(dst, s.Height)
	dst = ssz.MarshalUint64(dst, s.Timestamp)
	dst = append(dst, s.StateRoot[:]...)
	return dst, nil
}

// UnmarshalSSZ decodes a state attestation.
func (s *StateAttestation) UnmarshalSSZ(buf []byte) error {
	if len(buf) != stateAttestationSize {
		return ssz.ErrSize
	}
	s.Height = ssz.UnmarshallUint64(buf[0:8])
	s.Timestamp = ssz.UnmarshallUint64(buf[8:16])
	copy(s.StateRoot[:], buf[16:48])
	return nil
}

// SizeSSZ returns the encoded size of a state attestation.
func (*StateAttestation) SizeSSZ() int { return stateAttestationSize }

// MarshalSSZ implements the canonical encoding of a packet attestation.
func (p *PacketAttestation) MarshalSSZ() ([]byte, error) {
	if len(p.Claims) > MaxClaims {
		return nil, ssz.ErrListTooBig
	}
	dst := make([]byte, 0, packetAttestationFixedSize+len(p.Claims)*claimSize)
	dst = ssz.MarshalUint64(dst, p.Height)
	dst = ssz.WriteOffset(dst, packetAttestationFixedSize)
	for _, c := range p.Claims {
		dst = append(dst, c.Path[:]...)
		dst = append(dst, c.Commitment[:]...)
	}
	return dst, nil
}

// UnmarshalSSZ decodes a packet attestation.
func (p *PacketAttestation) UnmarshalSSZ(buf []byte) error {
	if len(buf) < packetAttestationFixedSize {
		return ssz.ErrSize
	}
	p.Height = ssz.UnmarshallUint64(buf[0:8])
	if ssz.ReadOffset(buf[8:12]) != packetAttestationFixedSize {
		return ssz.ErrOffset
	}
	rest := buf[packetAttestationFixedSize:]
	if len(rest)%claimSize != 0 {
		return ssz.ErrBytesLength
	}
	n := len(rest) / claimSize
	if n > MaxClaims {
		return ssz.ErrListTooBig
	}
	p.Claims = make([]Claim, n)
	for i := 0; i < n; i++ {
		copy(p.Claims[i].Path[:], rest[i*claimSize:i*claimSize+RootLength])
		copy(p.Claims[i].Commitment[:], rest[i*claimSize+RootLength:(i+1)*claimSize])
	}
	return nil
}

// MarshalSSZ encodes a signed attestation for the wire.
func (sa *SignedAttestation) MarshalSSZ() ([]byte, error) {
	dst := make([]byte, 0, signedAttestationFixedSize+len(sa.Data))
	dst = ssz.MarshalUint64(dst, sa.Height)
	dst = ssz.WriteOffset(dst, signedAttestationFixedSize)
	dst = append(dst, sa.Signature[:]...)
	dst = append(dst, sa.PublicKey[:]...)
	dst = append(dst, sa.Data...)
	return dst, nil
}

// UnmarshalSSZ decodes a signed attestation.
func (sa *SignedAttestation) UnmarshalSSZ(buf []byte) error {
	if len(buf) < signedAttestationFixedSize {
		return ssz.ErrSize
	}
	sa.Height = ssz.UnmarshallUint64(buf[0:8])
	if ssz.ReadOffset(buf[8:12]) != signedAttestationFixedSize {
		return ssz.ErrOffset
	}
	copy(sa.Signature[:], buf[12:77])
	copy(sa.PublicKey[:], buf[77:110])
	sa.Data = append([]byte(nil), buf[signedAttestationFixedSize:]...)
	return nil
}

// MarshalSSZ encodes an update header.
func (h *Header) MarshalSSZ() ([]byte, error) {
	if len(h.Signatures) > MaxAttestors || len(h.PublicKeys) > MaxAttestors {
		return nil, ssz.ErrListTooBig
	}
	offData := headerFixedSize
	offSigs := offData + len(h.AttestationData)
	offPubs := offSigs + len(h.Signatures)*SignatureLength

	dst := make([]byte, 0, offPubs+len(h.PublicKeys)*PublicKeyLength)
	dst = ssz.MarshalUint64(dst, h.TrustedHeight)
	dst = ssz.WriteOffset(dst, offData)
	dst = ssz.WriteOffset(dst, offSigs)
	dst = ssz.WriteOffset(dst, offPubs)
	dst = append(dst, h.AttestationData...)
	for _, s := range h.Signatures {
		dst = append(dst, s[:]...)
	}
	for _, p := range h.PublicKeys {
		dst = append(dst, p[:]...)
	}
	return dst, nil
}

// UnmarshalSSZ decodes an update header.
func (h *Header) UnmarshalSSZ(buf []byte) error {
	if len(buf) < headerFixedSize {
		return ssz.ErrSize
	}
	h.TrustedHeight = ssz.UnmarshallUint64(buf[0:8])
	offData := ssz.ReadOffset(buf[8:12])
	offSigs := ssz.ReadOffset(buf[12:16])
	offPubs := ssz.ReadOffset(buf[16:20])
	if offData != headerFixedSize || offSigs < offData || offPubs < offSigs || offPubs > uint64(len(buf)) {
		return ssz.ErrOffset
	}

	h.AttestationData = append([]byte(nil), buf[offData:offSigs]...)

	sigBytes := buf[offSigs:offPubs]
	if len(sigBytes)%SignatureLength != 0 {
		return ssz.ErrBytesLength
	}
	h.Signatures = make([]Signature, len(sigBytes)/SignatureLength)
	for i := range h.Signatures {
		copy(h.Signatures[i][:], sigBytes[i*SignatureLength:(i+1)*SignatureLength])
	}

	pubBytes := buf[offPubs:]
	if len(pubBytes)%PublicKeyLength != 0 {
		return ssz.ErrBytesLength
	}
	h.PublicKeys = make([]PublicKey, len(pubBytes)/PublicKeyLength)
	for i := range h.PublicKeys {
		copy(h.PublicKeys[i][:], pubBytes[i*PublicKeyLength:(i+1)*PublicKeyLength])
	}

	if len(h.Signatures) > MaxAttestors || len(h.PublicKeys) > MaxAttestors {
		return ssz.ErrListTooBig
	}
	return nil
}

// MarshalSSZ encodes an aggregated attestation.
func (aa *AggregatedAttestation) MarshalSSZ() ([]byte, error) {
	if len(aa.Signatures) > MaxAttestors || len(aa.PublicKeys) > MaxAttestors {
		return nil, ssz.ErrListTooBig
	}
	offData := aggregatedFixedSize
	offSigs := offData + len(aa.AttestationData)
	offPubs := offSigs + len(aa.Signatures)*SignatureLength

	dst := make([]byte, 0, offPubs+len(aa.PublicKeys)*PublicKeyLength)
	dst = ssz.MarshalUint64(dst, aa.Height)
	dst = append(dst, aa.StateDigest[:]...)
	dst = ssz.WriteOffset(dst, offData)
	dst = ssz.WriteOffset(dst, offSigs)
	dst = ssz.WriteOffset(dst, offPubs)
	dst = append(dst, aa.AttestationData...)
	for _, s := range aa.Signatures {
		dst = append(dst, s[:]...)
	}
	for _, p := range aa.PublicKeys {
		dst = append(dst, p[:]...)
	}
	return dst, nil
}

// UnmarshalSSZ decodes an aggregated attestation.
func (aa *AggregatedAttestation) UnmarshalSSZ(buf []byte) error {
	if len(buf) < aggregatedFixedSize {
		return ssz.ErrSize
	}
	aa.Height = ssz.UnmarshallUint64(buf[0:8])
	copy(aa.StateDigest[:], buf[8:40])
	offData := ssz.ReadOffset(buf[40:44])
	offSigs := ssz.ReadOffset(buf[44:48])
	offPubs := ssz.ReadOffset(buf[48:52])
	if offData != aggregatedFixedSize || offSigs < offData || offPubs < offSigs || offPubs > uint64(len(buf)) {
		return ssz.ErrOffset
	}

	aa.AttestationData = append([]byte(nil), buf[offData:offSigs]...)

	sigBytes := buf[offSigs:offPubs]
	if len(sigBytes)%SignatureLength != 0 {
		return ssz.ErrBytesLength
	}
	aa.Signatures = make([]Signature, len(sigBytes)/SignatureLength)
	for i := range aa.Signatures {
		copy(aa.Signatures[i][:], sigBytes[i*SignatureLength:(i+1)*SignatureLength])
	}

	pubBytes := buf[offPubs:]
	if len(pubBytes)%PublicKeyLength != 0 {
		return ssz.ErrBytesLength
	}
	aa.PublicKeys = make([]PublicKey, len(pubBytes)/PublicKeyLength)
	for i := range aa.PublicKeys {
		copy(aa.PublicKeys[i][:], pubBytes[i*PublicKeyLength:(i+1)*PublicKeyLength])
	}

	if len(aa.Signatures) > MaxAttestors || len(aa.PublicKeys) > MaxAttestors {
		return ssz.ErrListTooBig
	}
	return nil
}

// MarshalSSZ encodes a client state for storage.
func (cs *ClientState) MarshalSSZ() ([]byte, error) {
	if len(cs.TrustedKeys) > MaxAttestors {
		return nil, ssz.ErrListTooBig
	}
	dst := make([]byte, 0, clientStateFixedSize+len(cs.TrustedKeys)*PublicKeyLength)
	dst = ssz.MarshalUint64(dst, cs.LatestHeight)
	dst = ssz.MarshalUint32(dst, cs.MinRequiredSigs)
	dst = ssz.MarshalBool(dst, cs.IsFrozen)
	dst = ssz.WriteOffset(dst, clientStateFixedSize)
	for _, pk := range cs.TrustedKeys {
		dst = append(dst, pk[:]...)
	}
	return dst, nil
}

// UnmarshalSSZ decodes a stored client state.
func (cs *ClientState) UnmarshalSSZ(buf []byte) error {
	if len(buf) < clientStateFixedSize {
		return ssz.ErrSize
	}
	cs.LatestHeight = ssz.UnmarshallUint64(buf[0:8])
	cs.MinRequiredSigs = ssz.UnmarshallUint32(buf[8:12])
	cs.IsFrozen = ssz.UnmarshalBool(buf[12:13])
	if ssz.ReadOffset(buf[13:17]) != clientStateFixedSize {
		return ssz.ErrOffset
	}
	keyBytes := buf[clientStateFixedSize:]
	if len(keyBytes)%PublicKeyLength != 0 {
		return ssz.ErrBytesLength
	}
	n := len(keyBytes) / PublicKeyLength
	if n > MaxAttestors {
		return ssz.ErrListTooBig
	}
	cs.TrustedKeys = make([]PublicKey, n)
	for i := range cs.TrustedKeys {
		copy(cs.TrustedKeys[i][:], keyBytes[i*PublicKeyLength:(i+1)*PublicKeyLength])
	}
	return nil
}

// MarshalSSZ encodes a consensus state for storage.
func (cs *ConsensusState) MarshalSSZ() ([]byte, error) {
	dst := make([]byte, 0, consensusStateSize)
	dst = ssz.MarshalUint64(dst, cs.Height)
	dst = ssz.MarshalUint64(dst, cs.Timestamp)
	dst = append(dst, cs.StateDigest[:]...)
	return dst, nil
}

// UnmarshalSSZ decodes a stored consensus state.
func (cs *ConsensusState) UnmarshalSSZ(buf []byte) error {
	if len(buf) != consensusStateSize {
		return ssz.ErrSize
	}
	cs.Height = ssz.UnmarshallUint64(buf[0:8])
	cs.Timestamp = ssz.UnmarshallUint64(buf[8:16])
	copy(cs.StateDigest[:], buf[16:48])
	return nil
}

// SizeSSZ returns the encoded size of a consensus state.
func (*ConsensusState) SizeSSZ() int { return consensusStateSize }

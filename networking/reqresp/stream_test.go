package reqresp

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestChunkRoundTrip(t *testing.T) {
	payload := []byte("attestation payload bytes")

	var buf bytes.Buffer
	if err := writeChunk(&buf, payload); err != nil {
		t.Fatalf("writeChunk: %v", err)
	}

	got, err := readChunk(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("readChunk: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: got %x want %x", got, payload)
	}
}

func TestResponseChunkSequence(t *testing.T) {
	var buf bytes.Buffer
	chunks := [][]byte{[]byte("first"), []byte("second"), []byte("third")}
	for _, c := range chunks {
		if err := writeResponseChunk(&buf, RespCodeSuccess, c); err != nil {
			t.Fatalf("writeResponseChunk: %v", err)
		}
	}

	reader := bufio.NewReader(&buf)
	for i, want := range chunks {
		code, got, err := readResponseChunk(reader)
		if err != nil {
			t.Fatalf("chunk %d: %v", i, err)
		}
		if code != RespCodeSuccess {
			t.Fatalf("chunk %d: code %#x", i, code)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("chunk %d: got %q want %q", i, got, want)
		}
	}

	if _, _, err := readResponseChunk(reader); err != io.EOF {
		t.Fatalf("expected EOF after last chunk, got %v", err)
	}
}

func TestCheckResponseCode(t *testing.T) {
	if err := checkResponseCode(RespCodeSuccess, nil); err != nil {
		t.Fatalf("success code returned error: %v", err)
	}
	if err := checkResponseCode(RespCodeNotFound, []byte("no quorum aggregate")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := checkResponseCode(RespCodeInvalidReq, []byte("bad")); err == nil {
		t.Fatal("expected error for invalid request code")
	}
	if err := checkResponseCode(RespCodeServerError, []byte("boom")); err == nil {
		t.Fatal("expected error for server error code")
	}
}

func TestRequestEncoding(t *testing.T) {
	attReq := &AttestationsRequest{MinHeight: 42}
	data, err := attReq.MarshalSSZ()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if len(data) != 8 {
		t.Fatalf("attestations request size: got %d want 8", len(data))
	}
	var decoded AttestationsRequest
	if err := decoded.UnmarshalSSZ(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.MinHeight != 42 {
		t.Fatalf("min height: got %d want 42", decoded.MinHeight)
	}

	aggReq := &AggregateRequest{MinHeight: 100, Quorum: 3}
	data, err = aggReq.MarshalSSZ()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if len(data) != 16 {
		t.Fatalf("aggregate request size: got %d want 16", len(data))
	}
	var decodedAgg AggregateRequest
	if err := decodedAgg.UnmarshalSSZ(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decodedAgg.MinHeight != 100 || decodedAgg.Quorum != 3 {
		t.Fatalf("decoded %+v", decodedAgg)
	}

	if err := decodedAgg.UnmarshalSSZ(data[:8]); err == nil {
		t.Fatal("expected size error for truncated aggregate request")
	}
}

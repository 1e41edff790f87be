package format

import (
	"errors"
	"testing"
)

func TestBlockHeaderRoundTrip(t *testing.T) {
	b := make([]byte, BlockHeaderSize)
	want := BlockHeader{ID: 7, PoolID: 3, Count: 31, Stride: 128, Chunk: 96}
	if err := PutBlockHeader(b, want); err != nil {
		t.Fatalf("PutBlockHeader: %v", err)
	}
	got, err := ReadBlockHeader(b)
	if err != nil {
		t.Fatalf("ReadBlockHeader: %v", err)
	}
	if got != want {
		t.Fatalf("header mismatch: got %+v want %+v", got, want)
	}
}

func TestBlockHeaderErrors(t *testing.T) {
	if err := PutBlockHeader(make([]byte, BlockHeaderSize-1), BlockHeader{}); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if _, err := ReadBlockHeader(make([]byte, 4)); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if _, err := ReadBlockHeader(make([]byte, BlockHeaderSize)); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected ErrSignatureMismatch, got %v", err)
	}
}

func TestChunkHeaderAndLink(t *testing.T) {
	b := make([]byte, ChunkHeaderSize+LinkSize)
	h := ChunkHeader{Block: 9, Slot: 4, Gen: 2, State: ChunkLive}
	if err := PutChunkHeader(b, h); err != nil {
		t.Fatalf("PutChunkHeader: %v", err)
	}
	got, err := ReadChunkHeader(b)
	if err != nil {
		t.Fatalf("ReadChunkHeader: %v", err)
	}
	if got != h || !got.Live() {
		t.Fatalf("chunk header mismatch: %+v", got)
	}

	PutLink(b[ChunkHeaderSize:], 5)
	if ReadLink(b[ChunkHeaderSize:]) != 5 {
		t.Fatalf("link round trip failed")
	}
	if _, err := ReadChunkHeader(b[:3]); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestChunkHeaderStates(t *testing.T) {
	tests := []struct {
		state uint32
		live  bool
		inUse bool
	}{
		{ChunkFree, false, false},
		{ChunkLive, true, true},
		{ChunkRetiring, false, true},
	}
	for _, tt := range tests {
		h := ChunkHeader{State: tt.state}
		if h.Live() != tt.live || h.InUse() != tt.inUse {
			t.Errorf("state %d: Live=%v InUse=%v, want %v %v", tt.state, h.Live(), h.InUse(), tt.live, tt.inUse)
		}
	}
}

package format

import (
	"bytes"
	"fmt"

	"github.com/joshuapare/slabkit/internal/buf"
)

// BlockHeader is the decoded form of the header at offset 0 of a block.
type BlockHeader struct {
	ID     uint32
	PoolID uint32
	Count  uint32
	Stride uint32
	Chunk  uint32
}

// PutBlockHeader writes h at the start of b.
func PutBlockHeader(b []byte, h BlockHeader) error {
	if !buf.Has(b, 0, BlockHeaderSize) {
		return fmt.Errorf("block header: %w", ErrTruncated)
	}
	copy(b[BlockSignatureOffset:], BlockSignature)
	buf.PutU32LE(b[BlockIDOffset:], h.ID)
	buf.PutU32LE(b[BlockPoolOffset:], h.PoolID)
	buf.PutU32LE(b[BlockCountOffset:], h.Count)
	buf.PutU32LE(b[BlockStrideOffset:], h.Stride)
	buf.PutU32LE(b[BlockChunkOffset:], h.Chunk)
	return nil
}

// ReadBlockHeader validates the signature and decodes the block header at the
// start of b.
func ReadBlockHeader(b []byte) (BlockHeader, error) {
	head, ok := buf.Slice(b, 0, BlockHeaderSize)
	if !ok {
		return BlockHeader{}, fmt.Errorf("block header: %w", ErrTruncated)
	}
	if !bytes.Equal(head[:4], BlockSignature) {
		return BlockHeader{}, fmt.Errorf("block header: %w", ErrSignatureMismatch)
	}
	return BlockHeader{
		ID:     buf.U32LE(head[BlockIDOffset:]),
		PoolID: buf.U32LE(head[BlockPoolOffset:]),
		Count:  buf.U32LE(head[BlockCountOffset:]),
		Stride: buf.U32LE(head[BlockStrideOffset:]),
		Chunk:  buf.U32LE(head[BlockChunkOffset:]),
	}, nil
}

// ChunkHeader is the decoded form of the header preceding a chunk.
type ChunkHeader struct {
	Block uint32
	Slot  uint32
	Gen   uint32
	State uint32
}

// Live reports whether the chunk is handed out and not claimed for release.
func (h ChunkHeader) Live() bool { return h.State == ChunkLive }

// InUse reports whether the chunk is handed out, retiring included.
func (h ChunkHeader) InUse() bool { return h.State == ChunkLive || h.State == ChunkRetiring }

// PutChunkHeader writes h at the start of b.
func PutChunkHeader(b []byte, h ChunkHeader) error {
	if !buf.Has(b, 0, ChunkHeaderSize) {
		return fmt.Errorf("chunk header: %w", ErrTruncated)
	}
	buf.PutU32LE(b[ChunkBlockOffset:], h.Block)
	buf.PutU32LE(b[ChunkSlotOffset:], h.Slot)
	buf.PutU32LE(b[ChunkGenOffset:], h.Gen)
	buf.PutU32LE(b[ChunkStateOffset:], h.State)
	return nil
}

// ReadChunkHeader decodes the chunk header at the start of b.
func ReadChunkHeader(b []byte) (ChunkHeader, error) {
	head, ok := buf.Slice(b, 0, ChunkHeaderSize)
	if !ok {
		return ChunkHeader{}, fmt.Errorf("chunk header: %w", ErrTruncated)
	}
	return ChunkHeader{
		Block: buf.U32LE(head[ChunkBlockOffset:]),
		Slot:  buf.U32LE(head[ChunkSlotOffset:]),
		Gen:   buf.U32LE(head[ChunkGenOffset:]),
		State: buf.U32LE(head[ChunkStateOffset:]),
	}, nil
}

// PutLink stores a free-list link (next slot + 1, 0 terminates) in a free chunk.
func PutLink(chunk []byte, next uint64) {
	buf.PutU64LE(chunk, next)
}

// ReadLink reads the free-list link from a free chunk.
func ReadLink(chunk []byte) uint64 {
	return buf.U64LE(chunk)
}

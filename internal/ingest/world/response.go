package world

import (
	"encoding/binary"
	"fmt"
)

// ChunkResponse is the serialized form of a ChunkColumn crossing the I→T
// boundary (spec §3 "ChunkResponse"). When Success is false, Blob is nil and
// there is nothing to decode. NewChunkResponse always sets Success to true;
// OnLevelChunk/OnSubchunk decode failures are isolated per section and do not
// produce a Success=false response.
type ChunkResponse struct {
	Key     Key
	Success bool
	Blob    []byte
}

// NewChunkResponse serializes col into a ChunkResponse blob. The blob format
// is this pipeline's own (spec §9 "Dynamic typing" leaves the codec up to
// the implementation as long as event semantics are preserved).
func NewChunkResponse(col *ChunkColumn) ChunkResponse {
	sections := col.Sections()

	header := make([]byte, 4)
	binary.LittleEndian.PutUint32(header, uint32(len(sections)))

	blob := header
	for _, sc := range sections {
		entry := make([]byte, 4)
		binary.LittleEndian.PutUint32(entry, uint32(sc.SectionY))
		blob = append(blob, entry...)
		blob = append(blob, sc.Encode()...)
	}

	return ChunkResponse{Key: col.Key, Success: true, Blob: blob}
}

// DecodeColumn rebuilds a ChunkColumn from a successful ChunkResponse's blob.
// Per-section decode failures are isolated exactly as in OnSubchunk: the
// offending section is installed as all-air and reported via the returned
// issue slice, and decoding goes on with the next section. Only a blob
// truncated so far that the next section cannot be located returns an error
// (together with the sections decoded up to that point).
func DecodeColumn(resp ChunkResponse) (*ChunkColumn, []DecodeIssue, error) {
	if !resp.Success {
		return nil, nil, fmt.Errorf("chunk response for %s: success=false, no blob to decode", resp.Key)
	}
	if len(resp.Blob) < 4 {
		return nil, nil, fmt.Errorf("chunk response for %s: blob too short", resp.Key)
	}

	col := NewColumn(resp.Key)
	count := binary.LittleEndian.Uint32(resp.Blob[0:4])
	offset := 4

	var issues []DecodeIssue
	for i := uint32(0); i < count; i++ {
		if len(resp.Blob) < offset+4 {
			return nil, nil, fmt.Errorf("chunk response for %s: truncated section header at entry %d", resp.Key, i)
		}
		sectionY := int32(binary.LittleEndian.Uint32(resp.Blob[offset : offset+4]))
		offset += 4

		sc, n, err := decodeSubChunkAt(sectionY, resp.Blob[offset:])
		if err != nil {
			col.SetSection(sectionY, NewEmptySection(sectionY))
			issues = append(issues, DecodeIssue{Key: resp.Key, Y: sectionY, Result: Success, Err: err})
			rest := resp.Blob[offset:]
			size := -1
			if len(rest) >= 2 {
				size = 2 + int(binary.LittleEndian.Uint16(rest[0:2]))*4 + sectionVolume*2
			}
			if size < 0 || len(rest) < size {
				return col, issues, fmt.Errorf("chunk response for %s: unrecoverable truncation at section y=%d: %w", resp.Key, sectionY, err)
			}
			offset += size
			continue
		}
		col.SetSection(sectionY, sc)
		offset += n
	}

	return col, issues, nil
}

// decodeSubChunkAt decodes one subchunk starting at the front of buf and
// reports how many bytes it consumed, so DecodeColumn can walk a
// concatenated blob without a length prefix per section.
func decodeSubChunkAt(sectionY int32, buf []byte) (*SubChunk, int, error) {
	sc, err := DecodeSubChunk(sectionY, buf)
	if err != nil {
		return nil, 0, err
	}
	return sc, 2 + len(sc.Palette)*4 + sectionVolume*2, nil
}

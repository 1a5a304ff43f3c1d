package memory

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
)

// Embedder produces the vector representation long-term entries are indexed
// by. Implementations live in the ollamaembed and openaiembed subpackages.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

const embeddingWordSize = 4 // bytes per float32 in the stored blob

// EncodeEmbedding packs a vector into the little-endian float32 blob kept in
// the embedding column. A nil vector encodes to a NULL column.
func EncodeEmbedding(vec []float32) []byte {
	if vec == nil {
		return nil
	}
	blob := make([]byte, 0, len(vec)*embeddingWordSize)
	for _, f := range vec {
		blob = binary.LittleEndian.AppendUint32(blob, math.Float32bits(f))
	}
	return blob
}

// DecodeEmbedding unpacks a stored blob back into a vector.
func DecodeEmbedding(blob []byte) ([]float32, error) {
	if blob == nil {
		return nil, nil
	}
	if len(blob)%embeddingWordSize != 0 {
		return nil, errors.New("embedding blob is not a whole number of float32s")
	}
	vec := make([]float32, len(blob)/embeddingWordSize)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*embeddingWordSize:]))
	}
	return vec, nil
}

// CosineSimilarity scores two vectors. Zero-magnitude or mismatched-length
// vectors score 0; the store's dimension lock keeps mismatched lengths out
// of persisted data, so the 0 here only covers query-side surprises.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

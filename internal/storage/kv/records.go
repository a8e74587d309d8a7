package kv

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"paperchat/internal/models"
)

type paperRecord struct {
	Paper     models.Paper `json:"paper"`
	AuthorIDs []string     `json:"author_ids"`
	Citations []string     `json:"citations"`
	Chunks    int          `json:"chunks"`
}

type chunkRecord struct {
	ChunkID    string `json:"chunk_id"`
	PaperID    string `json:"paper_id"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
	Embedding  []byte `json:"embedding"`
}

func encodeChunk(c models.Chunk) ([]byte, error) {
	return json.Marshal(chunkRecord{
		ChunkID:    c.ChunkID,
		PaperID:    c.PaperID,
		ChunkIndex: c.ChunkIndex,
		Text:       c.Text,
		Embedding:  packFloats(c.Embedding),
	})
}

func decodeChunk(b []byte) (models.Chunk, error) {
	var r chunkRecord
	if err := json.Unmarshal(b, &r); err != nil {
		return models.Chunk{}, fmt.Errorf("decode chunk record: %w", err)
	}
	vec, err := unpackFloats(r.Embedding)
	if err != nil {
		return models.Chunk{}, fmt.Errorf("decode chunk %s: %w", r.ChunkID, err)
	}
	return models.Chunk{ChunkID: r.ChunkID, PaperID: r.PaperID, ChunkIndex: r.ChunkIndex, Text: r.Text, Embedding: vec}, nil
}

func packFloats(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func unpackFloats(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding length %d is not a multiple of 4", len(b))
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out, nil
}

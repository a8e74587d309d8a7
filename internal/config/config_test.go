package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PAPERCHAT_CONFIG", "")
	t.Setenv("PAPERCHAT_CHUNK_SIZE", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, []string{"AUTHORED_BY", "CITES"}, cfg.EdgeTypes())
	assert.True(t, cfg.GraphIncludeSeed)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "paperchat.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunk_size: 500\nchunk_overlap: 50\nstore: badger\ngraph_edge_types: cites\n"), 0o644))
	t.Setenv("PAPERCHAT_CONFIG", path)
	t.Setenv("PAPERCHAT_CHUNK_OVERLAP", "100")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 100, cfg.ChunkOverlap)
	assert.Equal(t, "badger", cfg.Store)
	assert.Equal(t, []string{"CITES"}, cfg.EdgeTypes())
	// untouched keys keep their defaults
	assert.Equal(t, 768, cfg.EmbedDim)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"zero chunk size":       func(c *Config) { c.ChunkSize = 0 },
		"overlap equals size":   func(c *Config) { c.ChunkOverlap = c.ChunkSize },
		"negative overlap":      func(c *Config) { c.ChunkOverlap = -1 },
		"positive graph score":  func(c *Config) { c.GraphScore = 0.2 },
		"unknown edge type":     func(c *Config) { c.GraphEdgeTypes = "AUTHORED_BY,MENTIONS" },
		"unknown store":         func(c *Config) { c.Store = "neo4j" },
		"zero embed batch size": func(c *Config) { c.EmbedBatchSize = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
	require.NoError(t, Default().Validate())
}

func TestLoadRejectsInvalidChunking(t *testing.T) {
	t.Setenv("PAPERCHAT_CONFIG", "")
	t.Setenv("PAPERCHAT_CHUNK_SIZE", "100")
	t.Setenv("PAPERCHAT_CHUNK_OVERLAP", "100")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_overlap")
}

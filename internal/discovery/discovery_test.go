package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperchat/internal/util"
)

const attentionFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/1706.03762v7</id>
    <published>2017-06-12T17:57:34Z</published>
    <title>Attention Is All
      You Need</title>
    <summary>  The dominant sequence transduction models...  </summary>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
    <link href="http://arxiv.org/abs/1706.03762v7" rel="alternate" type="text/html"/>
    <link title="pdf" href="PDF_URL" rel="related" type="application/pdf"/>
  </entry>
</feed>`

const errorFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/api/errors#incorrect_id_format_for_nope</id>
    <title>Error</title>
    <summary>incorrect id format for nope</summary>
  </entry>
</feed>`

func TestArxivSearchParsesFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "all:attention", r.URL.Query().Get("search_query"))
		assert.Equal(t, "5", r.URL.Query().Get("max_results"))
		_, _ = w.Write([]byte(attentionFeed))
	}))
	defer srv.Close()

	a := NewArxiv(srv.URL, t.TempDir())
	papers, err := a.Search(context.Background(), "attention", 5)
	require.NoError(t, err)
	require.Len(t, papers, 1)
	p := papers[0]
	assert.Equal(t, "1706.03762v7", p.PaperID)
	assert.Equal(t, "Attention Is All You Need", p.Title)
	assert.Equal(t, "The dominant sequence transduction models...", p.Abstract)
	assert.Equal(t, []string{"Ashish Vaswani", "Noam Shazeer"}, p.Authors)
	assert.Equal(t, 2017, p.Year)
}

func TestArxivLookupUnknownIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(errorFeed))
	}))
	defer srv.Close()

	_, _, err := NewArxiv(srv.URL, t.TempDir()).Lookup(context.Background(), "nope")
	require.ErrorIs(t, err, util.ErrNotFound)
}

func TestArxivStatusMapping(t *testing.T) {
	for status, want := range map[int]error{
		http.StatusTooManyRequests:    util.ErrRateLimited,
		http.StatusServiceUnavailable: util.ErrUnavailable,
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		_, err := NewArxiv(srv.URL, t.TempDir()).Search(context.Background(), "x", 1)
		srv.Close()
		require.ErrorIs(t, err, want, "status %d", status)
		assert.True(t, util.IsRetryable(err))
	}
}

func TestArxivResolveDownloadsPDFOnce(t *testing.T) {
	var downloads atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/pdf" {
			downloads.Add(1)
			_, _ = w.Write([]byte("not really a pdf"))
			return
		}
		_, _ = w.Write([]byte(strings.ReplaceAll(attentionFeed, "PDF_URL", srv.URL+"/pdf")))
	}))
	defer srv.Close()

	dir := t.TempDir()
	a := NewArxiv(srv.URL, dir)
	_, err := a.Resolve(context.Background(), "1706.03762v7")
	require.Error(t, err, "garbage pdf cannot be parsed")
	assert.ErrorIs(t, err, util.ErrInvalidInput)
	assert.FileExists(t, filepath.Join(dir, "1706.03762v7.pdf"))

	_, _ = a.Resolve(context.Background(), "1706.03762v7")
	assert.Equal(t, int32(1), downloads.Load(), "stored pdf is reused")
}

func TestDirResolveTextWithSidecar(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "P1.txt"), []byte("Swin\x00 Transformer paper.\nWe use a Swin Transformer backbone."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "P1.json"), []byte(`{"title":"Swin","authors":["Ze Liu"],"year":2021,"cites":["1706.03762v7"]}`), 0o644))

	d := NewDir(root)
	r, err := d.Resolve(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, "Swin", r.Paper.Title)
	assert.Equal(t, []string{"Ze Liu"}, r.Paper.Authors)
	assert.Equal(t, []string{"1706.03762v7"}, r.Citations)
	assert.Equal(t, "Swin Transformer paper.\nWe use a Swin Transformer backbone.", r.Text)

	papers, err := d.Search(context.Background(), "swin", 10)
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Equal(t, "P1", papers[0].PaperID)
}

func TestDirResolveFallsBackToFirstLineTitle(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "P2.txt"), []byte("\n  A Title Line  \nbody"), 0o644))
	r, err := NewDir(root).Resolve(context.Background(), "P2")
	require.NoError(t, err)
	assert.Equal(t, "A Title Line", r.Paper.Title)
	assert.Empty(t, r.Citations)
}

func TestDirResolveMissingIsNotFound(t *testing.T) {
	_, err := NewDir(t.TempDir()).Resolve(context.Background(), "ghost")
	require.ErrorIs(t, err, util.ErrNotFound)
}

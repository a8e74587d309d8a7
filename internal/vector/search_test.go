package vector

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperchat/internal/models"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, Cosine([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 0}))
}

type emptyRows struct{ closed bool }

func (r *emptyRows) Close()                                       { r.closed = true }
func (r *emptyRows) Err() error                                   { return nil }
func (r *emptyRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *emptyRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *emptyRows) Next() bool                                   { return false }
func (r *emptyRows) Scan(...any) error                            { return nil }
func (r *emptyRows) Values() ([]any, error)                       { return nil, nil }
func (r *emptyRows) RawValues() [][]byte                          { return nil }
func (r *emptyRows) Conn() *pgx.Conn                              { return nil }

type recordingQueryer struct {
	args []any
	rows *emptyRows
}

func (q *recordingQueryer) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	q.args = args
	q.rows = &emptyRows{}
	return q.rows, nil
}

func TestSearchChunksHugeTopK(t *testing.T) {
	q := &recordingQueryer{}
	var (
		out []models.RetrievalContext
		err error
	)
	require.NotPanics(t, func() {
		out, err = NewSearcher(q).SearchChunks(context.Background(), "p", []float32{1}, 1<<62)
	})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 1<<62, q.args[1], "the limit is still passed to the query")
	assert.Equal(t, "p", q.args[2])
	assert.True(t, q.rows.closed)
}

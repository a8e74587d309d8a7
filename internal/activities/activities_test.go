package activities

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"paperchat/internal/ingest"
	"paperchat/internal/util"
)

type mockIngester struct {
	mock.Mock
}

func (m *mockIngester) Ingest(ctx context.Context, paperID string) (ingest.Result, error) {
	args := m.Called(ctx, paperID)
	return args.Get(0).(ingest.Result), args.Error(1)
}

func run(t *testing.T, ing Ingester, in IngestPaperInput) (IngestPaperOutput, error) {
	t.Helper()
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	a := New(ing)
	env.RegisterActivity(a.IngestPaperActivity)
	val, err := env.ExecuteActivity(a.IngestPaperActivity, in)
	if err != nil {
		return IngestPaperOutput{}, err
	}
	var out IngestPaperOutput
	require.NoError(t, val.Get(&out))
	return out, nil
}

func TestIngestPaperActivitySuccess(t *testing.T) {
	ing := &mockIngester{}
	ing.On("Ingest", mock.Anything, "1706.03762").Return(ingest.Result{PaperID: "1706.03762", Title: "Attention", Chunks: 3, Authors: 8}, nil)

	out, err := run(t, ing, IngestPaperInput{JobID: "job-1", PaperID: "1706.03762"})
	require.NoError(t, err)
	assert.Equal(t, IngestPaperOutput{PaperID: "1706.03762", Title: "Attention", Chunks: 3, Authors: 8}, out)
	ing.AssertExpectations(t)
}

func TestIngestPaperActivityErrorTypes(t *testing.T) {
	cases := []struct {
		err          error
		kind         string
		nonRetryable bool
	}{
		{util.Mark(errors.New("unknown id"), util.ErrNotFound), "not_found", true},
		{util.Mark(errors.New("bad dimension"), util.ErrInvalidInput), "invalid_input", true},
		{util.Mark(errors.New("commit failed"), util.ErrPartialWrite), "partial_write", false},
		{util.Mark(errors.New("429"), util.ErrRateLimited), "rate_limited", false},
		{errors.New("unexpected"), "internal", false},
	}
	for _, c := range cases {
		t.Run(c.kind, func(t *testing.T) {
			ing := &mockIngester{}
			ing.On("Ingest", mock.Anything, "P1").Return(ingest.Result{}, c.err)

			_, err := run(t, ing, IngestPaperInput{PaperID: "P1"})
			require.Error(t, err)
			var appErr *temporal.ApplicationError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, c.kind, appErr.Type())
			assert.Equal(t, c.nonRetryable, appErr.NonRetryable())
		})
	}
}

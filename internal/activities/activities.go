package activities

import (
	"context"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"paperchat/internal/ingest"
	"paperchat/internal/util"
)

// Ingester runs the ingestion pipeline for one paper.
type Ingester interface {
	Ingest(ctx context.Context, paperID string) (ingest.Result, error)
}

type Activities struct {
	ingester Ingester
}

func New(ingester Ingester) *Activities {
	return &Activities{ingester: ingester}
}

// IngestPaperActivity ingests one paper. Failures that a retry cannot fix are returned as
// non-retryable application errors typed with their taxonomy kind.
func (a *Activities) IngestPaperActivity(ctx context.Context, in IngestPaperInput) (IngestPaperOutput, error) {
	logger := activity.GetLogger(ctx)
	res, err := a.ingester.Ingest(ctx, in.PaperID)
	if err != nil {
		kind := util.Kind(err)
		logger.Warn("paper ingestion failed", "job_id", in.JobID, "paper_id", in.PaperID, "kind", kind, "error", err)
		if !util.IsRetryable(err) && kind != "internal" {
			return IngestPaperOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), kind, err)
		}
		return IngestPaperOutput{}, temporal.NewApplicationErrorWithCause(err.Error(), kind, err)
	}
	logger.Info("paper ingested", "job_id", in.JobID, "paper_id", res.PaperID, "chunks", res.Chunks, "shared", res.Shared)
	return IngestPaperOutput{
		PaperID:   res.PaperID,
		Title:     res.Title,
		Chunks:    res.Chunks,
		Authors:   res.Authors,
		Citations: res.Citations,
	}, nil
}

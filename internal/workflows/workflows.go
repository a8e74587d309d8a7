package workflows

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"paperchat/internal/activities"
)

const (
	QueryGetPaperStatus = "GetPaperStatus"
	QueryGetProgress    = "GetProgress"
)

// IngestBatchWorkflow ingests every paper of a job through PaperIngestWorkflow children, at
// most MaxConcurrentChildren at a time. A failed paper never fails the job; the job is
// failed only when every paper failed.
func IngestBatchWorkflow(ctx workflow.Context, input IngestBatchInput) (IngestProgress, error) {
	paperIDs := uniquePaperIDs(input.PaperIDs)
	progress := IngestProgress{
		JobID:       input.JobID,
		Status:      StatusPending,
		TotalPapers: len(paperIDs),
		PerPaper:    map[string]string{},
		Messages:    []string{},
	}
	for _, id := range paperIDs {
		progress.PerPaper[id] = StatusPending
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetProgress, func() (IngestProgress, error) {
		return progress, nil
	}); err != nil {
		return progress, err
	}

	logger := workflow.GetLogger(ctx)
	maxChildren := input.MaxConcurrentChildren
	if maxChildren <= 0 {
		maxChildren = 3
	}
	progress.Status = StatusProcessing

	for i := 0; i < len(paperIDs); i += maxChildren {
		end := min(i+maxChildren, len(paperIDs))
		futures := make([]workflow.ChildWorkflowFuture, 0, end-i)
		for _, id := range paperIDs[i:end] {
			progress.PerPaper[id] = StatusProcessing
			cwo := workflow.ChildWorkflowOptions{
				WorkflowID: childWorkflowID(input.JobID, id),
			}
			childCtx := workflow.WithChildOptions(ctx, cwo)
			futures = append(futures, workflow.ExecuteChildWorkflow(childCtx, PaperIngestWorkflow, PaperIngestInput{
				JobID:   input.JobID,
				PaperID: id,
			}))
		}

		for idx, f := range futures {
			id := paperIDs[i+idx]
			var st PaperStatus
			if err := f.Get(ctx, &st); err != nil {
				st = PaperStatus{PaperID: id, Status: StatusFailed, FailReason: err.Error()}
			}
			progress.PerPaper[id] = st.Status
			if st.Status == StatusFailed {
				progress.FailedPapers++
				progress.Messages = append(progress.Messages, fmt.Sprintf("%s: %s", id, st.FailReason))
				continue
			}
			progress.ProcessedPapers++
		}
	}

	progress.Status = StatusCompleted
	if progress.TotalPapers > 0 && progress.FailedPapers == progress.TotalPapers {
		progress.Status = StatusFailed
	}
	logger.Info("ingest job finished",
		"job_id", input.JobID,
		"status", progress.Status,
		"processed", progress.ProcessedPapers,
		"failed", progress.FailedPapers,
	)
	return progress, nil
}

// PaperIngestWorkflow runs IngestPaperActivity with retries. Exhausted or non-retryable
// failures are reported in the returned status rather than as a workflow error.
func PaperIngestWorkflow(ctx workflow.Context, input PaperIngestInput) (PaperStatus, error) {
	status := PaperStatus{PaperID: input.PaperID, Status: StatusProcessing}
	if err := workflow.SetQueryHandler(ctx, QueryGetPaperStatus, func() (PaperStatus, error) {
		return status, nil
	}); err != nil {
		return status, err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        2 * time.Second,
			BackoffCoefficient:     2,
			MaximumInterval:        20 * time.Second,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{"not_found", "invalid_input", "content_policy"},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var out activities.IngestPaperOutput
	err := workflow.ExecuteActivity(ctx, "IngestPaperActivity", activities.IngestPaperInput{
		JobID:   input.JobID,
		PaperID: input.PaperID,
	}).Get(ctx, &out)
	if err != nil {
		status.Status = StatusFailed
		status.FailReason = err.Error()
		var appErr *temporal.ApplicationError
		if errors.As(err, &appErr) {
			status.ErrorKind = appErr.Type()
			status.FailReason = appErr.Error()
		}
		workflow.GetLogger(ctx).Warn("paper failed", "paper_id", input.PaperID, "kind", status.ErrorKind, "reason", status.FailReason)
		return status, nil
	}
	status.Status = StatusCompleted
	status.Title = out.Title
	status.Chunks = out.Chunks
	return status, nil
}

func uniquePaperIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := map[string]struct{}{}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// childWorkflowID keeps the ids readable but suffixes a hash of the raw pair, since
// sanitizing alone maps "a.b" and "a_b" to the same id.
func childWorkflowID(jobID, paperID string) string {
	h, _ := blake2b.New(4, nil)
	h.Write([]byte(jobID))
	h.Write([]byte{0})
	h.Write([]byte(paperID))
	return "paper-" + sanitizeID(jobID) + "-" + sanitizeID(paperID) + "-" + hex.EncodeToString(h.Sum(nil))
}

func sanitizeID(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.ReplaceAll(s, "/", "-")
	return s
}

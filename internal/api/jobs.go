package api

import (
	"context"
	"errors"
	"fmt"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	tclient "go.temporal.io/sdk/client"

	"paperchat/internal/util"
	"paperchat/internal/workflows"
)

// TemporalJobs runs ingestion jobs as IngestBatchWorkflow executions named "ingest-<job_id>".
type TemporalJobs struct {
	client      tclient.Client
	taskQueue   string
	maxChildren int
}

func NewTemporalJobs(c tclient.Client, taskQueue string, maxChildren int) *TemporalJobs {
	return &TemporalJobs{client: c, taskQueue: taskQueue, maxChildren: maxChildren}
}

func workflowID(jobID string) string { return "ingest-" + jobID }

func (j *TemporalJobs) StartIngest(ctx context.Context, jobID string, paperIDs []string) error {
	_, err := j.client.ExecuteWorkflow(ctx, tclient.StartWorkflowOptions{
		ID:                                       workflowID(jobID),
		TaskQueue:                                j.taskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.IngestBatchWorkflow, workflows.IngestBatchInput{
		JobID:                 jobID,
		PaperIDs:              paperIDs,
		MaxConcurrentChildren: j.maxChildren,
	})
	if err != nil {
		return util.Mark(fmt.Errorf("start ingest job %s: %w", jobID, err), util.ErrUnavailable)
	}
	return nil
}

func (j *TemporalJobs) Progress(ctx context.Context, jobID string) (workflows.IngestProgress, error) {
	var progress workflows.IngestProgress
	val, err := j.client.QueryWorkflow(ctx, workflowID(jobID), "", workflows.QueryGetProgress)
	if err != nil {
		var nf *serviceerror.NotFound
		if errors.As(err, &nf) {
			return progress, util.Mark(fmt.Errorf("ingest job %s: %w", jobID, err), util.ErrNotFound)
		}
		return progress, util.Mark(fmt.Errorf("query ingest job %s: %w", jobID, err), util.ErrUnavailable)
	}
	if err := val.Get(&progress); err != nil {
		return progress, fmt.Errorf("decode ingest progress: %w", err)
	}
	return progress, nil
}

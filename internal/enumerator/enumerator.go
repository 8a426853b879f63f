// Package enumerator lists and hydrates HealthOmics workflows and runs for a
// replay pass. Entities are immutable snapshots fetched fresh from the
// service; nothing here mutates remote state.
package enumerator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/omics"
	"github.com/aws/aws-sdk-go-v2/service/omics/types"
)

// WorkflowAPI is the slice of the HealthOmics API the workflow pass needs
// (helpful for testing).
type WorkflowAPI interface {
	omics.ListWorkflowsAPIClient
	omics.ListWorkflowVersionsAPIClient
	GetWorkflow(ctx context.Context, in *omics.GetWorkflowInput, opts ...func(*omics.Options)) (*omics.GetWorkflowOutput, error)
	GetWorkflowVersion(ctx context.Context, in *omics.GetWorkflowVersionInput, opts ...func(*omics.Options)) (*omics.GetWorkflowVersionOutput, error)
}

// RunAPI is the slice of the HealthOmics API the run pass needs (helpful for
// testing).
type RunAPI interface {
	omics.ListRunsAPIClient
	GetRun(ctx context.Context, in *omics.GetRunInput, opts ...func(*omics.Options)) (*omics.GetRunOutput, error)
	GetWorkflow(ctx context.Context, in *omics.GetWorkflowInput, opts ...func(*omics.Options)) (*omics.GetWorkflowOutput, error)
}

// ResourceNotFoundError marks an entity id that did not resolve in the
// orchestration service. Reported per entity; never aborts a pass.
type ResourceNotFoundError struct {
	ID string
}

func (e *ResourceNotFoundError) Error() string {
	return fmt.Sprintf("resource %s not found", e.ID)
}

// WorkflowRef is the minimal handle needed to hydrate a workflow.
type WorkflowRef struct {
	ID           string
	Type         string
	Arn          string
	CreationTime time.Time
}

// WorkflowVersion is a hydrated workflow version snapshot.
type WorkflowVersion struct {
	Name         string
	Arn          string
	Status       string
	UUID         string
	CreationTime time.Time
}

// Workflow is a hydrated workflow snapshot, versions included.
type Workflow struct {
	ID           string
	Type         string
	Arn          string
	Name         string
	Status       string
	UUID         string
	CreationTime time.Time
	Versions     []WorkflowVersion
}

// RunRef is the minimal handle needed to hydrate a run.
type RunRef struct {
	ID string
}

// Run is a hydrated run snapshot.
type Run struct {
	ID              string
	Arn             string
	Status          string
	WorkflowID      string
	WorkflowType    string
	WorkflowName    string
	FailureReason   string
	StorageType     string
	StorageCapacity int32
	StartedBy       string
	CreationTime    time.Time
	StartTime       time.Time
	StopTime        time.Time
}

// workflowTypes are the visibility classes enumerated by a full workflow pass.
var workflowTypes = []types.WorkflowType{types.WorkflowTypeReady2run, types.WorkflowTypePrivate}

// WorkflowEnumerator walks workflows of every visibility class.
type WorkflowEnumerator struct {
	api WorkflowAPI
}

// NewWorkflowEnumerator returns a new WorkflowEnumerator.
func NewWorkflowEnumerator(api WorkflowAPI) *WorkflowEnumerator {
	return &WorkflowEnumerator{api: api}
}

// ListWorkflows pages through READY2RUN and PRIVATE workflows, calling fn for
// each. A non-nil error from fn stops the walk.
func (e *WorkflowEnumerator) ListWorkflows(ctx context.Context, fn func(WorkflowRef) error) error {

	for _, wt := range workflowTypes {
		fmt.Printf("Fetching all %s workflows...\n", wt)

		p := omics.NewListWorkflowsPaginator(e.api, &omics.ListWorkflowsInput{Type: wt})
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				return fmt.Errorf("failed to list %s workflows: %v", wt, err)
			}
			for _, item := range page.Items {
				ref := WorkflowRef{
					ID:           aws.ToString(item.Id),
					Type:         string(item.Type),
					Arn:          aws.ToString(item.Arn),
					CreationTime: aws.ToTime(item.CreationTime),
				}
				if err := fn(ref); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// HydrateWorkflow fetches full workflow detail plus every version.
func (e *WorkflowEnumerator) HydrateWorkflow(ctx context.Context, ref WorkflowRef) (Workflow, error) {

	detail, err := e.api.GetWorkflow(ctx, &omics.GetWorkflowInput{
		Id:   aws.String(ref.ID),
		Type: types.WorkflowType(ref.Type),
	})
	if err != nil {
		if nf := asNotFound(ref.ID, err); nf != nil {
			return Workflow{}, nf
		}
		return Workflow{}, fmt.Errorf("failed to get workflow %s: %v", ref.ID, err)
	}

	w := Workflow{
		ID:           ref.ID,
		Type:         ref.Type,
		Arn:          aws.ToString(detail.Arn),
		Name:         aws.ToString(detail.Name),
		Status:       string(detail.Status),
		UUID:         aws.ToString(detail.Uuid),
		CreationTime: aws.ToTime(detail.CreationTime),
	}
	if w.Arn == "" {
		w.Arn = ref.Arn
	}
	if w.CreationTime.IsZero() {
		w.CreationTime = ref.CreationTime
	}

	versions, err := e.listVersions(ctx, ref)
	if err != nil {
		return Workflow{}, err
	}
	w.Versions = versions

	return w, nil
}

func (e *WorkflowEnumerator) listVersions(ctx context.Context, ref WorkflowRef) ([]WorkflowVersion, error) {

	fmt.Printf("Fetching all versions for workflow %s...\n", ref.ID)

	var items []types.WorkflowVersionListItem
	p := omics.NewListWorkflowVersionsPaginator(e.api, &omics.ListWorkflowVersionsInput{
		WorkflowId: aws.String(ref.ID),
		Type:       types.WorkflowType(ref.Type),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list versions for workflow %s: %v", ref.ID, err)
		}
		items = append(items, page.Items...)
	}

	var versions []WorkflowVersion
	for _, item := range items {
		name := aws.ToString(item.VersionName)
		detail, err := e.api.GetWorkflowVersion(ctx, &omics.GetWorkflowVersionInput{
			WorkflowId:  aws.String(ref.ID),
			VersionName: aws.String(name),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get version %s of workflow %s: %v", name, ref.ID, err)
		}
		versions = append(versions, WorkflowVersion{
			Name:         name,
			Arn:          aws.ToString(item.Arn),
			Status:       string(item.Status),
			UUID:         aws.ToString(detail.Uuid),
			CreationTime: aws.ToTime(item.CreationTime),
		})
	}
	return versions, nil
}

// RunEnumerator lists and hydrates workflow runs.
type RunEnumerator struct {
	api RunAPI
}

// NewRunEnumerator returns a new RunEnumerator.
func NewRunEnumerator(api RunAPI) *RunEnumerator {
	return &RunEnumerator{api: api}
}

// ListRuns returns refs for the most recent runs, capped at limit.
func (e *RunEnumerator) ListRuns(ctx context.Context, limit int) ([]RunRef, error) {

	fmt.Printf("Fetching up to %d workflow runs...\n", limit)

	var refs []RunRef
	p := omics.NewListRunsPaginator(e.api, &omics.ListRunsInput{})
	for p.HasMorePages() && len(refs) < limit {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list workflow runs: %v", err)
		}
		for _, item := range page.Items {
			refs = append(refs, RunRef{ID: aws.ToString(item.Id)})
			if len(refs) >= limit {
				break
			}
		}
	}
	return refs, nil
}

// ExplicitRuns wraps caller-supplied run ids verbatim. Any configured limit is
// irrelevant here: the caller named exactly what to replay.
func (e *RunEnumerator) ExplicitRuns(ids []string) []RunRef {
	refs := make([]RunRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, RunRef{ID: id})
	}
	return refs
}

// HydrateRun fetches the run snapshot and resolves its workflow name. A
// missing run yields ResourceNotFoundError; a failed name lookup degrades to
// "Unknown".
func (e *RunEnumerator) HydrateRun(ctx context.Context, ref RunRef) (Run, error) {

	detail, err := e.api.GetRun(ctx, &omics.GetRunInput{Id: aws.String(ref.ID)})
	if err != nil {
		if nf := asNotFound(ref.ID, err); nf != nil {
			return Run{}, nf
		}
		return Run{}, fmt.Errorf("failed to get run %s: %v", ref.ID, err)
	}

	r := Run{
		ID:              ref.ID,
		Arn:             aws.ToString(detail.Arn),
		Status:          string(detail.Status),
		WorkflowID:      aws.ToString(detail.WorkflowId),
		WorkflowType:    string(detail.WorkflowType),
		FailureReason:   aws.ToString(detail.FailureReason),
		StorageType:     string(detail.StorageType),
		StorageCapacity: aws.ToInt32(detail.StorageCapacity),
		StartedBy:       aws.ToString(detail.StartedBy),
		CreationTime:    aws.ToTime(detail.CreationTime),
		StartTime:       aws.ToTime(detail.StartTime),
		StopTime:        aws.ToTime(detail.StopTime),
	}
	r.WorkflowName = e.workflowName(ctx, r.WorkflowID, r.WorkflowType)

	return r, nil
}

func (e *RunEnumerator) workflowName(ctx context.Context, workflowID, workflowType string) string {

	if workflowID == "" {
		return "Unknown"
	}
	detail, err := e.api.GetWorkflow(ctx, &omics.GetWorkflowInput{
		Id:   aws.String(workflowID),
		Type: types.WorkflowType(workflowType),
	})
	if err != nil {
		fmt.Printf("Error getting name for workflow %s: %v\n", workflowID, err)
		return "Unknown"
	}
	if name := aws.ToString(detail.Name); name != "" {
		return name
	}
	return "Unknown"
}

// asNotFound maps the service's not-found error to ResourceNotFoundError.
func asNotFound(id string, err error) error {
	var nfe *types.ResourceNotFoundException
	if errors.As(err, &nfe) {
		return &ResourceNotFoundError{ID: id}
	}
	return nil
}

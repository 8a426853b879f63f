// Package synthesizer builds replay event envelopes shaped exactly like the
// notifications the HealthOmics event bus delivers, so downstream processors
// cannot tell a replayed event from a live one except by its source tag.
package synthesizer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"github.com/aws-samples/healthomics-event-replay/internal/enumerator"
)

const (
	envelopeVersion = "0"
	omicsVersion    = "1.0.0"

	workflowDetailType = "Workflow Status Change"
	runDetailType      = "Omics Workflow Run Status Change"
)

// WorkflowDetail mirrors the detail block of a live workflow status event.
// Field names and types must not drift: downstream stores the raw JSON and a
// mismatch only surfaces at query time.
type WorkflowDetail struct {
	OmicsVersion        string `json:"omicsVersion"`
	Arn                 string `json:"arn"`
	Status              string `json:"status"`
	WorkflowUUID        string `json:"workflowUuid"`
	WorkflowVersionName string `json:"workflowVersionName,omitempty"`
}

// RunDetail mirrors the detail block of a live run status change event, plus
// the reprocess marker the downstream processors accept.
type RunDetail struct {
	RunID        string `json:"runId"`
	Status       string `json:"status"`
	WorkflowName string `json:"workflowName"`
	Reprocess    bool   `json:"reprocess"`
}

// Synthesizer builds event envelopes for one replay pass.
type Synthesizer struct {
	source  string
	account string
	region  string

	now   func() time.Time
	newID func() string
}

// New returns a Synthesizer stamping envelopes with the given source tag,
// account and region.
func New(source, account, region string) *Synthesizer {
	return &Synthesizer{
		source:  source,
		account: account,
		region:  region,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

func (s *Synthesizer) envelope(id, detailType string, ts time.Time, resources []string, detail interface{}) (events.CloudWatchEvent, error) {

	raw, err := json.Marshal(detail)
	if err != nil {
		return events.CloudWatchEvent{}, fmt.Errorf("failed to marshal event detail: %v", err)
	}

	return events.CloudWatchEvent{
		Version:    envelopeVersion,
		ID:         id,
		DetailType: detailType,
		Source:     s.source,
		AccountID:  s.account,
		Time:       ts,
		Region:     s.region,
		Resources:  resources,
		Detail:     raw,
	}, nil
}

// WorkflowEvents produces one "became active" event for the workflow itself
// and one per version. A workflow with no versions yields exactly one event.
func (s *Synthesizer) WorkflowEvents(w enumerator.Workflow) ([]events.CloudWatchEvent, error) {

	parent, err := s.envelope(
		fmt.Sprintf("reprocess-eventid-%s", s.newID()),
		workflowDetailType,
		w.CreationTime,
		[]string{w.Arn},
		WorkflowDetail{
			OmicsVersion: omicsVersion,
			Arn:          w.Arn,
			Status:       w.Status,
			WorkflowUUID: w.UUID,
		},
	)
	if err != nil {
		return nil, err
	}
	evts := []events.CloudWatchEvent{parent}

	for _, v := range w.Versions {
		evt, err := s.envelope(
			fmt.Sprintf("reprocess-eventid-%s", s.newID()),
			workflowDetailType,
			v.CreationTime,
			[]string{v.Arn},
			WorkflowDetail{
				OmicsVersion:        omicsVersion,
				Arn:                 w.Arn,
				Status:              v.Status,
				WorkflowUUID:        v.UUID,
				WorkflowVersionName: v.Name,
			},
		)
		if err != nil {
			return nil, err
		}
		evts = append(evts, evt)
	}

	return evts, nil
}

// RunEvent produces one status change event carrying the run's actual
// recorded status, whatever that is.
func (s *Synthesizer) RunEvent(r enumerator.Run) (events.CloudWatchEvent, error) {

	// a live envelope always carries a resources array, even when empty
	resources := []string{}
	if r.Arn != "" {
		resources = []string{r.Arn}
	}

	return s.envelope(
		fmt.Sprintf("reprocess-%s", r.ID),
		runDetailType,
		s.now().UTC(),
		resources,
		RunDetail{
			RunID:        r.ID,
			Status:       r.Status,
			WorkflowName: r.WorkflowName,
			Reprocess:    true,
		},
	)
}

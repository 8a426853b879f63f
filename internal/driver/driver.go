// Package driver runs the sequential replay passes: enumerate, synthesize,
// dispatch, throttle, report.
package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws-samples/healthomics-event-replay/internal/dispatcher"
	"github.com/aws-samples/healthomics-event-replay/internal/enumerator"
	"github.com/aws-samples/healthomics-event-replay/internal/report"
	"github.com/aws-samples/healthomics-event-replay/internal/synthesizer"
)

// WorkflowSource enumerates and hydrates workflows (helpful for testing).
type WorkflowSource interface {
	ListWorkflows(context.Context, func(enumerator.WorkflowRef) error) error
	HydrateWorkflow(context.Context, enumerator.WorkflowRef) (enumerator.Workflow, error)
}

// RunSource hydrates runs (helpful for testing).
type RunSource interface {
	HydrateRun(context.Context, enumerator.RunRef) (enumerator.Run, error)
}

// failureRecord classifies an entity-level hydration failure. The pass never
// aborts for these.
func failureRecord(entityID, target string, err error) report.Record {
	rec := report.Record{EntityID: entityID, Target: target, Detail: err.Error()}
	var nf *enumerator.ResourceNotFoundError
	if errors.As(err, &nf) {
		rec.Outcome = report.NotFound
	} else {
		rec.Outcome = report.TransportFailure
	}
	return rec
}

// WorkflowDriver replays workflow status events for every workflow and
// version into one target function.
type WorkflowDriver struct {
	src    WorkflowSource
	syn    *synthesizer.Synthesizer
	disp   *dispatcher.Dispatcher
	target string
	delay  time.Duration
	sleep  func(time.Duration)
}

// NewWorkflowDriver returns a new WorkflowDriver.
func NewWorkflowDriver(src WorkflowSource, syn *synthesizer.Synthesizer, disp *dispatcher.Dispatcher, target string, delay time.Duration) *WorkflowDriver {
	return &WorkflowDriver{
		src:    src,
		syn:    syn,
		disp:   disp,
		target: target,
		delay:  delay,
		sleep:  time.Sleep,
	}
}

func (d *WorkflowDriver) throttle() {
	if d.delay > 0 {
		d.sleep(d.delay)
	}
}

// Replay runs the workflow pass. Entity-level failures are recorded and the
// pass continues; only enumeration itself can abort it.
func (d *WorkflowDriver) Replay(ctx context.Context) (*report.Report, error) {

	rep := &report.Report{}

	err := d.src.ListWorkflows(ctx, func(ref enumerator.WorkflowRef) error {
		fmt.Printf("Processing workflow: %s\n", ref.ID)

		w, err := d.src.HydrateWorkflow(ctx, ref)
		if err != nil {
			fmt.Printf("Skipping workflow %s: %v\n", ref.ID, err)
			rep.Add(failureRecord(ref.ID, d.target, err))
			return nil
		}

		evts, err := d.syn.WorkflowEvents(w)
		if err != nil {
			rep.Add(failureRecord(ref.ID, d.target, err))
			return nil
		}

		for _, evt := range evts {
			rep.Add(d.disp.Dispatch(ref.ID, d.target, evt))
			d.throttle()
		}
		return nil
	})
	if err != nil {
		return rep, err
	}

	return rep, nil
}

// Target is one resolved processor dispatch destination.
type Target struct {
	Processor string
	Function  string
}

// RunDriver replays run status change events into each resolved processor.
type RunDriver struct {
	src     RunSource
	syn     *synthesizer.Synthesizer
	disp    *dispatcher.Dispatcher
	targets []Target
	delay   time.Duration
	sleep   func(time.Duration)
}

// NewRunDriver returns a new RunDriver.
func NewRunDriver(src RunSource, syn *synthesizer.Synthesizer, disp *dispatcher.Dispatcher, targets []Target, delay time.Duration) *RunDriver {
	return &RunDriver{
		src:     src,
		syn:     syn,
		disp:    disp,
		targets: targets,
		delay:   delay,
		sleep:   time.Sleep,
	}
}

func (d *RunDriver) throttle() {
	if d.delay > 0 {
		d.sleep(d.delay)
	}
}

// Replay runs the run pass over the given refs. One event is synthesized per
// run and dispatched to every target; the throttle delay applies once per run.
func (d *RunDriver) Replay(ctx context.Context, refs []enumerator.RunRef) *report.Report {

	// only the run pass has an explicit-id retry path
	rep := &report.Report{RetryHint: true}

	for _, ref := range refs {
		fmt.Printf("Processing run: %s\n", ref.ID)

		run, err := d.src.HydrateRun(ctx, ref)
		if err != nil {
			fmt.Printf("Skipping run %s: %v\n", ref.ID, err)
			rep.Add(failureRecord(ref.ID, "", err))
			continue
		}
		fmt.Printf("Run status: %s\n", run.Status)

		evt, err := d.syn.RunEvent(run)
		if err != nil {
			rep.Add(failureRecord(ref.ID, "", err))
			continue
		}

		for _, t := range d.targets {
			rep.Add(d.disp.Dispatch(run.ID, t.Function, evt))
		}
		d.throttle()
	}

	return rep
}

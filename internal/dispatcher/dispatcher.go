// Package dispatcher performs the synchronous Lambda invocations for a replay
// pass and classifies each outcome.
package dispatcher

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/lambda"
	"github.com/tidwall/gjson"

	"github.com/aws-samples/healthomics-event-replay/internal/report"
)

// Invoker invokes a lambda (helpful for testing).
type Invoker interface {
	Invoke(*lambda.InvokeInput) (*lambda.InvokeOutput, error)
}

// Dispatcher sends synthesized events to their targets. In dry-run mode no
// network call is made.
type Dispatcher struct {
	inv    Invoker
	dryRun bool
}

// New returns a new Dispatcher.
func New(inv Invoker, dryRun bool) *Dispatcher {
	return &Dispatcher{inv: inv, dryRun: dryRun}
}

// Dispatch invokes target with the event payload and records the outcome.
// Failures are classified, never retried: a transport failure is safe to
// replay manually, a target rejection means the payload or the target needs
// attention first.
func (d *Dispatcher) Dispatch(entityID, target string, event events.CloudWatchEvent) report.Record {

	rec := report.Record{EntityID: entityID, Target: target}

	payload, err := json.Marshal(event)
	if err != nil {
		rec.Outcome = report.Rejected
		rec.Detail = fmt.Sprintf("failed to marshal payload: %v", err)
		return rec
	}

	if d.dryRun {
		fmt.Printf("Dry run - would invoke %s for %s with payload:\n%s\n", target, entityID, payload)
		rec.Outcome = report.Skipped
		return rec
	}

	fmt.Printf("Invoking Lambda function: %s\n", target)
	start := time.Now()
	out, err := d.inv.Invoke(&lambda.InvokeInput{
		FunctionName:   aws.String(target),
		InvocationType: aws.String(lambda.InvocationTypeRequestResponse),
		Payload:        payload,
	})
	rec.Elapsed = time.Since(start)

	if err != nil {
		rec.Outcome = report.TransportFailure
		rec.Detail = fmt.Sprintf("failed to invoke %s: %v", target, err)
		fmt.Println(rec.Detail)
		return rec
	}

	status := aws.Int64Value(out.StatusCode)
	fmt.Printf("Lambda invocation status code: %d\n", status)

	if status != 200 {
		rec.Outcome = report.TransportFailure
		rec.Detail = fmt.Sprintf("invocation returned status %d", status)
		fmt.Println(rec.Detail)
		return rec
	}

	if fe := aws.StringValue(out.FunctionError); fe != "" {
		rec.Outcome = report.Rejected
		msg := gjson.GetBytes(out.Payload, "errorMessage").String()
		if msg == "" {
			msg = string(out.Payload)
		}
		rec.Detail = fmt.Sprintf("%s: %s", fe, msg)
		fmt.Printf("Lambda execution error: %s\n", rec.Detail)
		return rec
	}

	fmt.Printf("Lambda execution completed: %s\n", out.Payload)
	rec.Outcome = report.Succeeded
	return rec
}

package dispatcher

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/lambda"
	"github.com/aws/aws-sdk-go/service/lambda/lambdaiface"
	"github.com/tidwall/gjson"

	"github.com/aws-samples/healthomics-event-replay/internal/report"
)

type mockInvoker struct {
	lambdaiface.LambdaAPI
	out   *lambda.InvokeOutput
	err   error
	calls int
	last  *lambda.InvokeInput
}

func (m *mockInvoker) Invoke(in *lambda.InvokeInput) (*lambda.InvokeOutput, error) {
	m.calls++
	m.last = in
	return m.out, m.err
}

func testEvent() events.CloudWatchEvent {
	detail, _ := json.Marshal(map[string]interface{}{"runId": "111", "status": "COMPLETED"})
	return events.CloudWatchEvent{
		Version:    "0",
		ID:         "reprocess-111",
		DetailType: "Omics Workflow Run Status Change",
		Source:     "run-replay",
		Detail:     detail,
	}
}

func TestDispatchOutcomes(t *testing.T) {

	tt := []struct {
		name    string
		out     *lambda.InvokeOutput
		err     error
		outcome report.Outcome
	}{
		{
			name:    "success",
			out:     &lambda.InvokeOutput{StatusCode: aws.Int64(200), Payload: []byte(`{"statusCode":200}`)},
			outcome: report.Succeeded,
		},
		{
			name:    "transport error",
			err:     fmt.Errorf("connection reset"),
			outcome: report.TransportFailure,
		},
		{
			name:    "non-200 status",
			out:     &lambda.InvokeOutput{StatusCode: aws.Int64(429)},
			outcome: report.TransportFailure,
		},
		{
			name: "target rejection",
			out: &lambda.InvokeOutput{
				StatusCode:    aws.Int64(200),
				FunctionError: aws.String("Unhandled"),
				Payload:       []byte(`{"errorMessage":"schema validation failed"}`),
			},
			outcome: report.Rejected,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			inv := &mockInvoker{out: tc.out, err: tc.err}
			rec := New(inv, false).Dispatch("111", "target-fn", testEvent())

			if rec.Outcome != tc.outcome {
				t.Errorf("expected %s, got %s (%s)", tc.outcome, rec.Outcome, rec.Detail)
			}
			if inv.calls != 1 {
				t.Errorf("expected 1 invocation, got %d", inv.calls)
			}
		})
	}
}

func TestDispatchSendsSynchronously(t *testing.T) {

	inv := &mockInvoker{out: &lambda.InvokeOutput{StatusCode: aws.Int64(200)}}
	New(inv, false).Dispatch("111", "target-fn", testEvent())

	if got := aws.StringValue(inv.last.InvocationType); got != lambda.InvocationTypeRequestResponse {
		t.Errorf("expected RequestResponse invocation, got %q", got)
	}
	if got := aws.StringValue(inv.last.FunctionName); got != "target-fn" {
		t.Errorf("expected target-fn, got %q", got)
	}
	if got := gjson.GetBytes(inv.last.Payload, "detail.runId").String(); got != "111" {
		t.Errorf("payload detail missing runId: %s", inv.last.Payload)
	}
}

func TestDispatchRejectionDetail(t *testing.T) {

	inv := &mockInvoker{out: &lambda.InvokeOutput{
		StatusCode:    aws.Int64(200),
		FunctionError: aws.String("Unhandled"),
		Payload:       []byte(`{"errorMessage":"schema validation failed"}`),
	}}
	rec := New(inv, false).Dispatch("111", "target-fn", testEvent())

	if rec.Detail != "Unhandled: schema validation failed" {
		t.Errorf("unexpected rejection detail: %q", rec.Detail)
	}
}

func TestDryRunMakesNoCalls(t *testing.T) {

	inv := &mockInvoker{}
	rec := New(inv, true).Dispatch("111", "target-fn", testEvent())

	if inv.calls != 0 {
		t.Errorf("dry run must not invoke, got %d calls", inv.calls)
	}
	if rec.Outcome != report.Skipped {
		t.Errorf("expected skipped outcome, got %s", rec.Outcome)
	}
}

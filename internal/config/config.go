// Package config holds the flag-level options for the replay drivers and the
// processor catalogue shared between them.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Lambda invocation timeout bounds, in seconds. The service rejects anything
// over MaxLambdaTimeout; the SDK HTTP client needs at least minClientTimeout
// to outlive a slow cold start.
const (
	DefaultLambdaTimeout = 300
	MaxLambdaTimeout     = 900
	minClientTimeout     = 60
)

// DefaultWorkflowFunction is the conventional name of the workflow records
// Lambda when no override is supplied.
const DefaultWorkflowFunction = "healthomics_workflow_records_lambda"

// ConfigurationError is a fatal setup problem: a bad flag value, an unknown
// processor, or a missing deployment parameter.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// processorParameters maps each downstream processor to the SSM parameter
// holding its deployed function name.
var processorParameters = map[string]string{
	"run_analyzer":            "/healthomics/lambda/run-analyzer-function",
	"manifest":                "/healthomics/lambda/manifest-log-function",
	"run_status_change_event": "/healthomics/lambda/run-status-change-function",
}

// processorOrder is the canonical dispatch order when ALL is requested.
var processorOrder = []string{"run_analyzer", "manifest", "run_status_change_event"}

// ParameterName returns the SSM parameter for a processor, or "" if the
// processor is unknown.
func ParameterName(processor string) string {
	return processorParameters[processor]
}

// ParseProcessors expands a CSV of processor names, resolving ALL to every
// known processor. Unknown names fail with a ConfigurationError.
func ParseProcessors(csv string) ([]string, error) {
	if strings.TrimSpace(csv) == "" {
		return nil, &ConfigurationError{Reason: "no processors requested"}
	}

	seen := make(map[string]bool)
	var processors []string
	for _, raw := range strings.Split(csv, ",") {
		name := strings.TrimSpace(raw)
		if name == "ALL" {
			for _, p := range processorOrder {
				if !seen[p] {
					seen[p] = true
					processors = append(processors, p)
				}
			}
			continue
		}
		if _, ok := processorParameters[name]; !ok {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("unknown processor: %q", name)}
		}
		if !seen[name] {
			seen[name] = true
			processors = append(processors, name)
		}
	}
	return processors, nil
}

// ParseRunIDs splits a CSV of run identifiers, dropping empty entries.
func ParseRunIDs(csv string) []string {
	var ids []string
	for _, raw := range strings.Split(csv, ",") {
		if id := strings.TrimSpace(raw); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// validateTimeout enforces the invocation timeout ceiling before any AWS
// client is built.
func validateTimeout(seconds int) error {
	if seconds <= 0 {
		return &ConfigurationError{Reason: fmt.Sprintf("lambda timeout must be positive, got %d", seconds)}
	}
	if seconds > MaxLambdaTimeout {
		return &ConfigurationError{Reason: fmt.Sprintf("lambda timeout %d exceeds the %d second ceiling", seconds, MaxLambdaTimeout)}
	}
	return nil
}

// ClientTimeout converts a validated invocation timeout into the HTTP client
// timeout for the Lambda SDK client, clamped up to a workable floor.
func ClientTimeout(seconds int) time.Duration {
	if seconds < minClientTimeout {
		seconds = minClientTimeout
	}
	return time.Duration(seconds) * time.Second
}

// WorkflowOptions configures the workflow replay driver.
type WorkflowOptions struct {
	DryRun               bool
	SleepBetweenAPICalls float64
	LambdaTimeout        int
	LambdaFunctionName   string
}

// Validate checks the workflow options, failing fast on configuration errors.
func (o *WorkflowOptions) Validate() error {
	if err := validateTimeout(o.LambdaTimeout); err != nil {
		return err
	}
	if o.SleepBetweenAPICalls < 0 {
		return &ConfigurationError{Reason: "sleep between API calls cannot be negative"}
	}
	if o.LambdaFunctionName == "" {
		return &ConfigurationError{Reason: "no lambda function name provided"}
	}
	return nil
}

// Delay returns the throttle delay between dispatches.
func (o *WorkflowOptions) Delay() time.Duration {
	return time.Duration(o.SleepBetweenAPICalls * float64(time.Second))
}

// RunOptions configures the run replay driver.
type RunOptions struct {
	Limit            int
	Processors       []string
	DryRun           bool
	SleepBetweenRuns float64
	LambdaTimeout    int
	RunIDs           []string
}

// Validate checks the run options, failing fast on configuration errors.
func (o *RunOptions) Validate() error {
	if err := validateTimeout(o.LambdaTimeout); err != nil {
		return err
	}
	if o.SleepBetweenRuns < 0 {
		return &ConfigurationError{Reason: "sleep between runs cannot be negative"}
	}
	if len(o.Processors) == 0 {
		return &ConfigurationError{Reason: "no processors requested"}
	}
	if len(o.RunIDs) == 0 && o.Limit <= 0 {
		return &ConfigurationError{Reason: fmt.Sprintf("run limit must be positive, got %d", o.Limit)}
	}
	return nil
}

// Delay returns the throttle delay between runs.
func (o *RunOptions) Delay() time.Duration {
	return time.Duration(o.SleepBetweenRuns * float64(time.Second))
}

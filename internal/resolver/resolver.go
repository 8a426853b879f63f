// Package resolver maps processor names to deployed Lambda function names,
// looking up SSM Parameter Store with a per-pass cache.
package resolver

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/lambda"
	"github.com/aws/aws-sdk-go/service/ssm"

	"github.com/aws-samples/healthomics-event-replay/internal/config"
)

// runAnalyzerPattern matches the CDK-generated run analyzer function name.
const runAnalyzerPattern = "healthomicsrunanalyzer"

// ParamGetter is the slice of SSM the resolver needs (helpful for testing).
type ParamGetter interface {
	GetParameter(*ssm.GetParameterInput) (*ssm.GetParameterOutput, error)
}

// FunctionLister is the slice of the Lambda API used for auto-discovery
// (helpful for testing).
type FunctionLister interface {
	ListFunctionsPages(*lambda.ListFunctionsInput, func(*lambda.ListFunctionsOutput, bool) bool) error
}

// Resolver resolves processor targets, caching each lookup for the duration
// of a pass.
type Resolver struct {
	ssm   ParamGetter
	fns   FunctionLister
	cache map[string]string
}

// New returns a new Resolver.
func New(p ParamGetter, l FunctionLister) *Resolver {
	return &Resolver{ssm: p, fns: l, cache: make(map[string]string)}
}

// Resolve returns the function name for a processor. A missing parameter is a
// ConfigurationError, except for the run analyzer, where the deployed function
// is searched for by its naming pattern first.
func (r *Resolver) Resolve(processor string) (string, error) {

	if name, ok := r.cache[processor]; ok {
		return name, nil
	}

	param := config.ParameterName(processor)
	if param == "" {
		return "", &config.ConfigurationError{Reason: fmt.Sprintf("unknown processor: %q", processor)}
	}

	out, err := r.ssm.GetParameter(&ssm.GetParameterInput{Name: aws.String(param)})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == ssm.ErrCodeParameterNotFound {
			if processor == "run_analyzer" {
				name, derr := r.discoverRunAnalyzer()
				if derr != nil {
					return "", derr
				}
				r.cache[processor] = name
				return name, nil
			}
			return "", &config.ConfigurationError{Reason: fmt.Sprintf("parameter %s not found for processor %s", param, processor)}
		}
		return "", fmt.Errorf("failed to get parameter %s: %v", param, err)
	}

	name := aws.StringValue(out.Parameter.Value)
	if name == "" {
		return "", &config.ConfigurationError{Reason: fmt.Sprintf("parameter %s holds no function name", param)}
	}

	r.cache[processor] = name
	return name, nil
}

// discoverRunAnalyzer scans deployed functions for the run analyzer naming
// pattern. Exactly one match is required.
func (r *Resolver) discoverRunAnalyzer() (string, error) {

	var matches []string
	err := r.fns.ListFunctionsPages(&lambda.ListFunctionsInput{}, func(page *lambda.ListFunctionsOutput, last bool) bool {
		for _, fn := range page.Functions {
			name := aws.StringValue(fn.FunctionName)
			if strings.Contains(strings.ToLower(name), runAnalyzerPattern) {
				matches = append(matches, name)
			}
		}
		return true
	})
	if err != nil {
		return "", fmt.Errorf("failed to list functions: %v", err)
	}

	if len(matches) == 0 {
		return "", &config.ConfigurationError{Reason: "could not find a run analyzer function"}
	}
	if len(matches) > 1 {
		return "", &config.ConfigurationError{
			Reason: fmt.Sprintf("multiple run analyzer candidates: %s", strings.Join(matches, ", ")),
		}
	}

	fmt.Printf("Found run analyzer function: %s\n", matches[0])
	return matches[0], nil
}

package resolver

import (
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/lambda"
	"github.com/aws/aws-sdk-go/service/lambda/lambdaiface"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/aws/aws-sdk-go/service/ssm/ssmiface"

	"github.com/aws-samples/healthomics-event-replay/internal/config"
)

type mockSSM struct {
	ssmiface.SSMAPI
	params map[string]string
	calls  int
}

func (m *mockSSM) GetParameter(in *ssm.GetParameterInput) (*ssm.GetParameterOutput, error) {
	m.calls++
	if v, ok := m.params[aws.StringValue(in.Name)]; ok {
		return &ssm.GetParameterOutput{Parameter: &ssm.Parameter{Value: aws.String(v)}}, nil
	}
	return nil, awserr.New(ssm.ErrCodeParameterNotFound, "no such parameter", nil)
}

type mockLambdaLister struct {
	lambdaiface.LambdaAPI
	names []string
}

func (m *mockLambdaLister) ListFunctionsPages(in *lambda.ListFunctionsInput, fn func(*lambda.ListFunctionsOutput, bool) bool) error {
	var fns []*lambda.FunctionConfiguration
	for _, n := range m.names {
		fns = append(fns, &lambda.FunctionConfiguration{FunctionName: aws.String(n)})
	}
	fn(&lambda.ListFunctionsOutput{Functions: fns}, true)
	return nil
}

func TestResolveFromParameterStore(t *testing.T) {

	s := &mockSSM{params: map[string]string{
		"/healthomics/lambda/manifest-log-function": "manifest-fn",
	}}
	r := New(s, &mockLambdaLister{})

	name, err := r.Resolve("manifest")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "manifest-fn" {
		t.Errorf("expected manifest-fn, got %q", name)
	}
}

func TestResolveCachesLookups(t *testing.T) {

	s := &mockSSM{params: map[string]string{
		"/healthomics/lambda/manifest-log-function": "manifest-fn",
	}}
	r := New(s, &mockLambdaLister{})

	for i := 0; i < 3; i++ {
		if _, err := r.Resolve("manifest"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if s.calls != 1 {
		t.Errorf("expected a single parameter lookup, got %d", s.calls)
	}
}

func TestResolveMissingParameter(t *testing.T) {

	r := New(&mockSSM{}, &mockLambdaLister{})

	_, err := r.Resolve("manifest")
	var ce *config.ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestRunAnalyzerDiscovery(t *testing.T) {

	tt := []struct {
		name  string
		fns   []string
		want  string
		isErr bool
	}{
		{name: "single match", fns: []string{"MonitoringStack-HealthOmicsRunAnalyzer123", "other-fn"}, want: "MonitoringStack-HealthOmicsRunAnalyzer123"},
		{name: "no match", fns: []string{"other-fn"}, isErr: true},
		{name: "multiple matches", fns: []string{"HealthOmicsRunAnalyzerA", "HealthOmicsRunAnalyzerB"}, isErr: true},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			r := New(&mockSSM{}, &mockLambdaLister{names: tc.fns})
			name, err := r.Resolve("run_analyzer")
			if tc.isErr {
				var ce *config.ConfigurationError
				if !errors.As(err, &ce) {
					t.Fatalf("expected ConfigurationError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if name != tc.want {
				t.Errorf("expected %q, got %q", tc.want, name)
			}
		})
	}
}

func TestResolveUnknownProcessor(t *testing.T) {

	r := New(&mockSSM{}, &mockLambdaLister{})

	_, err := r.Resolve("bogus")
	var ce *config.ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

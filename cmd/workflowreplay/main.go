// Command workflowreplay replays "Workflow Status Change" events for every
// HealthOmics workflow and workflow version into the workflow records Lambda,
// rebuilding the data lake's workflow table out-of-band.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/omics"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/lambda"
	"github.com/aws/aws-sdk-go/service/sts"

	"github.com/aws-samples/healthomics-event-replay/internal/config"
	"github.com/aws-samples/healthomics-event-replay/internal/dispatcher"
	"github.com/aws-samples/healthomics-event-replay/internal/driver"
	"github.com/aws-samples/healthomics-event-replay/internal/enumerator"
	"github.com/aws-samples/healthomics-event-replay/internal/synthesizer"
)

const sourceTag = "workflowreplay"

func parseFlags() *config.WorkflowOptions {
	opts := &config.WorkflowOptions{}
	flag.BoolVar(&opts.DryRun, "dry-run", false, "print what would be done without invoking Lambda")
	flag.Float64Var(&opts.SleepBetweenAPICalls, "sleep-between-api-calls", 0.2, "seconds to wait between API calls to prevent throttling")
	flag.IntVar(&opts.LambdaTimeout, "lambda-timeout", config.DefaultLambdaTimeout, "Lambda invocation timeout in seconds (max 900)")
	flag.StringVar(&opts.LambdaFunctionName, "lambda-function-name", config.DefaultWorkflowFunction, "name of the workflow records function to invoke")
	flag.Parse()
	return opts
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func main() {

	opts := parseFlags()
	if err := opts.Validate(); err != nil {
		fatal(err)
	}

	ctx := context.Background()

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		fatal(fmt.Errorf("failed to load AWS config: %v", err))
	}

	sess := session.Must(session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	}))

	region := cfg.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}

	identity, err := sts.New(sess).GetCallerIdentity(&sts.GetCallerIdentityInput{})
	if err != nil {
		fatal(fmt.Errorf("failed to resolve caller identity: %v", err))
	}

	// no auto-retries: a duplicate invocation is harmless but wasteful
	lambdaClient := lambda.New(sess, &aws.Config{
		MaxRetries: aws.Int(0),
		HTTPClient: &http.Client{Timeout: config.ClientTimeout(opts.LambdaTimeout)},
	})

	enum := enumerator.NewWorkflowEnumerator(omics.NewFromConfig(cfg))
	syn := synthesizer.New(sourceTag, aws.StringValue(identity.Account), region)
	disp := dispatcher.New(lambdaClient, opts.DryRun)

	d := driver.NewWorkflowDriver(enum, syn, disp, opts.LambdaFunctionName, opts.Delay())

	rep, err := d.Replay(ctx)
	if rep != nil {
		fmt.Print(rep.Summary())
	}
	if err != nil {
		fatal(err)
	}
}

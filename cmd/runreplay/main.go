// Command runreplay replays "Omics Workflow Run Status Change" events for
// recent or explicitly listed HealthOmics runs into the selected downstream
// processors (run analyzer, manifest logger, run status change).
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
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/aws/aws-sdk-go/service/sts"

	"github.com/aws-samples/healthomics-event-replay/internal/config"
	"github.com/aws-samples/healthomics-event-replay/internal/dispatcher"
	"github.com/aws-samples/healthomics-event-replay/internal/driver"
	"github.com/aws-samples/healthomics-event-replay/internal/enumerator"
	"github.com/aws-samples/healthomics-event-replay/internal/resolver"
	"github.com/aws-samples/healthomics-event-replay/internal/synthesizer"
)

const sourceTag = "runreplay"

func parseFlags() (*config.RunOptions, error) {
	var processors, runIDs string
	opts := &config.RunOptions{}
	flag.IntVar(&opts.Limit, "limit", 50, "maximum number of runs to process")
	flag.StringVar(&processors, "processors", "ALL", "CSV of processors to replay into (run_analyzer, manifest, run_status_change_event, ALL)")
	flag.BoolVar(&opts.DryRun, "dry-run", false, "print what would be done without invoking Lambda")
	flag.Float64Var(&opts.SleepBetweenRuns, "sleep-between-runs", 1, "seconds to wait between runs to prevent throttling")
	flag.IntVar(&opts.LambdaTimeout, "lambda-timeout", config.DefaultLambdaTimeout, "Lambda invocation timeout in seconds (max 900)")
	flag.StringVar(&runIDs, "run-ids", "", "CSV of run ids to process; overrides -limit")
	flag.Parse()

	parsed, err := config.ParseProcessors(processors)
	if err != nil {
		return nil, err
	}
	opts.Processors = parsed
	opts.RunIDs = config.ParseRunIDs(runIDs)
	return opts, nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func main() {

	opts, err := parseFlags()
	if err != nil {
		fatal(err)
	}
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

	// resolve every requested processor up front; unresolvable ones are
	// dropped, an empty target set is fatal
	res := resolver.New(ssm.New(sess), lambda.New(sess))
	var targets []driver.Target
	for _, p := range opts.Processors {
		fn, err := res.Resolve(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Dropping processor %s: %v\n", p, err)
			continue
		}
		targets = append(targets, driver.Target{Processor: p, Function: fn})
	}
	if len(targets) == 0 {
		fatal(&config.ConfigurationError{Reason: "no deployed processor targets found"})
	}

	enum := enumerator.NewRunEnumerator(omics.NewFromConfig(cfg))

	var refs []enumerator.RunRef
	if len(opts.RunIDs) > 0 {
		refs = enum.ExplicitRuns(opts.RunIDs)
	} else {
		refs, err = enum.ListRuns(ctx, opts.Limit)
		if err != nil {
			fatal(err)
		}
	}
	fmt.Printf("Found %d workflow runs to process\n", len(refs))

	syn := synthesizer.New(sourceTag, aws.StringValue(identity.Account), region)
	disp := dispatcher.New(lambdaClient, opts.DryRun)

	d := driver.NewRunDriver(enum, syn, disp, targets, opts.Delay())

	rep := d.Replay(ctx, refs)
	fmt.Print(rep.Summary())
}

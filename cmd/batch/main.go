package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/influencer-lens/backend/internal/analysis"
	"github.com/influencer-lens/backend/internal/app"
	"github.com/influencer-lens/backend/internal/batch"
	"github.com/influencer-lens/backend/internal/content"
	"github.com/influencer-lens/backend/internal/llm"
	"github.com/influencer-lens/backend/pkg/config"
	appLogger "github.com/influencer-lens/backend/pkg/logger"
)

const defaultInput = "analysis/data/all_posts.csv"

const usage = `Usage: batch <command> [flags]

Commands:
  analyze     submit (or resume) semantic and sentiment batches, wait, reconcile
  status      query a batch once and print its counters
  cancel      request cancellation of a batch
  list        list recent batches from the provider
  retry       resubmit the errored and expired requests of an ended batch
  reconcile   retrieve and export the results of an ended batch
  sample      analyze a few items synchronously and project the batch cost

Run "batch <command> --help" for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	if err := run(ctx, cfg, cmd, args); err != nil {
		if errors.Is(err, context.Canceled) {
			appLogger.Warn("Interrupted; rerun the same command to resume from checkpoints")
			os.Exit(130)
		}
		appLogger.Error("Command failed", zap.String("command", cmd), zap.Error(err))
		appLogger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, cmd string, args []string) error {
	switch cmd {
	case "analyze", "status", "cancel", "list", "retry", "reconcile", "sample":
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}

	provider, err := app.NewProvider(cfg.LLM)
	if err != nil {
		return err
	}
	a := app.New(cfg, provider)
	defer a.Close()

	switch cmd {
	case "analyze":
		return analyze(ctx, a, args)
	case "status":
		return status(ctx, a, args)
	case "cancel":
		return cancel(ctx, a, args)
	case "list":
		return list(ctx, a, args)
	case "retry":
		return retry(ctx, a, args)
	case "sample":
		return sample(ctx, a, args)
	default:
		return reconcile(ctx, a, args)
	}
}

func analyze(ctx context.Context, a *app.App, args []string) error {
	fs := pflag.NewFlagSet("analyze", pflag.ContinueOnError)
	input := fs.String("input", defaultInput, "content CSV or JSON file")
	output := fs.String("output", a.Config.Batch.OutputDir, "output directory for checkpoints and exports")
	limit := fs.Int("limit", 0, "analyze at most N items (0 = all)")
	offset := fs.Int("offset", 0, "skip the first N items")
	semanticOnly := fs.Bool("semantic-only", false, "run the semantic analysis only")
	sentimentOnly := fs.Bool("sentiment-only", false, "run the sentiment analysis only")
	maxWait := fs.Duration("max-wait", a.Config.Batch.MaxWait(), "stop waiting after this long (jobs stay resumable)")
	autoRetry := fs.Bool("auto-retry", a.Config.Batch.AutoRetry, "retry errored and expired requests once")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *semanticOnly && *sentimentOnly {
		return errors.New("--semantic-only and --sentiment-only are mutually exclusive")
	}

	kinds := analysis.Kinds
	if *semanticOnly {
		kinds = []analysis.Kind{analysis.KindSemantic}
	}
	if *sentimentOnly {
		kinds = []analysis.Kind{analysis.KindSentiment}
	}

	items, err := loadItems(*input, *offset, *limit)
	if err != nil {
		return err
	}

	a.Config.Batch.OutputDir = *output
	a.Config.Batch.MaxWaitSec = int(maxWait.Seconds())
	a.Config.Batch.AutoRetry = *autoRetry

	report, err := a.Runner(kinds).Run(ctx, items)
	if err != nil {
		return err
	}

	for _, s := range report.Summaries {
		fmt.Printf("%-9s %s  results=%d succeeded=%d errored=%d canceled=%d expired=%d parse_errors=%d cost=$%.4f\n",
			s.Kind, s.BatchID, s.Results, s.Succeeded, s.Errored, s.Canceled, s.Expired, s.ParseErrors, s.EstimatedCost)
	}
	for _, j := range report.Pending {
		fmt.Printf("%-9s %s  still %s (%d/%d); rerun to resume\n", j.Kind, j.BatchID, j.Status, j.Completed(), j.TotalRequests)
	}
	fmt.Printf("total cost: $%.4f (%d input / %d output tokens)\n", report.Cost, report.Usage.InputTokens, report.Usage.OutputTokens)
	return nil
}

func status(ctx context.Context, a *app.App, args []string) error {
	fs := pflag.NewFlagSet("status", pflag.ContinueOnError)
	batchID := fs.String("batch-id", "", "provider batch id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := batchIDArg(*batchID, fs.Args())
	if err != nil {
		return err
	}

	job, err := a.Poller.PollID(ctx, id, batch.PollOptions{})
	if err != nil {
		return err
	}
	printJob(job)
	return nil
}

func cancel(ctx context.Context, a *app.App, args []string) error {
	fs := pflag.NewFlagSet("cancel", pflag.ContinueOnError)
	batchID := fs.String("batch-id", "", "provider batch id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := batchIDArg(*batchID, fs.Args())
	if err != nil {
		return err
	}

	b, err := a.Client.Cancel(ctx, id)
	if err != nil {
		return err
	}
	printJob(batch.JobFromBatch(b))
	return nil
}

func list(ctx context.Context, a *app.App, args []string) error {
	fs := pflag.NewFlagSet("list", pflag.ContinueOnError)
	limit := fs.Int("limit", 20, "number of batches to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	batches, err := a.Client.List(ctx, *limit)
	if err != nil {
		return err
	}
	for _, b := range batches {
		fmt.Printf("%s  %-10s  %d/%d  created %s\n",
			b.ID, b.Status, b.Counts.Completed(), b.Counts.Total(), b.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

type batchFlags struct {
	fs      *pflag.FlagSet
	batchID *string
	kind    *string
	input   *string
	dir     *string
}

func newBatchFlags(name string) *batchFlags {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	return &batchFlags{
		fs:      fs,
		batchID: fs.String("batch-id", "", "provider batch id"),
		kind:    fs.String("kind", string(analysis.KindSemantic), "semantic or sentiment"),
		input:   fs.String("input", defaultInput, "content CSV or JSON file the batch was built from"),
		dir:     fs.String("dir", "", "checkpoint directory of the batch (default <output>/<kind>)"),
	}
}

func (f *batchFlags) parse(args []string, outputDir string) (analysis.Kind, string, error) {
	if err := f.fs.Parse(args); err != nil {
		return "", "", err
	}
	if *f.batchID == "" {
		return "", "", errors.New("--batch-id is required")
	}
	kind, err := analysis.ParseKind(*f.kind)
	if err != nil {
		return "", "", err
	}
	dir := *f.dir
	if dir == "" {
		dir = batch.KindDir(outputDir, kind)
	}
	return kind, dir, nil
}

func retry(ctx context.Context, a *app.App, args []string) error {
	f := newBatchFlags("retry")
	kind, dir, err := f.parse(args, a.Config.Batch.OutputDir)
	if err != nil {
		return err
	}

	items, err := coveredItems(*f.input, *f.batchID, kind, dir)
	if err != nil {
		return err
	}

	job, err := a.Retrier.Retry(ctx, *f.batchID, items, kind, dir)
	if err != nil {
		return err
	}
	if job == nil {
		fmt.Println("nothing to retry")
		return nil
	}
	fmt.Printf("retry batch submitted into %s\n", batch.RetryDir(dir))
	printJob(job)
	return nil
}

func reconcile(ctx context.Context, a *app.App, args []string) error {
	f := newBatchFlags("reconcile")
	kind, dir, err := f.parse(args, a.Config.Batch.OutputDir)
	if err != nil {
		return err
	}

	items, err := coveredItems(*f.input, *f.batchID, kind, dir)
	if err != nil {
		return err
	}

	summary, err := a.Reconciler.Reconcile(ctx, *f.batchID, items, kind, dir)
	if err != nil {
		return err
	}
	fmt.Printf("%d results written to %s (%d errors, cost $%.4f)\n",
		summary.Results, summary.OutputDir, summary.ErrorResults(), summary.EstimatedCost)
	return nil
}

func sample(ctx context.Context, a *app.App, args []string) error {
	fs := pflag.NewFlagSet("sample", pflag.ContinueOnError)
	input := fs.String("input", defaultInput, "content CSV or JSON file")
	kindFlag := fs.String("kind", string(analysis.KindSemantic), "semantic or sentiment")
	n := fs.IntP("n", "n", 5, "number of items to analyze synchronously")
	if err := fs.Parse(args); err != nil {
		return err
	}
	kind, err := analysis.ParseKind(*kindFlag)
	if err != nil {
		return err
	}

	items, err := loadItems(*input, 0, 0)
	if err != nil {
		return err
	}

	report, err := a.Evaluator.RunSample(ctx, items, kind, *n)
	if err != nil {
		return err
	}
	fmt.Print(a.Evaluator.GenerateReport(report))
	return nil
}

// coveredItems narrows the input to the batch's checkpointed ids when the
// checkpoint in dir belongs to batchID.
func coveredItems(input, batchID string, kind analysis.Kind, dir string) ([]content.Item, error) {
	items, err := loadItems(input, 0, 0)
	if err != nil {
		return nil, err
	}

	cp, err := batch.CheckpointStore(dir, kind).Load()
	if err != nil {
		return nil, err
	}
	if cp == nil || cp.BatchID != batchID {
		appLogger.Warn("No matching checkpoint, using the whole input as the covered set",
			zap.String("batch_id", batchID),
			zap.String("dir", dir),
		)
		return items, nil
	}

	selected, missing := content.Select(items, cp.ContentIDs)
	if len(missing) > 0 {
		appLogger.Warn("Checkpointed ids missing from input", zap.Int("missing", len(missing)))
		for _, id := range missing {
			selected = append(selected, content.Item{ID: id, Platform: content.PlatformUnknown})
		}
	}
	return selected, nil
}

func loadItems(path string, offset, limit int) ([]content.Item, error) {
	items, err := content.LoadFile(path)
	if err != nil {
		return nil, err
	}
	items = content.Window(items, offset, limit)
	valid, _ := content.Validate(items)
	if len(valid) == 0 {
		return nil, batch.ErrNoItems
	}
	appLogger.Info("Content loaded", zap.String("path", path), zap.Int("items", len(valid)))
	return valid, nil
}

func batchIDArg(flag string, rest []string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if len(rest) == 1 {
		return rest[0], nil
	}
	return "", errors.New("a batch id is required")
}

func printJob(job *batch.Job) {
	fmt.Printf("batch:      %s\n", job.BatchID)
	fmt.Printf("status:     %s\n", job.Status)
	fmt.Printf("progress:   %d/%d (%.1f%%)\n", job.Completed(), job.TotalRequests, job.Progress())
	fmt.Printf("succeeded:  %d\n", job.Counts.Succeeded)
	fmt.Printf("errored:    %d\n", job.Counts.Errored)
	fmt.Printf("canceled:   %d\n", job.Counts.Canceled)
	fmt.Printf("expired:    %d\n", job.Counts.Expired)
	fmt.Printf("processing: %d\n", job.Counts.Processing)
	if job.Status == llm.StatusEnded && job.ResultsURL != "" {
		fmt.Printf("results:    %s\n", job.ResultsURL)
	}
}

package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/phelukas/yahoo-equity-crawler/internal/pipeline"
	"github.com/phelukas/yahoo-equity-crawler/internal/sink"
	"github.com/phelukas/yahoo-equity-crawler/pkg/logger"
)

func newCrawlCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [--region XX]...",
		Short: "Extract the equity listings of one or more regions.",
		RunE: func(cmd *cobra.Command, args []string) error {
			bindCrawlFlags(cmd, v)
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}

			d, err := buildDeps(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			outcomes := crawlRegions(cmd.Context(), d.runner, cfg.Crawl.Regions, cfg.Crawl.Parallel, cfg.Crawl.Timeout)
			printSummary(os.Stdout, outcomes)

			if anyFailed(outcomes) {
				return errRunsFailed
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringSlice("region", []string{"US"}, "region code, repeatable")
	f.String("out", "", "output path, {REGION} is replaced")
	f.Bool("full", false, "write every column")
	f.Bool("strict", false, "write symbol, name and price only")
	f.Int("page-size", 0, "screener page size (0 = seed size)")
	f.Int("max-pages", 0, "maximum screener pages per region")
	f.Bool("no-enrich", false, "skip the quote enrichment step")
	f.Bool("headless", true, "run chrome headless")
	f.StringSlice("sinks", nil, "sinks to write to (csv,nats,meili,mongo)")
	cmd.MarkFlagsMutuallyExclusive("full", "strict")

	return cmd
}

// bindCrawlFlags puts the crawl flags on top of env and config file values.
func bindCrawlFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.Flags()
	_ = v.BindPFlag("crawl.regions", f.Lookup("region"))
	_ = v.BindPFlag("screener.page_size", f.Lookup("page-size"))
	_ = v.BindPFlag("screener.max_pages", f.Lookup("max-pages"))
	_ = v.BindPFlag("browser.headless", f.Lookup("headless"))

	if out, _ := f.GetString("out"); out != "" {
		v.Set("output.path", out)
	}
	if full, _ := f.GetBool("full"); full {
		v.Set("output.mode", "full")
	}
	if strict, _ := f.GetBool("strict"); strict {
		v.Set("output.mode", "minimal")
	}
	if noEnrich, _ := f.GetBool("no-enrich"); noEnrich {
		v.Set("crawl.enrich", false)
	}
	if sinks, _ := f.GetStringSlice("sinks"); len(sinks) > 0 {
		v.Set("output.sinks", sinks)
	}
}

type regionOutcome struct {
	Region string
	Result *pipeline.Result
	Err    error
}

// Failed is true for a failed run or a CSV that could not be written.
func (o regionOutcome) Failed() bool {
	var runErr *pipeline.RunError
	return errors.As(o.Err, &runErr) || sink.FailedSink(o.Err, "csv")
}

func anyFailed(outcomes []regionOutcome) bool {
	for _, o := range outcomes {
		if o.Failed() {
			return true
		}
	}
	return false
}

// crawlRegions runs every region, at most parallel at a time. A failing
// region does not stop the others.
func crawlRegions(ctx context.Context, runner *pipeline.Runner, regions []string, parallel int, timeout time.Duration) []regionOutcome {
	log := logger.Log
	outcomes := make([]regionOutcome, len(regions))

	var g errgroup.Group
	g.SetLimit(max(parallel, 1))

	for i, region := range regions {
		i, region := i, region
		g.Go(func() error {
			runCtx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				runCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			res, _, err := runner.RunRegion(runCtx, region)
			outcomes[i] = regionOutcome{Region: region, Result: res, Err: err}

			var runErr *pipeline.RunError
			if errors.As(err, &runErr) {
				log.Error().Err(runErr.Err).Str("region", region).Str("kind", runErr.Kind).Str("artifact", runErr.ArtifactPath).Msg("region failed")
			} else if err != nil {
				log.Warn().Err(err).Str("region", region).Msg("region finished with sink errors")
			}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

package pipeline

import (
	"context"
	"errors"

	"github.com/phelukas/yahoo-equity-crawler/internal/sink"
	"github.com/phelukas/yahoo-equity-crawler/pkg/logger"
	"github.com/phelukas/yahoo-equity-crawler/pkg/models"
	"github.com/phelukas/yahoo-equity-crawler/pkg/status"
)

// Runner runs a pipeline and delivers what it produced. Sink and History
// are optional.
type Runner struct {
	Pipeline *Pipeline
	Sink     sink.Sink
	History  sink.RunHistory
}

// RunRegion runs one region. Records reach the sink only when the run
// completed. The returned error is the *RunError of a failed run or the
// joined sink errors of a completed one.
func (r *Runner) RunRegion(ctx context.Context, region string) (*Result, *models.RunReport, error) {
	res, runErr := r.Pipeline.Run(ctx, region)
	log := logger.Log.With().Str("run_id", res.RunID).Str("region", res.Region).Logger()

	var sinkErr error
	if res.State == status.RunComplete && r.Sink != nil {
		records := make([]models.QuoteRecord, len(res.Records))
		copy(records, res.Records)
		sinkErr = r.Sink.Write(ctx, res.Report(nil), records)
		if sinkErr != nil {
			res.warn(sinkErr.Error())
		}
	}

	report := res.Report(runErr)
	if r.History != nil {
		if err := r.History.Save(context.WithoutCancel(ctx), report); err != nil {
			log.Warn().Err(err).Msg("save run report failed")
		}
	}

	return res, report, errors.Join(runErr, sinkErr)
}

package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/phelukas/yahoo-equity-crawler/internal/pipeline"
	"github.com/phelukas/yahoo-equity-crawler/pkg/logger"
	"github.com/phelukas/yahoo-equity-crawler/pkg/models"
)

const minInterval = time.Minute

// RegionRunner runs and delivers one region.
type RegionRunner interface {
	RunRegion(ctx context.Context, region string) (*pipeline.Result, *models.RunReport, error)
}

type Scheduler struct {
	runner    RegionRunner
	regions   []string
	interval  time.Duration
	scheduler gocron.Scheduler
}

func New(runner RegionRunner, regions []string, interval time.Duration) (*Scheduler, error) {
	if len(regions) == 0 {
		return nil, errors.New("scheduler: no regions")
	}
	if interval < minInterval {
		interval = 6 * time.Hour
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		runner:    runner,
		regions:   regions,
		interval:  interval,
		scheduler: s,
	}, nil
}

// Start registers one job per region; the first run starts immediately.
// A region whose previous run is still going is skipped until it finishes.
func (s *Scheduler) Start(ctx context.Context) error {
	log := logger.Log

	for _, region := range s.regions {
		region := region
		_, err := s.scheduler.NewJob(
			gocron.DurationJob(s.interval),
			gocron.NewTask(func() {
				s.runRegion(ctx, region)
			}),
			gocron.WithName("crawl-"+region),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			return err
		}
	}

	s.scheduler.Start()
	log.Info().Strs("regions", s.regions).Dur("interval", s.interval).Msg("scheduler started")
	return nil
}

func (s *Scheduler) Stop() {
	if err := s.scheduler.Shutdown(); err != nil {
		logger.Log.Error().Err(err).Msg("scheduler shutdown error")
	}
}

func (s *Scheduler) runRegion(ctx context.Context, region string) {
	log := logger.Log

	if ctx.Err() != nil {
		return
	}

	log.Info().Str("region", region).Msg("starting scheduled crawl")
	_, report, err := s.runner.RunRegion(ctx, region)
	if err != nil {
		log.Error().Err(err).Str("region", region).Msg("scheduled crawl failed")
		return
	}
	log.Info().
		Str("region", region).
		Str("run_id", report.RunID).
		Str("source", string(report.Source)).
		Int("records", report.Records).
		Msg("scheduled crawl finished")
}

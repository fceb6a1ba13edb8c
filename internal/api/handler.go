package api

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/gofiber/fiber/v2"

	"github.com/phelukas/yahoo-equity-crawler/internal/browser"
	"github.com/phelukas/yahoo-equity-crawler/internal/pipeline"
	"github.com/phelukas/yahoo-equity-crawler/internal/sink"
	"github.com/phelukas/yahoo-equity-crawler/pkg/logger"
	"github.com/phelukas/yahoo-equity-crawler/pkg/models"
	"github.com/phelukas/yahoo-equity-crawler/pkg/yahoo"
)

type RegionRunner interface {
	RunRegion(ctx context.Context, region string) (*pipeline.Result, *models.RunReport, error)
}

type TriggerResponse struct {
	Region string `json:"region"`
	Status string `json:"status"`
}

// Handler serves run history and triggers runs in the background. Runs
// use the base context, not the request's.
type Handler struct {
	base    context.Context
	runner  RegionRunner
	history sink.RunHistory

	mu      sync.Mutex
	running map[string]bool
	wg      sync.WaitGroup
}

func NewHandler(base context.Context, runner RegionRunner, history sink.RunHistory) *Handler {
	return &Handler{
		base:    base,
		runner:  runner,
		history: history,
		running: make(map[string]bool),
	}
}

func (h *Handler) SetupRoutes(app *fiber.App) {
	app.Get("/health", h.handleHealth)
	app.Get("/runs/:region", h.handleLastRun)
	app.Post("/runs/:region", h.handleTrigger)
}

func (h *Handler) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"browser": browser.IsInitialized(),
		"running": h.Running(),
	})
}

func (h *Handler) handleLastRun(c *fiber.Ctx) error {
	region, ok := regionParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid region"})
	}

	report, err := h.history.LastByRegion(c.Context(), region)
	if errors.Is(err, sink.ErrRunNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no runs for region", "region": region})
	}
	if err != nil {
		return err
	}
	return c.JSON(report)
}

func (h *Handler) handleTrigger(c *fiber.Ctx) error {
	log := logger.Log

	region, ok := regionParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid region"})
	}

	if !h.start(region) {
		return c.Status(fiber.StatusConflict).JSON(TriggerResponse{Region: region, Status: "running"})
	}

	go func() {
		defer h.finish(region)
		_, report, err := h.runner.RunRegion(h.base, region)
		if err != nil {
			log.Error().Err(err).Str("region", region).Msg("triggered run failed")
			return
		}
		log.Info().Str("region", region).Str("run_id", report.RunID).Int("records", report.Records).Msg("triggered run finished")
	}()

	log.Info().Str("region", region).Msg("run triggered")
	return c.Status(fiber.StatusAccepted).JSON(TriggerResponse{Region: region, Status: "started"})
}

func (h *Handler) start(region string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running[region] {
		return false
	}
	h.running[region] = true
	h.wg.Add(1)
	return true
}

func (h *Handler) finish(region string) {
	h.mu.Lock()
	delete(h.running, region)
	h.mu.Unlock()
	h.wg.Done()
}

// Running lists regions with a triggered run in progress.
func (h *Handler) Running() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.running))
	for r := range h.running {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Wait blocks until every triggered run has returned.
func (h *Handler) Wait() {
	h.wg.Wait()
}

func regionParam(c *fiber.Ctx) (string, bool) {
	region := yahoo.NormalizeRegion(c.Params("region"))
	if len(region) != 2 {
		return "", false
	}
	for _, r := range region {
		if r < 'A' || r > 'Z' {
			return "", false
		}
	}
	return region, true
}

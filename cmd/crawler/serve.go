package main

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/phelukas/yahoo-equity-crawler/internal/api"
	"github.com/phelukas/yahoo-equity-crawler/internal/scheduler"
	"github.com/phelukas/yahoo-equity-crawler/pkg/logger"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled crawls and the control API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = v.BindPFlag("api.port", cmd.Flags().Lookup("port"))
			_ = v.BindPFlag("schedule.interval", cmd.Flags().Lookup("interval"))
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			log := logger.Log
			ctx := cmd.Context()

			d, err := buildDeps(ctx, cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			if cfg.Schedule.Enabled {
				s, err := scheduler.New(d.runner, cfg.Crawl.Regions, cfg.Schedule.Interval)
				if err != nil {
					return err
				}
				if err := s.Start(ctx); err != nil {
					return err
				}
				defer s.Stop()
			}

			h := api.NewHandler(ctx, d.runner, d.history)
			app := fiber.New(fiber.Config{
				DisableStartupMessage: true,
				ErrorHandler: func(c *fiber.Ctx, err error) error {
					log.Error().Err(err).Str("path", c.Path()).Msg("request error")
					return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
				},
			})
			h.SetupRoutes(app)

			errCh := make(chan error, 1)
			go func() {
				addr := ":" + cfg.API.Port
				log.Info().Str("addr", addr).Msg("HTTP API server starting")
				errCh <- app.Listen(addr)
			}()

			select {
			case <-ctx.Done():
				log.Info().Msg("shutting down")
			case err := <-errCh:
				if err != nil {
					return err
				}
			}

			if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
				log.Warn().Err(err).Msg("api shutdown")
			}
			h.Wait()
			return nil
		},
	}

	f := cmd.Flags()
	f.String("port", "", "API port")
	f.Duration("interval", 0, "schedule interval")

	return cmd
}

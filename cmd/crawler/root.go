package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/phelukas/yahoo-equity-crawler/internal/config"
	"github.com/phelukas/yahoo-equity-crawler/pkg/logger"
)

// errRunsFailed makes the process exit 1 after the summary was printed.
var errRunsFailed = errors.New("one or more regions failed")

func newRootCmd(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:           "crawler",
		Short:         "crawler extracts equity listings per region from Yahoo Finance.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	_ = v.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(newCrawlCmd(v), newServeCmd(v))
	return root
}

// loadConfig decodes the config after flags were parsed and sets up logging.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, err
	}
	logger.Init(logger.IsDev())
	logger.SetLevel(cfg.Log.Level)
	return cfg, nil
}

func execute(ctx context.Context) int {
	v := config.NewViper()
	if err := newRootCmd(v).ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errRunsFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		return 1
	}
	return 0
}

// Command statepath inspects a saved screener page and shows where the
// quote list lives in its embedded state.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/phelukas/yahoo-equity-crawler/internal/artifacts"
	"github.com/phelukas/yahoo-equity-crawler/pkg/extractor"
	"github.com/phelukas/yahoo-equity-crawler/pkg/logger"
	"github.com/phelukas/yahoo-equity-crawler/pkg/statelocator"
)

const keyLimit = 40

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		file     string
		dir      string
		maxDepth int
	)

	cmd := &cobra.Command{
		Use:           "statepath [--file page.html]",
		Short:         "Print the state containers and quote paths of a saved page.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.Init(logger.IsDev())

			path := file
			if path == "" {
				latest, err := artifacts.New(dir).LatestHTML()
				if err != nil {
					return err
				}
				path = latest
			}

			html, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			return inspect(cmd.OutOrStdout(), path, string(html), maxDepth)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "page to inspect (default: newest last_page_*.html)")
	cmd.Flags().StringVar(&dir, "dir", "artifacts", "artifact directory")
	cmd.Flags().IntVar(&maxDepth, "max-depth", statelocator.DefaultMaxDepth, "search depth for quote paths")
	return cmd
}

func inspect(w io.Writer, path, html string, maxDepth int) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	fmt.Fprintf(w, "file: %s (%d bytes)\n\n", path, len(html))

	registry, err := extractor.NewOrderedRegistry(nil)
	if err != nil {
		return err
	}

	for _, s := range registry.Strategies() {
		cands := s.Extract(doc, html)
		if len(cands) == 0 {
			continue
		}
		for i, c := range cands {
			fmt.Fprintf(w, "== %s #%d\n", c.Container, i)
			fmt.Fprintf(w, "top-level keys: %s\n", strings.Join(statelocator.Keys(c.State, keyLimit), ", "))

			if stores := statelocator.GetPath(c.State, "context", "dispatcher", "stores"); stores != nil {
				fmt.Fprintf(w, "dispatcher stores: %s\n", strings.Join(statelocator.Keys(stores, keyLimit), ", "))
			}

			paths := statelocator.FindPaths(c.State, "quotes", maxDepth)
			if len(paths) == 0 {
				fmt.Fprintln(w, "quotes paths: none")
			}
			for _, p := range paths {
				fmt.Fprintf(w, "quotes path: %s\n", p)
			}
			fmt.Fprintln(w)
		}
	}

	res, err := extractor.NewFallback(registry, nil).Extract(html)
	if err != nil {
		fmt.Fprintf(w, "extraction: %v\n\n", err)
	} else {
		first := ""
		if len(res.Quotes) > 0 {
			first = fmt.Sprint(res.Quotes[0]["symbol"])
		}
		fmt.Fprintf(w, "extraction: %d quotes from %s at %s (first: %s)\n\n", len(res.Quotes), res.Container, res.Path, first)
	}

	printScripts(w, extractor.CollectScripts(doc))
	return nil
}

func printScripts(w io.Writer, scripts []extractor.ScriptInfo) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	t.SetTitle("SvelteKit scripts")
	t.AppendHeader(table.Row{"#", "Type", "Data URL", "Length"})

	n := 0
	for _, s := range scripts {
		if !s.SvelteKit {
			continue
		}
		t.AppendRow(table.Row{n, s.Type, s.DataURL, s.Length})
		n++
	}
	if n == 0 {
		fmt.Fprintln(w, "no SvelteKit scripts")
		return
	}
	t.Render()
}

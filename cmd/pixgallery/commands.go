package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Sternrassler/pixabay-gallery/internal/tui"
	"github.com/Sternrassler/pixabay-gallery/pkg/pagination"
	"github.com/Sternrassler/pixabay-gallery/pkg/pixabay"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "pixgallery",
		Short: "Browse Pixabay image search results in the terminal",
		Long: `pixgallery searches Pixabay and shows the results as an infinitely
scrolling gallery. Scroll to the bottom or press m to load the next page.

Configuration is read from config.yaml, .env and PIXGALLERY_* variables.
The API key may also be given as PIXABAY_API_KEY.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, configPath, true, cmd.ErrOrStderr(), pagination.Hooks[pixabay.Hit]{})
			if err != nil {
				return err
			}
			defer a.Close()

			model := tui.New(ctx, a.controller, tui.Options{AutoloadThreshold: a.cfg.UI.AutoloadThreshold})
			p := tea.NewProgram(model,
				tea.WithAltScreen(),
				tea.WithMouseCellMotion(),
				tea.WithContext(ctx),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
			)
			if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("gallery: %w", err)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default ./configs/config.yaml or ./config.yaml)")
	root.AddCommand(newSearchCommand(&configPath))
	return root
}

func newSearchCommand(configPath *string) *cobra.Command {
	var (
		pages  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Print search results without the interactive gallery",
		Example: `  pixgallery search yellow flowers
  pixgallery search --pages 3 --json mountains`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			if pages < 1 {
				return fmt.Errorf("--pages must be >= 1 (got %d)", pages)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
			var renderErr error
			hooks := pagination.Hooks[pixabay.Hit]{
				OnItemsReady: func(hits []pixabay.Hit, _ pagination.RenderMode) {
					if renderErr == nil {
						renderErr = printHits(out, hits, asJSON)
					}
				},
				OnEvent: func(ev pagination.Event) {
					fmt.Fprintln(errOut, ev.Message)
				},
			}

			a, err := newApp(ctx, *configPath, false, errOut, hooks)
			if err != nil {
				return err
			}
			defer a.Close()

			return runSearch(ctx, a.controller, strings.Join(args, " "), pages, func() error { return renderErr })
		},
	}

	cmd.Flags().IntVarP(&pages, "pages", "p", 1, "number of pages to fetch")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print one JSON object per image")
	return cmd
}

// runSearch starts a session and loads up to pages pages, stopping early
// when the results are exhausted.
func runSearch(ctx context.Context, ctrl *pagination.Controller[pixabay.Hit], query string, pages int, renderErr func() error) error {
	res := ctrl.StartSearch(ctx, query)
	for loaded := 1; ; loaded++ {
		if res.Err != nil {
			return res.Err
		}
		if err := renderErr(); err != nil {
			return err
		}
		if loaded >= pages || !res.Session.HasMore {
			return nil
		}
		res = ctrl.LoadNextPage(ctx)
	}
}

func printHits(w io.Writer, hits []pixabay.Hit, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		for _, h := range hits {
			if err := enc.Encode(h); err != nil {
				return err
			}
		}
		return nil
	}

	for _, h := range hits {
		if _, err := fmt.Fprintf(w, "%d\t%s\t♥%d\t%s\n", h.ID, h.Tags, h.Likes, h.LargeImageURL); err != nil {
			return err
		}
	}
	return nil
}

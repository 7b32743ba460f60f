package tui

import (
	"context"
	"time"

	"github.com/Sternrassler/pixabay-gallery/pkg/pagination"
	"github.com/Sternrassler/pixabay-gallery/pkg/pixabay"
	tea "github.com/charmbracelet/bubbletea"
)

// pageMsg carries a controller outcome back into Update. seq is the search
// generation the fetch was issued under.
type pageMsg struct {
	outcome pagination.Outcome[pixabay.Hit]
	seq     int
}

// clearToastMsg hides the toast with the given sequence number
type clearToastMsg struct {
	seq int
}

const toastDuration = 4 * time.Second

func startSearchCmd(ctx context.Context, p Pager, query string, seq int) tea.Cmd {
	return func() tea.Msg {
		return pageMsg{outcome: p.StartSearch(ctx, query), seq: seq}
	}
}

func loadNextPageCmd(ctx context.Context, p Pager, seq int) tea.Cmd {
	return func() tea.Msg {
		return pageMsg{outcome: p.LoadNextPage(ctx), seq: seq}
	}
}

func clearToastAfter(seq int) tea.Cmd {
	return tea.Tick(toastDuration, func(time.Time) tea.Msg {
		return clearToastMsg{seq: seq}
	})
}

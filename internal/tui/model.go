// Package tui is the interactive terminal gallery. It renders search results
// as cards in a scrollable viewport and drives a pagination controller.
package tui

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/Sternrassler/pixabay-gallery/pkg/logging"
	"github.com/Sternrassler/pixabay-gallery/pkg/pagination"
	"github.com/Sternrassler/pixabay-gallery/pkg/pixabay"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
)

// Pager is the part of *pagination.Controller[pixabay.Hit] the gallery uses.
type Pager interface {
	StartSearch(ctx context.Context, query string) pagination.Outcome[pixabay.Hit]
	LoadNextPage(ctx context.Context) pagination.Outcome[pixabay.Hit]
	ShouldAutoLoad(viewportNearBottom bool) bool
	Snapshot() pagination.SearchSession
}

// DefaultAutoloadThreshold is the distance in lines from the bottom of the
// gallery at which the next page is requested.
const DefaultAutoloadThreshold = 3

const (
	defaultWidth  = 80
	defaultHeight = 24
	headerHeight  = 4 // title and bordered input
)

type focusArea int

const (
	focusInput focusArea = iota
	focusGallery
)

type toastLevel int

const (
	toastInfo toastLevel = iota
	toastWarning
	toastError
)

type toast struct {
	level toastLevel
	text  string
	seq   int
}

// Options configures the gallery.
type Options struct {
	AutoloadThreshold int
}

// Model is the bubbletea model for the gallery. All session state lives in
// the Pager; Model only mirrors what it needs for rendering.
type Model struct {
	ctx    context.Context
	pager  Pager
	keys   keyMap
	styles *Styles
	logger zerolog.Logger

	input   textinput.Model
	gallery viewport.Model
	spinner spinner.Model
	help    help.Model

	hits      []pixabay.Hit
	selected  int
	detail    bool
	session   pagination.SearchSession
	loading   bool
	searchSeq int
	toast     toast
	toastSeq  int
	focus     focusArea
	threshold int

	width  int
	height int
}

// New creates the gallery model. ctx bounds every fetch it issues.
func New(ctx context.Context, pager Pager, opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = "Search images..."
	ti.CharLimit = pixabay.MaxQueryLength
	ti.Prompt = "🔍 "
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	threshold := opts.AutoloadThreshold
	if threshold < 0 {
		threshold = 0
	}

	m := Model{
		ctx:       ctx,
		pager:     pager,
		keys:      defaultKeyMap(),
		styles:    NewStyles(),
		logger:    logging.NewLogger("tui"),
		input:     ti,
		gallery:   viewport.New(defaultWidth, 1),
		spinner:   sp,
		help:      help.New(),
		session:   pager.Snapshot(),
		focus:     focusInput,
		threshold: threshold,
	}
	m.spinner.Style = m.styles.Spinner
	m.resize(defaultWidth, defaultHeight)
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		if m.detail {
			return m, nil
		}
		var cmd tea.Cmd
		m.gallery, cmd = m.gallery.Update(msg)
		m.followScroll()
		return m, tea.Batch(cmd, m.autoLoad())

	case pageMsg:
		if msg.seq != m.searchSeq {
			// Issued before the latest submit; the gallery no longer shows
			// that search.
			m.logger.Debug().
				Str(logging.FieldQuery, msg.outcome.Session.Query).
				Msg("Dropping outcome of a superseded search")
			return m, nil
		}
		return m, m.applyOutcome(msg.outcome)

	case clearToastMsg:
		if msg.seq == m.toast.seq {
			m.toast = toast{}
		}
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.focus == focusInput {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ForceQuit) {
		return m, tea.Quit
	}

	if m.focus == focusInput {
		switch {
		case key.Matches(msg, m.keys.Search):
			return m.submit()
		case key.Matches(msg, m.keys.Blur):
			m.focusGallery()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Close):
		m.detail = false
		return m, nil
	case key.Matches(msg, m.keys.Open):
		m.detail = len(m.hits) > 0
		return m, nil
	case key.Matches(msg, m.keys.Focus):
		m.detail = false
		m.focus = focusInput
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.resize(m.width, m.height)
		return m, nil
	case key.Matches(msg, m.keys.LoadMore):
		if !m.canLoadMore() {
			return m, nil
		}
		return m, m.loadMore()
	case key.Matches(msg, m.keys.Up):
		m.selectCard(m.selected - 1)
	case key.Matches(msg, m.keys.Down):
		m.selectCard(m.selected + 1)
	case key.Matches(msg, m.keys.PageUp):
		m.scrollBy(-m.gallery.Height)
	case key.Matches(msg, m.keys.PageDown):
		m.scrollBy(m.gallery.Height)
	case key.Matches(msg, m.keys.Top):
		m.selectCard(0)
	case key.Matches(msg, m.keys.Bottom):
		m.selectCard(len(m.hits) - 1)
	default:
		return m, nil
	}
	return m, m.autoLoad()
}

// submit starts a new search with the input's text. A blank query is
// rejected by the controller without a fetch, so it runs inline.
func (m Model) submit() (tea.Model, tea.Cmd) {
	query := m.input.Value()
	if strings.TrimSpace(query) == "" {
		return m, m.applyOutcome(m.pager.StartSearch(m.ctx, query))
	}

	m.searchSeq++
	m.hits = nil
	m.selected = 0
	m.detail = false
	m.refreshGallery()
	m.gallery.GotoTop()
	m.toast = toast{}
	m.loading = true
	m.focusGallery()

	m.logger.Debug().Str(logging.FieldQuery, strings.TrimSpace(query)).Msg("Search submitted")
	return m, tea.Batch(startSearchCmd(m.ctx, m.pager, query, m.searchSeq), m.spinner.Tick)
}

func (m *Model) loadMore() tea.Cmd {
	m.loading = true
	return tea.Batch(loadNextPageCmd(m.ctx, m.pager, m.searchSeq), m.spinner.Tick)
}

// autoLoad requests the next page when the gallery is scrolled near its end.
func (m *Model) autoLoad() tea.Cmd {
	if m.loading || !m.pager.ShouldAutoLoad(m.nearBottom()) {
		return nil
	}
	m.logger.Debug().Int(logging.FieldPage, m.session.CurrentPage+1).Msg("Auto-loading next page")
	return m.loadMore()
}

func (m Model) canLoadMore() bool {
	return m.session.HasMore && !m.loading && len(m.hits) > 0
}

func (m Model) nearBottom() bool {
	return m.gallery.YOffset+m.gallery.Height >= m.gallery.TotalLineCount()-m.threshold
}

// applyOutcome renders items and events from a controller call.
func (m *Model) applyOutcome(out pagination.Outcome[pixabay.Hit]) tea.Cmd {
	m.loading = m.pager.Snapshot().IsLoading
	if out.Stale || out.Skipped {
		return nil
	}
	m.session = out.Session

	if out.Err != nil && !out.HasEvent(pagination.EventEmptyQuery) {
		m.logger.Warn().Err(out.Err).
			Str(logging.FieldQuery, out.Session.Query).
			Msg("Page fetch failed")
	}

	if len(out.Items) > 0 {
		if out.Mode == pagination.RenderReplace {
			m.hits = slices.Clone(out.Items)
			m.selected = 0
			m.detail = false
			m.refreshGallery()
			m.gallery.GotoTop()
		} else {
			m.hits = append(m.hits, out.Items...)
			m.refreshGallery()
			if !m.detail {
				m.gallery.SetYOffset(m.gallery.YOffset + 2*cardHeight)
				m.followScroll()
			}
		}
	}

	if len(out.Events) == 0 {
		return nil
	}
	ev := out.Events[len(out.Events)-1]
	m.toastSeq++
	m.toast = toast{level: levelFor(ev.Kind), text: ev.Message, seq: m.toastSeq}
	return clearToastAfter(m.toastSeq)
}

func levelFor(kind pagination.EventKind) toastLevel {
	switch kind {
	case pagination.EventEmptyQuery:
		return toastWarning
	case pagination.EventEndOfResults:
		return toastInfo
	default:
		return toastError
	}
}

func (m *Model) focusGallery() {
	m.focus = focusGallery
	m.input.Blur()
}

func (m *Model) scrollBy(n int) {
	m.gallery.SetYOffset(m.gallery.YOffset + n)
	m.followScroll()
}

// selectCard moves the selection to card i and scrolls it into view.
func (m *Model) selectCard(i int) {
	if len(m.hits) == 0 {
		return
	}
	i = max(0, min(i, len(m.hits)-1))
	if i != m.selected {
		m.selected = i
		m.refreshGallery()
	}

	top := i * cardHeight
	switch {
	case top < m.gallery.YOffset:
		m.gallery.SetYOffset(top)
	case top+cardHeight > m.gallery.YOffset+m.gallery.Height:
		m.gallery.SetYOffset(top + cardHeight - m.gallery.Height)
	}
}

// visibleCards returns the first and last card wholly inside the viewport.
// When the viewport is shorter than a card, both are the card at the top.
func (m Model) visibleCards() (first, last int) {
	first = (m.gallery.YOffset + cardHeight - 1) / cardHeight
	last = (m.gallery.YOffset+m.gallery.Height)/cardHeight - 1
	if last < first {
		first = m.gallery.YOffset / cardHeight
		last = first
	}
	n := len(m.hits) - 1
	return min(first, n), min(last, n)
}

// followScroll keeps the selection on screen after the viewport moved.
func (m *Model) followScroll() {
	if len(m.hits) == 0 {
		return
	}
	first, last := m.visibleCards()
	sel := max(first, min(m.selected, last))
	if sel != m.selected {
		m.selected = sel
		m.refreshGallery()
	}
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.help.Width = width
	m.input.Width = max(10, width-8)

	footer := 1 + lipgloss.Height(m.help.View(m.keys))
	m.gallery.Width = width
	m.gallery.Height = max(1, height-headerHeight-footer)
	m.refreshGallery()
}

func (m *Model) refreshGallery() {
	if len(m.hits) == 0 {
		m.gallery.SetContent(m.styles.EmptyScreen.Render("Type a query and press enter to search Pixabay."))
		return
	}
	m.gallery.SetContent(renderGallery(m.styles, m.hits, m.gallery.Width, m.selected))
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Pixabay Gallery"))
	b.WriteString("\n")
	b.WriteString(m.styles.Input.Width(max(10, m.width-2)).Render(m.input.View()))
	b.WriteString("\n")
	if m.detail && len(m.hits) > 0 {
		b.WriteString(renderDetail(m.styles, m.hits[m.selected], m.selected, len(m.hits), m.width, m.gallery.Height))
	} else {
		b.WriteString(m.gallery.View())
	}
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render(m.help.View(m.keys)))
	return b.String()
}

func (m Model) statusLine() string {
	var parts []string
	if m.loading {
		parts = append(parts, m.spinner.View()+" Loading images...")
	}
	if m.toast.text != "" {
		parts = append(parts, m.toastStyle().Render(m.toast.text))
	}
	if m.session.Active() && len(m.hits) > 0 {
		parts = append(parts, m.styles.Status.Render(fmt.Sprintf("Showing %d of %d · page %d",
			len(m.hits), m.session.TotalHits, m.session.CurrentPage)))
	}
	if m.canLoadMore() {
		parts = append(parts, m.styles.LoadMore.Render("[m] Load more"))
	}
	return strings.Join(parts, "  ")
}

func (m Model) toastStyle() lipgloss.Style {
	switch m.toast.level {
	case toastError:
		return m.styles.ToastError
	case toastWarning:
		return m.styles.ToastWarn
	default:
		return m.styles.ToastInfo
	}
}

package tui

import (
	"fmt"
	"strings"

	"github.com/Sternrassler/pixabay-gallery/pkg/pixabay"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// cardHeight is the number of lines one rendered card occupies, borders
// included. Content lines are truncated to the card's cell width so cards
// never wrap.
const cardHeight = 5

const minCardWidth = 20

const ellipsis = "…"

func cardTitle(h pixabay.Hit) string {
	if title := strings.Join(h.TagList(), ", "); title != "" {
		return title
	}
	return fmt.Sprintf("Image %d", h.ID)
}

func imageURL(h pixabay.Hit) string {
	if h.LargeImageURL != "" {
		return h.LargeImageURL
	}
	return h.WebformatURL
}

// renderCard draws one image as a bordered block of exactly cardHeight lines.
func renderCard(s *Styles, h pixabay.Hit, width int, selected bool) string {
	if width < minCardWidth {
		width = minCardWidth
	}
	inner := width - 4 // border and padding

	stats := fmt.Sprintf("Likes %d · Views %d · Comments %d · Downloads %d",
		h.Likes, h.Views, h.Comments, h.Downloads)

	body := strings.Join([]string{
		s.CardTitle.Render(truncate(cardTitle(h), inner)),
		s.Stat.Render(truncate(stats, inner)),
		s.URL.Render(truncate(imageURL(h), inner)),
	}, "\n")

	card := s.Card
	if selected {
		card = s.CardSelected
	}
	return card.Width(width - 2).Render(body)
}

// renderGallery stacks cards for every hit. Card i starts at line
// i*cardHeight.
func renderGallery(s *Styles, hits []pixabay.Hit, width, selected int) string {
	cards := make([]string, len(hits))
	for i, h := range hits {
		cards[i] = renderCard(s, h, width, i == selected)
	}
	return strings.Join(cards, "\n")
}

// renderDetail shows everything known about one image, with the full-size
// URL untruncated so it can be copied. The result is exactly height lines.
func renderDetail(s *Styles, h pixabay.Hit, index, total, width, height int) string {
	if width < minCardWidth {
		width = minCardWidth
	}
	inner := width - 4

	field := func(label, value string) string {
		return s.DetailLabel.Render(fmt.Sprintf("%-10s", label)) + value
	}

	meta := fmt.Sprintf("Image %d of %d", index+1, total)
	if h.User != "" {
		meta += " · by " + h.User
	}

	lines := []string{
		s.CardTitle.Render(truncate(cardTitle(h), inner)),
		s.Dim.Render(truncate(meta, inner)),
		"",
		field("Likes", fmt.Sprint(h.Likes)),
		field("Views", fmt.Sprint(h.Views)),
		field("Comments", fmt.Sprint(h.Comments)),
		field("Downloads", fmt.Sprint(h.Downloads)),
		"",
		field("Full size", s.URL.Render(imageURL(h))),
	}
	if h.PreviewURL != "" {
		lines = append(lines, field("Preview", s.URL.Render(h.PreviewURL)))
	}
	if h.PageURL != "" {
		lines = append(lines, field("Page", s.URL.Render(h.PageURL)))
	}

	box := s.Detail.Width(width - 2).Render(strings.Join(lines, "\n"))
	return lipgloss.NewStyle().Height(height).MaxHeight(height).Render(box)
}

// truncate cuts s to at most n terminal cells.
func truncate(s string, n int) string {
	return ansi.Truncate(s, n, ellipsis)
}

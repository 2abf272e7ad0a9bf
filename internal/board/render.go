// Package board renders a live view as a terminal answer board.
package board

import (
	"fmt"
	"strings"

	"live-class-backend/internal/live"

	"github.com/charmbracelet/lipgloss"
)

const (
	primaryColor = "#7C3AED"
	okColor      = "#10B981"
	ngColor      = "#EF4444"
	dimColor     = "#6B7280"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(primaryColor)).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(dimColor))

	questionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(primaryColor)).
			Padding(0, 2).
			Bold(true)

	statStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color(dimColor)).
			Padding(0, 2).
			Align(lipgloss.Center)

	okCard = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(okColor)).
		Padding(0, 1).
		Width(14)

	ngCard = okCard.BorderForeground(lipgloss.Color(ngColor))
)

const cardsPerRow = 5

type Options struct {
	Code    string
	ShowIDs bool
}

// Render draws the header, the current question, the counters and one card
// per submission.
func Render(v live.View, opts Options) string {
	var b strings.Builder

	header := titleStyle.Render("Answer board")
	if opts.Code != "" {
		header += "  " + dimStyle.Render("code ") + titleStyle.Render(opts.Code)
	}
	if v.Ended {
		header += "  " + lipgloss.NewStyle().Foreground(lipgloss.Color(ngColor)).Render("(ended)")
	}
	b.WriteString(header + "\n\n")

	text := "Waiting for a question"
	if v.Question != nil {
		text = v.Question.Text
	}
	b.WriteString(questionStyle.Render(text) + "\n")

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		statStyle.Render(fmt.Sprintf("%d\nanswered", v.Stats.Total)),
		statStyle.Render(fmt.Sprintf("%d\ncorrect", v.Stats.Correct)),
		statStyle.Render(fmt.Sprintf("%d\nwrong", v.Stats.Wrong)),
	) + "\n")

	if len(v.Submissions) == 0 {
		b.WriteString(dimStyle.Render("No answers yet") + "\n")
		return b.String()
	}

	var row []string
	for i, s := range v.Submissions {
		row = append(row, card(s, opts.ShowIDs))
		if len(row) == cardsPerRow || i == len(v.Submissions)-1 {
			b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, row...) + "\n")
			row = row[:0]
		}
	}
	return b.String()
}

func card(s live.Row, showIDs bool) string {
	label := "student"
	if showIDs {
		label = "ID " + s.StudentID
	}
	style, mark := ngCard, "x"
	if s.Correct {
		style, mark = okCard, "o"
	}
	return style.Render(fmt.Sprintf("%s  %s\n%s", label, mark, s.Answer))
}

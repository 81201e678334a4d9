// Package termui renders parsed assistant replies and conversation turns for
// a terminal.
package termui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"stocksage/internal/chat"
	"stocksage/internal/markup"
)

var (
	sectionStyle    = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(lipgloss.Color("39")).MarginTop(1)
	subsectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75"))
	paragraphStyle  = lipgloss.NewStyle()
	textStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	bulletStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).PaddingLeft(2)
	codeStyle       = lipgloss.NewStyle().
			Foreground(lipgloss.Color("222")).
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("240")).
			PaddingLeft(1)
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)

	userLabel      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")).Render("You")
	assistantLabel = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Render("Assistant")
	errorLabel     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")).Render("Error")
	errorText      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// RenderContent renders each block on its own line group in order.
func RenderContent(c markup.Content) string {
	parts := make([]string, 0, len(c))
	for _, b := range c {
		if s := renderBlock(b); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

func renderBlock(b markup.Block) string {
	switch v := b.(type) {
	case markup.Text:
		if strings.TrimSpace(v.Value) == "" {
			return ""
		}
		return textStyle.Render(strings.TrimSpace(v.Value))
	case markup.Heading:
		if v.Level <= 1 {
			return sectionStyle.Render(v.Value)
		}
		return subsectionStyle.Render(v.Value)
	case markup.Paragraph:
		return paragraphStyle.Render(v.Value)
	case markup.List:
		lines := make([]string, 0, len(v.Items))
		for _, item := range v.Items {
			lines = append(lines, bulletStyle.Render("• ")+item)
		}
		return strings.Join(lines, "\n")
	case markup.Table:
		return renderTable(v)
	case markup.Code:
		return codeStyle.Render(v.Value)
	}
	return ""
}

func renderTable(v markup.Table) string {
	if len(v.Header) == 0 && len(v.Rows) == 0 {
		return ""
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers(v.Header...).
		Rows(v.Rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		})
	return t.String()
}

// RenderTurn renders one transcript entry with a role label.
func RenderTurn(turn chat.Turn) string {
	switch turn.Role {
	case chat.RoleUser:
		return userLabel + ": " + turn.Text
	case chat.RoleError:
		return errorLabel + ": " + errorText.Render(turn.Text)
	default:
		body := turn.Rendered
		if body == nil {
			body = markup.Parse(turn.Text)
		}
		return assistantLabel + ":\n" + RenderContent(body)
	}
}

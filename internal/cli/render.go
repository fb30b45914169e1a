package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

const (
	wrapWidth      = 100
	promptBoxWidth = 50
	accentColor    = lipgloss.Color("13")
	keyColor       = lipgloss.Color("14")
	valueColor     = lipgloss.Color("10")
	errorColor     = lipgloss.Color("9")
)

// renderer prints assistant output. Markdown goes through glamour; styling is dropped when
// out is not a terminal.
type renderer struct {
	out      io.Writer
	md       *glamour.TermRenderer
	styles   *lipgloss.Renderer
	terminal bool
}

func newRenderer(out io.Writer) *renderer {
	terminal := isTerminal(out)

	style := glamour.WithStandardStyle("notty")
	if terminal {
		style = glamour.WithAutoStyle()
	}
	md, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(wrapWidth))
	if err != nil {
		log.Warn().Err(err).Msg("Markdown renderer unavailable, printing raw text")
	}

	return &renderer{
		out:      out,
		md:       md,
		styles:   lipgloss.NewRenderer(out),
		terminal: terminal,
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Markdown renders text as markdown, or prints it unchanged when rendering fails.
func (r *renderer) Markdown(text string) {
	if r.md != nil {
		if rendered, err := r.md.Render(text); err == nil {
			fmt.Fprint(r.out, rendered)
			return
		}
	}
	fmt.Fprintln(r.out, text)
}

// Banner prints a bold accent line.
func (r *renderer) Banner(text string) {
	fmt.Fprintln(r.out, r.styles.NewStyle().Bold(true).Foreground(accentColor).Render(text))
}

// PromptBox draws the "You" box shown before each interactive input.
func (r *renderer) PromptBox() {
	box := r.styles.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(accentColor).
		Padding(0, 1).
		Width(promptBoxWidth).
		Bold(true).
		Render("You")
	fmt.Fprintln(r.out, box)
}

// Speaker labels a reply.
func (r *renderer) Speaker(name string) {
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, r.styles.NewStyle().Bold(true).Foreground(accentColor).Render(name+":"))
}

// Error prints a failure line in red.
func (r *renderer) Error(format string, args ...interface{}) {
	fmt.Fprintln(r.out, r.styles.NewStyle().Foreground(errorColor).Render(fmt.Sprintf(format, args...)))
}

// Faint prints secondary information such as the action being taken.
func (r *renderer) Faint(format string, args ...interface{}) {
	fmt.Fprintln(r.out, r.styles.NewStyle().Faint(true).Render(fmt.Sprintf(format, args...)))
}

// Table prints a bordered table with a title line.
func (r *renderer) Table(title string, headers []string, rows [][]string) {
	if title != "" {
		r.Banner(title)
	}

	header := r.styles.NewStyle().Bold(true).Foreground(accentColor).Padding(0, 1)
	first := r.styles.NewStyle().Foreground(keyColor).Padding(0, 1)
	cell := r.styles.NewStyle().Foreground(valueColor).Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.styles.NewStyle().Foreground(accentColor)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return header
			case col == 0:
				return first
			default:
				return cell
			}
		})

	fmt.Fprintln(r.out, t.Render())
}

// oneLine collapses whitespace so long descriptions fit a table cell.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

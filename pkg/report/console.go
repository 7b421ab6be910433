package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// console renders the human-facing progress output. Logs go to stderr via
// zerolog; this goes to the writer handed to Run (stdout for the CLI).
type console struct {
	out io.Writer

	panel   lipgloss.Style
	title   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	dimmed  lipgloss.Style
	label   lipgloss.Style
}

func newConsole(out io.Writer) *console {
	r := lipgloss.NewRenderer(out)

	return &console{
		out: out,
		panel: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		title: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")),
		success: r.NewStyle().
			Foreground(lipgloss.Color("42")),
		warning: r.NewStyle().
			Foreground(lipgloss.Color("214")),
		dimmed: r.NewStyle().
			Foreground(lipgloss.Color("244")),
		label: r.NewStyle().
			Width(18),
	}
}

func (c *console) banner(text string) {
	fmt.Fprintln(c.out, c.panel.Render(c.title.Render(text)))
}

func (c *console) step(n int, text string) {
	heading := c.dimmed.Render(fmt.Sprintf("Step %d", n))
	fmt.Fprintln(c.out, c.panel.Render(heading+"\n"+c.title.Render(text)))
}

func (c *console) ok(format string, args ...any) {
	fmt.Fprintln(c.out, c.success.Render(fmt.Sprintf(format, args...)))
}

func (c *console) warn(format string, args ...any) {
	fmt.Fprintln(c.out, c.warning.Render(fmt.Sprintf(format, args...)))
}

func (c *console) batches(serials, batches int) {
	fmt.Fprintf(c.out, "Divided %s serial numbers into %s batches\n",
		humanize.Comma(int64(serials)), c.title.Render(humanize.Comma(int64(batches))))
}

// progress prints one line per completed batch.
func (c *console) progress(batch, batches int, serials []string, err error) {
	line := fmt.Sprintf("Processing serials: %s (batch %d of %d)", strings.Join(serials, ", "), batch, batches)
	if err != nil {
		c.warn("%s failed: %v", line, err)
		return
	}
	fmt.Fprintln(c.out, line)
}

func (c *console) summary(s *Summary) {
	rows := []struct {
		label string
		value int
	}{
		{"Rows", s.Rows},
		{"Serial numbers", s.Serials},
		{"Found", s.Found},
		{"Not found", s.NotFound},
		{"Failed", s.Failed},
		{"Invalid", s.Invalid},
		{"Batches", s.Batches},
		{"Failed batches", s.FailedBatches},
	}

	var b strings.Builder
	b.WriteString(c.title.Render("Summary"))
	for _, r := range rows {
		b.WriteString("\n")
		b.WriteString(c.label.Render(r.label))
		b.WriteString(humanize.Comma(int64(r.value)))
	}
	b.WriteString("\n")
	b.WriteString(c.label.Render("Output"))
	b.WriteString(s.OutputPath)
	b.WriteString("\n")
	b.WriteString(c.label.Render("Duration"))
	b.WriteString(s.Duration.Round(time.Millisecond).String())

	fmt.Fprintln(c.out, c.panel.Render(b.String()))
}

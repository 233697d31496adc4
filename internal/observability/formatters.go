// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/santoscsolutions/site/internal/offline"
	"github.com/santoscsolutions/site/internal/pricing"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 10
)

// Printer handles formatted output for CLI commands
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// truncate shortens line to fit in a box, counting runes.
func truncate(line string, width int) string {
	if utf8.RuneCountInString(line) <= width {
		return line
	}
	runes := []rune(line)
	return string(runes[:width-3]) + "..."
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintEstimate outputs a quoted price range. An empty zip skips the
// service-area line.
func (p *Printer) PrintEstimate(bedrooms, bathrooms int, est pricing.PriceEstimate, zip string, status pricing.ZipStatus) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Home:     %d bed / %d bath\n", bedrooms, bathrooms))
	sb.WriteString(fmt.Sprintf("Service:  %s\n", pricing.ServiceName(est.ServiceType)))
	sb.WriteString(fmt.Sprintf("Price:    %s\n", pricing.FormatRange(est)))
	sb.WriteString(fmt.Sprintf("Duration: ~%d hours", est.Hours))
	if zip != "" {
		sb.WriteString(fmt.Sprintf("\nZIP:      %s (%s)", zip, status))
	}

	p.printBox("PRICE ESTIMATE", sb.String())
}

// PrintPrecacheList outputs the URLs an install would store.
func (p *Printer) PrintPrecacheList(generation string, urls []string) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Generation: %s\n", generation))
	sb.WriteString(fmt.Sprintf("Resources:  %d\n", len(urls)))

	count := min(len(urls), maxItemsToShow)
	if count > 0 {
		sb.WriteString("\n")
	}
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("  • %s\n", urls[i]))
	}
	if len(urls) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(urls)-maxItemsToShow))
	}

	p.printBox("PRECACHE LIST", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintInstallReport outputs the result of installing and activating a
// generation. Failures are listed; they never abort an install.
func (p *Printer) PrintInstallReport(report *offline.InstallReport, deleted []string) {
	if report == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Generation: %s\n", report.Generation))
	sb.WriteString(fmt.Sprintf("Cache:      %s\n", report.Cache))
	sb.WriteString(fmt.Sprintf("Cached:     %d\n", report.Cached))
	sb.WriteString(fmt.Sprintf("Failed:     %d\n", len(report.Failed)))

	if len(report.Failed) > 0 {
		sb.WriteString("\n")
		count := min(len(report.Failed), maxItemsToShow)
		for i := 0; i < count; i++ {
			f := report.Failed[i]
			sb.WriteString(fmt.Sprintf("  ✗ %s\n", f.URL))
			sb.WriteString(fmt.Sprintf("    %s\n", f.Reason))
		}
		if len(report.Failed) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(report.Failed)-maxItemsToShow))
		}
	}

	if len(deleted) > 0 {
		sb.WriteString("\nRemoved stale caches:\n")
		for _, name := range deleted {
			sb.WriteString(fmt.Sprintf("  • %s\n", name))
		}
	}

	p.printBox("CACHE INSTALL", strings.TrimSuffix(sb.String(), "\n"))
}

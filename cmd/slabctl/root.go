package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/slabkit/internal/logger"
	"github.com/joshuapare/slabkit/slab"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "slabctl",
	Short: "Plan, benchmark and stress-test slab pools",
	Long: `slabctl computes block layouts for a chunk size and alignment, and
exercises slab pools under concurrent load or randomized allocate/free
sequences with full invariant checking.`,
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose && !quiet {
			logger.Init(logger.Options{
				Enabled: true,
				Writer:  os.Stderr,
				Level:   slog.LevelDebug,
				JSON:    jsonOut,
			})
		}
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Helper functions for output

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	numbers     = message.NewPrinter(language.English)
)

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printHeader prints a section title, styled unless --no-color is set.
func printHeader(title string) {
	if noColor {
		printInfo("%s\n", title)
		return
	}
	printInfo("%s\n", headerStyle.Render(title))
}

// printField prints one aligned "label: value" line.
func printField(label, value string) {
	l := fmt.Sprintf("  %-14s", label+":")
	if !noColor {
		l = labelStyle.Render(l)
	}
	printInfo("%s %s\n", l, value)
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// formatNumber renders n with thousands separators.
func formatNumber[N int | int64 | uint64](n N) string {
	return numbers.Sprintf("%d", n)
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// backingFor maps the --backing flag to a slab.Backing.
func backingFor(name string) (slab.Backing, error) {
	switch name {
	case "", "default":
		return slab.DefaultBacking(), nil
	case "heap":
		return slab.HeapBacking{}, nil
	case "mmap":
		return slab.MmapBacking{}, nil
	}
	return nil, fmt.Errorf("unknown backing %q (want heap, mmap or default)", name)
}

// printCounter prints the pool counters.
func printCounter(c slab.Counter) {
	printField("Generated", formatNumber(c.Generated))
	printField("Blocks", formatNumber(c.Blocks))
	printField("Chunks", formatNumber(c.Chunks))
}

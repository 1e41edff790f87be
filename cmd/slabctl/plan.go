package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/slabkit/slab"
)

var (
	planChunk  int
	planAlign  int
	planCount  int
	planBudget int
)

func init() {
	cmd := newPlanCmd()
	cmd.Flags().IntVar(&planChunk, "chunk", 0, "Requested chunk size in bytes (required)")
	cmd.Flags().IntVar(&planAlign, "align", 0, "Chunk alignment (0 = pointer width)")
	cmd.Flags().IntVar(&planCount, "count", 0, "Chunks per block (0 = fit the slab budget)")
	cmd.Flags().IntVar(&planBudget, "budget", 0, "Slab budget in bytes (0 = default)")
	_ = cmd.MarkFlagRequired("chunk")
	rootCmd.AddCommand(cmd)
}

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the block layout for a chunk size",
		Long: `The plan command computes how a block is carved into chunks for the
given chunk size and alignment, without allocating anything.

Example:
  slabctl plan --chunk 96 --align 32
  slabctl plan --chunk 24 --budget 16384 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan()
		},
	}
	return cmd
}

// PlanResult is the JSON form of plan output.
type PlanResult struct {
	Requested int         `json:"requested"`
	Layout    slab.Layout `json:"layout"`
	Overhead  int         `json:"overhead"`
	Usable    float64     `json:"usable_ratio"`
}

func runPlan() error {
	layout, err := slab.ComputeLayout(slab.Config{
		ChunkSize:  planChunk,
		Align:      planAlign,
		Count:      planCount,
		SlabBudget: planBudget,
	})
	if err != nil {
		return fmt.Errorf("failed to compute layout: %w", err)
	}

	res := PlanResult{
		Requested: planChunk,
		Layout:    layout,
		Overhead:  layout.Overhead(),
		Usable:    float64(layout.Count*planChunk) / float64(layout.BlockBytes),
	}
	if jsonOut {
		return printJSON(res)
	}

	printHeader(fmt.Sprintf("Layout for %d-byte chunks", planChunk))
	printField("Chunk", fmt.Sprintf("%d (padded from %d)", layout.Chunk, planChunk))
	printField("Align", fmt.Sprintf("%d", layout.Align))
	printField("Stride", fmt.Sprintf("%d", layout.Stride))
	printField("Count", formatNumber(layout.Count))
	printField("Meta", fmt.Sprintf("%d", layout.Meta))
	printField("Prefix", fmt.Sprintf("%d", layout.Prefix))
	printField("Block bytes", fmt.Sprintf("%s (%s)", formatNumber(layout.BlockBytes), formatBytes(int64(layout.BlockBytes))))
	printField("Overhead", fmt.Sprintf("%s (%.1f%% usable)", formatNumber(res.Overhead), res.Usable*100))
	return nil
}

package sweep

import (
	"slices"

	"github.com/signalnine/bgjit/internal/config"
	"github.com/signalnine/bgjit/internal/result"
)

// Group is one primitive with the operand counts swept for it.
type Group struct {
	Primitive string
	Nums      []int
	// Skipped is set when Nums contains the 0 sentinel.
	Skipped bool
}

// Plan lists primitives in configured order.
func Plan(cfg *config.SweepConfig) []Group {
	groups := make([]Group, 0, len(cfg.Primitives))
	for _, p := range cfg.Primitives {
		nums := cfg.NumsFor(p)
		groups = append(groups, Group{
			Primitive: p,
			Nums:      nums,
			Skipped:   slices.Contains(nums, 0),
		})
	}
	return groups
}

// Cells enumerates live cells in primitive, operand count, width order.
func Cells(cfg *config.SweepConfig) []result.TrialSpec {
	var cells []result.TrialSpec
	for _, g := range Plan(cfg) {
		if g.Skipped {
			continue
		}
		for _, n := range g.Nums {
			for _, w := range cfg.Widths {
				cells = append(cells, result.TrialSpec{Primitive: g.Primitive, Num: n, Width: w})
			}
		}
	}
	return cells
}

// TotalCells is the number of cells Cells would return.
func TotalCells(cfg *config.SweepConfig) int {
	total := 0
	for _, g := range Plan(cfg) {
		if !g.Skipped {
			total += len(g.Nums) * len(cfg.Widths)
		}
	}
	return total
}

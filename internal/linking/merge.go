package linking

import (
	"cmp"
	"slices"
	"strings"

	"tmengine/internal/store"
	"tmengine/internal/textutil"
	"tmengine/internal/tmerr"
)

// MergeStrategy decides the order member texts are joined in.
type MergeStrategy string

const (
	// MergeSequential keeps selection order.
	MergeSequential MergeStrategy = "sequential"
	// MergePositional orders members by their original position.
	MergePositional MergeStrategy = "positional"
	// MergeCustom uses MergeOptions.Order as a permutation of the selection.
	MergeCustom MergeStrategy = "custom"
)

// MergeOptions controls how selected chunks are merged and stored.
type MergeOptions struct {
	Strategy MergeStrategy
	// Order indexes into the selection when Strategy is MergeCustom.
	Order              []int
	AddSpacing         bool
	PreserveFormatting bool
	// UpdateTranslationMemory stores a translation unit for the merged
	// phrase when TargetText and TargetLanguage are set.
	UpdateTranslationMemory bool
	TargetText              string
	TargetLanguage          string
	CreatedBy               string
	Tags                    []string
}

// DefaultMergeOptions returns sequential merging with spacing and formatting
// preserved.
func DefaultMergeOptions() MergeOptions {
	return MergeOptions{
		Strategy:                MergeSequential,
		AddSpacing:              true,
		PreserveFormatting:      true,
		UpdateTranslationMemory: true,
	}
}

// mergeOrder returns the permutation of chunks the strategy produces.
func mergeOrder(chunks []*store.Chunk, opts MergeOptions) ([]int, error) {
	n := len(chunks)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	switch opts.Strategy {
	case "", MergeSequential:
		return order, nil
	case MergePositional:
		slices.SortStableFunc(order, func(a, b int) int {
			return cmp.Compare(chunks[a].OriginalPosition, chunks[b].OriginalPosition)
		})
		return order, nil
	case MergeCustom:
		if len(opts.Order) != n {
			return nil, tmerr.Invalid("merge_order", "expected %d indexes, got %d", n, len(opts.Order))
		}
		seen := make([]bool, n)
		for _, idx := range opts.Order {
			if idx < 0 || idx >= n || seen[idx] {
				return nil, tmerr.Invalid("merge_order", "not a permutation of the selection")
			}
			seen[idx] = true
		}
		return slices.Clone(opts.Order), nil
	default:
		return nil, tmerr.Invalid("strategy", "unknown merge strategy %q", opts.Strategy)
	}
}

// Merge joins chunk texts according to opts and returns the merged text and
// the permutation used.
func Merge(chunks []*store.Chunk, opts MergeOptions) (string, []int, error) {
	order, err := mergeOrder(chunks, opts)
	if err != nil {
		return "", nil, err
	}
	sep := ""
	if opts.AddSpacing {
		sep = " "
	}
	parts := make([]string, 0, len(order))
	for _, idx := range order {
		parts = append(parts, chunks[idx].Text)
	}
	merged := strings.Join(parts, sep)
	if !opts.PreserveFormatting {
		merged = textutil.Normalize(merged)
	}
	return merged, order, nil
}

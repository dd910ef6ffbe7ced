package answer

import (
	"fmt"
	"slices"
	"strings"

	"github.com/WessleyAI/condo-ledger/engine/domain"
	"github.com/WessleyAI/condo-ledger/engine/retrieval"
	"github.com/WessleyAI/condo-ledger/pkg/fn"
)

const (
	maxFollowUps    = 3
	maxPerDimension = 2
)

// SuggestFollowUps proposes up to three questions anchored in the categories,
// vendors, and months of the current results, at most two of each. With none
// present it returns the generic prompts.
func SuggestFollowUps(data RelevantData) []string {
	var out []string
	for _, c := range fn.Take(data.Categories, maxPerDimension) {
		out = append(out, fmt.Sprintf("What other %s expenses do we have?", strings.ToLower(domain.TitleLabel(c))))
	}
	for _, v := range fn.Take(data.Vendors, maxPerDimension) {
		out = append(out, "Show me all payments to "+v)
	}
	for _, m := range fn.Take(data.Months, maxPerDimension) {
		out = append(out, retrieval.TotalSpentIn(m))
	}
	if len(out) == 0 {
		return slices.Clone(retrieval.GenericPrompts)
	}
	return fn.Take(out, maxFollowUps)
}

package story

import (
	"slices"

	"github.com/pkordes/triptales/internal/domain"
)

// GroupByCategory partitions trips by category. Blank categories land in
// domain.DefaultCategory. Each bucket keeps the input order.
func GroupByCategory(trips []domain.Trip) map[string][]domain.Trip {
	groups := make(map[string][]domain.Trip)
	for _, t := range trips {
		c := domain.CategoryOrDefault(t.Category)
		groups[c] = append(groups[c], t)
	}
	return groups
}

// Categories returns the bucket names of groups in sorted order.
func Categories(groups map[string][]domain.Trip) []string {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

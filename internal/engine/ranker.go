package engine

import (
	"sort"

	"github.com/halpertj/unwinder/internal/models"
)

// Rank orders merged recommendations into their execution order: priority
// ascending, ties broken by net profit descending. The sort is stable, so
// equal entries keep their generation order and the result is a total order.
func Rank(opps []models.CloseOpportunity) []models.CloseOpportunity {
	ranked := append([]models.CloseOpportunity(nil), opps...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Priority != ranked[j].Priority {
			return ranked[i].Priority < ranked[j].Priority
		}
		return ranked[i].NetProfit > ranked[j].NetProfit
	})
	return ranked
}

package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/vhpx/pleasebuyus-sub000/internal/domain"
)

type Summary struct {
	Lines         []domain.CartLine `json:"lines"`
	Outlets       []OutletGroup     `json:"outlets"`
	TotalProducts int               `json:"total_products"`
	Total         decimal.Decimal   `json:"total"`
}

// OutletGroup is the display grouping of lines sold by one outlet.
type OutletGroup struct {
	OutletID      string            `json:"outlet_id"`
	Lines         []domain.CartLine `json:"lines"`
	TotalProducts int               `json:"total_products"`
	Subtotal      decimal.Decimal   `json:"subtotal"`
}

func groupByOutlet(lines []domain.CartLine) []OutletGroup {
	groups := make([]OutletGroup, 0)
	pos := make(map[string]int)

	for _, line := range lines {
		i, ok := pos[line.OutletID]
		if !ok {
			i = len(groups)
			pos[line.OutletID] = i
			groups = append(groups, OutletGroup{OutletID: line.OutletID, Subtotal: decimal.Zero})
		}
		g := &groups[i]
		g.Lines = append(g.Lines, line)
		g.TotalProducts += line.Quantity
		g.Subtotal = g.Subtotal.Add(line.Subtotal())
	}
	return groups
}

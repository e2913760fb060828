package mock

import (
	"math"

	"github.com/gridplan/gridplan/pkg/models"
)

// round2 rounds a monetary derivation to 2 decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// recalculate applies a module's fixed derivation formulas over the given
// row tuples and every time period, for one version. Formulas are
// evaluated per (row, time period) independently; there are no cross-row
// or cross-time dependencies, so evaluation order between cells does not
// matter, and running the pass twice with unchanged inputs writes the
// same values again.
//
// rows scopes the pass: a write batch passes only the row tuples it
// touched, seeding passes every combination of the module's full item
// sets. Each tuple holds the row-dimension item ids in module order.
func (e *Engine) recalculate(moduleID, version string, rows [][]string) {
	mod, ok := e.catalog.Module(moduleID)
	if !ok {
		return
	}
	rowDims, hasTime := rowDimensionIDs(mod)

	if rows == nil {
		rows = allRowTuples(e.catalog, rowDims)
	}
	timeIDs := []string{timeSentinel}
	if hasTime {
		timeIDs = timeIDs[:0]
		for _, tp := range e.catalog.Items("time") {
			timeIDs = append(timeIDs, tp.ID)
		}
	}

	for _, row := range rows {
		for _, timeID := range timeIDs {
			get := func(lineItemID string) float64 {
				return e.store.NumOrZero(cellKey(moduleID, version, row, lineItemID, timeID))
			}
			put := func(lineItemID string, v float64) {
				e.store.SetNum(cellKey(moduleID, version, row, lineItemID, timeID), round2(v))
			}
			applyFormulas(moduleID, get, put)
		}
	}
}

// applyFormulas is the per-cell formula table. The formulas are fixed per
// module, not user-authored.
func applyFormulas(moduleID string, get func(string) float64, put func(string, float64)) {
	switch moduleID {
	case "revenue":
		units := get("units")
		price := get("price")
		discounts := get("discounts")
		put("gross_rev", units*price)
		put("net_rev", units*price-discounts)

	case "expense":
		headcount := get("headcount")
		avgSalary := get("avg_salary")
		travel := get("travel")
		software := get("software")
		put("total_expense", headcount*avgSalary+travel+software)

	case "pnl":
		revenue := get("revenue")
		cogs := get("cogs")
		opex := get("opex")
		grossProfit := revenue - cogs
		ebitda := grossProfit - opex
		put("gross_profit", grossProfit)
		put("ebitda", ebitda)
		// Fixed 25% effective-tax approximation.
		put("net_income", ebitda*0.75)
	}
}

// allRowTuples builds every combination of the given dimensions' full item
// sets, as id tuples.
func allRowTuples(c *Catalog, rowDims []string) [][]string {
	lists := make([][]models.DimensionItem, len(rowDims))
	for i, dimID := range rowDims {
		lists[i] = c.Items(dimID)
	}
	combos := cartesian(lists)
	tuples := make([][]string, len(combos))
	for i, combo := range combos {
		ids := make([]string, len(combo))
		for j, item := range combo {
			ids[j] = item.ID
		}
		tuples[i] = ids
	}
	return tuples
}

package mock

import (
	"hash/fnv"
	"math"
	"strings"

	"github.com/gridplan/gridplan/pkg/models"
)

// lcg is the deterministic pseudo-random source used for seed data, a
// Lehmer generator with the MINSTD parameters. Seeding is reproducible
// across connects: the same schema always produces the same demo numbers.
type lcg struct{ s int64 }

func newLCG(seed int64) *lcg { return &lcg{s: seed} }

func (r *lcg) next() float64 {
	r.s = (r.s * 16807) % 2147483647
	return float64(r.s-1) / 2147483646
}

var (
	routeValues    = []string{"Direct", "Channel", "Online", "Retail"}
	managerValues  = []string{"Alice Chen", "Bob Davis", "Carol White", "David Kim", "Eva Martinez"}
	costTypeValues = []string{"Fixed", "Variable", "Semi-Variable"}
	regionLabels   = []string{"North", "South", "East", "West"}
)

// versionMultiplier scales seed values per scenario.
func versionMultiplier(versionID string) float64 {
	switch versionID {
	case "budget":
		return 1.1
	case "forecast":
		return 1.05
	default:
		return 1.0
	}
}

// seed populates every editable cell of every module and version with
// deterministic demo data, then runs a full recalculation pass so computed
// line items are consistent from the first read.
func (e *Engine) seed() {
	rand := newLCG(42)

	for _, ver := range e.catalog.Versions() {
		mult := versionMultiplier(ver.ID)

		e.seedModule("revenue", ver.ID, mult, func(row []string, lineItemID string) float64 {
			productMult := map[string]float64{"electronics": 1.5, "apparel": 0.8, "home": 1.0}[row[0]]
			if productMult == 0 {
				productMult = 1
			}
			switch lineItemID {
			case "units":
				return math.Round(500 + rand.next()*2000*productMult)
			case "price":
				return round2(20 + rand.next()*80*productMult)
			}
			return 0
		})
		e.seedTexts("revenue", ver.ID, func(row []string, lineItemID string) string {
			switch lineItemID {
			case "route":
				return pickByRow(row, routeValues)
			case "manager":
				return pickByRow(row, managerValues)
			}
			return ""
		})

		e.seedModule("expense", ver.ID, mult, func(row []string, lineItemID string) float64 {
			switch lineItemID {
			case "headcount":
				return math.Round(5 + rand.next()*50)
			case "avg_salary":
				return math.Round(60000 + rand.next()*60000)
			case "travel":
				return math.Round(2000 + rand.next()*20000)
			case "software":
				return math.Round(1000 + rand.next()*15000)
			}
			return 0
		})
		e.seedTexts("expense", ver.ID, func(row []string, lineItemID string) string {
			switch lineItemID {
			case "cost_type":
				return pickByRow(row, costTypeValues)
			case "manager_exp":
				return pickByRow(row, managerValues)
			}
			return ""
		})

		e.seedModule("pnl", ver.ID, mult, func(row []string, lineItemID string) float64 {
			switch lineItemID {
			case "revenue":
				return math.Round(100000 + rand.next()*500000)
			case "cogs":
				return math.Round(40000 + rand.next()*200000)
			case "opex":
				return math.Round(20000 + rand.next()*100000)
			}
			return 0
		})
		e.seedTexts("pnl", ver.ID, func(row []string, lineItemID string) string {
			if lineItemID == "region_label" {
				return pickByRow(row, regionLabels)
			}
			return ""
		})
	}

	for _, ver := range e.catalog.Versions() {
		for _, mod := range e.catalog.Schema().Modules {
			e.recalculate(mod.ID, ver.ID, nil)
		}
	}
}

// seedModule writes one value per (row, time period, editable numeric line
// item), scaled by the version multiplier.
func (e *Engine) seedModule(moduleID, version string, mult float64, value func(row []string, lineItemID string) float64) {
	mod, ok := e.catalog.Module(moduleID)
	if !ok {
		return
	}
	rowDims, hasTime := rowDimensionIDs(mod)
	timeIDs := seedTimeIDs(e.catalog, hasTime)

	for _, row := range allRowTuples(e.catalog, rowDims) {
		for _, timeID := range timeIDs {
			for _, li := range mod.LineItems {
				if li.Format == models.FormatText || !li.Editable {
					continue
				}
				v := value(row, li.ID)
				e.store.SetNum(cellKey(moduleID, version, row, li.ID, timeID), round2(v*mult))
			}
		}
	}
}

// seedTexts writes text line-item values. Text cells are not time-pivoted,
// so they are stored once per row, under the time sentinel.
func (e *Engine) seedTexts(moduleID, version string, value func(row []string, lineItemID string) string) {
	mod, ok := e.catalog.Module(moduleID)
	if !ok {
		return
	}
	rowDims, _ := rowDimensionIDs(mod)

	for _, row := range allRowTuples(e.catalog, rowDims) {
		for _, li := range mod.LineItems {
			if li.Format != models.FormatText {
				continue
			}
			e.store.SetText(cellKey(moduleID, version, row, li.ID, timeSentinel), value(row, li.ID))
		}
	}
}

func seedTimeIDs(c *Catalog, hasTime bool) []string {
	if !hasTime {
		return []string{timeSentinel}
	}
	items := c.Items("time")
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

// pickByRow deterministically assigns one of the candidate values to a row
// based on its dimension item tuple.
func pickByRow(row []string, values []string) string {
	h := fnv.New32a()
	h.Write([]byte(strings.Join(row, "|")))
	return values[int(h.Sum32())%len(values)]
}

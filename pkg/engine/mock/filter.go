package mock

import (
	"github.com/gridplan/gridplan/pkg/models"
)

// FilteredItems resolves the effective item set for one dimension given the
// raw filter selections. Resolution order:
//
//  1. an explicit, non-empty selection for the dimension wins outright;
//  2. otherwise, if the dimension declares a parent and the parent has a
//     non-empty selection, items cascade: only those whose parentItemId is
//     in the parent's selection remain;
//  3. otherwise the dimension's full item set applies.
func (c *Catalog) FilteredItems(dimensionID string, filters map[string][]string) []models.DimensionItem {
	all := c.Items(dimensionID)
	if selected := filters[dimensionID]; len(selected) > 0 {
		return pickItems(all, selected)
	}

	dim, ok := c.Dimension(dimensionID)
	if !ok || dim.ParentDimensionID == "" {
		return all
	}
	parentSelected := filters[dim.ParentDimensionID]
	if len(parentSelected) == 0 {
		return all
	}
	inParent := toSet(parentSelected)
	cascaded := make([]models.DimensionItem, 0, len(all))
	for _, it := range all {
		if it.ParentItemID != "" && inParent[it.ParentItemID] {
			cascaded = append(cascaded, it)
		}
	}
	return cascaded
}

func pickItems(all []models.DimensionItem, ids []string) []models.DimensionItem {
	want := toSet(ids)
	picked := make([]models.DimensionItem, 0, len(ids))
	for _, it := range all {
		if want[it.ID] {
			picked = append(picked, it)
		}
	}
	return picked
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// matchNumeric evaluates one numeric filter operator against a cell value.
// Absent cells (ok == false) never match. Operand presence has already
// been enforced by NumericFilter.Validate; the nil guards only keep a
// malformed filter from panicking.
func matchNumeric(value float64, ok bool, op models.NumericFilterOp, low, high *float64) bool {
	if !ok {
		return false
	}
	switch op {
	case models.OpZero:
		return value == 0
	case models.OpNonZero:
		return value != 0
	}
	if low == nil {
		return true
	}
	switch op {
	case models.OpGte:
		return value >= *low
	case models.OpGt:
		return value > *low
	case models.OpLte:
		return value <= *low
	case models.OpLt:
		return value < *low
	case models.OpBetween:
		h := *low
		if high != nil {
			h = *high
		}
		return *low <= value && value <= h
	}
	return true
}

// validateRequest rejects malformed numeric filters before any row is
// assembled or evaluated.
func validateRequest(req models.ModuleDataRequest) error {
	for _, nf := range req.NumericFilters {
		if err := nf.Validate(); err != nil {
			return err
		}
	}
	return nil
}

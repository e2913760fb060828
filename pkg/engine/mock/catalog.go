package mock

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/gridplan/gridplan/pkg/models"
)

//go:embed catalog.yaml
var catalogYAML []byte

// catalogFile is the declarative form of the demo workspace schema. It is
// converted into the shared models once, at engine construction.
type catalogFile struct {
	Versions   []catalogItem      `yaml:"versions"`
	Dimensions []catalogDimension `yaml:"dimensions"`
	Modules    []catalogModule    `yaml:"modules"`
}

type catalogItem struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	ParentItem string `yaml:"parentItem"`
}

type catalogDimension struct {
	ID     string        `yaml:"id"`
	Name   string        `yaml:"name"`
	Parent string        `yaml:"parent"`
	Items  []catalogItem `yaml:"items"`
}

type catalogModule struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name"`
	Dimensions []string `yaml:"dimensions"`
	LineItems  []struct {
		ID       string            `yaml:"id"`
		Name     string            `yaml:"name"`
		Format   models.CellFormat `yaml:"format"`
		Editable bool              `yaml:"editable"`
	} `yaml:"lineItems"`
}

// Catalog is the static schema of the demo workspace: dimensions with their
// item sets, modules with their line items, and versions. It is immutable
// for the process lifetime.
type Catalog struct {
	dimensions []models.Dimension
	items      map[string][]models.DimensionItem
	modules    []models.ModuleMeta
	versions   []models.DimensionItem
}

func loadCatalog() (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(catalogYAML, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	c := &Catalog{items: map[string][]models.DimensionItem{}}
	for _, v := range f.Versions {
		c.versions = append(c.versions, models.DimensionItem{ID: v.ID, Name: v.Name})
	}
	for _, d := range f.Dimensions {
		c.dimensions = append(c.dimensions, models.Dimension{
			ID:                d.ID,
			Name:              d.Name,
			ParentDimensionID: d.Parent,
		})
		items := make([]models.DimensionItem, 0, len(d.Items))
		for _, it := range d.Items {
			items = append(items, models.DimensionItem{
				ID:           it.ID,
				Name:         it.Name,
				ParentItemID: it.ParentItem,
			})
		}
		c.items[d.ID] = items
	}
	for _, m := range f.Modules {
		mod := models.ModuleMeta{ID: m.ID, Name: m.Name, DimensionIDs: m.Dimensions}
		for _, li := range m.LineItems {
			mod.LineItems = append(mod.LineItems, models.LineItemMeta{
				ID:       li.ID,
				Name:     li.Name,
				Format:   li.Format,
				Editable: li.Editable,
			})
		}
		c.modules = append(c.modules, mod)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// validate checks the catalog invariants: unique ids, resolvable parent
// dimensions, and parent item references that exist in the parent
// dimension's item set.
func (c *Catalog) validate() error {
	dims := map[string]models.Dimension{}
	for _, d := range c.dimensions {
		if _, dup := dims[d.ID]; dup {
			return fmt.Errorf("catalog: duplicate dimension id %q", d.ID)
		}
		dims[d.ID] = d
	}
	for _, d := range c.dimensions {
		if d.ParentDimensionID == "" {
			continue
		}
		parent, ok := dims[d.ParentDimensionID]
		if !ok {
			return fmt.Errorf("catalog: dimension %q references unknown parent %q", d.ID, d.ParentDimensionID)
		}
		parentIDs := map[string]bool{}
		for _, it := range c.items[parent.ID] {
			parentIDs[it.ID] = true
		}
		for _, it := range c.items[d.ID] {
			if it.ParentItemID != "" && !parentIDs[it.ParentItemID] {
				return fmt.Errorf("catalog: item %q of %q references unknown parent item %q",
					it.ID, d.ID, it.ParentItemID)
			}
		}
	}
	for _, m := range c.modules {
		for _, id := range m.DimensionIDs {
			if _, ok := dims[id]; !ok {
				return fmt.Errorf("catalog: module %q references unknown dimension %q", m.ID, id)
			}
		}
	}
	return nil
}

// Schema returns the catalog in its wire form.
func (c *Catalog) Schema() *models.WorkspaceSchema {
	return &models.WorkspaceSchema{
		Dimensions: c.dimensions,
		Modules:    c.modules,
		Versions:   c.versions,
	}
}

// Dimension returns a dimension by id.
func (c *Catalog) Dimension(id string) (models.Dimension, bool) {
	for _, d := range c.dimensions {
		if d.ID == id {
			return d, true
		}
	}
	return models.Dimension{}, false
}

// Items returns the full item set of a dimension, in catalog order.
func (c *Catalog) Items(dimensionID string) []models.DimensionItem {
	return c.items[dimensionID]
}

// Module returns a module by id.
func (c *Catalog) Module(id string) (models.ModuleMeta, bool) {
	for _, m := range c.modules {
		if m.ID == id {
			return m, true
		}
	}
	return models.ModuleMeta{}, false
}

// Versions returns the scenario versions.
func (c *Catalog) Versions() []models.DimensionItem {
	return c.versions
}

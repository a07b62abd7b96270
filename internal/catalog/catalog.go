// Package catalog holds the template catalog: two ordered, read-only lists
// of recurring quick-entry templates. The built-in set is embedded; an
// alternative catalog can be loaded from a JSON file at startup.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"financeiro/internal/core"
)

//go:embed templates.json
var defaultTemplates []byte

// Catalog is immutable after construction. Order is significant: the
// consolidation pass walks income templates first, then expense templates,
// each in catalog order.
type Catalog struct {
	income  []core.Template
	expense []core.Template
	byID    map[string]core.Template
}

type fileFormat struct {
	Income  []fileTemplate `json:"income"`
	Expense []fileTemplate `json:"expense"`
}

type fileTemplate struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Category      string  `json:"category"`
	DefaultAmount float64 `json:"defaultAmount"`
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := parse(defaultTemplates)
	if err != nil {
		// The embedded file ships with the binary; failing to parse it is a
		// build defect, not a runtime condition.
		panic(fmt.Sprintf("embedded template catalog: %v", err))
	}
	return c
}

// LoadFile reads a catalog from a JSON file with the same shape as the
// embedded one.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	c, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse catalog file %s: %w", path, err)
	}
	return c, nil
}

func parse(data []byte) (*Catalog, error) {
	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		return nil, err
	}
	c := &Catalog{byID: make(map[string]core.Template)}
	add := func(entries []fileTemplate, dst *[]core.Template) error {
		for _, e := range entries {
			tpl := core.Template{
				ID:            e.ID,
				Name:          e.Name,
				Category:      e.Category,
				DefaultAmount: core.Money{Cents: int64(e.DefaultAmount*100 + 0.5)},
			}
			if err := tpl.Validate(); err != nil {
				return fmt.Errorf("template %q: %w", e.ID, err)
			}
			if _, dup := c.byID[tpl.ID]; dup {
				return fmt.Errorf("duplicate template id %q", tpl.ID)
			}
			c.byID[tpl.ID] = tpl
			*dst = append(*dst, tpl)
		}
		return nil
	}
	if err := add(ff.Income, &c.income); err != nil {
		return nil, err
	}
	if err := add(ff.Expense, &c.expense); err != nil {
		return nil, err
	}
	return c, nil
}

// Income returns the income templates in catalog order.
func (c *Catalog) Income() []core.Template {
	return append([]core.Template(nil), c.income...)
}

// Expense returns the expense templates in catalog order.
func (c *Catalog) Expense() []core.Template {
	return append([]core.Template(nil), c.expense...)
}

// Lookup returns a template by id.
func (c *Catalog) Lookup(id string) (core.Template, bool) {
	tpl, ok := c.byID[id]
	return tpl, ok
}

// KindOf reports which half of the catalog a template id belongs to.
func (c *Catalog) KindOf(id string) (core.Kind, bool) {
	for _, tpl := range c.income {
		if tpl.ID == id {
			return core.Income, true
		}
	}
	for _, tpl := range c.expense {
		if tpl.ID == id {
			return core.Expense, true
		}
	}
	return "", false
}

// Len returns the total number of templates.
func (c *Catalog) Len() int {
	return len(c.income) + len(c.expense)
}

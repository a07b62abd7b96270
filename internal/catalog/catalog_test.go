package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"financeiro/internal/core"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	if got := len(c.Income()); got != 3 {
		t.Fatalf("expected 3 income templates, got %d", got)
	}
	if got := len(c.Expense()); got != 20 {
		t.Fatalf("expected 20 expense templates, got %d", got)
	}
	if c.Len() != 23 {
		t.Fatalf("expected 23 templates total, got %d", c.Len())
	}

	sal, ok := c.Lookup("salario_andre")
	if !ok {
		t.Fatalf("salario_andre missing")
	}
	if sal.Name != "SALÁRIO ANDRÉ" || sal.DefaultAmount.Cents != 266400 {
		t.Fatalf("unexpected template: %+v", sal)
	}

	if k, ok := c.KindOf("energia"); !ok || k != core.Expense {
		t.Fatalf("energia should be an expense template, got %q ok=%v", k, ok)
	}
	if k, ok := c.KindOf("receita_mari"); !ok || k != core.Income {
		t.Fatalf("receita_mari should be an income template, got %q ok=%v", k, ok)
	}
	if _, ok := c.KindOf("nope"); ok {
		t.Fatalf("unknown id should not resolve")
	}
}

func TestCatalogOrderPreserved(t *testing.T) {
	c := Default()
	exp := c.Expense()
	if exp[0].ID != "fundo_area_comum" || exp[len(exp)-1].ID != "churrasco" {
		t.Fatalf("expense order not preserved: first=%s last=%s", exp[0].ID, exp[len(exp)-1].ID)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	data := `{"income":[{"id":"sal","name":"SAL","category":"Salário","defaultAmount":1000.00}],"expense":[]}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	tpl, ok := c.Lookup("sal")
	if !ok || tpl.DefaultAmount.Cents != 100000 {
		t.Fatalf("unexpected template: %+v ok=%v", tpl, ok)
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.json")
	_ = os.WriteFile(bad, []byte(`{"income":[{"id":"a","name":"A"},{"id":"a","name":"B"}]}`), 0o644)
	if _, err := LoadFile(bad); err == nil {
		t.Fatalf("expected error for duplicate ids")
	}
}

package extract

import (
	"context"
	"testing"

	"github.com/AleutianAI/codegraph/services/codegraph/datatypes"
)

const (
	testGoSource = `package calc

// Calculator accumulates a running total.
type Calculator struct {
	total int
}

// Adder is anything that can add.
type Adder interface {
	Add(a, b int) int
}

// Add adds two integers to the total.
func (c *Calculator) Add(a, b int) int {
	c.total += a + b
	return c.total
}

// New creates a Calculator.
func New() *Calculator {
	return &Calculator{}
}
`

	testGoForeignReceiver = `package ext

import "bytes"

func (w wrapper) Flush() error { return nil }

func Helper(buf *bytes.Buffer) {}
`
)

func TestGoExtract_StructsAndMethods(t *testing.T) {
	e := NewGoExtractor()

	tree, err := e.Extract(context.Background(), []byte(testGoSource), "calc.go")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	// Calculator, Adder, New. Add nests under Calculator.
	if len(tree.Children) != 3 {
		t.Fatalf("got %d top-level children, want 3", len(tree.Children))
	}

	calc := tree.Children[0]
	if calc.Type != datatypes.TypeClass || calc.Name != "Calculator" {
		t.Errorf("got %s %q, want class Calculator", calc.Type, calc.Name)
	}
	if len(calc.Children) != 1 || calc.Children[0].Name != "Add" {
		t.Fatalf("Add should nest under Calculator, got %+v", calc.Children)
	}
	add := calc.Children[0]
	if add.Type != datatypes.TypeFunction {
		t.Errorf("got method type %s, want %s", add.Type, datatypes.TypeFunction)
	}
	if len(add.Parameters) != 2 || add.Parameters[0] != "a" || add.Parameters[1] != "b" {
		t.Errorf("got Add parameters %v, want [a b]", add.Parameters)
	}

	adder := tree.Children[1]
	if adder.Type != datatypes.TypeClass || adder.Name != "Adder" {
		t.Errorf("got %s %q, want class Adder", adder.Type, adder.Name)
	}

	newFn := tree.Children[2]
	if newFn.Type != datatypes.TypeFunction || newFn.Name != "New" {
		t.Errorf("got %s %q, want function New", newFn.Type, newFn.Name)
	}
}

func TestGoExtract_ForeignReceiverSurfacesAsFunction(t *testing.T) {
	e := NewGoExtractor()

	tree, err := e.Extract(context.Background(), []byte(testGoForeignReceiver), "ext.go")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	// Helper first (source order), then the unattached method.
	if len(tree.Children) != 2 {
		t.Fatalf("got %d children, want 2", len(tree.Children))
	}
	names := map[string]bool{}
	for _, c := range tree.Children {
		if c.Type != datatypes.TypeFunction {
			t.Errorf("got type %s for %q, want function", c.Type, c.Name)
		}
		names[c.Name] = true
	}
	if !names["Flush"] || !names["Helper"] {
		t.Errorf("want Flush and Helper at top level, got %v", names)
	}
}

func TestGoExtract_Empty(t *testing.T) {
	e := NewGoExtractor()

	tree, err := e.Extract(context.Background(), []byte("package empty\n"), "empty.go")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(tree.Children) != 0 {
		t.Errorf("got %d children, want 0", len(tree.Children))
	}
}

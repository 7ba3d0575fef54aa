package eval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projection-generator/internal/expr"
	"projection-generator/internal/resolve"
	"projection-generator/internal/schema"
	"projection-generator/internal/structure"
)

const storePkg = "projection-generator/store"

func buildOrderGraph() (*schema.TypeGraph, *schema.TypeInfo) {
	b := schema.NewBuilder()

	product := b.Struct(storePkg, "Product",
		schema.Field("SKU", schema.Basic("string")),
		schema.Field("Name", schema.Basic("string")),
	)
	city := b.Struct(storePkg, "City",
		schema.Field("Name", schema.Basic("string")),
	)
	address := b.Struct(storePkg, "Address",
		schema.Field("Street", schema.Basic("string")),
		schema.NullableField("City", city),
	)
	customer := b.Struct(storePkg, "Customer",
		schema.Field("Name", schema.Basic("string")),
		schema.NullableField("Address", address),
	)
	item := b.Struct(storePkg, "OrderItem",
		schema.NullableField("Product", product),
		schema.Field("Quantity", schema.Basic("int")),
		schema.Field("UnitPrice", schema.Basic("int64")),
	)
	order := b.Struct(storePkg, "Order",
		schema.Field("Id", schema.Basic("int64")),
		schema.NullableField("Customer", customer),
		schema.Field("Items", schema.SliceOf(item)),
	)

	return b.Graph(), order
}

func chainAt(root, path string) expr.Node {
	var n expr.Node = &expr.Param{Name: root}

	for _, seg := range strings.Split(strings.ReplaceAll(path, "?.", ".?"), ".") {
		nullSafe := strings.HasPrefix(seg, "?")
		n = &expr.Member{Recv: n, Name: strings.TrimPrefix(seg, "?"), NullSafe: nullSafe}
	}

	return n
}

func compile(t *testing.T, graph *schema.TypeGraph, source *schema.TypeInfo, sh *expr.Shape) *structure.Structure {
	t.Helper()

	p := resolve.New(graph)

	s, err := p.Compile(resolve.Site{File: "shapes.yaml", Line: 1}, source, sh)
	require.NoError(t, err)
	require.True(t, p.Diags.IsValid(), "diagnostics: %v", p.Diags.Errors)

	return s
}

func TestProjectInvert_RoundTrip(t *testing.T) {
	graph, order := buildOrderGraph()

	s := compile(t, graph, order, &expr.Shape{
		Var:        "p",
		TargetName: "OrderView",
		Fields: []expr.ShapeField{
			{Name: "Id", Expr: chainAt("p", "Id")},
			{Name: "CustomerName", Expr: chainAt("p", "Customer?.Name")},
			{Name: "CustomerCity", Expr: chainAt("p", "Customer?.Address?.City?.Name")},
		},
	})

	src := map[string]any{
		"Id": int64(1),
		"Customer": map[string]any{
			"Name":    "Alice",
			"Address": nil,
		},
	}

	out := Project(s, src)

	assert.Equal(t, int64(1), out["Id"])
	assert.Equal(t, "Alice", out["CustomerName"])
	assert.Nil(t, out["CustomerCity"], "null-safe chain short-circuits on the absent address")

	back := Invert(s, out)

	assert.Equal(t, int64(1), back["Id"])

	customer, ok := back["Customer"].(map[string]any)
	require.True(t, ok, "intermediate objects are instantiated on demand")
	assert.Equal(t, "Alice", customer["Name"])

	_, addressSet := customer["Address"]
	assert.False(t, addressSet, "absent leaves never instantiate their path")
}

func TestProject_NestedCollection(t *testing.T) {
	graph, order := buildOrderGraph()

	s := compile(t, graph, order, &expr.Shape{
		TargetName: "OrderView",
		Fields: []expr.ShapeField{
			{Name: "Items", Expr: &expr.ProjectEach{
				Source: chainAt("p", "Items"),
				Var:    "e",
				Body: &expr.Shape{
					TargetName: "ItemView",
					Fields: []expr.ShapeField{
						{Name: "Product", Expr: chainAt("e", "Product?.Name")},
						{Name: "Qty", Expr: chainAt("e", "Quantity")},
					},
				},
			}},
		},
	})

	src := map[string]any{
		"Items": []any{
			map[string]any{"Product": map[string]any{"Name": "Widget"}, "Quantity": 2},
			map[string]any{"Product": nil, "Quantity": 1},
		},
	}

	out := Project(s, src)

	items, ok := out["Items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 2)

	first := items[0].(map[string]any)
	assert.Equal(t, "Widget", first["Product"])
	assert.Equal(t, 2, first["Qty"])

	second := items[1].(map[string]any)
	assert.Nil(t, second["Product"])

	back := Invert(s, out)

	restored, ok := back["Items"].([]any)
	require.True(t, ok)
	require.Len(t, restored, 2)
	assert.Equal(t, 2, restored[0].(map[string]any)["Quantity"])
}

func TestProject_MissingCollectionYieldsEmpty(t *testing.T) {
	graph, order := buildOrderGraph()

	s := compile(t, graph, order, &expr.Shape{
		TargetName: "OrderView",
		Fields: []expr.ShapeField{
			{Name: "Items", Expr: &expr.ProjectEach{
				Source: chainAt("p", "Items"),
				Var:    "e",
				Body: &expr.Shape{
					TargetName: "ItemView",
					Fields: []expr.ShapeField{
						{Name: "Qty", Expr: chainAt("e", "Quantity")},
					},
				},
			}},
		},
	})

	out := Project(s, map[string]any{})

	assert.Equal(t, []any{}, out["Items"], "absent source collections project to empty, never nil")
}

func TestProject_GroupingAndAggregates(t *testing.T) {
	graph, order := buildOrderGraph()

	groupVar := &expr.Param{Name: "g"}

	s := compile(t, graph, order, &expr.Shape{
		TargetName: "OrderSummary",
		Fields: []expr.ShapeField{
			{Name: "Lines", Expr: &expr.ProjectEach{
				Source: &expr.GroupBy{
					Source: chainAt("p", "Items"),
					Var:    "g",
					Key:    &expr.Member{Recv: &expr.Member{Recv: groupVar, Name: "Product"}, Name: "SKU"},
				},
				Var: "g",
				Body: &expr.Shape{
					TargetName: "SKULine",
					Fields: []expr.ShapeField{
						{Name: "SKU", Expr: &expr.Member{Recv: groupVar, Name: "SKU"}},
						{Name: "Total", Expr: &expr.Aggregate{
							Recv: groupVar, Op: "Sum", Var: "e",
							Body: chainAt("e", "UnitPrice"),
						}},
						{Name: "Count", Expr: &expr.Aggregate{Recv: groupVar, Op: "Count"}},
					},
				},
			}},
		},
	})

	src := map[string]any{
		"Items": []any{
			map[string]any{"Product": map[string]any{"SKU": "A"}, "UnitPrice": int64(100)},
			map[string]any{"Product": map[string]any{"SKU": "B"}, "UnitPrice": int64(50)},
			map[string]any{"Product": map[string]any{"SKU": "A"}, "UnitPrice": int64(25)},
		},
	}

	out := Project(s, src)

	lines, ok := out["Lines"].([]any)
	require.True(t, ok)
	require.Len(t, lines, 2, "two distinct keys")

	// First-seen key order.
	a := lines[0].(map[string]any)
	assert.Equal(t, "A", a["SKU"])
	assert.Equal(t, float64(125), a["Total"])
	assert.Equal(t, 2, a["Count"])

	b := lines[1].(map[string]any)
	assert.Equal(t, "B", b["SKU"])
	assert.Equal(t, float64(50), b["Total"])
	assert.Equal(t, 1, b["Count"])
}

func TestProject_FlattenReproject(t *testing.T) {
	b := schema.NewBuilder()

	line := b.Struct("projection-generator/warehouse", "StockLine",
		schema.Field("SKU", schema.Basic("string")),
		schema.Field("Quantity", schema.Basic("int")),
	)
	bin := b.Struct("projection-generator/warehouse", "Bin",
		schema.Field("Label", schema.Basic("string")),
		schema.Field("Lines", schema.SliceOf(line)),
	)
	wh := b.Struct("projection-generator/warehouse", "Warehouse",
		schema.Field("Code", schema.Basic("string")),
		schema.Field("Bins", schema.SliceOf(bin)),
	)

	s := compile(t, b.Graph(), wh, &expr.Shape{
		TargetName: "StockReport",
		Fields: []expr.ShapeField{
			{Name: "AllLines", Expr: &expr.Flatten{
				Source: chainAt("p", "Bins"),
				Var:    "o",
				Body: &expr.ProjectEach{
					Source: chainAt("o", "Lines"),
					Var:    "e",
					Body: &expr.Shape{
						TargetName: "LineView",
						Fields: []expr.ShapeField{
							{Name: "SKU", Expr: chainAt("e", "SKU")},
							{Name: "Qty", Expr: chainAt("e", "Quantity")},
						},
					},
				},
			}},
		},
	})

	src := map[string]any{
		"Bins": []any{
			map[string]any{"Lines": []any{
				map[string]any{"SKU": "A", "Quantity": 1},
				map[string]any{"SKU": "B", "Quantity": 2},
			}},
			map[string]any{"Lines": []any{
				map[string]any{"SKU": "C", "Quantity": 3},
			}},
		},
	}

	out := Project(s, src)

	all, ok := out["AllLines"].([]any)
	require.True(t, ok)
	require.Len(t, all, 3, "both levels merge into one sequence")

	assert.Equal(t, "A", all[0].(map[string]any)["SKU"])
	assert.Equal(t, "C", all[2].(map[string]any)["SKU"])
}

func TestProject_DefaultAndCoalesce(t *testing.T) {
	graph, order := buildOrderGraph()

	s := compile(t, graph, order, &expr.Shape{
		TargetName: "OrderView",
		Fields: []expr.ShapeField{
			{Name: "Id", Expr: chainAt("p", "Id")},
			{Name: "CustomerName", Expr: chainAt("p", "Customer?.Name"), Default: &expr.Literal{Text: `"unknown"`}},
		},
	})

	out := Project(s, map[string]any{"Id": int64(7)})

	assert.Equal(t, "unknown", out["CustomerName"])
}

func TestInvert_SkipsComputedFields(t *testing.T) {
	graph, order := buildOrderGraph()

	p := resolve.New(graph)

	s, err := p.Compile(resolve.Site{File: "shapes.yaml", Line: 1}, order, &expr.Shape{
		TargetName: "OrderView",
		Fields: []expr.ShapeField{
			{Name: "Id", Expr: chainAt("p", "Id")},
			{Name: "Doubled", Expr: &expr.Binary{
				Op:    "*",
				Left:  chainAt("p", "Id"),
				Right: &expr.Literal{Text: "2"},
			}},
		},
	})
	require.NoError(t, err)

	back := Invert(s, map[string]any{"Id": int64(3), "Doubled": float64(6)})

	assert.Equal(t, int64(3), back["Id"])

	_, present := back["Doubled"]
	assert.False(t, present, "computed values have no source path to write back")
}

func TestSetPath_CreatesIntermediates(t *testing.T) {
	m := map[string]any{}

	setPath(m, []string{"Customer", "Address", "City", "Name"}, "Lyon")

	city := m["Customer"].(map[string]any)["Address"].(map[string]any)["City"].(map[string]any)

	assert.Equal(t, "Lyon", city["Name"])
}

package gen

import (
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
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
		schema.Field("PriceCents", schema.Basic("int64")),
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

func chain(root, path string) expr.Node {
	var n expr.Node = &expr.Param{Name: root}

	for _, seg := range strings.Split(strings.ReplaceAll(path, "?.", ".?"), ".") {
		nullSafe := strings.HasPrefix(seg, "?")
		n = &expr.Member{Recv: n, Name: strings.TrimPrefix(seg, "?"), NullSafe: nullSafe}
	}

	return n
}

func compileShape(t *testing.T, graph *schema.TypeGraph, source *schema.TypeInfo, sh *expr.Shape) *structure.Structure {
	t.Helper()

	p := resolve.New(graph)

	s, err := p.Compile(resolve.Site{File: "test.yaml", Line: 1}, source, sh)
	require.NoError(t, err)
	require.True(t, p.Diags.IsValid(), "diagnostics: %v", p.Diags.Errors)

	return s
}

func orderViewShape() *expr.Shape {
	return &expr.Shape{
		TargetName: "OrderView",
		Fields: []expr.ShapeField{
			{Name: "Id", Expr: chain("p", "Id")},
			{Name: "CustomerName", Expr: chain("p", "Customer?.Name")},
			{Name: "CustomerCity", Expr: chain("p", "Customer?.Address?.City?.Name")},
		},
	}
}

func TestGenerate_ForwardGuardsAndDefaults(t *testing.T) {
	graph, order := buildOrderGraph()
	s := compileShape(t, graph, order, orderViewShape())

	g := NewGenerator(DefaultConfig(), graph)
	g.cfg.OutputDir = t.TempDir()

	file, err := g.Generate(s, StrategyInline)
	require.NoError(t, err)

	code := string(file.Content)

	assert.Contains(t, code, "package projections")
	assert.Contains(t, code, `"projection-generator/store"`)

	// Type definition with nullable fields as pointers.
	assert.Contains(t, code, "type OrderView struct {")
	assert.Regexp(t, `Id\s+int64`, code)
	assert.Contains(t, code, "CustomerName *string")
	assert.Contains(t, code, "CustomerCity *string")

	// Forward build with a guard conjunction per intermediate hop.
	assert.Contains(t, code, "func BuildOrderView(in store.Order) OrderView")
	assert.Contains(t, code, "out.Id = in.Id")
	assert.Contains(t, code, "if in.Customer != nil {")
	assert.Contains(t, code, "if in.Customer != nil && in.Customer.Address != nil && in.Customer.Address.City != nil {")
	assert.Contains(t, code, "v := in.Customer.Address.City.Name")
	assert.Contains(t, code, "return nil")
}

func TestGenerate_ReverseLazyInstantiation(t *testing.T) {
	graph, order := buildOrderGraph()
	s := compileShape(t, graph, order, orderViewShape())

	g := NewGenerator(DefaultConfig(), graph)
	g.cfg.OutputDir = t.TempDir()

	file, err := g.Generate(s, StrategyInline)
	require.NoError(t, err)

	code := string(file.Content)

	assert.Contains(t, code, "func InvertOrderView(out OrderView) store.Order")
	assert.Contains(t, code, "src.Id = out.Id")

	// Intermediates instantiate lazily, in path order, only when the
	// projected value is present.
	assert.Contains(t, code, "if out.CustomerName != nil {")
	assert.Contains(t, code, "src.Customer = &store.Customer{}")
	assert.Contains(t, code, "src.Customer.Name = *out.CustomerName")
	assert.Contains(t, code, "src.Customer.Address = &store.Address{}")
	assert.Contains(t, code, "src.Customer.Address.City = &store.City{}")
	assert.Contains(t, code, "src.Customer.Address.City.Name = *out.CustomerCity")
}

func TestGenerate_NestedCollection(t *testing.T) {
	graph, order := buildOrderGraph()

	sh := &expr.Shape{
		TargetName: "OrderView",
		Fields: []expr.ShapeField{
			{Name: "Id", Expr: chain("p", "Id")},
			{Name: "Items", Expr: &expr.ProjectEach{
				Source: chain("p", "Items"),
				Var:    "e",
				Body: &expr.Shape{
					TargetName: "ItemView",
					Fields: []expr.ShapeField{
						{Name: "Product", Expr: chain("e", "Product?.Name")},
						{Name: "Qty", Expr: chain("e", "Quantity")},
					},
				},
			}},
		},
	}

	s := compileShape(t, graph, order, sh)

	g := NewGenerator(DefaultConfig(), graph)
	g.cfg.OutputDir = t.TempDir()

	file, err := g.Generate(s, StrategyInline)
	require.NoError(t, err)

	code := string(file.Content)

	// Nested type emitted once, before the root.
	assert.Contains(t, code, "type ItemView struct {")
	assert.Contains(t, code, "Items []ItemView")

	// Element-wise loop with the empty-collection fallback.
	assert.Contains(t, code, "if in.Items == nil {")
	assert.Contains(t, code, "return []ItemView{}")
	assert.Contains(t, code, "dst = append(dst, BuildItemView(e))")

	// Reverse inverts element-wise into the declared source collection.
	assert.Contains(t, code, "dst = append(dst, InvertItemView(e))")
	assert.Contains(t, code, "src.Items = dst")
}

func TestGenerate_NestedObjectNullable(t *testing.T) {
	graph, order := buildOrderGraph()

	sh := &expr.Shape{
		TargetName: "OrderView",
		Fields: []expr.ShapeField{
			{Name: "Customer", Expr: &expr.Shape{
				Source:     &expr.Member{Recv: &expr.Param{Name: "p"}, Name: "Customer", NullSafe: true},
				TargetName: "CustomerView",
				Fields: []expr.ShapeField{
					{Name: "Name", Expr: chain("p", "Name")},
				},
			}},
		},
	}

	s := compileShape(t, graph, order, sh)

	g := NewGenerator(DefaultConfig(), graph)
	g.cfg.OutputDir = t.TempDir()

	file, err := g.Generate(s, StrategyInline)
	require.NoError(t, err)

	code := string(file.Content)

	assert.Contains(t, code, "Customer *CustomerView")
	assert.Contains(t, code, "if in.Customer != nil {")
	assert.Contains(t, code, "v := BuildCustomerView(*in.Customer)")
	assert.Contains(t, code, "return &v")
}

func TestGenerate_PrebuiltRegistersTransform(t *testing.T) {
	graph, order := buildOrderGraph()
	s := compileShape(t, graph, order, orderViewShape())

	g := NewGenerator(DefaultConfig(), graph)
	g.cfg.OutputDir = t.TempDir()

	file, err := g.Generate(s, StrategyPrebuilt)
	require.NoError(t, err)

	code := string(file.Content)

	assert.Contains(t, code, "var BuildOrderView = func() func(store.Order) OrderView {")
	assert.Contains(t, code, "transform.MustRegister(fn)")
	assert.Contains(t, code, `"projection-generator/transform"`)
}

func TestSelectStrategy_Downgrades(t *testing.T) {
	named := structure.New(nil, "OrderView", []structure.Field{
		{Name: "Id", Expr: chain("p", "Id"), Type: schema.Basic("int64")},
	})
	assert.Equal(t, StrategyPrebuilt, SelectStrategy(named, StrategyPrebuilt))

	anonymous := structure.New(nil, "", named.Fields)
	assert.Equal(t, StrategyInline, SelectStrategy(anonymous, StrategyPrebuilt),
		"in-place-inferred target types cannot be prebuilt")

	captured := structure.New(nil, "OrderView", []structure.Field{
		{Name: "Tag", Expr: &expr.Capture{Name: "tag", TypeName: "string"}, Type: schema.Basic("string")},
	})
	assert.Equal(t, StrategyInline, SelectStrategy(captured, StrategyPrebuilt),
		"captured variables must be bound per call")
}

func TestGenerate_GroupedSequence(t *testing.T) {
	graph, order := buildOrderGraph()

	groupVar := &expr.Param{Name: "g"}

	sh := &expr.Shape{
		TargetName: "OrderSummary",
		Fields: []expr.ShapeField{
			{Name: "Lines", Expr: &expr.ProjectEach{
				Source: &expr.GroupBy{
					Source: chain("p", "Items"),
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
							Body: chain("e", "UnitPrice"),
						}},
						{Name: "Count", Expr: &expr.Aggregate{Recv: groupVar, Op: "Count"}},
					},
				},
			}},
		},
	}

	s := compileShape(t, graph, order, sh)

	g := NewGenerator(DefaultConfig(), graph)
	g.cfg.OutputDir = t.TempDir()

	file, err := g.Generate(s, StrategyInline)
	require.NoError(t, err)

	code := string(file.Content)

	// Synthetic group input type plus runtime bucketing.
	assert.Contains(t, code, "type SKULine struct {")
	assert.Contains(t, code, "grp.Items = append(grp.Items,")
	assert.Contains(t, code, "order = append(order, k)")
	assert.Contains(t, code, "dst = append(dst, BuildSKULine(groups[k]))")

	// Key members read through the synthetic Key field; aggregates range
	// over the element sequence.
	assert.Contains(t, code, "in.Key.SKU")
	assert.Contains(t, code, "for _, e := range in.Items {")
	assert.Contains(t, code, "acc += int64(e.UnitPrice)")
	assert.Contains(t, code, "len(in.Items)")

	spew.Dump(file.Filename)
}

func TestWriteFiles(t *testing.T) {
	dir := t.TempDir()

	files := []*File{{Filename: "orderview_projection.go", Content: []byte("package projections\n")}}

	require.NoError(t, WriteFiles(files, dir))
}

func TestGenerate_NullableAggregate(t *testing.T) {
	b := schema.NewBuilder()

	line := b.Struct(storePkg, "LedgerLine",
		schema.Field("Amount", schema.Basic("int64")),
	)
	account := b.Struct(storePkg, "Account",
		schema.Field("Lines", schema.SliceOf(line)),
	)
	holder := b.Struct(storePkg, "AccountHolder",
		schema.Field("Name", schema.Basic("string")),
		schema.NullableField("Account", account),
	)

	graph := b.Graph()

	sh := &expr.Shape{
		TargetName: "HolderView",
		Fields: []expr.ShapeField{
			{Name: "Total", Expr: &expr.Aggregate{
				Recv: chain("p", "Account?.Lines"), Op: "Sum", Var: "e",
				Body: chain("e", "Amount"),
			}},
			{Name: "Moves", Expr: &expr.Aggregate{Recv: chain("p", "Account?.Lines"), Op: "Count"}},
		},
	}

	s := compileShape(t, graph, holder, sh)

	g := NewGenerator(DefaultConfig(), graph)
	g.cfg.OutputDir = t.TempDir()

	file, err := g.Generate(s, StrategyInline)
	require.NoError(t, err)

	code := string(file.Content)

	// Null-safe receiver makes the fields pointers; accumulation still
	// runs in the value type and the result's address is returned.
	assert.Contains(t, code, "Total *int64")
	assert.Contains(t, code, "Moves *int")
	assert.Contains(t, code, "if in.Account == nil {")
	assert.Contains(t, code, "var acc int64")
	assert.Contains(t, code, "acc += int64(e.Amount)")
	assert.Contains(t, code, "return &acc")
	assert.Contains(t, code, "n := int(len(in.Account.Lines))")
	assert.Contains(t, code, "return &n")
	assert.NotContains(t, code, "*int64(")
}

func TestGenerate_ConditionalGuardsBranchChains(t *testing.T) {
	graph, order := buildOrderGraph()

	sh := &expr.Shape{
		TargetName: "OrderTag",
		Fields: []expr.ShapeField{
			{Name: "Id", Expr: chain("p", "Id")},
			{Name: "Tag", Expr: &expr.Conditional{
				Cond: &expr.Binary{Left: chain("p", "Id"), Op: ">", Right: &expr.Literal{Text: "0"}},
				Then: chain("p", "Customer?.Name"),
				Else: chain("p", "Customer?.Address?.Street"),
			}},
		},
	}

	s := compileShape(t, graph, order, sh)

	g := NewGenerator(DefaultConfig(), graph)
	g.cfg.OutputDir = t.TempDir()

	file, err := g.Generate(s, StrategyInline)
	require.NoError(t, err)

	code := string(file.Content)

	assert.Contains(t, code, "Tag *string")

	// Each branch chain keeps its own nil guards and null fallback.
	assert.Contains(t, code, "if in.Customer != nil {")
	assert.Contains(t, code, "v := in.Customer.Name")
	assert.Contains(t, code, "if in.Customer != nil && in.Customer.Address != nil {")
	assert.Contains(t, code, "v := in.Customer.Address.Street")
	assert.Contains(t, code, "return &v")
	assert.NotContains(t, code, "return in.Customer.Name")
}

func TestGenerate_ByteIdenticalAcrossRuns(t *testing.T) {
	graph, order := buildOrderGraph()

	emit := func() string {
		sh := &expr.Shape{
			TargetName: "OrderView",
			Fields: []expr.ShapeField{
				{Name: "Id", Expr: chain("p", "Id")},
				{Name: "CustomerName", Expr: chain("p", "Customer?.Name")},
				{Name: "Items", Expr: &expr.ProjectEach{
					Source: chain("p", "Items"),
					Var:    "e",
					Body: &expr.Shape{
						TargetName: "ItemView",
						Fields: []expr.ShapeField{
							{Name: "Product", Expr: chain("e", "Product?.Name")},
							{Name: "Qty", Expr: chain("e", "Quantity")},
						},
					},
				}},
			},
		}

		s := compileShape(t, graph, order, sh)

		g := NewGenerator(DefaultConfig(), graph)
		g.cfg.OutputDir = t.TempDir()

		file, err := g.Generate(s, StrategyInline)
		require.NoError(t, err)

		return string(file.Content)
	}

	assert.Equal(t, emit(), emit())
}

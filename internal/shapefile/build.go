package shapefile

import (
	"errors"
	"fmt"

	"projection-generator/internal/common"
	"projection-generator/internal/expr"
	"projection-generator/internal/shape"
)

// Param names used for lambda scopes in built expressions.
const (
	rootVar  = "p"
	elemVar  = "e"
	outerVar = "o"
	groupVar = "g"
)

// Build converts a declarative shape definition into an expression tree
// the compile pipeline accepts.
func Build(def *ShapeDef) (*expr.Shape, error) {
	return buildShape(def, nil)
}

func buildShape(def *ShapeDef, source expr.Node) (*expr.Shape, error) {
	if common.IsEmpty(def.Fields) {
		return nil, fmt.Errorf("shape %s: no fields", def.Name)
	}

	out := &expr.Shape{
		Source:     source,
		Var:        rootVar,
		TargetName: def.Name,
	}

	for _, fd := range def.Fields {
		e, dflt, err := buildField(&fd.Spec)
		if err != nil {
			return nil, fmt.Errorf("shape %s, field %s: %w", def.Name, fd.Name, err)
		}

		out.Fields = append(out.Fields, expr.ShapeField{Name: fd.Name, Expr: e, Default: dflt})
	}

	return out, nil
}

// buildField translates one field spec into an expression, dispatching on
// which modifier keys are present.
func buildField(spec *FieldSpec) (expr.Node, expr.Node, error) {
	if err := checkExclusive(spec); err != nil {
		return nil, nil, err
	}

	var dflt expr.Node
	if spec.Default != "" {
		dflt = &expr.Literal{Text: spec.Default}
	}

	root := &expr.Param{Name: rootVar}

	var (
		e   expr.Node
		err error
	)

	switch {
	case spec.Agg != "":
		e, err = buildAggregate(spec, root)

	case spec.Group != "":
		e, err = buildGroup(spec, root)

	case spec.Flatten != "":
		e, err = buildFlatten(spec, root)

	case spec.Each != "":
		e, err = buildEach(spec, root)

	case spec.Shape != nil:
		e, err = buildObject(spec, root)

	case spec.Path != "":
		e, err = ParseChain(root, spec.Path)

	default:
		return nil, nil, errors.New("field defines no path or modifier")
	}

	if err != nil {
		return nil, nil, err
	}

	if spec.Collect != "" {
		kind, kerr := collectKind(spec.Collect)
		if kerr != nil {
			return nil, nil, kerr
		}

		e = &expr.Materialize{Source: e, Into: kind}
	}

	return e, dflt, nil
}

func buildAggregate(spec *FieldSpec, root expr.Node) (expr.Node, error) {
	if !shape.IsKnownAggregate(spec.Agg) {
		return nil, fmt.Errorf("unknown aggregate %q", spec.Agg)
	}

	recv := root

	if spec.Over != "" {
		var err error

		recv, err = ParseChain(root, spec.Over)
		if err != nil {
			return nil, err
		}
	}

	agg := &expr.Aggregate{Recv: recv, Op: spec.Agg, Var: elemVar}

	if spec.Of != "" {
		body, err := ParseChain(&expr.Param{Name: elemVar}, spec.Of)
		if err != nil {
			return nil, err
		}

		agg.Body = body
	}

	return agg, nil
}

func buildGroup(spec *FieldSpec, root expr.Node) (expr.Node, error) {
	if spec.By == "" {
		return nil, errors.New("group requires a by key path")
	}

	if spec.Shape == nil {
		return nil, errors.New("group requires a nested shape")
	}

	src, err := ParseChain(root, spec.Group)
	if err != nil {
		return nil, err
	}

	key, err := ParseChain(&expr.Param{Name: groupVar}, spec.By)
	if err != nil {
		return nil, err
	}

	body, err := buildShape(spec.Shape, nil)
	if err != nil {
		return nil, err
	}

	body.Var = groupVar

	return &expr.ProjectEach{
		Source: &expr.GroupBy{Source: src, Var: groupVar, Key: key},
		Var:    groupVar,
		Body:   body,
	}, nil
}

func buildFlatten(spec *FieldSpec, root expr.Node) (expr.Node, error) {
	outer, err := ParseChain(root, spec.Flatten)
	if err != nil {
		return nil, err
	}

	innerRoot := expr.Node(&expr.Param{Name: outerVar})

	inner := innerRoot
	if spec.Each != "" {
		inner, err = ParseChain(innerRoot, spec.Each)
		if err != nil {
			return nil, err
		}
	}

	if spec.Shape == nil {
		// Pure flatten: elements keep their original type.
		return &expr.Flatten{Source: outer, Var: outerVar, Body: inner}, nil
	}

	body, err := buildShape(spec.Shape, nil)
	if err != nil {
		return nil, err
	}

	body.Var = elemVar

	return &expr.Flatten{
		Source: outer,
		Var:    outerVar,
		Body:   &expr.ProjectEach{Source: inner, Var: elemVar, Body: body},
	}, nil
}

func buildEach(spec *FieldSpec, root expr.Node) (expr.Node, error) {
	if spec.Shape == nil {
		return nil, errors.New("each requires a nested shape")
	}

	src, err := ParseChain(root, spec.Each)
	if err != nil {
		return nil, err
	}

	body, err := buildShape(spec.Shape, nil)
	if err != nil {
		return nil, err
	}

	body.Var = elemVar

	return &expr.ProjectEach{Source: src, Var: elemVar, Body: body}, nil
}

func buildObject(spec *FieldSpec, root expr.Node) (expr.Node, error) {
	var source expr.Node

	if spec.Path != "" {
		var err error

		source, err = ParseChain(root, spec.Path)
		if err != nil {
			return nil, err
		}
	}

	return buildShape(spec.Shape, source)
}

// checkExclusive rejects modifier combinations with no defined meaning.
func checkExclusive(spec *FieldSpec) error {
	modifiers := 0

	for _, set := range []bool{spec.Agg != "", spec.Group != "", spec.Flatten != ""} {
		if set {
			modifiers++
		}
	}

	if modifiers > 1 {
		return errors.New("agg, group and flatten are mutually exclusive")
	}

	if spec.Each != "" && (spec.Agg != "" || spec.Group != "") {
		return errors.New("each cannot combine with agg or group")
	}

	if spec.Path != "" && (spec.Each != "" || spec.Flatten != "" || spec.Group != "") {
		return errors.New("path cannot combine with collection modifiers")
	}

	return nil
}

func collectKind(s string) (expr.CollectionKind, error) {
	switch s {
	case "list":
		return expr.CollectList, nil
	case "array":
		return expr.CollectArray, nil
	case "set":
		return expr.CollectSet, nil
	case "seq":
		return expr.CollectSeq, nil
	default:
		return 0, fmt.Errorf("unknown collect kind %q", s)
	}
}

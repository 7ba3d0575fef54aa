package gen

import (
	"fmt"
	"strings"

	"projection-generator/internal/expr"
	"projection-generator/internal/schema"
	"projection-generator/internal/structure"
)

// aggregateAssign renders a known aggregate over a collection-valued
// receiver as an explicit accumulation loop. Grouped-sequence sources
// aggregate over the element sequence, never the wrapper.
func (g *Generator) aggregateAssign(s *structure.Structure, f *structure.Field, agg *expr.Aggregate, target, fieldType string) string {
	recv, guards, elem := g.aggregateRecv(s, agg)

	elemVar := agg.Var
	if elemVar == "" {
		elemVar = "e"
	}

	body := ""
	if agg.Body != nil {
		body = g.render(s, agg.Body, elemVar)
	}

	// Accumulation always runs in the value type; a field made nullable
	// by a null-safe hop on the receiver takes the result's address.
	valType := strings.TrimPrefix(fieldType, "*")
	pointer := valType != fieldType

	var core string

	switch agg.Op {
	case "Count":
		core = g.countCore(recv, elemVar, body, valType, pointer)

	case "Sum":
		core = g.sumCore(recv, elemVar, body, valType, pointer)

	case "Average":
		core = g.averageCore(recv, elemVar, body, valType, pointer)

	case "Min", "Max":
		core = g.minMaxCore(recv, elemVar, body, valType, agg.Op, elem, pointer)

	case "First", "Last":
		core = g.firstLastCore(recv, elemVar, body, fieldType, agg.Op, f.Nullable)

	case "Any":
		core = g.anyCore(recv, elemVar, body, pointer)

	case "All":
		core = g.allCore(recv, elemVar, body, pointer)

	default:
		return fmt.Sprintf("\t// unsupported aggregate %q for %s\n", agg.Op, f.Name)
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("\t%s = func() %s {\n", target, fieldType))

	if len(guards) > 0 {
		sb.WriteString(fmt.Sprintf("\t\tif %s {\n\t\t\treturn %s\n\t\t}\n",
			strings.Join(negateAll(guards), " || "), g.zeroValue(fieldType)))
	}

	sb.WriteString(core)
	sb.WriteString("\t}()\n")

	return sb.String()
}

// aggregateRecv resolves the collection the aggregate ranges over.
func (g *Generator) aggregateRecv(s *structure.Structure, agg *expr.Aggregate) (recv string, guards []string, elem *schema.TypeInfo) {
	grouped := s.Source != nil && s.Source.Deref().Kind == schema.TypeKindGroup

	if _, hops, ok := expr.Chain(agg.Recv); ok {
		if len(hops) == 0 {
			if grouped {
				return "in.Items", nil, s.Source.Deref().ElemType
			}

			return "in", nil, s.Source.Elem()
		}

		acc := g.chainAccess(s.Source, "in", hops)

		if acc.LeafType != nil {
			elem = acc.LeafType.Elem()
		}

		return acc.Expr, acc.Guards, elem
	}

	return g.render(s, agg.Recv, "in"), nil, nil
}

// coreReturn returns the accumulator, taking its address when the
// field resolved to a pointer type.
func coreReturn(v string, pointer bool) string {
	if pointer {
		return fmt.Sprintf("\t\treturn &%s\n", v)
	}

	return fmt.Sprintf("\t\treturn %s\n", v)
}

func (g *Generator) countCore(recv, elemVar, body, valType string, pointer bool) string {
	if body == "" {
		if pointer {
			return fmt.Sprintf("\t\tn := %s(len(%s))\n\t\treturn &n\n", valType, recv)
		}

		return fmt.Sprintf("\t\treturn %s(len(%s))\n", valType, recv)
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("\t\tn := %s(0)\n", valType))
	sb.WriteString(fmt.Sprintf("\t\tfor _, %s := range %s {\n", elemVar, recv))
	sb.WriteString(fmt.Sprintf("\t\t\tif %s {\n\t\t\t\tn++\n\t\t\t}\n", body))
	sb.WriteString("\t\t}\n")
	sb.WriteString(coreReturn("n", pointer))

	return sb.String()
}

func (g *Generator) sumCore(recv, elemVar, body, valType string, pointer bool) string {
	if body == "" {
		body = elemVar
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("\t\tvar acc %s\n", valType))
	sb.WriteString(fmt.Sprintf("\t\tfor _, %s := range %s {\n", elemVar, recv))
	sb.WriteString(fmt.Sprintf("\t\t\tacc += %s(%s)\n", valType, body))
	sb.WriteString("\t\t}\n")
	sb.WriteString(coreReturn("acc", pointer))

	return sb.String()
}

func (g *Generator) averageCore(recv, elemVar, body, valType string, pointer bool) string {
	if body == "" {
		body = elemVar
	}

	empty := "0"
	if pointer {
		empty = "nil"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("\t\tif len(%s) == 0 {\n\t\t\treturn %s\n\t\t}\n", recv, empty))
	sb.WriteString("\t\tvar acc float64\n")
	sb.WriteString(fmt.Sprintf("\t\tfor _, %s := range %s {\n", elemVar, recv))
	sb.WriteString(fmt.Sprintf("\t\t\tacc += float64(%s)\n", body))
	sb.WriteString("\t\t}\n")

	if pointer {
		sb.WriteString(fmt.Sprintf("\t\tv := %s(acc / float64(len(%s)))\n\t\treturn &v\n", valType, recv))
	} else {
		sb.WriteString(fmt.Sprintf("\t\treturn %s(acc / float64(len(%s)))\n", valType, recv))
	}

	return sb.String()
}

func (g *Generator) minMaxCore(recv, elemVar, body, valType, op string, elem *schema.TypeInfo, pointer bool) string {
	if body == "" {
		body = elemVar
	}

	cmp := "<"
	if op == "Max" {
		cmp = ">"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("\t\tvar best %s\n", valType))
	sb.WriteString(fmt.Sprintf("\t\tfor i, %s := range %s {\n", elemVar, recv))
	sb.WriteString(fmt.Sprintf("\t\t\tv := %s(%s)\n", valType, body))
	sb.WriteString(fmt.Sprintf("\t\t\tif i == 0 || v %s best {\n\t\t\t\tbest = v\n\t\t\t}\n", cmp))
	sb.WriteString("\t\t}\n")
	sb.WriteString(coreReturn("best", pointer))

	return sb.String()
}

func (g *Generator) firstLastCore(recv, elemVar, body, fieldType, op string, nullable bool) string {
	idx := "0"
	if op == "Last" {
		idx = fmt.Sprintf("len(%s)-1", recv)
	}

	pointer := nullable && strings.HasPrefix(fieldType, "*")

	empty := g.zeroValue(fieldType)
	if pointer {
		empty = "nil"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("\t\tif len(%s) == 0 {\n\t\t\treturn %s\n\t\t}\n", recv, empty))

	pick := fmt.Sprintf("%s[%s]", recv, idx)
	if body != "" {
		sb.WriteString(fmt.Sprintf("\t\t%s := %s\n", elemVar, pick))
		pick = body
	}

	if pointer {
		sb.WriteString(fmt.Sprintf("\t\tv := %s\n\t\treturn &v\n", pick))
	} else {
		sb.WriteString(fmt.Sprintf("\t\treturn %s\n", pick))
	}

	return sb.String()
}

func (g *Generator) anyCore(recv, elemVar, body string, pointer bool) string {
	if body == "" {
		if pointer {
			return fmt.Sprintf("\t\tv := len(%s) > 0\n\t\treturn &v\n", recv)
		}

		return fmt.Sprintf("\t\treturn len(%s) > 0\n", recv)
	}

	var sb strings.Builder

	if pointer {
		sb.WriteString("\t\tok := false\n")
		sb.WriteString(fmt.Sprintf("\t\tfor _, %s := range %s {\n", elemVar, recv))
		sb.WriteString(fmt.Sprintf("\t\t\tif %s {\n\t\t\t\tok = true\n\t\t\t\tbreak\n\t\t\t}\n", body))
		sb.WriteString("\t\t}\n\t\treturn &ok\n")

		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("\t\tfor _, %s := range %s {\n", elemVar, recv))
	sb.WriteString(fmt.Sprintf("\t\t\tif %s {\n\t\t\t\treturn true\n\t\t\t}\n", body))
	sb.WriteString("\t\t}\n\t\treturn false\n")

	return sb.String()
}

func (g *Generator) allCore(recv, elemVar, body string, pointer bool) string {
	if body == "" {
		if pointer {
			return "\t\tv := true\n\t\treturn &v\n"
		}

		return "\t\treturn true\n"
	}

	var sb strings.Builder

	if pointer {
		sb.WriteString("\t\tok := true\n")
		sb.WriteString(fmt.Sprintf("\t\tfor _, %s := range %s {\n", elemVar, recv))
		sb.WriteString(fmt.Sprintf("\t\t\tif !(%s) {\n\t\t\t\tok = false\n\t\t\t\tbreak\n\t\t\t}\n", body))
		sb.WriteString("\t\t}\n\t\treturn &ok\n")

		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("\t\tfor _, %s := range %s {\n", elemVar, recv))
	sb.WriteString(fmt.Sprintf("\t\t\tif !(%s) {\n\t\t\t\treturn false\n\t\t\t}\n", body))
	sb.WriteString("\t\t}\n\t\treturn true\n")

	return sb.String()
}

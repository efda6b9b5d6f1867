package shader

import (
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
)

// lowerSource runs the naga front end over source and returns its IR, or nil when the source does
// not lower. Callers fall back to the textual reflection in that case.
func lowerSource(source string) *ir.Module {
	ast, err := naga.Parse(source)
	if err != nil {
		return nil
	}
	mod, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil
	}
	return mod
}

// irEntryPoints converts the vertex, fragment and compute entry points of mod, in source order.
func irEntryPoints(mod *ir.Module) []EntryPoint {
	entries := make([]EntryPoint, 0, len(mod.EntryPoints))
	for _, ep := range mod.EntryPoints {
		e := EntryPoint{Name: ep.Name, WorkgroupSize: [3]uint32{1, 1, 1}}
		switch ep.Stage {
		case ir.StageCompute:
			e.Stage = StageCompute
			e.WorkgroupSize = ep.Workgroup
		case ir.StageVertex:
			e.Stage = StageVertex
		case ir.StageFragment:
			e.Stage = StageFragment
		default:
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

// irVertexInputs collects the @location inputs of every vertex entry point. An input may be a
// parameter of the entry function or a member of a struct parameter.
func irVertexInputs(mod *ir.Module) []VertexInput {
	var inputs []VertexInput
	add := func(name string, binding *ir.Binding, th ir.TypeHandle) {
		if binding == nil {
			return
		}
		loc, ok := (*binding).(ir.LocationBinding)
		if !ok {
			return
		}
		typeName := irTypeName(mod, th)
		info, ok := wgslVertexFormatMap[typeName]
		if !ok {
			return
		}
		inputs = append(inputs, VertexInput{
			Name:     name,
			Location: loc.Location,
			Type:     typeName,
			Format:   info.format,
			Size:     info.size,
		})
	}

	for _, ep := range mod.EntryPoints {
		if ep.Stage != ir.StageVertex {
			continue
		}
		for _, arg := range ep.Function.Arguments {
			if arg.Binding != nil {
				add(arg.Name, arg.Binding, arg.Type)
				continue
			}
			if st, ok := irInner(mod, arg.Type).(ir.StructType); ok {
				for _, m := range st.Members {
					add(m.Name, m.Binding, m.Type)
				}
			}
		}
	}
	return inputs
}

func irInner(mod *ir.Module, th ir.TypeHandle) ir.TypeInner {
	if int(th) >= len(mod.Types) {
		return nil
	}
	return mod.Types[th].Inner
}

// irTypeName spells a scalar or vector type the way wgslVertexFormatMap keys it, e.g. "vec4<f32>".
func irTypeName(mod *ir.Module, th ir.TypeHandle) string {
	switch t := irInner(mod, th).(type) {
	case ir.ScalarType:
		return scalarName(t)
	case ir.VectorType:
		if s := scalarName(t.Scalar); s != "" {
			return fmt.Sprintf("vec%d<%s>", t.Size, s)
		}
	}
	return ""
}

func scalarName(s ir.ScalarType) string {
	if s.Width != 4 {
		return ""
	}
	switch s.Kind {
	case ir.ScalarFloat:
		return "f32"
	case ir.ScalarUint:
		return "u32"
	case ir.ScalarSint:
		return "i32"
	}
	return ""
}

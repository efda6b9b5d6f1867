// Package shader reflects WGSL source: entry points, workgroup sizes, vertex inputs, resource
// bindings and host-shareable struct layouts. Drivers use the reflection to build pipeline layouts
// and to map named attributes, named uniforms and positional kernel arguments onto bindings.
package shader

import (
	"fmt"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// Stage identifies the pipeline stage an entry point belongs to.
type Stage int

const (
	// StageCompute marks a @compute entry point.
	StageCompute Stage = iota
	// StageVertex marks a @vertex entry point.
	StageVertex
	// StageFragment marks a @fragment entry point.
	StageFragment
)

func (s Stage) String() string {
	switch s {
	case StageCompute:
		return "compute"
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	}
	return "unknown"
}

// Visibility returns the wgpu shader stage flag for s.
func (s Stage) Visibility() wgpu.ShaderStage {
	switch s {
	case StageVertex:
		return wgpu.ShaderStageVertex
	case StageFragment:
		return wgpu.ShaderStageFragment
	default:
		return wgpu.ShaderStageCompute
	}
}

// EntryPoint is one shader entry function.
type EntryPoint struct {
	Name          string
	Stage         Stage
	WorkgroupSize [3]uint32
}

// Binding is one @group/@binding resource declaration.
type Binding struct {
	Group        uint32
	Binding      uint32
	AddressSpace string
	Name         string
	Type         string
}

// Field is a struct member placed at its host-shareable offset.
type Field struct {
	Name   string
	Type   string
	Offset uint64
	Size   uint64
}

// StructLayout is the host-shareable layout of a WGSL struct.
type StructLayout struct {
	Name   string
	Size   uint64
	Align  uint64
	Fields []Field
}

// Field returns the member with the given name.
func (s StructLayout) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// VertexInput is one @location input of a vertex entry point.
type VertexInput struct {
	Name     string
	Location uint32
	Type     string
	Format   wgpu.VertexFormat
	Size     uint64
}

// ArgKind tells whether a positional kernel argument is a buffer or a scalar.
type ArgKind int

const (
	ArgBuffer ArgKind = iota
	ArgScalar
)

// KernelArg maps a positional kernel argument onto the module's bindings. Buffer arguments are the
// storage bindings of group 0 in binding order; scalar arguments follow and are the fields of the
// single uniform parameter struct of group 0 in field order.
type KernelArg struct {
	Index   int
	Kind    ArgKind
	Binding uint32
	Name    string
	Type    string
	Offset  uint64
}

// Module is the reflection of one WGSL source.
type Module struct {
	label        string
	entryPoints  []EntryPoint
	bindings     []Binding
	structs      map[string]StructLayout
	vertexInputs []VertexInput
}

// Parse reflects source. Entry points and vertex inputs come from the naga IR when the source
// lowers, and from a textual scan otherwise. Parsing never fails; sources the reflection does not
// understand simply produce fewer entries, and the driver's compiler reports the real error.
//
// Parameters:
//   - label: a name used in error messages
//   - source: the WGSL source
//
// Returns:
//   - *Module: the reflected module
func Parse(label, source string) *Module {
	cleaned := stripComments(source)
	structs := parseStructBlocks(cleaned)
	m := &Module{
		label:    label,
		bindings: parseBindings(cleaned),
		structs:  computeStructLayouts(structs),
	}
	if mod := lowerSource(source); mod != nil {
		m.entryPoints = irEntryPoints(mod)
		m.vertexInputs = irVertexInputs(mod)
	} else {
		m.entryPoints = parseEntryPoints(cleaned)
		m.vertexInputs = parseVertexInputs(structs)
	}
	return m
}

// Label returns the module label.
func (m *Module) Label() string { return m.label }

// EntryPoints returns every entry point in source order.
func (m *Module) EntryPoints() []EntryPoint {
	return append([]EntryPoint(nil), m.entryPoints...)
}

// EntryPointNames returns the names of the entry points of the given stage.
func (m *Module) EntryPointNames(stage Stage) []string {
	var names []string
	for _, ep := range m.entryPoints {
		if ep.Stage == stage {
			names = append(names, ep.Name)
		}
	}
	return names
}

// EntryPoint looks up an entry point by name.
func (m *Module) EntryPoint(name string) (EntryPoint, bool) {
	for _, ep := range m.entryPoints {
		if ep.Name == name {
			return ep, true
		}
	}
	return EntryPoint{}, false
}

// FirstEntryPoint returns the first entry point of the given stage.
func (m *Module) FirstEntryPoint(stage Stage) (EntryPoint, bool) {
	for _, ep := range m.entryPoints {
		if ep.Stage == stage {
			return ep, true
		}
	}
	return EntryPoint{}, false
}

// Bindings returns the resource declarations sorted by group and binding.
func (m *Module) Bindings() []Binding {
	return append([]Binding(nil), m.bindings...)
}

// Struct returns the layout of a named struct.
func (m *Module) Struct(name string) (StructLayout, bool) {
	s, ok := m.structs[name]
	return s, ok
}

// VertexInput looks up a vertex attribute by name.
func (m *Module) VertexInput(name string) (VertexInput, bool) {
	for _, in := range m.vertexInputs {
		if in.Name == name {
			return in, true
		}
	}
	return VertexInput{}, false
}

// UniformMember finds the uniform binding whose struct has a member called name.
//
// Parameters:
//   - name: the member name, e.g. "p_matrix"
//
// Returns:
//   - Binding: the uniform binding holding the member
//   - Field: the member with its offset inside the binding
//   - bool: false if no uniform struct declares the member
func (m *Module) UniformMember(name string) (Binding, Field, bool) {
	for _, b := range m.bindings {
		if b.AddressSpace != "uniform" {
			continue
		}
		if sl, ok := m.structs[b.Type]; ok {
			if f, ok := sl.Field(name); ok {
				return b, f, true
			}
		}
	}
	return Binding{}, Field{}, false
}

// BindingSize returns the minimum byte size of a binding's type, or 0 if it cannot be resolved.
func (m *Module) BindingSize(b Binding) uint64 {
	if l, ok := resolveTypeLayout(b.Type, m.structs); ok {
		return l.size
	}
	return 0
}

// BindGroupLayoutEntries returns the layout entries of the buffer bindings of group, visible to the given stages.
//
// Parameters:
//   - group: the bind group index
//   - visibility: the stage flags to set on each entry
//
// Returns:
//   - []wgpu.BindGroupLayoutEntry: entries sorted by binding
//   - error: error if the group declares a non-buffer resource
func (m *Module) BindGroupLayoutEntries(group uint32, visibility wgpu.ShaderStage) ([]wgpu.BindGroupLayoutEntry, error) {
	var entries []wgpu.BindGroupLayoutEntry
	for _, b := range m.bindings {
		if b.Group != group {
			continue
		}
		entry, ok := classifyBuffer(b.Binding, visibility, b.AddressSpace)
		if !ok {
			return nil, fmt.Errorf("%s: binding %s (@group(%d) @binding(%d)) is not a buffer", m.label, b.Name, b.Group, b.Binding)
		}
		entry.Buffer.MinBindingSize = m.BindingSize(b)
		entries = append(entries, entry)
	}
	return entries, nil
}

// KernelArgs derives the positional argument layout of the module's compute entry points.
//
// Returns:
//   - []KernelArg: buffer arguments followed by scalar arguments
//   - error: error if group 0 has more than one uniform or a uniform member is not a scalar
func (m *Module) KernelArgs() ([]KernelArg, error) {
	var args []KernelArg
	var params *Binding
	for i, b := range m.bindings {
		if b.Group != 0 {
			continue
		}
		switch {
		case strings.HasPrefix(b.AddressSpace, "storage"):
			args = append(args, KernelArg{Index: len(args), Kind: ArgBuffer, Binding: b.Binding, Name: b.Name, Type: b.Type})
		case b.AddressSpace == "uniform":
			if params != nil {
				return nil, fmt.Errorf("%s: more than one uniform parameter block (%s, %s)", m.label, params.Name, b.Name)
			}
			params = &m.bindings[i]
		}
	}
	if params == nil {
		return args, nil
	}

	sl, ok := m.structs[params.Type]
	if !ok {
		return nil, fmt.Errorf("%s: uniform %s has unresolved type %s", m.label, params.Name, params.Type)
	}
	for _, f := range sl.Fields {
		if !scalarTypes[f.Type] {
			return nil, fmt.Errorf("%s: parameter %s.%s has non-scalar type %s", m.label, params.Type, f.Name, f.Type)
		}
		args = append(args, KernelArg{Index: len(args), Kind: ArgScalar, Binding: params.Binding, Name: f.Name, Type: f.Type, Offset: f.Offset})
	}
	return args, nil
}

// ParamsBinding returns the uniform parameter binding of group 0 and its byte size.
func (m *Module) ParamsBinding() (Binding, uint64, bool) {
	for _, b := range m.bindings {
		if b.Group == 0 && b.AddressSpace == "uniform" {
			return b, m.BindingSize(b), true
		}
	}
	return Binding{}, 0, false
}

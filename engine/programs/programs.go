// Package programs provides the WGSL sources of the surface: the compute kernel and the vertex and
// fragment stages. The sources are embedded; a directory holding files of the same names replaces them.
package programs

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
)

const (
	KernelFile   = "surface.wgsl"
	VertexFile   = "shader.vert.wgsl"
	FragmentFile = "shader.frag.wgsl"
)

//go:embed assets/*.wgsl
var assets embed.FS

// Sources holds the three program texts.
type Sources struct {
	Kernel   string
	Vertex   string
	Fragment string
}

// Embedded returns the sources compiled into the binary.
func Embedded() Sources {
	sub, err := fs.Sub(assets, "assets")
	if err != nil {
		panic(err)
	}
	s, err := read(sub)
	if err != nil {
		panic(fmt.Sprintf("embedded programs are incomplete: %v", err))
	}
	return s
}

// Load reads the sources from dir, or returns the embedded sources when dir is empty.
//
// Parameters:
//   - dir: directory containing surface.wgsl, shader.vert.wgsl and shader.frag.wgsl
//
// Returns:
//   - Sources: the program texts
//   - error: error if any file cannot be read
func Load(dir string) (Sources, error) {
	if dir == "" {
		return Embedded(), nil
	}
	return read(os.DirFS(dir))
}

func read(fsys fs.FS) (Sources, error) {
	var s Sources
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{KernelFile, &s.Kernel},
		{VertexFile, &s.Vertex},
		{FragmentFile, &s.Fragment},
	} {
		data, err := fs.ReadFile(fsys, f.name)
		if err != nil {
			return Sources{}, fmt.Errorf("failed to read program %s: %w", f.name, err)
		}
		*f.dst = string(data)
	}
	return s, nil
}

// Package config loads and validates the engine's HCL configuration: the
// data-loading arguments that shape the demo pipeline and the target
// descriptions the convolution-method selection pass consults.
package config

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/embedml/remodel/internal/ctxlog"
	"github.com/embedml/remodel/internal/fsutil"
)

// DataArguments describes the input data a pipeline is built for.
type DataArguments struct {
	// InputPath is the filename of the input data file.
	InputPath string `hcl:"input"`
	// Dimension is the number of elements in an input data vector.
	Dimension int `hcl:"dimension"`
	// Scale is an optional post-processing scale applied to the data.
	// Zero means unset and defaults to 1.
	Scale float64 `hcl:"scale,optional"`
}

// Validate checks the arguments and applies defaults.
func (a *DataArguments) Validate() error {
	if a.InputPath == "" {
		return fmt.Errorf("data block: input path must not be empty")
	}
	if a.Dimension <= 0 {
		return fmt.Errorf("data block: dimension must be positive, got %d", a.Dimension)
	}
	if a.Scale < 0 {
		return fmt.Errorf("data block: scale must not be negative, got %v", a.Scale)
	}
	if a.Scale == 0 {
		a.Scale = 1
	}
	return nil
}

// Target describes the deployment target's relevant capacities. The
// convolution-method selection pass keys its cost decisions off these
// numbers.
type Target struct {
	Name string `hcl:"name,label"`
	// FastMemoryBytes is the capacity of the target's fast (scratch)
	// memory; working buffers larger than this stay in slow memory.
	FastMemoryBytes int64 `hcl:"fast_memory"`
	// VectorWidth is the target's SIMD lane count. Informational for now.
	VectorWidth int `hcl:"vector_width,optional"`
	// Winograd enables the transform-domain convolution strategy.
	Winograd bool `hcl:"winograd,optional"`
}

// Validate checks the target description.
func (t *Target) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("target block: name must not be empty")
	}
	if t.FastMemoryBytes <= 0 {
		return fmt.Errorf("target %q: fast_memory must be positive, got %d", t.Name, t.FastMemoryBytes)
	}
	if t.VectorWidth < 0 {
		return fmt.Errorf("target %q: vector_width must not be negative, got %d", t.Name, t.VectorWidth)
	}
	return nil
}

// DefaultTarget is the fallback used when no target block is configured: a
// generous scratch memory with the transform-domain path disabled.
func DefaultTarget() *Target {
	return &Target{Name: "generic", FastMemoryBytes: 1 << 20}
}

// File is the root of a configuration file.
type File struct {
	Data    *DataArguments `hcl:"data,block"`
	Targets []*Target      `hcl:"target,block"`
}

// Target looks a target up by name.
func (f *File) Target(name string) (*Target, bool) {
	for _, t := range f.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// LoadPath loads configuration from a single .hcl file or, when path is a
// directory, from every .hcl file under it merged in lexical order.
func LoadPath(ctx context.Context, path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("configuration path %s: %w", path, err)
	}
	if !info.IsDir() {
		return Load(ctx, path)
	}

	paths, err := fsutil.ConfigFiles(path)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no .hcl files found under %s", path)
	}

	merged := &File{}
	for _, p := range paths {
		f, err := Load(ctx, p)
		if err != nil {
			return nil, err
		}
		if f.Data != nil {
			if merged.Data != nil {
				return nil, fmt.Errorf("%s: duplicate data block (already defined elsewhere)", p)
			}
			merged.Data = f.Data
		}
		for _, t := range f.Targets {
			if _, ok := merged.Target(t.Name); ok {
				return nil, fmt.Errorf("%s: duplicate target %q", p, t.Name)
			}
			merged.Targets = append(merged.Targets, t)
		}
	}
	ctxlog.FromContext(ctx).Debug("configuration directory merged",
		"dir", path, "files", len(paths), "targets", len(merged.Targets))
	return merged, nil
}

// Load parses and validates the configuration file at the given path.
func Load(ctx context.Context, path string) (*File, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing %s: %w", path, diags)
	}
	return decode(ctx, path, func(out *File) error {
		if diags := gohcl.DecodeBody(hclFile.Body, nil, out); diags.HasErrors() {
			return fmt.Errorf("decoding %s: %w", path, diags)
		}
		return nil
	})
}

// LoadBytes parses and validates configuration from memory; filename is
// used in diagnostics only.
func LoadBytes(ctx context.Context, src []byte, filename string) (*File, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing %s: %w", filename, diags)
	}
	return decode(ctx, filename, func(out *File) error {
		if diags := gohcl.DecodeBody(hclFile.Body, nil, out); diags.HasErrors() {
			return fmt.Errorf("decoding %s: %w", filename, diags)
		}
		return nil
	})
}

func decode(ctx context.Context, name string, decodeBody func(*File) error) (*File, error) {
	var out File
	if err := decodeBody(&out); err != nil {
		return nil, err
	}
	if out.Data != nil {
		if err := out.Data.Validate(); err != nil {
			return nil, err
		}
	}
	for _, t := range out.Targets {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	ctxlog.FromContext(ctx).Debug("configuration loaded",
		"file", name, "targets", len(out.Targets), "has_data", out.Data != nil)
	return &out, nil
}

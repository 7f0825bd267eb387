package corpus

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

const (
	DefaultMarker = "/optimized/"
	DefaultExt    = ".ll"
)

// ScanOptions selects which files under the root are inputs.
type ScanOptions struct {
	// Marker must occur in the slash-separated path of an input. It is collapsed to a
	// single separator in the report name.
	Marker string
	Ext    string
}

func DefaultScanOptions() ScanOptions {
	return ScanOptions{Marker: DefaultMarker, Ext: DefaultExt}
}

// Input is one module found by Scan.
type Input struct {
	Path string
	Name string
}

// Scan walks root recursively and returns the regular files with the configured
// extension whose path contains the marker, ordered by name.
func Scan(root string, opts ScanOptions) ([]Input, error) {
	base, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var inputs []Input
	err = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || filepath.Ext(path) != opts.Ext {
			return nil
		}
		if !strings.Contains(filepath.ToSlash(path), opts.Marker) {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		inputs = append(inputs, Input{Path: path, Name: Name(rel, opts.Marker)})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Name < inputs[j].Name })
	return inputs, nil
}

// Name turns a path relative to the scan root into a report key by replacing the first
// occurrence of marker with a single separator. A marker at the very start of rel
// matches as well, the key then drops the leading separator.
func Name(rel, marker string) string {
	name := "/" + filepath.ToSlash(rel)
	if i := strings.Index(name, marker); i >= 0 {
		name = name[:i] + "/" + name[i+len(marker):]
	}
	return strings.TrimPrefix(name, "/")
}

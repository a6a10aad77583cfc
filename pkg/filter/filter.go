// Package filter decides which repository paths are tracked source files.
package filter

import (
	"path"
	"strings"

	"github.com/src-d/enry/v2"
)

// DefaultExtension is the tracked source extension when none is configured.
const DefaultExtension = ".java"

// Filter selects tracked source files by extension or language.
type Filter struct {
	// Extension, when set, must match the path suffix.
	Extension string
	// Languages, when non-empty, restrict files to these enry language names
	// (compared case-insensitively).
	Languages []string
	// SkipVendor drops vendored and third-party paths.
	SkipVendor bool
	// SkipPrefixes drops paths under these prefixes.
	SkipPrefixes []string
}

// New returns a filter tracking the given extension.
func New(extension string) *Filter {
	if extension == "" {
		extension = DefaultExtension
	}

	if !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}

	return &Filter{Extension: extension}
}

// Match reports whether the path is a tracked source file.
func (f *Filter) Match(name string) bool {
	if name == "" {
		return false
	}

	for _, prefix := range f.SkipPrefixes {
		if strings.HasPrefix(name, prefix) {
			return false
		}
	}

	if f.SkipVendor && enry.IsVendor(name) {
		return false
	}

	if f.Extension != "" && !strings.HasSuffix(name, f.Extension) {
		return false
	}

	if len(f.Languages) == 0 {
		return true
	}

	lang, _ := enry.GetLanguageByExtension(path.Base(name))
	if lang == "" {
		return false
	}

	for _, want := range f.Languages {
		if strings.EqualFold(want, lang) {
			return true
		}
	}

	return false
}

// Paths returns the tracked subset of names, preserving order.
func (f *Filter) Paths(names []string) []string {
	out := make([]string, 0, len(names))

	for _, n := range names {
		if f.Match(n) {
			out = append(out, n)
		}
	}

	return out
}

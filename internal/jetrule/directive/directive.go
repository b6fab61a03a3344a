// Package directive interprets `@JetCompilerDirective` declarations.
// Recognized keys gain typed accessors; unrecognized keys are preserved
// verbatim since spec.md section 4.6 treats them as forward-compatible.
package directive

import "github.com/USImagingNetwork/jetstore/internal/jetrule/ast"

const keyExtractResourcesFromRules = "extract_resources_from_rules"

// Set is the accumulated directive state visible to the normalizer. Later
// declarations of the same key across the combined file set override
// earlier ones, matching a single shared compilation-wide scope.
type Set struct {
	Raw map[string]string
}

// Collect merges directives (in the combined multi-file traversal order)
// into a Set.
func Collect(directives []ast.Directive) Set {
	s := Set{Raw: map[string]string{}}
	for _, d := range directives {
		s.Raw[d.Key] = d.Value
	}
	return s
}

// WithOverrides returns a copy of s with each key in overrides forced to
// the given value, taking precedence over anything declared in source.
// Used by batch callers (cmd/jetrulec) that want to force a directive on
// from a run config without editing the .jr source.
func (s Set) WithOverrides(overrides map[string]string) Set {
	out := Set{Raw: map[string]string{}}
	for k, v := range s.Raw {
		out.Raw[k] = v
	}
	for k, v := range overrides {
		out.Raw[k] = v
	}
	return out
}

// ExtractResourcesFromRules reports whether @JetCompilerDirective
// extract_resources_from_rules = "true" is in scope.
func (s Set) ExtractResourcesFromRules() bool {
	return s.Raw[keyExtractResourcesFromRules] == "true"
}

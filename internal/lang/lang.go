// Package lang describes the target languages the external generators can
// emit and how each one positions generated files: Java-like targets declare
// a namespace inside the grammar, C-like targets mirror the grammar's own
// directory position instead.
package lang

import (
	"fmt"
	"strings"
)

// Language describes one supported generator target.
type Language struct {
	// Name is the canonical selector value, matched case-insensitively
	// against the -CODE_GENERATOR stage option.
	Name string
	// Extension is the suffix of the main generated file (".java", ".cc", ...).
	Extension string
	// OtherExtensions lists the secondary generated suffixes the reconciler
	// must also copy (headers for C++). The transformed grammar itself is
	// not part of the set; copying it is a per-stage decision.
	OtherExtensions []string
	// UsesNamespace is true when the grammar declares a namespace that maps
	// to an output sub directory.
	UsesNamespace bool
	// UsesPath is true when the grammar's own directory position maps to the
	// output sub directory instead.
	UsesPath bool
	// SubDir is the per-language resource sub directory used for dependency
	// freshness lookups (generator distributable, template overrides).
	SubDir string
}

// IntermediateExt is the suffix of the preprocessor's output grammar, which
// is the generator stage's input.
const IntermediateExt = ".gram"

var (
	Java    = Language{Name: "Java", Extension: ".java", UsesNamespace: true, SubDir: "java"}
	Cpp     = Language{Name: "C++", Extension: ".cc", OtherExtensions: []string{".h"}, UsesPath: true, SubDir: "cpp"}
	CSharp  = Language{Name: "C#", Extension: ".cs", UsesPath: true, SubDir: "csharp"}
	JS      = Language{Name: "JS", Extension: ".js", UsesPath: true, SubDir: "js"}
	Kotlin  = Language{Name: "Kotlin", Extension: ".kt", UsesNamespace: true, SubDir: "kotlin"}
	Python  = Language{Name: "Python", Extension: ".py", UsesPath: true, SubDir: "python"}
	Default = Java
)

var all = []Language{Java, Cpp, CSharp, JS, Kotlin, Python}

// FromSelector resolves a -CODE_GENERATOR option value to a Language.
func FromSelector(value string) (Language, error) {
	for _, l := range all {
		if strings.EqualFold(l.Name, value) {
			return l, nil
		}
	}
	return Language{}, fmt.Errorf("invalid code generator selector %q", value)
}

// AllExtensions returns the primary extension followed by the secondary ones.
func (l Language) AllExtensions() []string {
	out := make([]string, 0, 1+len(l.OtherExtensions))
	out = append(out, l.Extension)
	out = append(out, l.OtherExtensions...)
	return out
}

// Zero reports whether l is the zero value (no language selected).
func (l Language) Zero() bool { return l.Name == "" }

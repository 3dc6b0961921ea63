// Package grammar extracts the generation metadata of a single grammar file:
// its declared namespace, its unit name and the name of the main generated
// artifact whose timestamp is authoritative for staleness.
package grammar

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/parsekit/grambuild/internal/errs"
	"github.com/parsekit/grambuild/internal/lang"
	"github.com/parsekit/grambuild/internal/logfields"
)

// Extractor pulls the two structural markers out of grammar source text.
// The default implementation is regex-based and comment-blind; keeping it
// behind an interface lets a comment-aware tokenizer replace it without
// touching the orchestrator.
type Extractor interface {
	// Namespace returns the declared namespace, or "" when the marker is
	// absent (absence is not an error).
	Namespace(text string) string
	// UnitName returns the unit name, or "" when the begin marker is absent
	// (the caller treats absence as a metadata error).
	UnitName(text string) string
}

// The namespace marker is a line starting with the word "package". It allows
// loose segment contents (including non-ASCII and numeric escapes) and does
// not ensure the line is outside a block comment; a commented-out declaration
// like
//
//	/*
//	 * package a.b.c;
//	 */
//
// is a known false positive. Same limitation for the unit-name marker.
var (
	namespacePattern = regexp.MustCompile(`(?m)^package\s+([^.;]+(\.[^.;]+)*)\s*;`)
	beginPattern     = regexp.MustCompile(`(?m)^PARSER_BEGIN\s*\(\s*([^\s)]+)\s*\)`)
	unicodeEscape    = regexp.MustCompile(`\\u[0-9a-fA-F]{4}`)
)

// MarkerExtractor is the default regex-based Extractor.
type MarkerExtractor struct{}

func (MarkerExtractor) Namespace(text string) string {
	m := namespacePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return DecodeUnicodeEscapes(m[1])
}

func (MarkerExtractor) UnitName(text string) string {
	m := beginPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return DecodeUnicodeEscapes(m[1])
}

// DecodeUnicodeEscapes replaces \uXXXX numeric escapes with the characters
// they denote. Grammars may carry non-ASCII namespace segments in escaped
// form and the directory layout must use the decoded characters.
func DecodeUnicodeEscapes(in string) string {
	if !unicodeEscape.MatchString(in) {
		return in
	}
	return unicodeEscape.ReplaceAllStringFunc(in, func(seq string) string {
		n, err := strconv.ParseUint(seq[2:], 16, 32)
		if err != nil {
			return seq
		}
		return string(rune(n))
	})
}

// Info holds the output-related metadata of one grammar file. It is built
// once per run and never mutated afterwards.
type Info struct {
	// SourceDir is the absolute base directory the grammar was found under.
	// Not necessarily the grammar's parent directory.
	SourceDir string
	// GrammarFile is the grammar's path relative to SourceDir.
	GrammarFile string
	// Namespace is the declared namespace, or "" when the grammar has none
	// or the target language has no namespace concept.
	Namespace string
	// SubDirectory is the output sub directory (namespace segments or the
	// grammar's own directory position), separator-terminated or empty so
	// concatenation is unambiguous.
	SubDirectory string
	// UnitName is the simple name of the generated artifact family.
	UnitName string
	// MainGeneratedFile names the generator's main artifact, relative to an
	// output location; its timestamp decides staleness there.
	MainGeneratedFile string
	// IntermediateFile names the preprocessor's output grammar, relative to
	// the preprocessor's output location. Empty when the grammar already is
	// an intermediate (generator input).
	IntermediateFile string
}

// Read builds an Info from the grammar at relPath under sourceDir, decoding
// the file with encodingName. It fails with a MetadataError when the file
// cannot be read or the unit-name marker is missing; a missing namespace
// marker yields an empty namespace instead.
func Read(language lang.Language, encodingName, sourceDir, relPath string, ex Extractor) (*Info, error) {
	if ex == nil {
		ex = MarkerExtractor{}
	}
	abs := filepath.Join(sourceDir, relPath)
	text, err := ReadFile(abs, encodingName)
	if err != nil {
		return nil, errs.MetadataWrap(err, relPath, "error reading grammar file %q", abs)
	}

	info := &Info{SourceDir: sourceDir, GrammarFile: relPath}

	switch {
	case language.UsesNamespace:
		info.Namespace = ex.Namespace(text)
		info.SubDirectory = strings.ReplaceAll(info.Namespace, ".", string(os.PathSeparator))
		if info.SubDirectory != "" {
			info.SubDirectory += string(os.PathSeparator)
		}
	case language.UsesPath:
		if dir := filepath.Dir(relPath); dir != "." {
			info.SubDirectory = dir + string(os.PathSeparator)
		}
	}
	slog.Debug("Extracted namespace", logfields.Unit(relPath),
		slog.String("namespace", info.Namespace), slog.String("subdir", info.SubDirectory))

	info.UnitName = ex.UnitName(text)
	if info.UnitName == "" {
		return nil, errs.Metadata(relPath, "no parser name found in PARSER_BEGIN(...) statement")
	}

	info.MainGeneratedFile = info.SubDirectory + info.UnitName + language.Extension
	if !strings.HasSuffix(relPath, lang.IntermediateExt) {
		// Preprocessor input: the preprocessor also owns an artifact, the
		// intermediate grammar it produces for the next stage.
		base := relPath[:len(relPath)-len(filepath.Ext(relPath))] + lang.IntermediateExt
		info.IntermediateFile = base
		if !strings.HasPrefix(base, info.SubDirectory) {
			info.IntermediateFile = info.SubDirectory + base
		}
	}
	slog.Debug("Resolved generated artifacts", logfields.Unit(relPath),
		slog.String("main", info.MainGeneratedFile),
		slog.String("intermediate", info.IntermediateFile))

	return info, nil
}

// AbsoluteGrammarFile returns the absolute path to the grammar file.
func (i *Info) AbsoluteGrammarFile() string {
	return filepath.Join(i.SourceDir, i.GrammarFile)
}

// DeriveIntermediate returns a copy of i re-rooted at the preprocessor's
// output directory, with the grammar file renamed to the intermediate grammar
// the preprocessor produced. The preprocessor may rewrite or relocate the
// logical unit, so the second stage resolves its input against this Info.
func (i *Info) DeriveIntermediate(sourceDir string) *Info {
	file := strings.Replace(i.GrammarFile, i.SubDirectory, "", 1)
	file = file[:len(file)-len(filepath.Ext(file))] + lang.IntermediateExt
	out := *i
	out.SourceDir = sourceDir
	out.GrammarFile = i.SubDirectory + file
	out.IntermediateFile = ""
	return &out
}

func (i *Info) String() string {
	return i.AbsoluteGrammarFile() + " -> " + i.MainGeneratedFile
}

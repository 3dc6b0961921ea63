package grammar

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsekit/grambuild/internal/errs"
	"github.com/parsekit/grambuild/internal/lang"
)

func writeGrammar(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o750))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func TestReadNamespaceAndUnitName(t *testing.T) {
	root := t.TempDir()
	writeGrammar(t, root, "sub/B.gram", "package x.y;\nPARSER_BEGIN(BParser)\nPARSER_END(BParser)\n")

	info, err := Read(lang.Java, "", root, "sub/B.gram", nil)
	require.NoError(t, err)

	sep := string(os.PathSeparator)
	assert.Equal(t, "x.y", info.Namespace)
	assert.Equal(t, "x"+sep+"y"+sep, info.SubDirectory)
	assert.Equal(t, "BParser", info.UnitName)
	assert.Equal(t, "x"+sep+"y"+sep+"BParser.java", info.MainGeneratedFile)
}

func TestReadNoNamespaceMarkerIsEmptyNotError(t *testing.T) {
	root := t.TempDir()
	writeGrammar(t, root, "A.gram", "PARSER_BEGIN(AParser)\n")

	info, err := Read(lang.Java, "", root, "A.gram", nil)
	require.NoError(t, err)
	assert.Empty(t, info.Namespace)
	assert.Empty(t, info.SubDirectory)
	assert.Equal(t, "AParser.java", info.MainGeneratedFile)
}

func TestReadMissingBeginMarkerFails(t *testing.T) {
	root := t.TempDir()
	writeGrammar(t, root, "A.gram", "package a.b;\n// no begin marker\n")

	_, err := Read(lang.Java, "", root, "A.gram", nil)
	require.Error(t, err)
	assert.True(t, errs.IsMetadata(err))
}

func TestReadUnreadableFileFails(t *testing.T) {
	root := t.TempDir()
	_, err := Read(lang.Java, "", root, "missing.gram", nil)
	require.Error(t, err)
	assert.True(t, errs.IsMetadata(err))
}

func TestPathBasedLanguageUsesGrammarDirectory(t *testing.T) {
	root := t.TempDir()
	writeGrammar(t, root, "calc/C.gram", "PARSER_BEGIN(CParser)\n")

	info, err := Read(lang.Cpp, "", root, "calc/C.gram", nil)
	require.NoError(t, err)
	assert.Equal(t, "calc"+string(os.PathSeparator), info.SubDirectory)
	assert.Equal(t, filepath.Join("calc", "CParser.cc"), info.MainGeneratedFile)
}

func TestPreprocessorInputCarriesBothArtifacts(t *testing.T) {
	root := t.TempDir()
	writeGrammar(t, root, "T.tgram", "package a.b;\nPARSER_BEGIN(TParser)\n")

	info, err := Read(lang.Java, "", root, "T.tgram", nil)
	require.NoError(t, err)

	sep := string(os.PathSeparator)
	assert.Equal(t, "a"+sep+"b"+sep+"TParser.java", info.MainGeneratedFile)
	assert.Equal(t, "a"+sep+"b"+sep+"T.gram", info.IntermediateFile)
}

func TestGeneratorInputHasNoIntermediateArtifact(t *testing.T) {
	root := t.TempDir()
	writeGrammar(t, root, "A.gram", "PARSER_BEGIN(A)\n")

	info, err := Read(lang.Java, "", root, "A.gram", nil)
	require.NoError(t, err)
	assert.Empty(t, info.IntermediateFile)
}

func TestDeriveIntermediate(t *testing.T) {
	root := t.TempDir()
	writeGrammar(t, root, "T.tgram", "package a.b;\nPARSER_BEGIN(TParser)\n")
	info, err := Read(lang.Java, "", root, "T.tgram", nil)
	require.NoError(t, err)

	derived := info.DeriveIntermediate("/out/tree")
	sep := string(os.PathSeparator)
	assert.Equal(t, "/out/tree", derived.SourceDir)
	assert.Equal(t, "a"+sep+"b"+sep+"T.gram", derived.GrammarFile)
	assert.Equal(t, info.UnitName, derived.UnitName)
	assert.Equal(t, info.SubDirectory, derived.SubDirectory)
}

func TestDecodeUnicodeEscapes(t *testing.T) {
	assert.Equal(t, "org.jcc.ßπ6", DecodeUnicodeEscapes(`org.jcc.ßπ6`))
	assert.Equal(t, "plain", DecodeUnicodeEscapes("plain"))
}

func TestCommentBlindMatchIsKnownLimitation(t *testing.T) {
	// The line-anchored regex matches a declaration at line start even inside
	// a block comment body; this documents the accepted behavior.
	text := "/*\npackage a.b.c;\n*/\nPARSER_BEGIN(P)\n"
	var ex MarkerExtractor
	assert.Equal(t, "a.b.c", ex.Namespace(text))
}

func TestReadWithExplicitEncoding(t *testing.T) {
	root := t.TempDir()
	// "é" in ISO-8859-1 is a single 0xE9 byte.
	content := []byte("package caf\xe9;\nPARSER_BEGIN(EParser)\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, "E.gram"), content, 0o644))

	info, err := Read(lang.Java, "ISO-8859-1", root, "E.gram", nil)
	require.NoError(t, err)
	assert.Equal(t, "café", info.Namespace)
}

func TestReadUnknownEncodingFails(t *testing.T) {
	root := t.TempDir()
	writeGrammar(t, root, "A.gram", "PARSER_BEGIN(A)\n")
	_, err := Read(lang.Java, "no-such-charset", root, "A.gram", nil)
	require.Error(t, err)
}

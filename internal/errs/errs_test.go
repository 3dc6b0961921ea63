package errs

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassificationThroughWrapping(t *testing.T) {
	base := Metadata("grammars/Calc.gram", "no parser name found")
	wrapped := fmt.Errorf("scan: %w", base)

	assert.True(t, IsMetadata(wrapped))
	assert.False(t, IsConfig(wrapped))
	assert.False(t, IsProcessor(wrapped))
}

func TestProcessorErrorCarriesContext(t *testing.T) {
	cause := fs.ErrPermission
	err := ProcessorWrap(cause, "treegen", "sub/B.gram", "exit code 2")

	assert.Contains(t, err.Error(), "treegen")
	assert.Contains(t, err.Error(), "sub/B.gram")
	assert.True(t, errors.Is(err, fs.ErrPermission))
}

func TestConfigErrorUnwrap(t *testing.T) {
	cause := errors.New("not a directory")
	err := ConfigWrap(cause, "output directory %q", "/tmp/x")

	assert.True(t, IsConfig(err))
	assert.Equal(t, cause, errors.Unwrap(err))
}

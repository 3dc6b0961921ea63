package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSelectorIsCaseInsensitive(t *testing.T) {
	for _, sel := range []string{"java", "JAVA", "Java"} {
		l, err := FromSelector(sel)
		require.NoError(t, err)
		assert.Equal(t, Java, l)
	}
}

func TestFromSelectorRejectsUnknown(t *testing.T) {
	_, err := FromSelector("cobol")
	require.Error(t, err)
}

func TestAllExtensionsIncludesHeaders(t *testing.T) {
	assert.Equal(t, []string{".cc", ".h"}, Cpp.AllExtensions())
	assert.Equal(t, []string{".java"}, Java.AllExtensions())
}

func TestLayoutFlags(t *testing.T) {
	assert.True(t, Java.UsesNamespace)
	assert.False(t, Java.UsesPath)
	assert.True(t, Cpp.UsesPath)
	assert.False(t, Cpp.UsesNamespace)
}

func TestZero(t *testing.T) {
	assert.True(t, Language{}.Zero())
	assert.False(t, Default.Zero())
}

package migrate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesAreOrderedAndNonEmpty(t *testing.T) {
	files, err := Files()
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.True(t, strings.HasPrefix(files[0], "0001_"))
	for i := 1; i < len(files); i++ {
		assert.Less(t, files[i-1], files[i])
	}
	for _, f := range files {
		body, err := migrationsFS.ReadFile("migrations/" + f)
		require.NoError(t, err)
		assert.NotEmpty(t, strings.TrimSpace(string(body)), f)
	}
}

package qual

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quals.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "# screening\nMasters exists\n\nWorker_Locale in US, CA\n")

	reqs, lines, err := NewLoader(NewCompiler()).LoadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Masters exists", "Worker_Locale in US, CA"}, lines)
	require.Len(t, reqs, 2)
	assert.Equal(t, "Worker_Locale", reqs[1].Name)
}

func TestLoadFileReportsFirstBadLine(t *testing.T) {
	path := writeFile(t, "Masters exists\nWorker_Adult = 3\nnot a formula at all\n")

	reqs, lines, err := NewLoader(NewCompiler()).LoadFile(context.Background(), path)
	require.Error(t, err)
	assert.Nil(t, reqs)
	assert.Nil(t, lines)
	assert.Contains(t, err.Error(), "line 2 (Worker_Adult = 3)")
}

func TestLoadFileMissing(t *testing.T) {
	_, _, err := NewLoader(NewCompiler()).LoadFile(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

package qual

import (
	"context"
	"fmt"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"

	"github.com/kurihiro0119/hitbatch/internal/domain"
)

// Loader reads formula files; any afs-supported URL works, plain paths are local files
type Loader struct {
	fs       afs.Service
	compiler *Compiler
}

// NewLoader creates a loader that compiles with the given compiler
func NewLoader(compiler *Compiler) *Loader {
	return &Loader{fs: afs.New(), compiler: compiler}
}

// LoadFile compiles every non-blank, non-comment line of a file.
// The whole load fails on the first bad line and nothing is returned.
func (l *Loader) LoadFile(ctx context.Context, path string) ([]domain.QualificationRequirement, []string, error) {
	location := url.Normalize(path, file.Scheme)
	data, err := l.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return l.compileLines(string(data))
}

func (l *Loader) compileLines(content string) ([]domain.QualificationRequirement, []string, error) {
	var reqs []domain.QualificationRequirement
	var lines []string
	for i, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		req, err := l.compiler.Compile(line)
		if err != nil {
			return nil, nil, fmt.Errorf("line %d (%s): %w", i+1, line, err)
		}
		reqs = append(reqs, *req)
		lines = append(lines, line)
	}
	return reqs, lines, nil
}

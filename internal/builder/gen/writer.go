package gen

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// WriteResult describes what WriteFiles did with one file.
type WriteResult struct {
	Path    string
	Changed bool
	// Diff is set for changed files when WriteFiles was asked for diffs.
	Diff string
}

// WriteFiles writes every file whose content differs from what is on disk,
// at most jobs at a time. Unchanged files keep their modification time so
// the build tool does not regenerate. Results are in the order of files.
func WriteFiles(ctx context.Context, files []File, withDiff bool, jobs int) ([]WriteResult, error) {
	results := make([]WriteResult, len(files))
	if len(files) == 0 {
		return results, nil
	}
	if jobs < 1 {
		jobs = 1
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(jobs)

	for i, f := range files {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := writeFile(f, withDiff)
			if err != nil {
				return zerr.With(err, "path", f.Path)
			}
			results[i] = res
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func writeFile(f File, withDiff bool) (WriteResult, error) {
	res := WriteResult{Path: f.Path}

	old, err := os.ReadFile(f.Path)
	switch {
	case err == nil && bytes.Equal(old, f.Content):
		return res, nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return res, zerr.Wrap(err, "failed to read existing file")
	}

	if err := os.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
		return res, zerr.Wrap(err, "failed to create directory")
	}
	if err := os.WriteFile(f.Path, f.Content, 0644); err != nil {
		return res, zerr.Wrap(err, "failed to write file")
	}

	res.Changed = true
	if withDiff {
		res.Diff = LineDiff(string(old), string(f.Content))
	}
	return res, nil
}

// LineDiff renders a line based diff of a and b, prefixing removed lines
// with '-' and added ones with '+'. Unchanged lines are left out.
func LineDiff(a, b string) string {
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		var prefix string
		var paint func(format string, a ...any) string
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix, paint = "-", color.RedString
		case diffmatchpatch.DiffInsert:
			prefix, paint = "+", color.GreenString
		default:
			continue
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(paint("%s", prefix+strings.TrimSuffix(line, "\n")))
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

package app

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.trai.ch/dslhost/internal/console"
	"go.trai.ch/dslhost/internal/core/domain"
	"go.trai.ch/dslhost/internal/dsl/factory"
	"go.trai.ch/dslhost/internal/ui/output"
	"go.trai.ch/dslhost/internal/ui/style"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// CheckResult is the outcome of compiling one script.
type CheckResult struct {
	URL string
	Err error
}

// Check compiles every script directly inside dirs. Directories are
// checked concurrently. A report is written to the app output and
// ErrCheckFailed is returned when any script failed.
func (a *App) Check(ctx context.Context, dirs []string) error {
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	sess, err := a.open(sessionOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	var (
		mu      sync.Mutex
		results []CheckResult
	)
	g, ctx := errgroup.WithContext(ctx)
	for _, dir := range dirs {
		g.Go(func() error {
			urls, err := sess.storage.GetMatchingURLsIn(sess.cfg.BaseDirectory, dir)
			if err != nil {
				return zerr.With(err, "dir", dir)
			}
			for _, url := range urls {
				_, err := factory.Create[console.Program](ctx, sess.factory, url)
				mu.Lock()
				results = append(results, CheckResult{URL: url, Err: err})
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slices.SortFunc(results, func(x, y CheckResult) int { return strings.Compare(x.URL, y.URL) })
	results = slices.CompactFunc(results, func(x, y CheckResult) bool { return x.URL == y.URL })

	failed := writeReport(a.stdout, sess.cfg.BaseDirectory, results)
	if failed > 0 {
		return zerr.With(zerr.Wrap(domain.ErrCheckFailed, fmt.Sprintf("%d of %d scripts", failed, len(results))), "failed", failed)
	}
	return nil
}

// writeReport prints one line per script and a summary, and returns the
// number of failures. Scripts under base are shown relative to it.
func writeReport(w io.Writer, base string, results []CheckResult) int {
	s := style.NewReport(output.NewRenderer(w))

	failed := 0
	for _, r := range results {
		name := r.URL
		if rel, err := filepath.Rel(base, r.URL); err == nil && !strings.HasPrefix(rel, "..") {
			name = rel
		}
		if r.Err == nil {
			_, _ = fmt.Fprintln(w, s.Pass.Render(style.Check+" "+name))
			continue
		}
		failed++
		_, _ = fmt.Fprintln(w, s.Fail.Render(style.Cross+" "+name))
		for line := range strings.Lines(r.Err.Error()) {
			_, _ = fmt.Fprintln(w, s.Detail.Render(strings.TrimRight(line, "\n")))
		}
	}
	_, _ = fmt.Fprintln(w, s.Summary.Render(fmt.Sprintf("%d scripts checked, %d failed", len(results), failed)))
	return failed
}

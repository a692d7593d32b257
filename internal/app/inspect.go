package app

import (
	"context"
	"fmt"
	"slices"

	"go.trai.ch/dslhost/internal/dsl/engine"
	"go.trai.ch/dslhost/internal/host/ast"
	"go.trai.ch/dslhost/internal/host/compiler"
)

const stepCapture = "capture"

// Inspect compiles script and prints its syntax tree as it stands right
// before name resolution, after every macro and transformation has run.
// The tree is printed even when resolution later fails.
func (a *App) Inspect(ctx context.Context, script string) error {
	var (
		url   string
		units []*ast.Module
	)
	capture := func(p *compiler.Parameters, urls []string) error {
		if !slices.Equal(urls, []string{url}) {
			return nil
		}
		return p.Pipeline.InsertBefore(compiler.StepResolve, compiler.NewStep(stepCapture, func(c *compiler.Context) {
			units = c.Units
		}))
	}

	sess, err := a.open(sessionOptions{
		engine:  []engine.Option{engine.WithCustomizer(capture)},
		noCache: true,
	})
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	url = sess.engine.CanonizeURL(sess.cfg.BaseDirectory, script)
	_, err = sess.engine.Compile(ctx, []string{url})
	for _, unit := range units {
		_, _ = fmt.Fprint(a.stdout, ast.Format(unit))
	}
	return err
}

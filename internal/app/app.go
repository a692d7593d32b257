// Package app implements the application layer behind the dslhost command
// line: running, checking, inspecting and watching console scripts.
package app

import (
	"context"
	"io"
	"os"
	"strconv"
	"time"

	"go.trai.ch/dslhost/internal/adapters/detector"
	"go.trai.ch/dslhost/internal/adapters/linear"
	"go.trai.ch/dslhost/internal/adapters/modstore"
	"go.trai.ch/dslhost/internal/adapters/storage"
	"go.trai.ch/dslhost/internal/console"
	"go.trai.ch/dslhost/internal/core/domain"
	"go.trai.ch/dslhost/internal/core/ports"
	"go.trai.ch/dslhost/internal/dsl/cache"
	"go.trai.ch/dslhost/internal/dsl/engine"
	"go.trai.ch/dslhost/internal/dsl/factory"
	"go.trai.ch/dslhost/internal/host/runtime"
	"go.trai.ch/zerr"
)

// ExitError carries the non-zero status a script asked to exit with.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return "script exited with status " + strconv.Itoa(e.Code)
}

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	logger       ports.Logger
	tracer       ports.Tracer
	watcher      ports.Watcher
	stdout       io.Writer
	stderr       io.Writer
	cwd          string
}

// New creates a new App instance. The watcher is only started by Watch.
func New(loader ports.ConfigLoader, log ports.Logger, tracer ports.Tracer, w ports.Watcher) *App {
	if tracer == nil {
		tracer = ports.NopTracer{}
	}
	return &App{
		configLoader: loader,
		logger:       log,
		tracer:       tracer,
		watcher:      w,
		stdout:       os.Stdout,
		stderr:       os.Stderr,
	}
}

// WithOutput redirects script output and reports.
func (a *App) WithOutput(w io.Writer) *App {
	a.stdout = w
	return a
}

// WithErrorOutput redirects the run status lines printed by Watch.
func (a *App) WithErrorOutput(w io.Writer) *App {
	a.stderr = w
	return a
}

// WithWorkingDirectory sets the directory the configuration is searched
// from. It defaults to the process working directory.
func (a *App) WithWorkingDirectory(dir string) *App {
	a.cwd = dir
	return a
}

// logSettings is implemented by loggers whose format can change at run time.
type logSettings interface {
	SetJSON(enable bool)
	SetVerbose(enable bool)
}

// ConfigureLogging selects the log format from format ("auto", "pretty",
// "json") and the environment, and enables debug messages when verbose.
func (a *App) ConfigureLogging(format string, verbose bool) {
	s, ok := a.logger.(logSettings)
	if !ok {
		return
	}
	s.SetJSON(detector.ResolveFormat(detector.DetectFormat(), format) == detector.FormatJSON)
	s.SetVerbose(verbose)
}

// session is everything one command needs, built from the configuration.
type session struct {
	cfg     *domain.Config
	storage *storage.Storage
	engine  *engine.Engine
	factory *factory.Factory
	modules *cache.ModuleCache
}

func (s *session) Close() error {
	return s.factory.Close()
}

type sessionOptions struct {
	watch   bool
	engine  []engine.Option
	noCache bool
}

func (a *App) workingDirectory() (string, error) {
	if a.cwd != "" {
		return a.cwd, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", zerr.Wrap(err, "failed to get working directory")
	}
	return cwd, nil
}

func (a *App) loadConfig() (*domain.Config, error) {
	cwd, err := a.workingDirectory()
	if err != nil {
		return nil, err
	}
	cfg, err := a.configLoader.Load(cwd)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load configuration")
	}
	return cfg, nil
}

func (a *App) open(opts sessionOptions) (*session, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}

	var w ports.Watcher
	if opts.watch {
		w = a.watcher
	}
	s := storage.New(w,
		storage.WithPattern(cfg.Pattern),
		storage.WithDebounce(cfg.Debounce),
		storage.WithLogger(a.logger),
	)

	e, err := console.NewEngine(s,
		console.WithConstructorForwarding(cfg.ForwardConstructors),
		console.WithEngineOptions(append([]engine.Option{
			engine.WithLogger(a.logger),
			engine.WithTracer(a.tracer),
		}, opts.engine...)...),
	)
	if err != nil {
		return nil, err
	}

	sess := &session{cfg: cfg, storage: s, engine: e}
	fopts := []factory.Option{
		factory.WithBaseDirectory(cfg.BaseDirectory),
		factory.WithLogger(a.logger),
		factory.WithTracer(a.tracer),
	}
	if cfg.PersistentCache && !opts.noCache {
		sess.modules = cache.NewModuleCache(modstore.New(cfg.CacheDirectory), a.logger)
		sess.modules.OnModuleLoaded(func(key string, _ *runtime.Module, fromCache bool) {
			if fromCache {
				a.logger.Debug("reused cached module " + key)
			}
		})
		fopts = append(fopts, factory.WithModuleCache(sess.modules))
	}

	sess.factory = factory.New(fopts...)
	if err := factory.Register[console.Program](sess.factory, e); err != nil {
		return nil, err
	}
	return sess, nil
}

// execute creates the program at script and runs its Main method with its
// output going to out.
func (a *App) execute(ctx context.Context, sess *session, script string, args []string, out io.Writer) error {
	var ctorArgs []any
	if sess.cfg.ForwardConstructors {
		ctorArgs = []any{args}
	}
	p, err := factory.Create[console.Program](ctx, sess.factory, script, ctorArgs...)
	if err != nil {
		return err
	}
	p.Args = args
	p.SetOutput(out)

	_, span := a.tracer.Start(ctx, "console.main", ports.WithAttribute("script", script))
	defer span.End()

	if err := p.Main(); err != nil {
		span.RecordError(err)
		return zerr.With(zerr.Wrap(err, "script failed"), "script", script)
	}
	if p.Status != 0 {
		return &ExitError{Code: p.Status}
	}
	return nil
}

// Run compiles script and runs it once with args.
func (a *App) Run(ctx context.Context, script string, args []string) error {
	sess, err := a.open(sessionOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	return a.execute(ctx, sess, script, args, a.stdout)
}

// Watch runs script, then runs it again every time it changes until ctx
// is done. Failed runs are reported and do not stop watching.
func (a *App) Watch(ctx context.Context, script string, args []string) error {
	if a.watcher == nil {
		return zerr.Wrap(domain.ErrWatchFailed, "no watcher configured")
	}
	sess, err := a.open(sessionOptions{watch: true})
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	r := linear.NewRenderer(a.stdout, a.stderr)
	defer func() { _ = r.Stop() }()
	sess.factory.OnRecompilation(r.OnRecompilation)

	// The listener is registered before the first run so that a script
	// failing to compile is still watched.
	url := sess.engine.CanonizeURL(sess.cfg.BaseDirectory, script)
	changed := make(chan struct{}, 1)
	if err := sess.storage.NotifyOnChange([]string{url}, func(string) {
		select {
		case changed <- struct{}{}:
		default:
		}
	}); err != nil {
		return err
	}

	runOnce := func() {
		r.OnRunStart(url, script, time.Now())
		err := a.execute(ctx, sess, script, args, r.Output(url))
		r.OnRunComplete(url, time.Now(), err)
	}

	runOnce()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			if err := factory.Invalidate[console.Program](sess.factory, url); err != nil {
				return err
			}
			a.logger.Debug("change detected in " + url)
			runOnce()
		}
	}
}

// Clean removes every persisted module from the cache directory.
func (a *App) Clean(_ context.Context) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if err := modstore.New(cfg.CacheDirectory).Clear(); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to clean module cache"), "dir", cfg.CacheDirectory)
	}
	a.logger.Info("removed cached modules from " + cfg.CacheDirectory)
	return nil
}

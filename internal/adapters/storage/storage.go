// Package storage implements script storage on the local file system.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"go.trai.ch/dslhost/internal/adapters/watcher"
	"go.trai.ch/dslhost/internal/core/domain"
	"go.trai.ch/dslhost/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Storage = (*Storage)(nil)

// Option configures a Storage.
type Option func(*Storage)

// WithPattern sets the glob script file names must match.
func WithPattern(pattern string) Option {
	return func(s *Storage) { s.pattern = pattern }
}

// WithDebounce sets the window change events are coalesced over.
func WithDebounce(window time.Duration) Option {
	return func(s *Storage) { s.debounce = window }
}

// WithLogger sets the logger.
func WithLogger(l ports.Logger) Option {
	return func(s *Storage) { s.logger = l }
}

// directory is one watched directory and the callbacks interested in it.
type directory struct {
	debouncer *watcher.Debouncer
	listeners []func(url string)
}

// Storage reads scripts from disk. Change notifications are delivered by
// w, which the storage owns once NotifyOnChange is first called. A nil
// watcher disables notifications.
type Storage struct {
	pattern  string
	debounce time.Duration
	logger   ports.Logger
	watcher  ports.Watcher

	mu      sync.Mutex
	dirs    map[string]*directory
	cancel  context.CancelFunc
	running bool
	closed  bool
}

// New returns a storage delivering change notifications through w.
func New(w ports.Watcher, opts ...Option) *Storage {
	s := &Storage{
		pattern:  domain.DefaultPattern,
		debounce: domain.DefaultDebounce,
		logger:   ports.NopLogger{},
		watcher:  w,
		dirs:     make(map[string]*directory),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FileNameFormat returns the glob script file names must match.
func (s *Storage) FileNameFormat() string {
	return s.pattern
}

// CanonizeURL returns the absolute, cleaned path of url relative to
// parentDir.
func (s *Storage) CanonizeURL(parentDir, url string) string {
	if !filepath.IsAbs(url) {
		url = filepath.Join(parentDir, url)
	}
	abs, err := filepath.Abs(url)
	if err != nil {
		return filepath.Clean(url)
	}
	return abs
}

// GetMatchingURLsIn lists the scripts in url when it is a directory and in
// the directory holding url otherwise. A missing directory has no scripts.
func (s *Storage) GetMatchingURLsIn(parentDir, url string) ([]string, error) {
	dir := s.CanonizeURL(parentDir, url)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		dir = filepath.Dir(dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, domain.ErrScriptReadFailed.Error()), "dir", dir)
	}

	var urls []string
	for _, entry := range entries {
		if entry.IsDir() || !s.matches(entry.Name()) {
			continue
		}
		urls = append(urls, filepath.Join(dir, entry.Name()))
	}
	slices.Sort(urls)
	return urls, nil
}

func (s *Storage) matches(name string) bool {
	ok, err := filepath.Match(s.pattern, name)
	return err == nil && ok
}

// IsURLIncludedIn reports whether url, resolved against parentDir, is one
// of urls. Urls are compared ignoring case.
func (s *Storage) IsURLIncludedIn(urls []string, parentDir, url string) bool {
	canonical := s.CanonizeURL(parentDir, url)
	return slices.ContainsFunc(urls, func(u string) bool { return strings.EqualFold(u, canonical) })
}

// TypeNameFromURL returns the file name of url without its extension.
func (s *Storage) TypeNameFromURL(url string) string {
	return domain.TypeNameFromPath(url)
}

// IsValidScriptURL reports whether url is an existing regular file.
func (s *Storage) IsValidScriptURL(url string) bool {
	info, err := os.Stat(url)
	return err == nil && info.Mode().IsRegular()
}

// ChecksumForURLs hashes the name and modification time of every existing
// script, the engine name and the modification time of the running binary.
// Any edit to a script or a rebuild of the host yields a new key.
func (s *Storage) ChecksumForURLs(engineType string, urls []string) (string, error) {
	h := sha256.New()
	var stamp [8]byte

	for _, url := range urls {
		info, err := os.Stat(url)
		if err != nil {
			continue
		}
		h.Write([]byte(info.Name()))
		binary.LittleEndian.PutUint64(stamp[:], uint64(info.ModTime().UnixNano()))
		h.Write(stamp[:])
	}

	h.Write([]byte(engineType))
	if exe, err := os.Executable(); err == nil {
		if info, err := os.Stat(exe); err == nil {
			binary.LittleEndian.PutUint64(stamp[:], uint64(info.ModTime().UnixNano()))
			h.Write(stamp[:])
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// CreateInput reads the script at url.
func (s *Storage) CreateInput(url string) (domain.ScriptUnit, error) {
	info, err := os.Stat(url)
	if err != nil {
		return domain.ScriptUnit{}, zerr.With(zerr.Wrap(err, domain.ErrScriptReadFailed.Error()), "url", url)
	}
	//nolint:gosec // scripts are read from caller-supplied paths
	data, err := os.ReadFile(url)
	if err != nil {
		return domain.ScriptUnit{}, zerr.With(zerr.Wrap(err, domain.ErrScriptReadFailed.Error()), "url", url)
	}
	return domain.ScriptUnit{URL: url, ModTime: info.ModTime(), Text: string(data)}, nil
}

// NotifyOnChange calls onChange with the url of every matching script that
// changes in the directories of urls. A burst of writes to one file within
// the debounce window is reported once.
func (s *Storage) NotifyOnChange(urls []string, onChange func(url string)) error {
	if s.watcher == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if err := s.startLocked(); err != nil {
		return err
	}

	for _, dir := range commonDirs(urls) {
		d, ok := s.dirs[dir]
		if !ok {
			if err := s.watcher.Watch(dir); err != nil {
				return err
			}
			d = &directory{}
			d.debouncer = watcher.NewDebouncer(s.debounce, func(paths []string) {
				s.dispatch(dir, paths)
			})
			s.dirs[dir] = d
		}
		d.listeners = append(d.listeners, onChange)
	}
	return nil
}

func commonDirs(urls []string) []string {
	var dirs []string
	for _, url := range urls {
		dir := filepath.Dir(url)
		if !slices.Contains(dirs, dir) {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// startLocked must be called with mu held.
func (s *Storage) startLocked() error {
	if s.running {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := s.watcher.Start(ctx); err != nil {
		cancel()
		return zerr.Wrap(err, domain.ErrWatchFailed.Error())
	}
	s.cancel = cancel
	s.running = true
	go s.consume()
	return nil
}

func (s *Storage) consume() {
	for ev := range s.watcher.Events() {
		if !s.matches(filepath.Base(ev.Path)) {
			continue
		}
		s.mu.Lock()
		d, ok := s.dirs[filepath.Dir(ev.Path)]
		s.mu.Unlock()
		if ok {
			d.debouncer.Add(ev.Path)
		}
	}
}

func (s *Storage) dispatch(dir string, paths []string) {
	s.mu.Lock()
	d, ok := s.dirs[dir]
	var listeners []func(string)
	if ok && !s.closed {
		listeners = slices.Clone(d.listeners)
	}
	s.mu.Unlock()

	for _, path := range paths {
		s.logger.Debug("script changed: " + path)
		for _, fn := range listeners {
			fn(path)
		}
	}
}

// Close stops every change notification.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	for _, d := range s.dirs {
		d.debouncer.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Stop()
}

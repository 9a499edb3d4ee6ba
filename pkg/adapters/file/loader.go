package file

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/mathspeak/pkg/domain"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultPattern matches YAML rule files at any depth.
const DefaultPattern = "**/*.{yaml,yml}"

// Loader implements ports.RuleLoader over YAML rule files.
// Files are read in lexical path order; that order is the definition order.
type Loader struct {
	fsys     fs.FS
	dir      string // Set when loading from disk; enables Watch
	pattern  string
	debounce time.Duration
	logger   *slog.Logger
}

// Option configures the Loader.
type Option func(*Loader)

// WithPattern sets the doublestar glob selecting rule files.
func WithPattern(pattern string) Option {
	return func(l *Loader) {
		l.pattern = pattern
	}
}

// WithDebounce sets how long Watch waits for a burst of events to settle.
func WithDebounce(d time.Duration) Option {
	return func(l *Loader) {
		l.debounce = d
	}
}

// WithLogger sets the logger used by Watch.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// New creates a loader reading rule files under dir.
func New(dir string, opts ...Option) (*Loader, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("rules directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("rules path %s is not a directory", abs)
	}
	l := NewFS(os.DirFS(abs), opts...)
	l.dir = abs
	return l, nil
}

// NewFS creates a loader over any file system, such as an embed.FS.
func NewFS(fsys fs.FS, opts ...Option) *Loader {
	l := &Loader{
		fsys:     fsys,
		pattern:  DefaultPattern,
		debounce: 200 * time.Millisecond,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Files returns the matching rule files in load order.
func (l *Loader) Files() ([]string, error) {
	matches, err := doublestar.Glob(l.fsys, l.pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to glob %q: %w", l.pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// LoadRules parses every matching file. Errors from all files are collected.
func (l *Loader) LoadRules(ctx context.Context) ([]domain.Rule, error) {
	files, err := l.Files()
	if err != nil {
		return nil, err
	}

	var rules []domain.Rule
	var errs []error
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := fs.ReadFile(l.fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		parsed, err := ParseRuleSet(data, name)
		if err != nil {
			if nested := domain.RuleErrors(err); nested != nil {
				errs = append(errs, nested...)
			} else {
				errs = append(errs, err)
			}
			continue
		}
		rules = append(rules, parsed...)
	}
	if len(errs) > 0 {
		return nil, &domain.InvalidRuleBaseError{Errors: errs}
	}
	return rules, nil
}

// Watch signals when a rule file under the directory changes. The channel is closed
// when ctx is done. Bursts of events within the debounce window collapse into one signal.
func (l *Loader) Watch(ctx context.Context) (<-chan struct{}, error) {
	if l.dir == "" {
		return nil, fmt.Errorf("loader is not backed by a directory")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	err = filepath.WalkDir(l.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", l.dir, err)
	}

	out := make(chan struct{}, 1)
	go l.watchLoop(ctx, w, out)
	return out, nil
}

func (l *Loader) watchLoop(ctx context.Context, w *fsnotify.Watcher, out chan<- struct{}) {
	defer close(out)
	defer w.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.Add(event.Name)
					continue
				}
			}
			if !l.relevant(event.Name) {
				continue
			}
			l.logger.Debug("rule file event", "path", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(l.debounce)
			} else {
				timer.Reset(l.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			select {
			case out <- struct{}{}:
			default: // A signal is already pending.
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			l.logger.Warn("rule watcher error", "err", err)
		}
	}
}

func (l *Loader) relevant(path string) bool {
	rel, err := filepath.Rel(l.dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	ok, _ := doublestar.Match(l.pattern, filepath.ToSlash(rel))
	return ok
}

// Package filetemplates serves alert templates from a YAML file and reloads
// them when the file changes.
//
// File layout:
//
//	templates:
//	  - id: listing-suppressed
//	    subject: "Listing {{asin}} suppressed"
//	    body: "..."
//	    required_variables: [asin]
//	    urgency: high
package filetemplates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/xpertseller/alertkit/pkg/logger"
	"github.com/xpertseller/alertkit/svc/alerting"
)

var (
	ErrEmptyPath       = errors.New("filetemplates: path is required")
	ErrInvalidTemplate = errors.New("filetemplates: invalid template")
)

const defaultDebounce = 250 * time.Millisecond

var _ alerting.TemplateStore = (*Store)(nil)

type file struct {
	Templates []alerting.Template `yaml:"templates"`
}

// Store is a TemplateStore over a YAML file. A failed reload keeps the
// previously loaded set.
type Store struct {
	path     string
	set      atomic.Pointer[map[string]alerting.Template]
	logger   *slog.Logger
	debounce time.Duration
	onReload func(ids []string)
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDebounce sets how long Watch waits after the last change before
// reloading.
func WithDebounce(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// WithOnReload is called with the ids of the freshly loaded templates after
// each successful reload.
func WithOnReload(fn func(ids []string)) Option {
	return func(s *Store) { s.onReload = fn }
}

// Open loads path and returns a store serving its templates.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	s := &Store{
		path:     path,
		logger:   slog.Default(),
		debounce: defaultDebounce,
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) GetTemplate(_ context.Context, id string) (alerting.Template, error) {
	set := s.set.Load()
	t, ok := (*set)[id]
	if !ok {
		return alerting.Template{}, alerting.ErrTemplateNotFound
	}
	t.RequiredVariables = slices.Clone(t.RequiredVariables)
	return t, nil
}

// IDs returns the loaded template ids, sorted.
func (s *Store) IDs() []string {
	set := *s.set.Load()
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Reload reads the file again and swaps the template set in one step.
func (s *Store) Reload() ([]string, error) {
	set, err := parseFile(s.path)
	if err != nil {
		return nil, err
	}
	s.set.Store(&set)
	ids := s.IDs()
	if s.onReload != nil {
		s.onReload(ids)
	}
	return ids, nil
}

func parseFile(path string) (map[string]alerting.Template, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("filetemplates: read %s: %w", path, err)
	}
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("filetemplates: parse %s: %w", path, err)
	}

	set := make(map[string]alerting.Template, len(f.Templates))
	for i, t := range f.Templates {
		if err := validate(t); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %w", ErrInvalidTemplate, i, err)
		}
		if _, dup := set[t.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidTemplate, t.ID)
		}
		set[t.ID] = t
	}
	return set, nil
}

func validate(t alerting.Template) error {
	switch {
	case t.ID == "":
		return errors.New("id is required")
	case t.Body == "":
		return fmt.Errorf("%s: body is required", t.ID)
	case t.Urgency != "" && !slices.Contains(alerting.Urgencies, t.Urgency):
		return fmt.Errorf("%s: unknown urgency %q", t.ID, t.Urgency)
	}
	return nil
}

// Watch reloads the file whenever it changes until ctx is done. The parent
// directory is watched so editors that replace the file are noticed.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("filetemplates: watcher: %w", err)
	}
	defer w.Close()

	dir, name := filepath.Split(s.path)
	if dir == "" {
		dir = "."
	}
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("filetemplates: watch %s: %w", dir, err)
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	schedule := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(s.debounce, func() {
			if ctx.Err() != nil {
				return
			}
			ids, err := s.Reload()
			if err != nil {
				s.logger.WarnContext(ctx, "template reload failed, keeping previous set",
					slog.String("path", s.path), logger.Error(err))
				return
			}
			s.logger.InfoContext(ctx, "templates reloaded",
				slog.String("path", s.path), slog.Int("count", len(ids)))
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				schedule()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.WarnContext(ctx, "template watcher error", logger.Error(err))
		}
	}
}

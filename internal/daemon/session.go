package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/winsync/internal/config"
	"github.com/jmylchreest/winsync/internal/core"
	"github.com/jmylchreest/winsync/internal/model"
	"github.com/jmylchreest/winsync/internal/registry"
	"github.com/jmylchreest/winsync/internal/shape"
	"github.com/jmylchreest/winsync/internal/store"
)

// Options configures a Session.
type Options struct {
	Config   *config.Config // Defaults to config.DefaultConfig()
	Metadata map[string]any

	Store   store.SharedStore // Defaults to a FileStore at the configured path
	Tracker shape.Tracker     // Defaults to the configured shape source
	Notify  NotifyFunc        // Delivers desktop notices; nil disables them
	Dismiss CloseFunc         // Withdraws notices on Close; may be nil

	Now    func() time.Time
	Logger *slog.Logger
}

// Session is one surface taking part in the registry.
type Session struct {
	cfg      *config.Config
	manager  *registry.Manager
	tracker  shape.Tracker
	notifier *Notifier
	metadata map[string]any
	tick     time.Duration
	logger   *slog.Logger

	// changes is signalled, without blocking, whenever the view changes.
	changes chan struct{}

	mu      sync.Mutex
	known   []model.WindowEntry
	primed  bool
	started bool
}

// NewSession builds the store, tracker and registry manager for a surface.
func NewSession(opts Options) (*Session, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	st := opts.Store
	if st == nil {
		path := cfg.Store.Path
		if path == "" {
			var err error
			if path, err = store.RegistryPath(); err != nil {
				return nil, err
			}
		}
		fs, err := store.NewFileStore(path, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open registry: %w", err)
		}
		st = fs
	}

	tracker := opts.Tracker
	if tracker == nil {
		fallback := model.Shape{W: float64(cfg.Shape.FallbackWidth), H: float64(cfg.Shape.FallbackHeight)}
		t, err := shape.New(shape.Source(cfg.Shape.Source), fallback, logger)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		tracker = t
	}

	tick := cfg.Registry.TickInterval.Duration()
	if tick <= 0 {
		tick = config.DefaultTickInterval
	}

	manager, err := registry.NewManager(registry.Options{
		Store:              st,
		Tracker:            tracker,
		HeartbeatInterval:  cfg.Registry.HeartbeatInterval.Duration(),
		LivenessMultiplier: cfg.Registry.LivenessMultiplier,
		ShapeEpsilon:       cfg.Registry.ShapeEpsilon,
		TickInterval:       tick,
		Now:                opts.Now,
		Logger:             logger,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	notifier := NewNotifier(logger)
	notifier.SetNotifyHandler(opts.Notify)
	notifier.SetCloseHandler(opts.Dismiss)
	notifier.SetEnabled(opts.Notify != nil && cfg.Notify.Desktop)

	s := &Session{
		cfg:      cfg,
		manager:  manager,
		tracker:  tracker,
		notifier: notifier,
		metadata: opts.Metadata,
		tick:     tick,
		logger:   logger,
		changes:  make(chan struct{}, 1),
	}
	manager.SetWinChangeCallback(s.onWindowsChanged)
	manager.SetWinShapeChangeCallback(s.onShapeChanged)
	return s, nil
}

// Manager returns the registry manager.
func (s *Session) Manager() *registry.Manager {
	return s.manager
}

// Notifier returns the membership notifier.
func (s *Session) Notifier() *Notifier {
	return s.notifier
}

// Changes is signalled whenever the registry view or the local shape changes.
// Signals coalesce; receivers should re-read Manager().Windows().
func (s *Session) Changes() <-chan struct{} {
	return s.changes
}

// Start joins the registry. Calling it again does nothing.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	if err := s.manager.Init(s.metadata); err != nil {
		return fmt.Errorf("failed to join registry: %w", err)
	}
	s.logger.Info("joined registry", "id", s.manager.ID(), "shape", s.manager.Self().Shape.String())
	return nil
}

// Run starts the session if needed and runs the registry loop alongside
// extra. The first of extra to return ends the session; the surface departs
// before Run returns. Cancelling ctx does the same.
func (s *Session) Run(ctx context.Context, extra ...func(context.Context) error) error {
	if err := s.Start(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.manager.Run(gctx, registry.NewTickerScheduler(s.tick))
	})
	for _, fn := range extra {
		g.Go(func() error {
			defer cancel()
			return fn(gctx)
		})
	}
	return g.Wait()
}

// ApplyConfig applies the settings that can change while running.
// Registry timings are fixed for the life of the session.
func (s *Session) ApplyConfig(cfg *config.Config) {
	s.notifier.SetEnabled(s.notifier.HasHandler() && cfg.Notify.Desktop)

	if cfg.Registry != s.cfg.Registry {
		s.logger.Warn("registry settings changed, restart to apply")
	}
}

// Close departs the registry and releases the store and tracker.
func (s *Session) Close() error {
	err := s.manager.Close()
	s.notifier.CloseAll()
	if c, ok := s.tracker.(interface{ Close() }); ok {
		c.Close()
	}
	return err
}

func (s *Session) signal() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func (s *Session) onWindowsChanged() {
	current := s.manager.Windows()

	s.mu.Lock()
	previous, primed := s.known, s.primed
	s.known, s.primed = current, true
	s.mu.Unlock()

	s.signal()

	self := s.manager.ID()
	joined, left := core.DiffIDs(previous, current)
	joined = slices.DeleteFunc(joined, func(id string) bool { return id == self })

	for _, id := range joined {
		s.logger.Info("window joined", "id", id, "windows", len(current))
	}
	for _, id := range left {
		s.logger.Info("window left", "id", id, "windows", len(current))
	}

	// The first callback reports the membership found at join time.
	if !primed {
		return
	}
	s.notifier.NotifyJoined(joined)
	s.notifier.NotifyLeft(left)
}

func (s *Session) onShapeChanged(sh model.Shape) {
	s.logger.Debug("window shape changed", "shape", sh.String())
	s.signal()
}

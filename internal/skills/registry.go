package skills

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Registry holds the current merged skill set and the Agent definitions
// that reference them, and can hot-reload on filesystem changes.
type Registry struct {
	opts DiscoverOptions

	mu     sync.RWMutex
	skills map[string]*Skill
	agents map[string]*Agent

	watchMu     sync.Mutex
	watcher     *fsnotify.Watcher
	watchCancel context.CancelFunc
	watchWg     sync.WaitGroup

	logger *slog.Logger
}

// NewRegistry builds a Registry and performs an initial discovery pass.
func NewRegistry(ctx context.Context, opts DiscoverOptions) *Registry {
	r := &Registry{
		opts:   opts,
		skills: make(map[string]*Skill),
		agents: make(map[string]*Agent),
		logger: slog.Default().With("component", "skills"),
	}
	r.Reload(ctx)
	return r
}

// Reload re-runs discovery and atomically swaps in the new skill set. ctx
// bounds the discovery I/O itself (see Discover); a cancelled ctx leaves
// the registry's existing skill set in place rather than swapping in a
// partial or empty one.
func (r *Registry) Reload(ctx context.Context) {
	found := Discover(ctx, r.opts)
	if ctx.Err() != nil {
		return
	}
	byName := make(map[string]*Skill, len(found))
	for _, s := range found {
		byName[s.Name] = s
	}
	r.mu.Lock()
	r.skills = byName
	r.mu.Unlock()
	r.logger.Info("skills.reloaded", "count", len(byName))
}

// Get returns the skill with the given name, if discovered.
func (r *Registry) Get(name string) (*Skill, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.skills[name]
	return s, ok
}

// List returns all discovered skills.
func (r *Registry) List() []*Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Skill, 0, len(r.skills))
	for _, s := range r.skills {
		out = append(out, s)
	}
	return out
}

// RegisterAgent adds or replaces an Agent definition.
func (r *Registry) RegisterAgent(a *Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.ID] = a
}

// GetAgent returns the agent with the given ID, if registered.
func (r *Registry) GetAgent(id string) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	return a, ok
}

// AgentSkills resolves an agent's declared skill names to Skill entries,
// in declared order, skipping any that are no longer discoverable.
func (r *Registry) AgentSkills(agent *Agent) []*Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Skill
	for _, name := range agent.Skills {
		if s, ok := r.skills[name]; ok {
			out = append(out, s)
		}
	}
	return out
}

// StartWatching watches the registry's discovery roots and reloads on
// debounce after create/write/remove/rename events. It is a no-op if
// called more than once before Close.
func (r *Registry) StartWatching(ctx context.Context, debounce time.Duration) error {
	r.watchMu.Lock()
	if r.watcher != nil {
		r.watchMu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		r.watchMu.Unlock()
		return err
	}
	r.watcher = watcher
	watchCtx, cancel := context.WithCancel(ctx)
	r.watchCancel = cancel
	r.watchMu.Unlock()

	for _, dir := range r.watchRoots() {
		if err := watcher.Add(dir); err != nil {
			r.logger.Warn("skills.watch.add_failed", "dir", dir, "error", err.Error())
		}
	}

	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	r.watchWg.Add(1)
	go r.watchLoop(watchCtx, watcher, debounce)
	return nil
}

// Close stops any active watcher.
func (r *Registry) Close() error {
	r.watchMu.Lock()
	if r.watchCancel != nil {
		r.watchCancel()
		r.watchCancel = nil
	}
	watcher := r.watcher
	r.watcher = nil
	r.watchMu.Unlock()

	if watcher != nil {
		_ = watcher.Close()
	}
	r.watchWg.Wait()
	return nil
}

func (r *Registry) watchRoots() []string {
	var roots []string
	if r.opts.BuiltinDir != "" {
		roots = append(roots, r.opts.BuiltinDir)
	}
	userDir := r.opts.UserDir
	if userDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			userDir = home + "/.clawft/skills"
		}
	}
	if userDir != "" {
		roots = append(roots, userDir)
	}
	if r.opts.TrustProjectSkills && r.opts.WorkspaceDir != "" {
		roots = append(roots, r.opts.WorkspaceDir)
	}
	return roots
}

func (r *Registry) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, debounce time.Duration) {
	defer r.watchWg.Done()

	var mu sync.Mutex
	var timer *time.Timer
	scheduleReload := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, func() { r.Reload(ctx) })
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				scheduleReload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("skills.watch.error", "error", err.Error())
		}
	}
}

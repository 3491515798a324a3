package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"designflow/pkg/activity"
	"designflow/pkg/config"
	"designflow/pkg/logx"
	"designflow/pkg/proto"
)

// Registry owns one driver per active project. The facade talks to it
// for everything: signal delivery, state queries, and boot-time resume.
type Registry struct {
	cfg     *config.Config
	gateway activity.Gateway
	store   Store
	logger  *logx.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	drivers map[string]*Driver
}

// NewRegistry creates an empty registry. Call Resume before accepting
// traffic so persisted projects pick up where they stopped.
func NewRegistry(cfg *config.Config, gateway activity.Gateway, store Store) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		cfg:     cfg,
		gateway: gateway,
		store:   store,
		logger:  logx.NewLogger("registry"),
		ctx:     ctx,
		cancel:  cancel,
		drivers: make(map[string]*Driver),
	}
}

// Resume restarts a driver for every non-terminal persisted project.
// Durable timers rearm from the stored timestamps, so a project whose
// abandonment deadline passed while the engine was down abandons
// promptly after boot.
func (r *Registry) Resume() error {
	states, err := r.store.ListResumable()
	if err != nil {
		return fmt.Errorf("failed to list resumable projects: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range states {
		if _, exists := r.drivers[st.ProjectID]; exists {
			continue
		}
		r.startDriverLocked(st)
	}
	r.logger.Info("resumed %d projects", len(states))
	return nil
}

// Send routes a signal to its project, creating the project on first
// contact. A signal for a terminal project is rejected.
func (r *Registry) Send(sig *proto.Signal) error {
	if sig.ProjectID == "" {
		return fmt.Errorf("signal %s has no project id", sig.ID)
	}

	r.mu.Lock()
	drv, ok := r.drivers[sig.ProjectID]
	if !ok {
		st, err := r.store.Load(sig.ProjectID)
		switch {
		case errors.Is(err, ErrProjectNotFound):
			st = NewState(sig.ProjectID)
			r.logger.Info("creating project %s", sig.ProjectID)
		case err != nil:
			r.mu.Unlock()
			return err
		case st.Step.IsTerminal():
			r.mu.Unlock()
			return fmt.Errorf("project %s already ended in %s", sig.ProjectID, st.Step)
		}
		drv = r.startDriverLocked(st)
	}
	r.mu.Unlock()

	return drv.Send(sig)
}

// GetState returns a snapshot of a project, live or persisted.
func (r *Registry) GetState(projectID string) (*State, error) {
	r.mu.Lock()
	drv, ok := r.drivers[projectID]
	r.mu.Unlock()

	if ok {
		return drv.Snapshot()
	}
	return r.store.Load(projectID)
}

// ActiveCount returns how many drivers are running.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.drivers)
}

// Shutdown stops every driver and waits up to timeout for them to
// persist and exit. In-flight projects resume on the next boot.
func (r *Registry) Shutdown(timeout time.Duration) error {
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("all drivers stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timed out after %s", timeout)
	}
}

// startDriverLocked launches a driver. Caller holds r.mu.
func (r *Registry) startDriverLocked(st *State) *Driver {
	drv := NewDriver(st, r.cfg, r.gateway, r.store, r.removeDriver)
	r.drivers[st.ProjectID] = drv
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		drv.Run(r.ctx)
	}()
	return drv
}

func (r *Registry) removeDriver(projectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drivers, projectID)
}

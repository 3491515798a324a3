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
	"designflow/pkg/metrics"
	"designflow/pkg/proto"
)

// errShutdown signals an engine shutdown rather than a project outcome.
// The driver stops without a transition; the persisted snapshot resumes
// the project on the next boot.
var errShutdown = errors.New("engine shutting down")

// inboxSize bounds each project's signal inbox. The facade gets an
// error back when a project falls this far behind.
const inboxSize = 64

// Driver runs one project's workflow from creation to a terminal step.
// All phase logic executes on the single Run goroutine; external actors
// reach it only through the signal inbox and the read-only Snapshot.
type Driver struct {
	cfg     *config.Config
	gateway activity.Gateway
	store   Store
	logger  *logx.Logger

	mu    sync.Mutex
	state *State

	signals  chan *proto.Signal
	analysis *analysisHandle

	done       chan struct{}
	onTerminal func(projectID string)
}

// NewDriver creates a driver over an existing or fresh state. onTerminal
// is invoked once when the driver stops, letting the registry drop it.
func NewDriver(st *State, cfg *config.Config, gateway activity.Gateway, store Store, onTerminal func(projectID string)) *Driver {
	return &Driver{
		cfg:        cfg,
		gateway:    gateway,
		store:      store,
		logger:     logx.NewLogger(st.ProjectID),
		state:      st,
		signals:    make(chan *proto.Signal, inboxSize),
		done:       make(chan struct{}),
		onTerminal: onTerminal,
	}
}

// Send delivers a signal into the inbox without blocking.
func (d *Driver) Send(sig *proto.Signal) error {
	select {
	case <-d.done:
		return fmt.Errorf("project %s is no longer running", d.state.ProjectID)
	default:
	}
	select {
	case d.signals <- sig:
		return nil
	default:
		return fmt.Errorf("signal inbox full for project %s", d.state.ProjectID)
	}
}

// Snapshot returns a deep copy of the current state.
func (d *Driver) Snapshot() (*State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Clone()
}

// Done closes when the driver has stopped.
func (d *Driver) Done() <-chan struct{} {
	return d.done
}

// mutate applies fn to the state under the lock and persists the
// resulting snapshot. Every durable change goes through here.
func (d *Driver) mutate(fn func()) {
	d.mu.Lock()
	fn()
	err := d.store.Save(d.state)
	d.mu.Unlock()
	if err != nil {
		d.logger.Error("failed to persist snapshot: %v", err)
	}
}

// transition moves the project to the next step.
func (d *Driver) transition(to proto.Step) {
	from := d.state.Step
	if !IsValidTransition(from, to) {
		d.logger.Error("refusing invalid transition %s -> %s", from, to)
		return
	}
	d.mutate(func() { d.state.Step = to })
	metrics.PhaseTransitions.WithLabelValues(string(from), string(to)).Inc()
	d.logger.Info("phase %s -> %s", from, to)
}

// Run executes the workflow until a terminal step or engine shutdown.
func (d *Driver) Run(ctx context.Context) {
	defer close(d.done)
	if d.onTerminal != nil {
		defer d.onTerminal(d.state.ProjectID)
	}

	// Persist immediately so even a signal-less new project survives a
	// crash.
	d.mutate(func() {})
	d.logger.Info("driver started in step %s", d.state.Step)

	for {
		step := d.state.Step
		if step == proto.StepAbandoned || step == proto.StepCancelled {
			return
		}
		if step == proto.StepCompleted {
			if err := d.runRetention(ctx); err != nil {
				d.logger.Info("driver stopping: %v", err)
			}
			return
		}

		var next proto.Step
		var err error
		switch step {
		case proto.StepPhotos:
			next, err = d.runPhotos(ctx)
		case proto.StepScan:
			next, err = d.runScan(ctx)
		case proto.StepIntake:
			next, err = d.runIntake(ctx)
		case proto.StepGeneration:
			next, err = d.runGeneration(ctx)
		case proto.StepSelection:
			next, err = d.runSelection(ctx)
		case proto.StepIteration:
			next, err = d.runIteration(ctx)
		case proto.StepApproval:
			next, err = d.runApproval(ctx)
		case proto.StepShopping:
			next, err = d.runShopping(ctx)
		default:
			d.logger.Error("driver in unknown step %s, stopping", step)
			return
		}
		if err != nil {
			d.logger.Info("driver stopping: %v", err)
			return
		}

		switch next {
		case proto.StepAbandoned:
			d.finalizeAbandoned()
		case proto.StepCancelled:
			d.finalizeCancelled()
		case proto.StepCompleted:
			metrics.ProjectsCompleted.Inc()
		}
		d.transition(next)
	}
}

// pump waits for the next signal or the abandonment deadline and applies
// whatever arrives.
func (d *Driver) pump(ctx context.Context) (event, error) {
	idle := time.Until(d.state.LastActivityAt.Add(d.cfg.Timeouts.AbandonAfter))
	timer := time.NewTimer(idle)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return evNone, errShutdown
	case <-timer.C:
		return evAbandon, nil
	case sig := <-d.signals:
		return d.apply(ctx, sig), nil
	}
}

// invokeResult carries an activity's outcome out of its goroutine.
type invokeResult struct {
	value any
	err   error
}

// invoke runs one activity concurrently with the signal inbox, so cancel
// and start_over interrupt a slow call instead of queueing behind it. A
// result that arrives after the cycle moved on is discarded.
func (d *Driver) invoke(ctx context.Context, name string, call func(context.Context) (any, error)) (*invokeResult, event, error) {
	launchCycle := d.state.Cycle
	start := time.Now()

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	resCh := make(chan invokeResult, 1)
	go func() {
		value, err := call(cctx)
		resCh <- invokeResult{value: value, err: err}
	}()

	for {
		idle := time.Until(d.state.LastActivityAt.Add(d.cfg.Timeouts.AbandonAfter))
		timer := time.NewTimer(idle)

		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, evNone, errShutdown
		case <-timer.C:
			return nil, evAbandon, nil
		case sig := <-d.signals:
			timer.Stop()
			ev := d.apply(ctx, sig)
			if ev == evCancel || ev == evStartOver {
				return nil, ev, nil
			}
		case res := <-resCh:
			timer.Stop()
			metrics.ActivityDuration.WithLabelValues(d.state.ProjectID, name).Observe(time.Since(start).Seconds())
			if d.state.Cycle != launchCycle {
				d.logger.Debug("discarding stale %s result from cycle %d", name, launchCycle)
				return nil, evStale, nil
			}
			if res.err != nil {
				metrics.ActivityFailures.WithLabelValues(d.state.ProjectID, name, activity.TypeOf(res.err).String()).Inc()
			}
			return &res, evNone, nil
		}
	}
}

// runPhotos waits for at least MinRoomPhotos room photos plus an
// explicit confirmation. Background analysis launches as soon as enough
// room photos exist.
func (d *Driver) runPhotos(ctx context.Context) (proto.Step, error) {
	for {
		d.maybeLaunchAnalysis(ctx)
		if d.state.Err == nil && d.state.PhotosConfirmed && len(d.state.RoomPhotos()) >= MinRoomPhotos {
			return proto.StepScan, nil
		}
		ev, err := d.pump(ctx)
		if err != nil {
			return "", err
		}
		switch ev {
		case evCancel:
			return proto.StepCancelled, nil
		case evAbandon:
			return proto.StepAbandoned, nil
		}
		// start_over before any design work just stays here.
	}
}

// runScan waits for a scan upload or an explicit skip.
func (d *Driver) runScan(ctx context.Context) (proto.Step, error) {
	for {
		if d.state.Err == nil && d.state.ScanResolved {
			return proto.StepIntake, nil
		}
		ev, err := d.pump(ctx)
		if err != nil {
			return "", err
		}
		switch ev {
		case evCancel:
			return proto.StepCancelled, nil
		case evAbandon:
			return proto.StepAbandoned, nil
		}
	}
}

// runIntake waits for the style interview to complete or be skipped.
func (d *Driver) runIntake(ctx context.Context) (proto.Step, error) {
	for {
		if d.state.Err == nil && d.state.IntakeResolved {
			return proto.StepGeneration, nil
		}
		ev, err := d.pump(ctx)
		if err != nil {
			return "", err
		}
		switch ev {
		case evCancel:
			return proto.StepCancelled, nil
		case evAbandon:
			return proto.StepAbandoned, nil
		}
		// start_over resets the intake fields and the loop re-waits.
	}
}

// runGeneration collects the background analysis, then invokes the
// design generation activity. Failures park the project on an error
// until the user retries, starts over, or cancels.
func (d *Driver) runGeneration(ctx context.Context) (proto.Step, error) {
	// A driver resumed mid-pipeline has no in-flight analysis; relaunch
	// before the bounded collect.
	d.maybeLaunchAnalysis(ctx)
	d.collectAnalysis(ctx)

	for {
		if d.state.Err == nil {
			res, ev, err := d.invoke(ctx, activity.NameGenerateDesigns, func(c context.Context) (any, error) {
				return d.gateway.GenerateDesigns(c, d.generateRequest())
			})
			if err != nil {
				return "", err
			}
			switch ev {
			case evCancel:
				return proto.StepCancelled, nil
			case evStartOver:
				return proto.StepIntake, nil
			case evAbandon:
				return proto.StepAbandoned, nil
			case evStale:
				continue
			}
			if res.err != nil {
				d.logger.Warn("design generation failed: %v", res.err)
				d.mutate(func() { d.state.SetActivityError(res.err.Error(), activity.IsRetryable(res.err)) })
				continue
			}
			options, ok := res.value.([]proto.DesignOption)
			if !ok || len(options) != activity.OptionCount {
				d.mutate(func() {
					d.state.SetActivityError(fmt.Sprintf("generation returned %d designs, want %d", len(options), activity.OptionCount), true)
				})
				continue
			}
			d.mutate(func() { d.state.Options = options })
			d.logger.Info("generated %d design options", len(options))
			return proto.StepSelection, nil
		}

		ev, err := d.pump(ctx)
		if err != nil {
			return "", err
		}
		switch ev {
		case evCancel:
			return proto.StepCancelled, nil
		case evStartOver:
			return proto.StepIntake, nil
		case evAbandon:
			return proto.StepAbandoned, nil
		}
	}
}

// runSelection waits for the user to pick one of the generated options.
func (d *Driver) runSelection(ctx context.Context) (proto.Step, error) {
	for {
		if d.state.Err == nil && d.state.SelectedOption != nil {
			d.mutate(func() {
				option := d.state.Options[*d.state.SelectedOption]
				d.state.CurrentImage = option.ImageURL
				d.state.ChatKey = ""
			})
			return proto.StepIteration, nil
		}
		ev, err := d.pump(ctx)
		if err != nil {
			return "", err
		}
		switch ev {
		case evCancel:
			return proto.StepCancelled, nil
		case evStartOver:
			return proto.StepIntake, nil
		case evAbandon:
			return proto.StepAbandoned, nil
		}
	}
}

// runIteration drains the action queue one edit at a time. Approval
// short-circuits pending edits; hitting the revision cap forces the
// approval phase.
func (d *Driver) runIteration(ctx context.Context) (proto.Step, error) {
	for {
		if d.state.Err == nil && d.state.ApprovalRequested {
			return proto.StepShopping, nil
		}

		if d.state.Err == nil && len(d.state.Queue) > 0 {
			var act Action
			d.mutate(func() { act, _ = d.state.Dequeue() })

			res, ev, err := d.invoke(ctx, activity.NameEditDesign, func(c context.Context) (any, error) {
				return d.gateway.EditDesign(c, d.editRequest(act))
			})
			if err != nil {
				return "", err
			}
			switch ev {
			case evCancel:
				return proto.StepCancelled, nil
			case evStartOver:
				return proto.StepIntake, nil
			case evAbandon:
				return proto.StepAbandoned, nil
			case evStale:
				continue
			}
			if res.err != nil {
				d.logger.Warn("edit failed, re-queueing action %s: %v", act.ID, res.err)
				d.mutate(func() {
					d.state.RequeueFront(act)
					d.state.SetActivityError(res.err.Error(), activity.IsRetryable(res.err))
				})
				continue
			}
			result, ok := res.value.(*activity.EditResult)
			if !ok || result.RevisedImageURL == "" {
				d.mutate(func() {
					d.state.RequeueFront(act)
					d.state.SetActivityError("edit returned no image", true)
				})
				continue
			}

			d.mutate(func() {
				d.state.Revisions = append(d.state.Revisions, proto.RevisionRecord{
					Number:          len(d.state.Revisions) + 1,
					Type:            act.Type,
					BaseImageURL:    d.state.CurrentImage,
					RevisedImageURL: result.RevisedImageURL,
					Instructions:    act.instructions(),
				})
				d.state.CurrentImage = result.RevisedImageURL
				d.state.ChatKey = result.ChatKey
			})
			d.logger.Info("applied revision %d/%d", len(d.state.Revisions), d.cfg.MaxRevisions)

			if len(d.state.Revisions) >= d.cfg.MaxRevisions {
				d.logger.Info("revision cap reached, forcing approval")
				return proto.StepApproval, nil
			}
			continue
		}

		ev, err := d.pump(ctx)
		if err != nil {
			return "", err
		}
		switch ev {
		case evCancel:
			return proto.StepCancelled, nil
		case evStartOver:
			return proto.StepIntake, nil
		case evAbandon:
			return proto.StepAbandoned, nil
		}
	}
}

// runApproval holds the project after the revision cap until the user
// approves, starts over, or walks away.
func (d *Driver) runApproval(ctx context.Context) (proto.Step, error) {
	for {
		if d.state.Err == nil && d.state.ApprovalRequested {
			return proto.StepShopping, nil
		}
		ev, err := d.pump(ctx)
		if err != nil {
			return "", err
		}
		switch ev {
		case evCancel:
			return proto.StepCancelled, nil
		case evStartOver:
			return proto.StepIntake, nil
		case evAbandon:
			return proto.StepAbandoned, nil
		}
	}
}

// runShopping commits the approval, drops any edits still queued behind
// it, collects any still-pending analysis, and invokes the shopping-list
// activity. start_over is no longer honored past this point.
func (d *Driver) runShopping(ctx context.Context) (proto.Step, error) {
	d.mutate(func() {
		d.state.Approved = true
		d.state.Queue = nil
	})
	d.collectAnalysis(ctx)

	for {
		if d.state.Err == nil {
			res, ev, err := d.invoke(ctx, activity.NameGenerateShoppingList, func(c context.Context) (any, error) {
				return d.gateway.GenerateShoppingList(c, d.shoppingRequest())
			})
			if err != nil {
				return "", err
			}
			switch ev {
			case evCancel:
				return proto.StepCancelled, nil
			case evAbandon:
				return proto.StepAbandoned, nil
			case evStale:
				continue
			}
			if res.err != nil {
				d.logger.Warn("shopping list generation failed: %v", res.err)
				d.mutate(func() { d.state.SetActivityError(res.err.Error(), activity.IsRetryable(res.err)) })
				continue
			}
			list, ok := res.value.(*proto.ShoppingList)
			if !ok || list == nil {
				d.mutate(func() { d.state.SetActivityError("shopping list generation returned nothing", true) })
				continue
			}
			now := time.Now().UTC()
			d.mutate(func() {
				d.state.ShoppingList = list
				d.state.CompletedAt = &now
			})
			d.logger.Info("shopping list ready: %d matched, %d unmatched", len(list.Matched), len(list.Unmatched))
			return proto.StepCompleted, nil
		}

		ev, err := d.pump(ctx)
		if err != nil {
			return "", err
		}
		switch ev {
		case evCancel:
			return proto.StepCancelled, nil
		case evAbandon:
			return proto.StepAbandoned, nil
		}
	}
}

// runRetention holds a completed project for the configured retention
// window, then purges its external data and deletes its rows. Signals
// arriving after completion are acknowledged and dropped.
func (d *Driver) runRetention(ctx context.Context) error {
	if d.state.CompletedAt == nil {
		now := time.Now().UTC()
		d.mutate(func() { d.state.CompletedAt = &now })
	}
	deadline := d.state.CompletedAt.Add(d.cfg.Timeouts.RetainCompleted)
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	d.logger.Info("project completed, retaining data until %s", deadline.Format(time.RFC3339))
	for {
		select {
		case <-ctx.Done():
			return errShutdown
		case sig := <-d.signals:
			d.logger.Debug("ignoring %s after completion", sig.Type)
		case <-timer.C:
			d.purge()
			if err := d.store.Delete(d.state.ProjectID); err != nil {
				d.logger.Error("failed to delete project rows: %v", err)
			}
			d.logger.Info("retention window elapsed, project data purged")
			return nil
		}
	}
}

// finalizeAbandoned purges external data before the ABANDONED
// transition. The final snapshot row stays readable.
func (d *Driver) finalizeAbandoned() {
	d.logger.Info("no activity for %s, abandoning project", d.cfg.Timeouts.AbandonAfter)
	d.cancelAnalysis()
	d.purge()
	metrics.ProjectsAbandoned.Inc()
}

// finalizeCancelled purges external data before the CANCELLED
// transition.
func (d *Driver) finalizeCancelled() {
	d.logger.Info("project cancelled by user")
	d.cancelAnalysis()
	d.purge()
}

// purge asks the gateway to drop everything it holds for this project.
// Best effort: failure is logged and the workflow still terminates.
func (d *Driver) purge() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := d.gateway.PurgeProjectData(ctx, d.state.ProjectID); err != nil {
		d.logger.Warn("purge failed for %s: %v", d.state.ProjectID, err)
	}
}

// instructions flattens an action into the revision record's
// instruction list.
func (a Action) instructions() []string {
	if a.Type == proto.RevisionFeedback {
		return []string{a.Feedback}
	}
	out := make([]string, 0, len(a.Regions))
	for _, r := range a.Regions {
		out = append(out, fmt.Sprintf("%s: %s", r.Region, r.Instruction))
	}
	return out
}

// inspirationNotes pulls the per-photo notes used as the style signal
// when intake was skipped.
func (d *Driver) inspirationNotes() []string {
	var notes []string
	for _, p := range d.state.InspirationPhotos() {
		if p.Note != "" {
			notes = append(notes, p.Note)
		}
	}
	return notes
}

func (d *Driver) generateRequest() activity.GenerateRequest {
	return activity.GenerateRequest{
		ProjectID:         d.state.ProjectID,
		RoomPhotos:        d.state.RoomPhotos(),
		InspirationPhotos: d.state.InspirationPhotos(),
		Brief:             d.state.Brief,
		InspirationNotes:  d.inspirationNotes(),
		Dimensions:        d.state.Dimensions(),
		RoomContext:       d.state.RoomContext,
	}
}

func (d *Driver) editRequest(act Action) activity.EditRequest {
	return activity.EditRequest{
		ProjectID:         d.state.ProjectID,
		BaseImageURL:      d.state.CurrentImage,
		RoomPhotos:        d.state.RoomPhotos(),
		InspirationPhotos: d.state.InspirationPhotos(),
		Brief:             d.state.Brief,
		Regions:           act.Regions,
		Feedback:          act.Feedback,
		ChatKey:           d.state.ChatKey,
		Dimensions:        d.state.Dimensions(),
		RoomContext:       d.state.RoomContext,
	}
}

func (d *Driver) shoppingRequest() activity.ShoppingRequest {
	return activity.ShoppingRequest{
		ProjectID:   d.state.ProjectID,
		DesignImage: d.state.CurrentImage,
		RoomPhotos:  d.state.RoomPhotos(),
		Brief:       d.state.Brief,
		Revisions:   d.state.Revisions,
		Dimensions:  d.state.Dimensions(),
		RoomContext: d.state.RoomContext,
	}
}

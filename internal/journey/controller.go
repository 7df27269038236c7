package journey

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ad/go-onboarding-journey/internal/models"
)

var (
	ErrBusy                  = errors.New("another request is in flight")
	ErrInvalidStepTransition = errors.New("step is not the current step")
	ErrNotReady              = errors.New("journey is not ready")
	ErrNotFailed             = errors.New("journey is not in error state")
	ErrDisposed              = errors.New("journey controller disposed")
	ErrNetwork               = errors.New("onboarding backend unreachable")
)

const DefaultTimeout = 15 * time.Second

// API is the backend the controller synchronizes with.
type API interface {
	FetchSteps(ctx context.Context, studentID string) ([]models.StepPayload, error)
	SubmitCompletion(ctx context.Context, studentID string, stepID int) (int, error)
}

type State int

const (
	StateLoading State = iota
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// View is a point-in-time copy of the controller state for rendering.
type View struct {
	StudentID string
	State     State
	Snapshot  *models.ProgressSnapshot
	Current   *models.StepRecord
	Err       error
	Pending   bool
}

type Option func(*Controller)

func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithObserver registers fn to receive every state change. It is called
// without the controller lock held.
func WithObserver(fn func(View)) Option {
	return func(c *Controller) {
		c.observers = append(c.observers, fn)
	}
}

// Controller holds one student's onboarding snapshot and applies step
// completions. The server is the only source of truth: a completion never
// edits the snapshot locally, it triggers a full re-fetch.
//
// At most one backend request runs at a time; overlapping calls fail with
// ErrBusy instead of queueing.
type Controller struct {
	api       API
	studentID string
	timeout   time.Duration
	observers []func(View)

	mu         sync.Mutex
	state      State
	snapshot   *models.ProgressSnapshot
	err        error
	inFlight   bool
	pending    bool
	generation uint64
	disposed   bool
}

func NewController(api API, studentID string, opts ...Option) *Controller {
	c := &Controller{
		api:       api,
		studentID: studentID,
		timeout:   DefaultTimeout,
		state:     StateLoading,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) StudentID() string {
	return c.studentID
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller) viewLocked() View {
	v := View{
		StudentID: c.studentID,
		State:     c.state,
		Snapshot:  c.snapshot,
		Err:       c.err,
		Pending:   c.pending,
	}
	if c.state == StateReady && c.snapshot != nil {
		if cur, ok := c.snapshot.CurrentStep(); ok {
			v.Current = &cur
		}
	}
	return v
}

// Load fetches the snapshot. It is the initial transition out of Loading and
// may be called again at any time no other request is running.
func (c *Controller) Load(ctx context.Context) error {
	gen, err := c.begin(func() error { return nil })
	if err != nil {
		return err
	}
	return c.fetch(ctx, gen)
}

// Refresh re-fetches the snapshot from Ready or Error.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.Load(ctx)
}

// Retry leaves the Error state by fetching again.
func (c *Controller) Retry(ctx context.Context) error {
	gen, err := c.begin(func() error {
		if c.state != StateError {
			return ErrNotFailed
		}
		return nil
	})
	if err != nil {
		return err
	}
	return c.fetch(ctx, gen)
}

// CompleteStep asks the backend to complete stepID, which must be the current
// unlocked step. On success it returns the awarded xp and re-fetches the
// snapshot before releasing the controller. A failed request leaves the
// controller Ready with its snapshot untouched.
func (c *Controller) CompleteStep(ctx context.Context, stepID int) (int, error) {
	gen, err := c.begin(func() error {
		if c.state != StateReady || c.snapshot == nil {
			return ErrNotReady
		}
		cur, ok := c.snapshot.CurrentStep()
		if !ok || cur.ID != stepID || cur.Status != models.StatusUnlocked {
			return fmt.Errorf("%w: requested %d", ErrInvalidStepTransition, stepID)
		}
		c.pending = true
		return nil
	})
	if err != nil {
		return 0, err
	}
	c.notify(c.View())

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	xp, err := c.api.SubmitCompletion(callCtx, c.studentID, stepID)
	cancel()

	c.mu.Lock()
	if c.stale(gen) {
		c.mu.Unlock()
		return 0, ErrDisposed
	}
	c.pending = false
	if err != nil {
		c.inFlight = false
		view := c.viewLocked()
		c.mu.Unlock()
		c.notify(view)
		log.Printf("[JOURNEY] student=%s complete step %d failed: %v", c.studentID, stepID, err)
		return 0, fmt.Errorf("%w: complete step %d: %w", ErrNetwork, stepID, err)
	}
	c.mu.Unlock()

	log.Printf("[JOURNEY] student=%s completed step %d (+%d xp), refreshing", c.studentID, stepID, xp)
	if err := c.fetch(ctx, gen); err != nil && !errors.Is(err, ErrDisposed) {
		log.Printf("[JOURNEY] student=%s refresh after step %d failed: %v", c.studentID, stepID, err)
	}
	return xp, nil
}

// Dispose detaches the controller. Responses to requests still in flight are
// dropped when they arrive.
func (c *Controller) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disposed = true
	c.generation++
}

func (c *Controller) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

// begin claims the in-flight slot after check passes. check runs under the lock.
func (c *Controller) begin(check func() error) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return 0, ErrDisposed
	}
	if c.inFlight {
		return 0, ErrBusy
	}
	if err := check(); err != nil {
		return 0, err
	}
	c.inFlight = true
	return c.generation, nil
}

func (c *Controller) stale(gen uint64) bool {
	return c.disposed || gen != c.generation
}

// fetch runs with the in-flight slot held and always releases it.
func (c *Controller) fetch(ctx context.Context, gen uint64) error {
	c.mu.Lock()
	if c.stale(gen) {
		c.mu.Unlock()
		return ErrDisposed
	}
	c.state = StateLoading
	view := c.viewLocked()
	c.mu.Unlock()
	c.notify(view)

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	payload, err := c.api.FetchSteps(callCtx, c.studentID)
	cancel()

	var snapshot *models.ProgressSnapshot
	if err != nil {
		err = fmt.Errorf("%w: fetch progress: %w", ErrNetwork, err)
	} else {
		snapshot, err = models.FromServerPayload(payload)
	}

	c.mu.Lock()
	if c.stale(gen) {
		c.mu.Unlock()
		return ErrDisposed
	}
	c.inFlight = false
	if err != nil {
		c.state = StateError
		c.err = err
	} else {
		c.state = StateReady
		c.snapshot = snapshot
		c.err = nil
	}
	view = c.viewLocked()
	c.mu.Unlock()
	c.notify(view)

	if err != nil {
		log.Printf("[JOURNEY] student=%s fetch failed: %v", c.studentID, err)
	}
	return err
}

func (c *Controller) notify(v View) {
	for _, fn := range c.observers {
		fn(v)
	}
}

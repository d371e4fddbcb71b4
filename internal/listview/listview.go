// Package listview holds the state behind the to-do list screen: the draft
// and edit buffers plus the list mirrored from a live query.
//
// The controller is not safe for concurrent use. It is driven from a single
// goroutine; remote calls are handed back as Op values that the caller runs
// wherever it likes and folds back in with Settle.
package listview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Makepad-fr/tadalive/internal/docstore"
	"github.com/Makepad-fr/tadalive/internal/model"
)

// DefaultCollection is the collection the list is bound to.
const DefaultCollection = "todos"

var (
	ErrAlreadyActive = errors.New("listview: subscription already active")
	ErrInactive      = errors.New("listview: not active")
)

// Collection is the part of the document service the list needs.
type Collection interface {
	Append(ctx context.Context, collection string, doc docstore.Document) (string, error)
	Patch(ctx context.Context, collection, id string, fields docstore.Document) error
	Subscribe(ctx context.Context, q docstore.Query) (*docstore.Subscription, error)
}

// Identity is the part of the identity service the list needs.
type Identity interface {
	SignOut(ctx context.Context) error
}

// Destination is a screen outside the list.
type Destination string

const (
	DestNone           Destination = ""
	DestLogin          Destination = "Login"
	DestChangePassword Destination = "ChangePassword"
)

// OpKind tells Settle what a finished op was.
type OpKind int

const (
	OpAdd OpKind = iota + 1
	OpToggle
	OpSaveEdit
	OpSignOut
)

func (k OpKind) String() string {
	switch k {
	case OpAdd:
		return "add"
	case OpToggle:
		return "toggle"
	case OpSaveEdit:
		return "save edit"
	case OpSignOut:
		return "sign out"
	}
	return fmt.Sprintf("op(%d)", int(k))
}

// Result is what an Op reports when it finishes.
type Result struct {
	Kind        OpKind
	ID          string // record the op targeted; for OpAdd the assigned id
	Err         error
	Destination Destination
}

// Op is a pending remote call.
type Op func(ctx context.Context) Result

// Run executes op if it is non-nil. It reports whether anything ran.
func (op Op) Run(ctx context.Context) (Result, bool) {
	if op == nil {
		return Result{}, false
	}
	return op(ctx), true
}

// Option configures a Controller.
type Option func(*Controller)

// WithCollection binds the list to another collection.
func WithCollection(name string) Option { return func(c *Controller) { c.collection = name } }

// WithLogger sets the logger for remote failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// Controller is the list screen state.
type Controller struct {
	docs       Collection
	ident      Identity
	collection string
	logger     *slog.Logger

	draft       string
	items       []model.Todo
	loading     bool
	editingID   string
	editingText string
	lastErr     error

	sub *docstore.Subscription
}

func New(docs Collection, ident Identity, opts ...Option) *Controller {
	c := &Controller{
		docs:       docs,
		ident:      ident,
		collection: DefaultCollection,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		loading:    true,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Activate opens the live query ordered by title. Only one subscription
// may be active at a time.
func (c *Controller) Activate(ctx context.Context) error {
	if c.sub != nil {
		return ErrAlreadyActive
	}
	sub, err := c.docs.Subscribe(ctx, docstore.Query{Collection: c.collection, OrderBy: model.FieldTitle})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", c.collection, err)
	}
	c.sub = sub
	return nil
}

// Active reports whether a subscription is open.
func (c *Controller) Active() bool { return c.sub != nil }

// Snapshots is the channel of the active subscription, nil when inactive.
func (c *Controller) Snapshots() <-chan docstore.Snapshot {
	if c.sub == nil {
		return nil
	}
	return c.sub.Snapshots()
}

// Deactivate releases the subscription.
func (c *Controller) Deactivate() {
	if c.sub == nil {
		return
	}
	c.sub.Close()
	c.sub = nil
}

// ApplySnapshot replaces the list with the snapshot's contents.
func (c *Controller) ApplySnapshot(s docstore.Snapshot) {
	items := make([]model.Todo, 0, len(s.Docs))
	for _, d := range s.Docs {
		items = append(items, model.FromDocument(d.ID, d.Data))
	}
	c.items = items
	c.loading = false
}

// Watch applies snapshots until ctx is done or the subscription ends,
// calling fn after each one.
func (c *Controller) Watch(ctx context.Context, fn func(items []model.Todo)) error {
	ch := c.Snapshots()
	if ch == nil {
		return ErrInactive
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-ch:
			if !ok {
				return nil
			}
			c.ApplySnapshot(s)
			if fn != nil {
				fn(c.Items())
			}
		}
	}
}

// Items returns a copy of the displayed list.
func (c *Controller) Items() []model.Todo {
	out := make([]model.Todo, len(c.items))
	copy(out, c.items)
	return out
}

// Item looks up a displayed item.
func (c *Controller) Item(id string) (model.Todo, bool) {
	for _, it := range c.items {
		if it.ID == id {
			return it, true
		}
	}
	return model.Todo{}, false
}

func (c *Controller) Loading() bool    { return c.loading }
func (c *Controller) Draft() string    { return c.draft }
func (c *Controller) LastError() error { return c.lastErr }

func (c *Controller) SetDraft(s string) { c.draft = s }

// Add returns an op appending the draft as a new incomplete item, or nil
// when the draft is blank. The draft is cleared right away; the new item
// shows up with the next snapshot.
func (c *Controller) Add() Op {
	if strings.TrimSpace(c.draft) == "" {
		return nil
	}
	title := c.draft
	c.draft = ""
	docs, coll := c.docs, c.collection
	return func(ctx context.Context) Result {
		id, err := docs.Append(ctx, coll, docstore.Document{
			model.FieldTitle:    title,
			model.FieldComplete: false,
		})
		return Result{Kind: OpAdd, ID: id, Err: err}
	}
}

// Toggle returns an op flipping complete on id. The displayed value is
// left alone until the next snapshot.
func (c *Controller) Toggle(id string, complete bool) Op {
	docs, coll := c.docs, c.collection
	return func(ctx context.Context) Result {
		err := docs.Patch(ctx, coll, id, docstore.Document{model.FieldComplete: !complete})
		return Result{Kind: OpToggle, ID: id, Err: err}
	}
}

// BeginEdit starts editing id, abandoning any edit in progress.
func (c *Controller) BeginEdit(id, title string) {
	c.editingID = id
	c.editingText = title
}

// Editing returns the item being edited, if any.
func (c *Controller) Editing() (id string, ok bool) { return c.editingID, c.editingID != "" }

func (c *Controller) EditText() string     { return c.editingText }
func (c *Controller) SetEditText(s string) { c.editingText = s }

// SaveEdit returns an op writing the edit buffer as the title, or nil when
// the buffer is blank (edit mode stays on). Edit state is cleared when the
// op settles successfully.
func (c *Controller) SaveEdit() Op {
	if c.editingID == "" || strings.TrimSpace(c.editingText) == "" {
		return nil
	}
	id, title := c.editingID, c.editingText
	docs, coll := c.docs, c.collection
	return func(ctx context.Context) Result {
		err := docs.Patch(ctx, coll, id, docstore.Document{model.FieldTitle: title})
		return Result{Kind: OpSaveEdit, ID: id, Err: err}
	}
}

// CancelEdit drops the edit without saving.
func (c *Controller) CancelEdit() {
	c.editingID = ""
	c.editingText = ""
}

// Remove hides id from the displayed list. The stored record is untouched,
// so the next snapshot brings it back.
func (c *Controller) Remove(id string) {
	kept := c.items[:0:0]
	for _, it := range c.items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	c.items = kept
}

// SignOut returns an op signing out and pointing at the login screen. A
// failed sign-out still leads to the login screen.
func (c *Controller) SignOut() Op {
	ident := c.ident
	return func(ctx context.Context) Result {
		var err error
		if ident != nil {
			err = ident.SignOut(ctx)
		}
		return Result{Kind: OpSignOut, Err: err, Destination: DestLogin}
	}
}

// ChangePassword names the destination of the change-password action.
func (c *Controller) ChangePassword() Destination { return DestChangePassword }

// Settle folds a finished op back into the controller and returns where
// to navigate next, if anywhere.
func (c *Controller) Settle(r Result) Destination {
	if r.Err != nil {
		c.lastErr = fmt.Errorf("%s: %w", r.Kind, r.Err)
		c.logger.Warn("remote operation failed", "op", r.Kind.String(), "id", r.ID, "error", r.Err)
		return r.Destination
	}
	c.lastErr = nil
	if r.Kind == OpSaveEdit {
		c.CancelEdit()
	}
	return r.Destination
}

package mailbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"slices"
	"time"

	"github.com/biobot-lab/biobot/internal/errors"
	"github.com/biobot-lab/biobot/internal/event"
	"github.com/biobot-lab/biobot/internal/logging"
)

const defaultPollInterval = 500 * time.Millisecond

// Mailbox validates messages on their way into and out of a Store.
type Mailbox struct {
	store        Store
	bus          *event.Bus
	logger       *logging.Logger
	pollInterval time.Duration
}

// New returns a Mailbox over store.
func New(store Store, opts ...Option) *Mailbox {
	m := &Mailbox{
		store:        store,
		logger:       logging.NopLogger(),
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the underlying store.
func (m *Mailbox) Store() Store { return m.store }

// PutResult describes a successful Put.
type PutResult struct {
	Address Address
	// Existed is true when the address already held identical content.
	Existed bool
}

// Put stores msg at addr. The message ID must equal the address ID.
// Identical content already at addr is accepted and reported as drift;
// anything else at addr is an AddressConflictError.
func (m *Mailbox) Put(ctx context.Context, addr Address, msg Message) (PutResult, error) {
	res := PutResult{Address: addr}
	if err := addr.Validate(); err != nil {
		return res, errors.NewValidationError(err.Error()).WithField("address").WithValue(addr.String())
	}
	if msg.ID != addr.ID {
		return res, errors.NewIdentityMismatchError(addr.String(), addr.ID, msg.ID)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return res, fmt.Errorf("mailbox: encode %s: %w", addr, err)
	}

	err = m.store.Create(ctx, addr, data)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrExist):
		existing, rerr := m.store.Read(ctx, addr)
		if rerr != nil {
			return res, errors.NewAddressConflictError(addr.String()).WithCause(rerr)
		}
		if !Equivalent(existing, data) {
			return res, errors.NewAddressConflictError(addr.String())
		}
		res.Existed = true
		m.logger.WithChannel(string(addr.Channel)).WithIteration(addr.Iteration).Warn(
			"message already present with identical content; iteration numbering may have drifted",
			"experiment_id", addr.ID, "file", addr.FileName())
		m.publish(event.NewMessageDriftEvent(string(addr.Channel), addr.ID, addr.Iteration))
	default:
		return res, err
	}

	m.publish(event.NewMessageWrittenEvent(string(addr.Channel), addr.ID, addr.Iteration, addr.FileName(), res.Existed))
	return res, nil
}

// Get reads and validates the message at addr.
func (m *Mailbox) Get(ctx context.Context, addr Address) (Message, error) {
	if err := addr.Validate(); err != nil {
		return Message{}, errors.NewValidationError(err.Error()).WithField("address").WithValue(addr.String())
	}
	data, err := m.store.Read(ctx, addr)
	if errors.Is(err, fs.ErrNotExist) {
		return Message{}, errors.NewNotFoundError("message", addr.String())
	}
	if err != nil {
		return Message{}, err
	}

	msg, reason := decodeMessage(data)
	if reason != "" {
		return Message{}, errors.NewMalformedMessageError(addr.String(), reason)
	}
	if msg.ID != addr.ID {
		return Message{}, errors.NewIdentityMismatchError(addr.String(), addr.ID, msg.ID)
	}
	return msg, nil
}

// Exists reports whether addr holds a file, valid or not.
func (m *Mailbox) Exists(ctx context.Context, addr Address) (bool, error) {
	return m.store.Exists(ctx, addr)
}

// Iterations returns the iterations present for id in ch, ascending. Files
// that do not parse as "{id}_{n}.json" are ignored.
func (m *Mailbox) Iterations(ctx context.Context, ch Channel, id string) ([]int, error) {
	names, err := m.store.List(ctx, ch)
	if err != nil {
		return nil, err
	}
	var iters []int
	for _, name := range names {
		fid, n, ok := ParseFileName(name)
		if ok && fid == id {
			iters = append(iters, n)
		}
	}
	slices.Sort(iters)
	return iters, nil
}

// Wait blocks until addr exists or ctx is done. Stores that implement
// Notifier wake the waiter early; polling covers missed notifications and
// the other stores.
func (m *Mailbox) Wait(ctx context.Context, addr Address) error {
	if err := addr.Validate(); err != nil {
		return errors.NewValidationError(err.Error()).WithField("address").WithValue(addr.String())
	}

	var notify <-chan struct{}
	if n, ok := m.store.(Notifier); ok {
		wctx, cancel := context.WithCancel(ctx)
		defer cancel()
		ch, err := n.Notify(wctx, addr.Channel)
		if err != nil {
			m.logger.Debug("change notification unavailable, polling", "error", err)
		} else {
			notify = ch
		}
	}

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	for {
		ok, err := m.store.Exists(ctx, addr)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", addr, ctx.Err())
		case <-ticker.C:
		case _, open := <-notify:
			if !open {
				notify = nil
			}
		}
	}
}

func (m *Mailbox) publish(e event.Event) {
	if m.bus != nil {
		m.bus.Publish(e)
	}
}

package round

import (
	"context"
	"strconv"

	"github.com/biobot-lab/biobot/internal/errors"
	"github.com/biobot-lab/biobot/internal/event"
	"github.com/biobot-lab/biobot/internal/idgen"
	"github.com/biobot-lab/biobot/internal/logging"
	"github.com/biobot-lab/biobot/internal/mailbox"
	"github.com/biobot-lab/biobot/internal/registry"
)

// DefaultMaxAttempts bounds identifier generation when candidates collide.
const DefaultMaxAttempts = 10

// Operation names used in events and logs.
const (
	OpStart     = "start"
	OpIntervene = "intervene"
	OpObserve   = "observe"
)

// Result describes the message a step wrote.
type Result struct {
	Index     int             `json:"index" yaml:"index"`
	ID        string          `json:"id" yaml:"id"`
	Channel   mailbox.Channel `json:"channel" yaml:"channel"`
	Iteration int             `json:"iteration" yaml:"iteration"`
	FileName  string          `json:"file" yaml:"file"`
	// Existed is true when identical content was already at the address.
	Existed bool `json:"existed,omitempty" yaml:"existed,omitempty"`
	// Attempts is the number of identifiers tried by StartExperiment.
	Attempts int `json:"attempts,omitempty" yaml:"attempts,omitempty"`
}

// Controller runs round steps against a registry and a mailbox.
type Controller struct {
	registry    registry.Registry
	mailbox     *mailbox.Mailbox
	ids         *idgen.Generator
	policy      idgen.Policy
	maxAttempts int
	bus         *event.Bus
	logger      *logging.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithGenerator replaces the identifier generator.
func WithGenerator(g *idgen.Generator) Option {
	return func(c *Controller) {
		if g != nil {
			c.ids = g
		}
	}
}

// WithCollisionPolicy sets how a taken identifier is replaced and how many
// identifiers are tried in total.
func WithCollisionPolicy(p idgen.Policy, maxAttempts int) Option {
	return func(c *Controller) {
		c.policy = p
		if maxAttempts > 0 {
			c.maxAttempts = maxAttempts
		}
	}
}

// WithBus attaches an event bus.
func WithBus(bus *event.Bus) Option {
	return func(c *Controller) { c.bus = bus }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a Controller.
func New(reg registry.Registry, mb *mailbox.Mailbox, opts ...Option) *Controller {
	c := &Controller{
		registry:    reg,
		mailbox:     mb,
		ids:         idgen.New(),
		policy:      idgen.PolicySuffix,
		maxAttempts: DefaultMaxAttempts,
		logger:      logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartExperiment registers a new experiment and writes its observation 0.
// payload is an optional JSON object merged into the message; it may not
// carry an ID since the identifier is generated here.
func (c *Controller) StartExperiment(ctx context.Context, payload []byte) (res Result, err error) {
	defer func() {
		if err != nil {
			c.fail(OpStart, -1, 0, err)
		}
	}()

	template, err := mailbox.ParsePayload("", payload)
	if err != nil {
		return res, errors.NewValidationError(err.Error()).WithField("payload")
	}
	if template.ID != "" {
		return res, errors.NewValidationError("payload must not set ID; it is generated").
			WithField("payload.ID").WithValue(template.ID)
	}

	id, index, attempts, err := c.register(ctx)
	if err != nil {
		return res, err
	}
	log := c.logger.WithExperiment(index, id).WithIteration(0)

	template.ID = id
	addr := mailbox.Address{Channel: mailbox.Observations, ID: id, Iteration: 0}
	put, err := c.mailbox.Put(ctx, addr, template)
	if err != nil {
		log.Error("experiment registered but first observation not written", "error", err)
		return res, err
	}

	log.Info("experiment started", "file", addr.FileName(), "attempts", attempts)
	c.publish(event.NewExperimentCreatedEvent(index, id, attempts))
	return Result{
		Index:     index,
		ID:        id,
		Channel:   mailbox.Observations,
		Iteration: 0,
		FileName:  addr.FileName(),
		Existed:   put.Existed,
		Attempts:  attempts,
	}, nil
}

// register appends the first free candidate identifier. A candidate is
// taken when the registry already holds it or when observation 0 for it
// already exists in the mailbox.
func (c *Controller) register(ctx context.Context) (id string, index, attempts int, err error) {
	next := c.ids.Candidates(c.policy)
	for attempts = 1; attempts <= c.maxAttempts; attempts++ {
		id, err = next(ctx)
		if err != nil {
			return "", -1, attempts, err
		}

		orphan, err := c.mailbox.Exists(ctx, mailbox.Address{Channel: mailbox.Observations, ID: id, Iteration: 0})
		if err != nil {
			return "", -1, attempts, err
		}
		if orphan {
			c.collision(id, "mailbox")
			continue
		}

		index, err = c.registry.Append(ctx, id)
		if errors.Is(err, errors.ErrAlreadyExists) {
			c.collision(id, "registered")
			continue
		}
		if err != nil {
			return "", -1, attempts, err
		}
		return id, index, attempts, nil
	}
	return "", -1, c.maxAttempts, errors.Wrapf(errors.NewAlreadyExistsError("experiment", id),
		"no free experiment identifier after %d attempts", c.maxAttempts)
}

func (c *Controller) collision(id, reason string) {
	c.logger.Warn("experiment identifier already taken", "candidate", id, "reason", reason, "policy", string(c.policy))
	c.publish(event.NewIDCollisionEvent(id, reason))
}

// ProposeIntervention reads observation iteration of the experiment at index
// and writes intervention iteration.
func (c *Controller) ProposeIntervention(ctx context.Context, index, iteration int, payload []byte) (Result, error) {
	return c.step(ctx, OpIntervene, index, iteration, payload,
		mailbox.Observations, mailbox.Interventions, iteration)
}

// CaptureObservation reads intervention iteration of the experiment at index
// and writes observation iteration+1.
func (c *Controller) CaptureObservation(ctx context.Context, index, iteration int, payload []byte) (Result, error) {
	return c.step(ctx, OpObserve, index, iteration, payload,
		mailbox.Interventions, mailbox.Observations, iteration+1)
}

// step is one half-round: validate inputs, resolve the experiment, check the
// predecessor, then write the successor. Nothing is written unless every
// check passes.
func (c *Controller) step(ctx context.Context, op string, index, iteration int, payload []byte,
	from, to mailbox.Channel, outIteration int) (res Result, err error) {
	defer func() {
		if err != nil {
			c.fail(op, index, iteration, err)
		}
	}()

	if err := validateIndex(index); err != nil {
		return res, err
	}
	if iteration < 0 {
		return res, errors.NewValidationError("iteration must be non-negative").
			WithField("iteration").WithValue(iteration)
	}

	id, err := c.registry.Resolve(ctx, index)
	if err != nil {
		return res, err
	}
	msg, err := mailbox.ParsePayload(id, payload)
	if err != nil {
		return res, errors.NewValidationError(err.Error()).WithField("payload")
	}

	if _, err := c.mailbox.Get(ctx, mailbox.Address{Channel: from, ID: id, Iteration: iteration}); err != nil {
		return res, err
	}

	out := mailbox.Address{Channel: to, ID: id, Iteration: outIteration}
	put, err := c.mailbox.Put(ctx, out, msg)
	if err != nil {
		return res, err
	}

	c.logger.WithExperiment(index, id).WithIteration(outIteration).WithChannel(string(to)).
		Info("message written", "operation", op, "file", out.FileName(), "existed", put.Existed)
	return Result{
		Index:     index,
		ID:        id,
		Channel:   to,
		Iteration: outIteration,
		FileName:  out.FileName(),
		Existed:   put.Existed,
	}, nil
}

// Await blocks until the message at (ch, experiment index, iteration) exists.
func (c *Controller) Await(ctx context.Context, ch mailbox.Channel, index, iteration int) (mailbox.Address, error) {
	if err := validateIndex(index); err != nil {
		return mailbox.Address{}, err
	}
	id, err := c.registry.Resolve(ctx, index)
	if err != nil {
		return mailbox.Address{}, err
	}
	addr := mailbox.Address{Channel: ch, ID: id, Iteration: iteration}
	c.logger.WithExperiment(index, id).WithChannel(string(ch)).Debug("waiting for message", "file", addr.FileName())
	return addr, c.mailbox.Wait(ctx, addr)
}

// fail logs at a level chosen by the error's severity. Identity mismatches
// and registry corruption land at ERROR; a missing predecessor is a WARN the
// operator resolves by producing it and re-running.
func (c *Controller) fail(op string, index, iteration int, err error) {
	kind := errors.Kind(err)
	sev := errors.GetSeverity(err)
	log := c.logger.With(
		"operation", op, "experiment_index", index, "iteration", iteration,
		"kind", kind, "severity", sev.String(), "retryable", errors.IsRetryable(err))
	switch sev {
	case errors.SeverityCritical, errors.SeverityError:
		log.Error("round step failed", "error", err)
	case errors.SeverityWarning:
		log.Warn("round step failed", "error", err)
	default:
		log.Info("round step failed", "error", err)
	}
	c.publish(event.NewRoundFailedEvent(op, index, iteration, kind, err))
}

func (c *Controller) publish(e event.Event) {
	if c.bus != nil {
		c.bus.Publish(e)
	}
}

func validateIndex(index int) error {
	if index < 0 {
		return errors.NewValidationError("experiment index must be non-negative").
			WithField("experiment_index").WithValue(strconv.Itoa(index))
	}
	return nil
}

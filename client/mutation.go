package client

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	surface "github.com/surfacehq/surface"
	"github.com/surfacehq/surface/finding"
)

// findingsInvalidation is the substring used to mark finding-related cache
// entries stale after a successful mutation. Invalidation is deliberately
// broad: every cached findings query goes stale together.
const findingsInvalidation = "findings"

// Invalidator marks cached queries stale. *cache.Cache satisfies it.
type Invalidator interface {
	Invalidate(ctx context.Context, substr string) (int, error)
}

// Mutator applies field changes to findings optimistically: the local copy
// is updated immediately, the mutation is issued to the API, and on failure
// the local copy is restored to its exact pre-mutation value.
//
// There is no coordination across concurrent mutators and no ordering
// guarantee beyond last-write-wins at the server; a finding should be
// mutated by one goroutine at a time.
type Mutator struct {
	client    *Client
	inv       Invalidator
	logger    *slog.Logger
	tracer    trace.Tracer
	rollbacks metric.Int64Counter
}

// NewMutator creates a mutation wrapper around the API client. inv may be
// nil when no query cache is in use.
func NewMutator(c *Client, inv Invalidator, logger *slog.Logger) (*Mutator, error) {
	if c == nil {
		return nil, fmt.Errorf("client cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	rollbacks, err := otel.Meter("surface/client").Int64Counter(
		"surface.mutation.rollbacks",
		metric.WithDescription("Optimistic mutations rolled back after a failed API call"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rollback counter: %w", err)
	}

	return &Mutator{
		client:    c,
		inv:       inv,
		logger:    logger,
		tracer:    otel.Tracer("surface/client"),
		rollbacks: rollbacks,
	}, nil
}

// UpdateStatus transitions the finding to a new status.
//
// Illegal edges are rejected locally with a *finding.TransitionError before
// any network call. Statuses flagged by finding.RequiresApproval return
// surface.ErrApprovalRequired without applying the change; the caller is
// expected to raise an approval request instead.
//
// On success the local finding is reconciled with the server's response and
// finding-related cache entries are invalidated. On failure the local
// finding is restored to its pre-mutation value and the error returned.
func (m *Mutator) UpdateStatus(ctx context.Context, f *finding.Finding, to finding.Status, resolution string) error {
	ctx, span := m.tracer.Start(ctx, "Mutator.UpdateStatus")
	defer span.End()

	if !finding.CanTransition(f.Status, to) {
		return &finding.TransitionError{From: f.Status, To: to}
	}
	if finding.RequiresApproval(to) {
		return surface.NewConflictError("Mutator.UpdateStatus", surface.ErrApprovalRequired).
			WithContext(map[string]any{"finding_id": f.ID, "status": to.String()})
	}

	snapshot := f.Clone()
	if err := f.Transition(to, resolution); err != nil {
		return err
	}

	updated, err := m.client.UpdateStatus(ctx, f.TenantID, f.ID, to, resolution)
	if err != nil {
		m.rollback(ctx, f, snapshot, "status", err)
		return err
	}

	*f = *updated
	m.invalidate(ctx)
	return nil
}

// UpdateSeverity changes the finding's severity, optionally recording the
// CVSS score and vector backing the change. Same optimistic semantics as
// UpdateStatus.
func (m *Mutator) UpdateSeverity(ctx context.Context, f *finding.Finding, severity finding.Severity, cvssScore *float64, cvssVector string) error {
	ctx, span := m.tracer.Start(ctx, "Mutator.UpdateSeverity")
	defer span.End()

	snapshot := f.Clone()
	if err := f.SetSeverity(severity, cvssScore, cvssVector); err != nil {
		// Local validation failed; nothing was sent.
		return err
	}

	updated, err := m.client.UpdateSeverity(ctx, f.TenantID, f.ID, severity, cvssScore, cvssVector)
	if err != nil {
		m.rollback(ctx, f, snapshot, "severity", err)
		return err
	}

	*f = *updated
	m.invalidate(ctx)
	return nil
}

// Assign assigns the finding to a user. Same optimistic semantics as
// UpdateStatus.
func (m *Mutator) Assign(ctx context.Context, f *finding.Finding, userID string) error {
	ctx, span := m.tracer.Start(ctx, "Mutator.Assign")
	defer span.End()

	snapshot := f.Clone()
	if err := f.Assign(userID); err != nil {
		return err
	}

	updated, err := m.client.Assign(ctx, f.ID, userID)
	if err != nil {
		m.rollback(ctx, f, snapshot, "assignee", err)
		return err
	}

	*f = *updated
	m.invalidate(ctx)
	return nil
}

// Unassign clears the finding's assignee. Same optimistic semantics as
// UpdateStatus.
func (m *Mutator) Unassign(ctx context.Context, f *finding.Finding) error {
	ctx, span := m.tracer.Start(ctx, "Mutator.Unassign")
	defer span.End()

	snapshot := f.Clone()
	prev := f.AssigneeID
	f.Unassign()

	updated, err := m.client.Unassign(ctx, f.ID, prev)
	if err != nil {
		m.rollback(ctx, f, snapshot, "assignee", err)
		return err
	}

	*f = *updated
	m.invalidate(ctx)
	return nil
}

// rollback restores the pre-mutation snapshot and records the failure.
func (m *Mutator) rollback(ctx context.Context, f, snapshot *finding.Finding, field string, cause error) {
	*f = *snapshot
	m.rollbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("field", field)))
	m.logger.Warn("mutation failed, local state reverted",
		"finding_id", f.ID, "field", field, "error", cause)
}

// invalidate marks finding-related cached queries stale. Invalidation
// failures are logged, not returned: the mutation itself succeeded and the
// cache entries expire on their TTL anyway.
func (m *Mutator) invalidate(ctx context.Context) {
	if m.inv == nil {
		return
	}
	if _, err := m.inv.Invalidate(ctx, findingsInvalidation); err != nil {
		m.logger.Warn("cache invalidation failed", "substr", findingsInvalidation, "error", err)
	}
}

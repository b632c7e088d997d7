package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	surface "github.com/surfacehq/surface"
	"github.com/surfacehq/surface/finding"
)

type fakeInvalidator struct {
	calls []string
}

func (f *fakeInvalidator) Invalidate(_ context.Context, substr string) (int, error) {
	f.calls = append(f.calls, substr)
	return 1, nil
}

func confirmedFinding() *finding.Finding {
	f := finding.NewWithID("f-1", "tenant-1", "Exposed admin panel",
		"Admin panel reachable without authentication",
		finding.SeverityHigh, finding.Source{Tool: "httpx"})
	f.Status = finding.StatusConfirmed
	return f
}

func newTestMutator(t *testing.T, handler http.Handler) (*Mutator, *fakeInvalidator) {
	t.Helper()
	c, _ := newTestClient(t, handler)
	inv := &fakeInvalidator{}
	m, err := NewMutator(c, inv, nil)
	require.NoError(t, err)
	return m, inv
}

func TestMutatorUpdateStatusSuccess(t *testing.T) {
	m, inv := newTestMutator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var patch statusPatch
		require.NoError(t, json.NewDecoder(r.Body).Decode(&patch))

		wire := testFindingWire("f-1")
		wire.Status = patch.Status
		json.NewEncoder(w).Encode(wire)
	}))

	f := confirmedFinding()
	err := m.UpdateStatus(context.Background(), f, finding.StatusInProgress, "")
	require.NoError(t, err)

	assert.Equal(t, finding.StatusInProgress, f.Status)
	assert.Equal(t, []string{"findings"}, inv.calls)
}

func TestMutatorUpdateStatusRollback(t *testing.T) {
	m, inv := newTestMutator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(apiError{Error: "status changed concurrently"})
	}))

	f := confirmedFinding()
	before := f.Clone()

	err := m.UpdateStatus(context.Background(), f, finding.StatusInProgress, "")
	require.Error(t, err)

	// The local copy must be exactly its pre-mutation value.
	assert.Equal(t, before, f)
	assert.Empty(t, inv.calls)
}

func TestMutatorRejectsIllegalTransitionLocally(t *testing.T) {
	var calls atomic.Int32
	m, inv := newTestMutator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	f := confirmedFinding()
	f.Status = finding.StatusNew

	err := m.UpdateStatus(context.Background(), f, finding.StatusResolved, "")
	require.Error(t, err)

	var terr *finding.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, finding.StatusNew, terr.From)
	assert.Equal(t, finding.StatusResolved, terr.To)

	assert.Equal(t, int32(0), calls.Load(), "illegal transitions must not reach the API")
	assert.Equal(t, finding.StatusNew, f.Status)
	assert.Empty(t, inv.calls)
}

func TestMutatorApprovalRequired(t *testing.T) {
	var calls atomic.Int32
	m, _ := newTestMutator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	f := confirmedFinding()
	err := m.UpdateStatus(context.Background(), f, finding.StatusResolved, "fixed")
	require.Error(t, err)
	assert.True(t, errors.Is(err, surface.ErrApprovalRequired))

	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, finding.StatusConfirmed, f.Status)
}

func TestMutatorUpdateSeveritySuccess(t *testing.T) {
	m, inv := newTestMutator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var patch severityPatch
		require.NoError(t, json.NewDecoder(r.Body).Decode(&patch))
		assert.Equal(t, "critical", patch.Severity)
		require.NotNil(t, patch.CVSSScore)
		assert.Equal(t, 9.8, *patch.CVSSScore)

		wire := testFindingWire("f-1")
		wire.Severity = patch.Severity
		wire.CVSSScore = patch.CVSSScore
		wire.CVSSVector = patch.CVSSVector
		json.NewEncoder(w).Encode(wire)
	}))

	f := confirmedFinding()
	score := 9.8
	err := m.UpdateSeverity(context.Background(), f, finding.SeverityCritical, &score, "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H")
	require.NoError(t, err)

	assert.Equal(t, finding.SeverityCritical, f.Severity)
	require.NotNil(t, f.CVSSScore)
	assert.Equal(t, 9.8, *f.CVSSScore)
	assert.Equal(t, []string{"findings"}, inv.calls)
}

func TestMutatorUpdateSeverityRollback(t *testing.T) {
	m, inv := newTestMutator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	f := confirmedFinding()
	before := f.Clone()

	err := m.UpdateSeverity(context.Background(), f, finding.SeverityLow, nil, "")
	require.Error(t, err)
	assert.Equal(t, before, f)
	assert.Empty(t, inv.calls)
}

func TestMutatorUpdateSeverityBandMismatch(t *testing.T) {
	var calls atomic.Int32
	m, _ := newTestMutator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	f := confirmedFinding()
	score := 9.8
	err := m.UpdateSeverity(context.Background(), f, finding.SeverityLow, &score, "")
	require.Error(t, err)
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, finding.SeverityHigh, f.Severity)
}

func TestMutatorAssignAndUnassign(t *testing.T) {
	m, inv := newTestMutator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body assignBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		wire := testFindingWire("f-1")
		switch r.URL.Path {
		case "/api/v1/findings/f-1/assign":
			wire.AssigneeID = body.UserID
		case "/api/v1/findings/f-1/unassign":
			wire.AssigneeID = ""
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(wire)
	}))

	f := confirmedFinding()
	require.NoError(t, m.Assign(context.Background(), f, "user-1"))
	assert.Equal(t, "user-1", f.AssigneeID)

	require.NoError(t, m.Unassign(context.Background(), f))
	assert.Empty(t, f.AssigneeID)

	assert.Equal(t, []string{"findings", "findings"}, inv.calls)
}

func TestMutatorAssignRollback(t *testing.T) {
	m, _ := newTestMutator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(apiError{Error: "insufficient role"})
	}))

	f := confirmedFinding()
	f.AssigneeID = "user-1"

	err := m.Assign(context.Background(), f, "user-2")
	require.Error(t, err)
	assert.Equal(t, "user-1", f.AssigneeID)
}

func TestNewMutatorValidation(t *testing.T) {
	_, err := NewMutator(nil, nil, nil)
	assert.Error(t, err)
}

package guard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inspectra-app/inspectra/internal/ability"
)

type fakeProber struct {
	children map[string][]int64 // table -> parent ids with rows
	err      error
}

func (f *fakeProber) HasChildren(ctx context.Context, edge Edge, parentID int64) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	for _, id := range f.children[edge.Table] {
		if id == parentID {
			return true, nil
		}
	}
	return false, nil
}

func TestCheckDeletableOrganizationWithDependentsConflicts(t *testing.T) {
	prober := &fakeProber{children: map[string][]int64{
		"clients": {1},
		"reports": {1},
	}}
	checker := NewChecker(DefaultRegistry(), prober)

	err := checker.CheckDeletable(context.Background(), ability.KindOrganization, 1)
	var conflict *Conflict
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, ability.KindOrganization, conflict.Kind)
	require.ElementsMatch(t, []ability.ResourceKind{ability.KindClient, ability.KindReport}, conflict.Blocking)
}

func TestCheckDeletableClientBlockedByReports(t *testing.T) {
	prober := &fakeProber{children: map[string][]int64{"reports": {7}}}
	checker := NewChecker(DefaultRegistry(), prober)

	err := checker.CheckDeletable(context.Background(), ability.KindClient, 7)
	var conflict *Conflict
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, []ability.ResourceKind{ability.KindReport}, conflict.Blocking)

	require.NoError(t, checker.CheckDeletable(context.Background(), ability.KindClient, 8))
}

func TestCheckDeletableSkipsCascadeEdges(t *testing.T) {
	// Maintenance rows never block an equipment delete; the repository
	// removes them in the same transaction.
	prober := &fakeProber{children: map[string][]int64{"daily_maintenance": {4}}}
	checker := NewChecker(DefaultRegistry(), prober)

	require.NoError(t, checker.CheckDeletable(context.Background(), ability.KindEquipment, 4))
}

func TestCheckDeletableInstrumentGuardsReports(t *testing.T) {
	prober := &fakeProber{children: map[string][]int64{"report_instruments": {3}}}
	checker := NewChecker(DefaultRegistry(), prober)

	err := checker.CheckDeletable(context.Background(), ability.KindInstrument, 3)
	var conflict *Conflict
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, []ability.ResourceKind{ability.KindReport}, conflict.Blocking)
}

func TestCheckDeletableUnregisteredKindPasses(t *testing.T) {
	checker := NewChecker(DefaultRegistry(), &fakeProber{})
	require.NoError(t, checker.CheckDeletable(context.Background(), ability.KindValve, 1))
}

func TestCheckDeletablePropagatesProbeErrors(t *testing.T) {
	boom := errors.New("pg down")
	checker := NewChecker(DefaultRegistry(), &fakeProber{err: boom})
	require.ErrorIs(t, checker.CheckDeletable(context.Background(), ability.KindClient, 1), boom)
}

func TestConflictErrorNamesBlockingKinds(t *testing.T) {
	conflict := &Conflict{Kind: ability.KindEquipment, Blocking: []ability.ResourceKind{ability.KindDailyMaintenance}}
	require.Equal(t, "guard: cannot delete Equipment, referenced by Daily Maintenance", conflict.Error())
}

func TestLabelSplitsCamelCase(t *testing.T) {
	require.Equal(t, "Company Unit", Label(ability.KindCompanyUnit))
	require.Equal(t, "Report", Label(ability.KindReport))
}

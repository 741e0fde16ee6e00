package inspection

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/eicr/core/checklist"
	"github.com/trezcool/eicr/tests"
)

type recorder struct {
	updates   []Update
	observed  []Record
	navigated int
	fail      error
}

func (rec *recorder) handlers() Handlers {
	return Handlers{
		UpdateItem: func(u Update) error {
			if rec.fail != nil {
				return rec.fail
			}
			rec.updates = append(rec.updates, u)
			return nil
		},
		AutoCreateObservation:  func(r Record) { rec.observed = append(rec.observed, r) },
		NavigateToObservations: func() { rec.navigated++ },
	}
}

func newChecklist(t *testing.T) (*Checklist, *recorder, *testutil.Logger) {
	cat := testutil.Catalogue(t)
	rec := &recorder{}
	logger := testutil.NewLogger()
	return NewChecklist(cat, NewRecords(cat), rec.handlers(), logger), rec, logger
}

func requireConsistent(t *testing.T, records Records) {
	t.Helper()
	for _, r := range records {
		require.Truef(t, r.Consistent(), "record %q: outcome %q, inspected %v", r.ID, r.Outcome, r.Inspected)
	}
}

func TestChecklist_ChangeOutcome(t *testing.T) {
	tests := []struct {
		outcome       Outcome
		wantInspected bool
		wantObserved  bool
	}{
		{outcome: OutcomeSatisfactory, wantInspected: true},
		{outcome: OutcomeC1, wantInspected: true, wantObserved: true},
		{outcome: OutcomeC2, wantInspected: true, wantObserved: true},
		{outcome: OutcomeC3, wantInspected: true, wantObserved: true},
		{outcome: OutcomeNotApplicable},
		{outcome: OutcomeNotVerified, wantInspected: true},
		{outcome: OutcomeLimitation, wantInspected: true},
		{outcome: OutcomeUnset},
	}
	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			cl, rec, _ := newChecklist(t)
			before := cl.Records()

			require.True(t, cl.ChangeOutcome("i2", tt.outcome))

			after := cl.Records()
			requireConsistent(t, after)
			got, _ := after.Get("i2")
			if tt.outcome == OutcomeUnset {
				assert.Equal(t, OutcomeUnset, got.Outcome)
			} else {
				assert.Equal(t, tt.outcome, got.Outcome)
			}
			assert.Equal(t, tt.wantInspected, got.Inspected)

			// one whole-collection commit, other records untouched, order kept
			require.Len(t, rec.updates, 1)
			bulk, ok := rec.updates[0].(BulkReplace)
			require.True(t, ok)
			assert.Equal(t, after, bulk.Records)
			for i, r := range after {
				if r.ID != "i2" {
					assert.Equal(t, before[i], r)
				}
			}

			if tt.wantObserved {
				assert.Equal(t, []Record{got}, rec.observed)
			} else {
				assert.Empty(t, rec.observed)
			}
		})
	}
}

func TestChecklist_ChangeOutcome_toggle(t *testing.T) {
	cl, rec, _ := newChecklist(t)

	want := []Outcome{OutcomeC2, OutcomeUnset, OutcomeC2}
	for i, w := range want {
		require.True(t, cl.ChangeOutcome("i1", OutcomeC2), "call #%d", i+1)
		r, _ := cl.Records().Get("i1")
		assert.Equal(t, w, r.Outcome, "call #%d", i+1)
		assert.Equal(t, w.Inspected(), r.Inspected, "call #%d", i+1)
	}
	assert.Len(t, rec.updates, 3)
	assert.Len(t, rec.observed, 2) // the clearing call does not observe
}

func TestChecklist_ChangeOutcome_failures(t *testing.T) {
	t.Run("missing record", func(t *testing.T) {
		cl, rec, logger := newChecklist(t)
		before := cl.Records()

		assert.False(t, cl.ChangeOutcome("nope", OutcomeC1))
		assert.Equal(t, before, cl.Records())
		assert.Empty(t, rec.updates)
		assert.Empty(t, rec.observed)
		assert.Equal(t, []string{"inspection: record not found"}, logger.Messages("warn"))
	})

	t.Run("invalid outcome", func(t *testing.T) {
		cl, rec, logger := newChecklist(t)
		assert.False(t, cl.ChangeOutcome("i1", Outcome("C4")))
		assert.Empty(t, rec.updates)
		assert.Equal(t, 1, logger.Count("warn"))
	})

	t.Run("commit error", func(t *testing.T) {
		cl, rec, logger := newChecklist(t)
		rec.fail = errors.New("disk full")
		before := cl.Records()

		assert.False(t, cl.ChangeOutcome("i1", OutcomeC1))
		assert.Equal(t, before, cl.Records())
		assert.Empty(t, rec.observed)
		assert.Equal(t, []string{"inspection: commit failed"}, logger.Messages("error"))
	})

	t.Run("commit panic", func(t *testing.T) {
		cat := testutil.Catalogue(t)
		logger := testutil.NewLogger()
		cl := NewChecklist(cat, NewRecords(cat), Handlers{
			UpdateItem: func(Update) error { panic("boom") },
		}, logger)

		assert.NotPanics(t, func() { assert.False(t, cl.ChangeOutcome("i1", OutcomeC1)) })
		r, _ := cl.Records().Get("i1")
		assert.Equal(t, OutcomeUnset, r.Outcome)
		assert.Equal(t, 1, logger.Count("error"))
	})

	t.Run("observation panic keeps the commit", func(t *testing.T) {
		cat := testutil.Catalogue(t)
		logger := testutil.NewLogger()
		cl := NewChecklist(cat, NewRecords(cat), Handlers{
			AutoCreateObservation: func(Record) { panic(errors.New("boom")) },
		}, logger)

		assert.True(t, cl.ChangeOutcome("i1", OutcomeC1))
		r, _ := cl.Records().Get("i1")
		assert.Equal(t, OutcomeC1, r.Outcome)
		assert.Equal(t, []string{"inspection: auto-create observation failed"}, logger.Messages("error"))
	})
}

func TestChecklist_BulkAction(t *testing.T) {
	tests := []struct {
		action        BulkAction
		wantOutcome   Outcome
		wantInspected bool
	}{
		{action: BulkMarkSatisfactory, wantOutcome: OutcomeSatisfactory, wantInspected: true},
		{action: BulkMarkNotApplicable, wantOutcome: OutcomeNotApplicable},
		{action: BulkClear, wantOutcome: OutcomeUnset},
	}
	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			cl, rec, _ := newChecklist(t)
			require.True(t, cl.ChangeOutcome("i1", OutcomeC3))
			require.True(t, cl.ChangeOutcome("i4", OutcomeC1))
			rec.updates, rec.observed = nil, nil
			before := cl.Records()

			require.True(t, cl.BulkAction("s1", tt.action))

			after := cl.Records()
			requireConsistent(t, after)
			for i, r := range after {
				if r.Section != "s1" {
					assert.Equal(t, before[i], r, "record outside the section changed")
					continue
				}
				assert.Equal(t, tt.wantOutcome, r.Outcome)
				assert.Equal(t, tt.wantInspected, r.Inspected)
			}
			require.Len(t, rec.updates, 1)
			assert.IsType(t, BulkReplace{}, rec.updates[0])
			assert.Empty(t, rec.observed)
		})
	}
}

func TestChecklist_BulkAction_failures(t *testing.T) {
	cl, rec, logger := newChecklist(t)
	before := cl.Records()

	assert.False(t, cl.BulkAction("nope", BulkMarkSatisfactory))
	assert.False(t, cl.BulkAction("s1", BulkAction("mark-c1")))
	rec.fail = errors.New("disk full")
	assert.False(t, cl.BulkAction("s1", BulkMarkSatisfactory))

	assert.Equal(t, before, cl.Records())
	assert.Empty(t, rec.updates)
	assert.Equal(t, 2, logger.Count("warn"))
	assert.Equal(t, 1, logger.Count("error"))
}

func TestChecklist_SetNotes(t *testing.T) {
	cl, rec, logger := newChecklist(t)

	require.True(t, cl.SetNotes("i3", "scorched"))
	r, _ := cl.Records().Get("i3")
	assert.Equal(t, "scorched", r.Notes)
	assert.Equal(t, []Update{FieldUpdate{ID: "i3", Field: FieldNotes, Value: "scorched"}}, rec.updates)

	assert.False(t, cl.SetNotes("nope", "x"))
	assert.Equal(t, 1, logger.Count("warn"))
}

func TestChecklist_ViewObservations(t *testing.T) {
	cl, rec, logger := newChecklist(t)
	require.True(t, cl.ChangeOutcome("i1", OutcomeC2))
	require.True(t, cl.ChangeOutcome("i2", OutcomeSatisfactory))

	assert.True(t, cl.ViewObservations("i1"))
	assert.False(t, cl.ViewObservations("i2"))
	assert.False(t, cl.ViewObservations("nope"))
	assert.Equal(t, 1, rec.navigated)
	assert.Equal(t, 1, logger.Count("warn"))
	assert.Equal(t, 1, logger.Count("debug"))
}

// The worked example: one section, a C2 then a bulk satisfactory.
func TestChecklist_example(t *testing.T) {
	cat, err := checklist.New(checklist.Document{
		Version: "example",
		Sections: []checklist.Section{{ID: "S1", Title: "Section 1", Items: []checklist.ItemDefinition{
			{ID: "i1"}, {ID: "i2"}, {ID: "i3"},
		}}},
	})
	require.NoError(t, err)
	rec := &recorder{}
	cl := NewChecklist(cat, NewRecords(cat), rec.handlers(), testutil.NewLogger())

	require.True(t, cl.ChangeOutcome("i1", OutcomeC2))
	i1, _ := cl.Records().Get("i1")
	assert.Equal(t, Record{ID: "i1", Section: "S1", Outcome: OutcomeC2, Inspected: true}, i1)
	assert.Equal(t, []Record{i1}, rec.observed)
	assert.Equal(t, 1, cl.Stats().CompletedItems)

	require.True(t, cl.BulkAction("S1", BulkMarkSatisfactory))
	for _, r := range cl.Records() {
		assert.Equal(t, OutcomeSatisfactory, r.Outcome)
		assert.True(t, r.Inspected)
	}
	assert.Len(t, rec.observed, 1)
	stats := cl.Stats()
	assert.Equal(t, 3, stats.CompletedItems)
	assert.Equal(t, 100, stats.ProgressPercent)
}

func TestChecklist_notApplicable(t *testing.T) {
	cl, _, _ := newChecklist(t)
	require.True(t, cl.ChangeOutcome("i1", OutcomeNotApplicable))

	r, _ := cl.Records().Get("i1")
	assert.False(t, r.Inspected)
	stats := cl.Stats()
	assert.Equal(t, 1, stats.CompletedItems)
	assert.Zero(t, stats.CriticalItems)
	assert.Zero(t, stats.SatisfactoryItems)
}

func TestChecklist_doesNotAliasInput(t *testing.T) {
	cat := testutil.Catalogue(t)
	records := NewRecords(cat)
	cl := NewChecklist(cat, records, Handlers{}, testutil.NewLogger())

	require.True(t, cl.ChangeOutcome("i1", OutcomeC1))
	assert.Equal(t, OutcomeUnset, records[0].Outcome)

	out := cl.Records()
	out[0].Outcome = OutcomeSatisfactory
	r, _ := cl.Records().Get("i1")
	assert.Equal(t, OutcomeC1, r.Outcome)
}

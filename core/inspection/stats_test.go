package inspection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/eicr/core/checklist"
	"github.com/trezcool/eicr/tests"
)

func withOutcomes(t *testing.T, records Records, outcomes map[string]Outcome) Records {
	t.Helper()
	for id, o := range outcomes {
		r, ok := records.Get(id)
		require.True(t, ok, id)
		records, _ = records.Replace(r.WithOutcome(o))
	}
	return records
}

func TestComputeStats(t *testing.T) {
	cat := testutil.Catalogue(t)

	tests := []struct {
		name     string
		outcomes map[string]Outcome
		want     Stats
	}{
		{
			name: "nothing assessed",
			want: Stats{
				TotalItems: 5,
				Counts:     map[Outcome]int{},
				Sections: []SectionProgress{
					{SectionID: "s1", Title: "Intake", Total: 3},
					{SectionID: "s2", Title: "Earthing", Total: 2},
				},
			},
		},
		{
			name: "mixed",
			outcomes: map[string]Outcome{
				"i1": OutcomeSatisfactory,
				"i2": OutcomeC1,
				"i3": OutcomeNotApplicable,
				"i5": OutcomeC3,
			},
			want: Stats{
				TotalItems:        5,
				CompletedItems:    4,
				ProgressPercent:   80,
				CriticalItems:     2,
				SatisfactoryItems: 1,
				Counts: map[Outcome]int{
					OutcomeSatisfactory:  1,
					OutcomeC1:            1,
					OutcomeNotApplicable: 1,
					OutcomeC3:            1,
				},
				Sections: []SectionProgress{
					{SectionID: "s1", Title: "Intake", Completed: 3, Total: 3, Percent: 100},
					{SectionID: "s2", Title: "Earthing", Completed: 1, Total: 2, Percent: 50},
				},
			},
		},
		{
			name:     "rounds to nearest",
			outcomes: map[string]Outcome{"i1": OutcomeLimitation, "i4": OutcomeNotVerified},
			want: Stats{
				TotalItems:      5,
				CompletedItems:  2,
				ProgressPercent: 40,
				Counts:          map[Outcome]int{OutcomeLimitation: 1, OutcomeNotVerified: 1},
				Sections: []SectionProgress{
					{SectionID: "s1", Title: "Intake", Completed: 1, Total: 3, Percent: 33},
					{SectionID: "s2", Title: "Earthing", Completed: 1, Total: 2, Percent: 50},
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := withOutcomes(t, NewRecords(cat), tt.outcomes)
			assert.Equal(t, tt.want, ComputeStats(cat, records))
		})
	}
}

func TestComputeStats_emptyCatalogue(t *testing.T) {
	cat, err := checklist.New(checklist.Document{Version: "empty"})
	require.NoError(t, err)

	s := ComputeStats(cat, nil)
	assert.Zero(t, s.TotalItems)
	assert.Zero(t, s.ProgressPercent)
	assert.Equal(t, AssessmentPending, SuggestAssessment(cat, nil, false))
}

func TestPercent(t *testing.T) {
	tests := []struct {
		n, total, want int
	}{
		{0, 0, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13}, // 12.5 rounds half away from zero
		{3, 3, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, percent(tt.n, tt.total), "%d/%d", tt.n, tt.total)
	}
}

func TestSuggestAssessment(t *testing.T) {
	cat := testutil.Catalogue(t)
	allSatisfactory := map[string]Outcome{
		"i1": OutcomeSatisfactory, "i2": OutcomeSatisfactory, "i3": OutcomeNotApplicable,
		"i4": OutcomeSatisfactory, "i5": OutcomeC3,
	}

	tests := []struct {
		name     string
		outcomes map[string]Outcome
		fi       bool
		want     Assessment
	}{
		{name: "incomplete", outcomes: map[string]Outcome{"i1": OutcomeSatisfactory}, want: AssessmentPending},
		{name: "C2 while incomplete", outcomes: map[string]Outcome{"i1": OutcomeC2}, want: AssessmentUnsatisfactory},
		{name: "C3 only", outcomes: allSatisfactory, want: AssessmentSatisfactory},
		{name: "further investigation", outcomes: allSatisfactory, fi: true, want: AssessmentUnsatisfactory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := withOutcomes(t, NewRecords(cat), tt.outcomes)
			assert.Equal(t, tt.want, SuggestAssessment(cat, records, tt.fi))
		})
	}
}

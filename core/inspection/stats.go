package inspection

import (
	"math"

	"github.com/trezcool/eicr/core/checklist"
)

type (
	Stats struct {
		TotalItems        int               `json:"total_items"`
		CompletedItems    int               `json:"completed_items"`
		ProgressPercent   int               `json:"progress_percent"`
		CriticalItems     int               `json:"critical_items"`
		SatisfactoryItems int               `json:"satisfactory_items"`
		Counts            map[Outcome]int   `json:"counts"`
		Sections          []SectionProgress `json:"sections"`
	}

	SectionProgress struct {
		SectionID string `json:"section_id"`
		Title     string `json:"title"`
		Completed int    `json:"completed"`
		Total     int    `json:"total"`
		Percent   int    `json:"percent"`
	}
)

// ComputeStats derives the progress statistics of records against the catalogue.
// Items are complete once they have any outcome, not-applicable included.
func ComputeStats(cat *checklist.Catalogue, records Records) Stats {
	s := Stats{
		TotalItems: cat.TotalItems(),
		Counts:     make(map[Outcome]int),
	}
	for _, r := range records {
		if !r.Outcome.IsSet() {
			continue
		}
		s.CompletedItems++
		s.Counts[r.Outcome]++
		if r.Outcome.IsCritical() {
			s.CriticalItems++
		}
		if r.Outcome == OutcomeSatisfactory {
			s.SatisfactoryItems++
		}
	}
	s.ProgressPercent = percent(s.CompletedItems, s.TotalItems)

	for _, sec := range cat.Sections() {
		sp := SectionProgress{SectionID: sec.ID, Title: sec.Title, Total: len(sec.Items)}
		for _, item := range sec.Items {
			if r, ok := records.Get(item.ID); ok && r.Outcome.IsSet() {
				sp.Completed++
			}
		}
		sp.Percent = percent(sp.Completed, sp.Total)
		s.Sections = append(s.Sections, sp)
	}
	return s
}

func percent(n, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(n) / float64(total) * 100))
}

// SuggestAssessment derives the overall assessment from the records:
// unsatisfactory on any C1 or C2 (or further investigation), satisfactory once every item is assessed.
func SuggestAssessment(cat *checklist.Catalogue, records Records, furtherInvestigation bool) Assessment {
	for _, r := range records {
		if r.Outcome == OutcomeC1 || r.Outcome == OutcomeC2 {
			return AssessmentUnsatisfactory
		}
	}
	if furtherInvestigation {
		return AssessmentUnsatisfactory
	}
	if cat.TotalItems() == 0 {
		return AssessmentPending
	}
	for _, sec := range ComputeStats(cat, records).Sections {
		if sec.Completed < sec.Total {
			return AssessmentPending
		}
	}
	return AssessmentSatisfactory
}

package inspection

import (
	"github.com/pkg/errors"

	"github.com/trezcool/eicr/core/checklist"
)

var ErrUnsupportedField = errors.New("unsupported field")

// Record holds the inspection state of one checklist item.
// Inspected is derived from Outcome; WithOutcome is the only way to change the outcome.
type Record struct {
	ID        string  `json:"id"`
	Section   string  `json:"section"`
	Outcome   Outcome `json:"outcome"`
	Inspected bool    `json:"inspected"`
	Notes     string  `json:"notes"`
}

// NewRecord builds a Record with Inspected derived from outcome.
func NewRecord(id, section string, outcome Outcome, notes string) Record {
	return Record{ID: id, Section: section, Notes: notes}.WithOutcome(outcome)
}

// WithOutcome returns a copy of r with the new outcome and its derived Inspected flag.
func (r Record) WithOutcome(o Outcome) Record {
	r.Outcome = o
	r.Inspected = o.Inspected()
	return r
}

// Consistent reports whether Inspected matches Outcome.
func (r Record) Consistent() bool {
	return r.Inspected == r.Outcome.Inspected()
}

// Records is the ordered collection of an inspection's records, keyed by Record.ID.
// Edits never modify a collection in place; they return a new one.
type Records []Record

// NewRecords returns one unset Record per catalogue item, in catalogue order.
func NewRecords(cat *checklist.Catalogue) Records {
	items := cat.Items()
	records := make(Records, 0, len(items))
	for _, item := range items {
		records = append(records, NewRecord(item.ID, item.SectionID, OutcomeUnset, ""))
	}
	return records
}

func (rs Records) Index(id string) int {
	for i, r := range rs {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (rs Records) Get(id string) (Record, bool) {
	if i := rs.Index(id); i >= 0 {
		return rs[i], true
	}
	return Record{}, false
}

func (rs Records) Clone() Records {
	if rs == nil {
		return nil
	}
	return append(make(Records, 0, len(rs)), rs...)
}

// Replace returns a copy of rs with the record sharing r's id replaced by r.
// ok is false, and rs returned unchanged, if no such record exists.
func (rs Records) Replace(r Record) (next Records, ok bool) {
	i := rs.Index(r.ID)
	if i < 0 {
		return rs, false
	}
	next = rs.Clone()
	next[i] = r
	return next, true
}

// Section returns the records belonging to the section, in order.
func (rs Records) Section(sectionID string) Records {
	var section Records
	for _, r := range rs {
		if r.Section == sectionID {
			section = append(section, r)
		}
	}
	return section
}

// Normalized returns a copy of rs with every Inspected flag recomputed from its Outcome.
func (rs Records) Normalized() Records {
	next := rs.Clone()
	for i, r := range next {
		next[i] = r.WithOutcome(r.Outcome)
	}
	return next
}

// Apply returns the collection resulting from the update.
func (rs Records) Apply(u Update) (Records, error) {
	switch u := u.(type) {
	case BulkReplace:
		return u.Records.Normalized(), nil
	case FieldUpdate:
		r, ok := rs.Get(u.ID)
		if !ok {
			return nil, errors.Wrapf(ErrItemNotFound, "%q", u.ID)
		}
		switch u.Field {
		case FieldNotes:
			r.Notes = u.Value
		default:
			return nil, errors.Wrapf(ErrUnsupportedField, "%q", u.Field)
		}
		next, _ := rs.Replace(r)
		return next, nil
	default:
		return nil, errors.Errorf("unknown update %T", u)
	}
}

package inspection

import (
	"fmt"

	"github.com/trezcool/eicr/core"
	"github.com/trezcool/eicr/core/checklist"
)

// Handlers are the callbacks a Checklist commits through. Nil handlers are skipped.
type Handlers struct {
	// UpdateItem receives every commit: a BulkReplace for outcome changes, a FieldUpdate for notes.
	// A commit that returns an error is not applied.
	UpdateItem func(Update) error
	// AutoCreateObservation receives the updated record after a single item moved to C1, C2 or C3.
	AutoCreateObservation func(Record)
	// NavigateToObservations is fired when the observations of a critical item are requested.
	NavigateToObservations func()
}

// Checklist edits an inspection's records against a catalogue.
// It is not safe for concurrent use; callers serialise access.
type Checklist struct {
	cat      *checklist.Catalogue
	records  Records
	handlers Handlers
	logger   core.Logger
}

func NewChecklist(cat *checklist.Catalogue, records Records, handlers Handlers, logger core.Logger) *Checklist {
	return &Checklist{
		cat:      cat,
		records:  records.Clone(),
		handlers: handlers,
		logger:   logger,
	}
}

func (c *Checklist) Records() Records { return c.records.Clone() }

func (c *Checklist) Stats() Stats { return ComputeStats(c.cat, c.records) }

// ChangeOutcome sets the outcome of one item and commits the whole collection.
// Selecting the outcome an item already has clears it.
// It reports whether the change was committed.
func (c *Checklist) ChangeOutcome(itemID string, outcome Outcome) (ok bool) {
	defer c.recover("change outcome", itemID, &ok)

	if !outcome.Valid() {
		c.logger.Warn("inspection: invalid outcome", map[string]interface{}{"item": itemID, "outcome": outcome})
		return false
	}
	current, found := c.records.Get(itemID)
	if !found {
		c.logger.Warn("inspection: record not found", map[string]interface{}{"item": itemID})
		return false
	}

	if current.Outcome == outcome {
		outcome = OutcomeUnset
	}
	updated := current.WithOutcome(outcome)
	next, _ := c.records.Replace(updated)

	if err := c.commit(BulkReplace{Records: next}); err != nil {
		c.logger.Error("inspection: commit failed", err, map[string]interface{}{"item": itemID})
		return false
	}
	c.records = next

	if updated.Outcome.IsCritical() && c.handlers.AutoCreateObservation != nil {
		c.notify("auto-create observation", itemID, func() { c.handlers.AutoCreateObservation(updated) })
	}
	return true
}

// BulkAction applies action to every item of the section in a single commit.
// Items of other sections are left untouched and no observation is created.
func (c *Checklist) BulkAction(sectionID string, action BulkAction) (ok bool) {
	defer c.recover("bulk action", sectionID, &ok)

	outcome, valid := action.Outcome()
	if !valid {
		c.logger.Warn("inspection: invalid bulk action", map[string]interface{}{"section": sectionID, "action": action})
		return false
	}
	ids := c.cat.ItemIDs(sectionID)
	if ids == nil {
		c.logger.Warn("inspection: section not found", map[string]interface{}{"section": sectionID})
		return false
	}
	inSection := make(map[string]bool, len(ids))
	for _, id := range ids {
		inSection[id] = true
	}

	next := c.records.Clone()
	for i, r := range next {
		if inSection[r.ID] || r.Section == sectionID {
			next[i] = r.WithOutcome(outcome)
		}
	}

	if err := c.commit(BulkReplace{Records: next}); err != nil {
		c.logger.Error("inspection: commit failed", err, map[string]interface{}{"section": sectionID})
		return false
	}
	c.records = next
	return true
}

// SetNotes commits the notes of one item as a single-field update.
func (c *Checklist) SetNotes(itemID, notes string) (ok bool) {
	defer c.recover("set notes", itemID, &ok)

	u := FieldUpdate{ID: itemID, Field: FieldNotes, Value: notes}
	next, err := c.records.Apply(u)
	if err != nil {
		c.logger.Warn("inspection: record not found", map[string]interface{}{"item": itemID})
		return false
	}

	if err := c.commit(u); err != nil {
		c.logger.Error("inspection: commit failed", err, map[string]interface{}{"item": itemID})
		return false
	}
	c.records = next
	return true
}

// ViewObservations fires the navigation callback when the item has a critical outcome.
func (c *Checklist) ViewObservations(itemID string) (ok bool) {
	defer c.recover("view observations", itemID, &ok)

	r, found := c.records.Get(itemID)
	if !found {
		c.logger.Warn("inspection: record not found", map[string]interface{}{"item": itemID})
		return false
	}
	if !r.Outcome.IsCritical() {
		c.logger.Debug("inspection: no observations for non critical item", map[string]interface{}{"item": itemID, "outcome": r.Outcome})
		return false
	}
	if c.handlers.NavigateToObservations != nil {
		c.handlers.NavigateToObservations()
	}
	return true
}

func (c *Checklist) commit(u Update) error {
	if c.handlers.UpdateItem == nil {
		return nil
	}
	return c.handlers.UpdateItem(u)
}

// notify runs a post-commit callback. The commit already happened, so a panic is only logged.
func (c *Checklist) notify(op, target string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("inspection: "+op+" failed", panicError(r), map[string]interface{}{"target": target})
		}
	}()
	fn()
}

func (c *Checklist) recover(op, target string, ok *bool) {
	if r := recover(); r != nil {
		c.logger.Error("inspection: "+op+" failed", panicError(r), map[string]interface{}{"target": target})
		*ok = false
	}
}

func panicError(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}

package inspection

// Field is a Record field that can be updated on its own.
// Outcome is deliberately absent: outcome changes go through BulkReplace so that
// Outcome and Inspected are never committed separately.
type Field string

const FieldNotes Field = "notes"

// Update is a commit handed to Handlers.UpdateItem: either a FieldUpdate or a BulkReplace.
type Update interface {
	isUpdate()
}

// FieldUpdate sets a single field of one record.
type FieldUpdate struct {
	ID    string
	Field Field
	Value string
}

// BulkReplace replaces the whole collection.
type BulkReplace struct {
	Records Records
}

func (FieldUpdate) isUpdate() {}
func (BulkReplace) isUpdate() {}

package model

// Field names of a todo document.
const (
	FieldTitle    = "title"
	FieldComplete = "complete"
)

// Todo is one entry of the list. ID is assigned by the document store and
// never changes; Title and Complete are only changed through patches.
type Todo struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Complete bool   `json:"complete"`
}

// FromDocument maps a stored document onto a Todo. Missing or mistyped
// fields become zero values.
func FromDocument(id string, data map[string]any) Todo {
	t := Todo{ID: id}
	if s, ok := data[FieldTitle].(string); ok {
		t.Title = s
	}
	if b, ok := data[FieldComplete].(bool); ok {
		t.Complete = b
	}
	return t
}

// Stats counts complete and pending items.
func Stats(items []Todo) (done, pending int) {
	for _, it := range items {
		if it.Complete {
			done++
		} else {
			pending++
		}
	}
	return
}

package finding

import (
	"time"

	"github.com/vulndeck/api/pkg/domain/shared"
)

// Note is one append-only justification entry on a finding.
type Note struct {
	id        shared.ID
	author    shared.ID
	entry     string
	createdAt time.Time
}

// NewNote creates a note authored now.
func NewNote(author shared.ID, entry string) Note {
	return Note{
		id:        shared.NewID(),
		author:    author,
		entry:     entry,
		createdAt: time.Now().UTC(),
	}
}

// ReconstituteNote recreates a Note from persistence.
func ReconstituteNote(id, author shared.ID, entry string, createdAt time.Time) Note {
	return Note{id: id, author: author, entry: entry, createdAt: createdAt}
}

// ID returns the note ID.
func (n Note) ID() shared.ID {
	return n.id
}

// Author returns the authoring user ID.
func (n Note) Author() shared.ID {
	return n.author
}

// Entry returns the note text.
func (n Note) Entry() string {
	return n.entry
}

// CreatedAt returns the note timestamp.
func (n Note) CreatedAt() time.Time {
	return n.createdAt
}

package note

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
)

const maxTagLen = 32

var (
	ErrBlankTag           = errors.New("tag cannot be blank")
	ErrDuplicateTag       = errors.New("tag already exists")
	ErrTagTooLong         = errors.New("tag is too long")
	ErrDeleteNotConfirmed = errors.New("delete was not confirmed")
)

// Note is a user-authored rich-text document as persisted by the remote API.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Payload is the body of a save request.
type Payload struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

type (
	// Store is the save/delete contract the editor is given. An empty id creates a new note.
	Store interface {
		SaveNote(ctx context.Context, id string, p Payload) (Note, error)
		DeleteNote(ctx context.Context, id string) error
	}

	// Repository adds the reads the portal needs to open notes.
	Repository interface {
		Store
		ListNotes(ctx context.Context, ordering ...core.Ordering) ([]Note, error)
		GetNote(ctx context.Context, id string) (Note, error)
	}

	// Confirmer asks the user to confirm a destructive action.
	Confirmer interface {
		Confirm(ctx context.Context, prompt string) bool
	}

	ConfirmFunc func(ctx context.Context, prompt string) bool
)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// Confirmed is a Confirmer that returns ok without asking, for callers that collected the answer beforehand.
func Confirmed(ok bool) Confirmer {
	return ConfirmFunc(func(context.Context, string) bool { return ok })
}

// CleanTag trims tag and checks it can be stored.
func CleanTag(tag string) (string, error) {
	tag = core.CleanString(tag)
	if tag == "" {
		return "", ErrBlankTag
	}
	if len([]rune(tag)) > maxTagLen {
		return "", ErrTagTooLong
	}
	return tag, nil
}

// SortNotes orders notes in place by "title" and/or "updatedAt".
// Unknown fields are ignored; with no orderings, the most recently updated come first.
func SortNotes(notes []Note, orderings ...core.Ordering) {
	if len(orderings) == 0 {
		orderings = []core.Ordering{{Field: "updatedAt"}}
	}
	sort.SliceStable(notes, func(i, j int) bool {
		for _, ord := range orderings {
			var cmp int
			switch ord.Field {
			case "title":
				cmp = strings.Compare(strings.ToLower(notes[i].Title), strings.ToLower(notes[j].Title))
			case "updatedAt":
				cmp = notes[i].UpdatedAt.Compare(notes[j].UpdatedAt)
			}
			if cmp == 0 {
				continue
			}
			if ord.Ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return false
	})
}

// Package note holds the note editor: the open state of one note (title, rich
// content and tags) and its save/delete/format lifecycle against a Store.
package note

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/document"
)

type Option func(e *Editor)

func WithLogger(log core.Logger) Option {
	return func(e *Editor) { e.log = log }
}

// WithHistoryLimit bounds the undo stack. A negative limit disables undo.
func WithHistoryLimit(limit int) Option {
	return func(e *Editor) { e.history = document.NewHistory(limit) }
}

// Editor is not safe for concurrent use; the owning session serializes access.
type Editor struct {
	id        string
	title     string
	content   string
	tags      []string
	updatedAt time.Time
	savedAt   time.Time
	dirty     bool

	// doc mirrors content once a command has been applied; nil means content
	// has not been parsed and is kept verbatim.
	doc     *document.Document
	history *document.History

	store Store
	log   core.Logger
}

// NewEditor opens existing, or a blank note when existing is nil.
func NewEditor(existing *Note, store Store, opts ...Option) *Editor {
	e := &Editor{store: store, log: core.NopLogger{}}
	if existing != nil {
		e.id = existing.ID
		e.title = existing.Title
		e.content = existing.Content
		e.updatedAt = existing.UpdatedAt
		for _, tag := range existing.Tags {
			_ = e.AddTag(tag) // drop blanks and duplicates the API may hold
		}
		e.dirty = false
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.history == nil {
		e.history = document.NewHistory(0)
	}
	return e
}

func (e *Editor) ID() string         { return e.id }
func (e *Editor) Title() string      { return e.title }
func (e *Editor) Content() string    { return e.content }
func (e *Editor) SavedAt() time.Time { return e.savedAt }
func (e *Editor) Dirty() bool        { return e.dirty }
func (e *Editor) CanUndo() bool      { return e.history.CanUndo() }
func (e *Editor) CanRedo() bool      { return e.history.CanRedo() }
func (e *Editor) Tags() []string     { return append([]string{}, e.tags...) }
func (e *Editor) PlainText() string  { return document.PlainText(e.content) }
func (e *Editor) IsNew() bool        { return e.id == "" }

func (e *Editor) SetTitle(title string) {
	e.title, e.dirty = title, true
}

// Snapshot is the editor's current state as a Note.
func (e *Editor) Snapshot() Note {
	return Note{
		ID:        e.id,
		Title:     e.title,
		Content:   e.content,
		Tags:      e.Tags(),
		UpdatedAt: e.updatedAt,
	}
}

// Payload is what Save sends, with the title trimmed.
func (e *Editor) Payload() Payload {
	return Payload{Title: core.CleanString(e.title), Content: e.content, Tags: e.Tags()}
}

// AddTag appends tag to the tag set, keeping insertion order.
func (e *Editor) AddTag(tag string) error {
	tag, err := CleanTag(tag)
	if err != nil {
		return err
	}
	for _, t := range e.tags {
		if t == tag {
			return ErrDuplicateTag
		}
	}
	e.tags = append(e.tags, tag)
	e.dirty = true
	return nil
}

func (e *Editor) RemoveTag(tag string) {
	tag = core.CleanString(tag)
	tags := e.tags[:0]
	for _, t := range e.tags {
		if t != tag {
			tags = append(tags, t)
		}
	}
	if len(tags) != len(e.tags) {
		e.dirty = true
	}
	e.tags = tags
}

// SetContent replaces the content with markup as-is. The previous content can be restored with Undo.
func (e *Editor) SetContent(markup string) {
	if markup == e.content {
		return
	}
	e.history.Record(e.current())
	e.content, e.doc, e.dirty = markup, nil, true
}

// Format applies cmd to sel of the structured content; the serialized result becomes the content.
// Content holding elements the document model cannot represent is left alone (ErrUnsupportedContent).
func (e *Editor) Format(cmd document.Command, sel document.Selection) error {
	doc, err := e.document()
	if err != nil {
		return err
	}
	next := doc.Clone()
	if err := next.Apply(cmd, sel); err != nil {
		return err
	}

	markup := next.HTML()
	if markup == doc.HTML() {
		return nil // no-op commands leave the stored markup untouched
	}
	e.history.Record(e.current())
	e.doc, e.content, e.dirty = next, markup, true
	return nil
}

// FormatAll applies cmd to the whole content.
func (e *Editor) FormatAll(cmd document.Command) error {
	doc, err := e.document()
	if err != nil {
		return err
	}
	return e.Format(cmd, doc.All())
}

// ImportMarkdown replaces the content with rendered Markdown. Front matter
// `title` and `tags` fill an empty title and extend the tag set.
func (e *Editor) ImportMarkdown(src []byte) error {
	var meta struct {
		Title string   `yaml:"title"`
		Tags  []string `yaml:"tags"`
	}
	body, err := frontmatter.Parse(bytes.NewReader(src), &meta)
	if err != nil {
		return errors.Wrap(err, "parsing front matter")
	}
	doc, err := document.ParseMarkdown(body)
	if err != nil {
		return err
	}

	e.history.Record(e.current())
	e.doc, e.content, e.dirty = doc, doc.HTML(), true
	if strings.TrimSpace(e.title) == "" && meta.Title != "" {
		e.title = meta.Title
	}
	for _, tag := range meta.Tags {
		_ = e.AddTag(tag)
	}
	return nil
}

// Undo restores the content as it was before the last change.
func (e *Editor) Undo() bool {
	prev, ok := e.history.Undo(e.current())
	if ok {
		e.restore(prev)
	}
	return ok
}

func (e *Editor) Redo() bool {
	next, ok := e.history.Redo(e.current())
	if ok {
		e.restore(next)
	}
	return ok
}

// Save persists the note. A blank title is rejected before the store is called.
func (e *Editor) Save(ctx context.Context) (Note, error) {
	p := e.Payload()
	if p.Title == "" {
		return Note{}, core.NewFieldValidationError("title", "title is required")
	}

	n, err := e.store.SaveNote(ctx, e.id, p)
	if err != nil {
		e.log.Error(err.Error(), err, map[string]interface{}{"noteId": e.id})
		return Note{}, errors.Wrap(err, "note.Editor.Save")
	}

	e.savedAt = core.NowFunc()
	if n.ID != "" {
		e.id = n.ID
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = e.savedAt
	}
	e.title, e.updatedAt, e.dirty = p.Title, n.UpdatedAt, false
	return n, nil
}

// Delete removes the note once c confirms. A note that was never saved has nothing to delete.
func (e *Editor) Delete(ctx context.Context, c Confirmer) error {
	name := core.CleanString(e.title)
	if name == "" {
		name = "this note"
	}
	if c == nil || !c.Confirm(ctx, fmt.Sprintf("Delete %q? This cannot be undone.", name)) {
		return ErrDeleteNotConfirmed
	}
	if e.id == "" {
		return nil
	}

	if err := e.store.DeleteNote(ctx, e.id); err != nil {
		e.log.Error(err.Error(), err, map[string]interface{}{"noteId": e.id})
		return errors.Wrap(err, "note.Editor.Delete")
	}
	e.id = ""
	e.dirty = false
	return nil
}

func (e *Editor) document() (*document.Document, error) {
	if e.doc != nil {
		return e.doc, nil
	}
	doc, err := document.ParseHTML(e.content)
	if err != nil {
		return nil, errors.Wrap(err, "parsing note content")
	}
	if dropped := doc.Unsupported(); len(dropped) > 0 {
		return nil, errors.Wrapf(document.ErrUnsupportedContent, "<%s>", strings.Join(dropped, ">, <"))
	}
	e.doc = doc
	return doc, nil
}

func (e *Editor) current() document.Snapshot {
	return document.Snapshot{Doc: e.doc, Markup: e.content}
}

func (e *Editor) restore(s document.Snapshot) {
	e.doc, e.content, e.dirty = s.Doc, s.Markup, true
}

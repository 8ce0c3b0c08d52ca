package echoportal

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/document"
	"github.com/trezcool/masomo-portal/core/note"
	"github.com/trezcool/masomo-portal/core/user"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.Ordering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	if val := ctx.QueryParam(orderingParam); val != "" {
		ord.Orderings = core.ParseOrdering(val)
	}
}

type (
	LoginResponse struct {
		User     user.Profile `json:"user"`
		Redirect string       `json:"redirect"`
	}

	MeResponse struct {
		User        user.Profile `json:"user"`
		UnreadCount int          `json:"unreadCount"`
	}

	UnreadResponse struct {
		Count     int    `json:"count"`
		UpdatedAt string `json:"updatedAt,omitempty"`
	}

	OpenEditorRequest struct {
		NoteID string `json:"noteId"`
	}

	TitleRequest struct {
		Title string `json:"title"`
	}

	ContentRequest struct {
		Content string `json:"content"`
	}

	MarkdownRequest struct {
		Markdown string `json:"markdown"`
	}

	FormatRequest struct {
		Command   string              `json:"command"`
		Arg       string              `json:"arg"`
		Selection *document.Selection `json:"selection"`
	}

	TagRequest struct {
		Tag string `json:"tag"`
	}

	MailExportRequest struct {
		Format string `json:"format"`
	}

	// EditorView is an open editor as the browser sees it.
	EditorView struct {
		Handle  string    `json:"handle"`
		Note    note.Note `json:"note"`
		Dirty   bool      `json:"dirty"`
		CanUndo bool      `json:"canUndo"`
		CanRedo bool      `json:"canRedo"`
		SavedAt string    `json:"savedAt,omitempty"`
	}
)

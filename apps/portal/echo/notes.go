package echoportal

import (
	"net/http"
	"net/mail"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/document"
	"github.com/trezcool/masomo-portal/core/export"
	"github.com/trezcool/masomo-portal/core/note"
	"github.com/trezcool/masomo-portal/storage/restapi"
)

type noteApi struct {
	*Server
}

func registerNoteAPI(authed *echo.Group, s *Server) {
	api := noteApi{s}

	ng := authed.Group("/notes", s.guardMiddleware("notes", false))
	ng.GET("", api.query)

	eg := ng.Group("/editors")
	eg.GET("", api.queryEditors)
	eg.POST("", api.open)

	// detail endpoints
	dg := eg.Group("/:handle")
	dg.GET("", api.retrieve)
	dg.DELETE("", api.close)
	dg.PUT("/title", api.setTitle)
	dg.PUT("/content", api.setContent)
	dg.POST("/markdown", api.importMarkdown)
	dg.POST("/format", api.format)
	dg.POST("/undo", api.undo)
	dg.POST("/redo", api.redo)
	dg.POST("/tags", api.addTag)
	dg.DELETE("/tags/:tag", api.removeTag)
	dg.POST("/save", api.save)
	dg.DELETE("/note", api.destroy)
	dg.GET("/export/:format", api.download)
	dg.POST("/export/mail", api.mail)
}

// Handlers

func (api *noteApi) query(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	var ord Ordering
	ord.Bind(ctx)

	notes, err := api.API(sess.Token).ListNotes(ctx.Request().Context(), ord.Orderings...)
	if err != nil {
		return errors.Wrap(err, "listing notes")
	}
	note.SortNotes(notes, ord.Orderings...)
	return ctx.JSON(http.StatusOK, notes)
}

func (api *noteApi) queryEditors(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	handles := sess.EditorHandles()
	views := make([]EditorView, 0, len(handles))
	for _, h := range handles {
		_ = sess.WithEditor(h, func(e *note.Editor) error {
			views = append(views, editorView(h, e))
			return nil
		})
	}
	return ctx.JSON(http.StatusOK, views)
}

// open starts editing the note named by noteId, or a blank note.
func (api *noteApi) open(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	var data OpenEditorRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to OpenEditorRequest")
	}

	repo := api.API(sess.Token)
	var existing *note.Note
	if id := core.CleanString(data.NoteID); id != "" {
		n, err := repo.GetNote(ctx.Request().Context(), id)
		if err != nil {
			if restapi.IsNotFound(err) {
				return errHttpNotFound
			}
			return errors.Wrap(err, "getting note")
		}
		existing = &n
	}

	e := note.NewEditor(existing, repo, note.WithLogger(api.Logger))
	handle := sess.OpenEditor(e)
	return ctx.JSON(http.StatusCreated, editorView(handle, e))
}

func (api *noteApi) retrieve(ctx echo.Context) error {
	return api.edit(ctx, http.StatusOK, func(*note.Editor) error { return nil })
}

func (api *noteApi) close(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	handle := ctx.Param("handle")
	if err = sess.WithEditor(handle, func(*note.Editor) error { return nil }); err != nil {
		return err
	}
	sess.CloseEditor(handle)
	return ctx.NoContent(http.StatusNoContent)
}

func (api *noteApi) setTitle(ctx echo.Context) error {
	var data TitleRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TitleRequest")
	}
	return api.edit(ctx, http.StatusOK, func(e *note.Editor) error {
		e.SetTitle(data.Title)
		return nil
	})
}

func (api *noteApi) setContent(ctx echo.Context) error {
	var data ContentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ContentRequest")
	}
	return api.edit(ctx, http.StatusOK, func(e *note.Editor) error {
		e.SetContent(data.Content)
		return nil
	})
}

func (api *noteApi) importMarkdown(ctx echo.Context) error {
	var data MarkdownRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkdownRequest")
	}
	return api.edit(ctx, http.StatusOK, func(e *note.Editor) error {
		return e.ImportMarkdown([]byte(data.Markdown))
	})
}

// format applies a toolbar command to the selection, or to the whole note when none is given.
func (api *noteApi) format(ctx echo.Context) error {
	var data FormatRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FormatRequest")
	}
	cmd, err := document.ParseCommand(data.Command, data.Arg)
	if err != nil {
		return err
	}
	return api.edit(ctx, http.StatusOK, func(e *note.Editor) error {
		if data.Selection == nil {
			return e.FormatAll(cmd)
		}
		return e.Format(cmd, *data.Selection)
	})
}

func (api *noteApi) undo(ctx echo.Context) error {
	return api.edit(ctx, http.StatusOK, func(e *note.Editor) error {
		e.Undo()
		return nil
	})
}

func (api *noteApi) redo(ctx echo.Context) error {
	return api.edit(ctx, http.StatusOK, func(e *note.Editor) error {
		e.Redo()
		return nil
	})
}

func (api *noteApi) addTag(ctx echo.Context) error {
	var data TagRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TagRequest")
	}
	return api.edit(ctx, http.StatusOK, func(e *note.Editor) error {
		return e.AddTag(data.Tag)
	})
}

func (api *noteApi) removeTag(ctx echo.Context) error {
	return api.edit(ctx, http.StatusOK, func(e *note.Editor) error {
		e.RemoveTag(ctx.Param("tag"))
		return nil
	})
}

func (api *noteApi) save(ctx echo.Context) error {
	return api.edit(ctx, http.StatusOK, func(e *note.Editor) error {
		_, err := e.Save(ctx.Request().Context())
		return err
	})
}

// destroy deletes the note behind the editor; the browser collects the user's
// confirmation and passes it as ?confirm=true.
func (api *noteApi) destroy(ctx echo.Context) error {
	confirmed, _ := strconv.ParseBool(ctx.QueryParam("confirm"))
	return api.edit(ctx, http.StatusOK, func(e *note.Editor) error {
		return e.Delete(ctx.Request().Context(), note.Confirmed(confirmed))
	})
}

func (api *noteApi) download(ctx echo.Context) error {
	var a export.Artifact
	author := contextProfile(ctx).Name
	err := api.withEditor(ctx, func(e *note.Editor) (err error) {
		a, err = api.artifact(e, ctx.Param("format"), author)
		return err
	})
	if err != nil {
		return err
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+a.Filename+`"`)
	return ctx.Blob(http.StatusOK, a.ContentType, a.Data)
}

// mail sends the export to the signed-in user's email address.
func (api *noteApi) mail(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	var data MailExportRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MailExportRequest")
	}
	profile := sess.User()
	if profile.Email == "" {
		return core.NewFieldValidationError("email", "your account has no email address")
	}

	var (
		a     export.Artifact
		title string
	)
	err = api.withEditor(ctx, func(e *note.Editor) (err error) {
		title = e.Title()
		a, err = api.artifact(e, data.Format, profile.Name)
		return err
	})
	if err != nil {
		return err
	}

	to := mail.Address{Name: profile.Name, Address: profile.Email}
	if err = export.Mail(ctx.Request().Context(), api.MailSvc, to, title, a); err != nil {
		return errors.Wrap(err, "mailing export")
	}
	return ctx.JSON(http.StatusAccepted, echo.Map{"filename": a.Filename})
}

func (api *noteApi) artifact(e *note.Editor, format, author string) (export.Artifact, error) {
	switch format {
	case "txt", "", export.ExtText:
		return export.Text(e.Title(), e.Content()), nil
	case "pdf", export.ExtPDF:
		return export.PDF(e.Title(), e.Content(), export.Options{WrapWidth: api.Conf.ExportWrapWidth, Author: author})
	}
	return export.Artifact{}, core.NewFieldValidationError("format", "format must be one of txt or pdf")
}

// helpers

func (api *noteApi) withEditor(ctx echo.Context, fn func(e *note.Editor) error) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	return sess.WithEditor(ctx.Param("handle"), fn)
}

// edit runs fn on the editor named by the path and answers with the editor's new state.
func (api *noteApi) edit(ctx echo.Context, code int, fn func(e *note.Editor) error) error {
	var view EditorView
	handle := ctx.Param("handle")
	err := api.withEditor(ctx, func(e *note.Editor) error {
		if err := fn(e); err != nil {
			return err
		}
		view = editorView(handle, e)
		return nil
	})
	if err != nil {
		return err
	}
	return ctx.JSON(code, view)
}

func editorView(handle string, e *note.Editor) EditorView {
	v := EditorView{
		Handle:  handle,
		Note:    e.Snapshot(),
		Dirty:   e.Dirty(),
		CanUndo: e.CanUndo(),
		CanRedo: e.CanRedo(),
	}
	if at := e.SavedAt(); !at.IsZero() {
		v.SavedAt = at.Format(time.RFC3339)
	}
	return v
}

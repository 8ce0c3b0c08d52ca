package echoportal

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/document"
	"github.com/trezcool/masomo-portal/core/note"
	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/core/user"
	"github.com/trezcool/masomo-portal/storage/restapi"
)

var (
	errUnauthorized    = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden   = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound    = echo.NewHTTPError(http.StatusNotFound, "not found")
	errRemoteAPIFailed = echo.NewHTTPError(http.StatusBadGateway, "the school service is unavailable")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		switch cause {
		case session.ErrEditorNotFound:
			cause = echo.NewHTTPError(http.StatusNotFound, "editor not found")
		case note.ErrBlankTag, note.ErrDuplicateTag, note.ErrTagTooLong:
			cause = core.NewFieldValidationError("tag", cause.Error())
		case note.ErrDeleteNotConfirmed:
			cause = echo.NewHTTPError(http.StatusConflict, cause.Error())
		case document.ErrUnsupportedContent:
			cause = echo.NewHTTPError(http.StatusConflict, err.Error())
		case document.ErrUnknownCommand, document.ErrInvalidArgument:
			cause = core.NewFieldValidationError("command", err.Error())
		}

		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			message = core.TranslateValidationErrors(origErr, translator)
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *restapi.Error:
			switch {
			case origErr.StatusCode >= http.StatusInternalServerError:
				code = errRemoteAPIFailed.Code
				message = errRemoteAPIFailed.Message
				logger.Warn(origErr.Error(), err, contextProfile(ctx))
			case origErr.StatusCode == http.StatusUnauthorized:
				code = errUnauthorized.Code
				message = errUnauthorized.Message
			default:
				code = origErr.StatusCode
				message = origErr.Message
			}
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			logger.Error(msg, errors.Wrap(err, msg), contextProfile(ctx))

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

func contextProfile(ctx echo.Context) user.Profile {
	if s, ok := session.FromContext(ctx.Request().Context()); ok {
		return s.User()
	}
	return user.Profile{}
}

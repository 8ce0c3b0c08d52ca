package echoportal

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/notification"
	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/core/user"
	"github.com/trezcool/masomo-portal/storage/restapi"
)

type authApi struct {
	*Server
}

func registerAuthAPI(g, authed *echo.Group, s *Server) {
	api := authApi{s}

	g.POST("/auth/login", api.login)

	ag := authed.Group("/auth")
	ag.POST("/logout", api.logout)
	ag.GET("/me", api.me)
	ag.POST("/change-password", api.changePassword)
	ag.GET("/unread-count", api.unreadCount)
}

func (api *authApi) login(ctx echo.Context) error {
	var data user.Credentials
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Credentials")
	}
	if err := data.Validate(api.Validate); err != nil {
		return err
	}

	res, err := api.API("").Login(ctx.Request().Context(), data)
	if err != nil {
		var apiErr *restapi.Error
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusBadRequest) {
			return core.NewValidationError(errors.New("invalid credentials"))
		}
		return errors.Wrap(err, "logging in")
	}

	sess := session.New(res.Token, res.User)
	if err = api.Sessions.Save(sess); err != nil {
		return errors.Wrap(err, "saving session")
	}
	poller := notification.NewPoller(api.API(res.Token), api.Conf.NotificationPollInterval, api.Logger)
	sess.StartPoller(context.Background(), poller)

	ctx.SetCookie(&http.Cookie{
		Name:     api.Conf.Session.CookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   api.Conf.Session.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	api.Logger.Info("user logged in", res.User)
	return ctx.JSON(http.StatusOK, LoginResponse{User: res.User, Redirect: api.landing(res.User)})
}

func (api *authApi) logout(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	if err = api.Sessions.Delete(sess.ID); err != nil && err != session.ErrNotFound {
		return errors.Wrap(err, "deleting session")
	}
	ctx.SetCookie(&http.Cookie{
		Name:    api.Conf.Session.CookieName,
		Value:   "",
		Path:    "/",
		MaxAge:  -1,
		Expires: time.Unix(0, 0),
	})
	return ctx.NoContent(http.StatusNoContent)
}

func (api *authApi) me(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	res := MeResponse{User: sess.User()}
	if p := sess.Poller(); p != nil {
		res.UnreadCount = p.Unread()
	}
	return ctx.JSON(http.StatusOK, res)
}

// changePassword handles both the forced first-login change and voluntary ones.
func (api *authApi) changePassword(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	var data user.ChangePassword
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChangePassword")
	}
	profile := sess.User()
	data.Name, data.Email = profile.Name, profile.Email
	if err = data.Validate(api.Validate); err != nil {
		return err
	}

	remote := api.API(sess.Token)
	if err = remote.ChangePassword(ctx.Request().Context(), data); err != nil {
		var apiErr *restapi.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
			return core.NewFieldValidationError("currentPassword", apiErr.Message)
		}
		return errors.Wrap(err, "changing password")
	}

	if profile, err = remote.Me(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "refreshing profile")
	}
	sess.SetProfile(profile)
	return ctx.JSON(http.StatusOK, LoginResponse{User: profile, Redirect: api.landing(profile)})
}

func (api *authApi) unreadCount(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	var res UnreadResponse
	if p := sess.Poller(); p != nil {
		res.Count = p.Unread()
		if at := p.UpdatedAt(); !at.IsZero() {
			res.UpdatedAt = at.Format(time.RFC3339)
		}
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *authApi) landing(p user.Profile) string {
	if p.IsFirstLogin {
		return api.Conf.Guard.PasswordURL
	}
	return p.DashboardPath()
}

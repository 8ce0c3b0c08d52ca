package echoportal

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core/guard"
	"github.com/trezcool/masomo-portal/core/session"
)

// sessionMiddleware loads the session named by the session cookie into the request context.
func (s *Server) sessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		cookie, err := ctx.Cookie(s.Conf.Session.CookieName)
		if err != nil || cookie.Value == "" {
			return errUnauthorized
		}
		sess, err := s.Sessions.Get(cookie.Value)
		if err != nil {
			return errUnauthorized
		}
		sess.Touch()

		req := ctx.Request()
		ctx.SetRequest(req.WithContext(session.NewContext(req.Context(), sess)))
		return next(ctx)
	}
}

func getContextSession(ctx echo.Context) (*session.Session, error) {
	if sess, ok := session.FromContext(ctx.Request().Context()); ok {
		return sess, nil
	}
	return nil, errUnauthorized
}

func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sess, err := getContextSession(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context session")
			}
			if sess.User().HasAnyRole(roles...) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// guardMiddleware holds the request until the named guard resolves, or the loading timeout passes.
// Loading answers 202, blocked 403, and a redirect 303 with a Location; all with the guard's view.
func (s *Server) guardMiddleware(name string, subscription bool, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sess, err := getContextSession(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context session")
			}

			pending := sess.Guard(name, s.Conf.Guard.CacheTTL, func() *guard.Pending {
				api := s.API(sess.Token)
				checkers := []guard.Checker{guard.AuthChecker{Token: sess.Token, Source: api, Roles: roles}}
				if subscription {
					checkers = append(checkers, guard.SubscriptionChecker{Source: api})
				}
				g := guard.New(name, guard.All(checkers...), s.Policies, guard.WithLogger(s.Logger))
				// the check outlives the request that started it
				return g.Start(context.Background())
			})

			v := pending.Wait(ctx.Request().Context(), s.Conf.Guard.LoadingTimeout)
			switch {
			case v.State == guard.Authorized:
				return next(ctx)
			case v.State == guard.Loading:
				ctx.Response().Header().Set("Retry-After", "1")
				return ctx.JSON(http.StatusAccepted, v)
			case v.Redirect != "":
				ctx.Response().Header().Set(echo.HeaderLocation, v.Redirect)
				return ctx.JSON(http.StatusSeeOther, v)
			}
			return ctx.JSON(http.StatusForbidden, v)
		}
	}
}

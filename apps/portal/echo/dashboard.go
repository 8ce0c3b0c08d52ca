package echoportal

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core/school"
	"github.com/trezcool/masomo-portal/core/user"
)

type dashboardApi struct {
	*Server
}

// Each dashboard sits behind its own guard: a signed-in user with the dashboard's
// role, and an active subscription.
func registerDashboardAPI(authed *echo.Group, s *Server) {
	api := dashboardApi{s}

	dg := authed.Group("/dashboard")
	for _, role := range user.AllRoles {
		dg.GET("/"+role, api.retrieve, s.guardMiddleware("dashboard:"+role, true, role))
	}
}

func (api *dashboardApi) retrieve(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	d, err := school.BuildDashboard(ctx.Request().Context(), api.API(sess.Token), sess.User())
	if err != nil {
		return errors.Wrap(err, "building dashboard")
	}
	return ctx.JSON(http.StatusOK, d)
}

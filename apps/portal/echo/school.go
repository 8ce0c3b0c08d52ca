package echoportal

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core/school"
	"github.com/trezcool/masomo-portal/core/user"
	"github.com/trezcool/masomo-portal/storage/restapi"
)

type schoolApi struct {
	*Server
}

func registerSchoolAPI(authed *echo.Group, s *Server) {
	api := schoolApi{s}
	staff := roleMiddleware(user.RoleAdmin, user.RoleTeacher)

	authed.POST("/courses", api.createCourse, roleMiddleware(user.RoleAdmin))
	authed.POST("/grades", api.createGrade, staff)

	ng := authed.Group("/notifications")
	ng.GET("", api.queryNotifications)
	ng.POST("", api.createNotification, staff)
	ng.PATCH("/:id/read", api.markNotificationRead)
	ng.DELETE("/:id", api.destroyNotification, roleMiddleware(user.RoleAdmin))
}

func (api *schoolApi) createCourse(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	var data school.CourseForm
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CourseForm")
	}
	if err = data.Validate(api.Validate); err != nil {
		return err
	}

	course, err := api.API(sess.Token).CreateCourse(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, course)
}

func (api *schoolApi) createGrade(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	var data school.GradeForm
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeForm")
	}
	if err = data.Validate(api.Validate); err != nil {
		return err
	}

	grade, err := api.API(sess.Token).CreateGrade(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating grade")
	}
	return ctx.JSON(http.StatusCreated, grade)
}

func (api *schoolApi) queryNotifications(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	var ord Ordering
	ord.Bind(ctx)

	notifications, err := api.API(sess.Token).ListNotifications(ctx.Request().Context(), ord.Orderings...)
	if err != nil {
		return errors.Wrap(err, "listing notifications")
	}
	return ctx.JSON(http.StatusOK, notifications)
}

func (api *schoolApi) createNotification(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	var data school.NotificationForm
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NotificationForm")
	}
	if err = data.Validate(api.Validate); err != nil {
		return err
	}

	n, err := api.API(sess.Token).CreateNotification(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating notification")
	}
	return ctx.JSON(http.StatusCreated, n)
}

// markNotificationRead also refreshes the sidebar count so it drops right away.
func (api *schoolApi) markNotificationRead(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	if err = api.API(sess.Token).MarkNotificationRead(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if restapi.IsNotFound(err) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "marking notification read")
	}
	if p := sess.Poller(); p != nil {
		_, _ = p.Refresh(ctx.Request().Context())
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *schoolApi) destroyNotification(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	if err = api.API(sess.Token).DeleteNotification(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if restapi.IsNotFound(err) {
			return errHttpNotFound
		}
		return errors.Wrap(err, "deleting notification")
	}
	if p := sess.Poller(); p != nil {
		_, _ = p.Refresh(ctx.Request().Context())
	}
	return ctx.NoContent(http.StatusNoContent)
}

package restapi

import (
	"context"
	"net/url"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/guard"
	"github.com/trezcool/masomo-portal/core/note"
	"github.com/trezcool/masomo-portal/core/notification"
	"github.com/trezcool/masomo-portal/core/school"
	"github.com/trezcool/masomo-portal/core/user"
)

var (
	_ note.Repository          = (*Client)(nil)
	_ guard.SubscriptionSource = (*Client)(nil)
	_ guard.AuthSource         = (*Client)(nil)
	_ school.Reader            = (*Client)(nil)
	_ school.Writer            = (*Client)(nil)
	_ notification.Source      = (*Client)(nil)
)

// LoginResponse is the remote API's answer to a successful login.
type LoginResponse struct {
	Token string       `json:"token"`
	User  user.Profile `json:"user"`
}

// auth

func (c *Client) Login(ctx context.Context, creds user.Credentials) (LoginResponse, error) {
	var res LoginResponse
	if err := c.do(ctx, rest.Post, "/auth/login", nil, creds, &res); err != nil {
		return res, err
	}
	if res.Token == "" {
		return res, &guard.MalformedError{Reason: "login answered without a token"}
	}
	return res, nil
}

func (c *Client) Me(ctx context.Context) (user.Profile, error) {
	var p user.Profile
	err := c.do(ctx, rest.Get, "/auth/me", nil, nil, &p)
	return p, err
}

func (c *Client) ChangePassword(ctx context.Context, cp user.ChangePassword) error {
	body := map[string]string{
		"currentPassword": cp.CurrentPassword,
		"password":        cp.Password,
	}
	return c.do(ctx, rest.Post, "/auth/change-password", nil, body, nil)
}

// subscription

func (c *Client) SubscriptionStatus(ctx context.Context) (guard.Status, error) {
	var st guard.Status
	err := c.do(ctx, rest.Get, "/subscription/status", nil, nil, &st)
	return st, err
}

// notes

func (c *Client) ListNotes(ctx context.Context, ordering ...core.Ordering) ([]note.Note, error) {
	notes := make([]note.Note, 0)
	err := c.do(ctx, rest.Get, "/notes", orderingQuery(ordering), nil, &notes)
	return notes, err
}

func (c *Client) GetNote(ctx context.Context, id string) (note.Note, error) {
	var n note.Note
	err := c.do(ctx, rest.Get, "/notes/"+url.PathEscape(id), nil, nil, &n)
	return n, err
}

func (c *Client) SaveNote(ctx context.Context, id string, p note.Payload) (note.Note, error) {
	var n note.Note
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if id == "" {
		err := c.do(ctx, rest.Post, "/notes", nil, p, &n)
		return n, err
	}
	err := c.do(ctx, rest.Put, "/notes/"+url.PathEscape(id), nil, p, &n)
	if err == nil && n.ID == "" {
		n.ID = id
	}
	return n, err
}

func (c *Client) DeleteNote(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("deleting note: empty id")
	}
	return c.do(ctx, rest.Delete, "/notes/"+url.PathEscape(id), nil, nil, nil)
}

// school records

func (c *Client) ListUsers(ctx context.Context) ([]school.User, error) {
	users := make([]school.User, 0)
	err := c.do(ctx, rest.Get, "/users", nil, nil, &users)
	return users, err
}

func (c *Client) ListCourses(ctx context.Context) ([]school.Course, error) {
	courses := make([]school.Course, 0)
	err := c.do(ctx, rest.Get, "/courses", nil, nil, &courses)
	return courses, err
}

func (c *Client) ListExams(ctx context.Context) ([]school.Exam, error) {
	exams := make([]school.Exam, 0)
	err := c.do(ctx, rest.Get, "/exams", nil, nil, &exams)
	return exams, err
}

func (c *Client) ListAssignments(ctx context.Context) ([]school.Assignment, error) {
	assignments := make([]school.Assignment, 0)
	err := c.do(ctx, rest.Get, "/assignments", nil, nil, &assignments)
	return assignments, err
}

func (c *Client) ListGrades(ctx context.Context) ([]school.Grade, error) {
	grades := make([]school.Grade, 0)
	err := c.do(ctx, rest.Get, "/grades", nil, nil, &grades)
	return grades, err
}

func (c *Client) ListNotifications(ctx context.Context, ordering ...core.Ordering) ([]school.Notification, error) {
	notifications := make([]school.Notification, 0)
	err := c.do(ctx, rest.Get, "/notifications", orderingQuery(ordering), nil, &notifications)
	return notifications, err
}

func (c *Client) CreateCourse(ctx context.Context, f school.CourseForm) (school.Course, error) {
	var course school.Course
	err := c.do(ctx, rest.Post, "/courses", nil, f, &course)
	return course, err
}

func (c *Client) CreateGrade(ctx context.Context, f school.GradeForm) (school.Grade, error) {
	var g school.Grade
	err := c.do(ctx, rest.Post, "/grades", nil, f, &g)
	return g, err
}

func (c *Client) CreateNotification(ctx context.Context, f school.NotificationForm) (school.Notification, error) {
	var n school.Notification
	err := c.do(ctx, rest.Post, "/notifications", nil, f, &n)
	return n, err
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.do(ctx, rest.Patch, "/notifications/"+url.PathEscape(id)+"/read", nil, nil, nil)
}

func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	return c.do(ctx, rest.Delete, "/notifications/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var res struct {
		Count *int `json:"count"`
	}
	if err := c.do(ctx, rest.Get, "/notifications/unread-count", nil, nil, &res); err != nil {
		return 0, err
	}
	if res.Count == nil {
		return 0, &guard.MalformedError{Reason: "unread count missing"}
	}
	return *res.Count, nil
}

// Package school holds the records the portal reads from and posts to the
// remote school API, with the forms validated before anything is posted.
package school

import (
	"context"
	"time"

	"github.com/trezcool/masomo-portal/core"
)

// Notification audiences
const (
	AudienceAll      = "all"
	AudienceAdmins   = "admin"
	AudienceTeachers = "teacher"
	AudienceStudents = "student"
)

type (
	User struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Email    string `json:"email"`
		Role     string `json:"role"`
		Class    string `json:"class,omitempty"`
		Subject  string `json:"subject,omitempty"`
		IsActive bool   `json:"isActive"`
	}

	Course struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Code        string `json:"code"`
		Description string `json:"description,omitempty"`
		TeacherID   string `json:"teacherId,omitempty"`
		Class       string `json:"class,omitempty"`
	}

	Exam struct {
		ID       string    `json:"id"`
		Title    string    `json:"title"`
		CourseID string    `json:"courseId"`
		Class    string    `json:"class,omitempty"`
		Date     time.Time `json:"date"`
	}

	Assignment struct {
		ID          string    `json:"id"`
		Title       string    `json:"title"`
		CourseID    string    `json:"courseId"`
		Description string    `json:"description,omitempty"`
		DueDate     time.Time `json:"dueDate"`
	}

	Grade struct {
		ID        string    `json:"id"`
		StudentID string    `json:"studentId"`
		CourseID  string    `json:"courseId"`
		Score     float64   `json:"score"`
		MaxScore  float64   `json:"maxScore"`
		Term      string    `json:"term"`
		Comment   string    `json:"comment,omitempty"`
		CreatedAt time.Time `json:"createdAt"`
	}

	Notification struct {
		ID        string    `json:"id"`
		Title     string    `json:"title"`
		Message   string    `json:"message"`
		Audience  string    `json:"audience"`
		Priority  string    `json:"priority,omitempty"`
		Read      bool      `json:"read"`
		CreatedAt time.Time `json:"createdAt"`
	}
)

// Percent is the grade as a percentage of its maximum score.
func (g Grade) Percent() float64 {
	if g.MaxScore <= 0 {
		return 0
	}
	return g.Score / g.MaxScore * 100
}

type (
	// Reader is the read side of the remote API the dashboards use.
	Reader interface {
		ListUsers(ctx context.Context) ([]User, error)
		ListCourses(ctx context.Context) ([]Course, error)
		ListExams(ctx context.Context) ([]Exam, error)
		ListAssignments(ctx context.Context) ([]Assignment, error)
		ListGrades(ctx context.Context) ([]Grade, error)
		ListNotifications(ctx context.Context, ordering ...core.Ordering) ([]Notification, error)
	}

	// Writer posts validated forms.
	Writer interface {
		CreateCourse(ctx context.Context, f CourseForm) (Course, error)
		CreateGrade(ctx context.Context, f GradeForm) (Grade, error)
		CreateNotification(ctx context.Context, f NotificationForm) (Notification, error)
		MarkNotificationRead(ctx context.Context, id string) error
		DeleteNotification(ctx context.Context, id string) error
	}
)

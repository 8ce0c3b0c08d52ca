package school

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/user"
)

const recentLimit = 5

// Dashboard is the landing page data of one portal.
type Dashboard struct {
	Role          string         `json:"role"`
	Profile       user.Profile   `json:"profile"`
	Counts        map[string]int `json:"counts"`
	Courses       []Course       `json:"courses,omitempty"`
	UpcomingExams []Exam         `json:"upcomingExams,omitempty"`
	DueSoon       []Assignment   `json:"dueSoon,omitempty"`
	RecentGrades  []Grade        `json:"recentGrades,omitempty"`
	AverageScore  *float64       `json:"averageScore,omitempty"`
	Notifications []Notification `json:"notifications,omitempty"`
}

// BuildDashboard fetches what the profile's portal shows, concurrently.
// Any failed read fails the whole dashboard.
func BuildDashboard(ctx context.Context, r Reader, p user.Profile) (Dashboard, error) {
	role := user.NormalizeRole(p.Role)
	if role == "" {
		return Dashboard{}, errors.Errorf("no dashboard for role %q", p.Role)
	}
	d := Dashboard{Role: role, Profile: p, Counts: make(map[string]int)}

	var (
		users         []User
		courses       []Course
		exams         []Exam
		assignments   []Assignment
		grades        []Grade
		notifications []Notification
	)
	g, ctx := errgroup.WithContext(ctx)
	fetch := func(name string, fn func(ctx context.Context) error) {
		g.Go(func() error {
			return errors.Wrapf(fn(ctx), "fetching %s", name)
		})
	}

	fetch("notifications", func(ctx context.Context) (err error) {
		notifications, err = r.ListNotifications(ctx, core.Ordering{Field: "createdAt"})
		return err
	})
	fetch("courses", func(ctx context.Context) (err error) {
		courses, err = r.ListCourses(ctx)
		return err
	})
	switch role {
	case user.RoleAdmin:
		fetch("users", func(ctx context.Context) (err error) {
			users, err = r.ListUsers(ctx)
			return err
		})
	default:
		fetch("exams", func(ctx context.Context) (err error) {
			exams, err = r.ListExams(ctx)
			return err
		})
		fetch("assignments", func(ctx context.Context) (err error) {
			assignments, err = r.ListAssignments(ctx)
			return err
		})
		fetch("grades", func(ctx context.Context) (err error) {
			grades, err = r.ListGrades(ctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}

	now := core.NowFunc()
	d.Counts["courses"] = len(courses)
	d.Counts["unreadNotifications"] = countUnread(notifications)
	d.Notifications = head(notifications, recentLimit)

	switch role {
	case user.RoleAdmin:
		d.Counts["users"] = len(users)
		for _, u := range users {
			if ur := user.NormalizeRole(u.Role); ur != "" {
				d.Counts[ur+"s"]++
			}
		}
		d.Courses = head(courses, recentLimit)

	case user.RoleTeacher:
		for _, c := range courses {
			if c.TeacherID == p.ID {
				d.Courses = append(d.Courses, c)
			}
		}
		d.Counts["myCourses"] = len(d.Courses)
		d.UpcomingExams = upcomingExams(exams, now)
		d.DueSoon = dueSoon(assignments, now)
		d.RecentGrades = recentGrades(grades, "")
		d.Counts["gradesRecorded"] = len(grades)

	case user.RoleStudent:
		d.Courses = courses
		d.UpcomingExams = upcomingExams(exams, now)
		d.DueSoon = dueSoon(assignments, now)
		d.RecentGrades = recentGrades(grades, p.ID)
		d.AverageScore = averagePercent(grades, p.ID)
	}
	d.Counts["upcomingExams"] = len(d.UpcomingExams)
	d.Counts["dueSoon"] = len(d.DueSoon)
	return d, nil
}

func countUnread(ns []Notification) int {
	n := 0
	for _, x := range ns {
		if !x.Read {
			n++
		}
	}
	return n
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func upcomingExams(exams []Exam, now time.Time) []Exam {
	var out []Exam
	for _, e := range exams {
		if !e.Date.Before(now) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return head(out, recentLimit)
}

func dueSoon(as []Assignment, now time.Time) []Assignment {
	var out []Assignment
	for _, a := range as {
		if !a.DueDate.Before(now) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return head(out, recentLimit)
}

// recentGrades returns the newest grades, of studentID only when set.
func recentGrades(grades []Grade, studentID string) []Grade {
	var out []Grade
	for _, g := range grades {
		if studentID == "" || g.StudentID == studentID {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return head(out, recentLimit)
}

func averagePercent(grades []Grade, studentID string) *float64 {
	var sum float64
	var n int
	for _, g := range grades {
		if g.StudentID == studentID && g.MaxScore > 0 {
			sum += g.Percent()
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

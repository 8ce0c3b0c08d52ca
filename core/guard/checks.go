package guard

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/user"
)

// MalformedError is a status response that could not be understood.
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string { return "malformed response: " + e.Reason }

// Classify maps a failed read onto a Condition. Errors exposing HTTPStatus()
// are classified by status; anything unrecognized is a network error.
func Classify(err error) Condition {
	if err == nil {
		return CondOK
	}

	var sc interface{ HTTPStatus() int }
	if errors.As(err, &sc) {
		switch code := sc.HTTPStatus(); {
		case code == http.StatusUnauthorized:
			return CondUnauthorized
		case code == http.StatusForbidden:
			return CondForbidden
		case code == http.StatusPaymentRequired:
			return CondExpired
		case code >= 500:
			return CondNetworkError
		default:
			return CondMalformed
		}
	}

	var (
		malformed *MalformedError
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	if errors.As(err, &malformed) || errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return CondMalformed
	}
	return CondNetworkError
}

// Status is the remote subscription state. It is only ever read.
type Status struct {
	IsActive   bool       `json:"isActive"`
	ExpiryDate *time.Time `json:"expiryDate,omitempty"`
}

// UnmarshalJSON accepts expiry dates as "2006-01-02" or RFC 3339, and requires isActive.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw struct {
		IsActive   *bool   `json:"isActive"`
		ExpiryDate *string `json:"expiryDate"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return &MalformedError{Reason: err.Error()}
	}
	if raw.IsActive == nil {
		return &MalformedError{Reason: "missing isActive"}
	}

	st := Status{IsActive: *raw.IsActive}
	if raw.ExpiryDate != nil && strings.TrimSpace(*raw.ExpiryDate) != "" {
		d := strings.TrimSpace(*raw.ExpiryDate)
		t, err := time.Parse(time.RFC3339, d)
		if err != nil {
			if t, err = time.Parse(time.DateOnly, d); err != nil {
				return &MalformedError{Reason: "invalid expiryDate " + d}
			}
		}
		st.ExpiryDate = &t
	}
	*s = st
	return nil
}

// Expired reports whether access has lapsed at now: inactive, or past the expiry date.
func (s Status) Expired(now time.Time) bool {
	if !s.IsActive {
		return true
	}
	return s.ExpiryDate != nil && s.ExpiryDate.Before(now)
}

type SubscriptionSource interface {
	SubscriptionStatus(ctx context.Context) (Status, error)
}

// SubscriptionChecker blocks on an inactive or expired subscription.
type SubscriptionChecker struct {
	Source SubscriptionSource
}

func (c SubscriptionChecker) Check(ctx context.Context) Result {
	st, err := c.Source.SubscriptionStatus(ctx)
	if err != nil {
		return Result{Condition: Classify(err), Err: err}
	}
	if st.Expired(core.NowFunc()) {
		res := Result{Condition: CondExpired, Detail: "subscription inactive"}
		if st.ExpiryDate != nil {
			res.Detail = "subscription expired on " + st.ExpiryDate.Format(time.DateOnly)
		}
		return res
	}
	return Result{Condition: CondOK}
}

type AuthSource interface {
	Me(ctx context.Context) (user.Profile, error)
}

// AuthChecker requires a live token, a completed first login and, when Roles is set, one of Roles.
type AuthChecker struct {
	Token  string
	Source AuthSource
	Roles  []string
}

func (c AuthChecker) Check(ctx context.Context) Result {
	if c.Token == "" {
		return Result{Condition: CondUnauthorized, Detail: "no token"}
	}
	claims, err := user.ParseToken(c.Token)
	if err != nil {
		return Result{Condition: CondUnauthorized, Detail: "unreadable token", Err: err}
	}
	if claims.Expired(core.NowFunc()) {
		return Result{Condition: CondUnauthorized, Detail: "token expired"}
	}

	profile, err := c.Source.Me(ctx)
	if err != nil {
		return Result{Condition: Classify(err), Err: err}
	}
	if profile.IsFirstLogin {
		return Result{Condition: CondFirstLogin}
	}
	if !profile.HasAnyRole(c.Roles...) {
		return Result{Condition: CondForbidden, Detail: "role " + profile.Role}
	}
	return Result{Condition: CondOK}
}

// All runs checkers in order and returns the first result that is not ok.
func All(checkers ...Checker) Checker {
	return CheckerFunc(func(ctx context.Context) Result {
		for _, c := range checkers {
			if res := c.Check(ctx); res.Condition != CondOK {
				return res
			}
		}
		return Result{Condition: CondOK}
	})
}

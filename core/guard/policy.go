package guard

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/masomo-portal/core"
)

// Condition classifies the result of one access check.
type Condition string

const (
	CondOK           Condition = "ok"
	CondNetworkError Condition = "network_error"
	CondUnauthorized Condition = "unauthorized"
	CondForbidden    Condition = "forbidden"
	CondExpired      Condition = "expired"
	CondMalformed    Condition = "malformed"
	CondFirstLogin   Condition = "first_login"
)

var AllConditions = []Condition{
	CondOK, CondNetworkError, CondUnauthorized, CondForbidden, CondExpired, CondMalformed, CondFirstLogin,
}

// Outcome is what the guard does about a Condition.
type Outcome string

const (
	Allow    Outcome = "allow"
	Block    Outcome = "block"
	Redirect Outcome = "redirect"
	Retry    Outcome = "retry"
)

const maxRetriesLimit = 5

// Action is a navigation link offered with a blocked notice.
type Action struct {
	Label string `yaml:"label" json:"label"`
	URL   string `yaml:"url" json:"url"`
}

type Rule struct {
	Outcome Outcome `yaml:"outcome"`
	Notice  string  `yaml:"notice,omitempty"`
	URL     string  `yaml:"url,omitempty"` // redirect target
	Action  *Action `yaml:"action,omitempty"`
}

// Policy is the guard's decision table: one Rule per Condition.
type Policy struct {
	MaxRetries    int                `yaml:"maxRetries"`
	RetryFallback Rule               `yaml:"retryFallback"`
	Rules         map[Condition]Rule `yaml:"rules"`
}

// DefaultPolicy fails closed: a check that cannot complete is retried once, then blocks.
func DefaultPolicy(conf core.GuardConfig) Policy {
	return Policy{
		MaxRetries: 1,
		RetryFallback: Rule{
			Outcome: Block,
			Notice:  "We could not verify your access right now. Please try again in a moment.",
		},
		Rules: map[Condition]Rule{
			CondOK:           {Outcome: Allow},
			CondNetworkError: {Outcome: Retry},
			CondUnauthorized: {Outcome: Redirect, URL: conf.LoginURL, Notice: "Please sign in to continue."},
			CondForbidden:    {Outcome: Block, Notice: "You do not have access to this page."},
			CondExpired: {
				Outcome: Block,
				Notice:  "Your subscription has expired.",
				Action:  &Action{Label: "Renew subscription", URL: conf.RenewURL},
			},
			CondMalformed:  {Outcome: Block, Notice: "We received an unexpected response while checking your access."},
			CondFirstLogin: {Outcome: Redirect, URL: conf.PasswordURL, Notice: "Please change your password before continuing."},
		},
	}
}

// Decide returns the rule for cond. Unknown conditions block.
func (p Policy) Decide(cond Condition) Rule {
	if r, ok := p.Rules[cond]; ok {
		return r
	}
	return Rule{Outcome: Block, Notice: p.RetryFallback.Notice}
}

// Validate checks the table is complete and every rule can be carried out.
func (p Policy) Validate() error {
	var flds []core.FieldError
	if p.MaxRetries < 0 || p.MaxRetries > maxRetriesLimit {
		flds = append(flds, core.FieldError{Field: "maxRetries", Error: "maxRetries must be between 0 and 5"})
	}
	if err := p.RetryFallback.validate(false); err != "" {
		flds = append(flds, core.FieldError{Field: "retryFallback", Error: err})
	}
	for _, cond := range AllConditions {
		r, ok := p.Rules[cond]
		if !ok {
			flds = append(flds, core.FieldError{Field: "rules." + string(cond), Error: "missing rule"})
			continue
		}
		if err := r.validate(true); err != "" {
			flds = append(flds, core.FieldError{Field: "rules." + string(cond), Error: err})
		}
	}
	for cond := range p.Rules {
		if !isCondition(cond) {
			flds = append(flds, core.FieldError{Field: "rules." + string(cond), Error: "unknown condition"})
		}
	}
	if r := p.Rules[CondOK]; r.Outcome == Retry {
		flds = append(flds, core.FieldError{Field: "rules.ok", Error: "a successful check cannot be retried"})
	}

	if len(flds) > 0 {
		return core.NewValidationError(errors.New("invalid guard policy"), flds...)
	}
	return nil
}

func (r Rule) validate(retryable bool) string {
	switch r.Outcome {
	case Allow, Block:
	case Redirect:
		if r.URL == "" {
			return "redirect needs a url"
		}
	case Retry:
		if !retryable {
			return "retry is not allowed here"
		}
	default:
		return "unknown outcome " + string(r.Outcome)
	}
	if r.Action != nil && r.Action.URL == "" {
		return "action needs a url"
	}
	return ""
}

func isCondition(c Condition) bool {
	for _, cond := range AllConditions {
		if cond == c {
			return true
		}
	}
	return false
}

// policyFile mirrors Policy with optional fields so a file only overrides what it sets.
type policyFile struct {
	MaxRetries    *int               `yaml:"maxRetries"`
	RetryFallback *Rule              `yaml:"retryFallback"`
	Rules         map[Condition]Rule `yaml:"rules"`
}

// ParsePolicy overlays YAML data on base and validates the result.
func ParsePolicy(data []byte, base Policy) (Policy, error) {
	var f policyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Policy{}, errors.Wrap(err, "decoding guard policy")
	}

	p := Policy{MaxRetries: base.MaxRetries, RetryFallback: base.RetryFallback, Rules: make(map[Condition]Rule, len(base.Rules))}
	for cond, r := range base.Rules {
		p.Rules[cond] = r
	}
	if f.MaxRetries != nil {
		p.MaxRetries = *f.MaxRetries
	}
	if f.RetryFallback != nil {
		p.RetryFallback = *f.RetryFallback
	}
	for cond, r := range f.Rules {
		p.Rules[cond] = r
	}

	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// LoadPolicy reads a YAML policy file over base.
func LoadPolicy(path string, base Policy) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, errors.Wrap(err, "reading guard policy")
	}
	return ParsePolicy(data, base)
}

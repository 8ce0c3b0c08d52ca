package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/user"
)

func TestRollbarLogger_print(t *testing.T) {
	var buf bytes.Buffer
	logger := NewRollbarLogger(log.New(&buf, "", 0), &core.Config{Env: "TEST"})
	logger.Enable(false)

	logger.Warn("guard check failed", errors.New("timeout"), user.Profile{ID: "u1", Email: "awa@test.cd"})

	out := buf.String()
	assert.Contains(t, out, "WARN guard check failed")
	assert.Contains(t, out, "timeout")
	assert.NotContains(t, out, "awa@test.cd", "the person is sent to rollbar, not printed")
}

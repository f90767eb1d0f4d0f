package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCodeOf(t *testing.T) {
	assert.Equal(t, ExitCode(0), ExitCodeOf(nil))
	assert.Equal(t, GenericFailureExitCode, ExitCodeOf(fmt.Errorf("plain")))
	assert.Equal(t, ConfigExitCode, ExitCodeOf(NewError(fmt.Errorf("bad config"), ConfigExitCode)))
	assert.Nil(t, NewError(nil, ConfigExitCode))

	var e *ExitCodeError
	assert.Equal(t, ExitCode(0), e.GetExitCode())
	assert.Equal(t, "bad trace", NewError(fmt.Errorf("bad trace"), TraceDataExitCode).Error())
}

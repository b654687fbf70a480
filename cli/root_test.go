package cli

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/choronzon/choronzon/internal/runlog"
	"github.com/choronzon/choronzon/scheduler"
)

func TestClassifyRunErrorMapsCancellationToInterrupted(t *testing.T) {
	err := classifyRunError(context.Canceled)
	assert.True(t, isInterrupted(err))
	assert.False(t, isBudgetExceeded(err))
}

func TestClassifyRunErrorMapsBudgetExceeded(t *testing.T) {
	err := classifyRunError(scheduler.ErrFailureBudgetExceeded)
	assert.True(t, isBudgetExceeded(err))
	assert.False(t, isInterrupted(err))
}

func TestClassifyRunErrorPassesThroughOtherErrors(t *testing.T) {
	plain := errors.New("something else went wrong")
	err := classifyRunError(plain)
	assert.False(t, isBudgetExceeded(err))
	assert.False(t, isInterrupted(err))
	assert.Equal(t, plain, err)
}

func TestClassifyRunErrorNilStaysNil(t *testing.T) {
	assert.NoError(t, classifyRunError(nil))
}

func TestLogLevel(t *testing.T) {
	debugOn, quietOn, off := true, true, false
	assert.Equal(t, runlog.Debug, logLevel(&debugOn, &off))
	assert.Equal(t, runlog.Quiet, logLevel(&off, &quietOn))
	assert.Equal(t, runlog.Normal, logLevel(&off, &off))
}

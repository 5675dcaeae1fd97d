package taskstatus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	fields := [5]Status{Completed, 2, IgnoredBase, NotStarted, 6}
	w := Pack(fields)
	require.Equal(t, fields, w.Unpack())
}

func TestWithIsolatesFields(t *testing.T) {
	var w Word
	w = w.With(Step1, Completed)
	w = w.With(Step3, 2)

	assert.Equal(t, Completed, w.Get(Step1))
	assert.Equal(t, NotStarted, w.Get(Step2))
	assert.Equal(t, Status(2), w.Get(Step3))
	assert.Equal(t, NotStarted, w.Get(Step4))
	assert.Equal(t, NotStarted, w.Get(Step5))
}

func TestDoneForCycle(t *testing.T) {
	var w Word
	assert.False(t, w.DoneForCycle(Step1))

	w = w.Succeed(Step1)
	assert.True(t, w.DoneForCycle(Step1))

	w2 := Word(0).Ignore(Step2)
	assert.True(t, w2.DoneForCycle(Step2))
}

func TestAllDoneForCycleGatesLaterSteps(t *testing.T) {
	w := Word(0).Succeed(Step1).Succeed(Step2).Succeed(Step3).Succeed(Step4)
	assert.True(t, w.AllDoneForCycle(Step4))
	assert.False(t, w.AllDoneForCycle(Step5))

	w = w.Succeed(Step5)
	assert.True(t, w.AllDoneForCycle(Step5))
}

func TestFailIncrementsAndClampsAtMaxRetries(t *testing.T) {
	var w Word
	for i := 0; i < 10; i++ {
		w = w.Fail(Step1, MaxRetries)
	}
	assert.Equal(t, MaxRetries, w.Get(Step1), "field must clamp at the configured max_retries")
}

func TestFailClampsAtConfiguredCeilingNotDefault(t *testing.T) {
	var w Word
	higher := Status(5)
	for i := 0; i < 10; i++ {
		w = w.Fail(Step1, higher)
	}
	assert.Equal(t, higher, w.Get(Step1), "field must clamp at the caller-supplied ceiling, not the package default")
}

func TestRetryableRespectsMaxRetries(t *testing.T) {
	w := Word(0).With(Step1, 3)
	assert.True(t, w.Retryable(Step1, 3))
	w = w.With(Step1, 4)
	assert.False(t, w.Retryable(Step1, 3))
}

func TestResetMonotonicityForceFalse(t *testing.T) {
	w := Pack([5]Status{Completed, 3, IgnoredBase, 0, 6})
	reset := w.Reset(false)

	for s := Step(0); s < 5; s++ {
		assert.LessOrEqual(t, uint8(reset.Get(s)), uint8(w.Get(s)), "reset must never raise a field")
	}
	assert.Equal(t, Completed, reset.Get(Step1))
	assert.Equal(t, NotStarted, reset.Get(Step2))
	assert.Equal(t, IgnoredBase, reset.Get(Step3), "force=false must not clear permanent-ignore")
	assert.Equal(t, NotStarted, reset.Get(Step5))
}

func TestResetMonotonicityForceTrue(t *testing.T) {
	w := Pack([5]Status{Completed, 3, IgnoredBase, 0, 6})
	reset := w.Reset(true)

	for s := Step(0); s < 5; s++ {
		assert.LessOrEqual(t, uint8(reset.Get(s)), uint8(w.Get(s)))
	}
	assert.Equal(t, NotStarted, reset.Get(Step3), "force=true clears permanent-ignore back to 0")
}

func TestNextStep(t *testing.T) {
	w := Word(0).Succeed(Step1).Succeed(Step2)
	s, ok := w.NextStep()
	require.True(t, ok)
	assert.Equal(t, Step3, s)

	full := Word(0).Succeed(Step1).Succeed(Step2).Succeed(Step3).Succeed(Step4).Succeed(Step5)
	_, ok = full.NextStep()
	assert.False(t, ok)
}

func TestClearAndResetZeroesEverything(t *testing.T) {
	w := Pack([5]Status{Completed, 3, IgnoredBase, 0, 6})
	cleared := w.ClearAndReset()

	for s := Step(0); s < 5; s++ {
		assert.Equal(t, NotStarted, cleared.Get(s))
	}
	assert.Equal(t, Word(0), cleared)
}

func TestStringFormatsVector(t *testing.T) {
	w := Pack([5]Status{7, 7, 7, 7, 7})
	assert.Equal(t, "[7 7 7 7 7]", w.String())
}

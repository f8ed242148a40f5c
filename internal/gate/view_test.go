package gate_test

import (
	"testing"

	"github.com/BradenHooton/dashgate/internal/gate"
	"github.com/stretchr/testify/assert"
)

func TestView_Loading(t *testing.T) {
	v := gate.Snapshot{Status: gate.StatusLoading}.View()

	assert.True(t, v.Loading)
	assert.Equal(t, "Loading...", v.LoadingText)
	assert.False(t, v.ShowForm)
	assert.False(t, v.ShowContent)
}

func TestView_AuthenticatedShowsOnlyContent(t *testing.T) {
	v := gate.Snapshot{Status: gate.StatusAuthenticated}.View()

	assert.Equal(t, gate.View{ShowContent: true}, v)
}

func TestView_FreshForm(t *testing.T) {
	v := gate.Snapshot{Status: gate.StatusUnblocked}.View()

	assert.True(t, v.ShowForm)
	assert.False(t, v.InputDisabled)
	assert.False(t, v.SubmitDisabled)
	assert.Equal(t, "Access Dashboard", v.SubmitLabel)
	assert.Empty(t, v.Error)
	assert.Empty(t, v.AttemptsNotice)
	assert.Empty(t, v.BlockedNotice)
}

func TestView_ShowsFailureCount(t *testing.T) {
	v := gate.Snapshot{
		Status:       gate.StatusUnblocked,
		FailureCount: 3,
		Error:        gate.MsgIncorrectPassword,
	}.View()

	assert.Equal(t, "Failed attempts: 3/5", v.AttemptsNotice)
	assert.Equal(t, "Incorrect password", v.Error)
}

func TestView_ShowsTimeoutPeriodsAfterFirstLockout(t *testing.T) {
	v := gate.Snapshot{Status: gate.StatusUnblocked, FailureCount: 11}.View()

	assert.Equal(t, "Failed attempts: 11/5 (2 timeout periods)", v.AttemptsNotice)
}

func TestView_Blocked(t *testing.T) {
	v := gate.Snapshot{
		Status:           gate.StatusBlocked,
		FailureCount:     10,
		RemainingSeconds: 75,
		Error:            "Too many failed attempts. Please wait 60 seconds.",
	}.View()

	assert.True(t, v.ShowForm)
	assert.True(t, v.InputDisabled)
	assert.True(t, v.SubmitDisabled)
	assert.Equal(t, "Blocked (1m 15s)", v.SubmitLabel)
	assert.Equal(t, "Blocked for: 1m 15s", v.BlockedNotice)
	assert.Empty(t, v.AttemptsNotice)
}

package gate

import "fmt"

const (
	submitLabel       = "Access Dashboard"
	loadingText       = "Loading..."
	attemptsFormat    = "Failed attempts: %d/%d"
	timeoutsFormat    = " (%d timeout periods)"
	blockedFormat     = "Blocked for: %s"
	blockedLabelFmt   = "Blocked (%s)"
	lockoutPolicyText = "After 5 failed attempts, access will be temporarily blocked with increasing timeout periods"
)

// View is what a renderer needs to draw the gate for a snapshot.
type View struct {
	Loading     bool
	LoadingText string

	// ShowContent means render the protected content and nothing else.
	ShowContent bool

	ShowForm       bool
	InputDisabled  bool
	SubmitDisabled bool
	SubmitLabel    string
	Error          string
	AttemptsNotice string
	BlockedNotice  string
	PolicyNotice   string
}

// View maps the snapshot onto the rendering contract.
func (s Snapshot) View() View {
	switch s.Status {
	case StatusLoading:
		return View{Loading: true, LoadingText: loadingText}
	case StatusAuthenticated:
		return View{ShowContent: true}
	}

	v := View{
		ShowForm:     true,
		SubmitLabel:  submitLabel,
		Error:        s.Error,
		PolicyNotice: lockoutPolicyText,
	}

	if s.Status == StatusBlocked {
		remaining := FormatRemaining(s.RemainingSeconds)
		v.InputDisabled = true
		v.SubmitDisabled = true
		v.SubmitLabel = fmt.Sprintf(blockedLabelFmt, remaining)
		v.BlockedNotice = fmt.Sprintf(blockedFormat, remaining)
		return v
	}

	if s.FailureCount > 0 {
		v.AttemptsNotice = fmt.Sprintf(attemptsFormat, s.FailureCount, FreeAttempts)
		if periods := TimeoutPeriods(s.FailureCount); periods > 0 {
			v.AttemptsNotice += fmt.Sprintf(timeoutsFormat, periods)
		}
	}
	return v
}

package flow

import "github.com/lucasnoah/branchflow/internal/session"

// activeSteps maps each state the engine drives automatically to its step.
var activeSteps = map[session.State]session.StepID{
	session.StateCleanCheck:   session.StepCleanCheck,
	session.StateTrunkSync:    session.StepTrunkSync,
	session.StateBranchCreate: session.StepBranchCreate,
	session.StateRemoteTrack:  session.StepRemoteTrack,
	session.StateSetupRun:     session.StepSetupRun,
	session.StateTestBaseline: session.StepTestBaseline,
	session.StateResyncCheck:  session.StepResyncCheck,
}

// StepFor returns the step run automatically in state, if any.
func StepFor(state session.State) (session.StepID, bool) {
	id, ok := activeSteps[state]
	return id, ok
}

// Resting reports whether state waits for a command.
func Resting(state session.State) bool {
	switch state {
	case session.StateReady, session.StateIntegrationReady, session.StateIntegrated:
		return true
	}
	return false
}

// Recoverable reports whether a failure of step is annotated as a warning
// instead of failing the session.
func Recoverable(step session.StepID) bool {
	return step == session.StepRemoteTrack || step == session.StepTestBaseline
}

// Transition returns the state a session moves to after outcome. It does not
// modify ws.
func Transition(ws *session.WorkflowSession, outcome session.StepOutcome) session.State {
	switch outcome.Status {
	case session.StatusNeedsDecision:
		return ws.State
	case session.StatusFailure:
		if outcome.Result == session.ResultCancelled {
			return session.StateAborted
		}
		if Recoverable(outcome.Step) {
			return next(ws, outcome)
		}
		return session.StateFailed
	}
	return next(ws, outcome)
}

func next(ws *session.WorkflowSession, outcome session.StepOutcome) session.State {
	switch outcome.Step {
	case session.StepCleanCheck:
		return session.StateTrunkSync
	case session.StepTrunkSync:
		return session.StateBranchCreate
	case session.StepBranchCreate:
		if ws.TrackRemote && !ws.LocalOnly {
			return session.StateRemoteTrack
		}
		return session.StateSetupRun
	case session.StepRemoteTrack:
		return session.StateSetupRun
	case session.StepSetupRun:
		return session.StateTestBaseline
	case session.StepTestBaseline:
		return session.StateReady
	case session.StepResyncCheck:
		if outcome.Result == session.ResultAborted {
			return session.StateReady
		}
		return session.StateIntegrationReady
	case session.StepIntegrate:
		if outcome.Result == session.ResultAborted {
			return session.StateIntegrationReady
		}
		return session.StateIntegrated
	case session.StepCleanup:
		return session.StateCleanedUp
	}
	return session.StateFailed
}

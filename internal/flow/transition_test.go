package flow

import (
	"testing"

	"github.com/lucasnoah/branchflow/internal/session"
)

func TestTransition(t *testing.T) {
	tracked := &session.WorkflowSession{TrackRemote: true}
	untracked := &session.WorkflowSession{TrackRemote: false}
	localOnly := &session.WorkflowSession{TrackRemote: true, LocalOnly: true}

	ok := func(step session.StepID, result string) session.StepOutcome {
		return session.StepOutcome{Step: step, Status: session.StatusSuccess, Result: result}
	}
	fail := func(step session.StepID, result string) session.StepOutcome {
		return session.StepOutcome{Step: step, Status: session.StatusFailure, Result: result}
	}

	tests := []struct {
		name    string
		ws      *session.WorkflowSession
		state   session.State
		outcome session.StepOutcome
		want    session.State
	}{
		{"clean check passes", tracked, session.StateCleanCheck, ok(session.StepCleanCheck, session.ResultClean), session.StateTrunkSync},
		{"trunk sync passes", tracked, session.StateTrunkSync, ok(session.StepTrunkSync, session.ResultUpToDate), session.StateBranchCreate},
		{"branch create tracked", tracked, session.StateBranchCreate, ok(session.StepBranchCreate, session.ResultCreated), session.StateRemoteTrack},
		{"branch create untracked", untracked, session.StateBranchCreate, ok(session.StepBranchCreate, session.ResultCreated), session.StateSetupRun},
		{"branch create local only", localOnly, session.StateBranchCreate, ok(session.StepBranchCreate, session.ResultCreated), session.StateSetupRun},
		{"remote track passes", tracked, session.StateRemoteTrack, ok(session.StepRemoteTrack, session.ResultTracked), session.StateSetupRun},
		{"setup passes", tracked, session.StateSetupRun, ok(session.StepSetupRun, session.ResultInstalled), session.StateTestBaseline},
		{"setup skipped", tracked, session.StateSetupRun, ok(session.StepSetupRun, session.ResultSkipped), session.StateTestBaseline},
		{"tests pass", tracked, session.StateTestBaseline, ok(session.StepTestBaseline, session.ResultTestsPassed), session.StateReady},
		{"resync in sync", tracked, session.StateResyncCheck, ok(session.StepResyncCheck, session.ResultInSync), session.StateIntegrationReady},
		{"resync rebased", tracked, session.StateResyncCheck, ok(session.StepResyncCheck, session.ResultRebased), session.StateIntegrationReady},
		{"resync aborted", tracked, session.StateResyncCheck, ok(session.StepResyncCheck, session.ResultAborted), session.StateReady},
		{"integrate pushed", tracked, session.StateIntegrationReady, ok(session.StepIntegrate, session.ResultPushed), session.StateIntegrated},
		{"integrate aborted", tracked, session.StateIntegrationReady, ok(session.StepIntegrate, session.ResultAborted), session.StateIntegrationReady},
		{"cleanup", tracked, session.StateIntegrated, ok(session.StepCleanup, session.ResultDeleted), session.StateCleanedUp},

		{"trunk sync fails", tracked, session.StateTrunkSync, fail(session.StepTrunkSync, ""), session.StateFailed},
		{"setup fails", tracked, session.StateSetupRun, fail(session.StepSetupRun, ""), session.StateFailed},
		{"integrate fails", tracked, session.StateIntegrationReady, fail(session.StepIntegrate, ""), session.StateFailed},
		{"remote track failure is recoverable", tracked, session.StateRemoteTrack, fail(session.StepRemoteTrack, ""), session.StateSetupRun},
		{"test failure is recoverable", tracked, session.StateTestBaseline, fail(session.StepTestBaseline, session.ResultTestsFailed), session.StateReady},
		{"cancelled step aborts", tracked, session.StateSetupRun, fail(session.StepSetupRun, session.ResultCancelled), session.StateAborted},
		{"cancelled recoverable step aborts", tracked, session.StateTestBaseline, fail(session.StepTestBaseline, session.ResultCancelled), session.StateAborted},

		{"decision keeps state", tracked, session.StateCleanCheck,
			session.StepOutcome{Step: session.StepCleanCheck, Status: session.StatusNeedsDecision}, session.StateCleanCheck},
		{"conflict decision keeps state", tracked, session.StateIntegrationReady,
			session.StepOutcome{Step: session.StepIntegrate, Status: session.StatusNeedsDecision}, session.StateIntegrationReady},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := *tt.ws
			ws.State = tt.state
			before := ws

			got := Transition(&ws, tt.outcome)
			if got != tt.want {
				t.Errorf("Transition() = %s, want %s", got, tt.want)
			}
			if ws.State != before.State || ws.Pending != before.Pending || len(ws.Warnings) != len(before.Warnings) {
				t.Error("Transition must not modify the session")
			}
		})
	}
}

func TestStepFor(t *testing.T) {
	for _, s := range []session.State{
		session.StateCleanCheck, session.StateTrunkSync, session.StateBranchCreate,
		session.StateRemoteTrack, session.StateSetupRun, session.StateTestBaseline, session.StateResyncCheck,
	} {
		if _, ok := StepFor(s); !ok {
			t.Errorf("%s should be an active state", s)
		}
		if Resting(s) {
			t.Errorf("%s should not be a rest state", s)
		}
	}
	for _, s := range []session.State{session.StateReady, session.StateIntegrationReady, session.StateIntegrated} {
		if _, ok := StepFor(s); ok {
			t.Errorf("%s should not run a step automatically", s)
		}
		if !Resting(s) {
			t.Errorf("%s should be a rest state", s)
		}
	}
	for _, s := range []session.State{session.StateCleanedUp, session.StateAborted, session.StateFailed} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

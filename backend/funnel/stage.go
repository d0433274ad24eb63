// Package funnel implements the sales funnel board: items partitioned by stage, and stage transitions applied
// optimistically with rollback when the remote update fails.
package funnel

import "fmt"

// Stage is one step of the sales pipeline. Any stage may be reached from any other; Closed and Lost are not
// terminal.
type Stage string

const (
	StageNew        Stage = "New"
	StageQualifying Stage = "Qualifying"
	StageVisit      Stage = "Visit Scheduled"
	StageProposal   Stage = "Proposal Sent"
	StageClosed     Stage = "Closed"
	StageLost       Stage = "Lost"
)

// Stages lists every stage in board column order.
var Stages = []Stage{StageNew, StageQualifying, StageVisit, StageProposal, StageClosed, StageLost}

// ParseStage returns the Stage named s.
func ParseStage(s string) (Stage, error) {
	for _, stage := range Stages {
		if string(stage) == s {
			return stage, nil
		}
	}
	return "", fmt.Errorf("invalid stage: %q", s)
}

func (s Stage) Valid() bool {
	_, err := ParseStage(string(s))
	return err == nil
}

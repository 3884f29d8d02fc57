package queue

import (
	"encoding/json"
	"strconv"

	"github.com/riverqueue/river/rivertype"

	"github.com/akannigil/oxygen-documentor-sub000/internal/model"
)

// MapState maps a river job state onto the public job states.
func MapState(s rivertype.JobState) model.JobState {
	switch s {
	case rivertype.JobStateAvailable, rivertype.JobStateScheduled,
		rivertype.JobStateRetryable, rivertype.JobStatePending:
		return model.JobQueued
	case rivertype.JobStateRunning:
		return model.JobActive
	case rivertype.JobStateCompleted:
		return model.JobCompleted
	default:
		return model.JobFailed
	}
}

func isFinalized(s rivertype.JobState) bool {
	switch s {
	case rivertype.JobStateCompleted, rivertype.JobStateCancelled, rivertype.JobStateDiscarded:
		return true
	default:
		return false
	}
}

type jobMetadata struct {
	Progress int `json:"progress"`
}

// statusFromRow builds the poll response for a river job row.
func statusFromRow(row *rivertype.JobRow) *model.JobStatus {
	st := &model.JobStatus{
		ID:    strconv.FormatInt(row.ID, 10),
		State: MapState(row.State),
	}

	var meta jobMetadata
	if len(row.Metadata) > 0 && json.Unmarshal(row.Metadata, &meta) == nil {
		st.Progress = meta.Progress
	}

	switch st.State {
	case model.JobCompleted:
		st.Progress = 100
		if row.Kind == GenerationKind {
			if out := row.Output(); len(out) > 0 {
				var res model.JobResult
				if json.Unmarshal(out, &res) == nil {
					st.Result = &res
				}
			}
		}
	case model.JobFailed:
		switch {
		case len(row.Errors) > 0:
			st.FailureReason = row.Errors[len(row.Errors)-1].Error
		case row.State == rivertype.JobStateCancelled:
			st.FailureReason = "cancelled"
		default:
			st.FailureReason = string(row.State)
		}
	}
	return st
}

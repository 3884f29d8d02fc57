package queue

import (
	"sync"
	"time"

	"github.com/akannigil/oxygen-documentor-sub000/internal/model"
)

// inlineJobs keeps the status of jobs run without the broker, for the
// retention period.
type inlineJobs struct {
	mu        sync.Mutex
	jobs      map[string]inlineEntry
	retention time.Duration
	now       func() time.Time
}

type inlineEntry struct {
	status model.JobStatus
	at     time.Time
}

func newInlineJobs(retention time.Duration) *inlineJobs {
	return &inlineJobs{
		jobs:      make(map[string]inlineEntry),
		retention: retention,
		now:       time.Now,
	}
}

func (j *inlineJobs) put(st model.JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	if j.retention > 0 {
		for id, e := range j.jobs {
			if now.Sub(e.at) > j.retention {
				delete(j.jobs, id)
			}
		}
	}
	j.jobs[st.ID] = inlineEntry{status: st, at: now}
}

func (j *inlineJobs) get(id string) (*model.JobStatus, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	e, ok := j.jobs[id]
	if !ok {
		return nil, false
	}
	st := e.status
	return &st, true
}

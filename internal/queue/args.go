package queue

import (
	"github.com/riverqueue/river"

	"github.com/akannigil/oxygen-documentor-sub000/internal/model"
)

// Queue names.
const (
	GenerationQueue = "generation"
	EmailQueue      = "email"
)

// Job kinds.
const (
	GenerationKind = "documentor_generate"
	EmailKind      = "documentor_email"
)

// GenerationArgs is stored in river_job.args. Job.ID is assigned by the
// worker from the river job ID.
type GenerationArgs struct {
	Job model.GenerationJob `json:"job"`
}

// Kind returns the job kind for river registration.
func (GenerationArgs) Kind() string { return GenerationKind }

// InsertOpts returns the default insert options for generation jobs.
func (GenerationArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: GenerationQueue, MaxAttempts: DefaultMaxAttempts}
}

// EmailArgs is stored in river_job.args.
type EmailArgs struct {
	Email model.EmailJob `json:"email"`
}

func (EmailArgs) Kind() string { return EmailKind }

func (EmailArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: EmailQueue, MaxAttempts: DefaultMaxAttempts}
}

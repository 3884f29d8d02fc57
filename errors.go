package documentor

import (
	"errors"

	"github.com/akannigil/oxygen-documentor-sub000/internal/certificate"
	"github.com/akannigil/oxygen-documentor-sub000/internal/queue"
	"github.com/akannigil/oxygen-documentor-sub000/internal/store"
)

// Sentinel errors for service operations.
var (
	ErrJobNotFound  = queue.ErrJobNotFound
	ErrJobStarted   = queue.ErrJobStarted
	ErrJobFinished  = queue.ErrJobFinished
	ErrInvalidJob   = queue.ErrInvalidJob
	ErrUnavailable  = queue.ErrUnavailable
	ErrNotFound     = store.ErrRecordNotFound
	ErrNoSecret     = certificate.ErrMissingSecret
	ErrNoMailer     = errors.New("email delivery is not configured")
	ErrNilConfig    = errors.New("config is required")
	ErrTemplateFile = errors.New("template file is required")
)

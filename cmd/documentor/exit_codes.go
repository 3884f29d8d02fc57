package main

import (
	"errors"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/akannigil/oxygen-documentor-sub000/internal/config"
	"github.com/akannigil/oxygen-documentor-sub000/internal/convert"
	"github.com/akannigil/oxygen-documentor-sub000/internal/generation"
	"github.com/akannigil/oxygen-documentor-sub000/internal/log"
	"github.com/akannigil/oxygen-documentor-sub000/internal/queue"
)

// Exit codes follow Unix conventions: 0 success, 1 general, 2 usage, and
// custom codes below 126.
const (
	ExitSuccess   = 0 // Success
	ExitGeneral   = 1 // General error, failed rows, invalid certificate
	ExitUsage     = 2 // Invalid flags, config, or arguments
	ExitIO        = 3 // File not found, permission denied
	ExitConverter = 4 // Office suite or browser errors
	ExitBroker    = 5 // Job queue unavailable
)

// exitCodeFor maps an error to an exit code. Errors must be wrapped with
// %w for the classification to see them.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	if errors.Is(err, queue.ErrUnavailable) {
		return ExitBroker
	}

	if errors.Is(err, convert.ErrConversionFailed) ||
		errors.Is(err, convert.ErrBrowserConnect) ||
		errors.Is(err, convert.ErrPDFGeneration) ||
		errors.Is(err, generation.ErrConverterRequired) {
		return ExitConverter
	}

	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, ErrReadInput) ||
		errors.Is(err, ErrWriteOutput) {
		return ExitIO
	}

	if errors.Is(err, ErrUsage) ||
		errors.Is(err, flag.ErrHelp) ||
		errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrEnvOverride) ||
		errors.Is(err, config.ErrInvalid) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, log.ErrInvalidLevel) {
		return ExitUsage
	}

	return ExitGeneral
}

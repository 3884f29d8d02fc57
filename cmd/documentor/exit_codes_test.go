package main

import (
	"errors"
	"fmt"
	"os"
	"testing"

	flag "github.com/spf13/pflag"

	"github.com/akannigil/oxygen-documentor-sub000/internal/config"
	"github.com/akannigil/oxygen-documentor-sub000/internal/convert"
	"github.com/akannigil/oxygen-documentor-sub000/internal/generation"
	"github.com/akannigil/oxygen-documentor-sub000/internal/queue"
)

func TestExitCodeFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"generic", errors.New("boom"), ExitGeneral},
		{"rows failed", fmt.Errorf("%w: 1 of 3", ErrRowsFailed), ExitGeneral},
		{"invalid certificate", ErrInvalidCertificate, ExitGeneral},
		{"usage", fmt.Errorf("%w: bad", ErrUsage), ExitUsage},
		{"help", flag.ErrHelp, ExitUsage},
		{"config not found", fmt.Errorf("%w: x", config.ErrConfigNotFound), ExitUsage},
		{"config invalid", fmt.Errorf("%w: x", config.ErrInvalid), ExitUsage},
		{"not exist", fmt.Errorf("open: %w", os.ErrNotExist), ExitIO},
		{"permission", os.ErrPermission, ExitIO},
		{"write output", fmt.Errorf("%w: disk full", ErrWriteOutput), ExitIO},
		{"conversion", fmt.Errorf("row 1: %w", convert.ErrConversionFailed), ExitConverter},
		{"browser", convert.ErrBrowserConnect, ExitConverter},
		{"converter required", generation.ErrConverterRequired, ExitConverter},
		{"broker", fmt.Errorf("%w: refused", queue.ErrUnavailable), ExitBroker},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

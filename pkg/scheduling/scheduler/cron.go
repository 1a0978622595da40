package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	gferrors "github.com/vnykmshr/goexec/pkg/common/errors"
	"github.com/vnykmshr/goexec/pkg/common/validation"
)

// cronParser accepts six fields, seconds first, plus descriptors such as
// "@hourly" and "@every 5m".
var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func parseCron(expr string) (cron.Schedule, error) {
	if err := validation.ValidateNotEmpty(module, "cron", expr); err != nil {
		return nil, err
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, gferrors.NewValidationError(module, "cron", expr, err.Error()).
			WithHint(`use six fields "sec min hour dom month dow" or a descriptor like @hourly`)
	}
	return schedule, nil
}

// ValidateCronExpression reports whether expr can be scheduled.
func ValidateCronExpression(expr string) error {
	_, err := parseCron(expr)
	return err
}

// NextRuns returns the next n activation times of expr after from.
func NextRuns(expr string, from time.Time, n int) ([]time.Time, error) {
	if err := validation.ValidatePositive(module, "n", n); err != nil {
		return nil, err
	}
	schedule, err := parseCron(expr)
	if err != nil {
		return nil, err
	}

	runs := make([]time.Time, 0, n)
	current := from
	for i := 0; i < n; i++ {
		current = schedule.Next(current)
		if current.IsZero() {
			return runs, fmt.Errorf("cron expression %q has no further activations", expr)
		}
		runs = append(runs, current)
	}
	return runs, nil
}

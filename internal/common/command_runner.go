package common

import (
	"context"

	"github.com/mfarzz/jobai/internal/errors"
)

// OperationFunc produces the value a command prints
type OperationFunc[Output any] func(context.Context) (Output, error)

// RunCommand runs a service operation and renders its result according to
// cmdConfig. Errors from the operation are returned unchanged so callers keep
// their AppError classification.
func RunCommand[Output any](
	ctx context.Context,
	logger *errors.Logger,
	cmdConfig CommandConfig,
	operation OperationFunc[Output],
) error {
	if err := ValidateOutputFormat(cmdConfig.OutputFormat, cmdConfig.SupportedFormats); err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidFormat, err.Error(), err)
	}

	result, err := operation(ctx)
	if err != nil {
		return err
	}

	return NewOutputHandler(logger).HandleOutput(result, cmdConfig)
}

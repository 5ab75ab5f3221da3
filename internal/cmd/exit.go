package cmd

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
)

// ExitWithCode reports err with the foundry exit code metadata and exits.
// logger may be nil before logging is initialized, in which case the report
// goes to stderr.
func ExitWithCode(logger *logging.Logger, exitCode foundry.ExitCode, msg string, err error) {
	os.Exit(reportExit(logger, os.Stderr, exitCode, msg, err))
}

// reportExit describes a fatal failure through logger, or on w without one,
// and returns the process exit code.
func reportExit(logger *logging.Logger, w io.Writer, exitCode foundry.ExitCode, msg string, err error) int {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		if err != nil {
			fmt.Fprintf(w, "FATAL: %s: %v (exit code: %d)\n", msg, err, exitCode)
		} else {
			fmt.Fprintf(w, "FATAL: %s (exit code: %d)\n", msg, exitCode)
		}
		return int(exitCode)
	}

	var envelope *errors.ErrorEnvelope
	if err != nil {
		_ = stderrors.As(err, &envelope)
	}
	cause, unwrapped := err, false
	if envelope != nil {
		if original, ok := envelope.Original.(error); ok && original != nil {
			cause, unwrapped = original, true
		}
	}

	if logger != nil {
		fields := []zap.Field{
			zap.Int("exit_code", info.Code),
			zap.String("exit_name", info.Name),
			zap.String("exit_category", info.Category),
		}
		if envelope != nil {
			fields = append(fields,
				zap.String("error_code", envelope.Code),
				zap.String("correlation_id", envelope.CorrelationID))
		}
		if cause != nil {
			fields = append(fields, zap.Error(cause))
		}
		logger.Error(msg, fields...)
		return info.Code
	}

	switch {
	case envelope != nil:
		fmt.Fprintf(w, "FATAL: %s [%s]: %s (correlation: %s)\n", msg, envelope.Code, envelope.Message, envelope.CorrelationID)
		if unwrapped {
			fmt.Fprintf(w, "Underlying error: %v\n", cause)
		}
	case err != nil:
		fmt.Fprintf(w, "FATAL: %s: %v\n", msg, err)
	default:
		fmt.Fprintf(w, "FATAL: %s\n", msg)
	}
	fmt.Fprintf(w, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
	return info.Code
}

// ExitCodeFor picks the foundry exit code for a failed command.
func ExitCodeFor(err error) foundry.ExitCode {
	switch {
	case stderrors.Is(err, errConfig):
		return foundry.ExitConfigInvalid
	case stderrors.Is(err, errUnavailable):
		return foundry.ExitExternalServiceUnavailable
	default:
		return foundry.ExitFailure
	}
}

var (
	// errConfig marks failures caused by invalid configuration.
	errConfig = stderrors.New("invalid configuration")
	// errUnavailable marks failures caused by an unreachable dependency.
	errUnavailable = stderrors.New("dependency unavailable")
)

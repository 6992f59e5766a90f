package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"fund-reconciliation-engine/pkg/apperr"
	"fund-reconciliation-engine/pkg/logger"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.Global().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError prints a user-friendly message for err and returns the
// process exit code.
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Error("Command failed")

	if appErr, ok := apperr.As(err); ok {
		return h.handleAppError(appErr)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}

func (h *CLIErrorHandler) handleAppError(err *apperr.Error) int {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		fmt.Fprintf(os.Stderr, "\nContext:\n")
		for key, value := range err.Context {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", key, value)
		}
	}

	if help := h.categoryHelp(err.Category); help != "" {
		fmt.Fprintf(os.Stderr, "\n%s\n", help)
	}

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(os.Stderr, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.ExitCode()
}

func (h *CLIErrorHandler) categoryHelp(category apperr.Category) string {
	switch category {
	case apperr.CategoryValidation:
		return "The request was rejected before any change was made. Check the flag values and try again."
	case apperr.CategoryNotFound:
		return "The referenced record does not exist. List the available records to find the right ID."
	case apperr.CategoryConflict:
		return "The record is in a state that does not allow this operation. Inspect its current status first."
	case apperr.CategoryPartial:
		return "Some rows were rejected; the accepted rows were saved. Fix the rejected rows and re-import them."
	default:
		return "An internal error occurred. Re-run with --verbose for more detail."
	}
}

package ui

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"

	"searchreporting/pkg/errors"
)

var (
	// Output receives everything the package prints.
	Output io.Writer = os.Stdout

	supportsColor = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	ColorSuccess  = colorFunc(ansi.Green)
	ColorError    = colorFunc(ansi.Red)
	ColorWarning  = colorFunc(ansi.Yellow)
	ColorInfo     = colorFunc(ansi.Cyan)
	ColorProgress = colorFunc(ansi.Blue)
	ColorBold     = colorFunc("default+b")
	ColorDim      = colorFunc("default+h")
)

// colorFunc returns a function that colors text if supported
func colorFunc(color string) func(string) string {
	return func(text string) string {
		if supportsColor {
			return ansi.Color(text, color)
		}
		return text
	}
}

// ShowHeader displays a formatted header
func ShowHeader(title string) {
	width := 50
	if len(title)+4 > width {
		width = len(title) + 4
	}
	padding := (width - len(title) - 2) / 2

	fmt.Fprintln(Output, "\n+"+strings.Repeat("-", width-2)+"+")
	fmt.Fprintf(Output, "|%s%s%s|\n",
		strings.Repeat(" ", padding),
		ColorBold(title),
		strings.Repeat(" ", width-2-padding-len(title)),
	)
	fmt.Fprintln(Output, "+"+strings.Repeat("-", width-2)+"+")
}

// ShowError displays a formatted error message. Typed errors show their
// code and suggestions.
func ShowError(err error) {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		fmt.Fprintf(Output, "\n%s %s\n", ColorError("ERROR "+string(appErr.Code)+":"), appErr.Message)
		if appErr.Cause != nil {
			fmt.Fprintf(Output, "  %s\n", ColorDim(appErr.Cause.Error()))
		}
		for _, suggestion := range appErr.Suggestions {
			fmt.Fprintf(Output, "  %s %s\n", ColorInfo("TIP:"), suggestion)
		}
		if len(appErr.Suggestions) == 0 {
			if suggestion := getSuggestion(appErr.Code, err.Error()); suggestion != "" {
				fmt.Fprintf(Output, "  %s %s\n", ColorInfo("TIP:"), suggestion)
			}
		}
		return
	}

	fmt.Fprintf(Output, "\n%s\n", ColorError("ERROR:"))
	for i, line := range strings.Split(err.Error(), "\n") {
		if i == 0 {
			fmt.Fprintf(Output, "  %s\n", line)
		} else {
			fmt.Fprintf(Output, "  %s\n", ColorDim(line))
		}
	}
}

func ShowSuccess(message string) {
	fmt.Fprintf(Output, "%s %s\n", ColorSuccess("SUCCESS:"), message)
}

func ShowWarning(message string) {
	fmt.Fprintf(Output, "%s %s\n", ColorWarning("WARNING:"), ColorWarning(message))
}

func ShowInfo(message string) {
	fmt.Fprintf(Output, "%s %s\n", ColorInfo("INFO:"), message)
}

// getSuggestion returns a hint for errors that carry none.
func getSuggestion(code errors.ErrorCode, message string) string {
	lower := strings.ToLower(message)

	switch {
	case code == errors.ErrCodeDateRangeExceeded:
		return "Click reports only cover the last 90 days, move --to closer to today"
	case code == errors.ErrCodeAuthenticationFailed:
		return "Check the credentials in googleads.yaml or snowflake.yaml"
	case code == errors.ErrCodeConfigNotFound:
		return "Pass the credential file location with --google or --snow"
	case code == errors.ErrCodeUploadFailed && strings.Contains(lower, "403"):
		return "Ensure the service account can write objects and set ACLs on the bucket"
	case strings.Contains(lower, "notfound") || strings.Contains(lower, "not found"):
		return "Create the tables first with 'searchreporting tables <dataset>'"
	default:
		return ""
	}
}

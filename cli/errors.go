package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/choronzon/choronzon/config"
)

// Error is a formatted CLI-level error with optional remediation hints.
type Error struct {
	Message string
	Hint    string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Hint != "" {
		b.WriteString("\n")
		b.WriteString(e.Hint)
	}
	return b.String()
}

// FormatError writes err to w with color, recognizing the engine's own
// error types to add a hint line a generic error.Error() wouldn't carry.
func FormatError(w io.Writer, err error, useColor bool) {
	if err == nil {
		return
	}
	switch e := err.(type) {
	case *Error:
		fmt.Fprintf(w, "%s%s\n", Colorize("Error: ", ColorRed, useColor), e.Message)
		if e.Hint != "" {
			fmt.Fprintf(w, "%s%s\n", Colorize("Hint: ", ColorYellow, useColor), e.Hint)
		}
	case *config.Error:
		fmt.Fprintf(w, "%s%s\n", Colorize("Error: ", ColorRed, useColor), e.Error())
		fmt.Fprintf(w, "%s%s\n", Colorize("Hint: ", ColorYellow, useColor), "check the campaign config against its defaults with `choronzon init`")
	default:
		fmt.Fprintf(w, "%s%s\n", Colorize("Error: ", ColorRed, useColor), err.Error())
	}
}

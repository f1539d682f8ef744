package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	successStyle = color.New(color.FgGreen, color.Bold)
	errorStyle   = color.New(color.FgRed, color.Bold)
	mutedStyle   = color.New(color.Faint)
)

// PrintError writes err to w as a single "Error:" line.
func PrintError(w io.Writer, err error) {
	errorStyle.Fprint(w, "Error: ")
	fmt.Fprintln(w, err)
}

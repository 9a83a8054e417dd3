// Package approval asks the operator to confirm a change to the policy
// file before it is written.
package approval

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

type Result struct {
	Approved   bool
	UserAction string
}

type Prompt struct {
	Action  string
	Target  string
	Details []string
}

// IsInteractive reports whether stdin is a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Confirm asks on the terminal. Without one there is nobody to ask, so the
// change is approved, matching an unattended script run.
func Confirm(p Prompt) Result {
	if !IsInteractive() {
		return Result{
			Approved:   true,
			UserAction: "auto_approve_non_interactive",
		}
	}
	return Ask(p, os.Stdin, os.Stderr)
}

// Ask shows p on out and reads y/n answers from in until one is valid.
func Ask(p Prompt, in io.Reader, out io.Writer) Result {
	fmt.Fprintln(out, "")
	fmt.Fprintf(out, "%s: %s\n", p.Action, p.Target)

	if len(p.Details) > 0 {
		fmt.Fprintln(out, "")
		for _, d := range p.Details {
			fmt.Fprintf(out, "  • %s\n", d)
		}
	}
	fmt.Fprintln(out, "")

	reader := bufio.NewReader(in)

	for {
		fmt.Fprint(out, "Proceed? [y/n]: ")
		input, err := reader.ReadString('\n')
		if err != nil && input == "" {
			return Result{
				Approved:   false,
				UserAction: "error_reading_input",
			}
		}

		input = strings.TrimSpace(strings.ToLower(input))

		switch input {
		case "y", "yes", "a", "approve":
			return Result{
				Approved:   true,
				UserAction: "approve",
			}
		case "n", "no", "d", "deny":
			return Result{
				Approved:   false,
				UserAction: "deny",
			}
		default:
			if err != nil {
				return Result{
					Approved:   false,
					UserAction: "error_reading_input",
				}
			}
			fmt.Fprintln(out, "Invalid input. Please enter 'y' to proceed or 'n' to cancel.")
		}
	}
}

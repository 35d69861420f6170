// Terminal approval prompt for external path access.
//
// Information Hiding:
// - Prompt wording and input parsing hidden

package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/warden-agent/warden/tools"
)

// TerminalApproval returns an approval callback that prompts on the
// given reader/writer pair. Unrecognized or failed input denies:
// access outside the trust envelope is never granted by accident.
func TerminalApproval(in io.Reader, out io.Writer) tools.ApprovalFunc {
	reader := bufio.NewReader(in)
	return func(path string) tools.ApprovalDecision {
		fmt.Fprintf(out, "\nThe agent wants to access a path outside the trusted directories:\n  %s\n", path)
		fmt.Fprint(out, "[a]llow once / [t]rust for this session / [d]eny: ")

		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintln(out, "denied")
			return tools.ApprovalDeny
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "a", "allow", "allow once", "y", "yes":
			return tools.ApprovalAllowOnce
		case "t", "trust", "always":
			return tools.ApprovalTrustAlways
		default:
			return tools.ApprovalDeny
		}
	}
}

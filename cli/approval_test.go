package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warden-agent/warden/tools"
)

func TestTerminalApprovalAnswers(t *testing.T) {
	cases := []struct {
		input string
		want  tools.ApprovalDecision
	}{
		{"a\n", tools.ApprovalAllowOnce},
		{"allow\n", tools.ApprovalAllowOnce},
		{"yes\n", tools.ApprovalAllowOnce},
		{"t\n", tools.ApprovalTrustAlways},
		{"trust\n", tools.ApprovalTrustAlways},
		{"d\n", tools.ApprovalDeny},
		{"no\n", tools.ApprovalDeny},
		{"something else\n", tools.ApprovalDeny},
	}
	for _, tc := range cases {
		var out strings.Builder
		approve := TerminalApproval(strings.NewReader(tc.input), &out)
		got := approve("/etc/hosts")
		assert.Equal(t, tc.want, got, "input %q", tc.input)
		assert.Contains(t, out.String(), "/etc/hosts")
	}
}

func TestTerminalApprovalDeniesOnEOF(t *testing.T) {
	var out strings.Builder
	approve := TerminalApproval(strings.NewReader(""), &out)
	assert.Equal(t, tools.ApprovalDeny, approve("/tmp/x"))
}

func TestTerminalApprovalSequentialPrompts(t *testing.T) {
	var out strings.Builder
	approve := TerminalApproval(strings.NewReader("a\nd\n"), &out)
	assert.Equal(t, tools.ApprovalAllowOnce, approve("/one"))
	assert.Equal(t, tools.ApprovalDeny, approve("/two"))
}

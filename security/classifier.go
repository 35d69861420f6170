package security

import (
	"regexp"
	"strings"
)

// ThreatLevel is the classifier's escalating judgment of text danger.
// Levels are ordered; adding matches never lowers the level.
type ThreatLevel int

const (
	ThreatSafe ThreatLevel = iota
	ThreatWarning
	ThreatSuspicious
	ThreatDangerous
)

func (l ThreatLevel) String() string {
	switch l {
	case ThreatSafe:
		return "safe"
	case ThreatWarning:
		return "warning"
	case ThreatSuspicious:
		return "suspicious"
	default:
		return "dangerous"
	}
}

// Blocked reports whether callers must refuse outright.
func (l ThreatLevel) Blocked() bool { return l >= ThreatDangerous }

// NeedsOverride reports whether callers must refuse absent an explicit
// override.
func (l ThreatLevel) NeedsOverride() bool { return l == ThreatSuspicious }

// ThreatReason records one pattern match.
type ThreatReason struct {
	PatternID string
	Matched   string
}

// threatPattern is one row of the detection table. Patterns live as
// data, separate from control flow, so the corpus evolves without
// touching the classifier. False positives are a known limitation and
// are never silently relaxed.
type threatPattern struct {
	id       string
	category string
	level    ThreatLevel
	re       *regexp.Regexp
}

var threatPatterns = []threatPattern{
	// Command injection and shell escapes.
	{"eval-call", "injection", ThreatDangerous, regexp.MustCompile(`(?i)\beval\s*\(`)},
	{"exec-call", "injection", ThreatDangerous, regexp.MustCompile(`(?i)\bexec\s*\(`)},
	{"cmd-substitution", "injection", ThreatDangerous, regexp.MustCompile(`\$\([^)]*\)`)},
	{"backtick-exec", "injection", ThreatDangerous, regexp.MustCompile("`[^`]+`")},
	// Exfiltration idioms.
	{"curl-pipe-sh", "exfiltration", ThreatDangerous, regexp.MustCompile(`(?i)curl\s+[^|]*\|\s*(ba|z)?sh`)},
	{"wget-pipe-sh", "exfiltration", ThreatDangerous, regexp.MustCompile(`(?i)wget\s+[^|]*\|\s*(ba|z)?sh`)},
	{"ssh-remote", "exfiltration", ThreatDangerous, regexp.MustCompile(`(?i)\bssh\s+\S*@`)},
	{"scp-transfer", "exfiltration", ThreatDangerous, regexp.MustCompile(`(?i)\bscp\s+`)},
	{"netcat", "exfiltration", ThreatDangerous, regexp.MustCompile(`(?i)\b(netcat|nc)\s+-`)},
	{"dev-tcp", "exfiltration", ThreatDangerous, regexp.MustCompile(`(?i)/dev/tcp/`)},
	// Credential and key references.
	{"ssh-private-key", "credentials", ThreatDangerous, regexp.MustCompile(`(?i)\.ssh/id_(rsa|ed25519|ecdsa)`)},
	{"aws-credentials", "credentials", ThreatDangerous, regexp.MustCompile(`(?i)\.aws/credentials`)},
	{"password-assign", "credentials", ThreatDangerous, regexp.MustCompile(`(?i)\bpassword\s*=`)},
	{"apikey-assign", "credentials", ThreatDangerous, regexp.MustCompile(`(?i)\bapi[_-]?key\s*=`)},
	{"secret-assign", "credentials", ThreatDangerous, regexp.MustCompile(`(?i)\bsecret\s*=`)},
	// Destructive filesystem operations.
	{"rm-rf-root", "destructive", ThreatDangerous, regexp.MustCompile(`(?i)\brm\s+-[a-z]*rf?[a-z]*\s+/(\s|$|\*)`)},
	{"sudo", "destructive", ThreatDangerous, regexp.MustCompile(`(?i)\bsudo\s+`)},
	{"chmod-777", "destructive", ThreatDangerous, regexp.MustCompile(`(?i)\bchmod\s+777\b`)},
	{"mkfs", "destructive", ThreatDangerous, regexp.MustCompile(`(?i)\bmkfs(\.\w+)?\s`)},
	{"dd-device", "destructive", ThreatDangerous, regexp.MustCompile(`(?i)\bdd\s+[^|]*of=/dev/`)},

	// Weaker indicators: block pending explicit override.
	{"path-traversal", "filesystem", ThreatSuspicious, regexp.MustCompile(`\.\./`)},
	{"shell-tool-mention", "shell", ThreatSuspicious, regexp.MustCompile(`(?i)\brun_shell_command\b`)},
	{"spawn-system", "shell", ThreatSuspicious, regexp.MustCompile(`(?i)\b(spawn|system)\s*\(`)},
	{"env-reference", "environment", ThreatSuspicious, regexp.MustCompile(`(?i)\$(HOME|USER|PATH)\b`)},
	{"download-verb", "network", ThreatSuspicious, regexp.MustCompile(`(?i)\b(curl|wget|fetch)\s+https?://`)},

	// Minor indicators: surface, then proceed.
	{"plain-url", "network", ThreatWarning, regexp.MustCompile(`(?i)https?://\S+`)},
	{"base64-blob", "encoded", ThreatWarning, regexp.MustCompile(`[A-Za-z0-9+/]{40,}={0,2}`)},
	{"hex-blob", "encoded", ThreatWarning, regexp.MustCompile(`(0x)?[0-9a-fA-F]{40,}`)},
}

// Prompt-injection phrasing is matched as lowercase substrings rather
// than regexes: phrasing varies too much for anchors to help.
var injectionPhrases = []string{
	"ignore previous instructions",
	"ignore all previous instructions",
	"disregard all prior",
	"forget everything",
	"new instructions:",
	"system: ",
	"admin: ",
	"you are now",
	"pretend you are",
	"act as if",
	"developer mode",
	"dan mode",
	"god mode",
}

const matchPreviewLen = 80

// Classify scans text and returns the highest threat level matched
// along with every matched reason. Pure and deterministic: the same
// text always yields the same classification. The same table and
// blocking semantics serve both tool-argument screening and skill-text
// vetting.
func Classify(text string) (ThreatLevel, []ThreatReason) {
	level := ThreatSafe
	var reasons []ThreatReason

	for _, p := range threatPatterns {
		match := p.re.FindString(text)
		if match == "" {
			continue
		}
		reasons = append(reasons, ThreatReason{PatternID: p.id, Matched: preview(match)})
		if p.level > level {
			level = p.level
		}
	}

	lower := strings.ToLower(text)
	for _, phrase := range injectionPhrases {
		if strings.Contains(lower, phrase) {
			reasons = append(reasons, ThreatReason{PatternID: "prompt-injection", Matched: phrase})
			level = ThreatDangerous
		}
	}

	return level, reasons
}

func preview(s string) string {
	if len(s) > matchPreviewLen {
		return s[:matchPreviewLen] + "..."
	}
	return s
}

// ReasonSummary formats reasons for user-facing denial messages.
func ReasonSummary(reasons []ThreatReason) string {
	parts := make([]string, 0, len(reasons))
	for _, r := range reasons {
		parts = append(parts, r.PatternID+": "+r.Matched)
	}
	return strings.Join(parts, "; ")
}

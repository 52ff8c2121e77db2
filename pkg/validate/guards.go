package validate

import (
	"fmt"
	"regexp"
	"strings"
)

// systemRoots are path prefixes a tool call may never target, grounded
// on the kind of allowlist check the teacher's runbook URL validator
// applies to hostnames.
var systemRoots = []string{"/etc", "/proc", "/sys", "/dev", "/boot", "/root", "c:\\windows", "c:\\program files"}

// SanitizePath rejects path traversal, home-directory expansion, shell
// variable/command substitution, and system-root targets (spec §4.4:
// "path-sanitization (rejects .., ~/, system roots, variable/command
// substitution)").
func SanitizePath(path string) error {
	if path == "" {
		return fmt.Errorf("path must not be empty")
	}
	if strings.Contains(path, "..") {
		return fmt.Errorf("path must not contain '..'")
	}
	if strings.HasPrefix(path, "~/") || path == "~" {
		return fmt.Errorf("path must not reference the home directory")
	}
	if strings.ContainsAny(path, "$`") {
		return fmt.Errorf("path must not contain variable or command substitution")
	}
	if strings.Contains(path, "$(") || strings.Contains(path, "${") {
		return fmt.Errorf("path must not contain variable or command substitution")
	}

	lower := strings.ToLower(path)
	for _, root := range systemRoots {
		if lower == root || strings.HasPrefix(lower, root+"/") || strings.HasPrefix(lower, root+"\\") {
			return fmt.Errorf("path must not target a system directory: %s", root)
		}
	}
	return nil
}

// injectionPatterns are coarse heuristics for SQL and script injection
// attempts embedded in otherwise free-form text fields. A match is only
// reported to SniffInjection's caller; nothing here records a metric or
// rejects a request.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(union\s+select|drop\s+table|;\s*--|'\s*or\s+'1'\s*=\s*'1)`),
	regexp.MustCompile(`(?i)<\s*script[\s>]`),
	regexp.MustCompile(`(?i)javascript\s*:`),
	regexp.MustCompile(`(?i)on(error|load|click)\s*=`),
}

// SniffInjection reports the first heuristic pattern that matches text,
// or ("", false) when none do.
func SniffInjection(text string) (matched string, found bool) {
	for _, p := range injectionPatterns {
		if p.MatchString(text) {
			return p.String(), true
		}
	}
	return "", false
}

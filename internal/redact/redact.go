package redact

import "regexp"

const placeholder = "[REDACTED]"

// secretPatterns are regex heuristics for secrets seen in build logs.
var secretPatterns = []*regexp.Regexp{
	// steamcmd +login <user> <password> [guard code]
	regexp.MustCompile(`(?i)(\+login\s+\S+\s+)\S+(\s+\S+)?`),
	// Generic API keys
	regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["']?[A-Za-z0-9/+=_-]{20,}["']?`),
	// AWS access key IDs
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	// Secrets, tokens and passwords in assignments, quoted or not
	regexp.MustCompile(`(?i)\b[A-Z0-9_]*(secret|token|password|passwd|credential)[A-Z0-9_]*\s*[:=]\s*("[^"]*"|'[^']*'|\S+)`),
	// Bearer tokens
	regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{20,}`),
	// JWTs
	regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`),
	// Private key blocks
	regexp.MustCompile(`-----BEGIN\s+([A-Z]+\s+)?PRIVATE KEY-----`),
	// GitHub tokens
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`),
	// URLs with inline credentials
	regexp.MustCompile(`([a-z][a-z0-9+.-]*://)[^/\s:@]+:[^/\s@]+@`),
}

// Secrets replaces detected secrets in text with [REDACTED].
func Secrets(text string) string {
	result := text
	for _, pat := range secretPatterns {
		result = pat.ReplaceAllStringFunc(result, func(match string) string {
			sub := pat.FindStringSubmatch(match)
			// Keep a scheme or +login prefix so the line stays readable.
			if len(sub) > 1 && (isScheme(sub[1]) || isLogin(sub[1])) {
				return sub[1] + placeholder
			}
			return placeholder
		})
	}
	return result
}

var (
	schemeRe = regexp.MustCompile(`^[a-z][a-z0-9+.-]*://$`)
	loginRe  = regexp.MustCompile(`(?i)^\+login\s`)
)

func isScheme(s string) bool { return schemeRe.MatchString(s) }
func isLogin(s string) bool { return loginRe.MatchString(s) }

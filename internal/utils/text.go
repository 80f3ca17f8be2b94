package utils

import (
	"regexp"
	"strings"
)

// Control characters other than tab, newline and carriage return
var controlCharPattern = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

var slackEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// StripControl removes control characters from free text, keeping tabs and line breaks
func StripControl(text string) string {
	return controlCharPattern.ReplaceAllString(text, "")
}

// TruncateText collapses text onto one line and cuts it to maxLen runes, ending in "..." when cut
func TruncateText(text string, maxLen int) string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))

	r := []rune(text)
	if len(r) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return "..."
	}
	return string(r[:maxLen-3]) + "..."
}

// EscapeForLogging makes user input safe to put on one log line
func EscapeForLogging(text string, maxLen int) string {
	if r := []rune(text); len(r) > maxLen {
		text = string(r[:maxLen]) + "..."
	}
	text = strings.ReplaceAll(text, "\n", "\\n")
	text = strings.ReplaceAll(text, "\r", "\\r")
	text = strings.ReplaceAll(text, "\t", "\\t")
	return StripControl(text)
}

// EscapeSlack escapes the characters Slack treats as markup in message text
func EscapeSlack(text string) string {
	return slackEscaper.Replace(text)
}

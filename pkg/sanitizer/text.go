package sanitizer

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	htmlBlockRegex   = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>|<style\b[^>]*>.*?</style\s*>`)
	htmlBreakRegex   = regexp.MustCompile(`(?i)<\s*(br|/p|/div|/li|/h[1-6]|/tr)\s*/?>`)
	htmlTagRegex     = regexp.MustCompile(`<[^>]*>`)
	mdHeadingRegex   = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdLinkRegex      = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)
	spaceRunRegex    = regexp.MustCompile(`[ \t\f\v]+`)
	blankLinesRegex  = regexp.MustCompile(`\n{3,}`)
	whitespaceRegex  = regexp.MustCompile(`\s+`)
	nonPhoneRegex    = regexp.MustCompile(`[^\d+]`)
	placeholderRegex = regexp.MustCompile(`\{\{\s*[^{}]*?\s*\}\}`)
)

// mdEmphasis is ordered so that double markers are removed before single ones.
var mdEmphasis = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`\*\*([^\s*](?:.*?[^\s*])?)\*\*`), "$1"},
	{regexp.MustCompile(`~~([^\s~](?:.*?[^\s~])?)~~`), "$1"},
	{regexp.MustCompile(`(^|\W)__([^\s_](?:.*?[^\s_])?)__(\W|$)`), "${1}${2}${3}"},
	{regexp.MustCompile(`\*([^\s*](?:.*?[^\s*])?)\*`), "$1"},
	{regexp.MustCompile(`(^|\W)_([^\s_](?:.*?[^\s_])?)_(\W|$)`), "${1}${2}${3}"},
	{regexp.MustCompile("`([^`]+)`"), "$1"},
}

// StripHTML removes tags (dropping script and style bodies), turns block
// closers and <br> into newlines and unescapes entities.
func StripHTML(s string) string {
	s = htmlBlockRegex.ReplaceAllString(s, "")
	s = htmlBreakRegex.ReplaceAllString(s, "\n")
	s = htmlTagRegex.ReplaceAllString(s, "")
	return html.UnescapeString(s)
}

// StripMarkdown removes emphasis markers and headings, and rewrites links as
// "text (url)".
func StripMarkdown(s string) string {
	s = mdLinkRegex.ReplaceAllString(s, "$1 ($2)")
	s = mdHeadingRegex.ReplaceAllString(s, "")
	for _, e := range mdEmphasis {
		s = e.re.ReplaceAllString(s, e.repl)
	}
	return s
}

// StripMarkup removes HTML and Markdown formatting for plain-text channels.
func StripMarkup(s string) string {
	return NormalizeWhitespace(StripMarkdown(StripHTML(s)))
}

// NormalizeWhitespace collapses runs of spaces within lines, trims every
// line and keeps at most one blank line between paragraphs.
func NormalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRunRegex.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = blankLinesRegex.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// SingleLine collapses all whitespace, including newlines, to single spaces.
func SingleLine(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}

// Truncate shortens s to at most maxRunes runes. When it cuts, the result
// ends with the ellipsis, which counts towards the limit. It prefers cutting
// at a word boundary in the last fifth of the allowed length.
func Truncate(s string, maxRunes int, ellipsis string) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}

	keep := maxRunes - utf8.RuneCountInString(ellipsis)
	if keep <= 0 {
		return string([]rune(s)[:maxRunes])
	}

	runes := []rune(s)[:keep]
	cut := len(runes)
	for i := len(runes) - 1; i >= keep*4/5; i-- {
		if runes[i] == ' ' || runes[i] == '\n' {
			cut = i
			break
		}
	}
	return strings.TrimRight(string(runes[:cut]), " \n") + ellipsis
}

// RemovePlaceholders deletes any remaining {{...}} template markers.
func RemovePlaceholders(s string) string {
	return placeholderRegex.ReplaceAllString(s, "")
}

// NormalizePhone keeps digits and a leading plus sign, producing an
// E.164-looking number from user-formatted input.
func NormalizePhone(phone string) string {
	cleaned := nonPhoneRegex.ReplaceAllString(strings.TrimSpace(phone), "")
	if cleaned == "" {
		return ""
	}
	plus := strings.HasPrefix(cleaned, "+")
	digits := strings.ReplaceAll(cleaned, "+", "")
	if plus {
		return "+" + digits
	}
	return digits
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

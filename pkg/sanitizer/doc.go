// Package sanitizer holds text transforms used when adapting message content
// to channel constraints: stripping HTML and Markdown for plain-text
// channels, normalizing whitespace, rune-safe truncation, and normalizing
// contact addresses. Transforms compose with Apply and Compose.
package sanitizer

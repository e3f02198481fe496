package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ContentPolicy is the minimum-length floor applied before a post may be
// submitted for review and before content is sent to the analysis capability.
type ContentPolicy struct {
	MinTitleLen int
	MinBodyLen  int
}

// MeetsFloor reports whether title and body clear the minimum lengths.
// Lengths are counted in runes so multi-byte scripts are not penalized.
func (p ContentPolicy) MeetsFloor(title, body string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(title)) >= p.MinTitleLen &&
		utf8.RuneCountInString(strings.TrimSpace(body)) >= p.MinBodyLen
}

// CheckSubmittable returns a descriptive error when content is below the floor.
func (p ContentPolicy) CheckSubmittable(title, body string) error {
	if utf8.RuneCountInString(strings.TrimSpace(title)) < p.MinTitleLen {
		return fmt.Errorf("title must be at least %d characters", p.MinTitleLen)
	}
	if utf8.RuneCountInString(strings.TrimSpace(body)) < p.MinBodyLen {
		return fmt.Errorf("body must be at least %d characters", p.MinBodyLen)
	}
	return nil
}

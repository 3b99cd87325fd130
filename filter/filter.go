package filter

import (
	"fmt"
	"regexp"
	"unicode"

	"github.com/scipunch/feedwiki/config"
	"github.com/scipunch/feedwiki/entry"
)

// Filter decides which normalized entries a run keeps
type Filter struct {
	minWords int
	patterns []string
	exclude  []*regexp.Regexp
}

// New compiles cfg. An invalid pattern is a config error.
func New(cfg config.Filter) (*Filter, error) {
	f := &Filter{
		minWords: cfg.MinWords,
		patterns: cfg.ExcludePatterns,
		exclude:  make([]*regexp.Regexp, 0, len(cfg.ExcludePatterns)),
	}
	for _, pattern := range cfg.ExcludePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern '%s' with %w", pattern, err)
		}
		f.exclude = append(f.exclude, re)
	}
	return f, nil
}

// Allow reports whether e is kept, and the rule that rejected it otherwise
func (f *Filter) Allow(e entry.Entry) (bool, string) {
	if f == nil {
		return true, ""
	}

	text := e.Title
	if e.Summary != entry.NoSummary {
		text += " " + e.Summary
	}

	if f.minWords > 0 && countWords(text) < f.minWords {
		return false, "min_words"
	}
	for i, re := range f.exclude {
		if re.MatchString(text) {
			return false, "exclude_pattern[" + f.patterns[i] + "]"
		}
	}
	return true, ""
}

// countWords counts runs of letters and digits
func countWords(text string) int {
	words := 0
	inWord := false

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			if !inWord {
				words++
				inWord = true
			}
		} else {
			inWord = false
		}
	}

	return words
}

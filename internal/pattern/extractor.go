// Package pattern extracts verification codes from message bodies using a
// user-supplied regular expression with one capture group.
package pattern

import (
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/ggz/smsbridge/internal/domain"
)

// ErrNoMatch reports that the pattern did not yield a code. This is a
// terminal, non-retryable outcome of processing, not a pipeline failure.
var ErrNoMatch = errors.New("no verification code could be parsed from the message")

// IsNoMatch reports whether an error is an extraction miss.
func IsNoMatch(err error) bool {
	return errors.Is(err, ErrNoMatch)
}

// Extractor applies compiled patterns to message bodies. Compiled patterns
// are cached; the cache is safe for concurrent use.
type Extractor struct {
	mu    sync.RWMutex
	cache map[string]*regexp.Regexp
}

func NewExtractor() *Extractor {
	return &Extractor{cache: make(map[string]*regexp.Regexp)}
}

// Extract runs a single search over the whole body and returns capture
// group 1 of the first match. ErrNoMatch when the pattern does not match or
// has no capturing group; a pattern that fails to compile is a validation
// error.
func (e *Extractor) Extract(body, pattern string) (string, error) {
	if pattern == "" {
		return "", fmt.Errorf("%w: code pattern is required", domain.ErrValidation)
	}

	re, err := e.compile(pattern)
	if err != nil {
		return "", fmt.Errorf("%w: invalid code pattern: %v", domain.ErrValidation, err)
	}

	match := re.FindStringSubmatch(body)
	if len(match) < 2 || match[1] == "" {
		return "", ErrNoMatch
	}
	return match[1], nil
}

func (e *Extractor) compile(pattern string) (*regexp.Regexp, error) {
	e.mu.RLock()
	re, ok := e.cache[pattern]
	e.mu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[pattern] = re
	e.mu.Unlock()
	return re, nil
}

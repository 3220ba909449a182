package view

import (
	"errors"
	"strconv"
	"strings"

	"github.com/vbonduro/containerlog/internal/domain"
)

// parseCount reads a non-negative count typed into a form. Thousands
// separators are accepted.
func parseCount(verr *domain.ValidationError, field, raw string) int {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if s == "" {
		verr.Add(field, "is required")
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		verr.Add(field, "must be a whole number")
		return 0
	}
	if n < 0 {
		verr.Add(field, "must not be negative")
		return 0
	}
	return n
}

// Problems lists field messages for err, or a single message for errors
// that are not validation failures.
func Problems(err error) []string {
	if err == nil {
		return nil
	}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return verr.Problems()
	}
	return []string{err.Error()}
}

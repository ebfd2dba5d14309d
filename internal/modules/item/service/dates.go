package service

import (
	"time"

	"github.com/tdnguyen/bangtin/pkg/apperror"
)

const (
	storedDateLayout  = "2006-01-02"
	displayDateLayout = "02/01/2006"
)

// normalizeDate accepts either the stored or the display layout and
// returns the stored form. Anything else is rejected.
func normalizeDate(s string) (string, error) {
	if t, err := time.Parse(storedDateLayout, s); err == nil {
		return t.Format(storedDateLayout), nil
	}
	if t, err := time.Parse(displayDateLayout, s); err == nil {
		return t.Format(storedDateLayout), nil
	}
	return "", apperror.New(400, "date must be YYYY-MM-DD or DD/MM/YYYY", apperror.ErrInvalidInput)
}

// displayDate renders a stored date for clients. Values that fail to
// parse are passed through untouched.
func displayDate(s string) string {
	t, err := time.Parse(storedDateLayout, s)
	if err != nil {
		return s
	}
	return t.Format(displayDateLayout)
}

func displayDatePtr(s *string) *string {
	if s == nil {
		return nil
	}
	formatted := displayDate(*s)
	return &formatted
}

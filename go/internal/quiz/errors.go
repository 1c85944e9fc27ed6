package quiz

import "errors"

var (
	// ErrNotFound means the competition, question or choice does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a second answer was submitted for the same question.
	ErrConflict = errors.New("already answered")
	// ErrIneligible means the participant may no longer submit answers.
	ErrIneligible = errors.New("not eligible")
)

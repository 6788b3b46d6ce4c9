package models

import "errors"

var (
	// ErrSessionNotFound is returned when a session id has no stored record.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExists is returned when Create is called with an id that is
	// already stored.
	ErrSessionExists = errors.New("session already exists")
	// ErrSessionFinished is returned when progression is requested on a
	// session that has already reached its final step.
	ErrSessionFinished = errors.New("session already finished")
	// ErrConcurrentModification is returned when two progression calls race
	// on the same session and the optimistic version check fails.
	ErrConcurrentModification = errors.New("concurrent session modification")
	// ErrGenerationFailed wraps transport-level failures of the narrative
	// generator (API errors, timeouts, empty responses).
	ErrGenerationFailed = errors.New("narrative generation failed")
	// ErrInvalidSceneContent wraps generator output that decoded but failed
	// validation (empty scene text, correct choice not among the choices).
	ErrInvalidSceneContent = errors.New("invalid scene content")
)

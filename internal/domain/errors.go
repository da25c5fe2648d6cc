package domain

import "errors"

var (
	// ErrGameNotFound is returned when a game id resolves to no live or stored session.
	ErrGameNotFound = errors.New("game not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded for a topic.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrEmptyQuiz indicates a quiz with no questions was supplied at game creation.
	ErrEmptyQuiz = errors.New("quiz has no questions")
)

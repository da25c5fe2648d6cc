package domain

// QuizQuestion is the authored form of a single trivia item, before it is
// turned into a live engine question.
type QuizQuestion struct {
	Text      string `json:"text"`
	SourceURL string `json:"sourceUrl,omitempty"`
	// CorrectAnswer always holds the expected answer text. For numeric
	// questions it must parse as an integer.
	CorrectAnswer string `json:"correctAnswer"`
	// Alternatives holds the multiple-choice options, correct answer included.
	// Empty means the question expects a free-form numeric answer.
	Alternatives []string `json:"alternativeAnswers"`
}

// Quiz is a named, ordered collection of questions for one topic. The order
// is the play order.
type Quiz struct {
	Name      string         `json:"quizName"`
	Questions []QuizQuestion `json:"questions"`
}

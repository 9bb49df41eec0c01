package domain

import "errors"

var (
	// ErrGameInProgress is returned when a game is started while another is active.
	ErrGameInProgress = errors.New("a game is already in progress")
	// ErrNoGame is returned when an operation requires an active game.
	ErrNoGame = errors.New("no game in progress")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrNoQuestions indicates the quiz loaded without any questions.
	ErrNoQuestions = errors.New("quiz has no questions")
	// ErrMalformedQuiz indicates the question grid violates the board shape.
	ErrMalformedQuiz = errors.New("malformed quiz board")
	// ErrInvalidSelection indicates the category/value pair is unknown or already played.
	ErrInvalidSelection = errors.New("invalid question selection")
	// ErrInvalidName indicates a registration name outside the allowed format.
	ErrInvalidName = errors.New("invalid player name")
	// ErrNameTaken indicates the name is bound to another live connection.
	ErrNameTaken = errors.New("name already taken")
	// ErrUnknownPlayer is returned when an event references a player that is not registered.
	ErrUnknownPlayer = errors.New("player not registered")
	// ErrNoActiveQuestion is returned when an answer or buzz arrives with no question up.
	ErrNoActiveQuestion = errors.New("no active question")
)

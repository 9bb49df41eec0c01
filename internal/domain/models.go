package domain

// Quiz identifies a loadable question set.
type Quiz struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Question is one immutable record as loaded from a repository.
type Question struct {
	Category string `json:"category"`
	Value    int    `json:"value"`
	Prompt   string `json:"prompt"`
	Answer   string `json:"answer"`
}

// QuizContent is the load result for a single quiz: metadata plus its questions.
type QuizContent struct {
	Quiz      Quiz       `json:"quiz"`
	Questions []Question `json:"questions"`
}

// QuestionRecord is a Question plus the mutable per-game state the session owns.
// Answered is monotonic: once true it never reverts within a game. Attempted
// holds the connection ids of players who already buzzed on this question.
type QuestionRecord struct {
	Question
	Answered  bool
	Attempted map[string]struct{}
}

// Attempt marks a connection as having used its buzz on this question.
func (r *QuestionRecord) Attempt(connID string) {
	if r.Attempted == nil {
		r.Attempted = make(map[string]struct{})
	}
	r.Attempted[connID] = struct{}{}
}

// HasAttempted reports whether the connection already buzzed on this question.
func (r *QuestionRecord) HasAttempted(connID string) bool {
	_, ok := r.Attempted[connID]
	return ok
}

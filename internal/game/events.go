package game

import "encoding/json"

// Client roles assigned at registration.
const (
	RoleGamemaster = "gamemaster"
	RoleBoard      = "board"
	RolePlayer     = "player"
)

// Inbound event types (client -> server). TimerExpired is also synthesized
// internally by the timer subsystem.
const (
	EvtRegisterUser      = "registerUser"
	EvtStartGame         = "startGame"
	EvtSelectQuestion    = "selectQuestion"
	EvtPlayerBuzzIn      = "playerBuzzIn"
	EvtAnswerResult      = "answerResult"
	EvtNextQuestion      = "nextQuestion"
	EvtTimerExpired      = "timerExpired"
	EvtAdjustPlayerScore = "adjustPlayerScore"
	EvtNewGame           = "newGame"
	EvtLeaveGame         = "leaveGame"
	EvtRequestGameData   = "requestGameData"
	EvtRequestPlayerList = "requestPlayerList"
	EvtCheckGameState    = "checkGameState"
)

// Outbound event types (server -> one or all clients).
const (
	EvtUserRegistered       = "userRegistered"
	EvtGameStarted          = "gameStarted"
	EvtNewGameStarted       = "newGameStarted"
	EvtGameData             = "gameData"
	EvtGameState            = "gameState"
	EvtQuestionSelected     = "questionSelected"
	EvtEnableBuzzers        = "enableBuzzers"
	EvtDisableBuzzers       = "disableBuzzers"
	EvtEnableBuzzersFor     = "enableBuzzersForPlayers"
	EvtPlayerBuzzed         = "playerBuzzed"
	EvtCorrectAnswer        = "correctAnswer"
	EvtWrongAnswer          = "wrongAnswer"
	EvtShowQuestionSplash   = "showQuestionSplash"
	EvtHideQuestionSplash   = "hideQuestionSplash"
	EvtQuestionAnswered     = "questionAnswered"
	EvtUpdateScores         = "updateScores"
	EvtGameOver             = "gameOver"
	EvtGameEnded            = "gameEnded"
	EvtPlayerListUpdate     = "playerListUpdate"
	EvtGameError            = "gameError"
	EvtAudioClipPaths       = "audioClipPaths"
)

// Envelope is the wire frame for every message in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event is an outbound message before marshalling.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Inbound payloads.

type registerUserPayload struct {
	Name string `json:"name"`
}

type startGamePayload struct {
	QuizID string `json:"quizId"`
}

type selectQuestionPayload struct {
	Category string `json:"category"`
	Value    int    `json:"value"`
}

type buzzInPayload struct {
	PlayerName string `json:"playerName"`
}

type answerResultPayload struct {
	Correct bool `json:"correct"`
}

type timerExpiredPayload struct {
	Type string `json:"type"`
}

type adjustScorePayload struct {
	PlayerID string `json:"playerId"`
	Delta    int    `json:"delta"`
}

type leaveGamePayload struct {
	UserName string `json:"userName"`
}

// Outbound payloads.

// RegisteredPayload confirms a registration to the requesting connection.
type RegisteredPayload struct {
	Role           string `json:"role"`
	Name           string `json:"name,omitempty"`
	Score          *int   `json:"score,omitempty"`
	GameInProgress bool   `json:"gameInProgress,omitempty"`
}

// GameStartedPayload announces a freshly loaded game.
type GameStartedPayload struct {
	QuizName string `json:"quizName"`
}

// QuestionView is a board cell as exposed to clients. The expected response is
// deliberately absent; only the gamemaster receives it, via QuestionSelected.
type QuestionView struct {
	Category string `json:"category"`
	Value    int    `json:"value"`
	Prompt   string `json:"question"`
	Answered bool   `json:"answered"`
}

// GameDataPayload is the board snapshot sent on request.
type GameDataPayload struct {
	Categories  []string                  `json:"categories"`
	Questions   map[string][]QuestionView `json:"questions"`
	CurrentGame QuizRef                   `json:"currentGame"`
}

// QuizRef identifies the active quiz to clients.
type QuizRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GameStatePayload answers a checkGameState probe.
type GameStatePayload struct {
	GameInProgress bool     `json:"gameInProgress"`
	CurrentGame    *QuizRef `json:"currentGame"`
}

// QuestionSelectedPayload reveals the active question. Answer is populated only
// on the copy sent to the gamemaster connection.
type QuestionSelectedPayload struct {
	Category  string `json:"category"`
	Value     int    `json:"value"`
	Prompt    string `json:"question"`
	Answer    string `json:"answer,omitempty"`
	TimeLimit int    `json:"timeLimit"`
}

// PlayerBuzzedPayload announces the winning buzz and the answer deadline.
type PlayerBuzzedPayload struct {
	PlayerName string `json:"playerName"`
	PlayerID   string `json:"playerId"`
	TimeLimit  int    `json:"timeLimit"`
}

// CorrectAnswerPayload resolves a question in the buzzed player's favor.
type CorrectAnswerPayload struct {
	PlayerName string `json:"playerName"`
	NewScore   int    `json:"newScore"`
	Category   string `json:"category"`
	Value      int    `json:"value"`
}

// WrongAnswerPayload announces a failed attempt and the applied penalty.
type WrongAnswerPayload struct {
	PlayerName string `json:"playerName"`
	NewScore   int    `json:"newScore"`
	PlayerID   string `json:"playerId"`
}

// ShowSplashPayload re-opens the question after a wrong answer.
type ShowSplashPayload struct {
	Prompt    string `json:"question"`
	TimeLimit int    `json:"timeLimit"`
}

// QuestionAnsweredPayload removes a cell from further selection.
type QuestionAnsweredPayload struct {
	Category string `json:"category"`
	Value    int    `json:"value"`
}

// EnableBuzzersForPayload restricts buzzing to the listed connections.
type EnableBuzzersForPayload struct {
	ActivePlayers []string `json:"activePlayers"`
}

// FinalScore is one ranked scoreboard entry.
type FinalScore struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// GameOverPayload carries the final ranking, best score first.
type GameOverPayload struct {
	FinalScores []FinalScore `json:"finalScores"`
}

// GameEndedPayload announces an aborted game.
type GameEndedPayload struct {
	Reason string `json:"reason"`
}

// PlayerInfo is one entry of a playerListUpdate broadcast.
type PlayerInfo struct {
	Name      string `json:"name"`
	PlayerID  string `json:"playerId,omitempty"`
	Connected bool   `json:"connected"`
}

// ErrorPayload carries a user-visible failure to a single connection.
type ErrorPayload struct {
	Message string `json:"message"`
}

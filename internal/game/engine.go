package game

import (
	"context"
	"encoding/json"
	"regexp"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"quizboard-service/internal/domain"
)

// QuizRepository loads quiz content (file, database, cache).
type QuizRepository interface {
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
	LoadQuiz(ctx context.Context, quizID string) (domain.QuizContent, error)
}

// Config carries the game parameters from configuration.
type Config struct {
	GamemasterName string
	QuestionSplash time.Duration
	PlayerAnswer   time.Duration
	AudioClips     map[string]string
}

func (c Config) withDefaults() Config {
	if c.GamemasterName == "" {
		c.GamemasterName = "magnus"
	}
	if c.QuestionSplash <= 0 {
		c.QuestionSplash = 15 * time.Second
	}
	if c.PlayerAnswer <= 0 {
		c.PlayerAnswer = 10 * time.Second
	}
	return c
}

// Phase is the state machine position of the single process-wide session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseBoardSelection
	PhaseQuestionSplash
	PhasePlayerAnswering
	PhaseGameOver
)

var nameFormat = regexp.MustCompile(`^[A-Za-z0-9 _-]{2,20}$`)

type command struct {
	connID string
	raw    []byte
	attach *Conn
	detach bool
	exp    *expiry
	loaded *loadResult
}

type loadResult struct {
	connID  string
	epoch   uint64
	content domain.QuizContent
	err     error
}

// Engine owns the authoritative session state. Every inbound event (client
// frames, connection lifecycle, timer expiries, quiz load completions) is
// funneled through one command channel and processed by a single goroutine, so
// mutations never interleave and arrival order decides races like concurrent
// buzz-ins.
type Engine struct {
	cfg     Config
	quizzes QuizRepository
	clock   clockwork.Clock

	cmds    chan command
	gateway *gateway
	players *Registry
	timer   *countdown
	runCtx  context.Context

	// Session state, engine goroutine only.
	phase   Phase
	quiz    domain.Quiz
	board   *domain.Board
	current *domain.QuestionRecord
	buzzed  *Player
	loading bool
	epoch   uint64
}

func NewEngine(cfg Config, quizzes QuizRepository, clock clockwork.Clock) *Engine {
	e := &Engine{
		cfg:     cfg.withDefaults(),
		quizzes: quizzes,
		clock:   clock,
		cmds:    make(chan command, 256),
		gateway: newGateway(),
		players: NewRegistry(),
	}
	e.timer = newCountdown(clock, func(exp expiry) {
		e.cmds <- command{exp: &exp}
	})
	return e
}

// Run processes commands until the context is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.runCtx = ctx
	log.Info().Msg("game engine started")
	for {
		select {
		case <-ctx.Done():
			e.timer.stop()
			log.Info().Msg("game engine shutting down")
			return
		case cmd := <-e.cmds:
			e.handle(cmd)
		}
	}
}

// Attach registers a new connection with the broadcast gateway.
func (e *Engine) Attach(conn *Conn) {
	e.cmds <- command{attach: conn}
}

// Detach removes a connection; its player record survives with its score.
func (e *Engine) Detach(connID string) {
	e.cmds <- command{connID: connID, detach: true}
}

// Dispatch enqueues one raw client frame in arrival order.
func (e *Engine) Dispatch(connID string, raw []byte) {
	e.cmds <- command{connID: connID, raw: raw}
}

func (e *Engine) handle(cmd command) {
	switch {
	case cmd.attach != nil:
		e.handleAttach(cmd.attach)
	case cmd.detach:
		e.handleDisconnect(cmd.connID)
	case cmd.exp != nil:
		if cmd.exp.Epoch != e.epoch {
			return // stale fire, a reset or resolution raced the timer
		}
		e.handleTimerExpired(cmd.exp.Kind)
	case cmd.loaded != nil:
		e.handleLoaded(*cmd.loaded)
	default:
		e.handleClientFrame(cmd.connID, cmd.raw)
	}
}

func (e *Engine) handleClientFrame(connID string, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
		e.sendError(connID, "invalid message")
		return
	}

	switch env.Type {
	case EvtRegisterUser:
		var p registerUserPayload
		if !e.decode(connID, env.Payload, &p) {
			return
		}
		e.handleRegister(connID, p.Name)
	case EvtStartGame:
		var p startGamePayload
		if !e.decode(connID, env.Payload, &p) {
			return
		}
		e.handleStartGame(connID, p.QuizID)
	case EvtSelectQuestion:
		var p selectQuestionPayload
		if !e.decode(connID, env.Payload, &p) {
			return
		}
		e.handleSelectQuestion(connID, p.Category, p.Value)
	case EvtPlayerBuzzIn:
		var p buzzInPayload
		if !e.decode(connID, env.Payload, &p) {
			return
		}
		e.handleBuzzIn(connID, p.PlayerName)
	case EvtAnswerResult:
		var p answerResultPayload
		if !e.decode(connID, env.Payload, &p) {
			return
		}
		e.handleAnswerResult(connID, p.Correct)
	case EvtNextQuestion:
		e.handleNextQuestion(connID)
	case EvtTimerExpired:
		var p timerExpiredPayload
		if !e.decode(connID, env.Payload, &p) {
			return
		}
		// Client-driven expiry goes through the same resolution path as the
		// server timer; phase validation makes duplicates a no-op.
		e.handleTimerExpired(TimerKind(p.Type))
	case EvtAdjustPlayerScore:
		var p adjustScorePayload
		if !e.decode(connID, env.Payload, &p) {
			return
		}
		e.handleAdjustScore(connID, p.PlayerID, p.Delta)
	case EvtNewGame:
		e.handleNewGame(connID)
	case EvtLeaveGame:
		var p leaveGamePayload
		if !e.decode(connID, env.Payload, &p) {
			return
		}
		e.handleLeaveGame(connID, p.UserName)
	case EvtRequestGameData:
		e.handleRequestGameData(connID)
	case EvtRequestPlayerList:
		e.gateway.broadcast(Event{Type: EvtPlayerListUpdate, Payload: e.players.List()})
	case EvtCheckGameState:
		e.handleCheckGameState(connID)
	default:
		e.sendError(connID, "unsupported message type")
	}
}

func (e *Engine) handleAttach(conn *Conn) {
	e.gateway.add(conn)
	if len(e.cfg.AudioClips) > 0 {
		e.gateway.sendTo(conn.ID, Event{Type: EvtAudioClipPaths, Payload: e.cfg.AudioClips})
	}
	log.Debug().Str("connection_id", conn.ID).Msg("connection attached")
}

func (e *Engine) handleDisconnect(connID string) {
	conn, ok := e.gateway.get(connID)
	if !ok {
		return
	}
	e.gateway.remove(connID)

	if conn.Role != RolePlayer {
		log.Debug().Str("connection_id", connID).Str("role", conn.Role).Msg("connection detached")
		return
	}

	player, ok := e.players.ByConn(connID)
	if !ok {
		return
	}
	// Retain the record and score; short-lived UI flakiness should not erase a
	// player mid-game. An explicit leaveGame deletes them.
	e.players.Unbind(connID)
	log.Info().Str("player", player.Name).Msg("player disconnected, record retained")

	if e.buzzed == player && e.phase == PhasePlayerAnswering && e.current != nil {
		e.buzzed = nil
		e.reopenSplash()
	}
	e.gateway.broadcast(Event{Type: EvtPlayerListUpdate, Payload: e.players.List()})
}

func (e *Engine) handleRegister(connID, name string) {
	conn, ok := e.gateway.get(connID)
	if !ok {
		return
	}

	switch name {
	case e.cfg.GamemasterName:
		conn.Role = RoleGamemaster
		conn.Name = name
		e.gateway.sendTo(connID, Event{Type: EvtUserRegistered, Payload: RegisteredPayload{Role: RoleGamemaster}})
		log.Info().Str("connection_id", connID).Msg("gamemaster registered")
		return
	case RoleBoard:
		conn.Role = RoleBoard
		conn.Name = name
		e.gateway.sendTo(connID, Event{Type: EvtUserRegistered, Payload: RegisteredPayload{
			Role:           RoleBoard,
			GameInProgress: e.inProgress(),
		}})
		return
	}

	if !nameFormat.MatchString(name) {
		e.sendError(connID, domain.ErrInvalidName.Error())
		return
	}
	if existing, ok := e.players.Get(name); ok && existing.ConnID != "" && existing.ConnID != connID {
		if _, live := e.gateway.get(existing.ConnID); live {
			e.sendError(connID, domain.ErrNameTaken.Error())
			return
		}
	}

	player := e.players.Bind(name, connID)
	conn.Role = RolePlayer
	conn.Name = name
	score := player.Score
	e.gateway.sendTo(connID, Event{Type: EvtUserRegistered, Payload: RegisteredPayload{
		Role:  RolePlayer,
		Name:  name,
		Score: &score,
	}})
	e.gateway.broadcast(Event{Type: EvtPlayerListUpdate, Payload: e.players.List()})
	log.Info().Str("player", name).Int("score", score).Msg("player registered")
}

func (e *Engine) handleStartGame(connID, quizID string) {
	if !e.requireGamemaster(connID) {
		return
	}
	if e.inProgress() {
		e.sendError(connID, domain.ErrGameInProgress.Error())
		return
	}

	e.loading = true
	epoch := e.epoch
	ctx := e.runCtx
	if ctx == nil {
		ctx = context.Background()
	}

	// The load is the only suspension point; it runs off the engine goroutine
	// and re-enters the queue with the epoch captured now, so a newGame or
	// leave racing a slow load invalidates the result.
	go func() {
		content, err := e.quizzes.LoadQuiz(ctx, quizID)
		e.cmds <- command{loaded: &loadResult{connID: connID, epoch: epoch, content: content, err: err}}
	}()
}

func (e *Engine) handleLoaded(res loadResult) {
	if res.epoch != e.epoch {
		log.Debug().Msg("discarding quiz load that raced a session reset")
		return
	}
	e.loading = false

	if res.err != nil {
		log.Error().Err(res.err).Msg("failed to load quiz")
		e.sendError(res.connID, "failed to start game: "+res.err.Error())
		return
	}
	board, err := domain.NewBoard(res.content.Questions)
	if err != nil {
		e.sendError(res.connID, "failed to start game: "+err.Error())
		return
	}

	e.quiz = res.content.Quiz
	e.board = board
	e.phase = PhaseBoardSelection
	e.gateway.broadcast(Event{Type: EvtGameStarted, Payload: GameStartedPayload{QuizName: e.quiz.Name}})
	log.Info().Str("quiz", e.quiz.Name).Int("categories", len(board.Categories)).Msg("game started")
}

func (e *Engine) handleSelectQuestion(connID, category string, value int) {
	if !e.requireGamemaster(connID) {
		return
	}
	if e.phase != PhaseBoardSelection || e.board == nil {
		e.sendError(connID, domain.ErrInvalidSelection.Error())
		return
	}
	record := e.board.Find(category, value)
	if record == nil || record.Answered {
		e.sendError(connID, domain.ErrInvalidSelection.Error())
		return
	}

	e.current = record
	e.buzzed = nil
	e.phase = PhaseQuestionSplash
	e.startTimer(TimerQuestionSplash, e.cfg.QuestionSplash)

	selected := QuestionSelectedPayload{
		Category:  category,
		Value:     value,
		Prompt:    record.Prompt,
		TimeLimit: e.splashSeconds(),
	}
	withAnswer := selected
	withAnswer.Answer = record.Answer
	for _, conn := range e.gateway.conns {
		if conn.Role == RoleGamemaster {
			e.gateway.sendTo(conn.ID, Event{Type: EvtQuestionSelected, Payload: withAnswer})
		} else {
			e.gateway.sendTo(conn.ID, Event{Type: EvtQuestionSelected, Payload: selected})
		}
	}
	e.gateway.broadcast(Event{Type: EvtEnableBuzzers})
}

func (e *Engine) handleBuzzIn(connID, playerName string) {
	if e.phase == PhasePlayerAnswering {
		e.sendError(connID, "another player already buzzed in")
		return
	}
	if e.phase != PhaseQuestionSplash || e.current == nil {
		e.sendError(connID, domain.ErrNoActiveQuestion.Error())
		return
	}
	player, ok := e.players.ByConn(connID)
	if !ok || player.Name != playerName {
		e.sendError(connID, domain.ErrUnknownPlayer.Error())
		return
	}
	if e.current.HasAttempted(connID) {
		e.sendError(connID, "already attempted this question")
		return
	}

	// First buzz processed wins; serialization makes this race-free.
	e.buzzed = player
	e.current.Attempt(connID)
	e.phase = PhasePlayerAnswering
	e.startTimer(TimerPlayerAnswer, e.cfg.PlayerAnswer)
	e.gateway.broadcast(Event{Type: EvtHideQuestionSplash})
	e.gateway.broadcast(Event{Type: EvtPlayerBuzzed, Payload: PlayerBuzzedPayload{
		PlayerName: player.Name,
		PlayerID:   connID,
		TimeLimit:  e.answerSeconds(),
	}})
	log.Info().Str("player", player.Name).Str("category", e.current.Category).Int("value", e.current.Value).Msg("buzz accepted")
}

func (e *Engine) handleAnswerResult(connID string, correct bool) {
	if !e.requireGamemaster(connID) {
		return
	}
	if e.phase != PhasePlayerAnswering || e.buzzed == nil || e.current == nil {
		e.sendError(connID, domain.ErrNoActiveQuestion.Error())
		return
	}
	e.resolveAnswer(correct)
}

// resolveAnswer settles the buzzed player's attempt. The gamemaster verdict
// and the answer-timer expiry both land here.
func (e *Engine) resolveAnswer(correct bool) {
	e.stopTimer()
	player := e.buzzed
	record := e.current

	if correct {
		player.Score += record.Value
		record.Answered = true
		e.buzzed = nil
		e.current = nil
		e.phase = PhaseBoardSelection
		e.gateway.broadcast(Event{Type: EvtCorrectAnswer, Payload: CorrectAnswerPayload{
			PlayerName: player.Name,
			NewScore:   player.Score,
			Category:   record.Category,
			Value:      record.Value,
		}})
		e.gateway.broadcast(Event{Type: EvtQuestionAnswered, Payload: QuestionAnsweredPayload{
			Category: record.Category,
			Value:    record.Value,
		}})
		e.gateway.broadcast(Event{Type: EvtDisableBuzzers})
		e.gateway.broadcast(Event{Type: EvtUpdateScores, Payload: e.players.Scores()})
		e.checkGameOver()
		return
	}

	player.Score -= record.Value
	e.buzzed = nil
	e.gateway.broadcast(Event{Type: EvtWrongAnswer, Payload: WrongAnswerPayload{
		PlayerName: player.Name,
		NewScore:   player.Score,
		PlayerID:   player.ConnID,
	}})
	e.gateway.broadcast(Event{Type: EvtUpdateScores, Payload: e.players.Scores()})
	e.reopenSplash()
}

// reopenSplash puts the current question back up with a reduced deadline for
// the players who have not attempted it yet.
func (e *Engine) reopenSplash() {
	reduced := e.splashSeconds() / 3
	if reduced < 1 {
		reduced = 1
	}
	e.phase = PhaseQuestionSplash
	e.startTimer(TimerQuestionSplash, time.Duration(reduced)*time.Second)
	e.gateway.broadcast(Event{Type: EvtShowQuestionSplash, Payload: ShowSplashPayload{
		Prompt:    e.current.Prompt,
		TimeLimit: reduced,
	}})
	e.gateway.broadcast(Event{Type: EvtEnableBuzzersFor, Payload: EnableBuzzersForPayload{
		ActivePlayers: e.eligibleBuzzers(),
	}})
}

// eligibleBuzzers lists the live player connections that have not yet used
// their attempt on the current question.
func (e *Engine) eligibleBuzzers() []string {
	active := []string{}
	for _, info := range e.players.List() {
		if !info.Connected || e.current.HasAttempted(info.PlayerID) {
			continue
		}
		active = append(active, info.PlayerID)
	}
	return active
}

func (e *Engine) handleTimerExpired(kind TimerKind) {
	switch kind {
	case TimerQuestionSplash:
		if e.phase != PhaseQuestionSplash || e.current == nil {
			return
		}
		e.stopTimer()
		record := e.current
		record.Answered = true
		e.current = nil
		e.buzzed = nil
		e.phase = PhaseBoardSelection
		e.gateway.broadcast(Event{Type: EvtQuestionAnswered, Payload: QuestionAnsweredPayload{
			Category: record.Category,
			Value:    record.Value,
		}})
		e.gateway.broadcast(Event{Type: EvtHideQuestionSplash})
		e.gateway.broadcast(Event{Type: EvtDisableBuzzers})
		log.Info().Str("category", record.Category).Int("value", record.Value).Msg("question timed out with no buzz")
		e.checkGameOver()
	case TimerPlayerAnswer:
		if e.phase != PhasePlayerAnswering || e.buzzed == nil {
			return
		}
		log.Info().Str("player", e.buzzed.Name).Msg("answer deadline expired, scoring as wrong")
		e.resolveAnswer(false)
	}
}

func (e *Engine) handleNextQuestion(connID string) {
	if !e.requireGamemaster(connID) {
		return
	}
	if e.current == nil {
		e.sendError(connID, domain.ErrNoActiveQuestion.Error())
		return
	}
	e.stopTimer()
	record := e.current
	record.Answered = true
	e.current = nil
	e.buzzed = nil
	e.phase = PhaseBoardSelection
	e.gateway.broadcast(Event{Type: EvtQuestionAnswered, Payload: QuestionAnsweredPayload{
		Category: record.Category,
		Value:    record.Value,
	}})
	e.gateway.broadcast(Event{Type: EvtHideQuestionSplash})
	e.gateway.broadcast(Event{Type: EvtDisableBuzzers})
	e.checkGameOver()
}

func (e *Engine) handleAdjustScore(connID, playerID string, delta int) {
	if !e.requireGamemaster(connID) {
		return
	}
	player, ok := e.players.Get(playerID)
	if !ok {
		player, ok = e.players.ByConn(playerID)
	}
	if !ok {
		e.sendError(connID, domain.ErrUnknownPlayer.Error())
		return
	}
	player.Score += delta
	e.gateway.broadcast(Event{Type: EvtUpdateScores, Payload: e.players.Scores()})
	log.Info().Str("player", player.Name).Int("delta", delta).Int("score", player.Score).Msg("score adjusted")
}

func (e *Engine) handleNewGame(connID string) {
	if !e.requireGamemaster(connID) {
		return
	}
	e.resetSession(true)
	e.gateway.broadcast(Event{Type: EvtNewGameStarted})
	e.gateway.broadcast(Event{Type: EvtUpdateScores, Payload: e.players.Scores()})
	log.Info().Msg("session reset for a new game")
}

func (e *Engine) handleLeaveGame(connID, userName string) {
	if userName == e.cfg.GamemasterName {
		e.resetSession(false)
		e.gateway.broadcast(Event{Type: EvtGameEnded, Payload: GameEndedPayload{Reason: "Gamemaster left the game"}})
		log.Info().Msg("gamemaster left, game ended")
		return
	}

	player, ok := e.players.ByConn(connID)
	if !ok {
		player, ok = e.players.Get(userName)
	}
	if !ok {
		e.sendError(connID, domain.ErrUnknownPlayer.Error())
		return
	}

	wasBuzzed := e.buzzed == player
	e.players.Remove(player.Name)
	log.Info().Str("player", player.Name).Msg("player left the game")

	if wasBuzzed {
		e.buzzed = nil
		if e.current != nil && e.phase == PhasePlayerAnswering {
			e.reopenSplash()
		}
	}
	e.gateway.broadcast(Event{Type: EvtPlayerListUpdate, Payload: e.players.List()})
	e.gateway.broadcast(Event{Type: EvtUpdateScores, Payload: e.players.Scores()})
}

func (e *Engine) handleRequestGameData(connID string) {
	if e.phase == PhaseIdle || e.board == nil {
		e.sendError(connID, domain.ErrNoGame.Error())
		return
	}
	questions := make(map[string][]QuestionView, len(e.board.Categories))
	for _, category := range e.board.Categories {
		records := e.board.ByCategory[category]
		views := make([]QuestionView, len(records))
		for i, record := range records {
			views[i] = QuestionView{
				Category: record.Category,
				Value:    record.Value,
				Prompt:   record.Prompt,
				Answered: record.Answered,
			}
		}
		questions[category] = views
	}
	e.gateway.sendTo(connID, Event{Type: EvtGameData, Payload: GameDataPayload{
		Categories:  e.board.Categories,
		Questions:   questions,
		CurrentGame: QuizRef{ID: e.quiz.ID, Name: e.quiz.Name},
	}})
}

func (e *Engine) handleCheckGameState(connID string) {
	state := GameStatePayload{GameInProgress: e.inProgress()}
	if e.phase != PhaseIdle {
		state.CurrentGame = &QuizRef{ID: e.quiz.ID, Name: e.quiz.Name}
	}
	e.gateway.sendTo(connID, Event{Type: EvtGameState, Payload: state})
}

func (e *Engine) checkGameOver() {
	if e.board == nil || !e.board.AllAnswered() {
		return
	}
	e.phase = PhaseGameOver
	e.gateway.broadcast(Event{Type: EvtGameOver, Payload: GameOverPayload{FinalScores: e.players.Ranked()}})
	log.Info().Msg("all questions answered, game over")
}

// resetSession clears the session back to Idle. Bumping the epoch invalidates
// any in-flight timer fire or quiz load.
func (e *Engine) resetSession(zeroScores bool) {
	e.timer.stop()
	e.epoch++
	e.phase = PhaseIdle
	e.quiz = domain.Quiz{}
	e.board = nil
	e.current = nil
	e.buzzed = nil
	e.loading = false
	if zeroScores {
		e.players.ResetScores()
	}
}

func (e *Engine) inProgress() bool {
	return e.phase != PhaseIdle || e.loading
}

func (e *Engine) startTimer(kind TimerKind, d time.Duration) {
	e.epoch++
	e.timer.start(kind, d, e.epoch)
}

func (e *Engine) stopTimer() {
	e.epoch++
	e.timer.stop()
}

func (e *Engine) splashSeconds() int {
	return int(e.cfg.QuestionSplash / time.Second)
}

func (e *Engine) answerSeconds() int {
	return int(e.cfg.PlayerAnswer / time.Second)
}

func (e *Engine) requireGamemaster(connID string) bool {
	conn, ok := e.gateway.get(connID)
	if !ok || conn.Role != RoleGamemaster {
		e.sendError(connID, "gamemaster role required")
		return false
	}
	return true
}

func (e *Engine) decode(connID string, raw json.RawMessage, dst any) bool {
	if len(raw) == 0 {
		e.sendError(connID, "missing payload")
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		e.sendError(connID, "invalid payload")
		return false
	}
	return true
}

func (e *Engine) sendError(connID, message string) {
	e.gateway.sendTo(connID, Event{Type: EvtGameError, Payload: ErrorPayload{Message: message}})
}

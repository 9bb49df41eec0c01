package game

import "sort"

// Player is a registered participant. Identity is the name; ConnID is a
// volatile back-reference to the current connection and is rebound on
// re-registration. Scores survive disconnects and are only zeroed by an
// explicit new game.
type Player struct {
	Name   string
	Score  int
	ConnID string

	seq int // registration order, breaks score ties
}

// Registry tracks players by name, independent of the session lifetime.
// All access happens on the engine goroutine.
type Registry struct {
	byName  map[string]*Player
	nextSeq int
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Player)}
}

// Get looks a player up by name.
func (r *Registry) Get(name string) (*Player, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// ByConn looks a player up by their current connection.
func (r *Registry) ByConn(connID string) (*Player, bool) {
	if connID == "" {
		return nil, false
	}
	for _, p := range r.byName {
		if p.ConnID == connID {
			return p, true
		}
	}
	return nil, false
}

// Bind creates the player on first registration or rebinds the connection of a
// returning one, keeping the accumulated score.
func (r *Registry) Bind(name, connID string) *Player {
	if p, ok := r.byName[name]; ok {
		p.ConnID = connID
		return p
	}
	p := &Player{Name: name, ConnID: connID, seq: r.nextSeq}
	r.nextSeq++
	r.byName[name] = p
	return p
}

// Unbind drops the connection association but retains the player record.
func (r *Registry) Unbind(connID string) {
	for _, p := range r.byName {
		if p.ConnID == connID {
			p.ConnID = ""
			return
		}
	}
}

// Remove deletes a player record entirely (explicit leave).
func (r *Registry) Remove(name string) {
	delete(r.byName, name)
}

// ResetScores zeroes every score while keeping registrations.
func (r *Registry) ResetScores() {
	for _, p := range r.byName {
		p.Score = 0
	}
}

// Scores returns the name -> score map broadcast after every change.
func (r *Registry) Scores() map[string]int {
	scores := make(map[string]int, len(r.byName))
	for _, p := range r.byName {
		scores[p.Name] = p.Score
	}
	return scores
}

// Ranked returns the scoreboard sorted by score descending; ties keep
// registration order.
func (r *Registry) Ranked() []FinalScore {
	players := make([]*Player, 0, len(r.byName))
	for _, p := range r.byName {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool {
		if players[i].Score != players[j].Score {
			return players[i].Score > players[j].Score
		}
		return players[i].seq < players[j].seq
	})

	scores := make([]FinalScore, len(players))
	for i, p := range players {
		scores[i] = FinalScore{Name: p.Name, Score: p.Score}
	}
	return scores
}

// List returns the roster in registration order for playerListUpdate.
func (r *Registry) List() []PlayerInfo {
	players := make([]*Player, 0, len(r.byName))
	for _, p := range r.byName {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].seq < players[j].seq })

	infos := make([]PlayerInfo, len(players))
	for i, p := range players {
		infos[i] = PlayerInfo{Name: p.Name, PlayerID: p.ConnID, Connected: p.ConnID != ""}
	}
	return infos
}

// Len reports the number of registered players.
func (r *Registry) Len() int {
	return len(r.byName)
}

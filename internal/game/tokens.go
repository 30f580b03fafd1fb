package game

// TokenKind names the three table rewards.
type TokenKind string

const (
	// TokenProtection blocks one night kill against its holder.
	TokenProtection TokenKind = "protection"
	// TokenDoubleVote doubles the holder's ballot weight for one vote
	// phase.
	TokenDoubleVote TokenKind = "double_vote"
	// TokenReveal lets the holder privately learn one player's role, once.
	TokenReveal TokenKind = "reveal"
)

// String returns the token's wire name.
func (k TokenKind) String() string {
	return string(k)
}

// TokenManager tracks who holds which token. At most one living player
// holds each kind at any time; awarding a held token moves it. The manager
// mutates player flags directly and is only driven from the orchestrator.
type TokenManager struct {
	roster  *Roster
	holders map[TokenKind]PlayerID
}

// NewTokenManager returns a manager with no tokens in play.
func NewTokenManager(roster *Roster) *TokenManager {
	return &TokenManager{
		roster:  roster,
		holders: make(map[TokenKind]PlayerID),
	}
}

// Holder returns the living holder of kind, if any.
func (tm *TokenManager) Holder(kind TokenKind) (*Player, bool) {
	id, ok := tm.holders[kind]
	if !ok {
		return nil, false
	}
	p, ok := tm.roster.Get(id)
	if !ok || !p.Alive {
		return nil, false
	}
	return p, true
}

// Award gives kind to p, stripping it from any previous holder. Returns the
// displaced holder's ID when the token moved hands.
func (tm *TokenManager) Award(p *Player, kind TokenKind) (PlayerID, bool) {
	var displaced PlayerID
	moved := false
	if prev, ok := tm.holders[kind]; ok && prev != p.ID {
		if old, found := tm.roster.Get(prev); found {
			tm.setFlag(old, kind, false)
		}
		displaced = prev
		moved = true
	}
	tm.holders[kind] = p.ID
	tm.setFlag(p, kind, true)
	return displaced, moved
}

// Consume removes kind from p after use. It is a no-op if p does not hold
// the token.
func (tm *TokenManager) Consume(p *Player, kind TokenKind) bool {
	if tm.holders[kind] != p.ID {
		return false
	}
	delete(tm.holders, kind)
	tm.setFlag(p, kind, false)
	return true
}

// BlockKill consumes p's protection token against a night kill. Returns
// true when the kill is blocked.
func (tm *TokenManager) BlockKill(p *Player) bool {
	if !p.Protection {
		return false
	}
	return tm.Consume(p, TokenProtection)
}

// OnDeath retires every token the player held. Tokens do not pass on.
func (tm *TokenManager) OnDeath(p *Player) {
	for _, kind := range []TokenKind{TokenProtection, TokenDoubleVote, TokenReveal} {
		if tm.holders[kind] == p.ID {
			delete(tm.holders, kind)
			tm.setFlag(p, kind, false)
		}
	}
}

func (tm *TokenManager) setFlag(p *Player, kind TokenKind, held bool) {
	switch kind {
	case TokenProtection:
		p.Protection = held
	case TokenDoubleVote:
		p.DoubleVote = held
	case TokenReveal:
		p.Reveal = held
	}
}

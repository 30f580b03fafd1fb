// Package house implements the built-in remote agent. It follows the
// table's suspicion ledger with a little jitter: vote the loudest
// suspicion, kill the quietest trusted voice, keep tokens until they
// matter. Good enough to fill seats and exercise a server.
package house

import (
	"math"

	rand "math/rand/v2"

	"github.com/lox/traitorsforbots/protocol"
	"github.com/lox/traitorsforbots/sdk/agent"
)

const (
	investigateFloor = 0.6
	endgameComfort   = 0.35
	stealChance      = 0.25
)

// Handler plays a cautious, suspicion-driven game over the agent SDK.
type Handler struct {
	agent.Base
	rng *rand.Rand
}

// New creates a house handler drawing jitter from rng.
func New(rng *rand.Rand) *Handler {
	return &Handler{rng: rng}
}

func (h *Handler) OnDecisionRequest(st *agent.State, req protocol.DecisionRequest) (protocol.DecisionResponse, error) {
	resp := protocol.DecisionResponse{RequestID: req.RequestID}
	switch req.Kind {
	case protocol.KindVote:
		resp.Target = h.loudest(req)
	case protocol.KindKill:
		resp.Target = h.quietest(req)
	case protocol.KindRecruitTarget:
		resp.Target = h.pick(req.Candidates)
	case protocol.KindRecruitment:
		resp.Accept = req.Ultimatum || h.rng.Float64() < 0.5
	case protocol.KindEndgame:
		resp.Choice = h.endgameChoice(st, req)
	case protocol.KindShareSteal:
		resp.Choice = "share"
		if h.rng.Float64() < stealChance {
			resp.Choice = "steal"
		}
	case protocol.KindTokenChoice:
		resp.Choice = h.tokenChoice(req)
	case protocol.KindInvestigate:
		resp.Target = h.investigate(req)
	case protocol.KindReflect:
		resp.Shifts = h.reflect(st, req)
	default:
		return agent.Fallback(req), nil
	}
	return resp, nil
}

// loudest returns the most suspected candidate, with jitter so identical
// ledgers do not make the whole lobby vote in lockstep.
func (h *Handler) loudest(req protocol.DecisionRequest) string {
	best, bestScore := "", math.Inf(-1)
	for _, id := range req.Candidates {
		score := req.View.Suspicion[id] + h.rng.Float64()*0.1
		if score > bestScore {
			best, bestScore = id, score
		}
	}
	return best
}

// quietest returns the least suspected candidate. For kills that is the
// trusted voice most likely to organise the vote against us.
func (h *Handler) quietest(req protocol.DecisionRequest) string {
	best, bestScore := "", math.Inf(1)
	for _, id := range req.Candidates {
		score := req.View.Suspicion[id] + h.rng.Float64()*0.1
		if score < bestScore {
			best, bestScore = id, score
		}
	}
	return best
}

func (h *Handler) endgameChoice(st *agent.State, req protocol.DecisionRequest) string {
	// A surviving adversary always banks the pot.
	if st.Role == "adversary" {
		return "stop"
	}
	peak := 0.0
	for _, id := range req.Candidates {
		if v := req.View.Suspicion[id]; v > peak {
			peak = v
		}
	}
	if peak == 0 {
		for _, v := range req.View.Suspicion {
			if v > peak {
				peak = v
			}
		}
	}
	if peak < endgameComfort {
		return "stop"
	}
	return "continue"
}

func (h *Handler) tokenChoice(req protocol.DecisionRequest) string {
	for _, opt := range req.Options {
		if opt == "protection" {
			return opt
		}
	}
	if len(req.Options) > 0 {
		return req.Options[0]
	}
	return ""
}

// investigate spends the reveal token only once somebody looks properly
// guilty; an empty target holds it for another day.
func (h *Handler) investigate(req protocol.DecisionRequest) string {
	best, bestScore := "", 0.0
	for _, id := range req.Candidates {
		if v := req.View.Suspicion[id]; v > bestScore {
			best, bestScore = id, v
		}
	}
	if bestScore >= investigateFloor {
		return best
	}
	return ""
}

// reflect raises suspicion toward anyone who voted against us since the
// last reflection.
func (h *Handler) reflect(st *agent.State, req protocol.DecisionRequest) []protocol.Shift {
	var shifts []protocol.Shift
	for _, e := range req.Events {
		if e.Type != "ballot" || e.Target != st.PlayerID || e.Actor == "" {
			continue
		}
		shifts = append(shifts, protocol.Shift{Target: e.Actor, Delta: 0.12})
		if len(shifts) == 8 {
			break
		}
	}
	return shifts
}

func (h *Handler) pick(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return ids[h.rng.IntN(len(ids))]
}

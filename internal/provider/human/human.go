// Package human prompts a person at the terminal for each decision. Input
// and output are injected so the prompt loop is testable without a TTY.
package human

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/lox/traitorsforbots/internal/game"
)

// fuzzyMaxDistance bounds how sloppy a typed name may be before we refuse
// to guess.
const fuzzyMaxDistance = 2

type styles struct {
	title  lipgloss.Style
	prompt lipgloss.Style
	hint   lipgloss.Style
	bad    lipgloss.Style
	event  lipgloss.Style
	secret lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		prompt: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		hint:   lipgloss.NewStyle().Faint(true),
		bad:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		event:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		secret: lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("135")),
	}
}

// Provider implements game.DecisionProvider over a line-based terminal
// session.
type Provider struct {
	// The engine abandons timed-out decisions while their goroutines may
	// still be mid-prompt, so all sessions share one lock.
	mu      sync.Mutex
	scanner *bufio.Scanner
	out     io.Writer
	logger  zerolog.Logger
	styles  styles
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger attaches a logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

// New builds a provider reading decisions from in and writing prompts to
// out.
func New(in io.Reader, out io.Writer, opts ...Option) *Provider {
	p := &Provider{
		scanner: bufio.NewScanner(in),
		out:     out,
		logger:  zerolog.Nop(),
		styles:  defaultStyles(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With().Str("component", "human").Logger()
	return p
}

var _ game.DecisionProvider = (*Provider)(nil)

func (p *Provider) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

// ask keeps prompting until parse accepts a line or input runs out.
func ask[T any](ctx context.Context, p *Provider, prompt string, parse func(string) (T, error)) (T, error) {
	var zero T
	for {
		fmt.Fprint(p.out, p.styles.prompt.Render(prompt)+" ")
		line, err := p.readLine(ctx)
		if err != nil {
			return zero, err
		}
		if line == "" {
			continue
		}
		v, err := parse(line)
		if err != nil {
			fmt.Fprintln(p.out, p.styles.bad.Render(err.Error()))
			continue
		}
		return v, nil
	}
}

func (p *Provider) header(view game.PlayerView) {
	title := fmt.Sprintf("Day %d of %d · %s · pot %d", view.Day, view.MaxDays, view.Phase, view.Pot)
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, p.styles.title.Render(title))
	if view.Role == game.RoleAdversary {
		line := "You are a traitor."
		if len(view.Allies) > 0 {
			line = fmt.Sprintf("You are a traitor, allied with %s.", joinIDs(view.Allies))
		}
		fmt.Fprintln(p.out, p.styles.secret.Render(line))
	}
}

func (p *Provider) listCandidates(view game.PlayerView, candidates []game.PlayerID) {
	names := nameIndex(view)
	ordered := append([]game.PlayerID(nil), candidates...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return view.Suspicion[ordered[i]] > view.Suspicion[ordered[j]]
	})
	for i, id := range ordered {
		marks := tokenMarks(view, id)
		fmt.Fprintf(p.out, "  %2d. %-12s suspicion %.2f%s\n", i+1, names[id], view.Suspicion[id], marks)
	}
	fmt.Fprintln(p.out, p.styles.hint.Render("  pick by number or name"))
}

func tokenMarks(view game.PlayerView, id game.PlayerID) string {
	for _, pl := range view.Players {
		if pl.ID != id {
			continue
		}
		var marks []string
		if pl.Protection {
			marks = append(marks, "shielded")
		}
		if pl.DoubleVote {
			marks = append(marks, "double vote")
		}
		if pl.Reveal {
			marks = append(marks, "reveal")
		}
		if len(marks) > 0 {
			return "  [" + strings.Join(marks, ", ") + "]"
		}
	}
	return ""
}

func nameIndex(view game.PlayerView) map[game.PlayerID]string {
	names := make(map[game.PlayerID]string, len(view.Players))
	for _, pl := range view.Players {
		names[pl.ID] = pl.Name
	}
	return names
}

func joinIDs(ids []game.PlayerID) string {
	ss := make([]string, len(ids))
	for i, id := range ids {
		ss[i] = string(id)
	}
	return strings.Join(ss, ", ")
}

// matchPlayer resolves typed input against the candidate list: a 1-based
// index into the displayed order, an exact ID or name, or a close-enough
// fuzzy name match.
func matchPlayer(input string, view game.PlayerView, candidates []game.PlayerID) (game.PlayerID, error) {
	names := nameIndex(view)
	ordered := append([]game.PlayerID(nil), candidates...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return view.Suspicion[ordered[i]] > view.Suspicion[ordered[j]]
	})

	if n, err := strconv.Atoi(input); err == nil {
		if n < 1 || n > len(ordered) {
			return "", fmt.Errorf("no candidate numbered %d", n)
		}
		return ordered[n-1], nil
	}

	lowered := strings.ToLower(input)
	for _, id := range ordered {
		if strings.ToLower(string(id)) == lowered || strings.ToLower(names[id]) == lowered {
			return id, nil
		}
	}

	type scored struct {
		id   game.PlayerID
		dist int
	}
	var close []scored
	for _, id := range ordered {
		d := levenshtein.ComputeDistance(lowered, strings.ToLower(names[id]))
		if di := levenshtein.ComputeDistance(lowered, strings.ToLower(string(id))); di < d {
			d = di
		}
		if d <= fuzzyMaxDistance {
			close = append(close, scored{id: id, dist: d})
		}
	}
	sort.SliceStable(close, func(i, j int) bool { return close[i].dist < close[j].dist })

	switch {
	case len(close) == 0:
		return "", fmt.Errorf("nobody called %q here", input)
	case len(close) > 1 && close[0].dist == close[1].dist:
		return "", fmt.Errorf("ambiguous: %s or %s?", names[close[0].id], names[close[1].id])
	default:
		return close[0].id, nil
	}
}

func (p *Provider) pickPlayer(ctx context.Context, view game.PlayerView, candidates []game.PlayerID, prompt string) (game.PlayerID, error) {
	p.header(view)
	p.listCandidates(view, candidates)
	return ask(ctx, p, prompt, func(line string) (game.PlayerID, error) {
		return matchPlayer(line, view, candidates)
	})
}

// DecideVote prompts for a banishment target.
func (p *Provider) DecideVote(ctx context.Context, view game.PlayerView, candidates []game.PlayerID) (game.PlayerID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pickPlayer(ctx, view, candidates, "Who do you vote to banish?")
}

// DecideKillTarget prompts for tonight's victim.
func (p *Provider) DecideKillTarget(ctx context.Context, view game.PlayerView, candidates []game.PlayerID) (game.PlayerID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pickPlayer(ctx, view, candidates, "Choose who dies tonight.")
}

// DecideRecruitTarget prompts for a recruitment approach.
func (p *Provider) DecideRecruitTarget(ctx context.Context, view game.PlayerView, candidates []game.PlayerID) (game.PlayerID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pickPlayer(ctx, view, candidates, "Who do you approach to turn?")
}

// DecideRecruitment prompts to accept or decline an offer.
func (p *Provider) DecideRecruitment(ctx context.Context, view game.PlayerView, ultimatum bool) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.header(view)
	if ultimatum {
		fmt.Fprintln(p.out, p.styles.secret.Render("The traitors have you cornered: join them or die tonight."))
	} else {
		fmt.Fprintln(p.out, p.styles.secret.Render("A hand on your shoulder in the dark: the traitors want you."))
	}
	return ask(ctx, p, "Accept? (yes/no)", parseYesNo)
}

func parseYesNo(line string) (bool, error) {
	switch strings.ToLower(line) {
	case "y", "yes", "accept", "join":
		return true, nil
	case "n", "no", "decline", "refuse":
		return false, nil
	}
	return false, fmt.Errorf("answer yes or no")
}

// DecideEndgame prompts for the stop-or-continue declaration.
func (p *Provider) DecideEndgame(ctx context.Context, view game.PlayerView) (game.EndgameChoice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.header(view)
	fmt.Fprintln(p.out, "Few of you remain. End the game and split the pot, or play on?")
	return ask(ctx, p, "Declare (stop/continue):", func(line string) (game.EndgameChoice, error) {
		switch strings.ToLower(line) {
		case "s", "stop", "end":
			return game.EndgameStop, nil
		case "c", "continue", "play", "on":
			return game.EndgameContinue, nil
		}
		return "", fmt.Errorf("say stop or continue")
	})
}

// DecideShareOrSteal prompts for the final-pot play.
func (p *Provider) DecideShareOrSteal(ctx context.Context, view game.PlayerView) (game.PayoffChoice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.header(view)
	fmt.Fprintf(p.out, "The pot stands at %d. Share it, or try to take it all?\n", view.Pot)
	return ask(ctx, p, "Choose (share/steal):", func(line string) (game.PayoffChoice, error) {
		switch strings.ToLower(line) {
		case "share", "split":
			return game.PayoffShare, nil
		case "steal", "take":
			return game.PayoffSteal, nil
		}
		return "", fmt.Errorf("say share or steal")
	})
}

// DecideTokenChoice prompts for a challenge token.
func (p *Provider) DecideTokenChoice(ctx context.Context, view game.PlayerView, options []game.TokenKind) (game.TokenKind, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.header(view)
	fmt.Fprintln(p.out, "You won the challenge. Pick your prize:")
	for i, opt := range options {
		fmt.Fprintf(p.out, "  %d. %s\n", i+1, opt)
	}
	return ask(ctx, p, "Token:", func(line string) (game.TokenKind, error) {
		if n, err := strconv.Atoi(line); err == nil {
			if n < 1 || n > len(options) {
				return "", fmt.Errorf("no option numbered %d", n)
			}
			return options[n-1], nil
		}
		lowered := strings.ToLower(line)
		for _, opt := range options {
			if strings.HasPrefix(opt.String(), lowered) {
				return opt, nil
			}
		}
		return "", fmt.Errorf("no token called %q on offer", line)
	})
}

// DecideInvestigateTarget prompts whether to spend the reveal token.
// Typing hold (or pass) keeps it for another day.
func (p *Provider) DecideInvestigateTarget(ctx context.Context, view game.PlayerView, candidates []game.PlayerID) (game.PlayerID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.header(view)
	fmt.Fprintln(p.out, "Your reveal token burns a hole in your pocket.")
	p.listCandidates(view, candidates)
	fmt.Fprintln(p.out, p.styles.hint.Render("  or type hold to save it"))
	return ask(ctx, p, "Investigate:", func(line string) (game.PlayerID, error) {
		switch strings.ToLower(line) {
		case "hold", "pass", "keep", "wait":
			return "", nil
		}
		return matchPlayer(line, view, candidates)
	})
}

// Reflect narrates the night's events. Humans carry their suspicions in
// their heads, so no shifts are returned.
func (p *Provider) Reflect(ctx context.Context, view game.PlayerView, events []game.Event) ([]game.SuspicionShift, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(events) == 0 {
		return nil, nil
	}
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, p.styles.title.Render(fmt.Sprintf("Day %d, as it happened:", view.Day)))
	for _, e := range events {
		line := e.Narrative
		if line == "" {
			line = string(e.Type)
		}
		if e.Hidden {
			line = "(only you know) " + line
		}
		fmt.Fprintln(p.out, p.styles.event.Render("  "+line))
	}
	return nil, nil
}

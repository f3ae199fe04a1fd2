// Package bot is the decision orchestrator: it owns the think/act cycle,
// merges candidate actions from the deterministic, probabilistic and
// strategic layers by priority, applies difficulty-driven imperfection and
// dispatches exactly one action per cycle to the host.
package bot

import (
	"hash/maphash"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dmkv/sweepduel/internal/board"
	"github.com/dmkv/sweepduel/internal/pattern"
	"github.com/dmkv/sweepduel/internal/risk"
	"github.com/dmkv/sweepduel/internal/solver"
	"github.com/dmkv/sweepduel/internal/strategy"
)

type State int

const (
	StateIdle State = iota
	StateActive
	StateStopped
)

// Difficulty models imperfect play. With probability 1-Accuracy the bot
// substitutes a near-top candidate for the best one. Delays bound the
// human-like pause between think cycles.
type Difficulty struct {
	Accuracy float64       `json:"accuracy"`
	MinDelay time.Duration `json:"min_delay"`
	MaxDelay time.Duration `json:"max_delay"`
}

func DefaultDifficulty() Difficulty {
	return Difficulty{
		Accuracy: 0.9,
		MinDelay: 300 * time.Millisecond,
		MaxDelay: 1200 * time.Millisecond,
	}
}

type Config struct {
	Difficulty Difficulty
	Risk       risk.Config
	Strategy   strategy.Config
}

func DefaultConfig() Config {
	return Config{
		Difficulty: DefaultDifficulty(),
		Risk:       risk.DefaultConfig(),
		Strategy:   strategy.DefaultConfig(),
	}
}

// Bot runs a single logical thread of execution: one timer-driven think
// cycle at a time, guarded against re-entry. All derived state (ledger,
// classifications, disclosure set, mood) is owned here and rebuilt or
// mutated only inside a cycle.
type Bot struct {
	mu   sync.Mutex
	log  logrus.FieldLogger
	host Host
	rng  *rand.Rand

	difficulty Difficulty
	est        *risk.Estimator
	strat      *strategy.Strategist
	advisor    pattern.Advisor
	ledger     *strategy.Ledger

	state       State
	frozenUntil time.Time
	thinking    bool
	timer       *time.Timer

	disclosed board.Disclosure
	mood      strategy.Mood
	mistakes  int
	startedAt time.Time

	oppScore    int
	oppSampleAt time.Time
	oppVelocity float64

	lastGuess *guessRecord

	onDecision func(Action)
	onGameEnd  func(pattern.GameSummary)
}

type guessRecord struct {
	pos  board.Position
	risk float64
	ctx  pattern.Context
}

// New wires the engine together. A nil advisor disables learning, a nil
// logger falls back to a fresh logrus instance, a nil rng gets a random
// seed.
func New(host Host, advisor pattern.Advisor, cfg Config, log logrus.FieldLogger, rng *rand.Rand) *Bot {
	if advisor == nil {
		advisor = pattern.Noop{}
	}
	if log == nil {
		log = logrus.New()
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(
			new(maphash.Hash).Sum64(),
			new(maphash.Hash).Sum64(),
		))
	}
	if cfg.Difficulty.MaxDelay < cfg.Difficulty.MinDelay {
		cfg.Difficulty.MaxDelay = cfg.Difficulty.MinDelay
	}
	return &Bot{
		log:        log,
		host:       host,
		rng:        rng,
		difficulty: cfg.Difficulty,
		est:        risk.NewEstimator(cfg.Risk, advisor),
		strat:      strategy.NewStrategist(cfg.Strategy),
		advisor:    advisor,
		ledger:     strategy.NewLedger(),
		state:      StateIdle,
		disclosed:  board.Disclosure{},
		mood:       strategy.MoodBalanced,
	}
}

// OnDecision registers a notification hook fired after every dispatched
// action. The hook runs on the bot's thread and must not call back in.
func (b *Bot) OnDecision(fn func(Action)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onDecision = fn
}

// OnGameEnd registers the collaborator receiving the per-game summary.
func (b *Bot) OnGameEnd(fn func(pattern.GameSummary)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onGameEnd = fn
}

func (b *Bot) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Bot) Mood() strategy.Mood {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mood
}

// Start resets all per-game state and schedules the first think cycle.
func (b *Bot) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateActive {
		return
	}
	b.state = StateActive
	b.ledger.Reset()
	b.disclosed = board.Disclosure{}
	b.mood = strategy.MoodBalanced
	b.mistakes = 0
	b.startedAt = time.Now()
	b.oppSampleAt = time.Time{}
	b.oppVelocity = 0
	b.lastGuess = nil
	b.scheduleLocked(b.delay())
}

// Stop cancels any pending cycle and transitions to the terminal state.
// Idempotent; no cycle fires after Stop returns.
func (b *Bot) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateStopped
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

// Freeze suspends acting until now+d. Cycles fired while frozen reschedule
// without touching the board.
func (b *Bot) Freeze(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frozenUntil = time.Now().Add(d)
}

func (b *Bot) SetDifficulty(d Difficulty) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d.Accuracy < 0 {
		d.Accuracy = 0
	} else if d.Accuracy > 1 {
		d.Accuracy = 1
	}
	if d.MaxDelay < d.MinDelay {
		d.MaxDelay = d.MinDelay
	}
	b.difficulty = d
}

// Disclose feeds fairness-exempt revelations (ability results) into the
// engine. Entries persist until the cell is flagged or revealed.
func (b *Bot) Disclose(cells []DisclosedCell) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range cells {
		b.disclosed.Add(c.Pos, c.Mine)
	}
}

// EndGame finalizes the per-game ledger and forwards the summary to the
// feedback collaborator. The bot returns to idle and can be started again.
func (b *Bot) EndGame(won bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateStopped {
		return
	}
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	state := b.host.Competitive()
	sum := pattern.GameSummary{
		Won:           won,
		FinalMood:     string(b.mood),
		Score:         state.MyScore,
		OpponentScore: state.OpponentScore,
		Mistakes:      b.mistakes,
		Duration:      time.Since(b.startedAt),
	}
	b.ledger.RecordOutcome(b.mood, won)
	b.state = StateIdle
	if b.onGameEnd != nil {
		b.onGameEnd(sum)
	}
}

// Ledger exposes the resource ledger for seeding persisted mood tallies.
func (b *Bot) Ledger() *strategy.Ledger { return b.ledger }

func (b *Bot) delay() time.Duration {
	spread := b.difficulty.MaxDelay - b.difficulty.MinDelay
	if spread <= 0 {
		return b.difficulty.MinDelay
	}
	return b.difficulty.MinDelay + time.Duration(b.rng.Int64N(int64(spread)))
}

func (b *Bot) scheduleLocked(d time.Duration) {
	if b.state != StateActive {
		return
	}
	b.timer = time.AfterFunc(d, b.cycle)
}

// cycle is one perceive → analyze → decide → execute → reschedule turn.
// The mutex makes the whole turn atomic with respect to the control
// surface; the thinking flag guards against any re-entrant scheduling.
func (b *Bot) cycle() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateActive {
		return
	}
	if b.thinking {
		b.scheduleLocked(b.delay())
		return
	}
	now := time.Now()
	if now.Before(b.frozenUntil) {
		b.scheduleLocked(b.frozenUntil.Sub(now) + b.delay())
		return
	}

	b.thinking = true
	if act, ok := b.decide(now); ok {
		b.execute(act, now)
	}
	b.thinking = false

	b.scheduleLocked(b.delay())
}

// decide builds the candidate list layer by layer and picks one action.
// Any panic below is contained here and converted into the fallback path:
// a single bad cycle must never take the game down.
func (b *Bot) decide(now time.Time) (act Action, ok bool) {
	var snap *board.Snapshot

	defer func() {
		if r := recover(); r != nil {
			b.log.WithField("panic", r).Error("think cycle panicked, falling back")
			act, ok = b.fallback(snap)
		}
	}()

	var err error
	snap, err = b.host.Snapshot()
	if err != nil || snap == nil {
		b.log.WithError(err).Warn("host snapshot failed, skipping cycle")
		return Action{}, false
	}
	b.disclosed.Prune(snap)

	state := b.host.Competitive()
	b.observeOpponent(state, now)
	b.mood = b.strat.NextMood(state, b.oppVelocity, b.ledger)

	res := solver.Solve(snap, b.disclosed)

	var candidates []Action

	// Disclosed mines outrank everything: flagging them is free certainty.
	for _, p := range sortedDisclosedMines(b.disclosed) {
		candidates = append(candidates, Action{
			Kind: ActionFlag, Pos: p,
			Priority: prioDisclosedFlag,
			Reason:   "disclosed mine",
		})
	}
	for _, p := range res.SortedMines() {
		if b.disclosed[p] {
			continue
		}
		candidates = append(candidates, Action{
			Kind: ActionFlag, Pos: p,
			Priority: prioProvenFlag,
			Reason:   "proven mine",
		})
	}
	for _, origin := range res.Suspicious {
		if p, found := flaggedNeighbor(snap, origin); found {
			candidates = append(candidates, Action{
				Kind: ActionUnflag, Pos: p,
				Priority: prioUnflag,
				Reason:   "over-flagged neighborhood at " + origin.String(),
			})
		}
	}
	safe := res.SortedSafe()
	for _, p := range safe {
		candidates = append(candidates, Action{
			Kind: ActionReveal, Pos: p,
			Priority: prioSafeReveal,
			Reason:   "proven safe",
		})
	}

	// The probabilistic layer only runs when the solver came up empty.
	var (
		tolerance = b.mood.RiskTolerance()
		guess     *risk.Candidate
	)
	if len(candidates) == 0 {
		risks := b.est.Estimate(snap, res, b.disclosed)
		if c, picked := b.est.Pick(snap, risks, tolerance); picked {
			guess = &c
			candidates = append(candidates, Action{
				Kind: ActionReveal, Pos: c.Pos,
				Priority: guessPriority(c.Risk),
				Reason:   "guess",
			})
		}
	}

	// The strategic layer runs every cycle, independent of the others.
	haveSafe := len(safe) > 0
	if cand, found := b.strat.BestCandidate(state, b.mood, b.ledger, haveSafe, now); found {
		boost := 0.0
		if !haveSafe && (guess == nil || guess.Risk > tolerance) {
			boost += 25 // spending a power is the only productive option
		}
		if phase := state.Phase(); phase == strategy.PhaseLate || phase == strategy.PhaseCritical {
			boost += 10
		}
		candidates = append(candidates, Action{
			Kind:     ActionUseAbility,
			Ability:  cand.Ability,
			Priority: abilityPriority(cand.Score, boost),
			Reason:   cand.Reason,
		})
	}

	if len(candidates) == 0 {
		return b.fallback(snap)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority > candidates[j].Priority
	})

	pick := 0
	if len(candidates) > 1 && b.rng.Float64() > b.difficulty.Accuracy {
		pick = 1 + b.rng.IntN(min(2, len(candidates)-1))
	}
	act = candidates[pick]

	b.lastGuess = nil
	if guess != nil && act.Kind == ActionReveal && act.Pos == guess.Pos {
		b.lastGuess = &guessRecord{
			pos:  guess.Pos,
			risk: guess.Risk,
			ctx:  pattern.ContextAt(snap, guess.Pos),
		}
	}
	return act, true
}

// fallback guarantees forward progress when no layer proposed anything:
// corners first, then edges, then any hidden cell.
func (b *Bot) fallback(snap *board.Snapshot) (Action, bool) {
	if snap == nil {
		return Action{}, false
	}
	hidden := snap.Hidden()
	if len(hidden) == 0 {
		return Action{}, false
	}
	pos := hidden[0]
	found := false
	for _, p := range hidden {
		if isCorner(snap, p) {
			pos, found = p, true
			break
		}
	}
	if !found {
		for _, p := range hidden {
			if isEdge(snap, p) {
				pos, found = p, true
				break
			}
		}
	}
	return Action{
		Kind: ActionReveal, Pos: pos,
		Priority: prioFallback,
		Reason:   "fallback",
	}, true
}

func (b *Bot) execute(act Action, now time.Time) {
	outcome, err := b.host.Apply(act)
	if err != nil {
		b.log.WithError(err).WithField("action", act).Warn("host rejected action")
		return
	}
	for _, dc := range outcome.Disclosed {
		b.disclosed.Add(dc.Pos, dc.Mine)
	}
	if act.Kind == ActionUseAbility {
		b.ledger.MarkUsed(act.Ability, now)
	}
	if outcome.HitMine && b.lastGuess != nil && act.Kind == ActionReveal && act.Pos == b.lastGuess.pos {
		// The guess was wrong: remember the surroundings, weighted by how
		// confident the estimate was.
		b.advisor.RecordMistake(b.lastGuess.ctx, 1-b.lastGuess.risk)
		b.mistakes++
	}
	b.log.WithFields(logrus.Fields{
		"action": act.String(),
		"reason": act.Reason,
		"mood":   b.mood,
	}).Debug("dispatched")
	if b.onDecision != nil {
		b.onDecision(act)
	}
}

// observeOpponent derives the opponent's scoring velocity (points per
// second, lightly smoothed) from successive competitive states.
func (b *Bot) observeOpponent(state strategy.Competitive, now time.Time) {
	if !b.oppSampleAt.IsZero() {
		if dt := now.Sub(b.oppSampleAt).Seconds(); dt > 0 {
			instant := float64(state.OpponentScore-b.oppScore) / dt
			b.oppVelocity = 0.5*b.oppVelocity + 0.5*instant
		}
	}
	b.oppScore = state.OpponentScore
	b.oppSampleAt = now
}

func sortedDisclosedMines(d board.Disclosure) []board.Position {
	var out []board.Position
	for p, mine := range d {
		if mine {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

func flaggedNeighbor(snap *board.Snapshot, origin board.Position) (board.Position, bool) {
	for _, n := range snap.Neighbors(origin) {
		if snap.At(n).Flagged {
			return n, true
		}
	}
	return board.Position{}, false
}

func isCorner(snap *board.Snapshot, p board.Position) bool {
	return (p.X == 0 || p.X == snap.Width-1) && (p.Y == 0 || p.Y == snap.Height-1)
}

func isEdge(snap *board.Snapshot, p board.Position) bool {
	return p.X == 0 || p.X == snap.Width-1 || p.Y == 0 || p.Y == snap.Height-1
}

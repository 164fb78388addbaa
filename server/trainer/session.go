package trainer

import (
	"fmt"

	"bj-trainer/server/engine"
	"bj-trainer/server/judge"
)

type Phase string

const (
	Betting    Phase = "betting"
	Dealing    Phase = "dealing"
	PlayerTurn Phase = "player_turn"
	DealerTurn Phase = "dealer_turn"
	Settled    Phase = "settled"
)

// Command is anything a player can ask the table to do.
type Command string

const (
	Deal      Command = "deal"
	Hit       Command = Command(engine.Hit)
	Stand     Command = Command(engine.Stand)
	Double    Command = Command(engine.Double)
	Split     Command = Command(engine.Split)
	Surrender Command = Command(engine.Surrender)
	NewHand   Command = "new-hand"
)

func ParseCommand(s string) (Command, error) {
	switch c := Command(s); c {
	case Deal, Hit, Stand, Double, Split, Surrender, NewHand:
		return c, nil
	}
	return "", fmt.Errorf("unknown command %q", s)
}

func (c Command) playerAction() (engine.Action, bool) {
	switch c {
	case Hit, Stand, Double, Split, Surrender:
		return engine.Action(c), true
	}
	return "", false
}

const dealerStandsOn = 17

// Rules configures a session's shoe.
type Rules struct {
	Decks    int   `json:"decks"`
	ReshoeAt int   `json:"reshoe_at"`
	Seed     int64 `json:"-"`
}

func DefaultRules() Rules { return Rules{Decks: 6, ReshoeAt: engine.DeckSize} }

func (r Rules) validate() error {
	if r.Decks <= 0 {
		return fmt.Errorf("decks must be > 0")
	}
	if r.ReshoeAt < 4 || r.ReshoeAt > r.Decks*engine.DeckSize {
		return fmt.Errorf("reshoe threshold %d out of range", r.ReshoeAt)
	}
	return nil
}

type Outcome string

const (
	Pending     Outcome = ""
	Win         Outcome = "win"
	Lose        Outcome = "lose"
	Push        Outcome = "push"
	Bust        Outcome = "bust"
	Natural     Outcome = "blackjack"
	Surrendered Outcome = "surrender"
)

type PlayerHand struct {
	Cards   []engine.Card
	Stake   float64
	Doubled bool
	Outcome Outcome
	Net     float64
}

func (h *PlayerHand) Value() int { return engine.Value(h.Cards) }

// SplitState exists only while a split is in progress. Hands 0 and 1 of the
// session are the two siblings.
type SplitState struct {
	Active   int
	Complete [2]bool
}

// Session is one player's table: shoe, count, hands and phase. It is not
// safe for concurrent use; Service serialises access.
type Session struct {
	rules Rules
	shoe  *engine.Shoe
	count engine.Counter

	phase        Phase
	round        int
	dealer       []engine.Card
	holeRevealed bool
	hands        []*PlayerHand
	split        *SplitState
	reshuffled   bool

	advice       []judge.Choice
	adviceSet    bool
	lastGrade    *judge.Grade
	lastDecision *Decision
	stats        Stats
}

// Decision is one graded player action and the state it was taken in.
type Decision struct {
	Round       int            `json:"round"`
	Hand        int            `json:"hand"`
	PlayerTotal int            `json:"player_total"`
	DealerUp    int            `json:"dealer_up"`
	TrueCount   float64        `json:"true_count"`
	Grade       judge.Grade    `json:"grade"`
	Advice      []judge.Choice `json:"advice"`
}

// RoundSummary describes a settled round.
type RoundSummary struct {
	Round        int             `json:"round"`
	Player       [][]engine.Card `json:"player"`
	Dealer       []engine.Card   `json:"dealer"`
	Outcomes     []Outcome       `json:"outcomes"`
	Net          float64         `json:"net"`
	RunningCount int             `json:"running_count"`
	TrueCount    float64         `json:"true_count"`
}

func NewSession(rules Rules) (*Session, error) {
	if err := rules.validate(); err != nil {
		return nil, err
	}
	s := &Session{
		rules: rules,
		shoe:  engine.NewShoe(rules.Decks, rules.Seed),
		count: engine.NewCounter(rules.Decks),
		phase: Betting,
	}
	return s, nil
}

func (s *Session) Phase() Phase           { return s.phase }
func (s *Session) Round() int             { return s.round }
func (s *Session) Counts() engine.Counter { return s.count }
func (s *Session) Stats() Stats           { return s.stats }
func (s *Session) Shoe() *engine.Shoe     { return s.shoe }

// Apply runs one command to completion. Player actions are graded against
// the advice for the state they were taken in.
func (s *Session) Apply(cmd Command) (Phase, error) {
	s.lastDecision = nil
	act, isAction := cmd.playerAction()
	var (
		ranked []judge.Choice
		before Decision
	)
	if isAction && s.phase == PlayerTurn {
		ranked = s.RankedActions()
		before = Decision{
			Round:       s.round,
			Hand:        s.activeIndex(),
			PlayerTotal: s.HandValue(),
			DealerUp:    s.dealer[0].Value(),
			TrueCount:   s.count.True,
			Advice:      ranked,
		}
	}

	var err error
	switch cmd {
	case Deal:
		err = s.Deal()
	case Hit:
		err = s.Hit()
	case Stand:
		err = s.Stand()
	case Double:
		err = s.Double()
	case Split:
		err = s.Split()
	case Surrender:
		err = s.Surrender()
	case NewHand:
		err = s.NewHand()
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		return s.phase, err
	}

	if isAction {
		if g, ok := judge.GradeChoice(act, ranked); ok {
			s.lastGrade = &g
			s.stats.addDecision(g)
			before.Grade = g
			s.lastDecision = &before
		}
	}
	return s.phase, nil
}

// Deal starts a round, or reshoes instead when the shoe is below the
// threshold. Cards go player, dealer, player, dealer; the hole card is not
// counted until it is turned over.
func (s *Session) Deal() error {
	if s.phase != Betting {
		return ErrWrongPhase
	}
	s.touch()
	s.reshuffled = false
	if s.shoe.NeedsReshoe(s.rules.ReshoeAt) {
		s.shoe.Initialize()
		s.count.Reset(s.rules.Decks)
		s.reshuffled = true
		return nil
	}

	s.phase = Dealing
	var dealt [4]engine.Card
	for i := range dealt {
		c, ok := s.shoe.Draw()
		if !ok {
			s.phase = Betting
			return ErrEmptyShoe
		}
		dealt[i] = c
	}
	s.round++
	s.hands = []*PlayerHand{{Cards: []engine.Card{dealt[0], dealt[2]}, Stake: 1}}
	s.dealer = []engine.Card{dealt[1], dealt[3]}
	s.holeRevealed = false
	s.split = nil
	s.lastGrade = nil
	s.count.Observe(s.shoe.Remaining(), dealt[0], dealt[1], dealt[2])
	s.phase = PlayerTurn
	return nil
}

// Drill fixes the next cards to be dealt (player, dealer, player, dealer,
// then any draws) so a chosen situation can be practised. A shoe due for a
// reshoe is refilled first.
func (s *Session) Drill(ranks ...engine.Rank) error {
	if s.phase != Betting {
		return ErrWrongPhase
	}
	if s.shoe.NeedsReshoe(s.rules.ReshoeAt + len(ranks)) {
		s.shoe.Initialize()
		s.count.Reset(s.rules.Decks)
		s.reshuffled = true
	}
	s.touch()
	return s.shoe.Rig(ranks...)
}

func (s *Session) Hit() error {
	if s.phase != PlayerTurn {
		return ErrWrongPhase
	}
	h := s.active()
	c, ok := s.shoe.Draw()
	if !ok {
		return ErrEmptyShoe
	}
	s.touch()
	h.Cards = append(h.Cards, c)
	s.count.Observe(s.shoe.Remaining(), c)
	if engine.IsBust(h.Cards) {
		s.finishHand()
	}
	return nil
}

func (s *Session) Stand() error {
	if s.phase != PlayerTurn {
		return ErrWrongPhase
	}
	s.touch()
	s.finishHand()
	return nil
}

// Double takes exactly one card at twice the stake, then stands.
func (s *Session) Double() error {
	if s.phase != PlayerTurn {
		return ErrWrongPhase
	}
	if !s.Shape().Allowed(engine.Double) {
		return notAllowed(Double, "only on the first two cards of an unsplit hand below 21")
	}
	h := s.active()
	c, ok := s.shoe.Draw()
	if !ok {
		return ErrEmptyShoe
	}
	s.touch()
	h.Cards = append(h.Cards, c)
	h.Stake *= 2
	h.Doubled = true
	s.count.Observe(s.shoe.Remaining(), c)
	s.finishHand()
	return nil
}

// Split turns a two-card pair into two hands of one card each plus a new
// card, and plays the first one.
func (s *Session) Split() error {
	if s.phase != PlayerTurn {
		return ErrWrongPhase
	}
	if !s.Shape().Allowed(engine.Split) {
		return notAllowed(Split, "needs two cards of equal value and no earlier split")
	}
	if s.shoe.Remaining() < 2 {
		return ErrEmptyShoe
	}
	s.touch()
	first, second := s.hands[0].Cards[0], s.hands[0].Cards[1]
	n1, _ := s.shoe.Draw()
	n2, _ := s.shoe.Draw()
	s.hands = []*PlayerHand{
		{Cards: []engine.Card{first, n1}, Stake: 1},
		{Cards: []engine.Card{second, n2}, Stake: 1},
	}
	s.split = &SplitState{}
	s.count.Observe(s.shoe.Remaining(), n1, n2)
	return nil
}

// Surrender gives up half the stake and ends the round.
func (s *Session) Surrender() error {
	if s.phase != PlayerTurn {
		return ErrWrongPhase
	}
	if !s.Shape().Allowed(engine.Surrender) {
		return notAllowed(Surrender, "only as the first decision")
	}
	s.touch()
	s.active().Outcome = Surrendered
	s.settle()
	return nil
}

// NewHand clears the table. Shoe and count carry over.
func (s *Session) NewHand() error {
	if s.phase != Settled {
		return ErrWrongPhase
	}
	s.touch()
	s.hands = nil
	s.dealer = nil
	s.split = nil
	s.holeRevealed = false
	s.phase = Betting
	return nil
}

// finishHand closes the active hand and moves to the sibling, the dealer or
// straight to settlement when nothing is left to beat.
func (s *Session) finishHand() {
	if s.split != nil && s.split.Active == 0 {
		s.split.Complete[0] = true
		s.split.Active = 1
		return
	}
	if s.split != nil {
		s.split.Complete[1] = true
	}
	for _, h := range s.hands {
		if !engine.IsBust(h.Cards) {
			s.dealerTurn()
			return
		}
	}
	s.settle()
}

func (s *Session) dealerTurn() {
	s.phase = DealerTurn
	s.reveal()
	for engine.Value(s.dealer) < dealerStandsOn {
		c, ok := s.shoe.Draw()
		if !ok {
			break
		}
		s.dealer = append(s.dealer, c)
		s.count.Observe(s.shoe.Remaining(), c)
	}
	s.settle()
}

func (s *Session) reveal() {
	if s.holeRevealed || len(s.dealer) < 2 {
		return
	}
	s.holeRevealed = true
	s.count.Observe(s.shoe.Remaining(), s.dealer[1])
}

func (s *Session) settle() {
	s.reveal()
	dealerValue := engine.Value(s.dealer)
	dealerNatural := engine.IsNatural(s.dealer)
	var net float64
	for _, h := range s.hands {
		settleHand(h, dealerValue, dealerNatural, s.split != nil)
		net += h.Net
	}
	s.stats.addRound(s.hands, net)
	s.phase = Settled
}

func settleHand(h *PlayerHand, dealerValue int, dealerNatural, split bool) {
	pv := h.Value()
	natural := !split && engine.IsNatural(h.Cards)
	switch {
	case h.Outcome == Surrendered:
		h.Net = judge.SurrenderEV * h.Stake
		return
	case pv > engine.Blackjack:
		h.Outcome = Bust
	case natural && !dealerNatural:
		h.Outcome = Natural
	case dealerNatural && !natural:
		h.Outcome = Lose
	case dealerValue > engine.Blackjack || pv > dealerValue:
		h.Outcome = Win
	case pv < dealerValue:
		h.Outcome = Lose
	default:
		h.Outcome = Push
	}
	switch h.Outcome {
	case Win:
		h.Net = h.Stake
	case Natural:
		h.Net = 1.5 * h.Stake
	case Lose, Bust:
		h.Net = -h.Stake
	default:
		h.Net = 0
	}
}

func (s *Session) active() *PlayerHand {
	if s.split != nil {
		return s.hands[s.split.Active]
	}
	return s.hands[0]
}

// touch drops cached advice after any state change.
func (s *Session) touch() {
	s.advice = nil
	s.adviceSet = false
}

// LastDecision is the decision graded by the most recent Apply, if any.
func (s *Session) LastDecision() *Decision { return s.lastDecision }

// Summary describes the current (normally settled) round.
func (s *Session) Summary() RoundSummary {
	sum := RoundSummary{
		Round:        s.round,
		Dealer:       append([]engine.Card(nil), s.dealer...),
		RunningCount: s.count.Running,
		TrueCount:    s.count.True,
	}
	for _, h := range s.hands {
		sum.Player = append(sum.Player, append([]engine.Card(nil), h.Cards...))
		sum.Outcomes = append(sum.Outcomes, h.Outcome)
		sum.Net += h.Net
	}
	return sum
}

// HandValue is the value of the hand being played (0 between rounds).
func (s *Session) HandValue() int {
	if len(s.hands) == 0 {
		return 0
	}
	return s.active().Value()
}

// Composition is what the player can know about the shoe: the cards left
// plus the dealer's face-down card.
func (s *Session) Composition() engine.Composition {
	comp := s.shoe.Counts()
	if !s.holeRevealed && len(s.dealer) > 1 {
		comp = comp.With(s.dealer[1].Rank)
	}
	return comp
}

// BustProbability is the chance the next card busts the active hand, taken
// over the visible composition.
func (s *Session) BustProbability() float64 {
	if s.phase != PlayerTurn {
		return 0
	}
	return engine.BustProbability(s.HandValue(), s.Composition())
}

// Shape describes the active hand for the advisor.
func (s *Session) Shape() judge.HandShape {
	if len(s.hands) == 0 {
		return judge.HandShape{}
	}
	cards := s.active().Cards
	shape := judge.HandShape{Total: engine.Value(cards), Cards: len(cards), Split: s.split != nil}
	if engine.IsPair(cards) {
		shape.PairValue = cards[0].Value()
	}
	return shape
}

// RankedActions is the advice for the current decision, best EV first. It
// is empty outside the player's turn.
func (s *Session) RankedActions() []judge.Choice {
	if s.phase != PlayerTurn {
		return nil
	}
	if !s.adviceSet {
		a := judge.NewAdvisor(s.Composition())
		s.advice = a.Rank(s.Shape(), s.dealer[0].Value())
		s.adviceSet = true
	}
	return s.advice
}

// Legal lists the commands accepted in the current state.
func (s *Session) Legal() []Command {
	switch s.phase {
	case Betting:
		return []Command{Deal}
	case Settled:
		return []Command{NewHand}
	case PlayerTurn:
		shape := s.Shape()
		out := []Command{Hit, Stand}
		for _, act := range []engine.Action{engine.Double, engine.Split, engine.Surrender} {
			if shape.Allowed(act) {
				out = append(out, Command(act))
			}
		}
		return out
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog/log"

	"bj-trainer/server/engine"
	"bj-trainer/server/judge"
	"bj-trainer/server/trainer"
)

// simulate plays rounds hands, always taking the advisor's top action.
func simulate(ctx context.Context, rules trainer.Rules, rounds int, progress func()) (trainer.Stats, map[engine.Action]int, error) {
	s, err := trainer.NewSession(rules)
	if err != nil {
		return trainer.Stats{}, nil, err
	}
	actions := make(map[engine.Action]int)
	for s.Stats().Rounds < rounds {
		if err := ctx.Err(); err != nil {
			return s.Stats(), actions, err
		}
		if _, err := s.Apply(trainer.Deal); err != nil {
			return s.Stats(), actions, err
		}
		if s.Phase() == trainer.Betting {
			log.Debug().Int("round", s.Round()).Msg("reshoe")
			continue
		}
		for s.Phase() == trainer.PlayerTurn {
			ranked := s.RankedActions()
			if len(ranked) == 0 {
				return s.Stats(), actions, fmt.Errorf("no advice at round %d", s.Round())
			}
			act := ranked[0].Action
			actions[act]++
			if _, err := s.Apply(trainer.Command(act)); err != nil {
				return s.Stats(), actions, fmt.Errorf("round %d: %w", s.Round(), err)
			}
		}
		if _, err := s.Apply(trainer.NewHand); err != nil {
			return s.Stats(), actions, err
		}
		if progress != nil {
			progress()
		}
	}
	return s.Stats(), actions, nil
}

func runSim(ctx context.Context, rules trainer.Rules, rounds int, w io.Writer) error {
	pterm.Info.Printfln("Simulating %d rounds on %d decks (reshoe below %d cards)", rounds, rules.Decks, rules.ReshoeAt)
	bar, _ := pterm.DefaultProgressbar.WithTotal(rounds).WithTitle("Playing").Start()
	start := time.Now()
	st, actions, err := simulate(ctx, rules, rounds, func() { bar.Increment() })
	_, _ = bar.Stop()
	if err != nil && st.Rounds == 0 {
		return err
	}
	if err != nil {
		pterm.Warning.Printfln("stopped early: %v", err)
	}

	var check [2]float64
	check[0], check[1] = judge.NewAdvisor(engine.FullComposition(rules.Decks)).CrossCheck(16, 10, 20000, rules.Seed)
	out, rerr := renderSim(reportFor(st), actions, check)
	if rerr != nil {
		return rerr
	}
	fmt.Fprintln(w, out)
	pterm.Success.Printfln("%d rounds in %s", st.Rounds, time.Since(start).Round(time.Millisecond))
	return nil
}

// check is the exact and sampled StandEV of 16 against a 10 on a full shoe.
func renderSim(r Report, actions map[engine.Action]int, check [2]float64) (string, error) {
	results := pterm.TableData{
		{"Rounds", "Hands", "Wins", "Losses", "Pushes", "Blackjacks", "Surrenders", "Net units"},
		{
			fmt.Sprint(r.Rounds), fmt.Sprint(r.Hands), fmt.Sprint(r.Wins), fmt.Sprint(r.Losses),
			fmt.Sprint(r.Pushes), fmt.Sprint(r.Blackjacks), fmt.Sprint(r.Surrenders), fmt.Sprintf("%+.1f", r.Net),
		},
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(results).Srender()
	if err != nil {
		return "", err
	}

	mix := pterm.TableData{{"Action", "Taken"}}
	for _, a := range []engine.Action{engine.Stand, engine.Hit, engine.Double, engine.Split, engine.Surrender} {
		mix = append(mix, []string{string(a), fmt.Sprint(actions[a])})
	}
	mixTable, err := pterm.DefaultTable.WithHasHeader().WithData(mix).Srender()
	if err != nil {
		return "", err
	}

	ci := pterm.Sprintfln("Win rate CI95: [%.3f, %.3f]", r.WinRateCI[0], r.WinRateCI[1]) +
		pterm.Sprintfln("Net per round: %+.4f  CI95: [%+.4f, %+.4f]", r.NetPerRound, r.NetCI[0], r.NetCI[1]) +
		pterm.Sprintfln("Model check, stand 16 v 10: exact %+.4f  sampled %+.4f", check[0], check[1])
	box := pterm.DefaultBox.WithTitle("Advisor self-play").WithTitleTopCenter().WithLeftPadding(2).WithRightPadding(2).Sprint(table + "\n\n" + mixTable + "\n\n" + ci)
	return box, nil
}

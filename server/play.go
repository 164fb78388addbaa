package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/pterm/pterm"

	"bj-trainer/server/engine"
	"bj-trainer/server/judge"
	"bj-trainer/server/trainer"
)

const quitOption = "quit"

// runPlay is the terminal trainer: one local session driven from a menu.
func runPlay(ctx context.Context, rules trainer.Rules) error {
	s, err := trainer.NewSession(rules)
	if err != nil {
		return err
	}
	pterm.DefaultHeader.WithFullWidth().Println("Blackjack Trainer")
	pterm.Info.Printfln("%d decks, reshoe below %d cards. Advice is graded after every decision.", rules.Decks, rules.ReshoeAt)

	for ctx.Err() == nil {
		v := s.View("local")
		printTable(v)

		options := make([]string, 0, len(v.Legal)+1)
		for _, c := range v.Legal {
			options = append(options, string(c))
		}
		options = append(options, quitOption)
		choice, err := pterm.DefaultInteractiveSelect.WithDefaultText("Your move").WithOptions(options).Show()
		if err != nil {
			return err
		}
		if choice == quitOption {
			break
		}

		if _, err := s.Apply(trainer.Command(choice)); err != nil {
			pterm.Error.Println(err)
			continue
		}
		if d := s.LastDecision(); d != nil {
			printGrade(d.Grade)
		}
		if s.View("local").Reshuffled {
			pterm.Info.Println("Shoe reshuffled, count reset.")
		}
	}

	r := reportFor(s.Stats())
	pterm.Println()
	pterm.Info.Printfln("Rounds %d  net %+.1f units  accuracy %.1f%%  EV lost %.3f",
		r.Rounds, r.Net, 100*r.Accuracy, r.EVLost)
	return nil
}

func cardsString(cs []engine.Card) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		if c.Suit == engine.Hearts || c.Suit == engine.Diamonds {
			parts[i] = pterm.LightRed(c.String())
		} else {
			parts[i] = c.String()
		}
	}
	return strings.Join(parts, " ")
}

func printTable(v trainer.View) {
	pbox := pterm.DefaultBox.WithLeftPadding(4).WithRightPadding(4).WithTopPadding(1).WithBottomPadding(1)

	dealer := cardsString(v.Dealer)
	if v.HoleHidden {
		dealer += " ??"
	}
	var table strings.Builder
	if len(v.Dealer) > 0 {
		table.WriteString(pterm.Sprintfln("Dealer: %s (%d)", dealer, v.DealerValue))
	}
	for i, h := range v.Hands {
		marker := "  "
		if h.Active {
			marker = pterm.LightYellow("▶ ")
		}
		line := fmt.Sprintf("%sHand %d: %s (%d)", marker, i+1, cardsString(h.Cards), h.Value)
		if h.Outcome != trainer.Pending {
			line += fmt.Sprintf("  %s %+.1f", strings.ToUpper(string(h.Outcome)), h.Net)
		}
		table.WriteString(line + "\n")
	}
	if table.Len() == 0 {
		table.WriteString("Waiting for the deal\n")
	}
	tablePanel := pterm.Panel{Data: pbox.WithTitle(pterm.LightGreen("|TABLE|")).WithTitleTopCenter().Sprint(table.String())}

	var adv strings.Builder
	for i, c := range v.Advice {
		line := fmt.Sprintf("%-10s %+.3f", c.Action, c.EV)
		if i == 0 {
			line = pterm.LightGreen(line)
		}
		adv.WriteString(line + "\n")
	}
	adv.WriteString(pterm.Sprintfln("Bust on hit: %.1f%%", 100*v.BustProbability))
	adv.WriteString(pterm.Sprintfln("Running %d  True %.2f  Shoe %d", v.Count.Running, v.Count.True, v.ShoeRemaining))
	advPanel := pterm.Panel{Data: pbox.WithTitle(pterm.LightCyan("|ADVICE|")).WithTitleTopCenter().Sprint(adv.String())}

	_ = pterm.DefaultPanel.WithPanels([][]pterm.Panel{{tablePanel, advPanel}}).Render()
}

func printGrade(g judge.Grade) {
	if g.IsTop {
		pterm.Success.Printfln("%s was a top choice (EV %+.3f)", g.Chosen, g.EVChosen)
		return
	}
	pterm.Warning.Printfln("%s cost %.3f units; best was %s (EV %+.3f)", g.Chosen, g.Gap, g.Best, g.EVBest)
}

package main

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dmkv/sweepduel/internal/bot"
	"github.com/dmkv/sweepduel/internal/duel"
	"github.com/dmkv/sweepduel/internal/pattern"
	"github.com/dmkv/sweepduel/internal/strategy"
)

// runSimulation plays bot-vs-bot games headlessly. It exercises the whole
// engine (and feeds the feedback store) without a network in sight, which
// makes it the quickest way to eyeball decision quality after a change.
func runSimulation(
	ctx context.Context, store pattern.Store, advisor *pattern.Memory,
	games int, seed uint64,
) {
	r := rand.New(rand.NewPCG(seed, seed+1))
	wins := [2]int{}

	var moods map[string]pattern.MoodRecord
	if store != nil {
		var err error
		if moods, err = store.MoodRecords(ctx); err != nil {
			log.Warn("unable to load mood records: ", err)
		}
	}

	for n := range games {
		if ctx.Err() != nil {
			break
		}

		params := config.Duel.Params()
		// Short matches keep long simulation runs bearable.
		if params.Duration > 30*time.Second {
			params.Duration = 30 * time.Second
		}
		game, err := duel.NewGame(params, r)
		if err != nil {
			log.Fatal("new game: ", err)
		}

		cfg := bot.DefaultConfig()
		cfg.Difficulty.MinDelay = 5 * time.Millisecond
		cfg.Difficulty.MaxDelay = 20 * time.Millisecond

		bots := [2]*bot.Bot{}
		for seat := range bots {
			bots[seat] = bot.New(
				game.Seat(seat), advisor, cfg,
				log.WithField("seat", seat),
				rand.New(rand.NewPCG(seed+uint64(n*2+seat), 99)),
			)
			for mood, rec := range moods {
				bots[seat].Ledger().SeedOutcomes(strategy.Mood(mood), rec.Games, rec.Wins)
			}
			bots[seat].OnGameEnd(func(sum pattern.GameSummary) {
				if store == nil {
					return
				}
				if err := store.RecordGame(ctx, sum); err != nil {
					log.Warn("unable to record game summary: ", err)
				}
			})
			bots[seat].Start()
		}

		for !game.Over() {
			select {
			case <-ctx.Done():
			case <-time.After(50 * time.Millisecond):
			}
			if ctx.Err() != nil {
				break
			}
		}

		winner := game.Winner()
		for seat := range bots {
			bots[seat].EndGame(winner == seat)
			bots[seat].Stop()
		}
		if winner >= 0 {
			wins[winner]++
		}

		s0, s1 := game.Scores()
		log.WithFields(logrus.Fields{
			"game": n, "score0": s0, "score1": s1, "winner": winner,
		}).Info("game finished")

		if store != nil {
			if err := store.SaveBiases(ctx, advisor.Biases()); err != nil {
				log.Warn("unable to save pattern biases: ", err)
			}
		}
	}

	log.Infof("simulation done: %d games, seat 0 won %d, seat 1 won %d",
		games, wins[0], wins[1])
}

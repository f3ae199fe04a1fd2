package main

import (
	"context"
	"encoding/json"
	"hash/maphash"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/schema"
	"github.com/gorilla/websocket"

	"github.com/dmkv/sweepduel/internal/board"
	"github.com/dmkv/sweepduel/internal/bot"
	"github.com/dmkv/sweepduel/internal/duel"
	"github.com/dmkv/sweepduel/internal/pattern"
	"github.com/dmkv/sweepduel/internal/strategy"
)

var (
	dec = schema.NewDecoder()
	rnd = rand.New(rand.NewPCG(
		new(maphash.Hash).Sum64(),
		new(maphash.Hash).Sum64(),
	))
)

func init() {
	dec.IgnoreUnknownKeys(true)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		log.Debug("\tws origin: ", r.Host)
		return true
	},
}

type app struct {
	advisor *pattern.Memory
	store   pattern.Store
}

// DuelParams optionally override the configured board and opponent.
type DuelParams struct {
	Width     int     `schema:"width"`
	Height    int     `schema:"height"`
	MineCount int     `schema:"mine_count"`
	Accuracy  float64 `schema:"accuracy"`
}

// clientMove is what the human player sends: a cell operation.
type clientMove struct {
	Op string `json:"op"` // reveal | flag | unflag
	X  int    `json:"x"`
	Y  int    `json:"y"`
}

// wsSession serializes writes: the bot's decision hook and the read loop
// both push status frames.
type wsSession struct {
	mu   sync.Mutex
	conn *websocket.Conn
	game *duel.Game
}

func (s *wsSession) pushStatus() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.WriteJSON(s.game.Status()); err != nil {
		log.Debug("ws write: ", err)
	}
}

// handleConnectWs runs one human-vs-bot duel over a websocket. The human
// plays seat 0, the bot seat 1.
func (a *app) handleConnectWs(w http.ResponseWriter, r *http.Request) {
	params := config.Duel.Params()
	var override DuelParams
	if err := dec.Decode(&override, r.URL.Query()); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if override.Width > 0 {
		params.Width = override.Width
	}
	if override.Height > 0 {
		params.Height = override.Height
	}
	if override.MineCount > 0 {
		params.MineCount = override.MineCount
	}

	game, err := duel.NewGame(params, rnd)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		log.Error("new game: ", err)
		return
	}

	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("upgrade: ", err)
		return
	}
	defer c.Close()

	session := &wsSession{conn: c, game: game}

	difficulty := bot.Difficulty{
		Accuracy: config.Bot.Accuracy,
		MinDelay: config.Bot.MinDelay.Duration,
		MaxDelay: config.Bot.MaxDelay.Duration,
	}
	if override.Accuracy > 0 {
		difficulty.Accuracy = override.Accuracy
	}
	cfg := bot.DefaultConfig()
	cfg.Difficulty = difficulty

	opponent := bot.New(game.Seat(1), a.advisor, cfg, log, nil)
	a.seedMoodTallies(r.Context(), opponent)
	opponent.OnDecision(func(act bot.Action) {
		session.pushStatus()
	})
	opponent.OnGameEnd(func(sum pattern.GameSummary) {
		a.persistSummary(r.Context(), sum)
	})
	opponent.Start()
	defer opponent.Stop()

	session.pushStatus()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Warn("read: ", err)
			}
			break
		}
		var move clientMove
		if err := json.Unmarshal(message, &move); err != nil {
			log.Debug("bad client move: ", err)
			continue
		}
		pos := board.Position{X: move.X, Y: move.Y}
		switch move.Op {
		case "reveal":
			_, _, err = game.Reveal(0, pos)
		case "flag":
			err = game.Flag(0, pos, true)
		case "unflag":
			err = game.Flag(0, pos, false)
		default:
			log.Debug("unknown op: ", move.Op)
			continue
		}
		if err != nil {
			log.Debug("move rejected: ", err)
		}
		session.pushStatus()
		if game.Over() {
			opponent.EndGame(game.Winner() == 1)
			session.pushStatus()
			break
		}
	}
}

// seedMoodTallies primes the bot's ledger with persisted per-mood win
// rates, so the statistically-best-mood override works from the first game
// of a fresh process.
func (a *app) seedMoodTallies(ctx context.Context, b *bot.Bot) {
	if a.store == nil {
		return
	}
	records, err := a.store.MoodRecords(ctx)
	if err != nil {
		log.Warn("unable to load mood records: ", err)
		return
	}
	for mood, rec := range records {
		b.Ledger().SeedOutcomes(strategy.Mood(mood), rec.Games, rec.Wins)
	}
}

// persistSummary forwards a finished game to the feedback store, along
// with the current learned-pattern table.
func (a *app) persistSummary(ctx context.Context, sum pattern.GameSummary) {
	if a.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := a.store.RecordGame(ctx, sum); err != nil {
		log.Warn("unable to record game summary: ", err)
	}
	if err := a.store.SaveBiases(ctx, a.advisor.Biases()); err != nil {
		log.Warn("unable to save pattern biases: ", err)
	}
}

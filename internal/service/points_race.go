package service

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/AdamBeresnev/bracket-mesh/internal/bracket"
)

const (
	DefaultPlayersPerGame = 4
	DefaultGamesPerPlayer = 5
)

func normalizeRaceConfig(cfg bracket.RaceConfig) bracket.RaceConfig {
	if cfg.PlayersPerGame < 2 {
		cfg.PlayersPerGame = DefaultPlayersPerGame
	}
	if cfg.GamesPerPlayer < 1 {
		cfg.GamesPerPlayer = DefaultGamesPerPlayer
	}
	if !cfg.PointsTable.Sequential && len(cfg.PointsTable.Values) == 0 {
		cfg.PointsTable = bracket.DefaultPointsTable
	}
	return cfg
}

// GeneratePointsRace schedules ceil(n·gamesPerPlayer/playersPerGame) games.
//
// Each game is filled greedily: the next entrant is the one with the fewest
// games so far, then the fewest prior pairings with those already in the game.
// Remaining ties go to a shuffled order.
func GeneratePointsRace(entrants []bracket.Entrant, cfg bracket.RaceConfig, opts Options) (*bracket.Tournament, error) {
	n := len(entrants)
	if n < 2 {
		return nil, fmt.Errorf("points race with %d entrants: %w", n, bracket.ErrInvalidEntrantCount)
	}
	cfg = normalizeRaceConfig(cfg)

	total := (n*cfg.GamesPerPlayer + cfg.PlayersPerGame - 1) / cfg.PlayersPerGame
	gameSize := min(cfg.PlayersPerGame, n)
	rng := opts.rand()

	assigned := make(map[string]int, n)
	pairings := make(map[[2]string]int)
	pairKey := func(a, b string) [2]string {
		if a > b {
			a, b = b, a
		}
		return [2]string{a, b}
	}

	race := &bracket.PointsRace{
		Config:     cfg,
		TotalGames: total,
		Games:      make(map[string]*bracket.Game, total),
		Standings:  make(map[string]*bracket.Standing, n),
	}

	for g := 0; g < total; g++ {
		order := slices.Clone(entrants)
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		game := make([]string, 0, gameSize)
		for len(game) < gameSize {
			best, bestGames, bestPairs := "", 0, 0
			for _, e := range order {
				if slices.Contains(game, e.ID) {
					continue
				}
				pairs := 0
				for _, other := range game {
					pairs += pairings[pairKey(e.ID, other)]
				}
				if best == "" || assigned[e.ID] < bestGames || assigned[e.ID] == bestGames && pairs < bestPairs {
					best, bestGames, bestPairs = e.ID, assigned[e.ID], pairs
				}
			}
			game = append(game, best)
		}

		for i, a := range game {
			assigned[a]++
			for _, b := range game[i+1:] {
				pairings[pairKey(a, b)]++
			}
		}

		id := fmt.Sprintf("g%d", g+1)
		race.Games[id] = &bracket.Game{ID: id, Index: g, Participants: game}
		race.Schedule = append(race.Schedule, id)
	}

	for _, e := range entrants {
		race.Standings[e.ID] = &bracket.Standing{ParticipantID: e.ID, Name: e.Name, History: []bracket.GameRecord{}}
	}

	return &bracket.Tournament{
		ID:        opts.id(),
		Format:    bracket.PointsRaceFormat,
		CreatedAt: opts.createdAt(),
		Entrants:  slices.Clone(entrants),
		Race:      race,
	}, nil
}

type GameResult struct {
	GameID string
	// Finishing positions, 1-based. Points are filled in from the points table.
	Results    []bracket.Finish
	ReportedBy string
	Clock      bracket.Clock
	VerifiedBy string
}

func RecordGameResult(t *bracket.Tournament, res GameResult) error {
	if t.Race == nil {
		return fmt.Errorf("record game %s in %s tournament: %w", res.GameID, t.Format, bracket.ErrUnsupportedFormat)
	}
	game, ok := t.Race.Games[res.GameID]
	if !ok {
		return fmt.Errorf("record game %s: %w", res.GameID, bracket.ErrGameNotFound)
	}
	for _, f := range res.Results {
		if !game.Has(f.ParticipantID) {
			return fmt.Errorf("record game %s, participant %s: %w", res.GameID, f.ParticipantID, bracket.ErrParticipantNotInGame)
		}
	}

	results := make([]bracket.Finish, len(res.Results))
	for i, f := range res.Results {
		f.Points = t.Race.Config.PointsTable.Points(f.Position, len(game.Participants))
		results[i] = f
	}
	slices.SortStableFunc(results, func(a, b bracket.Finish) int { return cmp.Compare(a.Position, b.Position) })

	corrected := game.Complete()
	game.Results = results
	game.ReportedBy = res.ReportedBy
	game.Clock = res.Clock
	game.VerifiedBy = res.VerifiedBy

	if corrected {
		RebuildStandings(t)
		return nil
	}
	applyGame(t.Race, game)
	return nil
}

func applyGame(race *bracket.PointsRace, game *bracket.Game) {
	for _, f := range game.Results {
		s, ok := race.Standings[f.ParticipantID]
		if !ok {
			s = &bracket.Standing{ParticipantID: f.ParticipantID, Name: f.ParticipantID}
			race.Standings[f.ParticipantID] = s
		}
		s.Points += f.Points
		s.GamesCompleted++
		if f.Position == 1 {
			s.Wins++
		}
		s.History = append(s.History, bracket.GameRecord{GameID: game.ID, Position: f.Position, Points: f.Points})
	}
}

// RebuildStandings recomputes every standing from the completed games in
// schedule order, so corrections and merged results never double count.
func RebuildStandings(t *bracket.Tournament) {
	race := t.Race
	if race == nil {
		return
	}
	for _, s := range race.Standings {
		s.Points, s.GamesCompleted, s.Wins = 0, 0, 0
		s.History = []bracket.GameRecord{}
	}
	for _, id := range race.Schedule {
		if g, ok := race.Games[id]; ok && g.Complete() {
			applyGame(race, g)
		}
	}
}

// RaceStandings sorts by points, then wins, then games completed.
func RaceStandings(t *bracket.Tournament) []bracket.Placement {
	race := t.Race
	if race == nil {
		return nil
	}

	rows := make([]*bracket.Standing, 0, len(race.Standings))
	for _, e := range t.Entrants {
		if s, ok := race.Standings[e.ID]; ok {
			rows = append(rows, s)
		}
	}
	slices.SortStableFunc(rows, func(a, b *bracket.Standing) int {
		return cmp.Or(
			cmp.Compare(b.Points, a.Points),
			cmp.Compare(b.Wins, a.Wins),
			cmp.Compare(b.GamesCompleted, a.GamesCompleted),
		)
	})

	placements := make([]bracket.Placement, len(rows))
	for i, s := range rows {
		placements[i] = bracket.Placement{
			Place:     i + 1,
			EntrantID: s.ParticipantID,
			Name:      s.Name,
			Points:    s.Points,
			Wins:      s.Wins,
		}
	}
	return placements
}

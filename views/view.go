package views

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/AdamBeresnev/bracket-mesh/internal/bracket"
	"github.com/a-h/templ"
)

func Render(w http.ResponseWriter, r *http.Request, component templ.Component) error {
	return component.Render(r.Context(), w)
}

// BracketPage is the read-only view of a room: the bracket for elimination
// formats and the standings table for every format.
func BracketPage(meta bracket.Meta, t *bracket.Tournament, standings []bracket.Placement) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.printf(`<!DOCTYPE html><html><head><meta charset="utf-8"><title>%s</title></head><body>`, esc(meta.Name))
		p.printf(`<main class="room" data-room="%s" data-peer="%s">`, esc(meta.ID), esc(GetPeerID(ctx)))
		p.printf(`<h1>%s</h1><p class="status">%s &middot; %s</p>`, esc(meta.Name), esc(string(meta.Type)), esc(string(meta.Status)))

		if t == nil {
			p.printf(`<p>Waiting in the lobby.</p>`)
		} else if t.Elimination != nil {
			data := PrepareBracketData(t)
			p.section("winners", "", data.WBRoundNums, data.WBRounds, data, true)
			p.section("losers", "Losers", data.LBRoundNums, data.LBRounds, data, false)
			p.section("grand-finals", "Grand Finals", data.FinalRoundNums, data.FinalRounds, data, false)
		} else if t.Race != nil {
			p.printf(`<p class="progress">%d / %d games played</p>`, t.Race.GamesComplete(), t.Race.TotalGames)
		}

		p.standings(standings)
		p.printf(`</main></body></html>`)
		return p.err
	})
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func esc(s string) string {
	return templ.EscapeString(s)
}

func (p *printer) section(class, title string, rounds []int, matches map[int][]*bracket.Match, data BracketData, winners bool) {
	if len(rounds) == 0 {
		return
	}
	p.printf(`<section class="%s">`, class)
	for _, r := range rounds {
		name := roundTitle(title, r)
		if winners {
			name = data.WinnersRoundName(r)
		}
		p.printf(`<div class="round"><h2>%s</h2>`, esc(name))
		for _, m := range matches[r] {
			p.printf(`<div class="match" id="%s">`, esc(m.ID))
			for slot := range 2 {
				class := "slot"
				if id := m.Participants[slot]; id != "" && id == m.WinnerID {
					class += " winner"
				}
				p.printf(`<div class="%s"><span>%s</span><span class="score">%s</span></div>`,
					class, esc(data.SlotName(m, slot)), formatScore(m.Scores[slot]))
			}
			p.printf(`</div>`)
		}
		p.printf(`</div>`)
	}
	p.printf(`</section>`)
}

func (p *printer) standings(placements []bracket.Placement) {
	if len(placements) == 0 {
		return
	}
	p.printf(`<table class="standings"><thead><tr><th>#</th><th>Name</th><th>Points</th><th>Wins</th></tr></thead><tbody>`)
	for _, pl := range placements {
		p.printf(`<tr><td>%d</td><td>%s</td><td>%s</td><td>%d</td></tr>`, pl.Place, esc(pl.Name), formatScore(pl.Points), pl.Wins)
	}
	p.printf(`</tbody></table>`)
}

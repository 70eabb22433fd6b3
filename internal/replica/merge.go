package replica

import (
	"bytes"
	"encoding/json"
	"reflect"

	"github.com/AdamBeresnev/bracket-mesh/internal/bracket"
	"github.com/AdamBeresnev/bracket-mesh/internal/service"
)

// MergeResult counts what a merge changed locally.
type MergeResult struct {
	MetaAdopted         bool `json:"metaAdopted"`
	TournamentReplaced  bool `json:"tournamentReplaced"`
	MatchesAdopted      int  `json:"matchesAdopted"`
	MatchesRejected     int  `json:"matchesRejected"`
	GamesAdopted        int  `json:"gamesAdopted"`
	GamesRejected       int  `json:"gamesRejected"`
	ParticipantsAdded   int  `json:"participantsAdded"`
	ParticipantsUpdated int  `json:"participantsUpdated"`
	ParticipantsRemoved int  `json:"participantsRemoved"`
	HistoryAdded        int  `json:"historyAdded"`
}

func (r MergeResult) Changed() bool {
	return r.MetaAdopted || r.TournamentReplaced || r.MatchesAdopted > 0 || r.GamesAdopted > 0 ||
		r.ParticipantsAdded > 0 || r.ParticipantsUpdated > 0 || r.ParticipantsRemoved > 0 || r.HistoryAdded > 0
}

// Merge folds a remote snapshot into the replica. fromAuthority must only be
// true when the snapshot comes from the room admin.
//
// A remote meta version above the local one starts a new epoch: meta,
// tournament and team assignments are taken wholesale. Within the same epoch
// matches and games are merged one by one under ShouldAdopt and the bracket is
// reconciled afterwards. A remote snapshot from an older epoch contributes no
// matches or games at all, whatever their clocks, unless it comes from the
// authority, which starts a new epoch of its own. The roster and history only
// ever grow, except for explicit removals.
func (s *Store) Merge(remote Snapshot, fromAuthority bool) MergeResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res MergeResult
	localVersion := s.meta.Version
	remoteVersion := remote.Meta.Version
	newEpoch := remoteVersion > localVersion || fromAuthority && remoteVersion != localVersion

	if remote.Meta.ID != "" && (newEpoch || fromAuthority && remote.Meta != s.meta) {
		s.meta = remote.Meta
		res.MetaAdopted = true
	}

	switch {
	case newEpoch:
		s.tournament = remote.Tournament.Decode()
		s.teamAssignments = fromPairs(remote.TeamAssignments)
		res.TournamentReplaced = true
	case remoteVersion == localVersion:
		s.mergeTournament(remote.Tournament.Decode(), fromAuthority, &res)
		for _, p := range remote.TeamAssignments {
			s.teamAssignments[p.Key] = p.Value
		}
	}

	s.mergeParticipants(remote, &res)
	s.mergeHistory(remote.History, &res)
	s.syncAssignments()
	s.settleStatus()

	if res.Changed() {
		s.logger.Debug("merged remote snapshot",
			"room", s.meta.ID,
			"authority", fromAuthority,
			"version", s.meta.Version,
			"metaAdopted", res.MetaAdopted,
			"tournamentReplaced", res.TournamentReplaced,
			"matchesAdopted", res.MatchesAdopted,
			"matchesRejected", res.MatchesRejected,
			"gamesAdopted", res.GamesAdopted,
			"participantsAdded", res.ParticipantsAdded,
		)
	}
	s.observer.ObserveMerge(s.meta.ID, res)
	return res
}

// decidedOverCleared is true when both copies carry the same report clock
// but only the remote still holds the result. Reconcile clears results whose
// entrants moved and keeps the clock, so the cleared copy must give way;
// Reconcile clears the adopted copy again if it does not fit locally.
func decidedOverCleared(remote, local *bracket.Match) bool {
	rv, rt := remote.Resolve()
	lv, lt := local.Resolve()
	return rv == lv && rt == lt && remote.HasWinner() && !local.HasWinner()
}

// preferTournament breaks a tie between two different tournaments started in
// the same epoch: the later one wins, then the greater id.
func preferTournament(incoming, existing *bracket.Tournament) bool {
	if incoming.CreatedAt != existing.CreatedAt {
		return incoming.CreatedAt > existing.CreatedAt
	}
	return incoming.ID > existing.ID
}

func (s *Store) mergeTournament(remote *bracket.Tournament, fromAuthority bool, res *MergeResult) {
	if remote == nil {
		return
	}
	local := s.tournament
	if local == nil || local.ID != remote.ID {
		if local == nil || fromAuthority || preferTournament(remote, local) {
			s.tournament = remote
			res.TournamentReplaced = true
		}
		return
	}

	if local.Matches == nil && len(remote.Matches) > 0 {
		local.Matches = make(map[string]*bracket.Match, len(remote.Matches))
	}
	// tentative holds local copies replaced only by decidedOverCleared.
	tentative := make(map[string]*bracket.Match)
	for id, rm := range remote.Matches {
		lm, ok := local.Matches[id]
		if !ok {
			local.Matches[id] = rm
			res.MatchesAdopted++
			continue
		}
		// Only reported matches carry a clock; the rest is derived and
		// rebuilt by Reconcile.
		if rm.Version == nil && rm.ReportedAt == nil {
			continue
		}
		adopt := ShouldAdopt(rm.Clock, lm.Clock, fromAuthority)
		if !adopt && decidedOverCleared(rm, lm) {
			tentative[id] = lm.Clone()
			adopt = true
		}
		if !adopt {
			if !reflect.DeepEqual(rm, lm) {
				res.MatchesRejected++
			}
			continue
		}
		if !reflect.DeepEqual(rm, lm) {
			local.Matches[id] = rm
			res.MatchesAdopted++
		}
	}

	if local.Race != nil && remote.Race != nil {
		for id, rg := range remote.Race.Games {
			lg, ok := local.Race.Games[id]
			if !ok {
				local.Race.Games[id] = rg
				local.Race.Schedule = appendMissing(local.Race.Schedule, id)
				res.GamesAdopted++
				continue
			}
			if rg.Version == nil && rg.ReportedAt == nil {
				continue
			}
			if !ShouldAdopt(rg.Clock, lg.Clock, fromAuthority) {
				if !reflect.DeepEqual(rg, lg) {
					res.GamesRejected++
				}
				continue
			}
			if !reflect.DeepEqual(rg, lg) {
				local.Race.Games[id] = rg
				res.GamesAdopted++
			}
		}
	}

	service.Reconcile(local)
	for id, before := range tentative {
		if reflect.DeepEqual(local.Matches[id], before) {
			res.MatchesAdopted--
		}
	}
}

func appendMissing(ids []string, id string) []string {
	for _, x := range ids {
		if x == id {
			return ids
		}
	}
	return append(ids, id)
}

func (s *Store) mergeParticipants(remote Snapshot, res *MergeResult) {
	for _, p := range remote.Removed {
		if p.Value > s.removed[p.Key] {
			s.removed[p.Key] = p.Value
		}
	}

	for _, pair := range remote.Participants {
		rp := pair.Value.Clone()
		if removedAt, ok := s.removed[rp.ID]; ok && rp.LastWrite() <= removedAt {
			continue
		}
		lp, ok := s.participants[rp.ID]
		switch {
		case !ok:
			s.participants[rp.ID] = rp
			res.ParticipantsAdded++
		case rp.LastWrite() > lp.LastWrite(),
			rp.LastWrite() == lp.LastWrite() && profileAfter(rp, lp):
			s.participants[rp.ID] = rp
			res.ParticipantsUpdated++
		}
	}

	for id, removedAt := range s.removed {
		if p, ok := s.participants[id]; ok && p.LastWrite() <= removedAt {
			delete(s.participants, id)
			delete(s.teamAssignments, id)
			res.ParticipantsRemoved++
		}
	}
}

// profileAfter orders two profiles written at the same time by their
// encoding, so every replica keeps the same one.
func profileAfter(a, b bracket.Participant) bool {
	ea, _ := json.Marshal(a)
	eb, _ := json.Marshal(b)
	return bytes.Compare(ea, eb) > 0
}

func (s *Store) mergeHistory(remote []bracket.HistoryEntry, res *MergeResult) {
	seen := make(map[string]bool, len(s.history))
	for _, h := range s.history {
		seen[h.ID] = true
	}
	for _, h := range remote {
		if seen[h.ID] {
			continue
		}
		seen[h.ID] = true
		s.history = append(s.history, h)
		res.HistoryAdded++
	}
	sortHistory(s.history)
}

// syncAssignments makes the assignment of every known participant follow the
// team id on its profile, which is ordered by the profile's write time.
func (s *Store) syncAssignments() {
	for id, p := range s.participants {
		if p.TeamID != nil {
			s.teamAssignments[id] = *p.TeamID
		} else {
			delete(s.teamAssignments, id)
		}
	}
}

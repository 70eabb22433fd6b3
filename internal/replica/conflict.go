package replica

import "github.com/AdamBeresnev/bracket-mesh/internal/bracket"

// ShouldAdopt decides whether an incoming fact replaces the one held locally.
// The authority always wins. Otherwise the higher version wins, then the later
// report time; on a full tie the existing fact stays.
func ShouldAdopt(incoming, existing bracket.Clock, reporterIsAuthority bool) bool {
	if reporterIsAuthority {
		return true
	}
	iv, ir := incoming.Resolve()
	ev, er := existing.Resolve()
	if iv != ev {
		return iv > ev
	}
	return ir > er
}

package replica

import (
	"testing"

	"github.com/AdamBeresnev/bracket-mesh/internal/bracket"
	"github.com/AdamBeresnev/bracket-mesh/internal/utils"
	"github.com/stretchr/testify/assert"
)

func TestShouldAdopt(t *testing.T) {
	at := func(version, reportedAt int64) bracket.Clock {
		return bracket.Clock{Version: utils.Ptr(version), ReportedAt: utils.Ptr(reportedAt)}
	}

	testCases := []struct {
		name      string
		incoming  bracket.Clock
		existing  bracket.Clock
		authority bool
		want      bool
	}{
		{name: "higher version, older timestamp", incoming: at(2, 1), existing: at(1, 500), want: true},
		{name: "lower version, newer timestamp", incoming: at(1, 500), existing: at(2, 1), want: false},
		{name: "equal version, later timestamp", incoming: at(3, 20), existing: at(3, 10), want: true},
		{name: "equal version, earlier timestamp", incoming: at(3, 5), existing: at(3, 10), want: false},
		{name: "full tie keeps existing", incoming: at(3, 10), existing: at(3, 10), want: false},
		{name: "both absent", want: false},
		{name: "absent version counts as zero", incoming: bracket.Clock{ReportedAt: utils.Ptr[int64](10)}, existing: at(0, 5), want: true},
		{name: "explicit zero timestamp loses", incoming: at(1, 0), existing: bracket.Clock{Version: utils.Ptr[int64](1)}, want: false},
		{name: "any version beats absent", incoming: at(1, 0), existing: bracket.Clock{}, want: true},
		{name: "authority over newer", incoming: at(0, 0), existing: at(9, 9), authority: true, want: true},
		{name: "authority with no clock", incoming: bracket.Clock{}, existing: at(9, 9), authority: true, want: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ShouldAdopt(tc.incoming, tc.existing, tc.authority))
		})
	}
}

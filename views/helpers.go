package views

import (
	"context"
	"fmt"
	"strconv"

	"github.com/AdamBeresnev/bracket-mesh/internal/middleware"
)

func GetPeerID(ctx context.Context) string {
	id, _ := middleware.GetPeerIDFromContext(ctx)
	return id
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func roundTitle(prefix string, round int) string {
	return fmt.Sprintf("%s Round %d", prefix, round)
}

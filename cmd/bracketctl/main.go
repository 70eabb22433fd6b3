package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/AdamBeresnev/bracket-mesh/internal/bracket"
	"github.com/AdamBeresnev/bracket-mesh/internal/db"
	"github.com/AdamBeresnev/bracket-mesh/internal/replica"
	"github.com/AdamBeresnev/bracket-mesh/internal/store"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "bracketctl",
		Usage: "inspect and merge tournament snapshots offline",
		Commands: []*cli.Command{
			mergeCommand(),
			standingsCommand(),
			getCommand(),
			pruneCommand(),
		},
	}
}

func readSnapshot(path string) (*replica.Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	snap, err := replica.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return replica.FromSnapshot(snap), nil
}

func mergeCommand() *cli.Command {
	return &cli.Command{
		Name:      "merge",
		Usage:     "merge a remote snapshot into a local one",
		ArgsUsage: "<local> <remote>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "authority", Usage: "treat the remote snapshot as the admin's"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write the merged snapshot here instead of stdout"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return errors.New("merge needs a local and a remote snapshot")
			}
			local, err := readSnapshot(c.Args().Get(0))
			if err != nil {
				return err
			}
			remote, err := readSnapshot(c.Args().Get(1))
			if err != nil {
				return err
			}

			res := local.Merge(remote.Snapshot(), c.Bool("authority"))
			fmt.Fprintf(c.App.ErrWriter, "tournament replaced: %t, matches adopted: %d, games adopted: %d, participants added: %d, history added: %d\n",
				res.TournamentReplaced, res.MatchesAdopted, res.GamesAdopted, res.ParticipantsAdded, res.HistoryAdded)

			data, err := local.Serialize()
			if err != nil {
				return err
			}
			if out := c.String("out"); out != "" {
				return os.WriteFile(out, data, 0o644)
			}
			_, err = c.App.Writer.Write(append(data, '\n'))
			return err
		},
	}
}

func standingsCommand() *cli.Command {
	return &cli.Command{
		Name:      "standings",
		Usage:     "print the standings of a snapshot",
		ArgsUsage: "<snapshot>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("standings needs a snapshot file")
			}
			room, err := readSnapshot(c.Args().First())
			if err != nil {
				return err
			}
			return printStandings(c.App.Writer, room.Standings())
		},
	}
}

func printStandings(w io.Writer, standings []bracket.Placement) error {
	if len(standings) == 0 {
		_, err := fmt.Fprintln(w, "no standings yet")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PLACE\tNAME\tPOINTS\tWINS")
	for _, p := range standings {
		fmt.Fprintf(tw, "%d\t%s\t%g\t%d\n", p.Place, p.Name, p.Points, p.Wins)
	}
	return tw.Flush()
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "read a value from a snapshot, e.g. meta.name",
		ArgsUsage: "<snapshot> <path>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return errors.New("get needs a snapshot file and a path")
			}
			room, err := readSnapshot(c.Args().Get(0))
			if err != nil {
				return err
			}
			v, err := room.Get(c.Args().Get(1))
			if err != nil {
				return err
			}
			if !v.Exists() {
				return fmt.Errorf("%s: not found", c.Args().Get(1))
			}
			fmt.Fprintln(c.App.Writer, v.String())
			return nil
		},
	}
}

func pruneCommand() *cli.Command {
	return &cli.Command{
		Name:  "prune",
		Usage: "delete rooms that have not been saved within the retention window",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db", Value: "bracket_mesh.db", Usage: "path to the node database"},
			&cli.DurationFlag{Name: "retention", Value: store.DefaultRetention},
		},
		Action: func(c *cli.Context) error {
			conn, err := db.Open(c.String("db"))
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := db.RunMigrations(conn.DB); err != nil {
				return err
			}

			retention := c.Duration("retention")
			n, err := store.NewSnapshotStore(conn).PruneExpired(c.Context, retention)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "pruned %d rooms older than %s\n", n, retention.Round(time.Minute))
			return nil
		},
	}
}

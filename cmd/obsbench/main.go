// Command obsbench measures propagation latency through width*height grids
// of derived observers, the same shape the teacher's own cmd/benchmark used
// to compare its six signal variants against each other. Here there is only
// one engine, timed at the single worker-pool size given by --workers; the
// benchmark sweeps widths and heights, not worker-pool sizes.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/delaneyj/reactograph/manager"
	"github.com/delaneyj/reactograph/observer"
	"github.com/delaneyj/reactograph/snapshot"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"
)

const (
	widthsKey  = "widths"
	heightsKey = "heights"
	itersKey   = "iters"
	workersKey = "workers"
)

func main() {
	cmd := &cli.Command{
		Name:  "obsbench",
		Usage: "Benchmark reactograph propagation latency",
		Flags: []cli.Flag{
			&cli.IntSliceFlag{
				Name:  widthsKey,
				Usage: "Fan-out widths to sweep",
				Value: []int64{1, 10, 100},
			},
			&cli.IntSliceFlag{
				Name:  heightsKey,
				Usage: "Chain depths to sweep",
				Value: []int64{1, 10, 100},
			},
			&cli.UintFlag{
				Name:  itersKey,
				Usage: "Samples per (width, height) cell",
				Value: 100,
			},
			&cli.UintFlag{
				Name:  workersKey,
				Usage: "Manager worker-pool size (0 = GOMAXPROCS)",
				Value: 0,
			},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	if workers := cmd.Uint(workersKey); workers > 0 {
		manager.ResetForTesting(int(workers))
	}

	widths := cmd.IntSlice(widthsKey)
	heights := cmd.IntSlice(heightsKey)
	iters := int(cmd.Uint(itersKey))

	start := time.Now()
	log.Printf("obsbench started")
	defer func() {
		log.Printf("obsbench finished in %v", time.Since(start))
	}()

	tbl := table.NewWriter()
	tbl.SetTitle("Propagation Latency")
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"width x height", "avg", "min", "p75", "p99", "max"})

	for _, w := range widths {
		for _, h := range heights {
			tach := tachymeter.New(&tachymeter.Config{Size: iters})

			src := observer.NewSourceDefault[int]()
			for i := 0; i < int(w); i++ {
				tip := src.Observer()
				for j := 0; j < int(h); j++ {
					prev := tip
					next, err := observer.MakeObserver(func() int {
						return prev.Get() + 1
					})
					if err != nil {
						log.Panic(err)
					}
					tip = next
				}
				tip.AddCallback(func(_ *snapshot.Snapshot[int]) {})
			}

			for i := 0; i < iters; i++ {
				t0 := time.Now()
				src.Set(i + 1)
				observer.WaitForAllUpdates()
				tach.AddTime(time.Since(t0))
			}

			calc := tach.Calc()
			tbl.AppendRow(table.Row{
				fmt.Sprintf("%d x %d", w, h),
				calc.Time.Avg, calc.Time.Min, calc.Time.P75, calc.Time.P99, calc.Time.Max,
			})
		}
	}

	tbl.Render()
	return nil
}

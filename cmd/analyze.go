package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	log "github.com/sirupsen/logrus"

	"github.com/jordy-ruiz/pathfinder/absint"
	"github.com/jordy-ruiz/pathfinder/cfg"
	"github.com/jordy-ruiz/pathfinder/config"
	"github.com/jordy-ruiz/pathfinder/oracle"
	"github.com/jordy-ruiz/pathfinder/postproc"
	"github.com/jordy-ruiz/pathfinder/transfer"
	"github.com/jordy-ruiz/pathfinder/worklist"
)

// noInitialData is the DFAState used when --use-initial-data is off, or
// when no real binary memory image is available: every address is
// unknown.
type noInitialData struct{}

func (noInitialData) InitialValue(addr int32) (int32, bool) { return 0, false }

var analyzeCmd = &cobra.Command{
	Use:   "analyze [flags] cfg.json",
	Short: "Explore a control-flow graph fixture and report infeasible paths.",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) < 1 {
			fmt.Println(cmd.UsageString())
			os.Exit(1)
		}
		if GetFlag(cmd, "verbose") {
			log.SetLevel(log.DebugLevel)
		}
		runAnalyze(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	f := analyzeCmd.Flags()
	f.Bool("use-initial-data", false, "fall back to the DFA's known initial memory image on an unresolved load")
	f.Bool("sp-critical", false, "abort the run, rather than warn, when merged states disagree about the stack pointer")
	f.Bool("clean-tops", false, "accepted but has no effect: Top-valued locals are always carried")
	f.Bool("assume-identical-sp", false, "assume all merge operands agree on SP without checking")
	f.Bool("no-widening", false, "disable loop-header widening (may not terminate on growing loops)")
	f.Bool("unminimized-paths", false, "skip minimal-unsat-subset extraction, report each infeasible state's whole path")
	f.Bool("dry-run", false, "skip the SMT solver entirely; report no infeasible paths")
	f.Int("clamp-predicate-size", 0, "keep at most this many predicates per state, dropping the oldest first (0 = unlimited)")
	f.Int("state-size-limit", 0, "cap states merged per confluence point (0 = unlimited)")
	f.Uint("nb-cores", 1, "number of parallel SMT solver workers")
	f.Bool("show-progress", false, "render a solver-progress status line on a terminal")
	f.Bool("post-processing", true, "shorten and deduplicate reported infeasible paths")
	f.Int("sp-register", 0, "platform register index used as the stack pointer")
	f.Int("num-regs", 8, "platform register count")
	f.Int("num-temps", 4, "platform temp count")
}

func runAnalyze(cmd *cobra.Command, fixturePath string) {
	flags := config.Default()
	flags.UseInitialData = GetFlag(cmd, "use-initial-data")
	flags.SPCritical = GetFlag(cmd, "sp-critical")
	flags.CleanTops = GetFlag(cmd, "clean-tops")
	flags.AssumeIdenticalSP = GetFlag(cmd, "assume-identical-sp")
	flags.NoWidening = GetFlag(cmd, "no-widening")
	flags.UnminimizedPaths = GetFlag(cmd, "unminimized-paths")
	flags.DryRun = GetFlag(cmd, "dry-run")
	flags.ClampPredicateSize = GetInt(cmd, "clamp-predicate-size")
	flags.StateSizeLimit = GetInt(cmd, "state-size-limit")
	flags.NbCores = int(GetUint(cmd, "nb-cores"))
	flags.ShowProgress = GetFlag(cmd, "show-progress")
	flags.PostProcessing = GetFlag(cmd, "post-processing")

	platform := cfg.Platform{
		SPRegister: GetInt(cmd, "sp-register"),
		NumRegs:    GetInt(cmd, "num-regs"),
		NumTemps:   GetInt(cmd, "num-temps"),
	}

	g, err := cfg.LoadFixture(fixturePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	actx := absint.NewContext(platform, noInitialData{}, flags.AbsintFlags())

	var jobs []oracle.Job
	driver := &worklist.Driver{
		Table: transfer.NewTable(),
		OracleHook: func(ctx *absint.Context, edge cfg.EdgeID, s absint.State) {
			jobs = append(jobs, oracle.Job{Edge: edge, State: s})
		},
	}
	driver.Run(actx, g)

	var infeasible []absint.Path
	if flags.DryRun {
		log.Debug("dry run: skipping the SMT solver, no infeasible paths will be reported")
	} else {
		pool := &oracle.Pool{
			NewBackend: func() oracle.Backend { return oracle.NewZ3Backend() },
			Workers:    flags.NbCores,
		}
		if flags.ShowProgress {
			pool.Progress = progressReporter("checking")
		}

		verdicts, err := pool.CheckBatch(context.Background(), actx, jobs)
		if err != nil {
			fmt.Fprintln(os.Stderr, "solver batch failed:", err)
			os.Exit(1)
		}

		infeasible = oracle.ValidateAndProject(actx, jobs, verdicts)
	}

	if flags.PostProcessing {
		var dom cfg.GlobalDominance // no concrete dominance implementation is wired; Shorten only normalizes
		for i := range infeasible {
			infeasible[i] = postproc.Shorten(infeasible[i], dom)
		}
		kept, dropped := postproc.Dedup(infeasible)
		infeasible = kept
		if dropped > 0 {
			log.WithField("dropped", dropped).Debug("collapsed duplicate infeasible paths")
		}
	}

	fmt.Printf("%d infeasible path(s) found, %d unminimizable, %d dropped (counterexample)\n",
		actx.Stats.InfeasibleFound, actx.Stats.Unminimizable, actx.Stats.PathsDropped)
	for i, p := range infeasible {
		fmt.Printf("  [%d] edges=%v\n", i, p.Edges())
	}
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gomotif/adapters/battery"
	"gomotif/adapters/detect"
	"gomotif/adapters/excel"
	"gomotif/app"
	"gomotif/domain/core"
	"gomotif/domain/motif"
	"gomotif/domain/nullmodel"
	"gomotif/domain/power"
	"gomotif/domain/run"
	"gomotif/domain/sensitivity"
	"gomotif/domain/signal"
	"gomotif/domain/stability"
	"gomotif/internal/config"
	"gomotif/internal/injection"
	"gomotif/internal/jitter"
	"gomotif/internal/significance"
	"gomotif/internal/testkit"
	"gomotif/ports"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gomotif-cli",
		Short: "gomotif CLI for validating motif candidates without a server",
	}

	rootCmd.AddCommand(
		newValidateCmd(),
		newSweepCmd(),
		newPowerCmd(),
		newStabilityCmd(),
		newExportCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// engineFlags are the run parameters shared by every command.
type engineFlags struct {
	seed      int64
	b         int
	alpha     float64
	mode      string
	threshold int
	minRegion int
	workers   int
}

func (f *engineFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.seed, "seed", 42, "Random seed for deterministic operations")
	cmd.Flags().IntVar(&f.b, "b", 500, "Null samples per candidate")
	cmd.Flags().Float64Var(&f.alpha, "alpha", 0.05, "Selection level")
	cmd.Flags().StringVar(&f.mode, "mode", "permutation", "Null randomization mode: permutation|surrogate")
	cmd.Flags().IntVar(&f.threshold, "threshold", 90, "Detector threshold percentile")
	cmd.Flags().IntVar(&f.minRegion, "min-region-len", 30, "Minimum region length for null sampling")
	cmd.Flags().IntVar(&f.workers, "workers", 4, "Parallel null sampling workers")
}

func (f *engineFlags) runConfig() (run.Config, error) {
	mode, err := nullmodel.ParseMode(f.mode)
	if err != nil {
		return run.Config{}, err
	}

	cfg := run.DefaultConfig(f.seed)
	cfg.B = f.b
	cfg.Alpha = f.alpha
	cfg.Mode = mode
	cfg.ThresholdPercentile = f.threshold
	cfg.MinRegionLen = f.minRegion
	cfg.Workers = f.workers
	if err := cfg.Validate(); err != nil {
		return run.Config{}, err
	}
	return cfg, nil
}

func newValidateCmd() *cobra.Command {
	var flags engineFlags
	var candidatesFile string

	cmd := &cobra.Command{
		Use:   "validate [signal-file]",
		Short: "Run the full validation pipeline on a signal",
		Long: `Run detection, null sampling, significance evaluation, power estimation
and stability analysis on a signal, printing the manifest and every
evaluated candidate.

The signal file holds one sample per line; blank lines and # comments are
skipped. Without a file a synthetic demo signal with planted motifs is used.

Example: gomotif-cli validate signal.txt --seed 12345 --b 1000 --alpha 0.01`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context(), args, flags, candidatesFile)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&candidatesFile, "candidates", "", "XLSX/CSV candidate list; skips detection and validates these instead")

	return cmd
}

func newSweepCmd() *cobra.Command {
	var flags engineFlags
	var settings []int
	var sweepFile string
	var exportPath string

	cmd := &cobra.Command{
		Use:   "sweep [signal-file]",
		Short: "Run a threshold sensitivity sweep on a signal",
		Long: `Run one full validation per detector threshold setting and aggregate the
selections into a cross table.

Settings come from --settings or from a YAML sweep file; the file also
carries shared run parameter overrides and wins over the flags.

Example: gomotif-cli sweep signal.txt --settings 85,90,95 --export sweep.xlsx`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweepCommand(cmd.Context(), args, flags, settings, sweepFile, exportPath)
		},
	}

	flags.register(cmd)
	cmd.Flags().IntSliceVar(&settings, "settings", []int{85, 90, 95}, "Threshold percentiles to sweep")
	cmd.Flags().StringVar(&sweepFile, "file", "", "YAML sweep description; overrides --settings")
	cmd.Flags().StringVar(&exportPath, "export", "", "Write the sensitivity table to this XLSX file")

	return cmd
}

func newPowerCmd() *cobra.Command {
	var flags engineFlags
	var sizes []int
	var sigmas []float64
	var trials int

	cmd := &cobra.Command{
		Use:   "power [signal-file]",
		Short: "Estimate detection power by motif injection",
		Long: `Estimate the detection rate for each (size, amplitude) grid cell by
injecting synthetic motifs into matched backgrounds and running detection
on every trial.

Example: gomotif-cli power signal.txt --sizes 8,16,32 --sigmas 0.5,1.0,2.0 --trials 20`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPower(cmd.Context(), args, flags, sizes, sigmas, trials)
		},
	}

	flags.register(cmd)
	cmd.Flags().IntSliceVar(&sizes, "sizes", []int{8, 16, 32}, "Injected motif sizes")
	cmd.Flags().Float64SliceVar(&sigmas, "sigmas", []float64{0.5, 1.0, 2.0}, "Injected motif amplitudes")
	cmd.Flags().IntVar(&trials, "trials", 20, "Trials per grid cell")

	return cmd
}

func newStabilityCmd() *cobra.Command {
	var flags engineFlags
	var k int
	var jitterScale float64

	cmd := &cobra.Command{
		Use:   "stability [signal-file]",
		Short: "Analyze selection stability under signal jitter",
		Long: `Run the baseline detection and evaluation, then rerun the pipeline K
times on jittered copies of the signal and report selection overlap, rank
concordance and per-label selection frequency.

Example: gomotif-cli stability signal.txt --k 5 --jitter-scale 0.05`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStability(cmd.Context(), args, flags, k, jitterScale)
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVar(&k, "k", 5, "Number of jitter reruns")
	cmd.Flags().Float64Var(&jitterScale, "jitter-scale", 0.05, "Jitter noise scale relative to signal sigma")

	return cmd
}

func newExportCmd() *cobra.Command {
	var flags engineFlags
	var candidatesFile string
	var out string

	cmd := &cobra.Command{
		Use:   "export [signal-file]",
		Short: "Run a validation and write the adjudication workbook",
		Long: `Run the full validation pipeline and write the manual review template:
selected candidates with their evidence plus blank decision columns.

Example: gomotif-cli export signal.txt --out adjudication.xlsx`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), args, flags, candidatesFile, out)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&candidatesFile, "candidates", "", "XLSX/CSV candidate list; skips detection and validates these instead")
	cmd.Flags().StringVar(&out, "out", "adjudication.xlsx", "Output workbook path")

	return cmd
}

func runValidate(ctx context.Context, args []string, flags engineFlags, candidatesFile string) error {
	result, err := executeRun(ctx, args, flags, candidatesFile)
	if err != nil {
		return err
	}

	printRunResult(result)
	return nil
}

// executeRun is the shared verification path behind validate and export.
func executeRun(ctx context.Context, args []string, flags engineFlags, candidatesFile string) (*app.RunResult, error) {
	sig, err := resolveSignal(args, flags.seed)
	if err != nil {
		return nil, err
	}

	cfg, err := flags.runConfig()
	if err != nil {
		return nil, err
	}

	fmt.Printf("Validating signal %s (%d samples) with B=%d alpha=%g...\n",
		sig.Key, sig.Len(), cfg.B, cfg.Alpha)

	// Initialize test kit (in production, this would use real adapters)
	kit, err := testkit.NewTestKit()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize test kit: %w", err)
	}

	detector, err := resolveDetector(ctx, kit, candidatesFile)
	if err != nil {
		return nil, err
	}

	rngPort := kit.RNGAdapter()
	svc := app.NewRunService(
		detector,
		battery.NewNullBattery(rngPort),
		rngPort,
		kit.LedgerAdapter(),
		kit.RunRepository(),
		nil,
	)

	result, err := svc.Execute(ctx, app.RunRequest{Signal: sig, Config: cfg})
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return result, nil
}

func runSweepCommand(ctx context.Context, args []string, flags engineFlags, settingInts []int, sweepFile, exportPath string) error {
	cfg, err := flags.runConfig()
	if err != nil {
		return err
	}

	if sweepFile != "" {
		file, err := config.LoadSweepFile(sweepFile)
		if err != nil {
			return err
		}
		engine := &config.EngineConfig{
			Seed:                flags.seed,
			NullSamples:         flags.b,
			Alpha:               flags.alpha,
			Mode:                flags.mode,
			ThresholdPercentile: flags.threshold,
			MinRegionLen:        flags.minRegion,
			Workers:             flags.workers,
		}
		cfg, err = file.RunConfig(engine)
		if err != nil {
			return err
		}
		settingInts = file.Settings
	}

	settings := make([]sensitivity.Setting, len(settingInts))
	for i, s := range settingInts {
		settings[i] = sensitivity.Setting(s)
		if err := settings[i].Validate(); err != nil {
			return err
		}
	}

	sig, err := resolveSignal(args, cfg.Seed)
	if err != nil {
		return err
	}

	fmt.Printf("Sweeping %d threshold settings over signal %s (%d samples)...\n",
		len(settings), sig.Key, sig.Len())

	// Initialize test kit (in production, this would use real adapters)
	kit, err := testkit.NewTestKit()
	if err != nil {
		return fmt.Errorf("failed to initialize test kit: %w", err)
	}

	rngPort := kit.RNGAdapter()
	runSvc := app.NewRunService(
		detect.NewZScoreDetector(detect.DefaultConfig()),
		battery.NewNullBattery(rngPort),
		rngPort,
		kit.LedgerAdapter(),
		kit.RunRepository(),
		nil,
	)
	sweepSvc := app.NewSweepService(runSvc, kit.LedgerAdapter(), kit.SweepRepository(), nil)

	result, err := sweepSvc.Execute(ctx, app.SweepRequest{Signal: sig, Settings: settings, Config: cfg})
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	printSweepResult(result)

	if exportPath != "" && result.Sensitivity != nil {
		if err := excel.NewWorkbookExporter().ExportSensitivity(ctx, exportPath, result.Sensitivity); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		fmt.Printf("\n💾 Sensitivity table saved to: %s\n", exportPath)
	}

	return nil
}

func runPower(ctx context.Context, args []string, flags engineFlags, sizes []int, sigmas []float64, trials int) error {
	cfg, err := flags.runConfig()
	if err != nil {
		return err
	}
	cfg.Power = power.Grid{Sizes: sizes, Sigmas: sigmas, Trials: trials}
	if err := cfg.Power.Validate(); err != nil {
		return err
	}

	sig, err := resolveSignal(args, flags.seed)
	if err != nil {
		return err
	}

	fmt.Printf("Estimating power over %d grid cells with %d trials each...\n",
		cfg.Power.Cells(), trials)

	// Initialize test kit (in production, this would use real adapters)
	kit, err := testkit.NewTestKit()
	if err != nil {
		return fmt.Errorf("failed to initialize test kit: %w", err)
	}

	rngPort := kit.RNGAdapter()
	estimator := injection.NewEstimator(
		detect.NewZScoreDetector(detect.DefaultConfig()),
		battery.NewNullBattery(rngPort),
		rngPort,
	)

	curve, err := estimator.Estimate(ctx, injection.Request{
		RunID:  core.RunID("cli-power"),
		Signal: sig,
		Config: cfg,
	})
	if err != nil {
		return fmt.Errorf("power estimation failed: %w", err)
	}

	fmt.Printf("\n=== POWER CURVE ===\n")
	for _, cell := range curve.Cells {
		fmt.Printf("size=%-3d sigma=%-4.1f  %5.1f%%  (%d/%d trials)\n",
			cell.Size, cell.Sigma, cell.DetectionRate*100, cell.Detected, cell.Trials)
	}

	fmt.Printf("\n✅ POWER ESTIMATION COMPLETED\n")
	return nil
}

func runStability(ctx context.Context, args []string, flags engineFlags, k int, jitterScale float64) error {
	cfg, err := flags.runConfig()
	if err != nil {
		return err
	}
	cfg.Stability.K = k
	cfg.Stability.JitterScale = jitterScale
	if err := cfg.Validate(); err != nil {
		return err
	}

	sig, err := resolveSignal(args, flags.seed)
	if err != nil {
		return err
	}

	fmt.Printf("Analyzing stability with %d jitter reruns at scale %.3f...\n", k, jitterScale)

	// Initialize test kit (in production, this would use real adapters)
	kit, err := testkit.NewTestKit()
	if err != nil {
		return fmt.Errorf("failed to initialize test kit: %w", err)
	}

	rngPort := kit.RNGAdapter()
	detector := detect.NewZScoreDetector(detect.DefaultConfig())
	nullBattery := battery.NewNullBattery(rngPort)

	baseline, err := evaluateBaseline(ctx, detector, nullBattery, sig, cfg)
	if err != nil {
		return fmt.Errorf("baseline evaluation failed: %w", err)
	}
	fmt.Printf("Baseline: %d evaluated candidates\n", len(baseline))

	analyzer := jitter.NewAnalyzer(detector, nullBattery, rngPort)
	report, err := analyzer.Analyze(ctx, jitter.Request{
		RunID:    core.RunID("cli-stability"),
		Signal:   sig,
		Baseline: baseline,
		Config:   cfg,
	})
	if err != nil {
		return fmt.Errorf("stability analysis failed: %w", err)
	}

	printStabilityReport(report)

	fmt.Printf("\n✅ STABILITY ANALYSIS COMPLETED\n")
	return nil
}

func runExport(ctx context.Context, args []string, flags engineFlags, candidatesFile, out string) error {
	result, err := executeRun(ctx, args, flags, candidatesFile)
	if err != nil {
		return err
	}

	selected := make([]motif.Candidate, 0)
	for _, c := range result.Candidates.Candidates {
		if c.Selected {
			selected = append(selected, c)
		}
	}
	if len(selected) == 0 {
		return fmt.Errorf("no candidates selected at alpha %g; nothing to adjudicate", flags.alpha)
	}

	if err := excel.NewWorkbookExporter().ExportAdjudication(ctx, out, ports.AdjudicationRequest{
		RunID:      result.RunID,
		Candidates: selected,
		Stability:  result.Stability,
	}); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Printf("\n💾 Adjudication workbook saved to: %s\n", out)
	fmt.Printf("%d selected candidates await review.\n", len(selected))
	return nil
}

// evaluateBaseline runs the unjittered detect/sample/evaluate pass that the
// stability reruns are compared against.
func evaluateBaseline(ctx context.Context, detector ports.DetectorPort, nullBattery ports.NullBatteryPort, sig *signal.Signal, cfg run.Config) ([]motif.Candidate, error) {
	candidates, err := detector.Detect(ctx, sig, cfg.ThresholdPercentile)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	batteryResult, err := nullBattery.RunBattery(ctx, ports.BatteryRequest{
		RunID:        core.RunID("cli-stability"),
		Stage:        "null",
		Signal:       sig,
		Candidates:   candidates,
		Mode:         cfg.Mode,
		B:            cfg.B,
		MinRegionLen: cfg.MinRegionLen,
		Workers:      cfg.Workers,
		Seed:         cfg.Seed,
	})
	if err != nil {
		return nil, err
	}

	bySet := make(map[motif.Label]*nullmodel.SampleSet, len(batteryResult.Sets))
	for _, set := range batteryResult.Sets {
		bySet[set.Label] = set
	}
	evaluable := make([]motif.Candidate, 0, len(batteryResult.Sets))
	sets := make([]*nullmodel.SampleSet, 0, len(batteryResult.Sets))
	for _, cand := range candidates {
		if set, ok := bySet[cand.Label]; ok {
			evaluable = append(evaluable, cand)
			sets = append(sets, set)
		}
	}

	evaluator, err := significance.NewEvaluator(cfg.Alpha)
	if err != nil {
		return nil, err
	}
	evaluated, _, err := evaluator.EvaluateAll(evaluable, sets)
	if err != nil {
		return nil, err
	}
	return evaluated, nil
}

// resolveSignal loads the named file or generates the synthetic demo signal.
func resolveSignal(args []string, seed int64) (*signal.Signal, error) {
	if len(args) > 0 {
		return loadSignalFile(args[0])
	}

	fmt.Printf("No signal file given; generating synthetic demo signal with planted motifs\n")
	cfg := testkit.DefaultSignalConfig()
	cfg.Seed = seed
	return testkit.NewSignalGenerator(cfg).Generate()
}

// loadSignalFile reads one sample per line. Blank lines and # comments are
// skipped; the signal key is the file name without extension.
func loadSignalFile(path string) (*signal.Signal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open signal file: %w", err)
	}
	defer f.Close()

	var values []float64
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("bad sample on line %d of %s: %w", line, path, err)
		}
		values = append(values, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read signal file: %w", err)
	}

	key := core.SignalKey(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	return signal.New(key, values)
}

// resolveDetector fixes the candidate list from a file when given, otherwise
// uses the sliding-window detector.
func resolveDetector(ctx context.Context, kit *testkit.TestKit, candidatesFile string) (ports.DetectorPort, error) {
	if candidatesFile == "" {
		return detect.NewZScoreDetector(detect.DefaultConfig()), nil
	}

	reader := excel.NewCandidateReader()
	candidates, issues, err := reader.LoadCandidates(ctx, candidatesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}
	for _, issue := range issues {
		fmt.Printf("⚠️  row %d: %s\n", issue.Row, issue.Reason)
	}
	fmt.Printf("Loaded %d candidates from %s\n", len(candidates), candidatesFile)

	return kit.FakeDetector(candidates...), nil
}

func printRunResult(result *app.RunResult) {
	m := result.Manifest

	fmt.Printf("\n=== VALIDATION RESULTS ===\n")
	fmt.Printf("Run ID: %s\n", result.RunID)
	fmt.Printf("Runtime: %d ms\n", result.RuntimeMs)
	fmt.Printf("Candidates: %d found, %d evaluated, %d skipped, %d selected\n",
		m.CandidatesFound, m.CandidatesEvaluated, m.CandidatesSkipped, m.CandidatesSelected)
	if len(m.RejectionCounts) > 0 {
		fmt.Printf("Rejections: %v\n", m.RejectionCounts)
	}

	fmt.Printf("\n=== CANDIDATES ===\n")
	for i, c := range result.Candidates.Candidates {
		marker := " "
		if c.Selected {
			marker = "*"
		}
		fmt.Printf("%d. %s %s\n", i+1, marker, c.Label)
		fmt.Printf("   Size: %d | Center: %d | Stat: %.3f | P: %.4f\n",
			c.Size, c.Center, c.Stat, c.PValue)
	}
	if len(result.Candidates.Candidates) > 0 {
		fmt.Printf("\n* selected at alpha %g\n", m.Config.Alpha)
	}

	if result.Power != nil {
		fmt.Printf("\n=== INJECTION POWER ===\n")
		for _, cell := range result.Power.Cells {
			fmt.Printf("size=%-3d sigma=%-4.1f  %5.1f%%  (%d/%d trials)\n",
				cell.Size, cell.Sigma, cell.DetectionRate*100, cell.Detected, cell.Trials)
		}
	}

	if result.Stability != nil {
		printStabilityReport(result.Stability)
	}

	fmt.Printf("\n=== FINGERPRINT ===\n")
	fmt.Printf("Signal Hash: %s\n", m.Fingerprint.SignalHash)
	fmt.Printf("Config Hash: %s\n", m.Fingerprint.ConfigHash)
	fmt.Printf("Seed: %d\n", m.Fingerprint.Seed)
	fmt.Printf("Code Version: %s\n", m.Fingerprint.CodeVersion)
	fmt.Printf("Complete Fingerprint: %s\n", m.Fingerprint.Fingerprint)

	if m.Trusted {
		fmt.Printf("\n✅ VALIDATION COMPLETED SUCCESSFULLY\n")
		fmt.Printf("This result is completely deterministic and replayable using the fingerprint.\n")
	} else {
		fmt.Printf("\n❌ DETERMINISM CHECK FAILED: %s\n", m.TrustedReason)
		fmt.Printf("Results were stored but the manifest is marked untrusted.\n")
	}
}

func printSweepResult(result *app.SweepResult) {
	m := result.Manifest

	fmt.Printf("\n=== SWEEP RESULTS ===\n")
	fmt.Printf("Sweep ID: %s\n", result.SweepID)
	fmt.Printf("Runtime: %d ms\n", result.RuntimeMs)
	fmt.Printf("Completed Settings: %v\n", m.CompletedSettings)
	if len(m.DiscardedSettings) > 0 {
		fmt.Printf("Discarded Settings: %v\n", m.DiscardedSettings)
	}
	fmt.Printf("Fingerprint: %s\n", m.Fingerprint)

	if result.Sensitivity == nil {
		fmt.Printf("\nNo setting produced selections; nothing to aggregate.\n")
		return
	}

	table := result.Sensitivity
	fmt.Printf("\n=== SENSITIVITY TABLE ===\n")
	fmt.Printf("%-16s", "label")
	for _, s := range table.Settings {
		fmt.Printf("%12s", s)
	}
	fmt.Println()

	for _, label := range table.Labels() {
		fmt.Printf("%-16s", label)
		for _, s := range table.Settings {
			cell := "-"
			for _, r := range table.RowsFor(s) {
				if r.Label != label {
					continue
				}
				if r.Status == sensitivity.StatusPresent {
					marker := " "
					if r.Selected {
						marker = "*"
					}
					cell = fmt.Sprintf("%.4f%s", r.PValue, marker)
				}
				break
			}
			fmt.Printf("%12s", cell)
		}
		fmt.Println()
	}
	fmt.Printf("\n* selected at alpha; - never evaluated at that setting\n")

	robust := table.RobustLabels()
	if len(robust) > 0 {
		fmt.Printf("\nRobust labels (selected under every setting):\n")
		for _, l := range robust {
			fmt.Printf("• %s\n", l)
		}
	} else {
		fmt.Printf("\nNo label was selected under every setting.\n")
	}

	fmt.Printf("\n✅ SWEEP COMPLETED\n")
}

func printStabilityReport(report *stability.Report) {
	fmt.Printf("\n=== STABILITY ===\n")
	fmt.Printf("Jitter Scale: %.3f\n", report.JitterScale)
	fmt.Printf("Mean Overlap: %.3f over %d reruns\n", report.Matrix.MeanOverlap(), report.Matrix.K)
	fmt.Printf("Fragmentation: %.3f\n", report.Fragmentation)
	fmt.Printf("Rank Concordance: mean=%.3f std=%.3f min=%.3f max=%.3f\n",
		report.RankConcordance.Mean, report.RankConcordance.Std,
		report.RankConcordance.Min, report.RankConcordance.Max)

	if len(report.Groups) > 0 {
		fmt.Printf("\nConsensus groups:\n")
		for _, g := range report.Groups {
			status := ""
			if g.Consensus {
				status = " (consensus)"
			}
			fmt.Printf("• %s: %d sets, mean overlap %.3f%s\n",
				g.ConsensusID, g.NMemberSets, g.MeanPairwiseJaccard, status)
		}
	}

	if len(report.SelectionFrequency) > 0 {
		fmt.Printf("\nSelection frequency:\n")
		for _, lf := range report.SelectionFrequency {
			flag := ""
			if lf.Unstable {
				flag = " ⚠️ unstable"
			}
			fmt.Printf("• %s: %.0f%%%s\n", lf.Label, lf.Frequency*100, flag)
		}
	}
}

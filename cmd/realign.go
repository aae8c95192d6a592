package cmd

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/vbi-informatics/gecore/fasta"
	"github.com/vbi-informatics/gecore/intervals"
	"github.com/vbi-informatics/gecore/matefix"
	"github.com/vbi-informatics/gecore/pipeline"
	"github.com/vbi-informatics/gecore/reader"
	"github.com/vbi-informatics/gecore/realign"
	"github.com/vbi-informatics/gecore/sam"
	"github.com/vbi-informatics/gecore/sortmerge"
	"github.com/vbi-informatics/gecore/threadpool"
	"github.com/vbi-informatics/gecore/vcf"
	"github.com/vbi-informatics/gecore/writer"
)

// RealignHelp is the help string for the realign subcommand.
const RealignHelp = "\ngecore realign parameters:\n" +
	"gecore realign --in path [--in path ...] --out path --intervals path\n" +
	"[--reference path.elfasta]\n" +
	"[--known-indels path.vcf]\n" +
	"[--model knowns-only|use-reads|use-sw]\n" +
	"[--lod f] [--mismatch-threshold f]\n" +
	"[--max-isize n] [--max-move n]\n" +
	"[--max-records-in-memory n]\n" +
	"[--no-tags]\n" +
	"[--threads n]\n" +
	"[--compress-temp] [--temp-dir path]\n" +
	"[--verbose] [--debug]\n" +
	"[--timed]\n" +
	"[--log-path path]\n"

// Realign implements the local realignment subcommand (C7/C8): sort
// the input to coordinate order, realign reads near known or inferred
// indels inside each declared interval, and fix up mate information
// as cleaned reads are released in order.
func Realign() error {
	var (
		in                             stringList
		out, reference, intervalsPath string
		knownIndelsPath, model        string
		lod, mismatchThreshold        float64
		maxISize, maxMove             int
		maxRecordsInMemory            int
		noTags                        bool
		threads                       int
		compressTemp                  bool
		tempDir                       string
		verbose, debug, timed         bool
		logPath                       string
	)

	flags := flag.NewFlagSet("realign", flag.ContinueOnError)
	flags.Var(&in, "in", "input file; repeat for multiple files")
	flags.StringVar(&out, "out", "", "output file (- for stdout)")
	flags.StringVar(&reference, "reference", "", "reference sequence, in .elfasta format")
	flags.StringVar(&intervalsPath, "intervals", "", "declared target intervals, .bed, .vcf or .elsites")
	flags.StringVar(&knownIndelsPath, "known-indels", "", "known indel records, .vcf")
	flags.StringVar(&model, "model", "use-reads", "consensus model: knowns-only, use-reads, or use-sw")
	defaults := realign.DefaultOptions()
	flags.Float64Var(&lod, "lod", defaults.LODThreshold, "LOD threshold for accepting a realignment")
	flags.Float64Var(&mismatchThreshold, "mismatch-threshold", defaults.MismatchThreshold, "per-read mismatch rate threshold for applying a realignment")
	flags.IntVar(&maxISize, "max-isize", int(defaults.MaxISizeForMovement), "maximum insert size for a read pair to be considered movable")
	flags.IntVar(&maxMove, "max-move", int(defaults.MaxPosMoveAllowed), "maximum positions a read may move during mate fixing")
	flags.IntVar(&maxRecordsInMemory, "max-records-in-memory", defaults.MaxReadsInMemory, "maximum reads buffered by the mate-fixing manager")
	flags.BoolVar(&noTags, "no-tags", false, "suppress OC/OP original-alignment tags on realigned reads")
	flags.IntVar(&threads, "threads", 0, "number of worker threads (default: number of cores)")
	flags.BoolVar(&compressTemp, "compress-temp", false, "compress the coordinate pre-sort's spilled temp files")
	flags.StringVar(&tempDir, "temp-dir", "", "directory for spilled temp files")
	flags.BoolVar(&verbose, "verbose", false, "log progress")
	flags.BoolVar(&debug, "debug", false, "log per-read realignment and mate-fixing decisions")
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(flags, 2, RealignHelp)

	if len(in) == 0 {
		log.Println("Error: at least one --in file is required.")
		os.Exit(1)
	}
	if !checkCreate("--out", out) {
		os.Exit(1)
	}
	if intervalsPath == "" {
		log.Println("Error: --intervals is required.")
		os.Exit(1)
	}
	if !checkExist("--intervals", intervalsPath) {
		os.Exit(1)
	}
	if reference != "" && !checkExist("--reference", reference) {
		os.Exit(1)
	}
	if knownIndelsPath != "" && !checkExist("--known-indels", knownIndelsPath) {
		os.Exit(1)
	}

	var consensusModel realign.ConsensusModel
	switch model {
	case "knowns-only":
		consensusModel = realign.KnownsOnly
	case "use-reads":
		consensusModel = realign.UseReads
	case "use-sw":
		consensusModel = realign.UseSW
	default:
		log.Println("Error: invalid --model", model)
		os.Exit(1)
	}

	if logPath != "" || verbose {
		setLogOutput(logPath)
	}

	opts := defaults
	opts.ConsensusModel = consensusModel
	opts.LODThreshold = lod
	opts.MismatchThreshold = mismatchThreshold
	opts.MaxISizeForMovement = int32(maxISize)
	opts.MaxPosMoveAllowed = int32(maxMove)
	opts.MaxReadsInMemory = maxRecordsInMemory
	opts.NoOriginalAlignmentTags = noTags
	opts.Verbose = verbose
	opts.Debug = debug

	return timedRun(timed, "Realigning.", func() error {
		return runRealign(in, out, reference, intervalsPath, knownIndelsPath, opts, threads, compressTemp, tempDir)
	})
}

func loadIntervals(path string) (map[string][]intervals.Interval, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bed":
		return intervals.FromBedFile(path)
	case ".elsites":
		return intervals.FromElsitesFile(path)
	default:
		return intervals.FromVcfFile(path)
	}
}

func runRealign(in []string, out, referencePath, intervalsPath, knownIndelsPath string, opts realign.Options, threads int, compressTemp bool, tempDir string) error {
	declaredIntervals, err := loadIntervals(intervalsPath)
	if err != nil {
		return err
	}
	for _, ivs := range declaredIntervals {
		intervals.SortByStart(ivs)
	}

	var reference *fasta.MappedFasta
	if referencePath != "" {
		reference = fasta.OpenElfasta(referencePath)
		defer reference.Close()
	}

	knownIndelMap, err := loadKnownIndelsIfAny(knownIndelsPath)
	if err != nil {
		return err
	}

	ms, err := reader.Open(in)
	if err != nil {
		return err
	}
	defer ms.Close()

	nThreads := threadCount(threads)
	spillPool := threadpool.New(nThreads)
	defer spillPool.Close()
	sortPool := threadpool.New(nThreads)
	defer sortPool.Close()
	cleanPool := threadpool.New(nThreads)
	defer cleanPool.Close()

	root := reader.NewStage(ms)

	sortOpts := sortmerge.Options{
		Order:             sortmerge.ByCoordinate,
		CompressTempFiles: compressTemp,
		TempDir:           tempDir,
	}

	toSort := pipeline.NewQueue(1024)
	root.AddOutput(toSort)
	sortModule := pipeline.NewModule("sort", toSort, pipeline.NewStaticSource(root.Header(), root.References()),
		sortmerge.Stage(sortOpts, spillPool, sortPool))

	header := sortModule.Header()
	header.SetHD_SO("coordinate")

	w, err := writer.Create(out, header, sortModule.References())
	if err != nil {
		return err
	}

	var writeErr error
	mgr := matefix.New(matefix.Options{
		MaxInsertSizeForMovingReadPairs: opts.MaxISizeForMovement,
		MaxPosMoveAllowed:               opts.MaxPosMoveAllowed,
		MaxRecordsInMemory:              opts.MaxReadsInMemory,
		Debug:                           opts.Debug,
	}, func(a *sam.Alignment) {
		if writeErr == nil {
			if err := w.Write(a); err != nil {
				writeErr = err
			}
		}
	})

	cfg := realign.Config{
		Options:           opts,
		DeclaredIntervals: declaredIntervals,
		KnownIndels:       knownIndelMap,
		Reference:         reference,
		RefNames:          sortModule.References(),
		Pool:              cleanPool,
		Mgr:               mgr,
	}

	toRealign := pipeline.NewQueue(1024)
	sortModule.AddOutput(toRealign)
	realignModule := pipeline.NewModule("realign", toRealign, pipeline.NewStaticSource(header, sortModule.References()), realign.NewLoop(cfg))

	root.StartAsync()
	sortModule.StartAsync()
	code := realignModule.Run()
	mgr.Close()

	if c := root.FinishAsync(); code == 0 && c != 0 {
		code = c
	}
	if c := sortModule.FinishAsync(); code == 0 && c != 0 {
		code = c
	}

	if closeErr := w.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		return writeErr
	}
	if code != 0 {
		return errExitCode(code)
	}
	return nil
}

func loadKnownIndelsIfAny(path string) (map[string][]vcf.Variant, error) {
	if path == "" {
		return nil, nil
	}
	return realign.LoadKnownIndels(path)
}

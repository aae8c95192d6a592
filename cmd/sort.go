package cmd

import (
	"flag"
	"log"
	"os"

	"github.com/vbi-informatics/gecore/pipeline"
	"github.com/vbi-informatics/gecore/reader"
	"github.com/vbi-informatics/gecore/sortmerge"
	"github.com/vbi-informatics/gecore/threadpool"
	"github.com/vbi-informatics/gecore/writer"
)

// SortHelp is the help string for the sort subcommand.
const SortHelp = "\ngecore sort parameters:\n" +
	"gecore sort --in path [--in path ...] --out path\n" +
	"[--order coordinate|queryname]\n" +
	"[--threads n]\n" +
	"[--compress-temp]\n" +
	"[--max-records-in-memory n]\n" +
	"[--single-threaded]\n" +
	"[--temp-dir path]\n" +
	"[--verbose]\n" +
	"[--timed]\n" +
	"[--log-path path]\n"

// Sort implements the external merge sort subcommand (C5): read one
// or more input files, sort by the requested order, and write the
// result to a single output file.
func Sort() error {
	var (
		in                 stringList
		out, order         string
		threads            int
		compressTemp       bool
		maxRecordsInMemory int
		singleThreaded     bool
		tempDir            string
		verbose, timed     bool
		logPath            string
	)

	flags := flag.NewFlagSet("sort", flag.ContinueOnError)
	flags.Var(&in, "in", "input file; repeat for multiple files")
	flags.StringVar(&out, "out", "", "output file (- for stdout)")
	flags.StringVar(&order, "order", "coordinate", "sort order: coordinate or queryname")
	flags.IntVar(&threads, "threads", 0, "number of worker threads (default: number of cores)")
	flags.BoolVar(&compressTemp, "compress-temp", false, "compress spilled temp files")
	flags.IntVar(&maxRecordsInMemory, "max-records-in-memory", sortmerge.DefaultAlignmentsPerTempFile, "alignments buffered before a chunk spills")
	flags.BoolVar(&singleThreaded, "single-threaded", false, "disable in-chunk parallel sort")
	flags.StringVar(&tempDir, "temp-dir", "", "directory for spilled temp files")
	flags.BoolVar(&verbose, "verbose", false, "log progress")
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(flags, 2, SortHelp)

	if len(in) == 0 {
		log.Println("Error: at least one --in file is required.")
		os.Exit(1)
	}
	if !checkCreate("--out", out) {
		os.Exit(1)
	}

	var sortOrder sortmerge.SortOrder
	switch order {
	case "coordinate":
		sortOrder = sortmerge.ByCoordinate
	case "queryname":
		sortOrder = sortmerge.ByName
	default:
		log.Println("Error: invalid --order", order)
		os.Exit(1)
	}

	if logPath != "" || verbose {
		setLogOutput(logPath)
	}

	return timedRun(timed, "Sorting.", func() error {
		return runSort(in, out, sortOrder, threads, compressTemp, maxRecordsInMemory, singleThreaded, tempDir, verbose)
	})
}

func runSort(in []string, out string, order sortmerge.SortOrder, threads int, compressTemp bool, maxRecordsInMemory int, singleThreaded bool, tempDir string, verbose bool) error {
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

	root := reader.NewStage(ms)

	sortOpts := sortmerge.Options{
		Order:                 order,
		AlignmentsPerTempFile: maxRecordsInMemory,
		CompressTempFiles:     compressTemp,
		SingleThreaded:        singleThreaded,
		TempDir:               tempDir,
	}

	toSort := pipeline.NewQueue(1024)
	root.AddOutput(toSort)
	sortModule := pipeline.NewModule("sort", toSort, pipeline.NewStaticSource(root.Header(), root.References()),
		sortmerge.Stage(sortOpts, spillPool, sortPool))

	header := sortModule.Header()
	header.SetHD_SO(order.String())

	w, err := writer.Create(out, header, sortModule.References())
	if err != nil {
		return err
	}

	toWriter := pipeline.NewQueue(1024)
	sortModule.AddOutput(toWriter)
	writerModule := writer.NewStage("writer", toWriter, pipeline.NewStaticSource(header, sortModule.References()), w)

	if verbose {
		log.Println("sort: reading from", in, "writing to", out)
	}

	if code := runPipeline(root, sortModule, writerModule); code != 0 {
		return errExitCode(code)
	}
	return nil
}

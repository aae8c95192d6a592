package cmd

import (
	"flag"
	"log"
	"os"

	"github.com/vbi-informatics/gecore/pipeline"
	"github.com/vbi-informatics/gecore/reader"
	"github.com/vbi-informatics/gecore/writer"
)

// MergeHelp is the help string for the merge subcommand.
const MergeHelp = "\ngecore merge parameters:\n" +
	"gecore merge --in path --in path [--in path ...] --out path\n" +
	"[--verbose]\n" +
	"[--timed]\n" +
	"[--log-path path]\n"

// Merge implements the file-merge subcommand: concatenate two or more
// input files carrying compatible headers into a single output
// stream, preserving each file's own record order. Unlike sort, merge
// never re-sorts — it exists for inputs that are already split the
// same way a prior sort produced them.
func Merge() error {
	var (
		in             stringList
		out            string
		verbose, timed bool
		logPath        string
	)

	flags := flag.NewFlagSet("merge", flag.ContinueOnError)
	flags.Var(&in, "in", "input file; repeat for multiple files")
	flags.StringVar(&out, "out", "", "output file (- for stdout)")
	flags.BoolVar(&verbose, "verbose", false, "log progress")
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(flags, 2, MergeHelp)

	if len(in) < 2 {
		log.Println("Error: merge requires at least two --in files.")
		os.Exit(1)
	}
	if !checkCreate("--out", out) {
		os.Exit(1)
	}

	if logPath != "" || verbose {
		setLogOutput(logPath)
	}

	return timedRun(timed, "Merging.", func() error {
		return runMerge(in, out, verbose)
	})
}

func runMerge(in []string, out string, verbose bool) error {
	ms, err := reader.Open(in)
	if err != nil {
		return err
	}
	defer ms.Close()

	root := reader.NewStage(ms)

	w, err := writer.Create(out, root.Header(), root.References())
	if err != nil {
		return err
	}

	toWriter := pipeline.NewQueue(1024)
	root.AddOutput(toWriter)
	writerModule := writer.NewStage("writer", toWriter, pipeline.NewStaticSource(root.Header(), root.References()), w)

	if verbose {
		log.Println("merge: merging", in, "into", out)
	}

	if code := runPipeline(root, writerModule); code != 0 {
		return errExitCode(code)
	}
	return nil
}

package cmd

import (
	"flag"
	"log"
	"os"

	"github.com/vbi-informatics/gecore/pipeline"
	"github.com/vbi-informatics/gecore/reader"
	"github.com/vbi-informatics/gecore/writer"
)

// ViewHelp is the help string for the view subcommand.
const ViewHelp = "\ngecore view parameters:\n" +
	"gecore view --in path [--in path ...] [--out path]\n" +
	"[--verbose]\n"

// View implements the view subcommand: decode one or more input files
// and re-encode them unchanged, defaulting to SAM text on stdout. Its
// purpose is format conversion (SAM <-> BAM) and quick inspection, not
// any of the processing stages above.
func View() error {
	var (
		in      stringList
		out     string
		verbose bool
	)

	flags := flag.NewFlagSet("view", flag.ContinueOnError)
	flags.Var(&in, "in", "input file; repeat for multiple files")
	flags.StringVar(&out, "out", "-", "output file (- for stdout)")
	flags.BoolVar(&verbose, "verbose", false, "log progress")

	parseFlags(flags, 2, ViewHelp)

	if len(in) == 0 {
		log.Println("Error: at least one --in file is required.")
		os.Exit(1)
	}
	if out != "-" && !checkCreate("--out", out) {
		os.Exit(1)
	}

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
		log.Println("view: reading", in)
	}

	if code := runPipeline(root, writerModule); code != 0 {
		return errExitCode(code)
	}
	return nil
}

// Package cmd implements the command-line front end: one file per
// subcommand (sort, realign, merge, view), wiring the reader, writer,
// sortmerge, realign, and matefix packages into a runnable pipeline.
package cmd

import (
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/vbi-informatics/gecore/gerrors"
	"github.com/vbi-informatics/gecore/pipeline"
	"github.com/vbi-informatics/gecore/utils"
)

// ProgramMessage is the first line printed when the binary is called.
var ProgramMessage string

func init() {
	ProgramMessage = fmt.Sprint(
		"\n", utils.ProgramName, " version ", utils.ProgramVersion,
		" compiled with ", runtime.Version(),
		" - see ", utils.ProgramURL, " for more information.\n",
	)
}

// HelpMessage is printed to show the --help flag.
const HelpMessage = "Print command details:\n" +
	"[--help]\n"

// stringList accumulates repeated occurrences of a flag into a slice,
// for --in, which takes one or more input paths.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

func getFilename(s, help string) string {
	switch s {
	case "-h", "--h", "-help", "--help":
		fmt.Fprint(os.Stderr, help)
		os.Exit(0)
	default:
		if strings.HasPrefix(s, "-") {
			log.Println("Filename in command line missing.")
			fmt.Fprint(os.Stderr, help)
			os.Exit(1)
		}
	}
	return s
}

func parseFlags(flags *flag.FlagSet, requiredArgs int, help string) {
	if len(os.Args) < requiredArgs {
		fmt.Fprintln(os.Stderr, "Incorrect number of parameters.")
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
	flags.SetOutput(ioutil.Discard)
	if err := flags.Parse(os.Args[requiredArgs:]); err != nil {
		x := 0
		if err != flag.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			x = 1
		}
		fmt.Fprint(os.Stderr, help)
		os.Exit(x)
	}
	if flags.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Cannot parse remaining parameters:", flags.Args())
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
}

func logCheckFile(parameter, format string, v ...interface{}) {
	if parameter != "" {
		log.Printf(format+" for command line parameter %v.\n", append(v, parameter)...)
	} else {
		log.Printf(format+".\n", v...)
	}
}

func checkExist(parameter, filename string) bool {
	if len(filename) == 0 {
		logCheckFile(parameter, "Error: Missing filename")
		return false
	}
	if filename == "-" {
		return true
	}
	if _, err := os.Stat(filename); err == nil {
		return true
	} else if os.IsNotExist(err) {
		logCheckFile(parameter, "Error: File %v does not exist", filename)
		return false
	} else {
		logCheckFile(parameter, "Error %v when trying to access file %v", err, filename)
		return false
	}
}

func checkCreate(parameter, filename string) bool {
	if len(filename) == 0 {
		logCheckFile(parameter, "Error: Missing filename")
		return false
	}
	if filename == "-" {
		return true
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0700); err != nil {
		logCheckFile(parameter, "Error %v when trying to create directory for file %v", err, filename)
		return false
	}
	return true
}

func createLogFilename() string {
	t := time.Now()
	zone, _ := t.Zone()
	return fmt.Sprintf("logs/%s/%s-%d-%02d-%02d-%02d-%02d-%02d-%09d-%v.log",
		utils.ProgramName, utils.ProgramName,
		t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), zone)
}

// setLogOutput duplicates stderr into a log file under path (or
// $HOME/logs/<program> if empty) so every run leaves a durable trail
// alongside whatever the shell's own stderr redirection captures.
func setLogOutput(path string) {
	logPath := createLogFilename()
	var fullPath string
	if path == "" {
		fullPath = filepath.Join(os.Getenv("HOME"), logPath)
	} else {
		fullPath = filepath.Join(path, logPath)
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0700); err != nil {
		log.Panic(err)
	}
	f, err := os.Create(fullPath)
	if err != nil {
		log.Panic(err)
	}
	fmt.Fprintln(f, ProgramMessage)

	orgStderr, err := unix.Dup(2)
	if err != nil {
		log.Panic(err)
	}
	ferr := os.NewFile(uintptr(orgStderr), "/dev/stderr")
	if err := unix.Dup2(int(f.Fd()), 2); err != nil {
		log.Panic(err)
	}

	multi := io.MultiWriter(f, ferr)
	log.SetOutput(multi)
	log.Println("Created log file at", fullPath)
	log.Println("Command line:", os.Args)
}

func timedRun(timed bool, msg string, f func() error) error {
	if timed {
		log.Println(msg)
		start := time.Now()
		defer func() {
			log.Println("Elapsed time:", time.Since(start))
		}()
	}
	return f()
}

func threadCount(n int) int {
	if n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// errExitCode turns a nonzero pipeline.Module exit code into an error
// carrying the gerrors.StageFailed kind. main exits with status 1 for
// it, as for every error other than a format mismatch.
func errExitCode(code int) error {
	return gerrors.New(gerrors.StageFailed, fmt.Sprintf("stage exited with code %d", code))
}

// runPipeline starts every module but the last asynchronously, runs
// the last synchronously on the calling goroutine (it is always the
// terminal writer stage, so there is nothing useful to do concurrently
// with it), then joins the rest and folds every exit code together —
// the first nonzero code wins, standing in for the teacher's join-all
// then check-all-exit-codes sequence.
func runPipeline(modules ...*pipeline.Module) int {
	for _, m := range modules[:len(modules)-1] {
		m.StartAsync()
	}
	code := modules[len(modules)-1].Run()
	for _, m := range modules[:len(modules)-1] {
		if c := m.FinishAsync(); code == 0 && c != 0 {
			code = c
		}
	}
	return code
}

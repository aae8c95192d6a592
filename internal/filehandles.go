package internal

import (
	"log"
	"os"
)

// FileOpen opens filename for reading, panicking on error — for the
// file-handling helpers below, like RunPipeline/RunCmd, callers are
// already in a context where a file failure is unrecoverable.
func FileOpen(filename string) *os.File {
	f, err := os.Open(filename)
	if err != nil {
		log.Panic(err)
	}
	return f
}

// FileCreate creates or truncates filename for writing, panicking on
// error.
func FileCreate(filename string) *os.File {
	f, err := os.Create(filename)
	if err != nil {
		log.Panic(err)
	}
	return f
}

// Close closes f, panicking on error.
func Close(f *os.File) {
	if err := f.Close(); err != nil {
		log.Panic(err)
	}
}

// Write writes p to f, panicking on error, and returns the number of
// bytes written.
func Write(f *os.File, p []byte) int {
	n, err := f.Write(p)
	if err != nil {
		log.Panic(err)
	}
	return n
}

// WriteString writes s to f, panicking on error, and returns the
// number of bytes written.
func WriteString(f *os.File, s string) int {
	n, err := f.WriteString(s)
	if err != nil {
		log.Panic(err)
	}
	return n
}

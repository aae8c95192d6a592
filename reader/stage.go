package reader

import (
	"io"
	"log"

	"github.com/vbi-informatics/gecore/pipeline"
)

// NewStage wraps a MultiSource as a root pipeline module: it has no
// input queue of its own (it is the source of the pipeline) and feeds
// every decoded alignment to PutOutput.
func NewStage(ms *MultiSource) *pipeline.Module {
	src := pipeline.NewStaticSource(ms.Header(), ms.References())
	m := pipeline.NewModule("reader", pipeline.NewQueue(0), src, func(m *pipeline.Module) int {
		for {
			aln, err := ms.Next()
			if err == io.EOF {
				return 0
			}
			if err != nil {
				log.Println("file reader:", err)
				return 1
			}
			m.PutOutput(aln)
		}
	})
	return m
}

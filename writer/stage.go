package writer

import (
	"log"

	"github.com/vbi-informatics/gecore/pipeline"
)

// NewStage wraps w as the terminal pipeline module: it has no
// downstream of its own, only draining its input queue into w and
// closing w once the upstream has finished.
func NewStage(name string, input *pipeline.Queue, src pipeline.Source, w Writer) *pipeline.Module {
	m := pipeline.NewModule(name, input, src, func(m *pipeline.Module) int {
		defer func() {
			if err := w.Close(); err != nil {
				log.Println("writer: close failed:", err)
			}
		}()
		for {
			aln, ok := m.GetInput()
			if !ok {
				return 0
			}
			if err := w.Write(aln); err != nil {
				log.Println("writer: write failed:", err)
				return 1
			}
		}
	})
	return m
}

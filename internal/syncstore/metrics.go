package syncstore

import (
	"time"

	"github.com/Alijeyrad/consultorio_backend/pkg/docstore"
)

// Metrics receives delivery telemetry. The zero value of Options uses a no-op.
type Metrics interface {
	JournalDepth(n int)
	Delivered(op docstore.Op, latency time.Duration)
	Retried(op docstore.Op)
	Failed(op docstore.Op)
	Online(online bool)
}

type nopMetrics struct{}

func (nopMetrics) JournalDepth(int)                     {}
func (nopMetrics) Delivered(docstore.Op, time.Duration) {}
func (nopMetrics) Retried(docstore.Op)                  {}
func (nopMetrics) Failed(docstore.Op)                   {}
func (nopMetrics) Online(bool)                          {}

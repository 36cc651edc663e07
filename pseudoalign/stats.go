package pseudoalign

import "time"

// Stats accumulates build- and mapping-time counters. Workers keep a private
// Stats and the caller Merges them into one running total, the same pattern
// bio-fusion's per-worker fusion.Stats uses.
type Stats struct {
	SeqsRead               int64
	KmersObserved          int64
	KmersFiltered          int64
	EqClassesMade          int64
	NodesBeforeCompression int64
	NodesAfterCompression  int64
	BuildDuration          time.Duration

	ReadsMapped   int64
	ReadsUnmapped int64
}

// Merge adds o's counters into s.
func (s *Stats) Merge(o Stats) {
	s.SeqsRead += o.SeqsRead
	s.KmersObserved += o.KmersObserved
	s.KmersFiltered += o.KmersFiltered
	s.EqClassesMade += o.EqClassesMade
	s.NodesBeforeCompression += o.NodesBeforeCompression
	s.NodesAfterCompression += o.NodesAfterCompression
	s.BuildDuration += o.BuildDuration
	s.ReadsMapped += o.ReadsMapped
	s.ReadsUnmapped += o.ReadsUnmapped
}

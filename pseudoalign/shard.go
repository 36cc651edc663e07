package pseudoalign

// shard.go implements C3 (kmer filter / eq-class summarizer) and C4 (shard
// assembler): it turns one shard's MSP tuples into an uncompressed BaseGraph.

type kmerAccum struct {
	exts    Exts
	seqIDs  map[uint32]struct{}
	count   int
}

// FilterShard processes one shard (a group of MSPTuples from one or more
// adjacent buckets, per spec.md 5's "coalesced into groups") into an
// uncompressed BaseGraph.
// contigOf must return the full contig text for a given contig id —
// extension bits for kmers strictly inside a tuple's slice are derived from
// the slice itself, but the two boundary kmers consult the tuple's own Exts
// field (set by the partitioner from bases outside the slice), so contigOf
// is only ever asked for the tuple's own [Start:End) bytes. t.SeqID (the
// original reference id, not the contig id) is what gets accumulated as a
// color, so N-split fragments of one reference still share one color.
//
// The returned Stats counts every kmer occurrence scanned across the
// shard's tuples (KmersObserved) and every distinct kmer dropped by the
// MinKmerObservations threshold (KmersFiltered); the caller merges this
// into the running build Stats.
func FilterShard(tuples []MSPTuple, contigOf func(contigID uint32) string, opts Opts, summarizer *Summarizer, width ColorWidth) (*BaseGraph, Stats) {
	K := opts.KmerLength
	accum := map[Kmer]*kmerAccum{}
	var stats Stats

	for _, t := range tuples {
		contig := contigOf(t.ContigID)
		slice := contig[t.Start:t.End]
		numKmers := len(slice) - K + 1
		if numKmers <= 0 {
			continue
		}
		kz := newKmerizer(K)
		kz.Reset(slice)
		for kz.Scan() {
			stats.KmersObserved++
			km := kz.Get()
			k := km.forward
			if !opts.Stranded {
				k = km.minKmer()
			}

			var left, right Exts
			if km.pos == 0 {
				left = Exts(t.Exts.left())
			} else {
				left = extLeftBit(slice[km.pos-1])
			}
			if km.pos == numKmers-1 {
				right = Exts(t.Exts.right()) << 4
			} else {
				right = extRightBit(slice[km.pos+K])
			}

			a, ok := accum[k]
			if !ok {
				a = &kmerAccum{seqIDs: map[uint32]struct{}{}}
				accum[k] = a
			}
			a.exts = a.exts.Merge(left | right)
			a.seqIDs[t.SeqID] = struct{}{}
			a.count++
		}
	}

	bg := NewBaseGraph(K)
	for k, a := range accum {
		if a.count < opts.MinKmerObservations {
			stats.KmersFiltered++
			continue
		}
		ids := make([]uint32, 0, len(a.seqIDs))
		for id := range a.seqIDs {
			ids = append(ids, id)
		}
		eqID := summarizer.Intern(ids, width)
		bg.Kmers[k] = nodeEntry{Exts: a.exts, EqClass: eqID}
	}
	return bg, stats
}

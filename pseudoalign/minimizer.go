package pseudoalign

import "sync"

// minimizer.go implements the Minimum Substring Partition (MSP) partitioner,
// C2. It slides a window of length K across each contig, finds the minimum
// p-mer under a fixed permutation of p-mer codes in each window, and merges
// adjacent windows sharing that minimizer into maximal MSP intervals. This is
// the Go counterpart of the original pseudoaligner's msp_sequence, grounded in
// the same rolling-kmerizer style as fusion/kmer.go's kmerizer.

// permTable is the global, deterministically initialized permutation of
// [0, 4^P) used to rank p-mers. Bit-reversal is used because it is a cheap,
// fixed, easily-verified bijection — any fixed permutation satisfies the
// contract in spec.md 4.1, including the identity. Bit-reversal maps 0 to 0,
// so poly-A (code 0) still has the lowest rank and lands in bucket 0, as it
// would under the identity.
var (
	permTableMu    sync.Mutex
	permTableCache = map[int][]uint32{}
)

func permTable(p int) []uint32 {
	permTableMu.Lock()
	defer permTableMu.Unlock()
	if t, ok := permTableCache[p]; ok {
		return t
	}
	bits := uint(2 * p)
	n := uint32(1) << bits
	t := make([]uint32, n)
	for i := uint32(0); i < n; i++ {
		t[i] = bitReverse(i, bits)
	}
	permTableCache[p] = t
	return t
}

func bitReverse(x uint32, bits uint) uint32 {
	var r uint32
	for i := uint(0); i < bits; i++ {
		r = (r << 1) | (x & 1)
		x >>= 1
	}
	return r
}

// MSPTuple is one shard-partitioner output: a contiguous slice of a contig,
// its bucket assignment, and the extension bits observed immediately outside
// the slice in the source contig. ContigID addresses the source contig text
// (one per post-N-split fragment, for contigOf lookups); SeqID is the
// original reference id the fragment came from and is what gets interned as
// a color — distinct fields because a single reference can split into
// several N-separated contigs that must still share one color (spec.md 4.1
// edge case, SPEC_FULL.md supplemented features).
type MSPTuple struct {
	BucketID uint16
	ContigID uint32
	SeqID    uint32
	Start    int
	End      int // half-open, slice is contig[Start:End]
	Exts     Exts
}

// partitionContig runs the MSP partitioner over one ACGT-only contig (no
// embedded N), per spec.md 4.1. Contigs shorter than K produce no tuples.
// contigID addresses the contig text for later contigOf lookups; seqID is
// the color stamped onto every resulting tuple.
func partitionContig(contig string, contigID, seqID uint32, opts Opts) []MSPTuple {
	K, P := opts.KmerLength, opts.MinimizerLength
	if len(contig) < K {
		return nil
	}
	perm := permTable(P)

	numPmers := len(contig) - P + 1
	pmerRank := make([]uint32, numPmers)
	{
		kz := newKmerizer(P)
		kz.Reset(contig)
		i := 0
		for kz.Scan() {
			km := kz.Get()
			// Position-aligned: kz.Scan can skip ambiguous runs, but contig is
			// already ACGT-only so every position yields a pmer in order.
			for i < km.pos {
				pmerRank[i] = ^uint32(0)
				i++
			}
			pmerRank[i] = perm[uint32(km.forward)]
			i++
		}
		for i < numPmers {
			pmerRank[i] = ^uint32(0)
			i++
		}
	}

	windowSize := K - P + 1
	// minAt[w] = position of the minimal-rank pmer in window starting at w.
	minAt := slidingWindowMinPositions(pmerRank, windowSize)

	var out []MSPTuple
	numWindows := len(contig) - K + 1
	start := 0
	curMin := minAt[0]
	for w := 1; w < numWindows; w++ {
		if minAt[w] != curMin {
			out = append(out, makeTuple(contig, contigID, seqID, start, w-1+K, curMin, pmerRank[curMin]))
			start = w
			curMin = minAt[w]
		}
	}
	out = append(out, makeTuple(contig, contigID, seqID, start, numWindows-1+K, curMin, pmerRank[curMin]))
	return out
}

func makeTuple(contig string, contigID, seqID uint32, start, end int, _ int, rank uint32) MSPTuple {
	var left, right byte
	if start > 0 {
		left = contig[start-1]
	}
	if end < len(contig) {
		right = contig[end]
	}
	return MSPTuple{
		BucketID: uint16(rank),
		ContigID: contigID,
		SeqID:    seqID,
		Start:    start,
		End:      end,
		Exts:     mkExts(left, right),
	}
}

// slidingWindowMinPositions returns, for every window start w in
// [0, len(rank)-windowSize], the position of the minimal element of
// rank[w:w+windowSize], using a monotonic deque. Ties are broken by leftmost
// position: the deque only evicts a trailing entry when the incoming value is
// strictly smaller, so an earlier entry with an equal value is never displaced.
func slidingWindowMinPositions(rank []uint32, windowSize int) []int {
	n := len(rank) - windowSize + 1
	if n <= 0 {
		return nil
	}
	out := make([]int, n)
	deque := make([]int, 0, len(rank))
	for i, v := range rank {
		for len(deque) > 0 && rank[deque[len(deque)-1]] > v {
			deque = deque[:len(deque)-1]
		}
		deque = append(deque, i)
		if deque[0] <= i-windowSize {
			deque = deque[1:]
		}
		if i >= windowSize-1 {
			out[i-windowSize+1] = deque[0]
		}
	}
	return out
}

package pseudoalign

import (
	"github.com/grailbio/base/log"
	"github.com/opencoff/go-chd"
	"github.com/pkg/errors"
)

const sentinelSlot = ^uint32(0)

// PerfectHashIndex is the MPHF over every kmer in a compressed graph, plus
// the two parallel (node_id, offset) tables spec.md 4.5 describes. Lookups
// are one CHD probe plus two array reads; false positives (a foreign kmer
// landing on some slot) are expected and must be rejected by the caller via
// the verification step in spec.md 4.6 — PerfectHashIndex itself does not
// store keys, so it cannot tell the difference on its own.
type PerfectHashIndex struct {
	KmerLength int
	Chd        *chd.Chd
	NodeIDs    []uint32
	Offsets    []uint32
}

// BuildIndex implements C6: it enumerates every kmer in every node of g,
// builds a CHD perfect hash over them with the configured load
// factor, then fills NodeIDs/Offsets by re-walking the graph. It is a fatal
// error (spec.md 4.5 step 4, 7) for any graph kmer to fail to find a hash
// slot.
func BuildIndex(g *DebruijnGraph, opts Opts) (*PerfectHashIndex, error) {
	K := g.KmerLength
	builder, err := chd.New()
	if err != nil {
		return nil, errors.Wrap(err, "chd.New")
	}
	total := 0
	for _, n := range g.Nodes {
		for off := 0; off < n.NumKmers(K); off++ {
			if err := builder.Add(uint64(n.KmerAt(K, off))); err != nil {
				return nil, errors.Wrap(err, "chd.Add")
			}
			total++
		}
	}

	// opts.MPHFLoadFactor is a boomphf-style gamma (slots = gamma * keys,
	// gamma >= 1): the original's 1.7 means ~1.7 slots per key, trading space
	// for faster construction. go-chd's Freeze takes the reciprocal
	// convention (load = keys / slots, must be in (0, 1]), so invert it here.
	c, err := builder.Freeze(1.0 / opts.MPHFLoadFactor)
	if err != nil {
		return nil, errors.Wrap(err, "chd.Freeze")
	}

	// CHD is not exactly minimal: c.Len() may exceed total. Size the tables to
	// the hash's own slot count rather than total, documented as a deliberate
	// deviation from the original's exactly-minimal boomphf table sizing.
	size := c.Len()
	nodeIDs := make([]uint32, size)
	offsets := make([]uint32, size)
	for i := range nodeIDs {
		nodeIDs[i] = sentinelSlot
		offsets[i] = sentinelSlot
	}

	for nodeIdx, n := range g.Nodes {
		for off := 0; off < n.NumKmers(K); off++ {
			k := n.KmerAt(K, off)
			slot := c.Find(uint64(k))
			if slot >= uint64(size) {
				log.Panicf("pseudoalign: kmer %d hashed to out-of-range slot %d (table size %d)", k, slot, size)
			}
			nodeIDs[slot] = uint32(nodeIdx)
			offsets[slot] = uint32(off)
		}
	}

	log.Printf("pseudoalign: built perfect hash over %d kmers (table size %d)", total, size)
	return &PerfectHashIndex{KmerLength: K, Chd: c, NodeIDs: nodeIDs, Offsets: offsets}, nil
}

// Lookup returns the (node, offset) a kmer hashes to. The caller MUST verify
// the returned location actually holds this kmer (spec.md 4.6 step 2) before
// trusting it: ok here only means "found a slot", not "this kmer is real".
func (idx *PerfectHashIndex) Lookup(k Kmer) (nodeID, offset uint32, ok bool) {
	if len(idx.NodeIDs) == 0 {
		// An index over an empty graph has no slots at all; Chd.Find would
		// divide by its zero table length.
		return 0, 0, false
	}
	slot := idx.Chd.Find(uint64(k))
	if slot >= uint64(len(idx.NodeIDs)) {
		return 0, 0, false
	}
	n := idx.NodeIDs[slot]
	if n == sentinelSlot {
		return 0, 0, false
	}
	return n, idx.Offsets[slot], true
}

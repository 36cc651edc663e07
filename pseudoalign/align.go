package pseudoalign

// align.go implements C7, the pseudoaligner. It is the Go counterpart of
// work_queue.rs's map(): walk the read's kmers via the perfect hash, verify
// and extend each hit by direct base comparison, collect per-node color
// sets, and intersect them.

import "github.com/grailbio/base/log"

// MapResult is the outcome of aligning one read: the colors (reference ids)
// consistent with every matched kmer, and the number of read bases the
// alignment accounted for.
type MapResult struct {
	Colors   []uint32
	Coverage int
}

// Map implements spec.md 4.6. It returns (nil, false) if the read
// contributes no kmer to any node.
func Map(read string, g *DebruijnGraph, idx *PerfectHashIndex, summarizer *Summarizer) (*MapResult, bool) {
	K := g.KmerLength
	if len(read) < K {
		return nil, false
	}

	var matchedSets [][]uint32
	coverage := 0
	pos := 0
	for pos <= len(read)-K {
		k := asciiToKmer(read[pos : pos+K])
		if k == invalidKmer {
			pos++
			continue
		}
		nodeID, off, ok := idx.Lookup(k)
		if !ok {
			pos++
			continue
		}
		node := g.Nodes[nodeID]
		if node.KmerAt(K, int(off)) != k {
			// MPHF aliasing: this kmer was never inserted into the index.
			pos++
			continue
		}

		coverage += K
		pos += K

		for pos < len(read) && int(off)+K < len(node.Seq) {
			if read[pos] != node.Seq[int(off)+K] {
				break
			}
			coverage++
			pos++
			off++
		}

		matchedSets = append(matchedSets, summarizer.Colors(node.EqClass).IDs)
	}

	if len(matchedSets) == 0 {
		if coverage != 0 {
			log.Panicf("pseudoalign: nonzero coverage with no matched node, implementation bug")
		}
		return nil, false
	}

	return &MapResult{Colors: intersectAll(matchedSets), Coverage: coverage}, true
}

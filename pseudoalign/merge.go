package pseudoalign

import "github.com/grailbio/base/log"

// merge.go implements C5: concatenating shard BaseGraphs and re-running path
// compression over the union, per spec.md 4.4.

// MergeShards unions a set of per-shard BaseGraphs into one BaseGraph ready
// for compression. A kmer observed in more than one shard (possible at shard
// boundaries, spec.md 4.4) has its Exts merged across shards; per the
// invariant enforced by the shared Summarizer (spec.md 5), every shard must
// agree on that kmer's EqClassId, and a mismatch is a fatal invariant
// violation rather than something the merger can paper over.
func MergeShards(shards []*BaseGraph, kmerLength int) *BaseGraph {
	merged := NewBaseGraph(kmerLength)
	for _, shard := range shards {
		for k, entry := range shard.Kmers {
			if existing, ok := merged.Kmers[k]; ok {
				if existing.EqClass != entry.EqClass {
					log.Panicf("kmer %v assigned inconsistent eq-classes across shards: %d vs %d", k, existing.EqClass, entry.EqClass)
				}
				existing.Exts = existing.Exts.Merge(entry.Exts)
				merged.Kmers[k] = existing
				continue
			}
			merged.Kmers[k] = entry
		}
	}
	return merged
}

// FinalizeGraph re-applies path compression over the merged graph, producing
// the final compressed DebruijnGraph (spec.md 4.4's "re-apply path
// compression with the same equal-color predicate").
func FinalizeGraph(merged *BaseGraph) *DebruijnGraph {
	return compress(merged)
}

package pseudoalign

// graph.go implements the node type, the uncompressed per-shard BaseGraph
// (C4), and the path-compression pass shared by the shard assembler and the
// C5 merger.

// nodeEntry is one surviving kmer after filtering (C3): its observed
// extensions and the color class of the references it was found in.
type nodeEntry struct {
	Exts    Exts
	EqClass EqClassId
}

// BaseGraph is the uncompressed De Bruijn graph: one entry per surviving
// kmer, keyed by the kmer itself. Per spec.md 4.3, "each node is initially
// one k-mer but edges follow from Exts" — adjacency is derived on demand via
// nextKmer/prevKmer rather than stored explicitly, avoiding a pointer graph
// (spec.md Design Notes).
type BaseGraph struct {
	KmerLength int
	Kmers      map[Kmer]nodeEntry
}

// NewBaseGraph creates an empty BaseGraph for the given kmer length.
func NewBaseGraph(kmerLength int) *BaseGraph {
	return &BaseGraph{KmerLength: kmerLength, Kmers: map[Kmer]nodeEntry{}}
}

// Node is a maximal unitig: a compressed run of kmers that are pairwise
// unambiguously joined and share one EqClassId (spec.md Data Model, "Graph
// node"). Seq is the node's full base sequence, length >= K.
type Node struct {
	Seq       string
	LeftExts  Exts // extensions observed off the leftmost kmer's left side
	RightExts Exts // extensions observed off the rightmost kmer's right side
	EqClass   EqClassId
}

// NumKmers returns how many overlapping K-length kmers this node contains.
func (n Node) NumKmers(K int) int { return len(n.Seq) - K + 1 }

// KmerAt returns the kmer starting at the given offset within the node.
func (n Node) KmerAt(K, offset int) Kmer {
	return asciiToKmer(n.Seq[offset : offset+K])
}

// DebruijnGraph is the final, compressed graph (C5's output): a dense vector
// of nodes, numbered [0, N).
type DebruijnGraph struct {
	KmerLength int
	Nodes      []Node
}

// compress performs path compression over bg using the equal-color
// predicate from spec.md 4.3: two adjacent kmers merge iff the join is
// unambiguous on both sides and they carry the same EqClassId. Grounded in
// the standard unitig-compaction walk (extend each unvisited kmer maximally
// in both directions), the Go counterpart of the original's
// compress_kmers_with_hash / compress_graph passes.
func compress(bg *BaseGraph) *DebruijnGraph {
	K := bg.KmerLength
	visited := make(map[Kmer]bool, len(bg.Kmers))
	var nodes []Node

	for seed := range bg.Kmers {
		if visited[seed] {
			continue
		}
		seedEntry := bg.Kmers[seed]
		visited[seed] = true

		// Extend right.
		seq := kmerToASCII(seed, K)
		cur := seed
		curExts := seedEntry.Exts
		for curExts.NumExtsRight() == 1 {
			base := curExts.SingleExtRight()
			next := nextKmer(cur, K, base)
			nextEntry, ok := bg.Kmers[next]
			if !ok || visited[next] || nextEntry.EqClass != seedEntry.EqClass || nextEntry.Exts.NumExtsLeft() != 1 {
				break
			}
			seq += string(base)
			visited[next] = true
			cur = next
			curExts = nextEntry.Exts
		}
		rightExts := curExts

		// Extend left from the original seed.
		cur = seed
		curExts = seedEntry.Exts
		for curExts.NumExtsLeft() == 1 {
			base := curExts.SingleExtLeft()
			prev := prevKmer(cur, K, base)
			prevEntry, ok := bg.Kmers[prev]
			if !ok || visited[prev] || prevEntry.EqClass != seedEntry.EqClass || prevEntry.Exts.NumExtsRight() != 1 {
				break
			}
			seq = string(base) + seq
			visited[prev] = true
			cur = prev
			curExts = prevEntry.Exts
		}
		leftExts := curExts

		nodes = append(nodes, Node{
			Seq:       seq,
			LeftExts:  leftExts,
			RightExts: rightExts,
			EqClass:   seedEntry.EqClass,
		})
	}
	return &DebruijnGraph{KmerLength: K, Nodes: nodes}
}

package pseudoalign

// build.go orchestrates C2 through C6 into one Build() call: partition every
// reference in parallel, coalesce the sorted tuples into shards, assemble
// and filter each shard in parallel sharing one Summarizer, merge and
// compress, then build the perfect-hash index. The worker-pool shape
// (reqCh + sync.WaitGroup, a fixed MAX_WORKER-sized pool) mirrors
// gene_db.go's ReadTranscriptome and cmd/bio-fusion/main.go's processFASTQ.

import (
	"context"
	"sort"
	"sync"

	"github.com/grailbio/base/log"
	"github.com/grailbio/pseudoalign/encoding/fasta"
	"github.com/pkg/errors"
)

// Reference is one named input sequence, already split on runs of 'N' into
// ACGT-only contigs (spec.md 4.1 edge case).
type Reference struct {
	SeqID int
	Name  string
	Seq   string
}

// ReadReferences loads every sequence out of a FASTA file, in seq-id order,
// splitting on N as spec.md 4.1 requires. The returned names slice is in the
// same order, for persistence into genes.txt.
func ReadReferences(ctx context.Context, f fasta.Fasta) ([]Reference, []string) {
	var refs []Reference
	names := f.SeqNames()
	for seqID, name := range names {
		length, err := f.Len(name)
		if err != nil {
			log.Panicf("len %s: %v", name, err)
		}
		seq, err := f.Get(name, 0, length)
		if err != nil {
			log.Panicf("get %s: %v", name, err)
		}
		for _, part := range splitOnN(seq) {
			refs = append(refs, Reference{SeqID: seqID, Name: name, Seq: part.seq})
		}
	}
	return refs, names
}

// Build runs the full indexing pipeline (C2-C6) over refs and returns a
// ready-to-persist Index. The number of distinct top-level sequences
// (len(names)) determines the color width chosen (spec.md 4.8).
func Build(ctx context.Context, refs []Reference, names []string, opts Opts) (*Index, Stats, error) {
	if opts.KmerLength > 32 {
		return nil, Stats{}, errors.Errorf("kmer length %d exceeds the 32-base capacity of the packed kmer representation", opts.KmerLength)
	}
	if opts.MinimizerLength > 8 {
		return nil, Stats{}, errors.Errorf("minimizer length %d yields bucket ids exceeding 16 bits", opts.MinimizerLength)
	}
	if opts.MinimizerLength >= opts.KmerLength {
		return nil, Stats{}, errors.Errorf("minimizer length %d must be shorter than kmer length %d", opts.MinimizerLength, opts.KmerLength)
	}
	width, err := chooseColorWidth(len(names))
	if err != nil {
		return nil, Stats{}, err
	}

	var stats Stats
	stats.SeqsRead = int64(len(names))

	// C2: partition every reference in parallel.
	tuples := partitionAll(refs, opts)

	// Sort by bucket id so tuples sharing a minimizer land in one shard
	// (spec.md 5, "globally sorted by bucket_id").
	sort.Slice(tuples, func(i, j int) bool { return tuples[i].BucketID < tuples[j].BucketID })

	contigByID := make(map[uint32]string, len(refs))
	for i, r := range refs {
		contigByID[uint32(i)] = r.Seq
	}
	contigOf := func(seqID uint32) string { return contigByID[seqID] }

	// C3+C4: assemble shards (contiguous runs of whole buckets, see
	// shardTuples) in parallel, sharing one Summarizer.
	summarizer := NewSummarizer()
	shards := shardTuples(tuples, opts.ShardMinTuples)
	baseGraphs, shardStats := assembleShardsParallel(shards, contigOf, opts, summarizer, width)
	stats.Merge(shardStats)

	// C5: merge and recompress.
	merged := MergeShards(baseGraphs, opts.KmerLength)
	stats.NodesBeforeCompression = int64(len(merged.Kmers))
	graph := FinalizeGraph(merged)
	stats.NodesAfterCompression = int64(len(graph.Nodes))
	stats.EqClassesMade = int64(summarizer.Len())

	// C6: perfect-hash index.
	phf, err := BuildIndex(graph, opts)
	if err != nil {
		return nil, stats, err
	}

	log.Printf("pseudoalign: build complete: %d references, %d nodes, %d eq-classes, color width %s, %d shards",
		len(names), len(graph.Nodes), summarizer.Len(), width, len(shards))

	return &Index{
		Width:     width,
		EqClasses: summarizer.All(),
		GeneNames: names,
		Graph:     graph,
		PHF:       phf,
	}, stats, nil
}

func partitionAll(refs []Reference, opts Opts) []MSPTuple {
	type job struct {
		idx int
		ref Reference
	}
	jobCh := make(chan job, 1024)
	resultsMu := sync.Mutex{}
	var results []MSPTuple

	wg := sync.WaitGroup{}
	for i := 0; i < opts.MaxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				local := partitionContig(j.ref.Seq, uint32(j.idx), uint32(j.ref.SeqID), opts)
				resultsMu.Lock()
				results = append(results, local...)
				resultsMu.Unlock()
			}
		}()
	}
	for i, ref := range refs {
		jobCh <- job{idx: i, ref: ref}
	}
	close(jobCh)
	wg.Wait()
	return results
}

// shardTuples groups the bucket-sorted tuple list into contiguous runs of at
// least minSize tuples, coalescing adjacent buckets as needed, per spec.md 5.
// A bucket is never split across two shards, and the last shard holds
// whatever tuples remain, so it may have fewer than minSize.
func shardTuples(tuples []MSPTuple, minSize int) [][]MSPTuple {
	if len(tuples) == 0 {
		return nil
	}
	var shards [][]MSPTuple
	start := 0
	for i := 1; i <= len(tuples); i++ {
		if i == len(tuples) || (i-start >= minSize && tuples[i].BucketID != tuples[i-1].BucketID) {
			shards = append(shards, tuples[start:i])
			start = i
		}
	}
	return shards
}

func assembleShardsParallel(shards [][]MSPTuple, contigOf func(uint32) string, opts Opts, summarizer *Summarizer, width ColorWidth) ([]*BaseGraph, Stats) {
	shardCh := make(chan []MSPTuple, len(shards))
	resultsMu := sync.Mutex{}
	var results []*BaseGraph
	var stats Stats

	wg := sync.WaitGroup{}
	for i := 0; i < opts.MaxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range shardCh {
				bg, shardStats := FilterShard(s, contigOf, opts, summarizer, width)
				resultsMu.Lock()
				results = append(results, bg)
				stats.Merge(shardStats)
				resultsMu.Unlock()
			}
		}()
	}
	for _, s := range shards {
		shardCh <- s
	}
	close(shardCh)
	wg.Wait()
	return results, stats
}

package pseudoalign

import "runtime"

// Opts controls index construction and read mapping. Field comments
// cross-reference the corresponding flag in the original pseudoaligner this
// package's algorithms are modeled on, the way bio-fusion's Opts documents Go
// flags against the C++ implementation's flags.
type Opts struct {
	// KmerLength is K, the graph kmer length. The original hardcodes
	// KmerType = Kmer32.
	KmerLength int

	// MinimizerLength is P, the minimizer (p-mer) length used by the MSP
	// partitioner. The original hardcodes this to 6 in msp_sequence.
	MinimizerLength int

	// MinKmerObservations is the minimum number of times a kmer must be
	// observed across all shard input before it survives filtering.
	// Go: -min-kmers, original: MIN_KMERS, default 1.
	MinKmerObservations int

	// Stranded, if true, means kmers are indexed as observed and are not
	// canonicalized to their reverse-complement-minimal form. The original
	// pseudoaligner always runs stranded. Stranded=false canonicalizes the
	// reference kmers in FilterShard; Map does not consult this option and
	// looks read kmers up as observed, without canonicalizing them.
	Stranded bool

	// ReportAll is carried in Opts with a default of false; no code in this
	// package reads it, so it changes neither the index nor mapping results.
	ReportAll bool

	// MaxWorkers bounds the worker pool used for partitioning and shard
	// assembly. BuildIndex builds the perfect hash on a single goroutine, and
	// the CLI maps reads on a single goroutine. Go: -max-workers, default
	// runtime.NumCPU(), mirroring bio-fusion main.go's parallelism default.
	MaxWorkers int

	// MPHFLoadFactor is the gamma parameter passed to the perfect-hash
	// builder. The original calls boomphf::Mphf::new_parallel_with_key(1.7, ...).
	MPHFLoadFactor float64

	// ShardMinTuples is the minimum number of minimizer-bucket tuples grouped
	// into one assembly shard.
	ShardMinTuples int
}

// DefaultOpts mirrors the original pseudoaligner's hardcoded defaults.
var DefaultOpts = Opts{
	KmerLength:          32,
	MinimizerLength:     6,
	MinKmerObservations: 1,
	Stranded:            true,
	ReportAll:           false,
	MaxWorkers:          runtime.NumCPU(),
	MPHFLoadFactor:      1.7,
	ShardMinTuples:      1000,
}

// Command bio-pseudoalign builds a colored De Bruijn graph index over a
// reference FASTA and pseudoaligns FASTQ reads against it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/pseudoalign/encoding/fasta"
	"github.com/grailbio/pseudoalign/encoding/fastq"
	"github.com/grailbio/pseudoalign/pseudoalign"
)

var (
	makeFlag  = flag.Bool("make", false, "build a new index instead of querying one")
	fastaFlag = flag.String("fasta", "", "reference FASTA file (build mode)")
	readsFlag = flag.String("reads", "", "FASTQ file of reads to map (query mode)")
	indexFlag = flag.String("index", "", "index directory (required in both modes)")
	unmapped  = flag.String("unmapped", "", "write unmapped reads to this FASTQ file (query mode)")
	kFlag     = flag.Int("k", pseudoalign.DefaultOpts.KmerLength, "kmer length")
	minKmers  = flag.Int("min-kmers", pseudoalign.DefaultOpts.MinKmerObservations, "drop kmers observed fewer than this many times (build mode)")
	workers   = flag.Int("max-workers", runtime.NumCPU(), "max worker goroutines")
	verbose   = flag.Bool("v", false, "report periodic memory stats during build")
)

func usage() {
	fmt.Fprintf(os.Stderr, `bio-pseudoalign builds and queries a colored De Bruijn graph index.

Build mode:
  bio-pseudoalign --make --fasta REF.fa --index INDEXDIR

Query mode:
  bio-pseudoalign --reads READS.fq --index INDEXDIR [--unmapped UNMAPPED.fq]

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	shutdown := grail.Init()
	defer shutdown()

	if *indexFlag == "" {
		log.Error.Printf("--index is required")
		usage()
		os.Exit(1)
	}

	ctx := vcontext.Background()
	opts := pseudoalign.DefaultOpts
	opts.KmerLength = *kFlag
	opts.MinKmerObservations = *minKmers
	opts.MaxWorkers = *workers

	if *makeFlag {
		if *fastaFlag == "" {
			log.Error.Printf("--make requires --fasta")
			os.Exit(1)
		}
		if err := runBuild(ctx, *fastaFlag, *indexFlag, opts); err != nil {
			log.Error.Printf("build failed: %v", err)
			os.Exit(1)
		}
		return
	}

	if *readsFlag == "" {
		log.Error.Printf("query mode requires --reads")
		os.Exit(1)
	}
	if err := runQuery(ctx, *readsFlag, *indexFlag, *unmapped); err != nil {
		log.Error.Printf("query failed: %v", err)
		os.Exit(1)
	}
}

func runBuild(ctx context.Context, fastaPath, indexDir string, opts pseudoalign.Opts) error {
	if *verbose {
		stop := startMemStatsSampler()
		defer stop()
	}

	in, err := os.Open(fastaPath)
	if err != nil {
		return err
	}
	defer in.Close()

	f, err := fasta.New(in, fasta.OptClean)
	if err != nil {
		return err
	}

	start := time.Now()
	refs, names := pseudoalign.ReadReferences(ctx, f)
	idx, stats, err := pseudoalign.Build(ctx, refs, names, opts)
	if err != nil {
		return err
	}
	stats.BuildDuration = time.Since(start)
	log.Printf("build stats: %+v", stats)

	return pseudoalign.Dump(ctx, indexDir, idx)
}

func runQuery(ctx context.Context, readsPath, indexDir, unmappedPath string) error {
	idx, err := pseudoalign.Load(ctx, indexDir)
	if err != nil {
		return err
	}
	summarizer := pseudoalign.NewSummarizer()
	for _, c := range idx.EqClasses {
		summarizer.Intern(c.IDs, c.Width)
	}

	in, err := os.Open(readsPath)
	if err != nil {
		return err
	}
	defer in.Close()

	// The aligner only consults the sequence field; the other fields are
	// scanned only when they have to be written back out.
	fields := fastq.Seq
	var unmappedW *fastq.Writer
	if unmappedPath != "" {
		out, err := os.Create(unmappedPath)
		if err != nil {
			return err
		}
		defer out.Close()
		unmappedW = fastq.NewWriter(out)
		fields = fastq.All
	}

	scanner := fastq.NewScanner(in, fields)
	var read fastq.Read
	var stats pseudoalign.Stats
	for scanner.Scan(&read) {
		result, ok := pseudoalign.Map(read.Seq, idx.Graph, idx.PHF, summarizer)
		if !ok {
			stats.ReadsUnmapped++
			if unmappedW != nil {
				if err := unmappedW.Write(&read); err != nil {
					return err
				}
			}
			continue
		}
		stats.ReadsMapped++
		printResult(idx.GeneNames, result)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	log.Printf("query stats: mapped=%d unmapped=%d", stats.ReadsMapped, stats.ReadsUnmapped)
	return nil
}

func printResult(geneNames []string, r *pseudoalign.MapResult) {
	names := make([]string, len(r.Colors))
	for i, id := range r.Colors {
		if int(id) < len(geneNames) {
			names[i] = geneNames[id]
		}
	}
	sort.Strings(names)
	fmt.Printf("%s\t%d\n", strings.Join(names, ","), r.Coverage)
}

func startMemStatsSampler() func() {
	done := make(chan struct{})
	go func() {
		var ms runtime.MemStats
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				runtime.ReadMemStats(&ms)
				log.Printf("memstats: alloc=%dMB sys=%dMB numGC=%d",
					ms.Alloc/(1<<20), ms.Sys/(1<<20), ms.NumGC)
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

package pseudoalign

// persist.go implements C8: the on-disk index directory layout from
// spec.md 4.7. It follows the original's utils.rs Index::dump/read — one
// file per logical section — using encoding/gob for the blobs, the same
// idiom as cmd/bio-fusion/io.go's encodeGOB/decodeGOB, routed through
// github.com/grailbio/base/file so the directory can live on any of the
// backends that package supports (local disk, or anything else a
// file.Implementation is registered for).

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/opencoff/go-chd"
	"github.com/pkg/errors"
)

const (
	typeFile    = "type.bin"
	eqClassFile = "eq_classes.bin"
	genesFile   = "genes.txt"
	graphFile   = "dbg.bin"
	phfFile     = "phf.bin"
)

// Index is the full in-memory representation of a built index: everything
// needed to serve Map() queries.
type Index struct {
	Width     ColorWidth
	EqClasses []Colors
	GeneNames []string
	Graph     *DebruijnGraph
	PHF       *PerfectHashIndex
}

// phfTables is the gob-encoded trailer written after the CHD's own binary
// section in phf.bin.
type phfTables struct {
	KmerLength int
	NodeIDs    []uint32
	Offsets    []uint32
}

// Dump writes idx to dir, creating it if necessary, per spec.md 4.7's
// directory layout.
func Dump(ctx context.Context, dir string, idx *Index) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "mkdir %s", dir)
	}

	if err := writeFile(ctx, filepath.Join(dir, typeFile), func(w io.Writer) error {
		_, err := w.Write([]byte{byte(idx.Width)})
		return err
	}); err != nil {
		return err
	}

	if err := writeFile(ctx, filepath.Join(dir, eqClassFile), func(w io.Writer) error {
		return gob.NewEncoder(w).Encode(idx.EqClasses)
	}); err != nil {
		return err
	}

	if err := writeFile(ctx, filepath.Join(dir, genesFile), func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		for _, name := range idx.GeneNames {
			if _, err := bw.WriteString(name); err != nil {
				return err
			}
			if err := bw.WriteByte('\n'); err != nil {
				return err
			}
		}
		return bw.Flush()
	}); err != nil {
		return err
	}

	if err := writeFile(ctx, filepath.Join(dir, graphFile), func(w io.Writer) error {
		return gob.NewEncoder(w).Encode(idx.Graph)
	}); err != nil {
		return err
	}

	if err := writeFile(ctx, filepath.Join(dir, phfFile), func(w io.Writer) error {
		var chdBuf bytes.Buffer
		if _, err := idx.PHF.Chd.MarshalBinary(&chdBuf); err != nil {
			return err
		}
		var lenBuf [8]byte
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(chdBuf.Len()))
		if _, err := w.Write(lenBuf[:]); err != nil {
			return err
		}
		if _, err := w.Write(chdBuf.Bytes()); err != nil {
			return err
		}
		return gob.NewEncoder(w).Encode(phfTables{
			KmerLength: idx.PHF.KmerLength,
			NodeIDs:    idx.PHF.NodeIDs,
			Offsets:    idx.PHF.Offsets,
		})
	}); err != nil {
		return err
	}

	log.Printf("pseudoalign: wrote index to %s (%d nodes, %d eq-classes, width %s)",
		dir, len(idx.Graph.Nodes), len(idx.EqClasses), idx.Width)
	return nil
}

func writeFile(ctx context.Context, path string, fn func(io.Writer) error) error {
	f, err := file.Create(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := fn(f.Writer(ctx)); err != nil {
		_ = f.Close(ctx)
		return errors.Wrapf(err, "write %s", path)
	}
	return errors.Wrapf(f.Close(ctx), "close %s", path)
}

func readFile(ctx context.Context, path string, fn func(io.Reader) error) error {
	f, err := file.Open(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	if err := fn(f.Reader(ctx)); err != nil {
		_ = f.Close(ctx)
		return errors.Wrapf(err, "read %s", path)
	}
	return errors.Wrapf(f.Close(ctx), "close %s", path)
}

// Load reads an index directory written by Dump. It refuses a type.bin byte
// that names no known color width and any missing file, per spec.md 7's
// index-corruption handling. Load takes no expected width from the caller
// and does not compare type.bin against the widths of the loaded eq-classes.
func Load(ctx context.Context, dir string) (*Index, error) {
	var width ColorWidth
	if err := readFile(ctx, filepath.Join(dir, typeFile), func(r io.Reader) error {
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		width = ColorWidth(b[0])
		return nil
	}); err != nil {
		return nil, err
	}
	if width != ColorWidthU8 && width != ColorWidthU16 && width != ColorWidthU32 {
		return nil, errors.Errorf("%s: unknown color width %d", typeFile, width)
	}

	var eqClasses []Colors
	if err := readFile(ctx, filepath.Join(dir, eqClassFile), func(r io.Reader) error {
		return gob.NewDecoder(r).Decode(&eqClasses)
	}); err != nil {
		return nil, err
	}

	var names []string
	if err := readFile(ctx, filepath.Join(dir, genesFile), func(r io.Reader) error {
		buf, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		for _, line := range strings.Split(strings.TrimRight(string(buf), "\n"), "\n") {
			names = append(names, line)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	var graph DebruijnGraph
	if err := readFile(ctx, filepath.Join(dir, graphFile), func(r io.Reader) error {
		return gob.NewDecoder(r).Decode(&graph)
	}); err != nil {
		return nil, err
	}

	var phf PerfectHashIndex
	if err := readFile(ctx, filepath.Join(dir, phfFile), func(r io.Reader) error {
		var lenBuf [8]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return err
		}
		chdBuf := make([]byte, binary.LittleEndian.Uint64(lenBuf[:]))
		if _, err := io.ReadFull(r, chdBuf); err != nil {
			return err
		}
		c := &chd.Chd{}
		if err := c.UnmarshalBinaryMmap(chdBuf); err != nil {
			return errors.Wrap(err, "unmarshal phf")
		}
		var tables phfTables
		if err := gob.NewDecoder(r).Decode(&tables); err != nil {
			return err
		}
		phf = PerfectHashIndex{KmerLength: tables.KmerLength, Chd: c, NodeIDs: tables.NodeIDs, Offsets: tables.Offsets}
		return nil
	}); err != nil {
		return nil, err
	}

	return &Index{
		Width:     width,
		EqClasses: eqClasses,
		GeneNames: names,
		Graph:     &graph,
		PHF:       &phf,
	}, nil
}

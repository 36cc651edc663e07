package pseudoalign

import (
	"github.com/grailbio/base/simd"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/pseudoalign/biosimd"
)

const invalidBaseBits = uint8(255)

var (
	asciiToBaseMap           [256]uint8
	asciiToComplementBaseMap [256]uint8
)

func init() {
	for i := range asciiToBaseMap {
		asciiToBaseMap[i] = invalidBaseBits
		asciiToComplementBaseMap[i] = invalidBaseBits
	}
	asciiToBaseMap['A'], asciiToBaseMap['a'] = 0, 0
	asciiToBaseMap['C'], asciiToBaseMap['c'] = 1, 1
	asciiToBaseMap['G'], asciiToBaseMap['g'] = 2, 2
	asciiToBaseMap['T'], asciiToBaseMap['t'] = 3, 3

	asciiToComplementBaseMap['A'], asciiToComplementBaseMap['a'] = 3, 3
	asciiToComplementBaseMap['C'], asciiToComplementBaseMap['c'] = 2, 2
	asciiToComplementBaseMap['G'], asciiToComplementBaseMap['g'] = 1, 1
	asciiToComplementBaseMap['T'], asciiToComplementBaseMap['t'] = 0, 0
}

// baseToASCII maps the 2-bit encoding back to an upper-case base letter.
var baseToASCII = [4]byte{'A', 'C', 'G', 'T'}

// Kmer is a compact 2-bit-per-base encoding of a sequence of up to 32 bases,
// packed high-to-low in scan order (the most recently scanned base occupies
// the low two bits).
type Kmer uint64

// invalidKmer is returned by asciiToKmer when the input contains a base
// outside {A,C,G,T}.
const invalidKmer = Kmer(0xffffffffffffffff)

// Exts records, for a single kmer, which bases have been observed extending
// it on the left (low nibble) and right (high nibble). Bit i of a nibble
// (0<=i<4) corresponds to base i in {A,C,G,T}.
type Exts uint8

// Empty returns true if this k-mer has never been observed to extend in
// either direction.
func (e Exts) Empty() bool { return e == 0 }

func (e Exts) left() uint8  { return uint8(e) & 0xf }
func (e Exts) right() uint8 { return uint8(e) >> 4 }

// NumExtsLeft and NumExtsRight count the distinct bases observed extending
// this kmer in each direction. A count of exactly 1 means the join on that
// side is unambiguous.
func (e Exts) NumExtsLeft() int  { return popcount4(e.left()) }
func (e Exts) NumExtsRight() int { return popcount4(e.right()) }

func popcount4(b uint8) int {
	n := 0
	for b != 0 {
		n += int(b & 1)
		b >>= 1
	}
	return n
}

// SingleExtLeft and SingleExtRight return the sole extension base on that
// side. REQUIRES: the corresponding NumExts* call returns 1.
func (e Exts) SingleExtLeft() byte  { return baseToASCII[singleBit(e.left())] }
func (e Exts) SingleExtRight() byte { return baseToASCII[singleBit(e.right())] }

func singleBit(b uint8) uint8 {
	for i := uint8(0); i < 4; i++ {
		if b&(1<<i) != 0 {
			return i
		}
	}
	panic("singleBit called on empty extension set")
}

// Merge ORs two extension sets together, as needed when the same kmer is
// observed from multiple sequences or multiple shards.
func (e Exts) Merge(o Exts) Exts { return e | o }

// mkExts builds an Exts value from optional left/right extension bytes (0 if
// absent, as at a sequence boundary).
func mkExts(left, right byte) Exts {
	var e Exts
	if b := asciiToBaseMap[left]; b != invalidBaseBits {
		e |= Exts(1 << b)
	}
	if b := asciiToBaseMap[right]; b != invalidBaseBits {
		e |= Exts(uint8(1<<b) << 4)
	}
	return e
}

// extLeftBit and extRightBit build a single-sided Exts contribution from one
// observed flanking base (0 if the base is absent or not ACGT).
func extLeftBit(b byte) Exts {
	if bits := asciiToBaseMap[b]; bits != invalidBaseBits {
		return Exts(1 << bits)
	}
	return 0
}

func extRightBit(b byte) Exts {
	if bits := asciiToBaseMap[b]; bits != invalidBaseBits {
		return Exts(uint8(1<<bits) << 4)
	}
	return 0
}

// nextKmer extends k to the right by one base within a K-base window,
// dropping the oldest base. prevKmer is the symmetric left extension.
func nextKmer(k Kmer, K int, base byte) Kmer {
	bits := asciiToBaseMap[base]
	mask := ^(Kmer(0xffffffffffffffff) << Kmer(K*2))
	return ((k << 2) | Kmer(bits)) & mask
}

func prevKmer(k Kmer, K int, base byte) Kmer {
	bits := asciiToBaseMap[base]
	return (k >> 2) | (Kmer(bits) << uint(2*(K-1)))
}

func asciiToKmer(seq string) Kmer {
	var k Kmer
	for _, ch := range []byte(seq) {
		b := asciiToBaseMap[ch]
		if b == invalidBaseBits {
			return invalidKmer
		}
		k = (k << 2) | Kmer(b)
	}
	return k
}

// kmerToASCII decodes a kmer of the given length back to an upper-case
// ACGT string. Used when materializing node sequences for persistence and
// debugging.
func kmerToASCII(k Kmer, length int) string {
	buf := make([]byte, length)
	for i := length - 1; i >= 0; i-- {
		buf[i] = baseToASCII[k&3]
		k >>= 2
	}
	return string(buf)
}

func nextAmbiguousPosition(seq string, si int) int {
	for i := si; i < len(seq); i++ {
		if asciiToBaseMap[seq[i]] == invalidBaseBits {
			return i
		}
	}
	return len(seq)
}

// kmerAtPos is a single scanned kmer, together with its canonical (strand-
// minimal) form when the caller runs in unstranded mode.
type kmerAtPos struct {
	pos                        int
	forward, reverseComplement Kmer
}

func (km kmerAtPos) minKmer() Kmer {
	if km.forward < km.reverseComplement {
		return km.forward
	}
	return km.reverseComplement
}

// kmerizer scans every overlapping kmer of a fixed length out of a DNA
// string, skipping windows that contain a non-ACGT base. It amortizes the
// common case (the next base is unambiguous) into an O(1) rolling update,
// falling back to a full rescan only after an ambiguous base.
type kmerizer struct {
	kmerLength int
	tmpSeq     []byte
	mask       Kmer // low 2*kmerLength bits set

	seq string
	si  int
	cur kmerAtPos
}

func newKmerizer(kmerLength int) *kmerizer {
	return &kmerizer{
		kmerLength: kmerLength,
		mask:       ^(Kmer(0xffffffffffffffff) << Kmer(kmerLength*2)),
	}
}

func (k *kmerizer) Reset(seq string) {
	k.seq = seq
	k.si = 0
}

// Scan advances to the next valid kmer, returning false once the sequence is
// exhausted. Call Get to retrieve the kmer found by the most recent Scan.
func (k *kmerizer) Scan() bool {
	if k.si > 0 && k.si+k.kmerLength <= len(k.seq) {
		nextCh := k.seq[k.si+k.kmerLength-1]
		if bits := asciiToBaseMap[nextCh]; bits != invalidBaseBits {
			k.cur.pos = k.si
			k.cur.forward = ((k.cur.forward << 2) | Kmer(bits)) & k.mask
			shift := (Kmer(k.kmerLength) - 1) * 2
			k.cur.reverseComplement = (k.cur.reverseComplement >> 2) | (Kmer(asciiToComplementBaseMap[nextCh]) << shift)
			k.si++
			return true
		}
	}

	for k.si+k.kmerLength <= len(k.seq) {
		forwardStr := k.seq[k.si : k.si+k.kmerLength]
		forwardKmer := asciiToKmer(forwardStr)
		if forwardKmer == invalidKmer {
			k.si = nextAmbiguousPosition(k.seq, k.si) + 1
			continue
		}
		simd.ResizeUnsafe(&k.tmpSeq, k.kmerLength)
		biosimd.ReverseComp8NoValidate(k.tmpSeq, gunsafe.StringToBytes(forwardStr))
		reverseKmer := asciiToKmer(gunsafe.BytesToString(k.tmpSeq))
		if reverseKmer == invalidKmer {
			panic("reverse complement of a clean sequence must be clean")
		}
		k.cur = kmerAtPos{pos: k.si, forward: forwardKmer, reverseComplement: reverseKmer}
		k.si++
		return true
	}
	return false
}

func (k *kmerizer) Get() kmerAtPos { return k.cur }

// splitOnN splits seq at runs of 'N'/'n', returning the maximal ACGT-only
// substrings together with their start offset in seq. This is the contig
// splitting every downstream component (C2 onward) assumes has already
// happened, per the reference sequence ingestion step.
func splitOnN(seq string) []struct {
	start int
	seq   string
} {
	var out []struct {
		start int
		seq   string
	}
	i := 0
	for i < len(seq) {
		if asciiToBaseMap[seq[i]] == invalidBaseBits {
			i++
			continue
		}
		start := i
		for i < len(seq) && asciiToBaseMap[seq[i]] != invalidBaseBits {
			i++
		}
		out = append(out, struct {
			start int
			seq   string
		}{start, seq[start:i]})
	}
	return out
}

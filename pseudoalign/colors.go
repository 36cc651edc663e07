package pseudoalign

import "github.com/pkg/errors"

// ColorWidth names the integer width chosen at build time to represent
// reference ids within an equivalence class list (spec.md 4.8). It is
// recorded verbatim in type.bin so a loader can refuse a width mismatch.
type ColorWidth uint8

const (
	ColorWidthU8 ColorWidth = iota
	ColorWidthU16
	ColorWidthU32
)

func (w ColorWidth) String() string {
	switch w {
	case ColorWidthU8:
		return "U8"
	case ColorWidthU16:
		return "U16"
	case ColorWidthU32:
		return "U32"
	default:
		return "unknown"
	}
}

// chooseColorWidth picks the narrowest width that can address numRefs
// distinct reference ids, per spec.md 4.8's capacity rule.
func chooseColorWidth(numRefs int) (ColorWidth, error) {
	switch {
	case numRefs <= 1<<8-1:
		return ColorWidthU8, nil
	case numRefs <= 1<<16-1:
		return ColorWidthU16, nil
	case uint64(numRefs) <= 1<<32-1:
		return ColorWidthU32, nil
	default:
		return 0, errors.Errorf("too many references (%d) for a 32-bit color width", numRefs)
	}
}

// Colors is a sorted, duplicate-free set of reference ids: the tagged union
// Colors = U8(...) | U16(...) | U32(...) from spec.md, Design Notes. The
// backing slice always holds uint32 in memory; Width only constrains what was
// guaranteed valid at build time and what gets persisted to disk.
type Colors struct {
	Width ColorWidth
	IDs   []uint32
}

// key returns a comparable representation of the color set suitable for use
// as a map key when interning.
func (c Colors) key() string {
	buf := make([]byte, 4*len(c.IDs))
	for i, id := range c.IDs {
		buf[4*i] = byte(id)
		buf[4*i+1] = byte(id >> 8)
		buf[4*i+2] = byte(id >> 16)
		buf[4*i+3] = byte(id >> 24)
	}
	return string(buf)
}

// intersectColors returns the sorted intersection of a and b. Both must already be
// sorted and duplicate-free.
func intersectColors(a, b []uint32) []uint32 {
	out := make([]uint32, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

// intersectAll computes the multi-way intersection of sorted, dedup color
// sets, per spec.md 4.6 step 4.
func intersectAll(sets [][]uint32) []uint32 {
	if len(sets) == 0 {
		return nil
	}
	result := sets[0]
	for _, s := range sets[1:] {
		result = intersectColors(result, s)
		if len(result) == 0 {
			break
		}
	}
	return result
}

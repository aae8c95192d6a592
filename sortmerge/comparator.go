package sortmerge

import "github.com/vbi-informatics/gecore/sam"

// Comparator returns a strict-weak-order "less" function for the
// given sort order, including the tie-breaks the spec calls out:
// by-name ties on lexicographic QNAME, then flag ordering, then the
// first-of-pair bit; by-coordinate ties on (ref-id, pos) with -1
// (unmapped) sorting last, then on the reverse-strand flag.
func Comparator(order SortOrder) sam.By {
	if order == ByName {
		return byName
	}
	return byCoordinate
}

func byName(a, b *sam.Alignment) bool {
	if a.QNAME != b.QNAME {
		return a.QNAME < b.QNAME
	}
	if a.FLAG != b.FLAG {
		return a.FLAG < b.FLAG
	}
	return a.IsFirst() && !b.IsFirst()
}

func byCoordinate(a, b *sam.Alignment) bool {
	ra, rb := a.REFID(), b.REFID()
	switch {
	case ra != rb:
		if ra < 0 {
			return false
		}
		if rb < 0 {
			return true
		}
		return ra < rb
	case a.POS != b.POS:
		return a.POS < b.POS
	default:
		return !a.IsReversed() && b.IsReversed()
	}
}

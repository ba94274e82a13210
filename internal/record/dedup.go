package record

// DedupExtractByPath partitions records by the value each one resolves at
// path.
//
// On return, *records holds only the extra occurrences: every record whose
// key had already been seen earlier in the list, in their original relative
// order. Records that do not resolve path are removed and not returned.
//
// The result holds one record per distinct key, the last one in input order
// carrying that key. Keys compare by Value.Key, so the number 1 and the
// string "1" are different keys while objects with the same fields in a
// different order share one. Callers must not rely on the order
// of the result; sort it if order matters.
func DedupExtractByPath[T Resolver](records *[]T, path Path) []T {
	index := make(map[string]int)
	var winners []T

	in := *records
	kept := in[:0]
	for _, rec := range in {
		val, ok := rec.Resolve(path)
		if !ok {
			continue
		}

		key := val.Key()
		if i, seen := index[key]; seen {
			winners[i] = rec
			kept = append(kept, rec)
			continue
		}
		index[key] = len(winners)
		winners = append(winners, rec)
	}

	clear(in[len(kept):])
	*records = kept

	if winners == nil {
		winners = []T{}
	}
	return winners
}

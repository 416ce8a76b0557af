package models

// AppendRecent добавляет идентификаторы в конец окна и вытесняет самые старые,
// если длина превышает limit. Исходный срез не изменяется.
func AppendRecent(history, ids []string, limit int) []string {
	merged := make([]string, 0, len(history)+len(ids))
	merged = append(merged, history...)
	merged = append(merged, ids...)

	if limit > 0 && len(merged) > limit {
		merged = merged[len(merged)-limit:]
	}

	return merged
}

func ContainsID(history []string, id string) bool {
	for _, h := range history {
		if h == id {
			return true
		}
	}

	return false
}

// FilterUnseen оставляет объявления, которых нет в истории, без повторов внутри пачки.
func FilterUnseen(history []string, listings []*Listing) []*Listing {
	seen := make(map[string]struct{}, len(history)+len(listings))
	for _, id := range history {
		seen[id] = struct{}{}
	}

	fresh := make([]*Listing, 0, len(listings))

	for _, l := range listings {
		if l == nil || l.ExternalItemID == "" {
			continue
		}

		if _, ok := seen[l.ExternalItemID]; ok {
			continue
		}

		seen[l.ExternalItemID] = struct{}{}

		fresh = append(fresh, l)
	}

	return fresh
}

func ExternalIDs(listings []*Listing) []string {
	ids := make([]string, 0, len(listings))
	for _, l := range listings {
		ids = append(ids, l.ExternalItemID)
	}

	return ids
}

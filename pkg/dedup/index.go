package dedup

// Entry is one accepted question in the index. Source is the store's
// reference to the record, e.g. article_1_quiz.json.
type Entry struct {
	ArticleID string
	Source    string
	Question  string
	Embedding []float64
}

// Index holds accepted question embeddings in comparison order. It is not
// safe for concurrent use.
type Index struct {
	entries []Entry
}

func NewIndex(entries ...Entry) *Index {
	idx := &Index{}
	for _, entry := range entries {
		idx.Put(entry)
	}
	return idx
}

// Put appends entry, or replaces the existing entry for the same article in
// place so its position is kept.
func (idx *Index) Put(entry Entry) {
	for i := range idx.entries {
		if idx.entries[i].ArticleID == entry.ArticleID {
			idx.entries[i] = entry
			return
		}
	}
	idx.entries = append(idx.entries, entry)
}

func (idx *Index) Get(articleID string) (Entry, bool) {
	for _, entry := range idx.entries {
		if entry.ArticleID == articleID {
			return entry, true
		}
	}
	return Entry{}, false
}

func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entries)
}

// Entries returns a copy of the entries in order.
func (idx *Index) Entries() []Entry {
	if idx == nil {
		return nil
	}
	return append([]Entry(nil), idx.entries...)
}

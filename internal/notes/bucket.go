package notes

import (
	"sort"
	"time"
)

// Entry is one participant on a note line. StudentID is empty for a record
// that had no student attached; such entries render as the line's fallback
// token instead of being dropped.
type Entry struct {
	StudentID string
	Start     time.Time
	End       *time.Time
	// Timed is false for records that only carry a date (screeners,
	// communications); their Start is used for ordering only.
	Timed bool
}

// Bucket is an ordered, per-student deduplicated collection of entries.
// The seen set lives on the bucket, so every call to Classify builds fresh
// state and concurrent note generations never share it.
type Bucket struct {
	entries   []Entry
	fallbacks []Entry
	seen      map[string]bool
}

func newBucket() *Bucket {
	return &Bucket{seen: make(map[string]bool)}
}

// Add records e unless its student is already present. It reports whether
// the entry was kept.
func (b *Bucket) Add(e Entry) bool {
	if e.StudentID == "" {
		b.fallbacks = append(b.fallbacks, e)
		return true
	}
	if b.seen[e.StudentID] {
		return false
	}
	b.seen[e.StudentID] = true
	b.entries = append(b.entries, e)
	return true
}

// Has reports whether the student is in the bucket.
func (b *Bucket) Has(studentID string) bool {
	return b.seen[studentID]
}

// Empty is true when the bucket has neither students nor fallback entries.
func (b *Bucket) Empty() bool {
	return len(b.entries) == 0 && len(b.fallbacks) == 0
}

// Len counts distinct students.
func (b *Bucket) Len() int {
	return len(b.entries)
}

// StudentIDs returns the distinct student ids in insertion order.
func (b *Bucket) StudentIDs() []string {
	out := make([]string, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, e.StudentID)
	}
	return out
}

// HasFallback reports whether a student-less record landed in the bucket.
func (b *Bucket) HasFallback() bool {
	return len(b.fallbacks) > 0
}

// chronological returns student and fallback entries ordered by start time.
func (b *Bucket) chronological() []Entry {
	out := make([]Entry, 0, len(b.entries)+len(b.fallbacks))
	out = append(out, b.entries...)
	out = append(out, b.fallbacks...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// union builds a student-only bucket from several others, keeping the first
// entry seen for each student.
func union(buckets ...*Bucket) *Bucket {
	u := newBucket()
	for _, b := range buckets {
		for _, e := range b.entries {
			u.Add(e)
		}
	}
	return u
}

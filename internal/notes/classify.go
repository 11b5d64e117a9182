package notes

import (
	"strings"

	appLog "caseload/internal/log"
	"caseload/internal/model"
)

// Classification is the billing breakdown of one day's activity.
type Classification struct {
	// Session buckets.
	Direct       *Bucket
	MissedDirect *Bucket
	Indirect     *Bucket

	// Derived from the session buckets (and screeners for documentation).
	Documentation  *Bucket
	LessonPlanning *Bucket

	// Sub-categories from screeners, meetings and communications.
	SpeechScreening     *Bucket
	StudentAssessments  *Bucket
	ScreeningWriteUp    *Bucket
	EmailCorrespondence *Bucket
	IEPMeeting          *Bucket
	IEPUpdates          *Bucket
	IEPAssessment       *Bucket
	ThreeYearMeeting    *Bucket
	ThreeYearUpdates    *Bucket
	ThreeYearAssessment *Bucket
}

func newClassification() *Classification {
	return &Classification{
		Direct:              newBucket(),
		MissedDirect:        newBucket(),
		Indirect:            newBucket(),
		SpeechScreening:     newBucket(),
		StudentAssessments:  newBucket(),
		ScreeningWriteUp:    newBucket(),
		EmailCorrespondence: newBucket(),
		IEPMeeting:          newBucket(),
		IEPUpdates:          newBucket(),
		IEPAssessment:       newBucket(),
		ThreeYearMeeting:    newBucket(),
		ThreeYearUpdates:    newBucket(),
		ThreeYearAssessment: newBucket(),
	}
}

// Classify partitions already date-filtered records into billing buckets.
//
// Sessions linked by a group id are expanded the first time the group is
// met: every sibling row is placed in its own bucket, and the per-bucket
// seen set keeps a student to one entry no matter how many rows (group or
// individual) name them.
func Classify(records []model.Record) *Classification {
	c := newClassification()

	sessions := make([]model.Session, 0, len(records))
	screened := newBucket()
	for _, r := range records {
		switch rec := r.(type) {
		case model.Session:
			sessions = append(sessions, rec)
		case model.ArticulationScreener:
			e := Entry{StudentID: rec.StudentID, Start: rec.Date}
			c.SpeechScreening.Add(e)
			c.ScreeningWriteUp.Add(e)
			if rec.StudentID != "" {
				screened.Add(e)
			}
		case model.Meeting:
			c.categorizeMeeting(rec)
		case model.Communication:
			c.categorizeCommunication(rec)
		default:
			appLog.Debug("notes: ignoring unknown record kind", "type", r)
		}
	}

	c.classifySessions(sessions)

	c.Documentation = union(c.Direct, c.MissedDirect, screened)
	c.LessonPlanning = union(c.Direct, c.MissedDirect, c.Indirect)
	return c
}

// ClassifyOccurrences is the prospective counterpart of Classify: the same
// per-bucket guard over projected occurrences. There is no missed bucket
// for a projection.
func ClassifyOccurrences(occ []model.Occurrence) *Classification {
	c := newClassification()
	for _, o := range occ {
		end := o.End
		e := Entry{StudentID: o.StudentID, Start: o.Start, End: &end, Timed: true}
		if o.IsDirectServices {
			c.Direct.Add(e)
		} else {
			c.Indirect.Add(e)
		}
	}
	c.Documentation = union(c.Direct)
	c.LessonPlanning = union(c.Direct, c.Indirect)
	return c
}

func (c *Classification) classifySessions(sessions []model.Session) {
	siblings := make(map[string][]model.Session)
	for _, s := range sessions {
		if s.GroupSessionID != "" {
			siblings[s.GroupSessionID] = append(siblings[s.GroupSessionID], s)
		}
	}

	groupsDone := make(map[string]bool)
	for _, s := range sessions {
		if s.GroupSessionID == "" {
			c.sessionBucket(s).Add(sessionEntry(s))
			continue
		}
		if groupsDone[s.GroupSessionID] {
			continue
		}
		groupsDone[s.GroupSessionID] = true
		for _, sib := range siblings[s.GroupSessionID] {
			c.sessionBucket(sib).Add(sessionEntry(sib))
		}
	}
}

func (c *Classification) sessionBucket(s model.Session) *Bucket {
	switch {
	case !s.IsDirectServices:
		return c.Indirect
	case s.MissedSession:
		return c.MissedDirect
	default:
		return c.Direct
	}
}

func sessionEntry(s model.Session) Entry {
	return Entry{StudentID: s.StudentID, Start: s.Start, End: s.End, Timed: true}
}

func (c *Classification) categorizeMeeting(m model.Meeting) {
	e := Entry{StudentID: m.StudentID, Start: m.Start, End: m.End, Timed: true}

	switch m.Category {
	case model.CategorySpeechScreening:
		c.SpeechScreening.Add(e)
		c.ScreeningWriteUp.Add(e)

	case model.CategoryIEP:
		if b := pickSubtype(m, c.IEPMeeting, c.IEPUpdates, c.IEPAssessment); b != nil {
			b.Add(e)
		}

	case model.CategoryThreeYear:
		if b := pickSubtype(m, c.ThreeYearMeeting, c.ThreeYearUpdates, c.ThreeYearAssessment); b != nil {
			b.Add(e)
		}
		if m.Subtype() == model.SubtypeAssessment {
			c.StudentAssessments.Add(e)
		}
	}
}

func pickSubtype(m model.Meeting, meeting, updates, assessment *Bucket) *Bucket {
	switch m.Subtype() {
	case model.SubtypeMeeting:
		return meeting
	case model.SubtypeUpdates:
		return updates
	case model.SubtypeAssessment:
		return assessment
	}
	appLog.Debug("notes: meeting subtype not billable", "meeting", m.ID, "subtype", m.ActivitySubtype)
	return nil
}

// categorizeCommunication routes a communication by its relatedTo tag.
// IEP correspondence bills as IEP updates and evaluation correspondence as
// reassessment updates; only the rest is generic email correspondence.
func (c *Classification) categorizeCommunication(m model.Communication) {
	e := Entry{StudentID: m.StudentID, Start: m.Date}
	switch tag := strings.ToLower(m.RelatedTo); {
	case strings.Contains(tag, "iep"):
		c.IEPUpdates.Add(e)
	case strings.Contains(tag, "eval"):
		c.ThreeYearUpdates.Add(e)
	default:
		c.EmailCorrespondence.Add(e)
	}
}

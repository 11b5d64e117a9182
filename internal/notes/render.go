package notes

import (
	"sort"
	"strings"
	"time"

	"caseload/internal/dates"
	"caseload/internal/model"
)

// Section and line labels.
const (
	LabelDirect         = "Direct services:"
	LabelDirectOffsite  = "Offsite Direct Services:"
	LabelIndirect       = "Indirect services:"
	LabelDirectTherapy  = "Direct Therapy:"
	LabelAssessments    = "Student Assessments:"
	LabelScreening      = "Speech screening:"
	LabelDocumentation  = "Session Documentation:"
	LabelEmail          = "Email Correspondence:"
	LabelLessonPlanning = "Lesson Planning:"
	LabelWriteUp        = "Speech Screening Write-Up and Staff Collaboration:"
	LabelIEPMeeting     = "IEP meeting:"
	LabelIEPUpdates     = "IEP updates:"
	LabelIEPAssessment  = "IEP assessment:"
	LabelThreeYearMtg   = "3 year reassessment meeting:"
	LabelThreeYearUpd   = "3 year reassessment updates:"
	LabelThreeYearAsmt  = "3 year reassessment assessment:"

	unknownInitials = "??"
)

// Directory resolves student ids for labelling. model.StudentIndex
// satisfies it.
type Directory interface {
	Lookup(id string) (model.Student, bool)
}

// Options control note labelling.
type Options struct {
	IsTeletherapy    bool `json:"is_teletherapy"`
	UseSpecificTimes bool `json:"use_specific_times"`
}

// specificTimes is forced on for teletherapy billing.
func (o Options) specificTimes() bool {
	return o.IsTeletherapy || o.UseSpecificTimes
}

// Initials returns first-plus-last initial for multi-word names, the single
// initial for one word, and "??" otherwise.
func Initials(name string) string {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return unknownInitials
	case 1:
		return firstLetter(parts[0])
	default:
		return firstLetter(parts[0]) + firstLetter(parts[len(parts)-1])
	}
}

func firstLetter(s string) string {
	for _, r := range s {
		return strings.ToUpper(string(r))
	}
	return ""
}

// StudentLabel renders "INITIALS (GRADE)"; the grade is omitted when
// unknown and unresolvable students render as "??".
func StudentLabel(dir Directory, id string) string {
	var st model.Student
	ok := false
	if dir != nil {
		st, ok = dir.Lookup(id)
	}
	if !ok {
		return unknownInitials
	}
	initials := Initials(st.Name)
	grade := strings.TrimSpace(st.Grade)
	if grade == "" {
		return initials
	}
	return initials + " (" + grade + ")"
}

// Render assembles the note text from a classification.
func Render(c *Classification, dir Directory, opts Options) string {
	var b noteBuilder
	timed := opts.specificTimes()

	if !c.Direct.Empty() || !c.StudentAssessments.Empty() || !c.SpeechScreening.Empty() {
		if opts.IsTeletherapy {
			b.header(LabelDirectOffsite)
		} else {
			b.header(LabelDirect)
		}
		b.line(LabelDirectTherapy, timedLine(c.Direct, dir, timed, "Direct Therapy"))
		b.line(LabelAssessments, timedLine(c.StudentAssessments, dir, timed, "Student Assessments"))
		b.line(LabelScreening, chronologicalLine(c.SpeechScreening, dir, timed, "Speech screening"))
	}

	indirect := []struct {
		label string
		token string
		b     *Bucket
	}{
		{LabelDocumentation, "Session Documentation", c.Documentation},
		{LabelEmail, "Email Correspondence", c.EmailCorrespondence},
		{LabelLessonPlanning, "Lesson Planning", c.LessonPlanning},
		{LabelWriteUp, "Speech screening", c.ScreeningWriteUp},
		{LabelIEPMeeting, "IEP meeting", c.IEPMeeting},
		{LabelIEPUpdates, "IEP updates", c.IEPUpdates},
		{LabelIEPAssessment, "IEP assessment", c.IEPAssessment},
		{LabelThreeYearMtg, "3 year reassessment meeting", c.ThreeYearMeeting},
		{LabelThreeYearUpd, "3 year reassessment updates", c.ThreeYearUpdates},
		{LabelThreeYearAsmt, "3 year reassessment assessment", c.ThreeYearAssessment},
	}
	headerDone := false
	for _, ln := range indirect {
		if ln.b == nil || ln.b.Empty() {
			continue
		}
		if !headerDone {
			b.header(LabelIndirect)
			headerDone = true
		}
		b.line(ln.label, alphabeticalLine(ln.b, dir, ln.token))
	}

	return b.String()
}

// noteBuilder collects label/content blocks, each followed by one blank
// line; the trailing blank is trimmed by String.
type noteBuilder struct {
	lines []string
}

func (nb *noteBuilder) header(label string) {
	nb.lines = append(nb.lines, label)
}

func (nb *noteBuilder) line(label, content string) {
	if content == "" {
		return
	}
	nb.lines = append(nb.lines, label, content, "")
}

func (nb *noteBuilder) String() string {
	lines := nb.lines
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// alphabeticalLine joins student labels sorted by label, then appends the
// fallback token once if any student-less record was present.
func alphabeticalLine(b *Bucket, dir Directory, token string) string {
	if b.Empty() {
		return ""
	}
	labels := make([]string, 0, b.Len()+1)
	for _, e := range b.entries {
		labels = append(labels, StudentLabel(dir, e.StudentID))
	}
	sort.Strings(labels)
	if b.HasFallback() {
		labels = append(labels, token)
	}
	return strings.Join(labels, ", ")
}

// timedLine renders alphabetically, or with specific times as groups of
// students sharing an identical range, ranges in chronological order.
func timedLine(b *Bucket, dir Directory, specific bool, token string) string {
	if b.Empty() {
		return ""
	}
	if !specific {
		return alphabeticalLine(b, dir, token)
	}

	type group struct {
		start  time.Time
		end    *time.Time
		rng    string
		labels []string
	}
	groups := make([]*group, 0)
	byRange := make(map[string]*group)
	for _, e := range b.chronological() {
		rng := dates.FormatTimeRange(e.Start, e.End)
		g, ok := byRange[rng]
		if !ok {
			g = &group{start: e.Start, end: e.End, rng: rng}
			byRange[rng] = g
			groups = append(groups, g)
		}
		label := token
		if e.StudentID != "" {
			label = StudentLabel(dir, e.StudentID)
		} else if containsString(g.labels, token) {
			continue
		}
		g.labels = append(g.labels, label)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if !groups[i].start.Equal(groups[j].start) {
			return groups[i].start.Before(groups[j].start)
		}
		return endOrStart(groups[i].end, groups[i].start).Before(endOrStart(groups[j].end, groups[j].start))
	})

	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		sortLabelsTokenLast(g.labels, token)
		parts = append(parts, strings.Join(g.labels, ", ")+" "+g.rng)
	}
	return strings.Join(parts, ", ")
}

// chronologicalLine lists entries in start order; timed entries carry their
// range when specific times are on.
func chronologicalLine(b *Bucket, dir Directory, specific bool, token string) string {
	if b.Empty() {
		return ""
	}
	parts := make([]string, 0, b.Len()+1)
	tokenUsed := false
	for _, e := range b.chronological() {
		label := token
		if e.StudentID != "" {
			label = StudentLabel(dir, e.StudentID)
		} else if tokenUsed && !(specific && e.Timed) {
			continue
		} else {
			tokenUsed = true
		}
		if specific && e.Timed {
			label += " " + dates.FormatTimeRange(e.Start, e.End)
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, ", ")
}

func endOrStart(end *time.Time, start time.Time) time.Time {
	if end == nil {
		return start
	}
	return *end
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sortLabelsTokenLast(labels []string, token string) {
	sort.SliceStable(labels, func(i, j int) bool {
		if (labels[i] == token) != (labels[j] == token) {
			return labels[j] == token
		}
		return labels[i] < labels[j]
	})
}

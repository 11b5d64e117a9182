package web

import (
	"net/http"
	"strconv"
	"time"

	"caseload/internal/dates"
	"caseload/internal/ics"
	appLog "caseload/internal/log"
	"caseload/internal/notes"
)

const maxRangeDays = 366

type noteResponse struct {
	Date   string     `json:"date"`
	School string     `json:"school,omitempty"`
	Mode   notes.Mode `json:"mode"`
	Note   string     `json:"note"`
}

// handleNotes renders the billing note for one day.
//
// GET /api/notes?date=2025-03-10&school=ID&mode=prospective&specific_times=1&format=text
func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	day, err := s.dateParam(r, "date")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	mode := notes.Mode(q.Get("mode"))
	if mode == "" {
		mode = notes.ModeRetrospective
	}

	opts := s.notes.Defaults()
	if v := q.Get("specific_times"); v != "" {
		b, ok := parseBool(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "specific_times must be a boolean")
			return
		}
		opts.UseSpecificTimes = b
	}

	school := q.Get("school")
	var note string
	switch mode {
	case notes.ModeRetrospective:
		note, err = s.notes.Retrospective(r.Context(), school, day, opts)
	case notes.ModeProspective:
		note, err = s.notes.Prospective(r.Context(), school, day, opts)
	default:
		writeError(w, http.StatusBadRequest, "mode must be retrospective or prospective")
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if q.Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(note))
		return
	}
	writeJSON(w, http.StatusOK, noteResponse{
		Date:   dates.DateKey(day),
		School: school,
		Mode:   mode,
		Note:   note,
	})
}

type occurrenceDTO struct {
	TemplateID       string    `json:"template_id"`
	StudentID        string    `json:"student_id"`
	Student          string    `json:"student"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	IsDirectServices bool      `json:"is_direct_services"`
}

type occurrencesResponse struct {
	From        string          `json:"from"`
	To          string          `json:"to"`
	Occurrences []occurrenceDTO `json:"occurrences"`
}

// handleOccurrences lists projected sessions.
//
// GET /api/occurrences?date=2025-03-10&days=1&school=ID
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := s.dateParam(r, "date")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	days := parseIntDefault(q.Get("days"), 1)
	if days < 1 || days > maxRangeDays {
		writeError(w, http.StatusBadRequest, "days must be between 1 and "+strconv.Itoa(maxRangeDays))
		return
	}
	to := from.AddDate(0, 0, days-1)

	occ, dir, err := s.notes.Schedule(r.Context(), q.Get("school"), from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dtos := make([]occurrenceDTO, 0, len(occ))
	for _, o := range occ {
		dtos = append(dtos, occurrenceDTO{
			TemplateID:       o.TemplateID,
			StudentID:        o.StudentID,
			Student:          notes.StudentLabel(dir, o.StudentID),
			Start:            o.Start,
			End:              o.End,
			IsDirectServices: o.IsDirectServices,
		})
	}
	writeJSON(w, http.StatusOK, occurrencesResponse{
		From:        dates.DateKey(from),
		To:          dates.DateKey(to),
		Occurrences: dtos,
	})
}

// handleScheduleFeed publishes projected sessions from today as iCalendar.
// Rendered feeds are kept for feed.cache_seconds.
//
// GET /api/schedule.ics?school=ID&days=28
func (s *Server) handleScheduleFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	school := q.Get("school")
	days := parseIntDefault(q.Get("days"), s.cfg.Feed.HorizonDays)
	if days < 1 || days > maxRangeDays {
		writeError(w, http.StatusBadRequest, "days must be between 1 and "+strconv.Itoa(maxRangeDays))
		return
	}
	from := s.today()
	key := school + "|" + strconv.Itoa(days) + "|" + dates.DateKey(from)
	ttl := time.Duration(s.cfg.Feed.CacheSeconds) * time.Second

	s.feedMu.RLock()
	entry, ok := s.feedCache[key]
	s.feedMu.RUnlock()
	if ok && s.now().Sub(entry.updatedAt) < ttl {
		writeCalendar(w, entry.body)
		return
	}

	occ, dir, err := s.notes.Schedule(r.Context(), school, from, from.AddDate(0, 0, days-1))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	body := ics.BuildFeed(occ, dir, s.cfg.Feed.Name, s.now())
	appLog.Debug("schedule feed rendered", "school", school, "days", days, "occurrences", len(occ))

	if ttl > 0 {
		s.feedMu.Lock()
		for k, e := range s.feedCache {
			if s.now().Sub(e.updatedAt) >= ttl {
				delete(s.feedCache, k)
			}
		}
		s.feedCache[key] = feedCacheEntry{body: body, updatedAt: s.now()}
		s.feedMu.Unlock()
	}
	writeCalendar(w, body)
}

func writeCalendar(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

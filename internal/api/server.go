package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/RajibRobidas/memoirbox-reminders/internal/domain"
	"github.com/RajibRobidas/memoirbox-reminders/internal/notify"
	"github.com/RajibRobidas/memoirbox-reminders/internal/scheduler"
	"github.com/RajibRobidas/memoirbox-reminders/internal/store"
)

type Server struct {
	r        *chi.Mux
	repo     store.Repository
	sched    *scheduler.Scheduler
	notifier *notify.Notifier

	// mu serializes every store mutation together with the timer recompute
	// that follows it. Handlers run concurrently; without this a handler
	// could recompute from a snapshot read before another handler's write
	// and cancel timers the other handler had just armed.
	mu sync.Mutex
}

func NewServer(repo store.Repository, sched *scheduler.Scheduler, notifier *notify.Notifier) http.Handler {
	return NewServerWithDebug(repo, sched, notifier, false)
}

func NewServerWithDebug(repo store.Repository, sched *scheduler.Scheduler, notifier *notify.Notifier, enableDebug bool) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	s := &Server{r: r, repo: repo, sched: sched, notifier: notifier}

	r.Get("/health", s.health)
	r.Get("/metrics", s.metrics)

	r.Post("/api/countdowns", s.createCountdown)
	r.Get("/api/countdowns", s.listCountdowns)
	r.Get("/api/countdowns/{id}", s.getCountdown)
	r.Put("/api/countdowns/{id}", s.updateCountdown)
	r.Delete("/api/countdowns/{id}", s.deleteCountdown)

	r.Put("/api/countdowns/{id}/notifications", s.setLeadTimes)
	r.Get("/api/countdowns/{id}/notifications", s.getLeadTimes)
	r.Delete("/api/countdowns/{id}/notifications", s.clearLeadTimes)

	r.Get("/api/banners", s.listBanners)
	r.Delete("/api/banners/{id}", s.dismissBanner)

	// Debug routes (pprof)
	if enableDebug {
		r.HandleFunc("/debug/pprof/", pprof.Index)
		r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		r.HandleFunc("/debug/pprof/profile", pprof.Profile)
		r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		r.HandleFunc("/debug/pprof/trace", pprof.Trace)
		r.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
		r.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	}

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("content-type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "memoirbox_reminders_up 1\n")
	fmt.Fprintf(w, "memoirbox_reminders_timers_pending %d\n", s.sched.Pending())
	fmt.Fprintf(w, "memoirbox_reminders_banners_active %d\n", s.notifier.Banners().Len())
	fmt.Fprintf(w, "memoirbox_reminders_deliveries_dropped %d\n", s.notifier.Dropped())
}

// refresh reloads the stores and re-arms the timer set. Callers must hold mu
// so the reload-and-recompute pair cannot interleave with another mutation.
func (s *Server) refresh(r *http.Request) {
	countdowns, err := s.repo.ListCountdowns(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list countdowns for recompute")
		return
	}
	leadTimes, err := s.repo.AllLeadTimes(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to load lead times for recompute")
		return
	}
	s.sched.Recompute(countdowns, leadTimes, time.Now())
}

type countdownReq struct {
	Title       string `json:"title"`
	Date        string `json:"date"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

func (req countdownReq) toDomain() (domain.Countdown, error) {
	if req.Date == "" {
		return domain.Countdown{}, &domain.ValidationError{Reason: "date is required"}
	}
	date, err := time.Parse(time.RFC3339, req.Date)
	if err != nil {
		return domain.Countdown{}, &domain.ValidationError{Reason: "date must be RFC 3339"}
	}
	return domain.Countdown{
		Title:       req.Title,
		Date:        date,
		Type:        req.Type,
		Description: req.Description,
	}, nil
}

func (s *Server) createCountdown(w http.ResponseWriter, r *http.Request) {
	var req countdownReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	c, err := req.toDomain()
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	created, err := s.repo.CreateCountdown(r.Context(), c, time.Now())
	if err != nil {
		writeErr(w, err)
		return
	}
	s.refresh(r)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) listCountdowns(w http.ResponseWriter, r *http.Request) {
	countdowns, err := s.repo.ListCountdowns(r.Context())
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	if countdowns == nil {
		countdowns = []domain.Countdown{}
	}
	writeJSON(w, 200, countdowns)
}

func (s *Server) getCountdown(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid id", 400)
		return
	}
	c, err := s.repo.GetCountdown(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, 200, c)
}

func (s *Server) updateCountdown(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid id", 400)
		return
	}
	var req countdownReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	c, err := req.toDomain()
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	c.ID = id
	s.mu.Lock()
	defer s.mu.Unlock()
	updated, err := s.repo.UpdateCountdown(r.Context(), c, time.Now())
	if err != nil {
		writeErr(w, err)
		return
	}
	s.refresh(r)
	writeJSON(w, 200, updated)
}

func (s *Server) deleteCountdown(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid id", 400)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.DeleteCountdown(r.Context(), id); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	s.refresh(r)
	w.WriteHeader(http.StatusNoContent)
}

type leadTimesReq struct {
	LeadTimesMinutes []int `json:"lead_times_minutes"`
}

func (s *Server) setLeadTimes(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid id", 400)
		return
	}
	var req leadTimesReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.SetLeadTimes(r.Context(), id, req.LeadTimesMinutes, time.Now()); err != nil {
		writeErr(w, err)
		return
	}
	s.refresh(r)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getLeadTimes(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid id", 400)
		return
	}
	leads, err := s.repo.GetLeadTimes(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, 200, map[string]any{"lead_times_minutes": leads})
}

func (s *Server) clearLeadTimes(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid id", 400)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.ClearLeadTimes(r.Context(), id); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	s.refresh(r)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listBanners(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, s.notifier.Banners().List())
}

func (s *Server) dismissBanner(w http.ResponseWriter, r *http.Request) {
	s.notifier.Banners().Dismiss(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func writeErr(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		http.Error(w, verr.Error(), 400)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "not found", 404)
	default:
		http.Error(w, err.Error(), 500)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

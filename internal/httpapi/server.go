// Package httpapi is the thin HTTP adapter: it decodes requests, calls the
// scheduler's public operations (always through the dispatch loop, never
// directly), and encodes responses. It holds no scheduling policy itself.
package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/itskum47/sprinklerd/internal/clock"
	"github.com/itskum47/sprinklerd/internal/controller"
	"github.com/itskum47/sprinklerd/internal/observability"
	"github.com/itskum47/sprinklerd/internal/queue"
	"github.com/itskum47/sprinklerd/internal/sprinkler"
	"github.com/itskum47/sprinklerd/internal/wsevents"
)

// Loop is the subset of *dispatch.Loop the adapter needs: every scheduler
// call arrives through Call so it serializes with timer callbacks.
type Loop interface {
	Call(fn func())
}

// Server wires the scheduler and controller to net/http. Construct with New
// and mount with Handler; it never talks to the scheduler off the loop.
type Server struct {
	loop       Loop
	jobQueue   *queue.SprinklerJobQueue
	controller *controller.Controller
	clock      clock.Clock
	hub        *wsevents.Hub
	upgrader   websocket.Upgrader
	jobLimiter *rate.Limiter
}

// New returns a Server. clock is used only to stamp responses that need a
// "now" reference (the /courts DTO); all mutation goes through jobQueue.
func New(loop Loop, jobQueue *queue.SprinklerJobQueue, ctrl *controller.Controller, c clock.Clock, hub *wsevents.Hub) *Server {
	return &Server{
		loop:       loop,
		jobQueue:   jobQueue,
		controller: ctrl,
		clock:      c,
		hub:        hub,
		upgrader:   websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		// Allow 20 submissions/sec, burst 40 — generous for a handful of
		// physical sprinklers, tight enough to blunt a retry storm.
		jobLimiter: rate.NewLimiter(rate.Limit(20), 40),
	}
}

// Handler returns the fully-wrapped HTTP handler (routes + CORS).
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/events", s.handleEvents)

	mux.HandleFunc("/jobs", rateLimited("jobs", s.jobLimiter, s.handleJobsCollection))
	mux.HandleFunc("/jobs/active", s.handleJobsActive)
	mux.HandleFunc("/jobs/waiting", s.handleJobsWaiting)
	mux.HandleFunc("/jobs/", s.handleJobItem)

	mux.HandleFunc("/courts", s.handleCourtsCollection)
	mux.HandleFunc("/courts/", rateLimited("courts", s.jobLimiter, s.handleCourtItem))

	return corsMiddleware(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("sprinklerd: event stream upgrade failed: %v", err)
		return
	}
	s.hub.Register(conn)
	go s.pumpEventClient(conn)
}

// pumpEventClient discards anything the client sends and unregisters on
// disconnect; this stream is server-to-client only.
func (s *Server) pumpEventClient(conn *websocket.Conn) {
	defer s.hub.Unregister(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) handleJobsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleSubmitJob(w, r)
	case http.MethodGet:
		var snaps []queue.Snapshot
		s.loop.Call(func() { snaps = s.jobQueue.ListJobs() })
		writeJSON(w, http.StatusOK, jobDTOs(snaps))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (s *Server) handleJobsActive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var snaps []queue.Snapshot
	s.loop.Call(func() { snaps = s.jobQueue.ListActiveJobs() })
	writeJSON(w, http.StatusOK, jobDTOs(snaps))
}

func (s *Server) handleJobsWaiting(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var snaps []queue.Snapshot
	s.loop.Call(func() { snaps = s.jobQueue.ListWaitingJobs() })
	writeJSON(w, http.StatusOK, jobDTOs(snaps))
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_duration", "invalid request body")
		return
	}

	var jobID uint64
	var submitErr error
	s.loop.Call(func() {
		jobID, submitErr = s.jobQueue.Add(sprinkler.ID(req.SprinklerID), req.Duration, req.HighPriority)
	})
	if submitErr != nil {
		s.writeCoreError(w, submitErr)
		return
	}
	writeJSON(w, http.StatusOK, jobIDResponse{JobID: jobID})
}

func (s *Server) handleJobItem(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/jobs/")
	jobID, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "invalid job id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		var snap queue.Snapshot
		var found bool
		s.loop.Call(func() {
			if sn, ok := s.jobQueue.GetActiveJob(jobID); ok {
				snap, found = sn, true
				return
			}
			if sn, ok := s.jobQueue.GetWaitingJob(jobID); ok {
				snap, found = sn, true
			}
		})
		if !found {
			writeError(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		writeJSON(w, http.StatusOK, jobDTO(snap))

	case http.MethodPost:
		var req updateDurationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_duration", "invalid request body")
			return
		}
		var setErr error
		var snap queue.Snapshot
		var found bool
		s.loop.Call(func() {
			setErr = s.jobQueue.SetDuration(jobID, req.Duration)
			if setErr != nil {
				return
			}
			if sn, ok := s.jobQueue.GetActiveJob(jobID); ok {
				snap, found = sn, true
				return
			}
			if sn, ok := s.jobQueue.GetWaitingJob(jobID); ok {
				snap, found = sn, true
			}
		})
		if setErr != nil {
			s.writeCoreError(w, setErr)
			return
		}
		if !found {
			writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
			return
		}
		writeJSON(w, http.StatusOK, jobDTO(snap))

	case http.MethodDelete:
		var removeErr error
		s.loop.Call(func() { removeErr = s.jobQueue.Remove(jobID) })
		if removeErr != nil {
			s.writeCoreError(w, removeErr)
			return
		}
		w.WriteHeader(http.StatusOK)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (s *Server) handleCourtsCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var dtos []CourtDTO
	s.loop.Call(func() {
		ids := s.controller.SprinklerIDs()
		sort.Strings(ids)
		now := s.clock.Now()
		for _, id := range ids {
			dtos = append(dtos, courtDTO(id, s.jobQueue.JobForSprinkler(id), now))
		}
	})
	writeJSON(w, http.StatusOK, dtos)
}

func (s *Server) handleCourtItem(w http.ResponseWriter, r *http.Request) {
	id := sprinkler.ID(strings.TrimPrefix(r.URL.Path, "/courts/"))

	switch r.Method {
	case http.MethodGet:
		var dto CourtDTO
		var valid bool
		s.loop.Call(func() {
			valid = s.controller.IsValid(id)
			if valid {
				dto = courtDTO(id, s.jobQueue.JobForSprinkler(id), s.clock.Now())
			}
		})
		if !valid {
			writeError(w, http.StatusBadRequest, "unknown_sprinkler", "unknown sprinkler")
			return
		}
		writeJSON(w, http.StatusOK, dto)

	case http.MethodPost:
		var req updateDurationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_duration", "invalid request body")
			return
		}
		var coreErr error
		var dto CourtDTO
		s.loop.Call(func() {
			if !s.controller.IsValid(id) {
				coreErr = &controller.UnknownSprinklerError{SprinklerID: id}
				return
			}
			if job := s.jobQueue.JobForSprinkler(id); job != nil {
				coreErr = s.jobQueue.SetDuration(job.ID, req.Duration)
			} else {
				_, coreErr = s.jobQueue.Add(id, req.Duration, req.HighPriority)
			}
			if coreErr == nil {
				dto = courtDTO(id, s.jobQueue.JobForSprinkler(id), s.clock.Now())
			}
		})
		if coreErr != nil {
			s.writeCoreError(w, coreErr)
			return
		}
		writeJSON(w, http.StatusOK, dto)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (s *Server) writeCoreError(w http.ResponseWriter, err error) {
	status, kind := classify(err)
	writeError(w, status, kind, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("sprinklerd: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Error: kind, Message: message})
}

package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"f0oster/adexpiry/database"
	"f0oster/adexpiry/resolver"

	"go.uber.org/zap"
)

// Response types for JSON serialization

type RecordListResponse struct {
	RunID    string                  `json:"run_id"`
	KeyField string                  `json:"key_field"`
	Records  []database.StoredRecord `json:"records"`
	Total    int                     `json:"total"`
}

type ChangeListResponse struct {
	Key     string                  `json:"key"`
	Changes []database.ChangeRecord `json:"changes"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// parseRecordType accepts the record type tags case-insensitively.
func parseRecordType(s string) (string, bool) {
	switch {
	case s == "":
		return "", true
	case strings.EqualFold(s, string(resolver.RecordTypeUser)):
		return string(resolver.RecordTypeUser), true
	case strings.EqualFold(s, string(resolver.RecordTypeContact)):
		return string(resolver.RecordTypeContact), true
	default:
		return "", false
	}
}

// latestRun writes the error response itself and reports false when there is
// no run to serve.
func (s *Server) latestRun(w http.ResponseWriter, r *http.Request) (database.RunRecord, bool) {
	run, err := s.store.LatestRun(r.Context())
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "No completed run")
		return run, false
	}
	if err != nil {
		s.logger.Error("latest run lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load latest run")
		return run, false
	}
	return run, true
}

// Handlers

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.latestRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	recordType, ok := parseRecordType(q.Get("type"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid type, expected User or Contact")
		return
	}

	filter := database.RecordFilter{Type: recordType}
	if v := q.Get("expiring_within"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days < 0 {
			writeError(w, http.StatusBadRequest, "Invalid expiring_within, expected a non-negative number of days")
			return
		}
		filter.ExpiringWithin = &days
	}

	run, ok := s.latestRun(w, r)
	if !ok {
		return
	}

	records, err := s.store.ListRecords(r.Context(), run.RunID, filter)
	if err != nil {
		s.logger.Error("list records failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to list records")
		return
	}

	writeJSON(w, http.StatusOK, RecordListResponse{
		RunID:    run.RunID.String(),
		KeyField: run.KeyField,
		Records:  records,
		Total:    len(records),
	})
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	run, ok := s.latestRun(w, r)
	if !ok {
		return
	}

	record, err := s.store.GetRecord(r.Context(), run.RunID, key)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Record not found")
		return
	}
	if err != nil {
		s.logger.Error("get record failed", zap.String("key", key), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to get record")
		return
	}

	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleGetRecordChanges(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	run, ok := s.latestRun(w, r)
	if !ok {
		return
	}

	changes, err := s.store.ListChanges(r.Context(), run.KeyField, key)
	if err != nil {
		s.logger.Error("list changes failed", zap.String("key", key), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to get changes")
		return
	}

	writeJSON(w, http.StatusOK, ChangeListResponse{Key: key, Changes: changes})
}

package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/parked-domain-tracker/internal/metrics"
	"github.com/JakeFAU/parked-domain-tracker/internal/store"
	"github.com/JakeFAU/parked-domain-tracker/internal/visitor"
)

// fetchLogsError is the fixed error string of the failure envelope.
const fetchLogsError = "Failed to fetch logs"

type logsResponse struct {
	Success bool        `json:"success"`
	Count   int         `json:"count"`
	Logs    []store.Row `json:"logs"`
}

type logsErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// logAndPark classifies the request, writes one visitor row and always
// answers with the parked page, whatever the outcome of the write.
func (s *Server) logAndPark(w http.ResponseWriter, r *http.Request, host string) {
	geo := visitor.GeoFromHeaders(r.Header, r.TLS)
	if s.geo != nil {
		if err := s.geo.Fill(s.classifier.ClientIP(r.Header), geo); err != nil {
			s.logger.Debug("geoip enrichment failed", zap.Error(err))
		}
	}
	rec := s.classifier.Classify(visitor.RequestFrom(r), geo, s.clock.Now())
	s.recordVisit(r.Context(), rec)

	if err := s.pages.WriteParked(w, r, host); err != nil {
		s.logger.Warn("parked page write failed", zap.String("host", host), zap.Error(err))
	}
}

// recordVisit performs the single store write for a request. The write
// outlives client cancellation but is bounded by the write timeout.
func (s *Server) recordVisit(ctx context.Context, rec visitor.Record) {
	reqID := ""
	if info := requestInfoFrom(ctx); info != nil {
		reqID = info.id
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()

	if err := s.store.InsertVisitor(ctx, rec); err != nil {
		metrics.ObserveVisitorWriteFailure()
		s.logger.Error("visitor write failed",
			zap.String("request_id", reqID),
			zap.String("domain", rec.Domain),
			zap.String("path", rec.Path),
			zap.Error(err),
		)
		return
	}
	metrics.ObserveVisitorLogged(rec.Domain)
}

// queryLogs handles GET/HEAD on the admin query path. It returns
// {"success":true,"count":N,"logs":[...]} or the 500 failure envelope.
func (s *Server) queryLogs(w http.ResponseWriter, r *http.Request) {
	q := ParseQuery(r.URL.Query(), s.defaultLimit, s.maxLimit)
	ctx, cancel := context.WithTimeout(r.Context(), s.readTimeout)
	defer cancel()

	rows, err := s.store.ListVisitors(ctx, q)
	if err != nil {
		metrics.ObserveLogQueryFailure()
		s.logger.Error("list visitors failed",
			zap.String("domain", q.Domain),
			zap.Int("limit", q.Limit),
			zap.Int("offset", q.Offset),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, logsErrorResponse{
			Success: false,
			Error:   fetchLogsError,
			Message: err.Error(),
		})
		return
	}
	if rows == nil {
		rows = []store.Row{}
	}
	writeJSON(w, http.StatusOK, logsResponse{Success: true, Count: len(rows), Logs: rows})
}

// ParseQuery reads domain, limit and offset. Missing or malformed values
// fall back to defLimit and offset 0, and limit is capped at maxLimit.
func ParseQuery(values url.Values, defLimit, maxLimit int) store.Query {
	q := store.Query{
		Domain: strings.ToLower(strings.TrimSpace(values.Get("domain"))),
		Limit:  defLimit,
		Offset: store.DefaultOffset,
	}
	if v, err := strconv.Atoi(strings.TrimSpace(values.Get("limit"))); err == nil && v > 0 {
		q.Limit = v
	}
	if maxLimit > 0 && q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	if v, err := strconv.Atoi(strings.TrimSpace(values.Get("offset"))); err == nil && v >= 0 {
		q.Offset = v
	}
	return q
}

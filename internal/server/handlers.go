package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/joacominatel/sqlgate/internal/app"
	"github.com/joacominatel/sqlgate/internal/database"
	"github.com/sirupsen/logrus"
)

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	md, err := s.svc.Metadata(r.Context())
	if err != nil {
		e := app.AsError(err)
		s.requestLog(r).WithError(err).Error("Error fetching metadata")
		writeError(w, e)
		return
	}
	writeJSON(w, http.StatusOK, md)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	query, perr := s.decodeQuery(w, r)
	if perr != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(perr, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
				Error:   perr.Category.String(),
				Message: perr.Message,
			})
			return
		}
		writeError(w, perr)
		return
	}

	result, err := s.svc.Execute(r.Context(), query)
	if err != nil {
		e := app.AsError(err)
		entry := s.requestLog(r).WithField("category", e.Category.String())
		switch e.Category {
		case app.CategoryForbidden:
			entry.WithError(err).Warn("query rejected")
		case app.CategoryQueryError:
			entry = entry.WithError(err)
			if database.IsTimeout(err) {
				entry = entry.WithField("timeout", true)
			}
			entry.Warn("Query execution error")
		default:
			entry.WithError(err).Error("Query execution error")
		}
		writeError(w, e)
		return
	}

	s.requestLog(r).WithFields(logrus.Fields{
		"rows":        result.RowCount,
		"duration_ms": result.Duration.Milliseconds(),
	}).Debug("query executed")
	writeJSON(w, http.StatusOK, newExecuteResponse(result))
}

// decodeQuery reads the request body. A missing body decodes as an empty
// object; a query that is absent or not a string is reported as missing.
func (s *Server) decodeQuery(w http.ResponseWriter, r *http.Request) (string, *app.Error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", &app.Error{
				Category: app.CategoryBadRequest,
				Message:  fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit),
				Cause:    err,
			}
		}
		return "", app.BadRequest(app.MsgInvalidJSON)
	}

	if strings.TrimSpace(string(body)) == "" {
		return "", app.BadRequest(app.MsgQueryRequired)
	}

	var req executeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		// Arrays are valid bodies that simply carry no query.
		var arr []any
		if json.Unmarshal(body, &arr) == nil {
			return "", app.BadRequest(app.MsgQueryRequired)
		}
		return "", app.BadRequest(app.MsgInvalidJSON)
	}

	query, ok := req.Query.(string)
	if !ok {
		return "", app.BadRequest(app.MsgQueryRequired)
	}
	return query, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h := s.svc.Health()
	writeJSON(w, http.StatusOK, newStatusResponse(h.Status, h.Timestamp))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ready(r.Context()); err != nil {
		s.requestLog(r).WithError(err).Warn("readiness check failed")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error:   "Service Unavailable",
			Message: err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, newStatusResponse("ready", s.svc.Health().Timestamp))
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse{
		Error:   "Not Found",
		Message: fmt.Sprintf("Cannot %s %s", r.Method, r.URL.Path),
	})
}

func (s *Server) requestLog(r *http.Request) *logrus.Entry {
	return s.log.WithField("request_id", RequestID(r.Context()))
}

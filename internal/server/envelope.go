package server

import (
	"fmt"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/joacominatel/sqlgate/internal/app"
	"github.com/joacominatel/sqlgate/internal/database"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// timestampLayout matches JavaScript's Date.prototype.toJSON.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

type errorResponse struct {
	Error    string `json:"error"`
	Message  string `json:"message"`
	Position int32  `json:"position,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

type executeRequest struct {
	Query any `json:"query"`
}

type executeResponse struct {
	Success       bool             `json:"success"`
	Rows          resultRows       `json:"rows"`
	RowCount      int64            `json:"rowCount"`
	Fields        []database.Field `json:"fields"`
	ExecutionTime int64            `json:"executionTime"`
	Message       string           `json:"message"`
}

type statusResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func newExecuteResponse(result *database.QueryResult) executeResponse {
	fields := result.Fields
	if fields == nil {
		fields = []database.Field{}
	}
	return executeResponse{
		Success:       true,
		Rows:          newResultRows(result.Rows, fields),
		RowCount:      result.RowCount,
		Fields:        fields,
		ExecutionTime: result.Duration.Milliseconds(),
		Message:       fmt.Sprintf("Query executed successfully. Returned %d rows.", result.RowCount),
	}
}

func newStatusResponse(status string, ts time.Time) statusResponse {
	return statusResponse{Status: status, Timestamp: ts.UTC().Format(timestampLayout)}
}

// resultRows encodes each row as an object whose keys follow the result's
// field order instead of Go's sorted map order.
type resultRows struct {
	rows  []map[string]any
	names []string
}

func newResultRows(rows []map[string]any, fields []database.Field) resultRows {
	seen := make(map[string]bool, len(fields))
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		if !seen[f.Name] {
			seen[f.Name] = true
			names = append(names, f.Name)
		}
	}
	return resultRows{rows: rows, names: names}
}

func (r resultRows) MarshalJSON() ([]byte, error) {
	stream := json.BorrowStream(nil)
	defer json.ReturnStream(stream)

	stream.WriteArrayStart()
	for i, row := range r.rows {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectStart()
		first := true
		for _, name := range r.names {
			v, ok := row[name]
			if !ok {
				continue
			}
			if !first {
				stream.WriteMore()
			}
			first = false
			stream.WriteObjectField(name)
			stream.WriteVal(v)
		}
		stream.WriteObjectEnd()
	}
	stream.WriteArrayEnd()

	if stream.Error != nil {
		return nil, stream.Error
	}
	return append([]byte(nil), stream.Buffer()...), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{
			Error:   app.CategoryInternal.String(),
			Message: "failed to encode response: " + err.Error(),
		})
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// statusFor maps an error category to its HTTP status.
func statusFor(c app.Category) int {
	switch c {
	case app.CategoryBadRequest, app.CategoryQueryError:
		return http.StatusBadRequest
	case app.CategoryForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, e *app.Error) {
	writeJSON(w, statusFor(e.Category), errorResponse{
		Error:    e.Category.String(),
		Message:  e.Message,
		Position: e.Position,
		Detail:   e.Detail,
	})
}

package admin

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/cesardraw2/zeppelin/executor"
	"github.com/cesardraw2/zeppelin/interpreter"
	"github.com/cesardraw2/zeppelin/telemetry"
)

// MaxStatementBytes bounds an interpret request body.
const MaxStatementBytes = 1 << 20

// Handlers serves the notebook host API over the interpreter registry
type Handlers struct {
	registry *interpreter.Registry
}

func NewHandlers(registry *interpreter.Registry) *Handlers {
	return &Handlers{registry: registry}
}

// InterpreterInfo describes one registered interpreter.
type InterpreterInfo struct {
	Name                 string `json:"name"`
	Style                string `json:"style"`
	Driver               string `json:"driver"`
	MaxRows              int    `json:"max_rows"`
	Connected            bool   `json:"connected"`
	Queued               int    `json:"queued"`
	CompletionCandidates int    `json:"completion_candidates"`
}

// InterpretResponse is the reply to an interpret request. Text is the
// protocol rendering the notebook displays.
type InterpretResponse struct {
	RunID     string `json:"run_id"`
	Code      string `json:"code"`
	Text      string `json:"text"`
	Outcome   string `json:"outcome"`
	Truncated bool   `json:"truncated,omitempty"`
}

func (h *Handlers) handleListInterpreters(w http.ResponseWriter, r *http.Request) {
	infos := make([]InterpreterInfo, 0)
	for _, name := range h.registry.Names() {
		it, ok := h.registry.Get(name)
		if !ok {
			continue
		}
		c := it.Manager().Config()
		stats := it.Stats()
		infos = append(infos, InterpreterInfo{
			Name:                 name,
			Style:                c.Style.String(),
			Driver:               c.Driver,
			MaxRows:              c.MaxRows,
			Connected:            stats.Connected,
			Queued:               stats.Queued,
			CompletionCandidates: stats.CompletionCandidates,
		})
	}
	writeJSONResponse(w, http.StatusOK, infos)
}

func (h *Handlers) handleInterpret(w http.ResponseWriter, r *http.Request, it *interpreter.Interpreter) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxStatementBytes))
	if err != nil {
		writeErrorResponse(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("failed to read statement: %v", err))
		return
	}
	if !utf8.Valid(body) {
		writeErrorResponse(w, http.StatusBadRequest, "statement is not valid UTF-8")
		return
	}

	res := it.Interpret(r.Context(), string(body))
	resp := InterpretResponse{
		RunID:   res.RunID,
		Code:    res.Code.String(),
		Text:    res.Text,
		Outcome: executor.Kind(res.Outcome),
	}
	if rs, ok := res.Outcome.(*executor.RowSet); ok {
		resp.Truncated = rs.Truncated
	}

	log.Debug().
		Str("interpreter", it.Name()).
		Str("run_id", res.RunID).
		Str("code", resp.Code).
		Msg("Interpret request served")
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *Handlers) handleCancel(w http.ResponseWriter, r *http.Request, it *interpreter.Interpreter) {
	writeJSONResponse(w, http.StatusOK, map[string]bool{"cancelled": it.Cancel()})
}

func (h *Handlers) handleCompletion(w http.ResponseWriter, r *http.Request, it *interpreter.Interpreter) {
	buf := r.URL.Query().Get("buf")
	cursor, err := parseCursor(r, len(buf))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSONResponse(w, http.StatusOK, it.Complete(buf, cursor))
}

func (h *Handlers) handleMetrics(w http.ResponseWriter, r *http.Request) {
	handler := telemetry.GetMetricsHandler()
	if handler == nil {
		writeErrorResponse(w, http.StatusNotFound, "metrics are disabled")
		return
	}
	handler.ServeHTTP(w, r)
}

// parseCursor reads the cursor parameter; it defaults to the end of the
// buffer. Out-of-range values are clamped by the index.
func parseCursor(r *http.Request, def int) (int, error) {
	cursorStr := r.URL.Query().Get("cursor")
	if cursorStr == "" {
		return def, nil
	}
	cursor, err := strconv.Atoi(cursorStr)
	if err != nil {
		return 0, fmt.Errorf("invalid cursor parameter: %w", err)
	}
	return cursor, nil
}

// writeJSONResponse writes a successful JSON response
func writeJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": data}); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error JSON response
func writeErrorResponse(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"error": message}); err != nil {
		log.Error().Err(err).Msg("Failed to encode error response")
	}
}

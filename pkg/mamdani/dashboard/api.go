package dashboard

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chosenoffset/mamdani/pkg/mamdani"
	"github.com/chosenoffset/mamdani/pkg/mamdani/config"
)

type ComputeRequest struct {
	Inputs mamdani.Values `json:"inputs"`
	// Trace includes the full inference context in the response.
	Trace bool `json:"trace,omitempty"`
}

type ComputeResponse struct {
	Status  string                    `json:"status"`
	ID      string                    `json:"id"`
	Outputs mamdani.Values            `json:"outputs"`
	Trace   *mamdani.InferenceContext `json:"trace,omitempty"`
}

type BatchRequest struct {
	Rows []mamdani.Values `json:"rows"`
}

type BatchResponse struct {
	Status  string           `json:"status"`
	ID      string           `json:"id"`
	Outputs []mamdani.Values `json:"outputs"`
}

type RuleRequest struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

type RuleResponse struct {
	Valid      bool     `json:"valid"`
	Errors     []string `json:"errors,omitempty"`
	Rule       string   `json:"rule,omitempty"`
	Complexity int      `json:"complexity,omitempty"`
}

func (s *Server) allow(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if !s.limiter.Allow() {
		http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
		return false
	}
	return true
}

func (s *Server) handleCompute(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r) {
		return
	}

	var req ComputeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	id := uuid.NewString()
	ic, err := s.engine.Infer(req.Inputs)
	if err != nil {
		s.logger.Debug("compute rejected", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	resp := ComputeResponse{Status: "ok", ID: id, Outputs: ic.Outputs}
	if req.Trace {
		resp.Trace = ic
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r) {
		return
	}

	var req BatchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Rows) > s.cfg.MaxBatchRows {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Errorf("batch of %d rows exceeds limit %d", len(req.Rows), s.cfg.MaxBatchRows))
		return
	}

	id := uuid.NewString()
	outputs, err := s.engine.ComputeBatch(r.Context(), req.Rows, s.cfg.BatchParallelism)
	if err != nil {
		var berr *mamdani.BatchError
		if errors.As(err, &berr) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"status": "error",
				"id":     id,
				"row":    berr.Row,
				"error":  berr.Error(),
			})
			return
		}
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	s.logger.Debug("batch computed", zap.String("id", id), zap.Int("rows", len(outputs)))
	writeJSON(w, http.StatusOK, BatchResponse{Status: "ok", ID: id, Outputs: outputs})
}

// handleModel serves the running model as JSON, or as a model file when
// format=toml or format=yaml is given.
func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	model := config.FromEngine(s.engine)
	format := config.Format(r.URL.Query().Get("format"))
	if format == "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":          "ok",
			"data":            model,
			"required_inputs": s.engine.RequiredInputs(),
		})
		return
	}

	raw, err := model.Encode(format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	contentType := "application/toml"
	if format == config.YAML {
		contentType = "application/yaml"
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(raw)
}

// handleRuleValidation parses a rule and resolves it against the running
// model without changing it.
func (s *Server) handleRuleValidation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RuleRequest
	if err := decodeBody(w, r, &req); err != nil {
		http.Error(w, "Invalid JSON request", http.StatusBadRequest)
		return
	}
	if len(req.Name) > maxRuleName {
		http.Error(w, fmt.Sprintf("Rule name exceeds maximum length of %d characters", maxRuleName), http.StatusBadRequest)
		return
	}
	if len(req.Code) > maxRuleSource {
		http.Error(w, fmt.Sprintf("Rule code exceeds maximum length of %d characters", maxRuleSource), http.StatusBadRequest)
		return
	}

	var resp RuleResponse
	spec, err := mamdani.ParseRule(req.Name, req.Code)
	if err == nil {
		var rule *mamdani.Rule
		rule, err = s.engine.CompileRule(spec)
		if err == nil {
			resp = RuleResponse{Valid: true, Rule: spec.String(), Complexity: rule.Complexity()}
		}
	}
	if err != nil {
		resp.Errors = []string{err.Error()}
	}
	writeJSON(w, http.StatusOK, resp)
}

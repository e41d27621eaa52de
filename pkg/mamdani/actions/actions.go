// Package actions dispatches inference events to registered handlers.
package actions

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chosenoffset/mamdani/pkg/mamdani"
)

type ActionType string

const (
	// ComputedAction follows every successful inference.
	ComputedAction ActionType = "computed"
	// FailedAction follows every inference that returned an error.
	FailedAction ActionType = "failed"
	// AlertAction follows an output crossing a registered threshold.
	AlertAction ActionType = "alert"
)

type Action struct {
	ID        string                    `json:"id"`
	Type      ActionType                `json:"type"`
	Message   string                    `json:"message"`
	Timestamp time.Time                 `json:"timestamp"`
	Elapsed   time.Duration             `json:"elapsed"`
	Inference *mamdani.InferenceContext `json:"inference,omitempty"`
	Error     string                    `json:"error,omitempty"`
}

type ActionHandler interface {
	Handle(action Action) error
}

// HandlerFunc adapts a function to ActionHandler.
type HandlerFunc func(Action) error

func (f HandlerFunc) Handle(action Action) error { return f(action) }

// LogHandler writes actions to a zap logger: alerts at warn, failures at
// info and computations at debug.
type LogHandler struct {
	logger *zap.Logger
}

func NewLogHandler(logger *zap.Logger) *LogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogHandler{logger: logger}
}

func (h *LogHandler) Handle(action Action) error {
	fields := []zap.Field{
		zap.String("id", action.ID),
		zap.String("type", string(action.Type)),
		zap.Duration("elapsed", action.Elapsed),
	}
	if action.Inference != nil {
		for name, v := range action.Inference.Outputs {
			fields = append(fields, zap.Float64(string(name), v))
		}
	}
	switch action.Type {
	case AlertAction:
		h.logger.Warn(action.Message, fields...)
	case FailedAction:
		h.logger.Info(action.Message, append(fields, zap.String("error", action.Error))...)
	default:
		h.logger.Debug(action.Message, fields...)
	}
	return nil
}

// Threshold raises an AlertAction when a consequent output is at or above Min.
type Threshold struct {
	Variable mamdani.VariableName
	Min      float64
	Message  string
}

type ActionRegistry struct {
	mu         sync.RWMutex
	handlers   map[ActionType][]ActionHandler
	thresholds []Threshold
	logger     *zap.Logger
}

func NewActionRegistry(logger *zap.Logger) *ActionRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActionRegistry{
		handlers: make(map[ActionType][]ActionHandler),
		logger:   logger,
	}
}

func (r *ActionRegistry) RegisterHandler(actionType ActionType, handler ActionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[actionType] = append(r.handlers[actionType], handler)
}

// AddThreshold registers an output threshold checked after each successful inference.
func (r *ActionRegistry) AddThreshold(t Threshold) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.thresholds = append(r.thresholds, t)
}

func (r *ActionRegistry) ExecuteAction(action Action) error {
	r.mu.RLock()
	handlers, exists := r.handlers[action.Type]
	if !exists {
		r.mu.RUnlock()
		return fmt.Errorf("no handlers registered for action type: %s", action.Type)
	}

	// Copy handlers to release lock quickly
	handlersCopy := make([]ActionHandler, len(handlers))
	copy(handlersCopy, handlers)
	r.mu.RUnlock()

	for _, handler := range handlersCopy {
		if err := handler.Handle(action); err != nil {
			return fmt.Errorf("handler error for %s: %w", action.Type, err)
		}
	}

	return nil
}

func (r *ActionRegistry) CreateAction(actionType ActionType, message string, ic *mamdani.InferenceContext) Action {
	return Action{
		ID:        uuid.NewString(),
		Type:      actionType,
		Message:   message,
		Timestamp: time.Now(),
		Inference: ic,
	}
}

// ObserveInference turns an inference into actions, so the registry can be
// passed to mamdani.WithObserver. Handler errors are logged, not returned.
func (r *ActionRegistry) ObserveInference(ic *mamdani.InferenceContext, elapsed time.Duration, err error) {
	var pending []Action
	if err != nil {
		a := r.CreateAction(FailedAction, "inference failed", ic)
		a.Error = err.Error()
		pending = append(pending, a)
	} else {
		pending = append(pending, r.CreateAction(ComputedAction, "inference complete", ic))

		r.mu.RLock()
		for _, t := range r.thresholds {
			if v, ok := ic.Outputs[t.Variable]; ok && v >= t.Min {
				msg := t.Message
				if msg == "" {
					msg = fmt.Sprintf("%s reached %.2f (threshold %.2f)", t.Variable, v, t.Min)
				}
				pending = append(pending, r.CreateAction(AlertAction, msg, ic))
			}
		}
		r.mu.RUnlock()
	}

	for _, a := range pending {
		a.Elapsed = elapsed
		if !r.hasHandlers(a.Type) {
			continue
		}
		if herr := r.ExecuteAction(a); herr != nil {
			r.logger.Warn("action handler failed", zap.String("type", string(a.Type)), zap.Error(herr))
		}
	}
}

func (r *ActionRegistry) hasHandlers(t ActionType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[t]) > 0
}

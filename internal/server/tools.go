// internal/server/tools.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"go.uber.org/zap"

	"macro-pipeline/internal/models"
	"macro-pipeline/internal/pipeline"
	"macro-pipeline/internal/router"
	"macro-pipeline/internal/verify"
)

type ResolveMacrosParams struct {
	UserID      string `json:"user_id" description:"User the question belongs to"`
	SessionID   string `json:"session_id" description:"Conversation session identifier"`
	Description string `json:"description" description:"Food text to resolve, e.g. '2 eggs and a slice of toast'"`
}

type LogMealParams struct {
	UserID      string  `json:"user_id" description:"User the meal belongs to"`
	SessionID   string  `json:"session_id" description:"Conversation session identifier"`
	MealSlot    string  `json:"meal_slot,omitempty" description:"breakfast, lunch, dinner or snack"`
	Description string  `json:"description,omitempty" description:"Meal description; omit when confirming a previous answer"`
	Command     string  `json:"command,omitempty" description:"Log follow-up command, e.g. 'log all' or 'log the chicken'"`
	TargetKcal  float64 `json:"daily_kcal_target,omitempty" description:"Daily calorie target for the budget comparison"`
	KcalSoFar   float64 `json:"daily_kcal_consumed,omitempty" description:"Calories already consumed today"`
}

type RouteMessageParams struct {
	UserID    string `json:"user_id" description:"User the message belongs to"`
	SessionID string `json:"session_id" description:"Conversation session identifier"`
	Message   string `json:"message" description:"Raw user utterance to classify"`
}

type VerifyMealParams struct {
	UserID     string  `json:"user_id" description:"User the cached payload belongs to"`
	SessionID  string  `json:"session_id" description:"Conversation session identifier"`
	MealSlot   string  `json:"meal_slot,omitempty" description:"breakfast, lunch, dinner or snack"`
	TargetKcal float64 `json:"daily_kcal_target,omitempty" description:"Daily calorie target for the budget comparison"`
	KcalSoFar  float64 `json:"daily_kcal_consumed,omitempty" description:"Calories already consumed today"`
}

type GetMealsParams struct {
	UserID    string `json:"user_id" description:"User whose meals to query"`
	StartDate string `json:"start_date,omitempty" description:"Start date for meal query (YYYY-MM-DD)"`
	EndDate   string `json:"end_date,omitempty" description:"End date for meal query (YYYY-MM-DD)"`
	Limit     int    `json:"limit,omitempty" description:"Maximum number of meals to return"`
}

// extractParams safely extracts parameters from the request arguments
func extractParams(req *protocol.CallToolRequest, target interface{}) error {
	jsonBytes, err := json.Marshal(req.Arguments)
	if err != nil {
		return fmt.Errorf("failed to marshal arguments: %w", err)
	}

	if err := json.Unmarshal(jsonBytes, target); err != nil {
		return fmt.Errorf("failed to unmarshal parameters: %w", err)
	}

	return nil
}

// handleResolveMacros answers a macro question without logging anything. The
// computed payload is cached so a follow-up "log it" commits the same numbers.
func (s *MacroServer) handleResolveMacros(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params ResolveMacrosParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	if params.Description == "" {
		return nil, fmt.Errorf("description is required")
	}
	if params.UserID == "" || params.SessionID == "" {
		return nil, fmt.Errorf("user_id and session_id are required")
	}

	result, err := s.pipeline.Question(ctx, params.UserID, params.SessionID, params.Description)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoFoodItems) {
			return s.createJSONResponse(map[string]interface{}{"error": err.Error()})
		}
		return nil, fmt.Errorf("failed to resolve macros: %w", err)
	}

	return s.createJSONResponse(result)
}

// handleLogMeal serves both shapes of logging: a fresh meal statement
// (description set) and a follow-up confirmation (command set).
func (s *MacroServer) handleLogMeal(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params LogMealParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	if params.UserID == "" || params.SessionID == "" {
		return nil, fmt.Errorf("user_id and session_id are required")
	}
	if params.Description == "" && params.Command == "" {
		return nil, fmt.Errorf("either description or command is required")
	}

	var budget *verify.DailyBudget
	if params.TargetKcal > 0 {
		budget = &verify.DailyBudget{
			TargetKcal:   params.TargetKcal,
			ConsumedKcal: params.KcalSoFar,
		}
	}

	var result *pipeline.Result
	var err error
	if params.Command != "" {
		result, err = s.pipeline.LogFollowUp(ctx, params.UserID, params.SessionID, params.MealSlot, params.Command)
	} else {
		result, err = s.pipeline.LogDirect(ctx, params.UserID, params.SessionID, params.MealSlot, params.Description, budget)
	}
	if err != nil {
		// Expected user-facing outcomes (nothing cached, already logged,
		// nothing parseable) come back as payload, not HTTP failure.
		return s.createJSONResponse(map[string]interface{}{"error": err.Error()})
	}

	if result.Commit != nil {
		s.logger.Info("meal commit",
			zap.String("user_id", params.UserID),
			zap.Bool("success", result.Commit.Success),
			zap.String("meal_log_id", result.Commit.MealLogID))
	}

	return s.createJSONResponse(result)
}

// handleRouteMessage classifies an utterance into one of the processing
// pipelines without executing any of them.
func (s *MacroServer) handleRouteMessage(req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params RouteMessageParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	if params.Message == "" {
		return nil, fmt.Errorf("message is required")
	}

	sessCtx := models.SessionContext{
		UserID:               params.UserID,
		SessionID:            params.SessionID,
		HasUnconsumedPayload: s.sessions.Has(params.UserID, params.SessionID),
	}

	decision := s.router.Route(params.Message, sessCtx)
	return s.createJSONResponse(decision)
}

// handleVerifyMeal builds the confirmation view for the cached payload
// without consuming it.
func (s *MacroServer) handleVerifyMeal(req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params VerifyMealParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	if params.UserID == "" || params.SessionID == "" {
		return nil, fmt.Errorf("user_id and session_id are required")
	}

	opts := verify.Options{MealSlot: params.MealSlot, IncludeTEF: true}
	if params.TargetKcal > 0 {
		opts.Budget = &verify.DailyBudget{
			TargetKcal:   params.TargetKcal,
			ConsumedKcal: params.KcalSoFar,
		}
	}

	payload, err := s.pipeline.Verification(params.UserID, params.SessionID, opts)
	if err != nil {
		return s.createJSONResponse(map[string]interface{}{"error": err.Error()})
	}

	return s.createJSONResponse(map[string]interface{}{
		"payload": payload,
		"text":    verify.RenderText(*payload),
	})
}

// handleGetMeals retrieves logged meals from storage
func (s *MacroServer) handleGetMeals(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params GetMealsParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	if params.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if params.Limit <= 0 {
		params.Limit = 20
	}

	logs, err := s.storage.GetMealLogs(ctx, params.UserID, params.StartDate, params.EndDate, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve meals: %w", err)
	}

	return s.createJSONResponse(logs)
}

// loadRules reads a YAML rule table, falling back to the built-in table when
// no path is configured.
func loadRules(path string) ([]router.Rule, error) {
	if path == "" {
		return router.DefaultRules(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	return router.LoadRules(data)
}

// Register all tools - dispatch happens in the HTTP handler, so this only
// verifies the handler table is complete.
func (s *MacroServer) registerTools() error {
	tools := []string{
		"resolve_macros",
		"log_meal",
		"route_message",
		"verify_meal",
		"get_meals",
	}

	for _, name := range tools {
		s.logger.Info("registered tool", zap.String("name", name))
	}

	return nil
}

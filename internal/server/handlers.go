package server

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/mj1618/uibridge/internal/dispatch"
	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/output"
	"github.com/mj1618/uibridge/internal/session"
)

// resultToText serializes a tool result for the MCP response.
func resultToText(f output.Format, v interface{}) string {
	var buf bytes.Buffer
	if err := output.Fprint(&buf, f, v); err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return buf.String()
}

// snapshot returns the current snapshot when it is still fresh, otherwise
// captures the screen. The caller must hold s.mu.
func (s *Server) snapshot(ctx context.Context, force bool) (*dispatch.Snapshot, error) {
	if !force {
		snap, err := s.disp.Current(ctx)
		if err != nil {
			return nil, err
		}
		if s.cache.fresh(snap) {
			return snap, nil
		}
	}
	snap, err := s.disp.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.store()
	return snap, nil
}

func snapshotResult(snap *dispatch.Snapshot) output.SnapshotResult {
	return output.SnapshotResult{
		Generation: snap.Generation(),
		Kind:       snap.Kind.String(),
		TS:         snap.TakenAt.UnixMilli(),
		Nodes:      snap.Nodes.Len(),
		Root:       snap.Root,
	}
}

func (s *Server) handleSnapshot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	format, err := output.ParseFormat(stringParam(params, "format", string(output.FormatYAML)))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fresh := boolParam(params, "fresh", false)

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.snapshot(ctx, fresh)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(resultToText(format, snapshotResult(snap))), nil
}

// actionParams drops the tool's own arguments, leaving the action's
// parameters.
func actionParams(params map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		if k == "action" || k == "wait" {
			continue
		}
		out[k] = v
	}
	return out
}

func (s *Server) handleAct(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	name := stringParam(params, "action", "")
	if name == "" {
		return mcp.NewToolResultError("action parameter is required"), nil
	}
	wait := boolParam(params, "wait", true) && s.waiter != nil

	result := output.ActResult{Action: name}
	fail := func(err error) (*mcp.CallToolResult, error) {
		result.OK = false
		result.Error = err.Error()
		result.Kind = string(session.Classify(err))
		return mcp.NewToolResultError(resultToText(output.FormatYAML, result)), nil
	}

	req, err := dispatch.ParseRequest(name, actionParams(params))
	if err != nil {
		return fail(err)
	}
	result.Action = string(req.Action)
	result.Index = req.Index

	s.mu.Lock()
	defer s.mu.Unlock()

	if req.Action.NeedsTarget() {
		snap, err := s.disp.Current(ctx)
		if err != nil {
			return fail(err)
		}
		if snap == nil {
			if _, err := s.snapshot(ctx, true); err != nil {
				return fail(err)
			}
		}
	}

	if wait {
		s.waiter.ArmForAction(string(req.Action))
	}
	err = s.disp.Act(ctx, req)
	s.cache.invalidate()
	if err != nil {
		if wait {
			s.waiter.Reset()
		}
		return fail(err)
	}
	result.OK = true
	if !wait {
		return mcp.NewToolResultText(resultToText(output.FormatYAML, result)), nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.waitLimit())
	defer cancel()
	c, err := s.waiter.Wait(waitCtx)
	if err != nil {
		return fail(fmt.Errorf("wait for screen: %w", err))
	}
	snap, err := s.snapshot(ctx, true)
	if err != nil {
		return fail(err)
	}
	result.Generation = snap.Generation()
	if c.Err != nil {
		// The screen was still captured so the caller has something to
		// look at.
		return fail(c.Err)
	}
	s.logger.Debug("action settled", zap.String("action", name), zap.String("reason", string(c.Reason)))
	return mcp.NewToolResultText(resultToText(output.FormatYAML, result)), nil
}

func (s *Server) handleFind(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	text := stringParam(params, "text", "")
	if text == "" {
		return mcp.NewToolResultError("text parameter is required"), nil
	}
	clickable := boolParam(params, "clickable", false)

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.snapshot(ctx, false)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	elements := model.FilterByText(snap.Root, text)
	if clickable {
		elements = model.FilterClickable(elements)
	}
	result := output.FindResult{Generation: snap.Generation(), Text: text, Elements: elements}
	return mcp.NewToolResultText(resultToText(output.FormatYAML, result)), nil
}

func (s *Server) handleWait(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.waiter == nil {
		return mcp.NewToolResultError("wait is not available without a stability waiter"), nil
	}
	params := request.GetArguments()
	firstLoad := boolParam(params, "first_load", false)
	timeout := time.Duration(intParam(params, "timeout_ms", 0)) * time.Millisecond
	if timeout <= 0 {
		timeout = s.waitLimit()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.clock.Now()
	if firstLoad {
		s.waiter.ArmForInstruction()
	} else {
		s.waiter.ArmForAction("wait")
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	c, err := s.waiter.Wait(waitCtx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("screen did not settle: %v", err)), nil
	}
	s.cache.invalidate()
	snap, err := s.snapshot(ctx, true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result := output.WaitResult{
		Reason:     string(c.Reason),
		ElapsedMS:  s.clock.Now().Sub(start).Milliseconds(),
		Generation: snap.Generation(),
	}
	return mcp.NewToolResultText(resultToText(output.FormatYAML, result)), nil
}

// Parameter extraction helpers for tool arguments.

func stringParam(params map[string]interface{}, key, defaultVal string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
	return defaultVal
}

func intParam(params map[string]interface{}, key string, defaultVal int) int {
	if v, ok := params[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		case int64:
			return int(n)
		}
	}
	return defaultVal
}

func boolParam(params map[string]interface{}, key string, defaultVal bool) bool {
	if v, ok := params[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}

package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shambu-network/shambu/pkg/metrics"
)

const maxLoggedArgument = 200

// MCPRequestLogger logs MCP JSON-RPC tool calls and counts them per tool.
// Tool results flagged isError count as errors alongside JSON-RPC errors.
func MCPRequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				logger.Error("Failed to read MCP request body", zap.Error(err))
				http.Error(w, "failed to read request body", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			var req jsonRPCRequest
			if err := json.Unmarshal(body, &req); err != nil {
				logger.Debug("Failed to parse MCP request JSON", zap.Error(err))
			}
			tool := req.Params.Name

			logger.Debug("MCP request",
				zap.String("method", req.Method),
				zap.String("tool", tool),
				zap.Any("arguments", sanitizeArguments(req.Params.Arguments)),
			)

			recorder := &mcpResponseRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(recorder, r)
			duration := time.Since(start)

			if req.Method != "tools/call" {
				return
			}

			var resp jsonRPCResponse
			if err := json.Unmarshal(recorder.body.Bytes(), &resp); err != nil {
				logger.Debug("Failed to parse MCP response JSON", zap.String("tool", tool), zap.Error(err))
				return
			}

			switch {
			case resp.Error != nil:
				metrics.MCPToolCallsTotal.WithLabelValues(tool, metrics.ResultError).Inc()
				logger.Debug("MCP response error",
					zap.String("tool", tool),
					zap.Int("error_code", resp.Error.Code),
					zap.String("error_message", resp.Error.Message),
					zap.Duration("duration", duration),
				)
			case resp.Result.IsError:
				metrics.MCPToolCallsTotal.WithLabelValues(tool, metrics.ResultError).Inc()
				logger.Debug("MCP tool error result",
					zap.String("tool", tool),
					zap.Duration("duration", duration),
				)
			default:
				metrics.MCPToolCallsTotal.WithLabelValues(tool, metrics.ResultOK).Inc()
				logger.Debug("MCP response success",
					zap.String("tool", tool),
					zap.Duration("duration", duration),
				)
			}
		})
	}
}

type jsonRPCRequest struct {
	Method string `json:"method"`
	Params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"params"`
}

type jsonRPCResponse struct {
	Result struct {
		IsError bool `json:"isError"`
	} `json:"result"`
	Error *jsonRPCError `json:"error"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// mcpResponseRecorder tees the response body.
type mcpResponseRecorder struct {
	http.ResponseWriter
	body bytes.Buffer
}

func (r *mcpResponseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *mcpResponseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

var sensitiveKeywords = []string{"password", "secret", "token", "key", "credential", "email"}

// sanitizeArguments redacts sensitive fields and truncates long strings.
func sanitizeArguments(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		lower := strings.ToLower(k)
		redacted := false
		for _, kw := range sensitiveKeywords {
			if strings.Contains(lower, kw) {
				redacted = true
				break
			}
		}
		switch s, isString := v.(string); {
		case redacted:
			out[k] = "[REDACTED]"
		case isString && len(s) > maxLoggedArgument:
			out[k] = s[:maxLoggedArgument] + "..."
		default:
			out[k] = v
		}
	}
	return out
}

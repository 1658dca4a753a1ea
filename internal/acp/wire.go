package acp

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// RPCError is the error object of a JSON-RPC response, and the shape used
// when this client reports errors back to the agent.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Standard JSON-RPC error codes served back to the agent.
const (
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// MessageKind discriminates the closed union of inbound protocol traffic.
type MessageKind int

const (
	// MsgRequest is an agent-initiated call: method and id are present.
	MsgRequest MessageKind = iota
	// MsgNotification carries a method but no id and expects no reply.
	MsgNotification
	// MsgResponse answers one of our outbound requests: id, no method.
	MsgResponse
)

// Message is one decoded inbound JSON-RPC object. The payload fields that
// are meaningful depend on Kind; everything else is zero.
type Message struct {
	Kind   MessageKind
	ID     int64
	Method string
	Params json.RawMessage
	Result json.RawMessage
	Err    *RPCError
}

type rpcEnvelope struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// parseMessage decodes one line into the closed message union.
func parseMessage(line []byte) (Message, error) {
	var env rpcEnvelope
	if err := json.Unmarshal(line, &env); err != nil {
		return Message{}, fmt.Errorf("parse message: %w", err)
	}

	id, hasID := parseRPCID(env.ID)

	switch {
	case env.Method != "" && hasID:
		return Message{Kind: MsgRequest, ID: id, Method: env.Method, Params: env.Params}, nil
	case env.Method != "":
		return Message{Kind: MsgNotification, Method: env.Method, Params: env.Params}, nil
	case hasID:
		return Message{Kind: MsgResponse, ID: id, Result: env.Result, Err: env.Error}, nil
	default:
		return Message{}, fmt.Errorf("message has neither method nor id")
	}
}

// parseRPCID coerces a raw id into an int64. Integer ids are the norm;
// float representations are accepted and truncated.
func parseRPCID(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return 0, false
	}
	if v, err := num.Int64(); err == nil {
		return v, true
	}
	if f, err := num.Float64(); err == nil {
		return int64(f), true
	}
	return 0, false
}

type outboundRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type outboundResult struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Result  any    `json:"result"`
}

type outboundError struct {
	JSONRPC string   `json:"jsonrpc"`
	ID      int64    `json:"id"`
	Error   RPCError `json:"error"`
}

func buildRequest(id int64, method string, params any) (string, error) {
	b, err := json.Marshal(outboundRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return "", fmt.Errorf("encode %s request: %w", method, err)
	}
	return string(b), nil
}

func buildResult(id int64, result any) (string, error) {
	b, err := json.Marshal(outboundResult{JSONRPC: "2.0", ID: id, Result: result})
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(b), nil
}

func buildError(id int64, code int, message string) (string, error) {
	b, err := json.Marshal(outboundError{JSONRPC: "2.0", ID: id, Error: RPCError{Code: code, Message: message}})
	if err != nil {
		return "", fmt.Errorf("encode error: %w", err)
	}
	return string(b), nil
}

// splitFrameLines splits a frame into candidate JSON lines. Lines starting
// with "//" are control comments emitted by the agent; they are logged and
// skipped, as are blank lines.
func splitFrameLines(text string, logger *slog.Logger) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		raw := strings.TrimSpace(line)
		if raw == "" {
			continue
		}
		if strings.HasPrefix(raw, "//") {
			if logger != nil {
				logger.Debug("control message from agent", "line", raw)
			}
			continue
		}
		lines = append(lines, raw)
	}
	return lines
}

package acp

import (
	"encoding/json"
	"fmt"
)

// Shapes of the callback results served back to the agent.

type permissionOutcome struct {
	Outcome  string `json:"outcome"`
	OptionID string `json:"optionId"`
}

type permissionResult struct {
	Outcome permissionOutcome `json:"outcome"`
}

type readTextFileParams struct {
	Path      string `json:"path"`
	SessionID string `json:"sessionId"`
	Line      *int   `json:"line"`
	Limit     *int   `json:"limit"`
}

type readTextFileResult struct {
	Content   string `json:"content"`
	Path      string `json:"path"`
	SessionID string `json:"sessionId"`
}

type writeTextFileParams struct {
	Path    *string `json:"path"`
	Content *string `json:"content"`
}

type questionsResult struct {
	Answers map[string]string `json:"answers"`
}

type planExitResult struct {
	Approved bool `json:"approved"`
}

// handleServerRequest answers a JSON-RPC request the agent issued back to
// this client. The adapter runs in a non-interactive trust mode: permission
// prompts are auto-approved and question/plan flows are unblocked with stub
// answers. Local I/O failures are reported back to the agent as JSON-RPC
// errors, never surfaced to the application.
func (c *conn) handleServerRequest(id int64, method string, params json.RawMessage) {
	c.logger.Debug("server request received", "method", method, "id", id)

	var err error
	switch method {
	case "session/request_permission":
		err = c.sendResult(id, permissionResult{
			Outcome: permissionOutcome{Outcome: "selected", OptionID: "allow_once"},
		})

	case "fs/read_text_file":
		var p readTextFileParams
		if json.Unmarshal(params, &p) != nil || p.Path == "" {
			err = c.sendError(id, CodeInvalidParams, "Missing path")
			break
		}
		content, readErr := c.fs.ReadTextFile(p.Path, p.Line, p.Limit)
		if readErr != nil {
			err = c.sendError(id, CodeInternalError, fmt.Sprintf("Failed to read file: %v", readErr))
			break
		}
		err = c.sendResult(id, readTextFileResult{Content: content, Path: p.Path, SessionID: p.SessionID})

	case "fs/write_text_file":
		var p writeTextFileParams
		if json.Unmarshal(params, &p) != nil || p.Path == nil {
			err = c.sendError(id, CodeInvalidParams, "Missing path")
			break
		}
		if p.Content == nil {
			err = c.sendError(id, CodeInvalidParams, "Missing content")
			break
		}
		if writeErr := c.fs.WriteTextFile(*p.Path, *p.Content); writeErr != nil {
			err = c.sendError(id, CodeInternalError, fmt.Sprintf("Failed to write file: %v", writeErr))
			break
		}
		err = c.sendResult(id, nil)

	case "_iflow/user/questions":
		err = c.sendResult(id, questionsResult{Answers: map[string]string{}})

	case "_iflow/plan/exit":
		err = c.sendResult(id, planExitResult{Approved: true})

	default:
		err = c.sendError(id, CodeMethodNotFound, "Method not found")
	}

	if err != nil {
		c.logger.Warn("failed to respond to server request", "method", method, "error", err)
	}
}

func (c *conn) sendResult(id int64, result any) error {
	msg, err := buildResult(id, result)
	if err != nil {
		return err
	}
	return c.t.Send(msg)
}

func (c *conn) sendError(id int64, code int, message string) error {
	msg, err := buildError(id, code, message)
	if err != nil {
		return err
	}
	return c.t.Send(msg)
}

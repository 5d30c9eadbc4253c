package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/openhab/openhab-addons-sub192/internal/audit"
	"github.com/openhab/openhab-addons-sub192/internal/bridges/nobo"
)

// handleListCommands returns the command history, newest first.
//
// GET /commands
// GET /commands?command=set_override&status=failed&limit=20&offset=40
// Response: {"entries": [...], "total": N, "limit": 20, "offset": 40}
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	if s.commands == nil {
		writeNotFound(w, "command history is not enabled")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Command: q.Get("command"),
		Status:  q.Get("status"),
	}
	var err error
	if filter.Limit, err = queryInt(q.Get("limit")); err != nil {
		writeBadRequest(w, "limit must be a number")
		return
	}
	if filter.Offset, err = queryInt(q.Get("offset")); err != nil {
		writeBadRequest(w, "offset must be a number")
		return
	}

	res, err := s.commands.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list commands", "error", err)
		writeInternalError(w, "failed to list commands")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func queryInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// recordCommand writes one command outcome to the history. Failures to
// record are logged and never fail the request.
func (s *Server) recordCommand(r *http.Request, cmd nobo.CommandMessage, line string, cmdErr error) {
	if s.commands == nil {
		return
	}

	entry := &audit.Entry{
		ID:         cmd.ID,
		Command:    cmd.Command,
		Status:     audit.StatusAccepted,
		Source:     cmd.Source,
		Line:       line,
		Parameters: cmd.Parameters,
		CreatedAt:  cmd.Timestamp,
	}
	if cmdErr != nil {
		entry.Error = cmdErr.Error()
		entry.Status = audit.StatusFailed
		if isRejection(cmdErr) {
			entry.Status = audit.StatusRejected
		}
	}

	if err := s.commands.Create(r.Context(), entry); err != nil {
		s.logger.Warn("failed to record command", "command_id", cmd.ID, "error", err)
	}
}

// isRejection reports whether err means the command was refused before
// reaching the hub.
func isRejection(err error) bool {
	return errors.Is(err, nobo.ErrInvalidCommand) ||
		errors.Is(err, nobo.ErrInvalidParameter) ||
		errors.Is(err, nobo.ErrInvalidData) ||
		errors.Is(err, nobo.ErrNotFound)
}

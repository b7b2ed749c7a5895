package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"gameforge/pkg/session"
)

// ChatRequest is the body of POST /api/chat. A sessionId continues that
// session; otherwise prompt starts a new one.
type ChatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
	Prompt    string `json:"prompt"`
}

// ChatResponse carries one Advance outcome.
type ChatResponse struct {
	Type      session.Kind `json:"type"`
	Data      any          `json:"data"`
	SessionID string       `json:"sessionId"`
}

// PlanSummary is the plan projection shown in session listings.
type PlanSummary struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// SessionSummary is one entry of GET /api/sessions.
type SessionSummary struct {
	ID        string        `json:"id"`
	Prompt    string        `json:"prompt"`
	Status    session.Phase `json:"status"`
	CreatedAt string        `json:"createdAt"`
	Plan      *PlanSummary  `json:"plan"`
}

// SessionDetail is the body of GET /api/sessions/:id.
type SessionDetail struct {
	ID            string                 `json:"id"`
	Prompt        string                 `json:"prompt"`
	Status        session.Phase          `json:"status"`
	CreatedAt     string                 `json:"createdAt"`
	Clarification *session.Clarification `json:"clarification"`
	Plan          *session.Plan          `json:"plan"`
	Code          *session.Artifact      `json:"code"`
	Error         *string                `json:"error"`
}

func (s *Server) handleChat(c echo.Context) error {
	owner := ownerOf(c)
	ctx := c.Request().Context()

	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid chat request", zap.Error(err))
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}

	var sessionID, message string
	switch {
	case req.SessionID != "":
		sess, err := s.store.GetSession(ctx, req.SessionID)
		if errors.Is(err, session.ErrSessionNotFound) || (err == nil && sess.OwnerID != owner) {
			return errorJSON(c, http.StatusNotFound, "Session not found")
		}
		if err != nil {
			return s.internalError(c, err)
		}
		sessionID, message = sess.ID, req.Message

	case req.Prompt != "":
		if s.config.GuestOwner != "" && owner == s.config.GuestOwner {
			if err := s.clearGuestSlot(ctx, owner); err != nil {
				if ctx.Err() != nil {
					return errorJSON(c, http.StatusServiceUnavailable, "request cancelled while waiting for session")
				}
				return s.internalError(c, err)
			}
		}
		sess, err := s.store.CreateSession(ctx, owner, req.Prompt)
		if err != nil {
			return s.internalError(c, err)
		}
		sessionID = sess.ID

	default:
		return errorJSON(c, http.StatusBadRequest, "Missing prompt or sessionId")
	}

	unlock, err := s.locks.Lock(ctx, sessionID)
	if err != nil {
		return errorJSON(c, http.StatusServiceUnavailable, "request cancelled while waiting for session")
	}
	defer unlock()

	outcome, err := s.advancer.Advance(ctx, sessionID, message)
	switch {
	case err == nil, errors.Is(err, session.ErrUnknownPhase):
	case errors.Is(err, session.ErrSessionNotFound):
		return errorJSON(c, http.StatusNotFound, "Session not found")
	default:
		return s.internalError(c, err)
	}

	return c.JSON(http.StatusOK, ChatResponse{
		Type:      outcome.Kind,
		Data:      outcome.Payload,
		SessionID: sessionID,
	})
}

// clearGuestSlot deletes the guest's previous sessions while holding their
// locks, so no Advance is in flight on a row being removed.
func (s *Server) clearGuestSlot(ctx context.Context, owner string) error {
	existing, err := s.store.ListSessions(ctx, owner)
	if err != nil {
		return err //nolint:wrapcheck
	}
	ids := make([]string, 0, len(existing))
	for _, sum := range existing {
		ids = append(ids, sum.ID)
	}
	sort.Strings(ids)

	for _, id := range ids {
		unlock, err := s.locks.Lock(ctx, id)
		if err != nil {
			return err //nolint:wrapcheck
		}
		defer unlock()
	}

	n, err := s.store.DeleteOwnerSessions(ctx, owner)
	if err != nil {
		return err //nolint:wrapcheck
	}
	if n > 0 {
		s.logger.Debug("guest slot cleared", zap.Int64("deleted", n))
	}
	return nil
}

func (s *Server) handleListSessions(c echo.Context) error {
	summaries, err := s.store.ListSessions(c.Request().Context(), ownerOf(c))
	if err != nil {
		return s.internalError(c, err)
	}

	out := make([]SessionSummary, 0, len(summaries))
	for _, sum := range summaries {
		item := SessionSummary{
			ID:        sum.ID,
			Prompt:    sum.Prompt,
			Status:    sum.Phase,
			CreatedAt: formatTime(sum.CreatedAt),
		}
		if sum.Title != "" || sum.Description != "" {
			item.Plan = &PlanSummary{Title: sum.Title, Description: sum.Description}
		}
		out = append(out, item)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetSession(c echo.Context) error {
	sess, err := s.store.GetSession(c.Request().Context(), c.Param("id"))
	if errors.Is(err, session.ErrSessionNotFound) || (err == nil && sess.OwnerID != ownerOf(c)) {
		return errorJSON(c, http.StatusNotFound, "Session not found")
	}
	if err != nil {
		return s.internalError(c, err)
	}

	detail := SessionDetail{
		ID:            sess.ID,
		Prompt:        sess.OriginalPrompt,
		Status:        sess.Phase,
		CreatedAt:     formatTime(sess.CreatedAt),
		Clarification: sess.Clarification,
		Plan:          sess.Plan,
		Code:          sess.Artifact,
	}
	if sess.FailureReason != "" {
		detail.Error = &sess.FailureReason
	}
	return c.JSON(http.StatusOK, detail)
}

func (s *Server) internalError(c echo.Context, err error) error {
	s.logger.Error("request failed",
		zap.String("uri", c.Request().RequestURI),
		zap.Error(err),
	)
	return errorJSON(c, http.StatusInternalServerError, err.Error())
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

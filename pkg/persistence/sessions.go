package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"gameforge/pkg/session"
)

const timeLayout = "2006-01-02T15:04:05.000Z"

// CreateSession inserts a new session in phase INIT.
func (s *Store) CreateSession(ctx context.Context, ownerID, prompt string) (*session.Session, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, errors.New("prompt cannot be empty")
	}
	now := time.Now().UTC()
	sess := &session.Session{
		ID:             uuid.NewString(),
		OwnerID:        ownerID,
		OriginalPrompt: prompt,
		Phase:          session.PhaseInit,
		CreatedAt:      now.Truncate(time.Millisecond),
		UpdatedAt:      now.Truncate(time.Millisecond),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, owner_id, prompt, phase, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sess.ID, ownerID, prompt, string(sess.Phase), now.Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

// GetSession returns a session by id. The phase is loaded verbatim; callers
// validate it. Returns session.ErrSessionNotFound if the id is unknown.
func (s *Store) GetSession(ctx context.Context, id string) (*session.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, prompt, phase, clarification, plan, artifact,
		       failure_reason, retry_count, created_at, updated_at
		FROM sessions
		WHERE id = ?
	`, id)

	var (
		sess                          session.Session
		phase                         string
		clarification, plan, artifact sql.NullString
		failureReason                 sql.NullString
		createdAt, updatedAt          string
	)
	err := row.Scan(&sess.ID, &sess.OwnerID, &sess.OriginalPrompt, &phase,
		&clarification, &plan, &artifact, &failureReason, &sess.RetryCount, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", session.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	sess.Phase = session.Phase(phase)
	sess.FailureReason = failureReason.String
	sess.CreatedAt = parseTime(createdAt)
	sess.UpdatedAt = parseTime(updatedAt)

	if err := decodeColumn(clarification, &sess.Clarification); err != nil {
		return nil, fmt.Errorf("session %s clarification: %w", id, err)
	}
	if err := decodeColumn(plan, &sess.Plan); err != nil {
		return nil, fmt.Errorf("session %s plan: %w", id, err)
	}
	if err := decodeColumn(artifact, &sess.Artifact); err != nil {
		return nil, fmt.Errorf("session %s artifact: %w", id, err)
	}
	return &sess, nil
}

// UpdateSession applies the set fields of patch in one statement.
func (s *Store) UpdateSession(ctx context.Context, id string, patch session.Patch) error {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC().Format(timeLayout)}

	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if patch.Phase != nil {
		add("phase", string(*patch.Phase))
	}
	for column, payload := range map[string]any{
		"clarification": patch.Clarification,
		"plan":          patch.Plan,
		"artifact":      patch.Artifact,
	} {
		if isNilPayload(payload) {
			continue
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", column, err)
		}
		add(column, string(data))
	}
	if patch.FailureReason != nil {
		add("failure_reason", *patch.FailureReason)
	}
	if patch.RetryCount != nil {
		add("retry_count", *patch.RetryCount)
	}

	args = append(args, id)
	//nolint:gosec // column names are fixed above
	result, err := s.db.ExecContext(ctx, "UPDATE sessions SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", session.ErrSessionNotFound, id)
	}
	return nil
}

// ListSessions returns the owner's sessions, newest first.
func (s *Store) ListSessions(ctx context.Context, ownerID string) ([]session.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, prompt, phase, created_at,
		       COALESCE(json_extract(plan, '$.title'), ''),
		       COALESCE(json_extract(plan, '$.description'), '')
		FROM sessions
		WHERE owner_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	summaries := []session.Summary{}
	for rows.Next() {
		var (
			sum       session.Summary
			phase     string
			createdAt string
		)
		if err := rows.Scan(&sum.ID, &sum.Prompt, &phase, &createdAt, &sum.Title, &sum.Description); err != nil {
			return nil, fmt.Errorf("failed to scan session summary: %w", err)
		}
		sum.Phase = session.Phase(phase)
		sum.CreatedAt = parseTime(createdAt)
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return summaries, nil
}

// DeleteOwnerSessions removes every session of ownerID and returns the count.
func (s *Store) DeleteOwnerSessions(ctx context.Context, ownerID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE owner_id = ?`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func decodeColumn[T any](col sql.NullString, dst **T) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	var v T
	if err := json.Unmarshal([]byte(col.String), &v); err != nil {
		return fmt.Errorf("failed to decode stored JSON: %w", err)
	}
	*dst = &v
	return nil
}

func isNilPayload(v any) bool {
	switch p := v.(type) {
	case *session.Clarification:
		return p == nil
	case *session.Plan:
		return p == nil
	case *session.Artifact:
		return p == nil
	default:
		return v == nil
	}
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

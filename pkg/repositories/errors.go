package repositories

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shambu-network/shambu/pkg/apperrors"
)

// PostgreSQL SQLSTATE codes translated into domain errors.
const (
	foreignKeyViolation = "23503"
	checkViolation      = "23514"
	invalidTextRepr     = "22P02"
)

// translateError maps driver errors to apperrors sentinels, keeping the cause.
func translateError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case foreignKeyViolation:
		return fmt.Errorf("%w: %s", apperrors.ErrNotFound, pgErr.Detail)
	case invalidTextRepr:
		return fmt.Errorf("%w: %s", apperrors.ErrNotFound, pgErr.Message)
	case checkViolation:
		switch pgErr.ConstraintName {
		case "connections_strength_check":
			return fmt.Errorf("%w: %w", apperrors.ErrInvalidStrength, err)
		case "connections_no_self_loop":
			return fmt.Errorf("%w: %w", apperrors.ErrSelfConnection, err)
		case "connections_type_check":
			return fmt.Errorf("%w: %w", apperrors.ErrInvalidConnectionType, err)
		default:
			return fmt.Errorf("%w: %w", apperrors.ErrInvalidProfile, err)
		}
	}
	return err
}

// parseID rejects ids that cannot exist as rows.
func parseID(id string) (uuid.UUID, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid id %q", apperrors.ErrNotFound, id)
	}
	return u, nil
}

// jsonParam encodes a metadata map for a $n::jsonb parameter.
func jsonParam(m map[string]any) (*string, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	s := string(b)
	return &s, nil
}

// collectJSON decodes single-column jsonb rows into T.
func collectJSON[T any](rows pgx.Rows) ([]T, error) {
	defer rows.Close()
	out := make([]T, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrMalformedRow, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", translateError(err))
	}
	return out, nil
}

// scanJSON decodes one jsonb row into T.
func scanJSON[T any](row pgx.Row) (T, error) {
	var v T
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		return v, translateError(err)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("%w: %w", apperrors.ErrMalformedRow, err)
	}
	return v, nil
}

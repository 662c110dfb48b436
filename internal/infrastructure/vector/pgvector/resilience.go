package pgvector

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirillkom/medical-rag-assistant/internal/core/domain"
	"github.com/kirillkom/medical-rag-assistant/internal/infrastructure/resilience"
)

// SQLSTATE codes worth another attempt: connection exceptions (class 08),
// serialization failures, deadlocks, shutdowns and connection exhaustion.
var transientSQLStates = map[string]struct{}{
	"40001": {},
	"40P01": {},
	"53300": {},
	"57P01": {},
	"57P02": {},
	"57P03": {},
}

func classifyPGError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	if isDimensionMismatch(err) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if _, ok := transientSQLStates[pgErr.Code]; ok || strings.HasPrefix(pgErr.Code, "08") {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, driver.ErrBadConn) || pgconn.SafeToRetry(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

// wrapVectorError maps a dimension rejection to a model mismatch and
// transient failures to ErrTemporary.
func wrapVectorError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if isDimensionMismatch(err) {
		return domain.WrapError(domain.ErrModelMismatch, operation, err)
	}
	if resilience.IsCircuitOpen(err) || classifyPGError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func isDimensionMismatch(err error) bool {
	return strings.Contains(err.Error(), "different vector dimensions")
}

package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NotFound("ticket"), http.StatusNotFound},
		{"wrapped conflict", fmt.Errorf("claim: %w", Conflict("closed")), http.StatusConflict},
		{"signature", InvalidSignature(), http.StatusForbidden},
		{"unavailable", Unavailable("redis"), http.StatusServiceUnavailable},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetHTTPStatus(tt.err); got != tt.want {
				t.Errorf("GetHTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDatabaseErrorUnwraps(t *testing.T) {
	cause := errors.New("pq: connection refused")
	err := fmt.Errorf("list: %w", DatabaseError("list tickets", cause))

	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Code != CodeDatabaseError {
		t.Fatalf("errors.As() = %+v", appErr)
	}
	if !errors.Is(err, cause) {
		t.Error("cause lost in chain")
	}
}

func TestMissingFieldDetail(t *testing.T) {
	err := MissingField("operator")
	if err.Details["field"] != "operator" || err.Status != http.StatusBadRequest {
		t.Errorf("MissingField() = %+v", err)
	}
}

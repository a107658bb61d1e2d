package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			appErr:   SlotConflict("slot taken"),
			expected: "SLOT_CONFLICT: slot taken",
		},
		{
			name:     "with underlying error",
			appErr:   Internal("store failed", errors.New("connection refused")),
			expected: "INTERNAL_ERROR: store failed (caused by: connection refused)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appErr.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSchedulingKinds(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		status     int
		retryable  bool
		detailsKey string
	}{
		{name: "doctor unavailable", err: DoctorUnavailable("d1"), code: CodeDoctorUnavailable, status: http.StatusConflict, detailsKey: "doctor_id"},
		{name: "outside availability", err: OutsideAvailability("closed"), code: CodeOutsideAvailability, status: http.StatusUnprocessableEntity},
		{name: "slot conflict", err: SlotConflict("taken"), code: CodeSlotConflict, status: http.StatusConflict},
		{name: "invalid transition", err: InvalidTransition("cancelled", "confirmed", "terminal"), code: CodeInvalidTransition, status: http.StatusConflict, detailsKey: "from"},
		{name: "timeout", err: Timeout("lock busy"), code: CodeTimeout, status: http.StatusServiceUnavailable, retryable: true},
		{name: "not found", err: NotFoundWithID("Booking", "b1"), code: CodeNotFound, status: http.StatusNotFound, detailsKey: "id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("code = %s, want %s", tt.err.Code, tt.code)
			}
			if tt.err.StatusCode() != tt.status {
				t.Errorf("status = %d, want %d", tt.err.StatusCode(), tt.status)
			}
			if tt.err.Retryable() != tt.retryable {
				t.Errorf("retryable = %v, want %v", tt.err.Retryable(), tt.retryable)
			}
			if tt.detailsKey != "" {
				if _, ok := tt.err.Details[tt.detailsKey]; !ok {
					t.Errorf("expected details key %q in %v", tt.detailsKey, tt.err.Details)
				}
			}
		})
	}
}

func TestHasCode_ThroughWrapping(t *testing.T) {
	base := SlotConflict("taken")
	wrapped := fmt.Errorf("transaction failed: %w", base)

	if !HasCode(wrapped, CodeSlotConflict) {
		t.Error("HasCode should see through fmt.Errorf wrapping")
	}
	if HasCode(wrapped, CodeTimeout) {
		t.Error("HasCode matched the wrong code")
	}
	if HasCode(errors.New("plain"), CodeSlotConflict) {
		t.Error("HasCode matched a plain error")
	}
	if !IsAppError(wrapped) {
		t.Error("IsAppError should see through wrapping")
	}
}

func TestAsAppError(t *testing.T) {
	original := Timeout("busy")
	if got := AsAppError(fmt.Errorf("outer: %w", original)); got != original {
		t.Errorf("AsAppError should unwrap to the original AppError")
	}

	plain := errors.New("disk full")
	got := AsAppError(plain)
	if got.Code != CodeInternal || got.HTTPStatus != http.StatusInternalServerError {
		t.Errorf("plain errors should become internal errors, got %+v", got)
	}
	if !errors.Is(got, plain) {
		t.Error("internal wrapper should keep the cause")
	}
}

func TestToJSON(t *testing.T) {
	data := InvalidTransition("completed", "cancelled", "booking is terminal").ToJSON()
	want := `{"code":"INVALID_TRANSITION","message":"Cannot move booking from completed to cancelled: booking is terminal","details":{"from":"completed","to":"cancelled"}}`
	if string(data) != want {
		t.Errorf("ToJSON() = %s, want %s", data, want)
	}
}

package errors

import (
	stderrs "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorMessageAndUnwrap(t *testing.T) {
	t.Parallel()

	cause := stderrs.New("boom")
	err := Wrapf(cause, ErrorCodeUnavailable, "lookup failed for %s", "42")

	if got := err.Error(); got != "lookup failed for 42: boom" {
		t.Fatalf("Error() = %q", got)
	}
	if !stderrs.Is(err, cause) {
		t.Fatalf("wrapped cause not reachable via errors.Is")
	}
}

func TestCodeOfAndIsCode(t *testing.T) {
	t.Parallel()

	err := Conflictf("a verification job is already running")
	if CodeOf(err) != ErrorCodeConflict {
		t.Fatalf("CodeOf = %d, want conflict", CodeOf(err))
	}
	if !IsCode(err, ErrorCodeConflict) {
		t.Fatalf("IsCode(conflict) = false")
	}

	// code survives an fmt wrap
	wrapped := fmt.Errorf("outer: %w", err)
	if CodeOf(wrapped) != ErrorCodeConflict {
		t.Fatalf("CodeOf through fmt wrap = %d", CodeOf(wrapped))
	}

	if CodeOf(stderrs.New("plain")) != ErrorCodeUnknown {
		t.Fatalf("plain error should map to unknown")
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want int
	}{
		{NotFoundf("no guild"), http.StatusNotFound},
		{Conflictf("job running"), http.StatusConflict},
		{Validationf("bad config"), http.StatusBadRequest},
		{Unauthorizedf("bad key"), http.StatusUnauthorized},
		{Forbiddenf("no perms"), http.StatusForbidden},
		{TooManyRequestsf("rate limited"), http.StatusTooManyRequests},
		{Unavailablef("timeout"), http.StatusServiceUnavailable},
		{stderrs.New("plain"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := HTTPStatus(c.err); got != c.want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestWithOpPreservesCode(t *testing.T) {
	t.Parallel()

	err := WithOp(Forbiddenf("missing manage roles"), "role.grant")
	e, ok := As(err)
	if !ok {
		t.Fatalf("expected *Error")
	}
	if e.Op() != "role.grant" {
		t.Fatalf("Op = %q", e.Op())
	}
	if e.Code() != ErrorCodeForbidden {
		t.Fatalf("Code = %d", e.Code())
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	if !IsRetryable(Unavailablef("transient")) {
		t.Fatalf("unavailable should be retryable")
	}
	if !IsRetryable(TooManyRequestsf("slow down")) {
		t.Fatalf("rate limited should be retryable")
	}
	if IsRetryable(Forbiddenf("nope")) {
		t.Fatalf("forbidden should not be retryable")
	}
}

func TestWireFrom(t *testing.T) {
	t.Parallel()

	w := WireFrom(NotFoundf("no such member"))
	if w.Code != ErrorCodeNotFound || w.Message != "no such member" {
		t.Fatalf("WireFrom = %+v", w)
	}
	if w := WireFrom(nil); w != (Wire{}) {
		t.Fatalf("WireFrom(nil) = %+v", w)
	}
}

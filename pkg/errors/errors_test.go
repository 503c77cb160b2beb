package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
)

func TestErrorIncludesInternal(t *testing.T) {
	internal := stdErrors.New("boom")
	err := Wrap(internal, "failed")

	if err.Error() != "failed: boom" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
}

func TestWithInternalCopies(t *testing.T) {
	base := New("TEST", "test", 400)
	with := base.WithInternal(stdErrors.New("oops"))

	if with == base {
		t.Fatal("expected WithInternal to return a copy")
	}

	if base.Internal != nil {
		t.Fatal("expected original error to remain unchanged")
	}

	if with.Internal == nil {
		t.Fatal("expected internal error to be set")
	}
}

func TestFromError(t *testing.T) {
	appErr := ErrNotFound
	if out := FromError(appErr); out != appErr {
		t.Fatal("expected FromError to return the same AppError instance")
	}

	raw := stdErrors.New("raw")
	out := FromError(raw)
	if out.Code != ErrInternalServer.Code {
		t.Fatalf("expected internal server code, got %s", out.Code)
	}
	if out.Internal == nil {
		t.Fatal("expected internal error to be attached")
	}
}

func TestNewBadRequest(t *testing.T) {
	err := NewBadRequest("invalid payload")
	if err.Code != ErrBadRequest.Code {
		t.Fatalf("expected %s, got %s", ErrBadRequest.Code, err.Code)
	}
	if err.Message != "invalid payload" {
		t.Fatalf("unexpected message: %s", err.Message)
	}
	if err.StatusCode != ErrBadRequest.StatusCode {
		t.Fatalf("unexpected status: %d", err.StatusCode)
	}
}

func TestWithMessageCopies(t *testing.T) {
	out := ErrSyncFailed.WithMessage("Network error. Please check your connection.")

	if out == ErrSyncFailed {
		t.Fatal("expected WithMessage to return a copy")
	}
	if ErrSyncFailed.Message != "Customer sync failed" {
		t.Fatalf("original message changed: %s", ErrSyncFailed.Message)
	}
	if out.Code != "SYNC_FAILED" || out.StatusCode != 502 {
		t.Fatalf("unexpected copy: %+v", out)
	}
}

func TestFromErrorFindsWrappedAppError(t *testing.T) {
	wrapped := fmt.Errorf("lookup: %w", ErrStorageUnavailable)

	if out := FromError(wrapped); out != ErrStorageUnavailable {
		t.Fatalf("expected storage unavailable, got %+v", out)
	}
}

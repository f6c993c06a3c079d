package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataFor(t *testing.T) {
	meta := MetadataFor(CodeConflict)
	if meta.HTTPStatus != http.StatusConflict {
		t.Fatalf("expected 409 for conflict, got %d", meta.HTTPStatus)
	}
	meta = MetadataFor(CodeStateConflict)
	if meta.HTTPStatus != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for state conflict, got %d", meta.HTTPStatus)
	}
	meta = MetadataFor(Code("UNKNOWN"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unknown codes should fall back to 500, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("row lock timeout")
	err := Wrap(CodeDependency, cause, "load bid")
	if err.Unwrap() != cause {
		t.Fatal("expected wrapped cause to be preserved")
	}
	if err.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", err.Code())
	}
}

func TestAs(t *testing.T) {
	base := New(CodeNotFound, "bid not found")
	wrapped := fmt.Errorf("handler: %w", base)
	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected typed error through wrap chain")
	}
	if typed.Code() != CodeNotFound {
		t.Fatalf("unexpected code %s", typed.Code())
	}
	if As(fmt.Errorf("plain")) != nil {
		t.Fatal("plain errors should not convert")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(CodeValidation, "photos required").WithDetails(map[string]string{"photos": "at least one required"})
	if err.Details() == nil {
		t.Fatal("expected details to be attached")
	}
}

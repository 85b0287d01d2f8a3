package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		want int
	}{
		{"validation 400", KindValidation, http.StatusBadRequest},
		{"not found 404", KindNotFound, http.StatusNotFound},
		{"extraction 502", KindExtraction, http.StatusBadGateway},
		{"embedding 502", KindEmbedding, http.StatusBadGateway},
		{"store write 502", KindStoreWrite, http.StatusBadGateway},
		{"store read 502", KindStoreRead, http.StatusBadGateway},
		{"timeout 504", KindTimeout, http.StatusGatewayTimeout},
		{"bootstrap 503", KindBootstrap, http.StatusServiceUnavailable},
		{"internal 500", KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &MemoryError{Kind: tt.kind}
			if got := err.HTTPStatusCode(); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMemoryError(t *testing.T) {
	t.Run("error message format", func(t *testing.T) {
		err := Wrap(KindEmbedding, "add", "embedding failed", fmt.Errorf("upstream 500"))
		msg := err.Error()

		for _, s := range []string{"EmbeddingError", "add", "embedding failed", "upstream 500"} {
			if !strings.Contains(msg, s) {
				t.Errorf("error message should contain %q, got %q", s, msg)
			}
		}
	})

	t.Run("unwrap keeps cause", func(t *testing.T) {
		cause := fmt.Errorf("connection refused")
		err := Wrap(KindStoreWrite, "update", "write failed", cause)
		if !stderrors.Is(err, cause) {
			t.Error("wrapped error should unwrap to its cause")
		}
	})

	t.Run("is compares kind", func(t *testing.T) {
		err := NewNotFoundError("update", "abc")
		if !stderrors.Is(err, ErrNotFound) {
			t.Error("not found error should match ErrNotFound")
		}
		if stderrors.Is(err, ErrValidation) {
			t.Error("not found error should not match ErrValidation")
		}
		wrapped := fmt.Errorf("handler: %w", err)
		if KindOf(wrapped) != KindNotFound {
			t.Errorf("KindOf() = %s, want %s", KindOf(wrapped), KindNotFound)
		}
	})
}

func TestWrapDeadlineBecomesTimeout(t *testing.T) {
	cause := fmt.Errorf("embed: %w", context.DeadlineExceeded)

	err := Wrap(KindEmbedding, "add", "embedding failed", cause)
	if err.Kind != KindTimeout {
		t.Errorf("Kind = %s, want %s", err.Kind, KindTimeout)
	}
	if !IsRetryable(err) {
		t.Error("timeout should be retryable")
	}

	boot := NewBootstrapError("create collection", cause)
	if boot.Kind != KindBootstrap {
		t.Errorf("bootstrap Kind = %s, want %s", boot.Kind, KindBootstrap)
	}
	if IsRetryable(boot) {
		t.Error("bootstrap failure should not be retryable")
	}
}

func TestWrapUnavailableIsRetryable(t *testing.T) {
	cause := fmt.Errorf("embed provider: %w", ErrUnavailable)

	err := Wrap(KindEmbedding, "add", "embedding failed", cause)
	if err.Kind != KindEmbedding {
		t.Errorf("Kind = %s, want %s", err.Kind, KindEmbedding)
	}
	if !IsRetryable(err) {
		t.Error("unavailable provider should be retryable")
	}

	if IsRetryable(Wrap(KindEmbedding, "add", "embedding failed", fmt.Errorf("upstream 500"))) {
		t.Error("plain provider failure should not be retryable")
	}
}

func TestWrapKeepsExistingClassification(t *testing.T) {
	inner := NewValidationError("add", "vector size mismatch")
	err := Wrap(KindStoreWrite, "add", "write failed", fmt.Errorf("ctx: %w", inner))
	if err != inner {
		t.Error("Wrap should return an existing MemoryError unchanged")
	}
}

func TestKindOfForeignError(t *testing.T) {
	if got := KindOf(fmt.Errorf("boom")); got != KindInternal {
		t.Errorf("KindOf() = %s, want %s", got, KindInternal)
	}
	if IsRetryable(fmt.Errorf("boom")) {
		t.Error("foreign errors are not retryable")
	}
}

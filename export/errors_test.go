package export

import (
	"context"
	"errors"
	"fmt"
	"testing"

	errorslib "github.com/goliatone/go-errors"
)

func TestExportErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("underlying failure")
	err := NewError(KindInput, "read chat", cause)

	if got := err.Error(); got != "read chat: underlying failure" {
		t.Fatalf("unexpected message: %q", got)
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable")
	}

	bare := NewError(KindInternal, "boom", nil)
	if got := bare.Error(); got != "boom" {
		t.Fatalf("unexpected bare message: %q", got)
	}
}

func TestKindFromError(t *testing.T) {
	cases := []struct {
		err  error
		kind ErrorKind
	}{
		{NewError(KindCollision, "exists", nil), KindCollision},
		{fmt.Errorf("render html: %w", NewError(KindRender, "render", nil)), KindRender},
		{context.DeadlineExceeded, KindTimeout},
		{context.Canceled, KindCanceled},
		{fmt.Errorf("plain"), KindInternal},
		{nil, ErrorKind("")},
	}

	for _, tc := range cases {
		if got := KindFromError(tc.err); got != tc.kind {
			t.Fatalf("expected kind %q for %v, got %q", tc.kind, tc.err, got)
		}
	}
}

func TestAsGoErrorMapping(t *testing.T) {
	cases := []struct {
		err      error
		category errorslib.Category
		code     string
	}{
		{NewError(KindInput, "bad input", nil), errorslib.CategoryValidation, "input"},
		{NewError(KindValidation, "bad value", nil), errorslib.CategoryValidation, "validation"},
		{NewError(KindCollision, "exists", nil), errorslib.CategoryOperation, "collision"},
		{NewError(KindRender, "render", nil), errorslib.CategoryOperation, "render"},
		{NewError(KindThumbnail, "thumb", nil), errorslib.CategoryOperation, "thumbnail"},
		{NewError(KindNotFound, "missing", nil), errorslib.CategoryNotFound, "not_found"},
		{context.DeadlineExceeded, errorslib.CategoryOperation, "timeout"},
		{context.Canceled, errorslib.CategoryOperation, "canceled"},
		{NewError(KindInternal, "boom", nil), errorslib.CategoryInternal, "internal"},
	}

	for _, tc := range cases {
		mapped := AsGoError(tc.err)
		if mapped == nil {
			t.Fatalf("expected mapping for %v", tc.err)
		}
		if mapped.Category != tc.category {
			t.Fatalf("expected category %s for %v, got %s", tc.category, tc.err, mapped.Category)
		}
		if mapped.TextCode != tc.code {
			t.Fatalf("expected text code %q for %v, got %q", tc.code, tc.err, mapped.TextCode)
		}
	}

	if AsGoError(nil) != nil {
		t.Fatal("expected nil mapping for nil error")
	}
}

func TestAsGoErrorPassthrough(t *testing.T) {
	original := errorslib.New("already mapped", errorslib.CategoryExternal)
	if got := AsGoError(original); got != original {
		t.Fatalf("expected passthrough, got %v", got)
	}
}

func TestUnthumbnailable(t *testing.T) {
	cause := fmt.Errorf("image: unknown format")
	failure := &Unthumbnailable{ContentKey: "abc", Reason: "decode failed", Err: cause}

	if !IsUnthumbnailable(failure) {
		t.Fatal("expected typed failure to be detected")
	}
	if !IsUnthumbnailable(fmt.Errorf("thumb: %w", failure)) {
		t.Fatal("expected wrapped failure to be detected")
	}
	if IsUnthumbnailable(NewError(KindThumbnail, "thumb", nil)) {
		t.Fatal("expected unrelated error to be rejected")
	}
	if !errors.Is(failure, cause) {
		t.Fatal("expected cause to be reachable")
	}
	if got := failure.Error(); got != "unthumbnailable content: decode failed: image: unknown format" {
		t.Fatalf("unexpected message: %q", got)
	}
}

package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/pgscope/pgscope/internal/errs"
)

func TestErrorMessageWithoutCause(t *testing.T) {
	t.Parallel()
	err := errs.New(errs.KindPolicyRejection, "mutating statements are not allowed")
	if got := err.Error(); got != "mutating statements are not allowed" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestErrorMessageWithCause(t *testing.T) {
	t.Parallel()
	cause := errors.New("connection refused")
	err := errs.Wrap(errs.KindPoolInit, "failed to establish pool", cause)
	want := "failed to establish pool: connection refused"
	if got := err.Error(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestNewf(t *testing.T) {
	t.Parallel()
	err := errs.Newf(errs.KindConfiguration, "missing field %q", "db_name")
	if got := err.Error(); got != `missing field "db_name"` {
		t.Fatalf("unexpected message: %q", got)
	}
	if !errs.IsConfiguration(err) {
		t.Fatal("expected configuration kind")
	}
}

func TestUnwrapPreservesCause(t *testing.T) {
	t.Parallel()
	cause := errors.New("original")
	err := errs.Wrap(errs.KindQueryExecution, "query failed", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the cause through Unwrap")
	}
}

func TestKindOfTraversesWrapping(t *testing.T) {
	t.Parallel()
	inner := errs.New(errs.KindPoolTimeout, "no connection available")
	outer := fmt.Errorf("list tables: %w", inner)
	if errs.KindOf(outer) != errs.KindPoolTimeout {
		t.Fatalf("expected pool_timeout through %%w wrapping, got %s", errs.KindOf(outer))
	}
	if !errs.IsPoolTimeout(outer) {
		t.Fatal("expected IsPoolTimeout to see through fmt wrapping")
	}
}

func TestKindOfForeignError(t *testing.T) {
	t.Parallel()
	if errs.KindOf(errors.New("plain")) != errs.KindUnknown {
		t.Fatal("expected unknown kind for foreign errors")
	}
	if errs.KindOf(nil) != errs.KindUnknown {
		t.Fatal("expected unknown kind for nil")
	}
}

func TestKindStrings(t *testing.T) {
	t.Parallel()
	cases := []struct {
		kind errs.Kind
		want string
	}{
		{errs.KindConfiguration, "configuration"},
		{errs.KindPoolInit, "pool_init"},
		{errs.KindPoolTimeout, "pool_timeout"},
		{errs.KindQueryExecution, "query_execution"},
		{errs.KindPolicyRejection, "policy_rejection"},
		{errs.KindUnknown, "unknown"},
		{errs.Kind(99), "unknown"},
	}
	for _, tc := range cases {
		if got := tc.kind.String(); got != tc.want {
			t.Fatalf("Kind(%d).String() = %q, want %q", tc.kind, got, tc.want)
		}
	}
}

func TestPredicatesMatchOnlyTheirKind(t *testing.T) {
	t.Parallel()
	err := errs.New(errs.KindPolicyRejection, "rejected")
	if !errs.IsPolicyRejection(err) {
		t.Fatal("expected IsPolicyRejection to match")
	}
	for name, pred := range map[string]func(error) bool{
		"IsConfiguration":  errs.IsConfiguration,
		"IsPoolInit":       errs.IsPoolInit,
		"IsPoolTimeout":    errs.IsPoolTimeout,
		"IsQueryExecution": errs.IsQueryExecution,
	} {
		if pred(err) {
			t.Fatalf("%s matched a policy_rejection error", name)
		}
	}
}

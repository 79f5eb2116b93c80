package httpserver

import (
	"context"
	"testing"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/secrets/internal/model"
)

func TestWithAccount_And_AccountFromCtx(t *testing.T) {
	t.Parallel()

	if _, ok := AccountFromCtx(context.Background()); ok {
		t.Fatalf("expected no account in empty ctx")
	}

	want := &model.Account{ID: uuid.Must(uuid.NewV4()), Username: "alice"}
	got, ok := AccountFromCtx(WithAccount(context.Background(), want))
	if !ok {
		t.Fatalf("expected account in ctx")
	}
	if got.ID != want.ID {
		t.Fatalf("mismatch: got %s, want %s", got.ID, want.ID)
	}

	if _, ok := AccountFromCtx(WithAccount(context.Background(), nil)); ok {
		t.Fatalf("expected miss on nil account")
	}

	bad := context.WithValue(context.Background(), accountKey, "not-an-account")
	if _, ok := AccountFromCtx(bad); ok {
		t.Fatalf("expected miss on wrong typed value")
	}
}

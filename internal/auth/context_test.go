package auth

import (
	"context"
	"testing"

	"github.com/quillbase/quillbase/internal/model"
)

func TestAccountFromContext(t *testing.T) {
	t.Parallel()

	if acct := AccountFromContext(context.Background()); !acct.IsAnonymous() {
		t.Errorf("unauthenticated account = %+v, want anonymous", acct)
	}

	ctx := ContextWithAuth(context.Background(), &model.AuthContext{KeyID: "k1", UserID: "u1", IsSuperuser: true})
	acct := AccountFromContext(ctx)
	if acct.ID != "u1" || !acct.Elevated {
		t.Errorf("account = %+v, want elevated u1", acct)
	}
	if UserIDFromContext(ctx) != "u1" {
		t.Errorf("UserIDFromContext = %q", UserIDFromContext(ctx))
	}
	if KeyIDFromContext(ctx) != "k1" {
		t.Errorf("KeyIDFromContext = %q", KeyIDFromContext(ctx))
	}
}

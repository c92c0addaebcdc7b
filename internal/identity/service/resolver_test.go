package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	userdomain "identity-service/internal/user/domain"
)

func TestResolver_FindOrCreateFederated_Idempotent(t *testing.T) {
	repo := newMemUserRepo()
	r := NewResolver(repo, nil, nil)
	ctx := context.Background()

	first, created, err := r.FindOrCreateFederated(ctx, "ada@example.com", "google")
	if err != nil {
		t.Fatalf("FindOrCreateFederated: %v", err)
	}
	if !created {
		t.Error("first call: created = false, want true")
	}
	second, created, err := r.FindOrCreateFederated(ctx, "ada@example.com", "google")
	if err != nil {
		t.Fatalf("FindOrCreateFederated again: %v", err)
	}
	if created {
		t.Error("second call: created = true, want false")
	}
	if first.ID != second.ID {
		t.Errorf("ids differ: %s vs %s", first.ID, second.ID)
	}
	if repo.creates != 1 {
		t.Errorf("creates = %d, want 1", repo.creates)
	}
}

func TestResolver_FindOrCreateFederated_NewAccountFields(t *testing.T) {
	roles := &fixedRole{role: userdomain.RoleAdmin}
	r := NewResolver(newMemUserRepo(), roles, nil)

	u, _, err := r.FindOrCreateFederated(context.Background(), "Ada@Example.com", "linkedin")
	if err != nil {
		t.Fatalf("FindOrCreateFederated: %v", err)
	}
	if u.Email != "ada@example.com" || u.UserName != "ada@example.com" {
		t.Errorf("email/username = %q/%q, want ada@example.com for both", u.Email, u.UserName)
	}
	if u.PasswordHash != "" {
		t.Error("federated account has a password hash")
	}
	if u.LoginType != "linkedin" {
		t.Errorf("login type = %q, want linkedin", u.LoginType)
	}
	if !u.EmailVerified {
		t.Error("federated account email not verified")
	}
	if u.Role != userdomain.RoleAdmin {
		t.Errorf("role = %q, want policy decision ADMIN", u.Role)
	}
	if len(roles.got) != 1 || roles.got[0].Origin != "linkedin" {
		t.Errorf("policy input = %+v", roles.got)
	}
}

func TestResolver_RolePolicyErrorFallsBackToUser(t *testing.T) {
	roles := &fixedRole{err: errors.New("policy down")}
	r := NewResolver(newMemUserRepo(), roles, nil)

	u, _, err := r.FindOrCreateFederated(context.Background(), "ada@example.com", "google")
	if err != nil {
		t.Fatalf("FindOrCreateFederated: %v", err)
	}
	if u.Role != userdomain.RoleUser {
		t.Errorf("role = %q, want USER", u.Role)
	}
}

func TestResolver_OriginConflict(t *testing.T) {
	r := NewResolver(newMemUserRepo(), nil, nil)
	ctx := context.Background()
	if _, _, err := r.FindOrCreateFederated(ctx, "ada@example.com", "google"); err != nil {
		t.Fatalf("FindOrCreateFederated: %v", err)
	}
	_, _, err := r.FindOrCreateFederated(ctx, "ada@example.com", "linkedin")
	if !errors.Is(err, ErrOriginConflict) {
		t.Fatalf("err = %v, want ErrOriginConflict", err)
	}
}

func TestResolver_MicrosoftNormalization(t *testing.T) {
	r := NewResolver(newMemUserRepo(), nil, nil)
	u, _, err := r.FindOrCreateFederated(context.Background(), "bob_gmail.com#extra", "microsoft")
	if err != nil {
		t.Fatalf("FindOrCreateFederated: %v", err)
	}
	if u.Email != "bob@gmail.com" {
		t.Errorf("email = %q, want bob@gmail.com", u.Email)
	}
}

func TestResolver_ConcurrentCreateReturnsSameAccount(t *testing.T) {
	repo := newMemUserRepo()
	r := NewResolver(repo, nil, nil)
	const n = 8
	ids := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, _, err := r.FindOrCreateFederated(context.Background(), "race@example.com", "google")
			errs[i] = err
			if u != nil {
				ids[i] = u.ID
			}
		}(i)
	}
	wg.Wait()
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("call %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Errorf("call %d id = %s, want %s", i, ids[i], ids[0])
		}
	}
	if repo.creates != 1 {
		t.Errorf("creates = %d, want 1", repo.creates)
	}
}

func TestResolver_FindByEmailOrUsername(t *testing.T) {
	repo := newMemUserRepo()
	ctx := context.Background()
	_ = repo.Create(ctx, &userdomain.User{ID: "u1", UserName: "alice", Email: "a@x.com", Role: userdomain.RoleUser})
	r := NewResolver(repo, nil, nil)

	for _, id := range []string{"a@x.com", "A@X.com", "alice", " alice "} {
		u, err := r.FindByEmailOrUsername(ctx, id)
		if err != nil {
			t.Fatalf("FindByEmailOrUsername(%q): %v", id, err)
		}
		if u == nil || u.ID != "u1" {
			t.Errorf("FindByEmailOrUsername(%q) = %+v, want u1", id, u)
		}
	}
	u, err := r.FindByEmailOrUsername(ctx, "nobody")
	if err != nil || u != nil {
		t.Errorf("FindByEmailOrUsername(nobody) = %+v, %v; want nil, nil", u, err)
	}
}

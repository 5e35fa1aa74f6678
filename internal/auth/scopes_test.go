package auth

import "testing"

func TestDefaultScopesRegistry(t *testing.T) {
	cases := []struct {
		userType UserType
		want     Scopes
	}{
		{UserTypeStandard, Scopes{ScopeRead}},
		{UserTypeOrganization, Scopes{ScopeRead, ScopeWrite}},
		{UserTypeAdmin, Scopes{ScopeAll}},
	}
	for _, tc := range cases {
		got := DefaultScopes(tc.userType)
		if len(got) != len(tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.userType, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("%s: got %v, want %v", tc.userType, got, tc.want)
			}
		}
	}
}

func TestScopesIsSuperuser(t *testing.T) {
	if !(Scopes{ScopeRead, ScopeAll}).IsSuperuser() {
		t.Fatal("expected superuser")
	}
	if (Scopes{ScopeRead, ScopeWrite, ScopeCreateUser}).IsSuperuser() {
		t.Fatal("unexpected superuser")
	}
}

func TestScopesString(t *testing.T) {
	if got := (Scopes{ScopeAll, ScopeCreateUser}).String(); got != "all create-user" {
		t.Fatalf("unexpected challenge scopes: %q", got)
	}
}

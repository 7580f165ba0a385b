package auth

import "testing"

func TestDecide(t *testing.T) {
	cases := []struct {
		state  State
		access Access
		want   Decision
	}{
		{Initializing, Protected, Decision{Loading: true}},
		{Initializing, PublicOnly, Decision{Loading: true}},
		{Initializing, Public, Decision{Loading: true}},
		{Anonymous, Protected, Decision{RedirectTo: RouteLogin}},
		{Anonymous, PublicOnly, Decision{Render: true}},
		{Anonymous, Public, Decision{Render: true}},
		{Authenticated, Protected, Decision{Render: true}},
		{Authenticated, PublicOnly, Decision{RedirectTo: RouteHome}},
		{Authenticated, Public, Decision{Render: true}},
	}
	for _, c := range cases {
		if got := Decide(c.state, c.access); got != c.want {
			t.Fatalf("Decide(%v, %d) = %+v, want %+v", c.state, c.access, got, c.want)
		}
	}
}

func TestProtectedNeverRendersUnlessAuthenticated(t *testing.T) {
	for _, s := range []State{Initializing, Anonymous} {
		if Decide(s, Protected).Render {
			t.Fatalf("protected content rendered in state %v", s)
		}
	}
}

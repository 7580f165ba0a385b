package auth

// Route is a navigation target.
type Route string

const (
	RouteLogin Route = "/login"
	RouteHome  Route = "/dashboard"
)

// Navigator performs navigation on behalf of the machine.
type Navigator func(Route)

// Access describes who may see a view.
type Access int

const (
	Protected Access = iota
	PublicOnly
	Public
)

// Decision is what the guard does with a view. Content is rendered only
// when Render is set.
type Decision struct {
	Render     bool
	Loading    bool
	RedirectTo Route
}

func Decide(state State, access Access) Decision {
	if state == Initializing {
		return Decision{Loading: true}
	}
	switch {
	case access == Protected && state != Authenticated:
		return Decision{RedirectTo: RouteLogin}
	case access == PublicOnly && state == Authenticated:
		return Decision{RedirectTo: RouteHome}
	}
	return Decision{Render: true}
}

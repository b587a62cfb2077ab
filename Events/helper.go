package events

import (
	"github.com/go-chi/chi/v5"

	Auth "campusnet/Events/Auth"
	Messages "campusnet/Events/Messages"
	Posts "campusnet/Events/Posts"
	Stories "campusnet/Events/Stories"
	Users "campusnet/Events/Users"
)

// Registry holds the resource controllers. main builds it once with its
// wired dependencies and mounts it on the router.
type Registry struct {
	Auth     *Auth.Controller
	Users    *Users.Controller
	Posts    *Posts.Controller
	Stories  *Stories.Controller
	Messages *Messages.Controller
}

func (reg *Registry) Handler(req chi.Router) {
	req.Route("/auth", reg.Auth.Handle)
	req.Route("/users", reg.Users.Handle)
	req.Route("/posts", reg.Posts.Handle)
	req.Route("/stories", reg.Stories.Handle)
	req.Route("/messages", reg.Messages.Handle)
}

package app

import (
	"time"

	draftsvc "github.com/fritterhq/fritter/internal/app/services/drafts"
	freetsvc "github.com/fritterhq/fritter/internal/app/services/freets"
	interactionsvc "github.com/fritterhq/fritter/internal/app/services/interactions"
	nestsvc "github.com/fritterhq/fritter/internal/app/services/nests"
	usersvc "github.com/fritterhq/fritter/internal/app/services/users"
	"github.com/fritterhq/fritter/internal/app/storage"
	"github.com/fritterhq/fritter/internal/app/storage/memory"
	"github.com/fritterhq/fritter/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users        storage.UserStore
	Sessions     storage.SessionStore
	Freets       storage.FreetStore
	Drafts       storage.DraftStore
	Interactions storage.InteractionStore
	Nests        storage.NestStore
}

// Options tunes application behavior.
type Options struct {
	SessionTTL time.Duration
}

// Application ties the domain services together.
type Application struct {
	log *logger.Logger

	Users        *usersvc.Service
	Freets       *freetsvc.Service
	Drafts       *draftsvc.Service
	Interactions *interactionsvc.Service
	Nests        *nestsvc.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Sessions == nil {
		stores.Sessions = mem
	}
	if stores.Freets == nil {
		stores.Freets = mem
	}
	if stores.Drafts == nil {
		stores.Drafts = mem
	}
	if stores.Interactions == nil {
		stores.Interactions = mem
	}
	if stores.Nests == nil {
		stores.Nests = mem
	}

	userService := usersvc.New(stores.Users, stores.Sessions, stores.Freets, stores.Drafts, stores.Interactions, stores.Nests, opts.SessionTTL, log)
	freetService := freetsvc.New(stores.Users, stores.Freets, stores.Interactions, log)
	draftService := draftsvc.New(stores.Drafts, log)
	interactionService := interactionsvc.New(stores.Users, stores.Freets, stores.Nests, stores.Interactions, log)
	nestService := nestsvc.New(stores.Users, stores.Nests, stores.Interactions, log)

	return &Application{
		log:          log,
		Users:        userService,
		Freets:       freetService,
		Drafts:       draftService,
		Interactions: interactionService,
		Nests:        nestService,
	}, nil
}

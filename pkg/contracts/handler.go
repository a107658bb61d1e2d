package contracts

import "github.com/julienschmidt/httprouter"

// Handler is implemented by every aggregate that mounts routes on the API router.
type Handler interface {
	RegisterRoutes(*httprouter.Router)
}

// Stopper is a background worker halted during graceful shutdown.
type Stopper interface {
	Stop()
}

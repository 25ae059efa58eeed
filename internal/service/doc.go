// Package service is the composition root of the sync client.
//
// It constructs the REST client, connection manager, dispatcher, store,
// reconciler, archive, and status endpoint from one Config, and owns
// their combined lifecycle. Nothing in here is a singleton; every New
// call yields an isolated instance.
//
// Data flow while running:
//
//	socket frames -> dispatcher -> store
//	REST pulls    -> reconciler -> store
//	store events  -> archive feeder -> sqlite
//	state changes -> store (+ a re-pull on every fresh connect)
package service

// Package api implements the HTTP REST API and WebSocket stream for the
// Nobø hub service.
//
// Endpoints (all under /api/v1):
//
//	GET   /health                   liveness and hub connection status
//	GET   /metrics                  runtime, MQTT, bridge and database statistics
//	GET   /hub                      hub identity and active hub override
//	GET   /zones                    all zones
//	GET   /zones/{id}               one zone
//	PATCH /zones/{id}               set comfort/eco temperature and week profile (one U00)
//	GET   /zones/{id}/status        effective status, ?at=RFC3339 optional
//	GET   /components               all components, ?zone=ID filters
//	GET   /components/{serial}      one component
//	GET   /weekprofiles             all week profiles
//	GET   /weekprofiles/{id}        one week profile
//	GET   /overrides                all overrides
//	POST  /overrides                create an override
//	GET   /commands                 command history, ?command= ?status= ?limit= ?offset=
//	GET   /ws                       WebSocket relay of state changes
//
// Commands are forwarded to the hub and answered with 202 Accepted; the
// resulting state arrives when the hub echoes the change.
//
// The server lifecycle follows the infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api

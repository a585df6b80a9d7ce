// Package api implements the catalog registry over HTTP.
//
// The registry translates record store outcomes into a fixed contract and
// holds no business logic of its own:
//
//	GET  /devices | /users | /greenhouses | /services   200, array
//	GET  /<item>?<field>=<value>                        200 record, 404 miss, 400 bad lookup
//	POST /<item>                                        201 created, 400 rejected
//	PUT  /<item>                                        200 updated, 400 rejected
//	GET  /new_<item>_id  (alias /new_serv_id)           200 {"id": n}
//	GET  /broker | /device_catalog                      200 record or {}
//	POST /broker | /device_catalog                      201 created, 400 occupied/invalid
//	PUT  /broker | /device_catalog                      200 updated, 400 empty/invalid
//
// Writes answer with the envelope {"status": "SUCCESS"|"FAILURE", "msg": "..."}.
//
// # Ambient endpoints
//
// GET /health reports liveness, GET /metrics reports runtime and record
// counts, and GET / lists the commands above.
package api

// Package registrar keeps a peer registered with the catalog.
//
// Every peer embeds one Registrar. It claims an identifier if the peer has
// none, creates the peer's record, refreshes it with heartbeats, and
// recreates it whenever the catalog has forgotten it (catalog restart or
// reaper expiry), without coordinating with any other peer:
//
//	unidentified --id--> registering --201--> registered <--200-- heartbeat
//	                        |  400: update, 200 -> registered        |
//	                        |  400 again -> recovering <---400-------+
//	                        v
//	recovering --201--> registered
//
// Each state has its own bounded retry budget. Running out yields
// StateUnreachable and ErrUnreachable for that cycle only: the peer keeps
// working with whatever it already knows and the next Register or
// Heartbeat starts over.
package registrar

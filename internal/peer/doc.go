// Package peer wires the pieces every non-catalog process needs: a catalog
// client, a registrar keeping the process's own record alive and a locator
// for the broker and other services.
//
// A peer starts like this:
//
//	p, err := peer.New(peer.Options{
//	    Config: cfg.Peer,
//	    Target: registrar.CollectionTarget(catalog.Devices),
//	    Logger: log,
//	})
//	go p.Run(ctx)
//	client, err := p.ConnectBroker(ctx, cfg.MQTT, "deviceagent")
//
// The package also carries the measurement payload format shared by
// device agents (publishers) and adaptors (subscribers).
package peer

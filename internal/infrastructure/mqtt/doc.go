// Package mqtt provides MQTT connectivity for the catalog and its peers.
//
// The catalog itself only announces its online/offline status here. Device
// agents publish measurements and the data adaptor subscribes to them:
//
//	device agent ── greenhouse/{gh}/{device}/{measure} ──▶ broker ──▶ adaptor
//
// Each client sets a Last Will on greenhouse/status/{client_id} so a crash is
// visible to every subscriber of Topics{}.AllStatus().
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllMeasurements(), 1,
//	    func(topic string, payload []byte) error {
//	        gh, dev, measure, ok := mqtt.ParseMeasurement(topic)
//	        ...
//	    })
//
// TLS is available through cfg.Broker.TLS; anonymous access is meant for
// local development only.
package mqtt

/*
DESCRIPTION
  notify.go provides MQTT notification of finalized motion events.

AUTHORS
  Teodora Marek <teo@skywatchcam.io>

LICENSE
  Copyright (C) 2026 the SkyWatch developers.

  SkyWatch is free software: you can redistribute it and/or modify it under
  the terms of the GNU General Public License as published by the Free
  Software Foundation, either version 3 of the License, or (at your option)
  any later version.
*/

// Package notify publishes motion events to an MQTT broker. Notification
// is optional; a session without a broker configured simply runs without
// it.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ausocean/utils/logging"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/skywatchcam/skywatch/store"
	"github.com/skywatchcam/skywatch/watch/config"
)

const connectTimeout = 10 * time.Second

// MQTT publishes motion events to a broker topic.
type MQTT struct {
	client mqtt.Client
	topic  string
	log    logging.Logger
}

// NewMQTT connects to the configured broker. The connection is kept alive
// with automatic reconnection; publishes while disconnected are dropped.
func NewMQTT(c config.Config) (*MQTT, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(c.MQTTBroker).
		SetClientID("skywatch").
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("could not connect to broker %s: %w", c.MQTTBroker, token.Error())
	}
	n := &MQTT{client: client, topic: c.MQTTTopic, log: c.Logger}
	n.log.Info("mqtt notifier connected", "broker", c.MQTTBroker, "topic", c.MQTTTopic)
	return n, nil
}

// Notify publishes one event. It satisfies service.Notifier and never
// blocks the capture path; delivery is fire and forget.
func (n *MQTT) Notify(ev store.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		n.log.Error("could not encode motion event", "error", err.Error())
		return
	}
	n.client.Publish(n.topic, 0, false, payload)
	n.log.Debug("motion event published", "id", ev.ID, "topic", n.topic)
}

// Close disconnects from the broker.
func (n *MQTT) Close() {
	n.client.Disconnect(250)
}

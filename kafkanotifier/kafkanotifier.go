// Copyright (c) 2022 Cisco Systems, Inc. and its affiliates
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are
// met:
//
//     * Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// The contents of this file are licensed under the Apache License, Version 2.0
// (the "License"); you may not use this file except in compliance with the
// License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations under
// the License.

package kafkanotifier

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Shopify/sarama"
	"github.com/cisco-open/dhcp4relay/relayevent"
	"github.com/golang/glog"
	"github.com/sbezverk/gobmp/pkg/tools"
	"go.uber.org/atomic"
)

const (
	RelayEventTopic = "dhcp4relay.events"
)

var (
	brockerConnectTimeout = 10 * time.Second
	topicCreateTimeout    = 1 * time.Second
	// topic Retention for events is 5 minutes
	topicRetention = "300000"
)

// Observer sees every event before it is published.
type Observer func(relayevent.Event)

// Notifier publishes the events read from an emitter queue until the queue
// is closed.
type Notifier interface {
	Start() error
	// Stop waits for the queue to be drained, the emitter must be closed first.
	Stop() error
}

type notifier struct {
	producer  sarama.SyncProducer
	topic     string
	events    <-chan relayevent.Event
	observers []Observer

	running atomic.Bool
	done    chan struct{}
}

func NewKafkaNotifier(kafkaSrv, topic string, events <-chan relayevent.Event, observers ...Observer) (Notifier, error) {
	glog.Infof("Initializing Kafka events producer client")
	if err := tools.HostAddrValidator(kafkaSrv); err != nil {
		glog.Errorf("Failed to validate Kafka server address %s with error: %+v", kafkaSrv, err)
		return nil, err
	}
	if topic == "" {
		topic = RelayEventTopic
	}
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Version = sarama.V0_11_0_0

	br := sarama.NewBroker(kafkaSrv)
	if err := br.Open(config); err != nil {
		if err != sarama.ErrAlreadyConnected {
			return nil, err
		}
	}
	defer br.Close()

	if err := waitForBrokerConnection(br, brockerConnectTimeout); err != nil {
		glog.Errorf("failed to open connection to the broker with error: %+v\n", err)
		return nil, err
	}
	glog.V(5).Infof("Connected to broker: %s id: %d\n", br.Addr(), br.ID())

	if err := ensureTopic(br, topicCreateTimeout, topic); err != nil {
		return nil, err
	}
	producer, err := sarama.NewSyncProducer([]string{kafkaSrv}, config)
	if err != nil {
		return nil, err
	}
	glog.V(5).Infof("Initialized Kafka Sync producer")

	return newNotifier(producer, topic, events, observers...), nil
}

func newNotifier(producer sarama.SyncProducer, topic string, events <-chan relayevent.Event, observers ...Observer) *notifier {
	return &notifier{
		producer:  producer,
		topic:     topic,
		events:    events,
		observers: observers,
		done:      make(chan struct{}),
	}
}

func (n *notifier) Start() error {
	if !n.running.CompareAndSwap(false, true) {
		return nil
	}
	glog.Infof("Starting relay event publisher on topic %s", n.topic)
	go n.run()

	return nil
}

func (n *notifier) Stop() error {
	if !n.running.CompareAndSwap(true, false) {
		return nil
	}
	<-n.done

	return n.producer.Close()
}

func (n *notifier) run() {
	defer close(n.done)
	for ev := range n.events {
		for _, o := range n.observers {
			o(ev)
		}
		if err := n.EventNotification(ev); err != nil {
			glog.Errorf("failed to publish %s event with error: %+v", ev.Type, err)
		}
	}
}

// EventNotification publishes a single event.
func (n *notifier) EventNotification(ev relayevent.Event) error {
	msg, err := newEventMessage(ev)
	if err != nil {
		return err
	}
	return n.triggerNotification(n.topic, msg)
}

func (n *notifier) triggerNotification(topic string, msg *EventMessage) error {
	m, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, _, err = n.producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(msg.Key),
		Value: sarama.ByteEncoder(m),
	})

	return err
}

func ensureTopic(br *sarama.Broker, timeout time.Duration, topicName string) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	tout := time.NewTimer(timeout)
	defer tout.Stop()
	topic := &sarama.CreateTopicsRequest{
		TopicDetails: map[string]*sarama.TopicDetail{
			topicName: {
				NumPartitions:     1,
				ReplicationFactor: 1,
				ConfigEntries: map[string]*string{
					"retention.ms": &topicRetention,
				},
			},
		},
	}

	for {
		t, err := br.CreateTopics(topic)
		if err != nil {
			return err
		}
		if e, ok := t.TopicErrors[topicName]; ok {
			if e.Err == sarama.ErrTopicAlreadyExists || e.Err == sarama.ErrNoError {
				return nil
			}
			if e.Err != sarama.ErrRequestTimedOut {
				return e
			}
		}
		select {
		case <-ticker.C:
			continue
		case <-tout.C:
			return fmt.Errorf("timeout waiting for topic %s", topicName)
		}
	}
}

func waitForBrokerConnection(br *sarama.Broker, timeout time.Duration) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	tout := time.NewTimer(timeout)
	defer tout.Stop()
	for {
		ok, err := br.Connected()
		if ok {
			return nil
		}
		if err != nil {
			return err
		}
		select {
		case <-ticker.C:
			continue
		case <-tout.C:
			return fmt.Errorf("timeout waiting for the connection to the broker %s", br.Addr())
		}
	}
}

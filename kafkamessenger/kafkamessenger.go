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

package kafkamessenger

import (
	"time"

	"github.com/Shopify/sarama"
	"github.com/cisco-open/dhcp4relay/configdb"
	"github.com/cisco-open/dhcp4relay/counters"
	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/sbezverk/gobmp/pkg/tools"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

const (
	RelayTopic          = "sonic.config.dhcpv4_relay"
	InterfaceTopic      = "sonic.config.interface"
	LoopbackTopic       = "sonic.config.loopback_interface"
	PortChannelTopic    = "sonic.config.portchannel_interface"
	DeviceMetadataTopic = "sonic.config.device_metadata"
	// CounterTopic carries one record per DHCPv4 message relayed by the data plane.
	CounterTopic = "sonic.dhcpv4.counters"
)

var (
	// topics maps every config change stream to the table it feeds.
	topics = map[string]string{
		RelayTopic:          configdb.RelayTable,
		InterfaceTopic:      configdb.InterfaceTable,
		LoopbackTopic:       configdb.LoopbackTable,
		PortChannelTopic:    configdb.PortChannelTable,
		DeviceMetadataTopic: configdb.DeviceMetadataTable,
	}
)

type Srv interface {
	Start() error
	Stop() error
}

type kafka struct {
	stopCh   chan struct{}
	config   *sarama.Config
	master   sarama.Consumer
	sel      *configdb.Select
	counters *counters.Table
	readers  errgroup.Group

	stopped   atomic.Bool
	processed atomic.Int64
	failed    atomic.Int64
}

// NewKafkaMessenger returns a reader feeding config changes into sel and
// data plane counter records into tbl. A nil tbl disables the counter topic.
func NewKafkaMessenger(kafkaSrv string, sel *configdb.Select, tbl *counters.Table) (Srv, error) {
	glog.Infof("DHCPv4 relay config kafka reader")
	if err := tools.HostAddrValidator(kafkaSrv); err != nil {
		return nil, err
	}

	config := sarama.NewConfig()
	config.ClientID = "dhcp4relay-mgr-" + uuid.NewString()
	config.Consumer.Return.Errors = true
	config.Version = sarama.V0_11_0_0

	brokers := []string{kafkaSrv}

	master, err := sarama.NewConsumer(brokers, config)
	if err != nil {
		return nil, err
	}

	return newKafka(master, config, sel, tbl), nil
}

func newKafka(master sarama.Consumer, config *sarama.Config, sel *configdb.Select, tbl *counters.Table) *kafka {
	return &kafka{
		stopCh:   make(chan struct{}),
		config:   config,
		master:   master,
		sel:      sel,
		counters: tbl,
	}
}

func (k *kafka) Start() error {
	for topicName := range topics {
		k.readers.Go(func() error {
			k.topicReader(topicName)
			return nil
		})
	}
	if k.counters != nil {
		k.readers.Go(func() error {
			k.topicReader(CounterTopic)
			return nil
		})
	}

	return nil
}

func (k *kafka) Stop() error {
	if !k.stopped.CompareAndSwap(false, true) {
		return nil
	}
	close(k.stopCh)
	k.readers.Wait()
	glog.Infof("Kafka readers stopped, processed: %d failed: %d", k.processed.Load(), k.failed.Load())

	return k.master.Close()
}

func (k *kafka) topicReader(topicName string) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		consumer, err := k.consumePartition(topicName)
		if err != nil {
			glog.Infof("Consumer error for topic %s: %+v", topicName, err)
			select {
			case <-ticker.C:
			case <-k.stopCh:
				return
			}
			continue
		}
		glog.Infof("Starting Kafka reader for topic: %s", topicName)
		if k.handlePartition(topicName, consumer) {
			consumer.Close()
			return
		}
		// The partition consumer shut down on its own, attaching again.
		glog.Warningf("Kafka reader for topic %s was closed, reattaching", topicName)
		consumer.Close()
		select {
		case <-ticker.C:
		case <-k.stopCh:
			return
		}
	}
}

// startOffset returns where a reader starts. Config topics are replayed from
// the oldest record to rebuild the relay policies, counter records are only
// read once they are produced after the reader attached.
func startOffset(topicName string) int64 {
	if topicName == CounterTopic {
		return sarama.OffsetNewest
	}
	return sarama.OffsetOldest
}

// consumePartition attaches to the only partition the change streams are
// created with.
func (k *kafka) consumePartition(topicName string) (sarama.PartitionConsumer, error) {
	partitions, err := k.master.Partitions(topicName)
	if err != nil {
		return nil, err
	}
	if len(partitions) == 0 {
		return nil, errNoPartitions
	}
	return k.master.ConsumePartition(topicName, partitions[0], startOffset(topicName))
}

// handlePartition returns true when the messenger is stopped and false when
// the partition consumer closed its channels.
func (k *kafka) handlePartition(topicName string, consumer sarama.PartitionConsumer) bool {
	for {
		select {
		case msg, ok := <-consumer.Messages():
			if !ok {
				return false
			}
			if msg == nil {
				continue
			}
			if err := k.processMessage(msg); err != nil {
				k.failed.Inc()
				glog.Errorf("failed to process a message from topic %s with error: %+v", topicName, err)
				continue
			}
			k.processed.Inc()
		case consumerError, ok := <-consumer.Errors():
			if !ok {
				return false
			}
			if consumerError == nil {
				break
			}
			glog.Errorf("error %+v for topic: %s, partition: %d ", consumerError.Err, consumerError.Topic, consumerError.Partition)
			if topicName != CounterTopic {
				k.sel.ReportError(consumerError)
			}
		case <-k.stopCh:
			return true
		}
	}
}

func (k *kafka) processMessage(msg *sarama.ConsumerMessage) error {
	glog.V(9).Infof("Processing message from topic: %s, partition: %d, offset: %d",
		msg.Topic, msg.Partition, msg.Offset)
	if msg.Topic == CounterTopic && k.counters != nil {
		c, err := decodeCounter(msg.Value)
		if err != nil {
			return err
		}
		k.counters.IncrementCounter(c.Interface, counters.Direction(c.Direction), c.messageType())
		return nil
	}
	table, ok := topics[msg.Topic]
	if !ok {
		glog.V(5).Infof("Ignoring message from unsupported topic: %s", msg.Topic)
		return nil
	}
	rec, err := decodeRecord(msg.Value)
	if err != nil {
		return err
	}
	t, ok := k.sel.Table(table)
	if !ok {
		glog.V(5).Infof("Table %s has no subscriber, dropping %s", table, rec.Key)
		return nil
	}
	t.Push(rec)

	return nil
}

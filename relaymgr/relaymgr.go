// Copyright (c) 2025 Cisco Systems, Inc. and its affiliates
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

package relaymgr

import (
	"context"
	"errors"
	"time"

	"github.com/cisco-open/dhcp4relay/configdb"
	"github.com/cisco-open/dhcp4relay/relayevent"
	"github.com/golang/glog"
	"go.uber.org/atomic"
)

// DefaultTimeout is the longest a single wait on the subscribed tables lasts.
const DefaultTimeout = 1000 * time.Millisecond

var (
	ErrNoSelect       = errors.New("relay manager requires a select")
	ErrNoEmitter      = errors.New("relay manager requires an event sender")
	ErrAlreadyStarted = errors.New("relay manager is already started")
)

// Config holds the configuration of the relay manager
type Config struct {
	Select  *configdb.Select
	Emitter relayevent.Sender
	Timeout time.Duration
}

// Manager watches CONFIG_DB relay, interface and device metadata tables and
// turns their changes into events for the forwarding engine. The policy cache
// is only touched by the manager's own goroutine.
type Manager struct {
	sel      *configdb.Select
	emitter  relayevent.Sender
	timeout  time.Duration
	cache    policyCache
	handlers map[*configdb.SubscriberTable]func([]configdb.Record)

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewManager subscribes to the relay manager tables on cfg.Select.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Select == nil {
		return nil, ErrNoSelect
	}
	if cfg.Emitter == nil {
		return nil, ErrNoEmitter
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	m := &Manager{
		sel:     cfg.Select,
		emitter: cfg.Emitter,
		timeout: cfg.Timeout,
		cache:   make(policyCache),
		done:    make(chan struct{}),
	}
	m.handlers = map[*configdb.SubscriberTable]func([]configdb.Record){
		cfg.Select.Subscribe(configdb.RelayTable):          m.processRelayNotification,
		cfg.Select.Subscribe(configdb.InterfaceTable):      m.processInterfaceNotification,
		cfg.Select.Subscribe(configdb.LoopbackTable):       m.processInterfaceNotification,
		cfg.Select.Subscribe(configdb.PortChannelTable):    m.processInterfaceNotification,
		cfg.Select.Subscribe(configdb.DeviceMetadataTable): m.processDeviceMetadataNotification,
	}

	return m, nil
}

// Start launches the manager goroutine.
func (m *Manager) Start() error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	glog.Infof("Starting DHCPv4 relay manager, select timeout: %s", m.timeout)
	go m.run(ctx)

	return nil
}

// Stop signals the manager goroutine and waits for it to exit.
func (m *Manager) Stop() error {
	if !m.running.Load() {
		return nil
	}
	glog.Info("Stopping DHCPv4 relay manager...")
	m.cancel()
	<-m.done

	return nil
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			glog.Info("DHCPv4 relay manager stopped")
			return
		default:
		}
		tbl, res, err := m.sel.Wait(ctx, m.timeout)
		switch res {
		case configdb.Object:
			m.dispatch(tbl)
		case configdb.Timeout:
		case configdb.Error:
			if ctx.Err() == nil {
				glog.Errorf("[DHCPV4_RELAY] Error had been returned in select: %+v", err)
			}
		default:
			glog.Errorf("[DHCPV4_RELAY] Unknown return value from select: %s", res)
		}
	}
}

func (m *Manager) dispatch(tbl *configdb.SubscriberTable) {
	handler, ok := m.handlers[tbl]
	if !ok {
		glog.Errorf("[DHCPV4_RELAY] No handler for table %s", tbl.Name())
		return
	}
	handler(tbl.Pops())
}

func (m *Manager) emit(p relayevent.Payload, key string) {
	if err := m.emitter.Emit(relayevent.New(p)); err != nil {
		glog.Errorf("[DHCPV4_RELAY] Failed to send %s event for %s: %+v", p.EventType(), key, err)
	}
}

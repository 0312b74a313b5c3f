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

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/cisco-open/dhcp4relay/arangodb"
	"github.com/cisco-open/dhcp4relay/boltdb"
	"github.com/cisco-open/dhcp4relay/configdb"
	"github.com/cisco-open/dhcp4relay/counters"
	"github.com/cisco-open/dhcp4relay/kafkamessenger"
	"github.com/cisco-open/dhcp4relay/kafkanotifier"
	"github.com/cisco-open/dhcp4relay/relayevent"
	"github.com/cisco-open/dhcp4relay/relaymgr"
	"github.com/golang/glog"
)

const (
	// userFile defines the name of file containing base64 encoded user name
	userFile = "./credentials/.username"
	// passFile defines the name of file containing base64 encoded password
	passFile = "./credentials/.password"
	// MAXUSERNAME defines maximum length of ArangoDB user name
	MAXUSERNAME = 256
	// MAXPASS defines maximum length of ArangoDB password
	MAXPASS = 256

	storeArango = "arangodb"
	storeBolt   = "bolt"
)

var (
	msgSrvAddr    string
	dbSrvAddr     string
	dbName        string
	dbUser        string
	dbPass        string
	counterStore  string
	boltPath      string
	selectTimeout time.Duration
	syncInterval  time.Duration
	eventQueue    int
	eventsTopic   string
)

func init() {
	flag.StringVar(&msgSrvAddr, "message-server", "", "{dns name}:port or X.X.X.X:port of the kafka broker")
	flag.StringVar(&dbSrvAddr, "database-server", "", "{dns name}:port or X.X.X.X:port of the counter database")
	flag.StringVar(&dbName, "database-name", "dhcp4relay", "DB name")
	flag.StringVar(&dbUser, "database-user", "", "DB User name")
	flag.StringVar(&dbPass, "database-pass", "", "DB User's password")
	flag.StringVar(&counterStore, "counter-store", storeArango, "Counter store, \"arangodb\" or \"bolt\"")
	flag.StringVar(&boltPath, "bolt-path", "./dhcp4relay-counters.db", "Path of the bolt counter store")
	flag.DurationVar(&selectTimeout, "select-timeout", relaymgr.DefaultTimeout, "Upper bound of a single wait for config changes")
	flag.DurationVar(&syncInterval, "sync-interval", counters.DefaultSyncInterval, "Period between two counter reconciliations")
	flag.IntVar(&eventQueue, "event-queue", relayevent.DefaultQueueSize, "Number of relay events buffered for the forwarding engine")
	flag.StringVar(&eventsTopic, "events-topic", kafkanotifier.RelayEventTopic, "Topic relay events are published to")
}

var (
	onlyOneSignalHandler = make(chan struct{})
	shutdownSignals      = []os.Signal{os.Interrupt}
)

func setupSignalHandler() (stopCh <-chan struct{}) {
	close(onlyOneSignalHandler) // panics when called twice

	stop := make(chan struct{})
	c := make(chan os.Signal, 2)
	signal.Notify(c, shutdownSignals...)
	go func() {
		<-c
		close(stop)
		<-c
		os.Exit(1) // second signal. Exit directly.
	}()

	return stop
}

func main() {
	flag.Parse()
	_ = flag.Set("logtostderr", "true")

	store, err := newCounterStore()
	if err != nil {
		glog.Errorf("failed to initialize counter store with error: %+v", err)
		os.Exit(1)
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}

	tbl := counters.NewTable()
	reconciler, err := counters.NewReconciler(counters.ReconcilerConfig{
		Table:    tbl,
		Store:    store,
		Interval: syncInterval,
	})
	if err != nil {
		glog.Errorf("failed to initialize counter reconciler with error: %+v", err)
		os.Exit(1)
	}

	sel := configdb.NewSelect(nil)
	emitter := relayevent.NewEmitter(eventQueue)
	mgr, err := relaymgr.NewManager(relaymgr.Config{
		Select:  sel,
		Emitter: emitter,
		Timeout: selectTimeout,
	})
	if err != nil {
		glog.Errorf("failed to initialize relay manager with error: %+v", err)
		os.Exit(1)
	}

	// relay events are published to the forwarding engine, installs and teardowns
	// also drive the counter lifecycle of the VLAN
	notifier, err := kafkanotifier.NewKafkaNotifier(msgSrvAddr, eventsTopic, emitter.Events(), kafkanotifier.CounterLifecycle(tbl))
	if err != nil {
		glog.Errorf("failed to initialize events notifier with error: %+v", err)
		os.Exit(1)
	}

	msgSrv, err := kafkamessenger.NewKafkaMessenger(msgSrvAddr, sel, tbl)
	if err != nil {
		glog.Errorf("failed to initialize message server with error: %+v", err)
		os.Exit(1)
	}

	if err := notifier.Start(); err != nil {
		glog.Errorf("failed to start events notifier with error: %+v", err)
		os.Exit(1)
	}
	if err := mgr.Start(); err != nil {
		glog.Errorf("failed to start relay manager with error: %+v", err)
		os.Exit(1)
	}
	if err := reconciler.Start(); err != nil {
		glog.Errorf("failed to start counter reconciler with error: %+v", err)
		os.Exit(1)
	}
	if err := msgSrv.Start(); err != nil {
		glog.Errorf("failed to start message server with error: %+v", err)
		os.Exit(1)
	}

	stopCh := setupSignalHandler()
	<-stopCh

	if err := msgSrv.Stop(); err != nil {
		glog.Errorf("failed to stop message server with error: %+v", err)
	}
	if err := mgr.Stop(); err != nil {
		glog.Errorf("failed to stop relay manager with error: %+v", err)
	}
	emitter.Close()
	if err := notifier.Stop(); err != nil {
		glog.Errorf("failed to stop events notifier with error: %+v", err)
	}
	stats := emitter.Stats()
	glog.Infof("Relay events delivered: %d dropped: %d", stats.Delivered, stats.Dropped)

	reconciler.Stop()
	// flush what was counted since the last period
	if err := reconciler.Sync(context.TODO()); err != nil {
		glog.Errorf("failed to update DHCPv4 counters with error: %+v", err)
	}
}

func newCounterStore() (counters.Store, error) {
	switch strings.ToLower(counterStore) {
	case storeArango:
		// validateDBCreds check if the user name and the password are provided either as
		// command line parameters or via files. If both are provided command line parameters
		// will be used, if neither, processor will fail.
		if err := validateDBCreds(); err != nil {
			return nil, fmt.Errorf("failed to validate the database credentials: %w", err)
		}
		return arangodb.NewDBSrvClient(dbSrvAddr, dbUser, dbPass, dbName)
	case storeBolt:
		return boltdb.NewDBSrvClient(boltPath)
	}
	return nil, fmt.Errorf("unknown counter store %q", counterStore)
}

func validateDBCreds() error {
	// Attempting to access username and password files.
	u, err := readAndDecode(userFile, MAXUSERNAME)
	if err != nil {
		if dbUser != "" && dbPass != "" {
			return nil
		}
		return fmt.Errorf("failed to access %s with error: %+v and no username and password provided via command line arguments", userFile, err)
	}
	p, err := readAndDecode(passFile, MAXPASS)
	if err != nil {
		if dbUser != "" && dbPass != "" {
			return nil
		}
		return fmt.Errorf("failed to access %s with error: %+v and no username and password provided via command line arguments", passFile, err)
	}
	if dbUser == "" || dbPass == "" {
		dbUser, dbPass = u, p
	}

	return nil
}

func readAndDecode(fn string, max int) (string, error) {
	f, err := os.Open(fn)
	if err != nil {
		return "", err
	}
	defer f.Close()
	l, err := f.Stat()
	if err != nil {
		return "", err
	}
	b := make([]byte, int(l.Size()))
	n, err := io.ReadFull(f, b)
	if err != nil {
		return "", err
	}
	if n > max {
		return "", fmt.Errorf("length of data %d exceeds maximum acceptable length: %d", n, max)
	}

	return strings.TrimSpace(string(b[:n])), nil
}

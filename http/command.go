// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

package http

import (
	"os"
	"os/signal"

	"github.com/pilosa/trialkit"
	"github.com/pilosa/trialkit/competitors"
	"github.com/pilosa/trialkit/promstat"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Main holds the config for the serve command.
type Main struct {
	competitors.Main `flag:"!embed"`
	Bind             string             `help:"Address to serve datasets and metrics on."`
	TLS              trialkit.TLSConfig `help:"TLS certificates for serving over HTTPS."`
}

// NewMain gets a new Main with default values.
func NewMain() *Main {
	return &Main{
		Main: *competitors.NewMain(),
		Bind: ":8080",
	}
}

// Run serves until interrupted.
func (m *Main) Run() error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m.Statter = promstat.New(reg, "trialkit")

	env, err := m.Setup()
	if err != nil {
		return err
	}
	defer env.Close()

	stop := make(chan struct{})
	defer close(stop)
	tlsConf, err := trialkit.GetTLSConfig(&m.TLS, env.Log, stop)
	if err != nil {
		return errors.Wrap(err, "getting TLS config")
	}
	opts := []ServerOption{
		WithAddr(m.Bind),
		WithGatherer(reg),
		WithLogger(env.Log),
		WithStatter(env.Stats),
	}
	if tlsConf != nil {
		opts = append(opts, WithTLS(tlsConf))
	}
	srv := NewServer(env.Pipeline, opts...)
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt)
	go func() {
		<-signals
		env.Log.Printf("interrupted, shutting down")
		srv.Close()
	}()
	return errors.Wrap(srv.Serve(), "running server")
}

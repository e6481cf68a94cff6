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

package kafka

import (
	"crypto/tls"

	"github.com/Shopify/sarama"
	"github.com/pilosa/trialkit"
	"github.com/pilosa/trialkit/competitors"
	"github.com/pkg/errors"
)

// Main holds the config for the publish command.
type Main struct {
	competitors.Main `flag:"!embed"`
	KafkaHosts       []string           `help:"Comma separated list of host:port pairs for Kafka."`
	Topic            string             `help:"Kafka topic to publish rows to."`
	TLS              trialkit.TLSConfig `help:"TLS certificates for connecting to Kafka."`

	NewProducer func(hosts []string, tlsConf *tls.Config) (sarama.SyncProducer, error) `flag:"-"`
}

// NewMain returns a new Main.
func NewMain() *Main {
	return &Main{
		Main:        *competitors.NewMain(),
		KafkaHosts:  []string{"localhost:9092"},
		Topic:       "trialkit",
		NewProducer: NewProducer,
	}
}

// Run resolves each target and publishes its rows.
func (m *Main) Run() error {
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
	producer, err := m.NewProducer(m.KafkaHosts, tlsConf)
	if err != nil {
		return err
	}
	defer producer.Close()
	pub := NewPublisher(producer, m.Topic, OptPublisherLogger(env.Log), OptPublisherStatter(env.Stats))

	for _, name := range m.Targets {
		d, err := env.Pipeline.Resolve(name)
		if err != nil {
			return errors.Wrapf(err, "resolving %s", name)
		}
		n, err := pub.Publish(name, d)
		if err != nil {
			return err
		}
		env.Log.Printf("published %d rows of %s to %s", n, name, m.Topic)
	}
	return nil
}

package kafka_test

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"testing"
	"time"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/pilosa/trialkit/competitors"
	"github.com/pilosa/trialkit/kafka"
	"github.com/pilosa/trialkit/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMainRun(t *testing.T) {
	var studies []test.Study
	add := func(n int, sponsor string) {
		for i := 0; i < n; i++ {
			studies = append(studies, test.Study{
				NCTID:      fmt.Sprintf("NCT%03d", len(studies)),
				Sponsor:    sponsor,
				FunderType: "INDUSTRY",
				StartDate:  "2023-01",
				Conditions: []string{"Obesity"},
			})
		}
	}
	add(2, "Ref")
	add(3, "Rival")
	api := test.NewFakeAPI(studies...)
	defer api.Close()

	sp := mocks.NewSyncProducer(t, nil)
	var got kafka.Row
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		return json.Unmarshal(val, &got)
	})

	m := kafka.NewMain()
	m.BaseURL = api.BaseURL()
	m.Sponsor = "Ref"
	m.MinSponsorTrials = 2
	m.Cache = "memory"
	m.Targets = []string{competitors.Competitors}
	m.Now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }
	m.Stderr = ioutil.Discard
	var hosts []string
	m.NewProducer = func(h []string, conf *tls.Config) (sarama.SyncProducer, error) {
		assert.Nil(t, conf, "TLS config without certificates")
		hosts = h
		return sp, nil
	}

	require.NoError(t, m.Run(), "running")
	assert.Equal(t, []string{"localhost:9092"}, hosts)
	assert.Equal(t, competitors.Competitors, got.Dataset)
	assert.Equal(t, "Rival", got.Fields["Competitor"])
}

//go:build integration

package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"dadcircles/internal/notify"
	"dadcircles/pkg/domain"
	dErrors "dadcircles/pkg/domain-errors"
	"dadcircles/pkg/platform/circuit"
	"dadcircles/pkg/testutil/containers"
)

const introductionsTopic = "group-introductions"

type KafkaDispatcherSuite struct {
	suite.Suite

	broker     string
	dispatcher *notify.KafkaDispatcher
}

func TestKafkaDispatcherSuite(t *testing.T) {
	suite.Run(t, new(KafkaDispatcherSuite))
}

func (s *KafkaDispatcherSuite) SetupSuite() {
	redpanda := containers.GetManager().GetRedpanda(s.T())
	s.broker = redpanda.Broker

	s.createTopic(introductionsTopic)

	dispatcher, err := notify.NewKafkaDispatcher([]string{s.broker}, introductionsTopic)
	s.Require().NoError(err)
	s.dispatcher = dispatcher
}

func (s *KafkaDispatcherSuite) TearDownSuite() {
	if s.dispatcher != nil {
		s.dispatcher.Close()
	}
}

func (s *KafkaDispatcherSuite) TestProduceAndConsumeRoundTrip() {
	intro := makeIntroduction()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.Require().NoError(s.dispatcher.SendIntroduction(ctx, intro))

	record := s.consumeByKey(intro.DedupeKey())
	var got notify.Introduction
	s.Require().NoError(json.Unmarshal(record.Value, &got))
	s.Equal(intro, got)
}

func (s *KafkaDispatcherSuite) TestHealth() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.Require().NoError(s.dispatcher.Health(ctx))
}

func (s *KafkaDispatcherSuite) TestOpenCircuitRejectsWithoutTouchingBroker() {
	breaker := circuit.New("test-broker", circuit.WithFailureThreshold(1))
	dispatcher, err := notify.NewKafkaDispatcher(
		[]string{"127.0.0.1:1"},
		introductionsTopic,
		notify.WithBreaker(breaker),
		notify.WithProbeInterval(time.Minute),
		notify.WithKafkaLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)
	defer dispatcher.Close()

	intro := makeIntroduction()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = dispatcher.SendIntroduction(ctx, intro)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.True(breaker.IsOpen())

	start := time.Now()
	err = dispatcher.SendIntroduction(context.Background(), intro)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.Less(time.Since(start), time.Second, "open circuit must reject immediately")
}

func makeIntroduction() notify.Introduction {
	return notify.Introduction{
		GroupID:     domain.NewGroupID(),
		GroupName:   "Berlin Toddler Dads – Group 1",
		City:        "Berlin",
		Stage:       domain.LifeStageToddler,
		UserID:      domain.NewUserID(),
		Email:       "sam@example.com",
		DisplayName: "Sam",
		MemberCount: 5,
	}
}

func (s *KafkaDispatcherSuite) createTopic(topic string) {
	client, err := kgo.NewClient(kgo.SeedBrokers(s.broker))
	s.Require().NoError(err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := kadm.NewClient(client).CreateTopics(ctx, 1, 1, nil, topic)
	s.Require().NoError(err)
	for _, res := range resp.Sorted() {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			s.Require().NoError(res.Err)
		}
	}
}

// consumeByKey reads the topic from the beginning until it finds a record
// with the given key.
func (s *KafkaDispatcherSuite) consumeByKey(key string) *kgo.Record {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(s.broker),
		kgo.ConsumeTopics(introductionsTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer client.Close()

	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		fetches := client.PollFetches(ctx)
		cancel()

		var found *kgo.Record
		fetches.EachRecord(func(r *kgo.Record) {
			if string(r.Key) == key {
				found = r
			}
		})
		if found != nil {
			return found
		}
	}

	s.Require().FailNowf("record not consumed", "no record with key %s", key)
	return nil
}

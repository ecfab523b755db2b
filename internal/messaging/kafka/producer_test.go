package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/require"
)

func TestProducer_Send(t *testing.T) {
	t.Parallel()

	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicOrderEvents {
			return errors.New("unexpected topic " + msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "42" {
			return errors.New("unexpected key " + string(key))
		}
		if len(msg.Headers) != 1 || string(msg.Headers[0].Key) != HeaderEventType {
			return errors.New("missing event type header")
		}
		return nil
	})

	producer := NewProducerFromSync(mockProducer)
	err := producer.Send(context.Background(), TopicOrderEvents, "42", []byte(`{}`),
		Header{Key: HeaderEventType, Value: "order.created"})
	require.NoError(t, err)
	require.NoError(t, producer.Close())
}

func TestProducer_Send_Error(t *testing.T) {
	t.Parallel()

	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	producer := NewProducerFromSync(mockProducer)
	err := producer.Send(context.Background(), TopicOrderEvents, "42", []byte(`{}`))
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, producer.Close())
}

func TestProducer_Send_CanceledContext(t *testing.T) {
	t.Parallel()

	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := NewProducerFromSync(mockProducer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, producer.Send(ctx, TopicOrderEvents, "42", nil), context.Canceled)
	require.NoError(t, producer.Close())
}

func TestProducer_NilIsClosed(t *testing.T) {
	t.Parallel()

	var producer *Producer
	require.ErrorIs(t, producer.Send(context.Background(), "t", "k", nil), ErrProducerClosed)
	require.NoError(t, producer.Close())
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	t.Parallel()

	_, err := NewProducer(nil, "bookstore")
	require.Error(t, err)
}

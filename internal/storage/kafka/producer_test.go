package kafka

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapScope/internal/model"
)

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer(ProducerConfig{})
	assert.Error(t, err)

	p, err := NewProducer(ProducerConfig{Brokers: []string{"localhost:9092"}})
	require.NoError(t, err)
	assert.Equal(t, defaultTopic, p.topic)
	require.NoError(t, p.Close())
}

func TestEncodeKeysByActor(t *testing.T) {
	alert := model.NewAlert(model.AlertTransfer, 8453)
	alert.Actor = common.HexToAddress("0xAbCdEf0000000000000000000000000000000001")

	message, err := encode(alert)
	require.NoError(t, err)
	assert.Equal(t, "0xabcdef0000000000000000000000000000000001", string(message.Key))
	require.Len(t, message.Headers, 2)
	assert.Equal(t, "transfer", string(message.Headers[0].Value))

	var decoded model.Alert
	require.NoError(t, json.Unmarshal(message.Value, &decoded))
	assert.Equal(t, alert.ID, decoded.ID)
}

package publish

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/angas/spotprice-go/query"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	err error
}

func (t fakeToken) Wait() bool                     { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Error() error                   { return t.err }

func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type message struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakeClient records published messages, other methods are not used.
type fakeClient struct {
	mqtt.Client
	mu       sync.Mutex
	failOn   string
	messages []message
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload any) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if topic == c.failOn {
		return fakeToken{err: errors.New("not connected")}
	}
	c.messages = append(c.messages, message{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return fakeToken{}
}

type staticPrices []query.CurrentPrice

func (s staticPrices) Current(context.Context) ([]query.CurrentPrice, error) {
	return s, nil
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "spotprice/awattar/current", Topic("spotprice", "aWATTar"))
	assert.Equal(t, "home/prices/entso-e/current", Topic("home/prices", "ENTSO-E"))
	assert.Equal(t, "spotprice/nord_pool/current", Topic("spotprice", "Nord Pool"))
	assert.Equal(t, "spotprice/ab/current", Topic("spotprice", "a#b+"))
}

func TestPublishCurrent(t *testing.T) {
	client := &fakeClient{}
	prices := staticPrices{
		{ProviderID: 1, Provider: "aWATTar", ProviderName: "aWATTar Germany", CurrentPrice: 8.54, TotalPrice: 16.68},
		{ProviderID: 2, Provider: "Tibber", ProviderName: "Tibber", CurrentPrice: 28.53, TotalPrice: 28.53},
	}
	p := newPublisher(slog.New(slog.DiscardHandler), client, "spotprice/", prices)

	require.NoError(t, p.PublishCurrent(t.Context()))
	require.Len(t, client.messages, 2)

	m := client.messages[0]
	assert.Equal(t, "spotprice/awattar/current", m.topic)
	assert.Equal(t, byte(0), m.qos)
	assert.True(t, m.retained)

	var got query.CurrentPrice
	require.NoError(t, json.Unmarshal(m.payload, &got))
	assert.Equal(t, 16.68, got.TotalPrice)
	assert.Equal(t, "aWATTar Germany", got.ProviderName)
}

func TestPublishCurrentContinuesAfterFailure(t *testing.T) {
	client := &fakeClient{failOn: "spotprice/awattar/current"}
	prices := staticPrices{
		{ProviderID: 1, Provider: "aWATTar"},
		{ProviderID: 2, Provider: "Tibber"},
	}
	p := newPublisher(slog.New(slog.DiscardHandler), client, "spotprice", prices)

	err := p.PublishCurrent(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
	require.Len(t, client.messages, 1)
	assert.Equal(t, "spotprice/tibber/current", client.messages[0].topic)
}

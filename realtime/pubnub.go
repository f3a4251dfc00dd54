package realtime

import (
	"log"

	pubnub "github.com/pubnub/go/v7"

	"queueless/config"
	"queueless/utils"
)

// PubNubPublisher pushes queue snapshots and per-user notifications over
// PubNub channels. Publishing is fire-and-forget: failures are logged, never
// surfaced to the mutation that triggered them. The circuit breaker keeps a
// failing realtime backend from slowing down queue operations.
type PubNubPublisher struct {
	pn      *pubnub.PubNub
	breaker *utils.CircuitBreaker
}

func NewPubNubPublisher(cfg *config.Config) *PubNubPublisher {
	pnConfig := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.PubNubUserID))
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey

	return &PubNubPublisher{
		pn:      pubnub.NewPubNub(pnConfig),
		breaker: utils.NewCircuitBreaker("pubnub"),
	}
}

func (p *PubNubPublisher) Publish(channel string, message any) {
	err := p.breaker.Execute(func() error {
		_, _, err := p.pn.Publish().
			Channel(channel).
			Message(message).
			Execute()
		return err
	})
	if err != nil {
		log.Printf("Error publishing to channel %s: %v", channel, err)
	}
}

package main

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// publisherFactory returns nil when topic has no publisher.
type publisherFactory func(topic string) publisher

type sdkPublisher struct{ p *gcppubsub.Publisher }

func (s sdkPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if res := s.p.Publish(ctx, msg); res != nil {
		return res
	}
	return failedResult{errors.New("publish result is nil")}
}

type failedResult struct{ err error }

func (f failedResult) Get(context.Context) (string, error) { return "", f.err }

func gcpPublishers(client pubSubClient) publisherFactory {
	return func(topic string) publisher {
		p := client.Publisher(topic)
		if p == nil {
			return nil
		}
		return sdkPublisher{p: p}
	}
}

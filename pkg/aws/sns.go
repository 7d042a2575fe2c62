package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSAPI is the part of the SNS SDK client used here.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSClient publishes keyed messages to one topic.
type SNSClient struct {
	client   SNSAPI
	topicArn string
}

func NewSNSClient(cfg sdkaws.Config, topicArn string) *SNSClient {
	return NewSNSClientWithAPI(sns.NewFromConfig(cfg), topicArn)
}

func NewSNSClientWithAPI(api SNSAPI, topicArn string) *SNSClient {
	return &SNSClient{client: api, topicArn: topicArn}
}

// Publish sends message to the topic. key travels as the "key" message
// attribute so subscribers can filter or group on it.
func (s *SNSClient) Publish(ctx context.Context, key string, message []byte) error {
	if s.topicArn == "" {
		return fmt.Errorf("empty topicArn")
	}
	input := &sns.PublishInput{
		TopicArn: sdkaws.String(s.topicArn),
		Message:  sdkaws.String(string(message)),
	}
	if key != "" {
		input.MessageAttributes = map[string]types.MessageAttributeValue{
			"key": {DataType: sdkaws.String("String"), StringValue: sdkaws.String(key)},
		}
	}

	if _, err := s.client.Publish(ctx, input); err != nil {
		return fmt.Errorf("sns publish failed for topic %s: %w", s.topicArn, err)
	}
	return nil
}

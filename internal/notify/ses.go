package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

const charset = "UTF-8"

type sesClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SESConfig struct {
	Region string

	// Static credentials, default aws credentials chain is used if empty
	AccessKeyID     string
	SecretAccessKey string

	// Sender address, must be verified with Amazon SES
	From string
}

// Mailer that sends emails with Amazon SES
type SESMailer struct {
	ses  sesClient
	from string
}

func NewSESMailer(ctx context.Context, cfg SESConfig) (*SESMailer, error) {
	if cfg.From == "" {
		return nil, errors.New("sender address must not be empty")
	}

	opts := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(cfg.Region),
		awsConfig.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("can't load aws config. Err: %w", err)
	}

	return newSESMailer(ses.NewFromConfig(awsCfg), cfg.From), nil
}

func newSESMailer(client sesClient, from string) *SESMailer {
	return &SESMailer{ses: client, from: from}
}

func (m *SESMailer) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return errors.New("recipient must not be empty")
	}

	_, err := m.ses.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(m.from),
		Destination: &types.Destination{
			CcAddresses: []string{},
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String(charset)},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String(charset)},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send error: %w", err)
	}

	return nil
}

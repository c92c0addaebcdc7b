package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"
)

const charset = "UTF-8"

// ErrSenderRequired is returned when the SES dispatcher has no From address.
var ErrSenderRequired = errors.New("email: sender address is required")

// sesAPI is the subset of *sesv2.Client used by SESDispatcher.
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESDispatcher sends link emails through Amazon SES v2.
type SESDispatcher struct {
	client   sesAPI
	from     string
	renderer *Renderer
	log      *zap.Logger
}

// NewSESDispatcher loads the default AWS credential chain for region and returns a dispatcher
// sending from the given address.
func NewSESDispatcher(ctx context.Context, region, from string, renderer *Renderer, log *zap.Logger) (*SESDispatcher, error) {
	if from == "" {
		return nil, ErrSenderRequired
	}
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("email: load aws config: %w", err)
	}
	return newSESDispatcher(sesv2.NewFromConfig(cfg), from, renderer, log), nil
}

func newSESDispatcher(client sesAPI, from string, renderer *Renderer, log *zap.Logger) *SESDispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &SESDispatcher{client: client, from: from, renderer: renderer, log: log}
}

// Send renders and sends the email. A failed send returns Status false and the error.
func (d *SESDispatcher) Send(ctx context.Context, recipient, token string, kind Kind, displayName string) (Result, error) {
	msg, err := d.renderer.Render(recipient, token, kind, displayName)
	if err != nil {
		return Result{Status: false, Message: err.Error()}, err
	}
	_, err = d.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(d.from),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String(charset)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String(charset)},
					Text: &types.Content{Data: aws.String(msg.Text), Charset: aws.String(charset)},
				},
			},
		},
	})
	if err != nil {
		return Result{Status: false, Message: "Email could not be sent"}, fmt.Errorf("email: ses send: %w", err)
	}
	d.log.Info("email sent", zap.String("kind", string(kind)), zap.String("to", msg.To))
	return Result{Status: true, Message: kind.SentMessage()}, nil
}

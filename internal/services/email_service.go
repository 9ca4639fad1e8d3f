package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	pkglogger "github.com/BradenHooton/sentinel/pkg/logger"
)

// EmailService delivers password reset links
type EmailService interface {
	SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error
}

// SESClient is the subset of the SES API used here
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	client      SESClient
	fromAddress string
	baseURL     string
	logger      *slog.Logger
}

// NewAWSSESEmailService loads the default AWS credential chain for region
func NewAWSSESEmailService(ctx context.Context, region, fromAddress, baseURL string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewSESEmailServiceWithClient(ses.NewFromConfig(cfg), fromAddress, baseURL, logger), nil
}

func NewSESEmailServiceWithClient(client SESClient, fromAddress, baseURL string, logger *slog.Logger) *AWSSESEmailService {
	return &AWSSESEmailService{
		client:      client,
		fromAddress: fromAddress,
		baseURL:     baseURL,
		logger:      logger,
	}
}

// ResetLink builds the URL the user follows to choose a new password
func (s *AWSSESEmailService) ResetLink(token string) string {
	return fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, url.QueryEscape(token))
}

func (s *AWSSESEmailService) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	link := s.ResetLink(token)
	validFor := time.Until(expiresAt).Round(time.Minute)
	if validFor < time.Minute {
		validFor = time.Minute
	}

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <h1>Reset your password</h1>
    <p>We received a request to reset the password for your account. Use the link below to choose a new one:</p>
    <p><a href="%s">Reset password</a></p>
    <p>Or copy and paste this link in your browser:<br><code>%s</code></p>
    <p><strong>This link expires in %s and can only be used once.</strong></p>
    <p>If you didn't ask for this, you can ignore this email. Your password will not change.</p>
</body>
</html>
`, link, link, validFor)

	textBody := fmt.Sprintf(`Reset your password

We received a request to reset the password for your account. Open this link to choose a new one:

%s

This link expires in %s and can only be used once.

If you didn't ask for this, you can ignore this email. Your password will not change.
`, link, validFor)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Reset your password"),
			},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody)},
				Text: &types.Content{Data: aws.String(textBody)},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send password reset email via SES",
			pkglogger.EmailAttr(email),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("password reset email sent",
		pkglogger.EmailAttr(email),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}

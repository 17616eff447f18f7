package mainconfig

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/patient-portal/internal/config"
)

// ServiceEndpoints maps the AWS services the portal is configured to use onto
// their endpoint overrides. SQS is only used as the appointment event
// transport and SES only as the desk email provider; SQS_ENDPOINT and
// SES_ENDPOINT take precedence over AWS_ENDPOINT_OVERRIDE.
func ServiceEndpoints(cfg *appconfig.Config) map[string]string {
	endpoints := map[string]string{}
	if cfg == nil {
		return endpoints
	}
	pick := func(specific string) string {
		if s := strings.TrimSpace(specific); s != "" {
			return s
		}
		return strings.TrimSpace(cfg.AWSEndpointOverride)
	}
	if cfg.EventsPublisher == "sqs" {
		if url := pick(cfg.SQSEndpoint); url != "" {
			endpoints[sqs.ServiceID] = url
		}
	}
	if cfg.EmailProvider == "ses" {
		if url := pick(cfg.SESEndpoint); url != "" {
			endpoints[sesv2.ServiceID] = url
		}
	}
	return endpoints
}

// LoadAWSConfig builds the SDK config for the appointment event queue and the
// desk mailer, pointing them at LocalStack when endpoints are overridden.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	if cfg == nil {
		return aws.Config{}, fmt.Errorf("mainconfig: config is required")
	}
	if strings.TrimSpace(cfg.AWSRegion) == "" {
		return aws.Config{}, fmt.Errorf("mainconfig: AWS_REGION is required for %s", awsUsers(cfg))
	}
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("mainconfig: load aws config: %w", err)
	}

	if endpoints := ServiceEndpoints(cfg); len(endpoints) > 0 {
		region := cfg.AWSRegion
		awsCfg.EndpointResolverWithOptions = aws.EndpointResolverWithOptionsFunc(
			func(service, _ string, _ ...interface{}) (aws.Endpoint, error) {
				url, ok := endpoints[service]
				if !ok {
					return aws.Endpoint{}, &aws.EndpointNotFoundError{}
				}
				return aws.Endpoint{
					URL:           url,
					PartitionID:   "aws",
					SigningRegion: region,
				}, nil
			},
		)
	}

	return awsCfg, nil
}

// awsUsers names the portal features that need AWS, for error messages.
func awsUsers(cfg *appconfig.Config) string {
	var users []string
	if cfg.EventsPublisher == "sqs" {
		users = append(users, "appointment events")
	}
	if cfg.EmailProvider == "ses" {
		users = append(users, "desk email")
	}
	if len(users) == 0 {
		return "AWS clients"
	}
	return strings.Join(users, " and ")
}

package provisioning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

type s3API interface {
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

type iamAPI interface {
	CreateUser(ctx context.Context, in *iam.CreateUserInput, optFns ...func(*iam.Options)) (*iam.CreateUserOutput, error)
	PutUserPolicy(ctx context.Context, in *iam.PutUserPolicyInput, optFns ...func(*iam.Options)) (*iam.PutUserPolicyOutput, error)
	CreateAccessKey(ctx context.Context, in *iam.CreateAccessKeyInput, optFns ...func(*iam.Options)) (*iam.CreateAccessKeyOutput, error)
}

// S3Config holds the master credentials and endpoints of the provider.
type S3Config struct {
	Endpoint       string
	IAMEndpoint    string
	Region         string
	RootUser       string
	RootPassword   string
	PublicEndpoint string
}

// S3Provisioner provisions buckets on an S3-compatible gateway and issues
// per-bucket keys through the IAM API.
type S3Provisioner struct {
	s3       s3API
	iam      iamAPI
	endpoint string
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

// NewS3Provisioner builds S3 and IAM clients authenticated with the master
// credentials from cfg.
func NewS3Provisioner(ctx context.Context, cfg S3Config) (*S3Provisioner, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.RootUser,
			cfg.RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	iamClient := iam.NewFromConfig(awsCfg, func(o *iam.Options) {
		if cfg.IAMEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.IAMEndpoint)
		}
	})

	endpoint := cfg.PublicEndpoint
	if endpoint == "" {
		endpoint = cfg.Endpoint
	}

	return &S3Provisioner{s3: s3Client, iam: iamClient, endpoint: endpoint}, nil
}

// Endpoint is the URL clients should use with the issued credentials.
func (p *S3Provisioner) Endpoint() string {
	return p.endpoint
}

func (p *S3Provisioner) CreateBucket(ctx context.Context, name string) error {
	_, err := p.s3.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(name)})
	if err != nil {
		var owned *s3types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("%w: create bucket %s: %v", ErrProvider, name, err)
	}
	return nil
}

func (p *S3Provisioner) BucketExists(ctx context.Context, name string) (bool, error) {
	_, err := p.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(name)})
	if err == nil {
		return true, nil
	}

	var notFound *s3types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchBucket") {
		return false, nil
	}
	return false, fmt.Errorf("%w: head bucket %s: %v", ErrProvider, name, err)
}

// IssueCredentials creates (or reuses) an IAM user named after the bucket,
// restricts it to that bucket and returns a fresh access key.
func (p *S3Provisioner) IssueCredentials(ctx context.Context, bucket string) (*Credentials, error) {
	userName := aws.String(bucket)

	if _, err := p.iam.CreateUser(ctx, &iam.CreateUserInput{UserName: userName}); err != nil {
		var exists *iamtypes.EntityAlreadyExistsException
		if !errors.As(err, &exists) {
			return nil, fmt.Errorf("%w: create user %s: %v", ErrProvider, bucket, err)
		}
	}

	policy, err := bucketPolicy(bucket)
	if err != nil {
		return nil, err
	}
	_, err = p.iam.PutUserPolicy(ctx, &iam.PutUserPolicyInput{
		UserName:       userName,
		PolicyName:     aws.String("bucket-access"),
		PolicyDocument: aws.String(policy),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: put user policy %s: %v", ErrProvider, bucket, err)
	}

	out, err := p.iam.CreateAccessKey(ctx, &iam.CreateAccessKeyInput{UserName: userName})
	if err != nil {
		return nil, fmt.Errorf("%w: create access key %s: %v", ErrProvider, bucket, err)
	}
	if out.AccessKey == nil {
		return nil, fmt.Errorf("%w: empty access key for %s", ErrProvider, bucket)
	}

	return &Credentials{
		AccessKeyID:     aws.ToString(out.AccessKey.AccessKeyId),
		SecretAccessKey: aws.ToString(out.AccessKey.SecretAccessKey),
	}, nil
}

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Effect   string   `json:"Effect"`
	Action   []string `json:"Action"`
	Resource []string `json:"Resource"`
}

func bucketPolicy(bucket string) (string, error) {
	doc := policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect: "Allow",
			Action: []string{"s3:*"},
			Resource: []string{
				"arn:aws:s3:::" + bucket,
				"arn:aws:s3:::" + bucket + "/*",
			},
		}},
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

package provisioning

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	created   []string
	createErr error
	headErr   error
}

func (f *fakeS3) CreateBucket(_ context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, aws.ToString(in.Bucket))
	return &s3.CreateBucketOutput{}, nil
}

func (f *fakeS3) HeadBucket(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadBucketOutput{}, nil
}

type fakeIAM struct {
	createUserErr error
	policyErr     error
	keyErr        error
	policy        string
	users         []string
}

func (f *fakeIAM) CreateUser(_ context.Context, in *iam.CreateUserInput, _ ...func(*iam.Options)) (*iam.CreateUserOutput, error) {
	if f.createUserErr != nil {
		return nil, f.createUserErr
	}
	f.users = append(f.users, aws.ToString(in.UserName))
	return &iam.CreateUserOutput{}, nil
}

func (f *fakeIAM) PutUserPolicy(_ context.Context, in *iam.PutUserPolicyInput, _ ...func(*iam.Options)) (*iam.PutUserPolicyOutput, error) {
	if f.policyErr != nil {
		return nil, f.policyErr
	}
	f.policy = aws.ToString(in.PolicyDocument)
	return &iam.PutUserPolicyOutput{}, nil
}

func (f *fakeIAM) CreateAccessKey(_ context.Context, in *iam.CreateAccessKeyInput, _ ...func(*iam.Options)) (*iam.CreateAccessKeyOutput, error) {
	if f.keyErr != nil {
		return nil, f.keyErr
	}
	return &iam.CreateAccessKeyOutput{AccessKey: &iamtypes.AccessKey{
		UserName:        in.UserName,
		AccessKeyId:     aws.String("AKIA" + aws.ToString(in.UserName)),
		SecretAccessKey: aws.String("secret"),
	}}, nil
}

func TestS3Provisioner_CreateBucket(t *testing.T) {
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		s := &fakeS3{}
		p := &S3Provisioner{s3: s}
		require.NoError(t, p.CreateBucket(ctx, "wayne-abc"))
		assert.Equal(t, []string{"wayne-abc"}, s.created)
	})

	t.Run("already owned is not an error", func(t *testing.T) {
		p := &S3Provisioner{s3: &fakeS3{createErr: &s3types.BucketAlreadyOwnedByYou{}}}
		require.NoError(t, p.CreateBucket(ctx, "wayne-abc"))
	})

	t.Run("provider failure", func(t *testing.T) {
		p := &S3Provisioner{s3: &fakeS3{createErr: errors.New("boom")}}
		err := p.CreateBucket(ctx, "wayne-abc")
		require.ErrorIs(t, err, ErrProvider)
	})
}

func TestS3Provisioner_BucketExists(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		headErr error
		want    bool
		wantErr bool
	}{
		{name: "exists", want: true},
		{name: "typed not found", headErr: &s3types.NotFound{}, want: false},
		{name: "generic no such bucket", headErr: &smithy.GenericAPIError{Code: "NoSuchBucket"}, want: false},
		{name: "other failure", headErr: errors.New("timeout"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &S3Provisioner{s3: &fakeS3{headErr: tt.headErr}}
			got, err := p.BucketExists(ctx, "b")
			if tt.wantErr {
				require.ErrorIs(t, err, ErrProvider)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestS3Provisioner_IssueCredentials(t *testing.T) {
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		fi := &fakeIAM{}
		p := &S3Provisioner{iam: fi}

		creds, err := p.IssueCredentials(ctx, "wayne-abc")
		require.NoError(t, err)
		assert.Equal(t, "AKIAwayne-abc", creds.AccessKeyID)
		assert.Equal(t, "secret", creds.SecretAccessKey)
		assert.Equal(t, []string{"wayne-abc"}, fi.users)

		var doc policyDocument
		require.NoError(t, json.Unmarshal([]byte(fi.policy), &doc))
		require.Len(t, doc.Statement, 1)
		assert.Contains(t, doc.Statement[0].Resource, "arn:aws:s3:::wayne-abc/*")
	})

	t.Run("existing user is reused", func(t *testing.T) {
		p := &S3Provisioner{iam: &fakeIAM{createUserErr: &iamtypes.EntityAlreadyExistsException{}}}
		creds, err := p.IssueCredentials(ctx, "wayne-abc")
		require.NoError(t, err)
		assert.NotEmpty(t, creds.AccessKeyID)
	})

	t.Run("create user failure", func(t *testing.T) {
		p := &S3Provisioner{iam: &fakeIAM{createUserErr: errors.New("denied")}}
		_, err := p.IssueCredentials(ctx, "wayne-abc")
		require.ErrorIs(t, err, ErrProvider)
	})

	t.Run("access key failure", func(t *testing.T) {
		p := &S3Provisioner{iam: &fakeIAM{keyErr: errors.New("quota")}}
		_, err := p.IssueCredentials(ctx, "wayne-abc")
		require.ErrorIs(t, err, ErrProvider)
	})
}

func TestNewS3Provisioner_Endpoint(t *testing.T) {
	p, err := NewS3Provisioner(context.Background(), S3Config{
		Endpoint:     "http://minio:9000",
		Region:       "us-east-1",
		RootUser:     "root",
		RootPassword: "pass",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://minio:9000", p.Endpoint())

	p, err = NewS3Provisioner(context.Background(), S3Config{
		Endpoint:       "http://minio:9000",
		PublicEndpoint: "https://gateway.example.com",
		Region:         "us-east-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://gateway.example.com", p.Endpoint())
}

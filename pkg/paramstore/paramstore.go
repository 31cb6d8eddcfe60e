// Package paramstore abstracts the AWS SSM parameter store behind a small
// client interface so config resolution and preflight can be tested against
// an in-memory fake.
package paramstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"

	sharederrors "github.com/jqsirls/character-canary/pkg/shared/errors"
)

// Client reads and writes named parameters.
type Client interface {
	GetParameter(ctx context.Context, name string, withDecryption bool) (string, error)
	PutParameter(ctx context.Context, name, value string, secure bool) error
}

// ssmAPI is the subset of the SSM SDK the client needs.
type ssmAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// AWSClient implements Client over the AWS SSM API.
type AWSClient struct {
	api ssmAPI
}

// NewAWSClient builds a client from the ambient AWS configuration.
func NewAWSClient(ctx context.Context) (*AWSClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, sharederrors.FailedTo("load AWS configuration", err)
	}
	return &AWSClient{api: ssm.NewFromConfig(cfg)}, nil
}

// NewAWSClientFromAPI builds a client over an existing SSM API, used by tests.
func NewAWSClientFromAPI(api ssmAPI) *AWSClient {
	return &AWSClient{api: api}
}

// GetParameter fetches a parameter value, optionally decrypting SecureString
// values.
func (c *AWSClient) GetParameter(ctx context.Context, name string, withDecryption bool) (string, error) {
	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(withDecryption),
	})
	if err != nil {
		return "", sharederrors.NetworkError("get parameter", name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("parameter %s has no value", name)
	}
	return *out.Parameter.Value, nil
}

// PutParameter writes a parameter, overwriting any existing value.
func (c *AWSClient) PutParameter(ctx context.Context, name, value string, secure bool) error {
	paramType := types.ParameterTypeString
	if secure {
		paramType = types.ParameterTypeSecureString
	}
	_, err := c.api.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(name),
		Value:     aws.String(value),
		Type:      paramType,
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		return sharederrors.NetworkError("put parameter", name, err)
	}
	return nil
}

// Fake is an in-memory Client for tests.
type Fake struct {
	Values map[string]string
	// Errors maps parameter names to forced retrieval errors.
	Errors map[string]error
	Puts   []FakePut
}

// FakePut records one PutParameter call against the fake.
type FakePut struct {
	Name   string
	Value  string
	Secure bool
}

// NewFake builds an empty fake store.
func NewFake() *Fake {
	return &Fake{Values: map[string]string{}, Errors: map[string]error{}}
}

// GetParameter returns the stored value or a not-found error.
func (f *Fake) GetParameter(_ context.Context, name string, _ bool) (string, error) {
	if err, ok := f.Errors[name]; ok {
		return "", err
	}
	value, ok := f.Values[name]
	if !ok {
		return "", fmt.Errorf("parameter %s not found", name)
	}
	return value, nil
}

// PutParameter records the write and stores the value.
func (f *Fake) PutParameter(_ context.Context, name, value string, secure bool) error {
	if f.Values == nil {
		f.Values = map[string]string{}
	}
	f.Values[name] = value
	f.Puts = append(f.Puts, FakePut{Name: name, Value: value, Secure: secure})
	return nil
}

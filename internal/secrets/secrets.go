// Package secrets resolves credentials that must not live in config files or
// connection strings.
package secrets

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/keithlinneman/tours-api/internal/apperr"
)

// SSMAPI is the subset of the SSM client used here.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Source describes where a secret comes from. Value wins when set; otherwise
// SSMParam names a SecureString parameter. Both empty yields "".
type Source struct {
	Value    string
	SSMParam string
}

type Resolver struct {
	ssm SSMAPI
}

// NewResolver wraps an existing SSM client.
func NewResolver(client SSMAPI) *Resolver {
	return &Resolver{ssm: client}
}

// NewDefaultResolver builds an SSM client from the default AWS config chain.
func NewDefaultResolver(ctx context.Context) (*Resolver, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, "load AWS config")
	}
	return NewResolver(ssm.NewFromConfig(awsCfg)), nil
}

// Resolve returns the secret described by src.
func (r *Resolver) Resolve(ctx context.Context, src Source) (string, error) {
	if src.Value != "" {
		return src.Value, nil
	}
	if src.SSMParam == "" {
		return "", nil
	}
	if r == nil || r.ssm == nil {
		return "", apperr.Errorf("ssm parameter %s configured but no ssm client available", src.SSMParam)
	}

	out, err := r.ssm.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(src.SSMParam),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", apperr.Wrapf(err, "get SSM parameter %s", src.SSMParam)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", apperr.Errorf("SSM parameter %s has no value", src.SSMParam)
	}
	v := strings.TrimSpace(*out.Parameter.Value)
	if v == "" {
		return "", apperr.Errorf("SSM parameter %s is empty", src.SSMParam)
	}
	return v, nil
}

package client

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/cockroachdb/errors"
)

// Transport 发送已签名的 HTTP 请求。
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPTransport 使用 net/http 客户端发送请求。
type HTTPTransport struct {
	Client *http.Client
}

func (t *HTTPTransport) Do(req *http.Request) (*http.Response, error) {
	return t.Client.Do(req)
}

// Signer 在发送前为请求签名。body 为缓冲的请求体，流式请求时为 nil。
type Signer interface {
	Sign(ctx context.Context, req *http.Request, body []byte, streaming bool) error
}

// AnonymousSigner 不做任何签名。
type AnonymousSigner struct{}

func (AnonymousSigner) Sign(context.Context, *http.Request, []byte, bool) error {
	return nil
}

const unsignedPayload = "UNSIGNED-PAYLOAD"

// SigV4Signer 使用 AWS Signature Version 4 签名。
type SigV4Signer struct {
	Credentials aws.CredentialsProvider
	Service     string
	Region      string

	signer *v4.Signer
	now    func() time.Time
}

func NewSigV4Signer(creds aws.CredentialsProvider, service, region string) *SigV4Signer {
	return &SigV4Signer{
		Credentials: aws.NewCredentialsCache(creds),
		Service:     service,
		Region:      region,
		signer:      v4.NewSigner(),
		now:         time.Now,
	}
}

func (s *SigV4Signer) Sign(ctx context.Context, req *http.Request, body []byte, streaming bool) error {
	creds, err := s.Credentials.Retrieve(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieve credentials")
	}
	hash := unsignedPayload
	if !streaming {
		sum := sha256.Sum256(body)
		hash = hex.EncodeToString(sum[:])
	}
	req.Header.Set("X-Amz-Content-Sha256", hash)
	if err := s.signer.SignHTTP(ctx, creds, req, hash, s.Service, s.Region, s.now().UTC()); err != nil {
		return errors.Wrap(err, "sign request")
	}
	return nil
}

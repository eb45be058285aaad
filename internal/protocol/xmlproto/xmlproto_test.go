package xmlproto

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aws/smithy-go/ptr"
	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/awswire-go/internal/protocol/binding"
	"github.com/lk2023060901/awswire-go/internal/protocol/rest"
	"github.com/lk2023060901/awswire-go/internal/protocol/shape"
	"github.com/lk2023060901/awswire-go/internal/protocol/wire"
	"github.com/lk2023060901/awswire-go/pkg/util/merr"
)

type tag struct {
	Key   *string
	Value *string
}

type bucketConfig struct {
	Bucket   *string
	Owner    *string
	Quota    *int64
	Versions *bool
	Created  *time.Time
	Tags     []*tag
	Regions  []string
	Labels   map[string]string
	Checksum []byte
}

var tagShape = shape.Structure[tag]("Tag", []*shape.Field{
	shape.String[tag]("Key", shape.LocationPayload, func(t *tag) *string { return t.Key }, func(t *tag, v *string) { t.Key = v }),
	shape.String[tag]("Value", shape.LocationPayload, func(t *tag) *string { return t.Value }, func(t *tag, v *string) { t.Value = v }),
})

var bucketConfigShape = shape.Structure[bucketConfig]("BucketConfiguration", []*shape.Field{
	shape.String[bucketConfig]("Bucket", shape.LocationURI, func(b *bucketConfig) *string { return b.Bucket }, nil),
	shape.String[bucketConfig]("x-amz-expected-bucket-owner", shape.LocationHeader, func(b *bucketConfig) *string { return b.Owner }, func(b *bucketConfig, v *string) { b.Owner = v }),
	shape.Integer[bucketConfig]("Quota", shape.LocationPayload, func(b *bucketConfig) *int64 { return b.Quota }, func(b *bucketConfig, v *int64) { b.Quota = v }),
	shape.Boolean[bucketConfig]("Versioning", shape.LocationPayload, func(b *bucketConfig) *bool { return b.Versions }, func(b *bucketConfig, v *bool) { b.Versions = v }),
	shape.Timestamp[bucketConfig]("CreationDate", shape.LocationPayload, func(b *bucketConfig) *time.Time { return b.Created }, func(b *bucketConfig, v *time.Time) { b.Created = v }),
	shape.ListShaped[bucketConfig]("TagSet", shape.LocationPayload, shape.ListOf(tagShape, shape.WithMemberName("Tag")),
		func(b *bucketConfig) []*tag { return b.Tags }, func(b *bucketConfig, v []*tag) { b.Tags = v }),
	shape.List[bucketConfig]("Region", shape.LocationPayload, shape.StringShape,
		func(b *bucketConfig) []string { return b.Regions }, func(b *bucketConfig, v []string) { b.Regions = v }, shape.Flattened()),
	shape.Map[bucketConfig]("Labels", shape.LocationPayload, shape.StringShape,
		func(b *bucketConfig) map[string]string { return b.Labels }, func(b *bucketConfig, v map[string]string) { b.Labels = v }),
	shape.Blob[bucketConfig]("Checksum", shape.LocationPayload, func(b *bucketConfig) []byte { return b.Checksum }, func(b *bucketConfig, v []byte) { b.Checksum = v }),
}, shape.WithXMLNamespace("http://s3.amazonaws.com/doc/2006-03-01/"))

type taggingInput struct {
	Bucket  *string
	Tagging *tagging
}

type tagging struct {
	TagSet []*tag
}

var taggingShape = shape.Structure[tagging]("Tagging", []*shape.Field{
	shape.ListShaped[tagging]("TagSet", shape.LocationPayload, shape.ListOf(tagShape, shape.WithMemberName("Tag")),
		func(t *tagging) []*tag { return t.TagSet }, func(t *tagging, v []*tag) { t.TagSet = v }),
}, shape.WithXMLNamespace("http://s3.amazonaws.com/doc/2006-03-01/"))

var taggingInputShape = shape.Structure[taggingInput]("PutBucketTaggingRequest", []*shape.Field{
	shape.String[taggingInput]("Bucket", shape.LocationURI, func(t *taggingInput) *string { return t.Bucket }, nil),
	shape.Struct[taggingInput]("Tagging", shape.LocationExplicitPayload, taggingShape,
		func(t *taggingInput) *tagging { return t.Tagging }, func(t *taggingInput, v *tagging) { t.Tagging = v }),
})

type getObjectInput struct {
	Bucket *string
	Key    *string
}

type getObjectOutput struct {
	Length *int64
	Body   io.ReadCloser
}

var getObjectInputShape = shape.Structure[getObjectInput]("GetObjectRequest", []*shape.Field{
	shape.String[getObjectInput]("Bucket", shape.LocationURI, func(g *getObjectInput) *string { return g.Bucket }, nil),
	shape.String[getObjectInput]("Key", shape.LocationURI, func(g *getObjectInput) *string { return g.Key }, nil),
})

var getObjectOutputShape = shape.Structure[getObjectOutput]("GetObjectOutput", []*shape.Field{
	shape.Integer[getObjectOutput]("Content-Length", shape.LocationHeader, nil, func(g *getObjectOutput, v *int64) { g.Length = v }),
	shape.Stream[getObjectOutput]("Body", nil, func(g *getObjectOutput, v io.ReadCloser) { g.Body = v }),
})

type noSuchBucket struct {
	BucketName *string
}

var noSuchBucketShape = shape.Structure[noSuchBucket]("NoSuchBucket", []*shape.Field{
	shape.String[noSuchBucket]("BucketName", shape.LocationPayload, nil, func(n *noSuchBucket, v *string) { n.BucketName = v }),
})

type XMLSuite struct {
	suite.Suite
}

func (s *XMLSuite) bucketOperation() *Protocol {
	op, err := binding.New(binding.Config{
		RequestURI:          "/{Bucket}?config",
		HTTPMethod:          http.MethodPut,
		OperationIdentifier: "PutBucketConfiguration",
		HasPayloadMembers:   true,
		Input:               bucketConfigShape,
		Output:              bucketConfigShape,
	})
	s.Require().NoError(err)
	p, err := New(op, Config{ErrorShapes: rest.ErrorShapes{"NoSuchBucket": noSuchBucketShape}})
	s.Require().NoError(err)
	return p
}

func (s *XMLSuite) TestRoundTrip() {
	p := s.bucketOperation()
	created := time.Unix(1700000000, 0).UTC()
	in := &bucketConfig{
		Bucket:   ptr.String("my-bucket"),
		Owner:    ptr.String("123456789012"),
		Quota:    ptr.Int64(1024),
		Versions: ptr.Bool(true),
		Created:  &created,
		Tags:     []*tag{{Key: ptr.String("env"), Value: ptr.String("prod")}},
		Regions:  []string{"us-east-1", "eu-west-1"},
		Labels:   map[string]string{"b": "2", "a": "1"},
		Checksum: []byte{0xde, 0xad},
	}

	req, err := p.Marshal(in)
	s.Require().NoError(err)
	s.Equal("/my-bucket?config", req.URI())
	s.Equal("application/xml", req.Headers.Get("Content-Type"))
	body := string(req.Body)
	s.True(strings.HasPrefix(body, `<BucketConfiguration xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`), body)
	s.Contains(body, `<TagSet><Tag><Key>env</Key><Value>prod</Value></Tag></TagSet>`)
	s.Contains(body, `<Region>us-east-1</Region><Region>eu-west-1</Region>`)
	s.Contains(body, `<CreationDate>2023-11-14T22:13:20Z</CreationDate>`)

	again, err := p.Marshal(in)
	s.Require().NoError(err)
	s.Equal(req, again)

	resp := &wire.Response{StatusCode: http.StatusOK, Headers: req.Headers.Clone(), Body: req.Body}
	out, err := p.Unmarshal(resp)
	s.Require().NoError(err)
	in.Bucket = nil
	s.Equal(in, out)
}

func (s *XMLSuite) TestExplicitPayload() {
	op, err := binding.New(binding.Config{
		RequestURI:               "/{Bucket}?tagging",
		HTTPMethod:               http.MethodPut,
		OperationIdentifier:      "PutBucketTagging",
		HasExplicitPayloadMember: true,
		HasPayloadMembers:        true,
		Input:                    taggingInputShape,
	})
	s.Require().NoError(err)
	p, err := New(op, Config{})
	s.Require().NoError(err)

	req, err := p.Marshal(&taggingInput{
		Bucket:  ptr.String("b"),
		Tagging: &tagging{TagSet: []*tag{{Key: ptr.String("k"), Value: ptr.String("v")}}},
	})
	s.Require().NoError(err)
	s.Equal(`<Tagging xmlns="http://s3.amazonaws.com/doc/2006-03-01/"><TagSet><Tag><Key>k</Key><Value>v</Value></Tag></TagSet></Tagging>`, string(req.Body))

	req, err = p.Marshal(&taggingInput{Bucket: ptr.String("b")})
	s.Require().NoError(err)
	s.Empty(req.Body)
	s.False(req.Headers.Has("Content-Type"))

	out, err := p.Unmarshal(&wire.Response{StatusCode: http.StatusNoContent})
	s.NoError(err)
	s.Nil(out)
}

func (s *XMLSuite) TestExplicitPayloadWithBodyMembers() {
	type taggingWithOwner struct {
		Owner   *string
		Tagging *tagging
	}
	inputShape := shape.Structure[taggingWithOwner]("PutTaggingRequest", []*shape.Field{
		shape.String[taggingWithOwner]("Owner", shape.LocationPayload, func(t *taggingWithOwner) *string { return t.Owner }, nil),
		shape.Struct[taggingWithOwner]("Tagging", shape.LocationExplicitPayload, taggingShape,
			func(t *taggingWithOwner) *tagging { return t.Tagging }, nil),
	})
	op, err := binding.New(binding.Config{
		RequestURI:               "/?tagging",
		HTTPMethod:               http.MethodPut,
		OperationIdentifier:      "PutTagging",
		HasExplicitPayloadMember: true,
		HasPayloadMembers:        true,
		Input:                    inputShape,
	})
	s.Require().NoError(err)
	_, err = New(op, Config{})
	s.ErrorIs(err, merr.ErrConfigInvalidBinding)
}

func (s *XMLSuite) TestErrorResponse() {
	p := s.bucketOperation()
	resp := &wire.Response{
		StatusCode: http.StatusNotFound,
		Body: []byte(`<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchBucket</Code><Message>The specified bucket does not exist</Message><BucketName>missing</BucketName><RequestId>4442587FB7D0A2F9</RequestId></Error>`),
	}
	_, err := p.Unmarshal(resp)
	se, ok := merr.AsServiceError(err)
	s.Require().True(ok)
	s.Equal("NoSuchBucket", se.Code)
	s.Equal("The specified bucket does not exist", se.Message)
	s.Equal("4442587FB7D0A2F9", se.RequestID)
	s.Equal(http.StatusNotFound, se.StatusCode)
	modeled, ok := se.Modeled.(*noSuchBucket)
	s.Require().True(ok)
	s.Equal("missing", *modeled.BucketName)
}

func (s *XMLSuite) TestErrorResponseEnvelope() {
	p := s.bucketOperation()
	resp := &wire.Response{
		StatusCode: http.StatusForbidden,
		Body:       []byte(`<ErrorResponse><Error><Type>Sender</Type><Code>AccessDenied</Code><Message>denied</Message></Error><RequestId>r-1</RequestId></ErrorResponse>`),
	}
	_, err := p.Unmarshal(resp)
	se, ok := merr.AsServiceError(err)
	s.Require().True(ok)
	s.Equal("AccessDenied", se.Code)
	s.Equal("denied", se.Message)
	s.Equal("r-1", se.RequestID)
}

func (s *XMLSuite) TestErrorOnSuccessStatus() {
	p := s.bucketOperation()
	resp := &wire.Response{
		StatusCode: http.StatusOK,
		Body:       []byte(`<Error><Code>InternalError</Code><Message>We encountered an internal error.</Message></Error>`),
	}
	_, err := p.Unmarshal(resp)
	se, ok := merr.AsServiceError(err)
	s.Require().True(ok)
	s.Equal("InternalError", se.Code)
	s.True(merr.IsRetryableErr(err))
}

func (s *XMLSuite) TestUnknownElementsIgnored() {
	p := s.bucketOperation()
	out, err := p.Unmarshal(&wire.Response{
		StatusCode: http.StatusOK,
		Body:       []byte(`<BucketConfiguration><Quota>5</Quota><Future><Nested/></Future></BucketConfiguration>`),
	})
	s.Require().NoError(err)
	s.Equal(int64(5), *out.(*bucketConfig).Quota)
	s.Nil(out.(*bucketConfig).Owner)
}

func (s *XMLSuite) TestMalformedBody() {
	p := s.bucketOperation()
	_, err := p.Unmarshal(&wire.Response{StatusCode: http.StatusOK, Body: []byte(`<BucketConfiguration><Quota>`)})
	s.ErrorIs(err, merr.ErrUnmarshalMalformedBody)
}

func (s *XMLSuite) TestStreamingOutput() {
	op, err := binding.New(binding.Config{
		RequestURI:          "/{Bucket}/{Key+}",
		HTTPMethod:          http.MethodGet,
		OperationIdentifier: "GetObject",
		HasStreamingOutput:  true,
		Input:               getObjectInputShape,
		Output:              getObjectOutputShape,
	})
	s.Require().NoError(err)
	p, err := New(op, Config{})
	s.Require().NoError(err)

	req, err := p.Marshal(&getObjectInput{Bucket: ptr.String("b"), Key: ptr.String("dir/file name.txt")})
	s.Require().NoError(err)
	s.Equal("/b/dir/file%20name.txt", req.URI())
	s.Empty(req.Body)

	resp := &wire.Response{StatusCode: http.StatusOK, Stream: io.NopCloser(strings.NewReader("object bytes"))}
	resp.Headers.Set("Content-Length", "12")
	out, err := p.Unmarshal(resp)
	s.Require().NoError(err)
	s.Nil(resp.Stream)

	o := out.(*getObjectOutput)
	s.Equal(int64(12), *o.Length)
	data, err := io.ReadAll(o.Body)
	s.Require().NoError(err)
	s.Equal("object bytes", string(data))
	s.NoError(o.Body.Close())
}

func TestXML(t *testing.T) {
	suite.Run(t, new(XMLSuite))
}

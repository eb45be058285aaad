package binding

import (
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/awswire-go/internal/protocol/shape"
	"github.com/lk2023060901/awswire-go/pkg/util/merr"
)

type getObjectInput struct {
	Bucket *string
	Key    *string
	Range  *string
	Body   io.Reader
	Part   *int64
}

func bucket(loc shape.Location) *shape.Field {
	return shape.String[getObjectInput]("Bucket", loc,
		func(i *getObjectInput) *string { return i.Bucket }, func(i *getObjectInput, v *string) { i.Bucket = v })
}

func key() *shape.Field {
	return shape.String[getObjectInput]("Key", shape.LocationURI,
		func(i *getObjectInput) *string { return i.Key }, func(i *getObjectInput, v *string) { i.Key = v })
}

func rangeHeader() *shape.Field {
	return shape.String[getObjectInput]("Range", shape.LocationHeader,
		func(i *getObjectInput) *string { return i.Range }, func(i *getObjectInput, v *string) { i.Range = v })
}

func body() *shape.Field {
	return shape.Stream[getObjectInput]("Body", func(i *getObjectInput) io.Reader { return i.Body }, nil)
}

func input(fields ...*shape.Field) *shape.Shape {
	return shape.Structure[getObjectInput]("GetObjectInput", fields)
}

type BindingSuite struct {
	suite.Suite
}

func (s *BindingSuite) TestTemplate() {
	op, err := New(Config{
		RequestURI:          "/{Bucket}/{Key+}?uploads&list-type=2",
		HTTPMethod:          "get",
		OperationIdentifier: "GetObject",
		Input:               input(bucket(shape.LocationURI), key(), rangeHeader()),
	})
	s.Require().NoError(err)
	s.Equal(http.MethodGet, op.HTTPMethod())
	s.Equal("/{Bucket}/{Key+}", op.Path())
	s.Equal([]Label{{Name: "Bucket"}, {Name: "Key", Greedy: true}}, op.Labels())
	s.Equal([]QueryLiteral{{Key: "uploads"}, {Key: "list-type", Value: "2", HasValue: true}}, op.LiteralQuery())
	s.False(op.HasPayloadMembers())
	s.Equal("GetObject GET /{Bucket}/{Key+}?uploads&list-type=2", op.String())
}

func (s *BindingSuite) TestDefaults() {
	op, err := New(Config{OperationIdentifier: "ListTables", APIVersion: "2012-08-10"})
	s.Require().NoError(err)
	s.Equal("/", op.RequestURI())
	s.Equal(http.MethodPost, op.HTTPMethod())
	s.Equal("2012-08-10", op.APIVersion())
	s.Nil(op.Input())
	s.Empty(op.Labels())
}

func (s *BindingSuite) TestStreamingInput() {
	op, err := New(Config{
		RequestURI:               "/{Bucket}",
		HTTPMethod:               http.MethodPut,
		OperationIdentifier:      "PutObject",
		HasExplicitPayloadMember: true,
		HasPayloadMembers:        true,
		HasStreamingInput:        true,
		Input:                    input(bucket(shape.LocationURI), body()),
	})
	s.Require().NoError(err)
	s.True(op.HasStreamingInput())
	s.Equal("Body", op.Input().PayloadField().WireName)
}

func (s *BindingSuite) TestRejects() {
	cases := map[string]Config{
		"missing identifier": {RequestURI: "/"},
		"relative uri":       {OperationIdentifier: "Op", RequestURI: "bucket"},
		"unterminated":       {OperationIdentifier: "Op", RequestURI: "/{Bucket"},
		"unbalanced":         {OperationIdentifier: "Op", RequestURI: "/Bucket}"},
		"empty placeholder":  {OperationIdentifier: "Op", RequestURI: "/{}"},
		"duplicate placeholder": {
			OperationIdentifier: "Op", RequestURI: "/{Bucket}/{Bucket}",
			Input: input(bucket(shape.LocationURI)),
		},
		"placeholder in query": {OperationIdentifier: "Op", RequestURI: "/?x={Bucket}"},
		"placeholder without member": {
			OperationIdentifier: "Op", RequestURI: "/{Bucket}/{Key}",
			Input: input(bucket(shape.LocationURI)),
		},
		"member without placeholder": {
			OperationIdentifier: "Op", RequestURI: "/{Bucket}",
			Input: input(bucket(shape.LocationURI), key()),
		},
		"explicit flag without member": {
			OperationIdentifier: "Op", HasExplicitPayloadMember: true, HasPayloadMembers: true,
			Input: input(bucket(shape.LocationPayload)),
		},
		"member without explicit flag": {
			OperationIdentifier: "Op", HasPayloadMembers: true, HasStreamingInput: true,
			Input: input(body()),
		},
		"payload members declared absent": {
			OperationIdentifier: "Op",
			Input:               input(bucket(shape.LocationPayload)),
		},
		"streaming member without flag": {
			OperationIdentifier: "Op", HasExplicitPayloadMember: true, HasPayloadMembers: true,
			Input: input(body()),
		},
		"streaming flag without member": {
			OperationIdentifier: "Op", HasStreamingInput: true,
		},
		"streaming output without member": {
			OperationIdentifier: "Op", HasStreamingOutput: true,
		},
		"status code in input": {
			OperationIdentifier: "Op",
			Input: input(shape.Integer[getObjectInput]("Part", shape.LocationStatusCode,
				func(i *getObjectInput) *int64 { return i.Part }, nil)),
		},
	}
	for desc, cfg := range cases {
		_, err := New(cfg)
		s.ErrorIs(err, merr.ErrConfigInvalidBinding, desc)
		s.True(merr.IsClientError(err), desc)
	}
}

func (s *BindingSuite) TestInvalidShape() {
	_, err := New(Config{
		OperationIdentifier: "Op",
		Input:               input(bucket(shape.LocationEventHeader)),
	})
	s.ErrorIs(err, merr.ErrConfigInvalidBinding)
	s.ErrorIs(err, merr.ErrConfigInvalidField)
}

func TestBinding(t *testing.T) {
	suite.Run(t, new(BindingSuite))
}

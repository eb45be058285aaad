package jsonproto

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	awseventstream "github.com/aws/aws-sdk-go-v2/aws/protocol/eventstream"
	"github.com/aws/smithy-go/ptr"
	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/awswire-go/internal/protocol/binding"
	"github.com/lk2023060901/awswire-go/internal/protocol/eventstream"
	"github.com/lk2023060901/awswire-go/internal/protocol/framer"
	"github.com/lk2023060901/awswire-go/internal/protocol/rest"
	"github.com/lk2023060901/awswire-go/internal/protocol/shape"
	"github.com/lk2023060901/awswire-go/internal/protocol/wire"
	"github.com/lk2023060901/awswire-go/pkg/util/merr"
)

type part struct {
	Label  *string
	Weight *float64
}

type widget struct {
	ID      *string
	Count   *int64
	Ratio   *float64
	Enabled *bool
	Data    []byte
	Created *time.Time
	Updated *time.Time
	Tags    []string
	Attrs   map[string]string
	Parts   []*part
	Owner   *part
	Token   *string
	Since   *time.Time
	Meta    map[string]string
}

var partShape = shape.Structure[part]("Part", []*shape.Field{
	shape.String[part]("label", shape.LocationPayload, func(p *part) *string { return p.Label }, func(p *part, v *string) { p.Label = v }),
	shape.Double[part]("weight", shape.LocationPayload, func(p *part) *float64 { return p.Weight }, func(p *part, v *float64) { p.Weight = v }),
})

var widgetShape = shape.Structure[widget]("Widget", []*shape.Field{
	shape.String[widget]("id", shape.LocationURI, func(w *widget) *string { return w.ID }, nil),
	shape.Integer[widget]("count", shape.LocationPayload, func(w *widget) *int64 { return w.Count }, func(w *widget, v *int64) { w.Count = v }),
	shape.Double[widget]("ratio", shape.LocationPayload, func(w *widget) *float64 { return w.Ratio }, func(w *widget, v *float64) { w.Ratio = v }),
	shape.Boolean[widget]("enabled", shape.LocationPayload, func(w *widget) *bool { return w.Enabled }, func(w *widget, v *bool) { w.Enabled = v }),
	shape.Blob[widget]("data", shape.LocationPayload, func(w *widget) []byte { return w.Data }, func(w *widget, v []byte) { w.Data = v }),
	shape.Timestamp[widget]("created", shape.LocationPayload, func(w *widget) *time.Time { return w.Created }, func(w *widget, v *time.Time) { w.Created = v }),
	shape.Timestamp[widget]("updated", shape.LocationPayload, func(w *widget) *time.Time { return w.Updated }, func(w *widget, v *time.Time) { w.Updated = v },
		shape.WithTimestampFormat(shape.TimestampISO8601)),
	shape.List[widget]("tags", shape.LocationPayload, shape.StringShape, func(w *widget) []string { return w.Tags }, func(w *widget, v []string) { w.Tags = v }),
	shape.Map[widget]("attrs", shape.LocationPayload, shape.StringShape, func(w *widget) map[string]string { return w.Attrs }, func(w *widget, v map[string]string) { w.Attrs = v }),
	shape.List[widget]("parts", shape.LocationPayload, partShape, func(w *widget) []*part { return w.Parts }, func(w *widget, v []*part) { w.Parts = v }),
	shape.Struct[widget]("owner", shape.LocationPayload, partShape, func(w *widget) *part { return w.Owner }, func(w *widget, v *part) { w.Owner = v }),
	shape.String[widget]("X-Token", shape.LocationHeader, func(w *widget) *string { return w.Token }, func(w *widget, v *string) { w.Token = v }),
	shape.Timestamp[widget]("X-Since", shape.LocationHeader, func(w *widget) *time.Time { return w.Since }, func(w *widget, v *time.Time) { w.Since = v }),
	shape.Map[widget]("x-amz-meta-", shape.LocationHeader, shape.StringShape, func(w *widget) map[string]string { return w.Meta }, func(w *widget, v map[string]string) { w.Meta = v }),
})

func sampleWidget() *widget {
	created := time.Unix(1700000000, 0).UTC()
	updated := time.Unix(1700000123, 0).UTC()
	since := time.Unix(1690000000, 0).UTC()
	return &widget{
		ID:      ptr.String("a/b c?#"),
		Count:   ptr.Int64(12),
		Ratio:   ptr.Float64(0.5),
		Enabled: ptr.Bool(true),
		Data:    []byte("hello"),
		Created: &created,
		Updated: &updated,
		Tags:    []string{"t1", "t2"},
		Attrs:   map[string]string{"k": "v"},
		Parts:   []*part{{Label: ptr.String("p1"), Weight: ptr.Float64(1.5)}},
		Owner:   &part{Label: ptr.String("owner")},
		Token:   ptr.String("tok"),
		Since:   &since,
		Meta:    map[string]string{"color": "red"},
	}
}

// 事件流操作的请求与响应类型。
type chatEvent struct {
	Text *string
}

type blobEvent struct {
	Bytes []byte
}

type streamInput struct {
	SessionID *string
	Events    shape.EventStream
}

type streamOutput struct {
	SessionID *string
	Events    shape.EventStream
}

var (
	chatShape = shape.Structure[chatEvent]("ChatEvent", []*shape.Field{
		shape.String[chatEvent]("text", shape.LocationPayload, func(e *chatEvent) *string { return e.Text }, func(e *chatEvent, v *string) { e.Text = v }),
	})
	blobShape = shape.Structure[blobEvent]("BlobEvent", []*shape.Field{
		shape.Blob[blobEvent]("Bytes", shape.LocationEventPayload, func(e *blobEvent) []byte { return e.Bytes }, func(e *blobEvent, v []byte) { e.Bytes = v }),
	})
	chatStream = shape.EventStreamOf("ChatStream",
		shape.Event("Chat", chatShape),
		shape.Event("Blob", blobShape),
	)
	streamInputShape = shape.Structure[streamInput]("EventStreamOperationRequest", []*shape.Field{
		shape.String[streamInput]("sessionId", shape.LocationPayload, func(i *streamInput) *string { return i.SessionID }, nil),
		shape.Events[streamInput]("events", shape.LocationExplicitPayload, chatStream, func(i *streamInput) shape.EventStream { return i.Events }, nil),
	})
	streamOutputShape = shape.Structure[streamOutput]("EventStreamOperationResponse", []*shape.Field{
		shape.String[streamOutput]("sessionId", shape.LocationPayload, nil, func(o *streamOutput, v *string) { o.SessionID = v }),
		shape.Events[streamOutput]("events", shape.LocationExplicitPayload, chatStream, nil, func(o *streamOutput, v shape.EventStream) { o.Events = v }),
	})
)

type validationException struct {
	Message *string
	Field   *string
}

var validationShape = shape.Structure[validationException]("ValidationException", []*shape.Field{
	shape.String[validationException]("message", shape.LocationPayload, nil, func(e *validationException, v *string) { e.Message = v }),
	shape.String[validationException]("fieldName", shape.LocationPayload, nil, func(e *validationException, v *string) { e.Field = v }),
})

type JSONSuite struct {
	suite.Suite
}

func (s *JSONSuite) restWidget() *Protocol {
	op, err := binding.New(binding.Config{
		RequestURI:          "/widgets/{id}",
		HTTPMethod:          http.MethodPut,
		OperationIdentifier: "PutWidget",
		HasPayloadMembers:   true,
		Input:               widgetShape,
		Output:              widgetShape,
	})
	s.Require().NoError(err)
	p, err := New(op, Config{ErrorShapes: rest.ErrorShapes{"ValidationException": validationShape}})
	s.Require().NoError(err)
	return p
}

func (s *JSONSuite) TestRESTRoundTrip() {
	p := s.restWidget()
	in := sampleWidget()

	req, err := p.Marshal(in)
	s.Require().NoError(err)
	s.Equal(http.MethodPut, req.Method)
	s.Equal("/widgets/a%2Fb%20c%3F%23", req.Path)
	s.Equal("application/json", req.Headers.Get("Content-Type"))
	s.Equal("tok", req.Headers.Get("X-Token"))
	s.Equal("Sat, 22 Jul 2023 04:26:40 GMT", req.Headers.Get("X-Since"))
	s.Equal("red", req.Headers.Get("x-amz-meta-color"))
	s.False(req.Headers.Has("X-Amz-Target"))

	resp := &wire.Response{StatusCode: http.StatusOK, Headers: req.Headers.Clone(), Body: req.Body}
	got, err := p.Unmarshal(resp)
	s.Require().NoError(err)

	in.ID = nil
	s.Equal(in, got)
}

func (s *JSONSuite) TestIdempotent() {
	p := s.restWidget()
	in := sampleWidget()
	first, err := p.Marshal(in)
	s.Require().NoError(err)
	second, err := p.Marshal(in)
	s.Require().NoError(err)
	s.Equal(first, second)
}

func (s *JSONSuite) TestUnresolvedURI() {
	p := s.restWidget()
	_, err := p.Marshal(&widget{Count: ptr.Int64(1)})
	s.Require().Error(err)
	s.ErrorIs(err, merr.ErrMarshalUnresolvedURI)
	s.True(strings.HasPrefix(err.Error(), "unable to marshall request to JSON"), err.Error())
	s.True(merr.IsClientError(err))
	s.False(merr.IsRetryableErr(err))
}

func (s *JSONSuite) TestMismatchedInput() {
	p := s.restWidget()
	_, err := p.Marshal(&part{})
	s.ErrorIs(err, merr.ErrMarshalMismatchedObject)
}

func (s *JSONSuite) TestValidationError() {
	p := s.restWidget()
	resp := &wire.Response{
		StatusCode: http.StatusBadRequest,
		Body:       []byte(`{"__type":"ValidationException","message":"bad input","fieldName":"count"}`),
	}
	resp.Headers.Set("X-Amzn-RequestId", "req-1")

	out, err := p.Unmarshal(resp)
	s.Nil(out)
	se, ok := merr.AsServiceError(err)
	s.Require().True(ok)
	s.Equal("ValidationException", se.Code)
	s.Equal("bad input", se.Message)
	s.Equal(http.StatusBadRequest, se.StatusCode)
	s.Equal("req-1", se.RequestID)
	s.False(merr.IsRetryableErr(err))

	modeled, ok := se.Modeled.(*validationException)
	s.Require().True(ok)
	s.Equal("count", *modeled.Field)
}

func (s *JSONSuite) TestErrorTypeHeader() {
	p := s.restWidget()
	resp := &wire.Response{StatusCode: http.StatusServiceUnavailable}
	resp.Headers.Set("X-Amzn-ErrorType", "ServiceUnavailable:http://internal.amazon.com/coral/")
	_, err := p.Unmarshal(resp)
	se, ok := merr.AsServiceError(err)
	s.Require().True(ok)
	s.Equal("ServiceUnavailable", se.Code)
	s.Equal("Service Unavailable", se.Message)
	s.True(merr.IsRetryableErr(err))
}

func (s *JSONSuite) rpcOperation(cfg binding.Config) *Protocol {
	op, err := binding.New(cfg)
	s.Require().NoError(err)
	p, err := New(op, Config{RPC: true, JSONVersion: "1.0", TargetPrefix: "Widgets_20240101"})
	s.Require().NoError(err)
	return p
}

func (s *JSONSuite) TestRPCRequest() {
	p := s.rpcOperation(binding.Config{
		OperationIdentifier: "DescribeWidget",
		HasPayloadMembers:   true,
		Input:               partShape,
		Output:              partShape,
	})

	req, err := p.Marshal(&part{Label: ptr.String("x")})
	s.Require().NoError(err)
	s.Equal(http.MethodPost, req.Method)
	s.Equal("/", req.URI())
	s.Equal("Widgets_20240101.DescribeWidget", req.Headers.Get("X-Amz-Target"))
	s.Equal("application/x-amz-json-1.0", req.Headers.Get("Content-Type"))
	s.JSONEq(`{"label":"x"}`, string(req.Body))

	req, err = p.Marshal(nil)
	s.Require().NoError(err)
	s.Equal("{}", string(req.Body))
}

func (s *JSONSuite) TestRPCErrorOnSuccessStatus() {
	p := s.rpcOperation(binding.Config{
		OperationIdentifier: "DescribeWidget",
		Input:               partShape,
		Output:              partShape,
		HasPayloadMembers:   true,
	})
	resp := &wire.Response{StatusCode: http.StatusOK, Body: []byte(`{"__type":"com.example#ThrottlingException","message":"slow"}`)}
	_, err := p.Unmarshal(resp)
	se, ok := merr.AsServiceError(err)
	s.Require().True(ok)
	s.Equal("ThrottlingException", se.Code)
	s.True(se.IsThrottling())

	resp = &wire.Response{StatusCode: http.StatusOK, Body: []byte(`{"label":"ok","unknown":{"x":1}}`)}
	out, err := p.Unmarshal(resp)
	s.Require().NoError(err)
	s.Equal("ok", *out.(*part).Label)
}

func (s *JSONSuite) TestMalformedBody() {
	p := s.restWidget()
	_, err := p.Unmarshal(&wire.Response{StatusCode: http.StatusOK, Body: []byte(`{"count":`)})
	s.ErrorIs(err, merr.ErrUnmarshalMalformedBody)
	s.Equal(merr.MarshallingError, merr.GetErrorType(err))
}

func (s *JSONSuite) eventStreamOperation() *Protocol {
	return s.rpcOperation(binding.Config{
		RequestURI:               "/2016-03-11/eventStreamOperation",
		HTTPMethod:               http.MethodPost,
		OperationIdentifier:      "EventStreamOperation",
		HasExplicitPayloadMember: true,
		HasPayloadMembers:        true,
		HasStreamingInput:        true,
		HasStreamingOutput:       true,
		Input:                    streamInputShape,
		Output:                   streamOutputShape,
	})
}

func (s *JSONSuite) TestEventStreamOperation() {
	p := s.eventStreamOperation()
	req, err := p.Marshal(&streamInput{Events: shape.SliceEvents(
		&chatEvent{Text: ptr.String("first")},
		&blobEvent{Bytes: []byte{1, 2, 3}},
	)})
	s.Require().NoError(err)
	s.Equal(http.MethodPost, req.Method)
	s.Equal("/2016-03-11/eventStreamOperation", req.Path)
	s.True(req.IsStreaming())
	s.Equal("application/vnd.amazon.eventstream", req.Headers.Get("Content-Type"))

	body, err := io.ReadAll(req.Stream)
	s.Require().NoError(err)
	s.Require().NoError(req.Close())

	fr := framer.NewCRCFramer(0)
	r := bytes.NewReader(body)
	first, err := fr.ReadFrame(r)
	s.Require().NoError(err)
	s.Equal("Chat", first.Headers.Get(":event-type").String())
	s.JSONEq(`{"text":"first"}`, string(first.Payload))

	second, err := fr.ReadFrame(r)
	s.Require().NoError(err)
	s.Equal("Blob", second.Headers.Get(":event-type").String())
	s.Equal([]byte{1, 2, 3}, second.Payload)

	_, err = fr.ReadFrame(r)
	s.Equal(io.EOF, err)
}

func (s *JSONSuite) TestEventStreamInitialRequest() {
	p := s.eventStreamOperation()
	req, err := p.Marshal(&streamInput{
		SessionID: ptr.String("s-1"),
		Events:    shape.SliceEvents(&chatEvent{Text: ptr.String("hi")}),
	})
	s.Require().NoError(err)
	body, err := io.ReadAll(req.Stream)
	s.Require().NoError(err)

	fr := framer.NewCRCFramer(0)
	r := bytes.NewReader(body)
	initial, err := fr.ReadFrame(r)
	s.Require().NoError(err)
	s.Equal("initial-request", initial.Headers.Get(":event-type").String())
	s.JSONEq(`{"sessionId":"s-1"}`, string(initial.Payload))

	chat, err := fr.ReadFrame(r)
	s.Require().NoError(err)
	s.Equal("Chat", chat.Headers.Get(":event-type").String())
}

func (s *JSONSuite) TestEventStreamResponse() {
	p := s.eventStreamOperation()
	codec := eventstream.NewCodec("json", chatStream, p.body)

	initial := framer.Message{Payload: []byte(`{"sessionId":"s-9"}`)}
	initial.Headers.Set(":message-type", awseventstream.StringValue("event"))
	initial.Headers.Set(":event-type", awseventstream.StringValue("initial-response"))
	chat, err := codec.Encode(&chatEvent{Text: ptr.String("reply")})
	s.Require().NoError(err)

	var buf bytes.Buffer
	fr := framer.NewCRCFramer(0)
	s.Require().NoError(fr.WriteFrame(&buf, initial))
	s.Require().NoError(fr.WriteFrame(&buf, chat))

	out, err := p.Unmarshal(&wire.Response{StatusCode: http.StatusOK, Stream: io.NopCloser(&buf)})
	s.Require().NoError(err)
	o := out.(*streamOutput)
	s.Equal("s-9", *o.SessionID)

	ev, err := o.Events.Recv()
	s.Require().NoError(err)
	s.Equal("reply", *ev.(*chatEvent).Text)
	_, err = o.Events.Recv()
	s.Equal(io.EOF, err)
	s.NoError(o.Events.Close())
}

func (s *JSONSuite) TestEventStreamResponseCanceled() {
	p := s.eventStreamOperation()
	codec := eventstream.NewCodec("json", chatStream, p.body)
	chat, err := codec.Encode(&chatEvent{Text: ptr.String("late")})
	s.Require().NoError(err)
	var buf bytes.Buffer
	s.Require().NoError(framer.NewCRCFramer(0).WriteFrame(&buf, chat))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp := (&wire.Response{StatusCode: http.StatusOK, Stream: io.NopCloser(&buf)}).WithContext(ctx)
	_, err = p.Unmarshal(resp)
	s.ErrorIs(err, context.Canceled)
}

func (s *JSONSuite) TestExplicitPayload() {
	type upload struct {
		Name *string
		Body []byte
	}
	uploadShape := shape.Structure[upload]("Upload", []*shape.Field{
		shape.String[upload]("name", shape.LocationURI, func(u *upload) *string { return u.Name }, nil),
		shape.Blob[upload]("Body", shape.LocationExplicitPayload, func(u *upload) []byte { return u.Body }, func(u *upload, v []byte) { u.Body = v }),
	})
	op, err := binding.New(binding.Config{
		RequestURI:               "/files/{name}",
		HTTPMethod:               http.MethodPut,
		OperationIdentifier:      "PutFile",
		HasExplicitPayloadMember: true,
		HasPayloadMembers:        true,
		Input:                    uploadShape,
		Output:                   uploadShape,
	})
	s.Require().NoError(err)
	p, err := New(op, Config{})
	s.Require().NoError(err)

	req, err := p.Marshal(&upload{Name: ptr.String("f"), Body: []byte("raw bytes")})
	s.Require().NoError(err)
	s.Equal([]byte("raw bytes"), req.Body)
	s.Equal("application/octet-stream", req.Headers.Get("Content-Type"))

	req, err = p.Marshal(&upload{Name: ptr.String("f")})
	s.Require().NoError(err)
	s.Empty(req.Body)
	s.False(req.Headers.Has("Content-Type"))

	out, err := p.Unmarshal(&wire.Response{StatusCode: http.StatusOK, Body: []byte("raw bytes")})
	s.Require().NoError(err)
	s.Equal([]byte("raw bytes"), out.(*upload).Body)
}

func (s *JSONSuite) TestExplicitPayloadWithBodyMembers() {
	type upload struct {
		Note *string
		Body []byte
	}
	uploadShape := shape.Structure[upload]("Upload", []*shape.Field{
		shape.String[upload]("note", shape.LocationPayload, func(u *upload) *string { return u.Note }, nil),
		shape.Blob[upload]("Body", shape.LocationExplicitPayload, func(u *upload) []byte { return u.Body }, nil),
	})
	op, err := binding.New(binding.Config{
		RequestURI:               "/files",
		HTTPMethod:               http.MethodPost,
		OperationIdentifier:      "PutFile",
		HasExplicitPayloadMember: true,
		HasPayloadMembers:        true,
		Input:                    uploadShape,
	})
	s.Require().NoError(err)

	_, err = New(op, Config{})
	s.ErrorIs(err, merr.ErrConfigInvalidBinding)
	s.Contains(err.Error(), "note")

	// RPC 风格下这些成员用于 initial-request，允许与显式负载并存。
	_, err = New(op, Config{RPC: true})
	s.NoError(err)
}

func (s *JSONSuite) TestNoPayloadMembers() {
	type getInput struct {
		ID *string
	}
	getShape := shape.Structure[getInput]("GetInput", []*shape.Field{
		shape.String[getInput]("id", shape.LocationURI, func(g *getInput) *string { return g.ID }, nil),
	})
	op, err := binding.New(binding.Config{
		RequestURI:          "/widgets/{id}",
		HTTPMethod:          http.MethodGet,
		OperationIdentifier: "GetWidget",
		Input:               getShape,
		Output:              widgetShape,
	})
	s.Require().NoError(err)
	p, err := New(op, Config{})
	s.Require().NoError(err)

	req, err := p.Marshal(&getInput{ID: ptr.String("w1")})
	s.Require().NoError(err)
	s.Equal(http.MethodGet, req.Method)
	s.Equal("/widgets/w1", req.URI())
	s.Empty(req.Body)
	s.False(req.Headers.Has("Content-Type"))
}

func TestJSON(t *testing.T) {
	suite.Run(t, new(JSONSuite))
}

package util

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/bsv-blockchain/shardledger/settings"
	"github.com/bsv-blockchain/shardledger/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
)

type echoRequest struct {
	Message string `json:"message"`
}

type echoResponse struct {
	Reply string `json:"reply"`
}

type echoServer interface {
	Echo(ctx context.Context, req *echoRequest) (*echoResponse, error)
}

type echoImpl struct{}

func (echoImpl) Echo(_ context.Context, req *echoRequest) (*echoResponse, error) {
	if req.Message == "fail" {
		return nil, status.Error(codes.InvalidArgument, "bad message")
	}

	return &echoResponse{Reply: "echo " + req.Message}, nil
}

var echoServiceDesc = grpc.ServiceDesc{
	ServiceName: "test.Echo",
	HandlerType: (*echoServer)(nil),
	Methods: []grpc.MethodDesc{
		UnaryMethod("test.Echo", "Echo", func(srv interface{}, ctx context.Context, req *echoRequest) (interface{}, error) {
			return srv.(echoServer).Echo(ctx, req)
		}),
	},
}

func TestJSONCodec(t *testing.T) {
	codec := encoding.GetCodec(JSONCodecName)
	require.NotNil(t, codec)

	b, err := codec.Marshal(&echoRequest{Message: "hi"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"hi"}`, string(b))

	out := new(echoRequest)
	require.NoError(t, codec.Unmarshal(b, out))
	assert.Equal(t, "hi", out.Message)
}

func TestGRPCRoundTrip(t *testing.T) {
	tSettings := settings.NewSettings()
	tSettings.GRPC.Prometheus = false

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{})

	go func() {
		_ = ServeGRPC(ctx, &ulogger.TestLogger{}, tSettings, "echo", lis, func(server *grpc.Server) {
			server.RegisterService(&echoServiceDesc, echoImpl{})
		}, ready)
	}()

	<-ready

	conn, err := GetGRPCClient(ctx, lis.Addr().String(), &ConnectionOptions{MaxRetries: 2, RetryBackoff: time.Millisecond}, tSettings)
	require.NoError(t, err)

	defer conn.Close()

	out := new(echoResponse)
	require.NoError(t, conn.Invoke(ctx, FullMethodName("test.Echo", "Echo"), &echoRequest{Message: "hi"}, out))
	assert.Equal(t, "echo hi", out.Reply)

	err = conn.Invoke(ctx, "/test.Echo/Echo", &echoRequest{Message: "fail"}, out)
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGetGRPCClientRequiresAddress(t *testing.T) {
	_, err := GetGRPCClient(context.Background(), "", &ConnectionOptions{}, settings.NewSettings())
	require.Error(t, err)
}

func TestUnaryMethodRunsInterceptor(t *testing.T) {
	var intercepted string

	interceptor := func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		intercepted = info.FullMethod
		return handler(ctx, req)
	}

	desc := echoServiceDesc.Methods[0]

	dec := func(v interface{}) error {
		v.(*echoRequest).Message = "direct"
		return nil
	}

	out, err := desc.Handler(echoImpl{}, context.Background(), dec, interceptor)
	require.NoError(t, err)
	assert.Equal(t, "echo direct", out.(*echoResponse).Reply)
	assert.Equal(t, "/test.Echo/Echo", intercepted)

	out, err = desc.Handler(echoImpl{}, context.Background(), dec, nil)
	require.NoError(t, err)
	assert.Equal(t, "echo direct", out.(*echoResponse).Reply)
}

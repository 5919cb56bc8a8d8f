package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"wifi-survey/agent"
	"wifi-survey/core"
)

// Le service transporte les objets JSON du modèle dans des google.protobuf.Struct :
// Start reçoit les Settings, Status renvoie le ProgressMessage, Result le SurveyResult.
const surveyServiceName = "survey.SurveyService"

type SurveyServiceServer interface {
	Start(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	Stop(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Result(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

func RegisterSurveyServiceServer(s grpc.ServiceRegistrar, srv SurveyServiceServer) {
	s.RegisterService(&surveyServiceDesc, srv)
}

var surveyServiceDesc = grpc.ServiceDesc{
	ServiceName: surveyServiceName,
	HandlerType: (*SurveyServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Start", Handler: unaryHandler("Start", func(srv SurveyServiceServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return srv.Start(ctx, in)
		})},
		{MethodName: "Stop", Handler: unaryHandler("Stop", func(srv SurveyServiceServer, ctx context.Context, in *emptypb.Empty) (any, error) {
			return srv.Stop(ctx, in)
		})},
		{MethodName: "Status", Handler: unaryHandler("Status", func(srv SurveyServiceServer, ctx context.Context, in *emptypb.Empty) (any, error) {
			return srv.Status(ctx, in)
		})},
		{MethodName: "Result", Handler: unaryHandler("Result", func(srv SurveyServiceServer, ctx context.Context, in *emptypb.Empty) (any, error) {
			return srv.Result(ctx, in)
		})},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "survey.proto",
}

// unaryHandler adapte une méthode typée au format attendu par grpc.MethodDesc.
func unaryHandler[In any, PIn interface {
	*In
}](method string, call func(SurveyServiceServer, context.Context, PIn) (any, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + surveyServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PIn(new(In))
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SurveyServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(SurveyServiceServer), ctx, req.(PIn))
		})
	}
}

// surveyServer expose le contrôleur local en gRPC.
type surveyServer struct {
	controller *agent.Controller
	defaults   func(core.Settings) core.Settings
}

func NewSurveyServer(controller *agent.Controller, defaults func(core.Settings) core.Settings) SurveyServiceServer {
	return &surveyServer{controller: controller, defaults: defaults}
}

func (s *surveyServer) Start(_ context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	var settings core.Settings
	if err := fromStruct(in, &settings); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "settings invalides : %v", err)
	}
	if s.defaults != nil {
		settings = s.defaults(settings)
	}
	if err := s.controller.Start(settings); err != nil {
		if errors.Is(err, agent.ErrRunInProgress) {
			return nil, status.Error(codes.FailedPrecondition, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	core.Log.Infof("grpc", "💡 mesure lancée via gRPC")
	return &emptypb.Empty{}, nil
}

func (s *surveyServer) Stop(context.Context, *emptypb.Empty) (*emptypb.Empty, error) {
	s.controller.Stop()
	return &emptypb.Empty{}, nil
}

func (s *surveyServer) Status(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	out, err := toStruct(s.controller.Status())
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *surveyServer) Result(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	out, err := toStruct(s.controller.Result())
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encodage JSON : %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("conversion en Struct : %w", err)
	}
	return out, nil
}

func fromStruct(in *structpb.Struct, v any) error {
	if in == nil {
		return nil
	}
	data, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("conversion depuis Struct : %w", err)
	}
	return json.Unmarshal(data, v)
}

// NewGRPCServer enregistre le service de mesure et le service de santé standard.
func NewGRPCServer(srv SurveyServiceServer) *grpc.Server {
	grpcServer := grpc.NewServer()
	RegisterSurveyServiceServer(grpcServer, srv)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(surveyServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	return grpcServer
}

// ServeGRPC bloque jusqu'à l'annulation de ctx.
func ServeGRPC(ctx context.Context, addr string, grpcServer *grpc.Server) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("écoute gRPC sur %s : %w", addr, err)
	}
	go func() {
		<-ctx.Done()
		grpcServer.GracefulStop()
	}()

	core.Log.Infof("grpc", "✅ serveur gRPC lancé sur %s", addr)
	if err := grpcServer.Serve(listener); err != nil {
		return fmt.Errorf("serveur gRPC : %w", err)
	}
	return nil
}

// SurveyClient : client du SurveyService.
type SurveyClient struct {
	cc grpc.ClientConnInterface
}

func NewSurveyClient(cc grpc.ClientConnInterface) *SurveyClient {
	return &SurveyClient{cc: cc}
}

func (c *SurveyClient) Start(ctx context.Context, settings core.Settings, opts ...grpc.CallOption) error {
	in, err := toStruct(settings)
	if err != nil {
		return err
	}
	return c.cc.Invoke(ctx, "/"+surveyServiceName+"/Start", in, &emptypb.Empty{}, opts...)
}

func (c *SurveyClient) Stop(ctx context.Context, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, "/"+surveyServiceName+"/Stop", &emptypb.Empty{}, &emptypb.Empty{}, opts...)
}

func (c *SurveyClient) Status(ctx context.Context, opts ...grpc.CallOption) (core.ProgressMessage, error) {
	var msg core.ProgressMessage
	out := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, "/"+surveyServiceName+"/Status", &emptypb.Empty{}, out, opts...); err != nil {
		return msg, err
	}
	return msg, fromStruct(out, &msg)
}

func (c *SurveyClient) Result(ctx context.Context, opts ...grpc.CallOption) (core.SurveyResult, error) {
	var result core.SurveyResult
	out := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, "/"+surveyServiceName+"/Result", &emptypb.Empty{}, out, opts...); err != nil {
		return result, err
	}
	return result, fromStruct(out, &result)
}

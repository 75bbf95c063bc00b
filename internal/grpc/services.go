package grpcserver

import (
	"context"

	"google.golang.org/grpc"
)

// Fully-qualified service names.
const (
	authServiceName   = "dispatch.v1.AuthService"
	hqServiceName     = "dispatch.v1.HQService"
	driverServiceName = "dispatch.v1.DriverService"
)

// unaryHandler adapts a typed server method to a grpc.MethodHandler.
func unaryHandler[S any, Req any, Resp any](method string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(S), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(S), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func method[S any, Req any, Resp any](service, name string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler:    unaryHandler(fullMethod(service, name), call),
	}
}

func fullMethod(service, name string) string {
	return "/" + service + "/" + name
}

// AuthServiceServer is the unauthenticated login surface.
type AuthServiceServer interface {
	SignupDriver(context.Context, *SignupDriverRequest) (*SignupDriverResponse, error)
	LoginDriver(context.Context, *LoginRequest) (*LoginResponse, error)
	LoginOperator(context.Context, *LoginRequest) (*LoginResponse, error)
}

var authServiceDesc = grpc.ServiceDesc{
	ServiceName: authServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		method(authServiceName, "SignupDriver", AuthServiceServer.SignupDriver),
		method(authServiceName, "LoginDriver", AuthServiceServer.LoginDriver),
		method(authServiceName, "LoginOperator", AuthServiceServer.LoginOperator),
	},
	Metadata: "dispatch/v1/auth.proto",
}

// HQServiceServer is the dispatcher console surface.
type HQServiceServer interface {
	CreateMission(context.Context, *CreateMissionRequest) (*MissionResponse, error)
	CancelMission(context.Context, *MissionRequest) (*MissionResponse, error)
	ReassignMission(context.Context, *ReassignMissionRequest) (*MissionResponse, error)
	GetMission(context.Context, *MissionRequest) (*MissionResponse, error)
	ListMissions(context.Context, *ListMissionsRequest) (*ListMissionsResponse, error)
	ListAvailableDrivers(context.Context, *ListAvailableDriversRequest) (*ListAvailableDriversResponse, error)
	ListDrivers(context.Context, *Empty) (*DriversResponse, error)
	ResolveClearance(context.Context, *ResolveClearanceRequest) (*Empty, error)
	PendingClearances(context.Context, *Empty) (*DriversResponse, error)
	OfflineAlerts(context.Context, *Empty) (*OfflineAlertsResponse, error)
	SendMessage(context.Context, *SendMessageRequest) (*Empty, error)
	Messages(context.Context, *LimitRequest) (*MessagesResponse, error)
	Activity(context.Context, *LimitRequest) (*ActivityResponse, error)
	Leaderboard(context.Context, *LimitRequest) (*LeaderboardResponse, error)
	MissionLogs(context.Context, *LimitRequest) (*MissionLogsResponse, error)
	Hazards(context.Context, *LimitRequest) (*HazardsResponse, error)
	Trail(context.Context, *TrailRequest) (*TrailResponse, error)
	PreviewRoutes(context.Context, *PreviewRoutesRequest) (*RoutesResponse, error)
}

var hqServiceDesc = grpc.ServiceDesc{
	ServiceName: hqServiceName,
	HandlerType: (*HQServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		method(hqServiceName, "CreateMission", HQServiceServer.CreateMission),
		method(hqServiceName, "CancelMission", HQServiceServer.CancelMission),
		method(hqServiceName, "ReassignMission", HQServiceServer.ReassignMission),
		method(hqServiceName, "GetMission", HQServiceServer.GetMission),
		method(hqServiceName, "ListMissions", HQServiceServer.ListMissions),
		method(hqServiceName, "ListAvailableDrivers", HQServiceServer.ListAvailableDrivers),
		method(hqServiceName, "ListDrivers", HQServiceServer.ListDrivers),
		method(hqServiceName, "ResolveClearance", HQServiceServer.ResolveClearance),
		method(hqServiceName, "PendingClearances", HQServiceServer.PendingClearances),
		method(hqServiceName, "OfflineAlerts", HQServiceServer.OfflineAlerts),
		method(hqServiceName, "SendMessage", HQServiceServer.SendMessage),
		method(hqServiceName, "Messages", HQServiceServer.Messages),
		method(hqServiceName, "Activity", HQServiceServer.Activity),
		method(hqServiceName, "Leaderboard", HQServiceServer.Leaderboard),
		method(hqServiceName, "MissionLogs", HQServiceServer.MissionLogs),
		method(hqServiceName, "Hazards", HQServiceServer.Hazards),
		method(hqServiceName, "Trail", HQServiceServer.Trail),
		method(hqServiceName, "PreviewRoutes", HQServiceServer.PreviewRoutes),
	},
	Metadata: "dispatch/v1/hq.proto",
}

// DriverServiceServer is the field unit surface. The caller's driver id comes
// from the token, never from the request.
type DriverServiceServer interface {
	PollOffer(context.Context, *Empty) (*OfferResponse, error)
	AcceptMission(context.Context, *MissionRequest) (*AcceptResponse, error)
	DeclineMission(context.Context, *DeclineRequest) (*Empty, error)
	CompleteMission(context.Context, *CompleteRequest) (*MissionResponse, error)
	ActiveMission(context.Context, *Empty) (*OfferResponse, error)
	MissionStatus(context.Context, *MissionRequest) (*MissionStatusResponse, error)
	Heartbeat(context.Context, *HeartbeatRequest) (*Empty, error)
	RequestClearance(context.Context, *Empty) (*ClearanceResponse, error)
	ObserveClearance(context.Context, *Empty) (*ClearanceResponse, error)
	Inbox(context.Context, *InboxRequest) (*MessagesResponse, error)
	SendStatus(context.Context, *SendStatusRequest) (*SendStatusResponse, error)
	ReportHazard(context.Context, *ReportHazardRequest) (*HazardResponse, error)
	CompletedCount(context.Context, *Empty) (*CountResponse, error)
}

var driverServiceDesc = grpc.ServiceDesc{
	ServiceName: driverServiceName,
	HandlerType: (*DriverServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		method(driverServiceName, "PollOffer", DriverServiceServer.PollOffer),
		method(driverServiceName, "AcceptMission", DriverServiceServer.AcceptMission),
		method(driverServiceName, "DeclineMission", DriverServiceServer.DeclineMission),
		method(driverServiceName, "CompleteMission", DriverServiceServer.CompleteMission),
		method(driverServiceName, "ActiveMission", DriverServiceServer.ActiveMission),
		method(driverServiceName, "MissionStatus", DriverServiceServer.MissionStatus),
		method(driverServiceName, "Heartbeat", DriverServiceServer.Heartbeat),
		method(driverServiceName, "RequestClearance", DriverServiceServer.RequestClearance),
		method(driverServiceName, "ObserveClearance", DriverServiceServer.ObserveClearance),
		method(driverServiceName, "Inbox", DriverServiceServer.Inbox),
		method(driverServiceName, "SendStatus", DriverServiceServer.SendStatus),
		method(driverServiceName, "ReportHazard", DriverServiceServer.ReportHazard),
		method(driverServiceName, "CompletedCount", DriverServiceServer.CompletedCount),
	},
	Metadata: "dispatch/v1/driver.proto",
}

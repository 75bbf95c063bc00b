package grpcserver

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ambulanceDispatch/internal/auth"
	"ambulanceDispatch/internal/dispatch"
	"ambulanceDispatch/internal/routing"
	"ambulanceDispatch/models"
	"ambulanceDispatch/repository"
)

// HQServer implements HQServiceServer. Every method requires an HQ token
// whose operator still exists.
type HQServer struct {
	Coord     *dispatch.Coordinator
	Operators auth.OperatorLookup
}

var _ HQServiceServer = (*HQServer)(nil)

func (s *HQServer) CreateMission(ctx context.Context, req *CreateMissionRequest) (*MissionResponse, error) {
	p, err := auth.RequireHQ(ctx, s.Operators)
	if err != nil {
		return nil, err
	}
	m, err := s.Coord.CreateMission(ctx, dispatch.NewMission{
		Origin:           req.Origin,
		Destination:      req.Destination,
		Priority:         req.Priority,
		AssignedDriverID: req.AssignedDriverID,
		Notes:            req.Notes,
		Actor:            p.Name,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &MissionResponse{Mission: m}, nil
}

func (s *HQServer) CancelMission(ctx context.Context, req *MissionRequest) (*MissionResponse, error) {
	p, err := auth.RequireHQ(ctx, s.Operators)
	if err != nil {
		return nil, err
	}
	if req.MissionID == "" {
		return nil, status.Error(codes.InvalidArgument, "mission_id is required")
	}
	m, err := s.Coord.CancelMission(ctx, req.MissionID, p.Name)
	if err != nil {
		return nil, toStatus(err)
	}
	return &MissionResponse{Mission: m}, nil
}

func (s *HQServer) ReassignMission(ctx context.Context, req *ReassignMissionRequest) (*MissionResponse, error) {
	p, err := auth.RequireHQ(ctx, s.Operators)
	if err != nil {
		return nil, err
	}
	m, err := s.Coord.ReassignMission(ctx, req.MissionID, req.DriverID, p.Name)
	if err != nil {
		return nil, toStatus(err)
	}
	return &MissionResponse{Mission: m}, nil
}

func (s *HQServer) GetMission(ctx context.Context, req *MissionRequest) (*MissionResponse, error) {
	if _, err := auth.RequireHQ(ctx, s.Operators); err != nil {
		return nil, err
	}
	m, err := s.Coord.Mission(ctx, req.MissionID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &MissionResponse{Mission: m}, nil
}

// ListMissions pages through the mission board, newest first.
func (s *HQServer) ListMissions(ctx context.Context, req *ListMissionsRequest) (*ListMissionsResponse, error) {
	if _, err := auth.RequireHQ(ctx, s.Operators); err != nil {
		return nil, err
	}
	params := repository.ListMissionsParams{PageSize: req.PageSize}
	for _, st := range req.Statuses {
		ms := models.MissionStatus(strings.ToUpper(strings.TrimSpace(st)))
		if !ms.Valid() {
			return nil, status.Errorf(codes.InvalidArgument, "unknown status %q", st)
		}
		params.Statuses = append(params.Statuses, ms)
	}
	if req.DriverID != "" {
		id := req.DriverID
		params.DriverID = &id
	}
	if req.PageToken != "" {
		after, err := decodeCursor(req.PageToken)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid page_token: %v", err)
		}
		params.AfterID = after
	}
	missions, err := s.Coord.ListMissions(ctx, params)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &ListMissionsResponse{Missions: missions}
	size := req.PageSize
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	if len(missions) > 0 && len(missions) >= size {
		resp.NextPageToken = encodeCursor(missions[len(missions)-1].ID)
	}
	return resp, nil
}

func (s *HQServer) ListAvailableDrivers(ctx context.Context, req *ListAvailableDriversRequest) (*ListAvailableDriversResponse, error) {
	if _, err := auth.RequireHQ(ctx, s.Operators); err != nil {
		return nil, err
	}
	drivers, err := s.Coord.ListAvailableDrivers(ctx, req.Origin)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ListAvailableDriversResponse{Drivers: drivers}, nil
}

func (s *HQServer) ListDrivers(ctx context.Context, _ *Empty) (*DriversResponse, error) {
	if _, err := auth.RequireHQ(ctx, s.Operators); err != nil {
		return nil, err
	}
	drivers, err := s.Coord.Drivers(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &DriversResponse{Drivers: drivers}, nil
}

func (s *HQServer) ResolveClearance(ctx context.Context, req *ResolveClearanceRequest) (*Empty, error) {
	p, err := auth.RequireHQ(ctx, s.Operators)
	if err != nil {
		return nil, err
	}
	decision := models.ClearanceStatus(strings.ToUpper(strings.TrimSpace(req.Decision)))
	if err := s.Coord.ResolveClearance(ctx, req.DriverID, decision, p.Name); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *HQServer) PendingClearances(ctx context.Context, _ *Empty) (*DriversResponse, error) {
	if _, err := auth.RequireHQ(ctx, s.Operators); err != nil {
		return nil, err
	}
	drivers, err := s.Coord.PendingClearances(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &DriversResponse{Drivers: drivers}, nil
}

func (s *HQServer) OfflineAlerts(ctx context.Context, _ *Empty) (*OfflineAlertsResponse, error) {
	if _, err := auth.RequireHQ(ctx, s.Operators); err != nil {
		return nil, err
	}
	alerts, err := s.Coord.OfflineAlerts(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &OfflineAlertsResponse{Alerts: alerts}, nil
}

func (s *HQServer) SendMessage(ctx context.Context, req *SendMessageRequest) (*Empty, error) {
	p, err := auth.RequireHQ(ctx, s.Operators)
	if err != nil {
		return nil, err
	}
	if err := s.Coord.SendMessage(ctx, req.DriverID, req.Text, p.Name); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *HQServer) Messages(ctx context.Context, req *LimitRequest) (*MessagesResponse, error) {
	if _, err := auth.RequireHQ(ctx, s.Operators); err != nil {
		return nil, err
	}
	msgs, err := s.Coord.Messages(ctx, req.Limit)
	if err != nil {
		return nil, toStatus(err)
	}
	return &MessagesResponse{Messages: msgs}, nil
}

func (s *HQServer) Activity(ctx context.Context, req *LimitRequest) (*ActivityResponse, error) {
	if _, err := auth.RequireHQ(ctx, s.Operators); err != nil {
		return nil, err
	}
	entries, err := s.Coord.Activity(ctx, req.Limit)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ActivityResponse{Activity: entries}, nil
}

func (s *HQServer) Leaderboard(ctx context.Context, req *LimitRequest) (*LeaderboardResponse, error) {
	if _, err := auth.RequireHQ(ctx, s.Operators); err != nil {
		return nil, err
	}
	scores, err := s.Coord.Leaderboard(ctx, req.Limit)
	if err != nil {
		return nil, toStatus(err)
	}
	return &LeaderboardResponse{Scores: scores}, nil
}

func (s *HQServer) MissionLogs(ctx context.Context, req *LimitRequest) (*MissionLogsResponse, error) {
	if _, err := auth.RequireHQ(ctx, s.Operators); err != nil {
		return nil, err
	}
	logs, err := s.Coord.MissionLogs(ctx, req.Limit)
	if err != nil {
		return nil, toStatus(err)
	}
	return &MissionLogsResponse{Logs: logs}, nil
}

func (s *HQServer) Hazards(ctx context.Context, req *LimitRequest) (*HazardsResponse, error) {
	if _, err := auth.RequireHQ(ctx, s.Operators); err != nil {
		return nil, err
	}
	hazards, err := s.Coord.Hazards(ctx, req.Limit)
	if err != nil {
		return nil, toStatus(err)
	}
	return &HazardsResponse{Hazards: hazards}, nil
}

func (s *HQServer) Trail(ctx context.Context, req *TrailRequest) (*TrailResponse, error) {
	if _, err := auth.RequireHQ(ctx, s.Operators); err != nil {
		return nil, err
	}
	if req.DriverID == "" {
		return nil, status.Error(codes.InvalidArgument, "driver_id is required")
	}
	points, err := s.Coord.Trail(ctx, req.DriverID, req.Limit)
	if err != nil {
		return nil, toStatus(err)
	}
	return &TrailResponse{Points: points}, nil
}

// PreviewRoutes shows HQ the alternatives a driver would get, with ETAs
// adjusted for the requested priority.
func (s *HQServer) PreviewRoutes(ctx context.Context, req *PreviewRoutesRequest) (*RoutesResponse, error) {
	if _, err := auth.RequireHQ(ctx, s.Operators); err != nil {
		return nil, err
	}
	priority, err := models.ParsePriority(req.Priority)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	routes, err := s.Coord.PreviewRoutes(ctx, req.Origin, req.Destination)
	if err != nil {
		return nil, toStatus(err)
	}
	return &RoutesResponse{Routes: routeViews(routes, priority)}, nil
}

func routeViews(routes []routing.Route, p models.Priority) []RouteView {
	out := make([]RouteView, 0, len(routes))
	for _, r := range routes {
		out = append(out, RouteView{Route: r, DisplayETAMinutes: p.DisplayETA(r.ETAMinutes)})
	}
	return out
}

func encodeCursor(id int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte("m:" + strconv.FormatInt(id, 10)))
}

func decodeCursor(token string) (int64, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, fmt.Errorf("base64: %w", err)
	}
	raw, ok := strings.CutPrefix(string(b), "m:")
	if !ok {
		return 0, fmt.Errorf("unexpected cursor format")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("bad cursor id %q", raw)
	}
	return id, nil
}

package grpcserver

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ambulanceDispatch/internal/auth"
	"ambulanceDispatch/internal/dispatch"
	"ambulanceDispatch/models"
)

// DriverServer implements DriverServiceServer for authenticated units.
type DriverServer struct {
	Coord *dispatch.Coordinator
}

var _ DriverServiceServer = (*DriverServer)(nil)

// PollOffer returns the newest mission on offer to the caller, if any.
func (s *DriverServer) PollOffer(ctx context.Context, _ *Empty) (*OfferResponse, error) {
	p, err := auth.RequireDriver(ctx)
	if err != nil {
		return nil, err
	}
	m, err := s.Coord.PollForOffer(ctx, p.Name)
	if err != nil {
		return nil, toStatus(err)
	}
	return &OfferResponse{Mission: m}, nil
}

// AcceptMission claims a mission. Losing the race surfaces as Aborted.
func (s *DriverServer) AcceptMission(ctx context.Context, req *MissionRequest) (*AcceptResponse, error) {
	p, err := auth.RequireDriver(ctx)
	if err != nil {
		return nil, err
	}
	if req.MissionID == "" {
		return nil, status.Error(codes.InvalidArgument, "mission_id is required")
	}
	res, err := s.Coord.Accept(ctx, req.MissionID, p.Name)
	if err != nil {
		return nil, toStatus(err)
	}
	return &AcceptResponse{Mission: res.Mission, Routes: routeViews(res.Routes, res.Mission.Priority)}, nil
}

func (s *DriverServer) DeclineMission(ctx context.Context, req *DeclineRequest) (*Empty, error) {
	p, err := auth.RequireDriver(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Coord.Decline(ctx, req.MissionID, p.Name, req.Reason); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *DriverServer) CompleteMission(ctx context.Context, req *CompleteRequest) (*MissionResponse, error) {
	p, err := auth.RequireDriver(ctx)
	if err != nil {
		return nil, err
	}
	m, err := s.Coord.Complete(ctx, req.MissionID, p.Name, dispatch.CompletionReport{
		DistanceKm:   req.DistanceKm,
		TimeSavedMin: req.TimeSavedMin,
		AvgSpeedKmh:  req.AvgSpeedKmh,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &MissionResponse{Mission: m}, nil
}

// ActiveMission lets a restarted unit resume its accepted mission.
func (s *DriverServer) ActiveMission(ctx context.Context, _ *Empty) (*OfferResponse, error) {
	p, err := auth.RequireDriver(ctx)
	if err != nil {
		return nil, err
	}
	m, err := s.Coord.ActiveMission(ctx, p.Name)
	if err != nil {
		return nil, toStatus(err)
	}
	return &OfferResponse{Mission: m}, nil
}

func (s *DriverServer) MissionStatus(ctx context.Context, req *MissionRequest) (*MissionStatusResponse, error) {
	if _, err := auth.RequireDriver(ctx); err != nil {
		return nil, err
	}
	st, err := s.Coord.MissionStatus(ctx, req.MissionID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &MissionStatusResponse{MissionID: req.MissionID, Status: string(st)}, nil
}

func (s *DriverServer) Heartbeat(ctx context.Context, req *HeartbeatRequest) (*Empty, error) {
	p, err := auth.RequireDriver(ctx)
	if err != nil {
		return nil, err
	}
	err = s.Coord.Heartbeat(ctx, dispatch.Heartbeat{
		DriverID:        p.Name,
		Status:          models.DriverStatus(strings.ToUpper(req.Status)),
		Position:        req.Position,
		Speed:           req.Speed,
		Origin:          req.Origin,
		Destination:     req.Destination,
		ActiveMissionID: req.ActiveMissionID,
		Clearance:       parseClearance(req.ClearanceStatus),
		SelectedRouteID: req.SelectedRouteID,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

// RequestClearance asks HQ for a green wave. A decision that has not been
// observed yet is reported with FailedPrecondition.
func (s *DriverServer) RequestClearance(ctx context.Context, _ *Empty) (*ClearanceResponse, error) {
	p, err := auth.RequireDriver(ctx)
	if err != nil {
		return nil, err
	}
	st, err := s.Coord.RequestClearance(ctx, p.Name)
	if err != nil {
		if errors.Is(err, dispatch.ErrInvalidTransition) {
			return nil, status.Errorf(codes.FailedPrecondition, "clearance already %s; observe it first", st)
		}
		return nil, toStatus(err)
	}
	return &ClearanceResponse{Status: st.String()}, nil
}

// ObserveClearance returns the current clearance state, consuming a decision.
func (s *DriverServer) ObserveClearance(ctx context.Context, _ *Empty) (*ClearanceResponse, error) {
	p, err := auth.RequireDriver(ctx)
	if err != nil {
		return nil, err
	}
	st, err := s.Coord.ObserveClearance(ctx, p.Name)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ClearanceResponse{Status: st.String()}, nil
}

func (s *DriverServer) Inbox(ctx context.Context, req *InboxRequest) (*MessagesResponse, error) {
	p, err := auth.RequireDriver(ctx)
	if err != nil {
		return nil, err
	}
	msgs, err := s.Coord.Inbox(ctx, p.Name, req.AfterID, req.Limit)
	if err != nil {
		return nil, toStatus(err)
	}
	return &MessagesResponse{Messages: msgs}, nil
}

func (s *DriverServer) SendStatus(ctx context.Context, req *SendStatusRequest) (*SendStatusResponse, error) {
	p, err := auth.RequireDriver(ctx)
	if err != nil {
		return nil, err
	}
	kind := models.MessageKind(strings.ToUpper(strings.TrimSpace(req.Kind)))
	id, err := s.Coord.SendStatus(ctx, p.Name, kind, req.Text)
	if err != nil {
		return nil, toStatus(err)
	}
	return &SendStatusResponse{ID: id}, nil
}

func (s *DriverServer) ReportHazard(ctx context.Context, req *ReportHazardRequest) (*HazardResponse, error) {
	p, err := auth.RequireDriver(ctx)
	if err != nil {
		return nil, err
	}
	h, err := s.Coord.ReportHazard(ctx, p.Name, req.Position, req.Kind)
	if err != nil {
		return nil, toStatus(err)
	}
	return &HazardResponse{Hazard: h}, nil
}

func (s *DriverServer) CompletedCount(ctx context.Context, _ *Empty) (*CountResponse, error) {
	p, err := auth.RequireDriver(ctx)
	if err != nil {
		return nil, err
	}
	n, err := s.Coord.CompletedCount(ctx, p.Name)
	if err != nil {
		return nil, toStatus(err)
	}
	return &CountResponse{Count: int64(n)}, nil
}

// parseClearance accepts the wire spelling, where NONE is the empty state.
func parseClearance(s string) models.ClearanceStatus {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "NONE" {
		return models.ClearanceNone
	}
	return models.ClearanceStatus(s)
}

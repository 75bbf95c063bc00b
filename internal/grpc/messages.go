package grpcserver

import (
	"ambulanceDispatch/internal/geo"
	"ambulanceDispatch/internal/routing"
	"ambulanceDispatch/models"
)

// Auth

type SignupDriverRequest struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	FullName     string `json:"full_name"`
	Phone        string `json:"phone,omitempty"`
	VehicleID    string `json:"vehicle_id,omitempty"`
	BaseLocation string `json:"base_location,omitempty"`
}

type SignupDriverResponse struct {
	Account *models.DriverAccount `json:"account"`
}

type LoginRequest struct {
	Login    string `json:"login"` // username, or unit id for drivers
	Password string `json:"password"`
}

type LoginResponse struct {
	Token       string `json:"token"`
	Principal   string `json:"principal"`
	DisplayName string `json:"display_name"`
}

// Shared

type MissionRequest struct {
	MissionID string `json:"mission_id"`
}

type MissionResponse struct {
	Mission *models.Mission `json:"mission"`
}

type LimitRequest struct {
	Limit int `json:"limit,omitempty"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}

type Empty struct{}

// RouteView is a route alternative with the ETA adjusted for the mission priority.
type RouteView struct {
	routing.Route
	DisplayETAMinutes int `json:"display_eta_minutes"`
}

// HQ

type CreateMissionRequest struct {
	Origin           string `json:"origin"`
	Destination      string `json:"destination"`
	Priority         string `json:"priority,omitempty"`
	AssignedDriverID string `json:"assigned_driver_id,omitempty"`
	Notes            string `json:"notes,omitempty"`
}

type ReassignMissionRequest struct {
	MissionID string `json:"mission_id"`
	DriverID  string `json:"driver_id,omitempty"` // empty unpins
}

type ResolveClearanceRequest struct {
	DriverID string `json:"driver_id"`
	Decision string `json:"decision"` // GRANTED or DENIED
}

type ListAvailableDriversRequest struct {
	Origin string `json:"origin,omitempty"`
}

type ListAvailableDriversResponse struct {
	Drivers []models.AvailableDriver `json:"drivers"`
}

type ListMissionsRequest struct {
	Statuses  []string `json:"statuses,omitempty"`
	DriverID  string   `json:"driver_id,omitempty"`
	PageSize  int      `json:"page_size,omitempty"`
	PageToken string   `json:"page_token,omitempty"`
}

type ListMissionsResponse struct {
	Missions      []models.Mission `json:"missions"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

type DriversResponse struct {
	Drivers []models.Driver `json:"drivers"`
}

type OfflineAlertsResponse struct {
	Alerts []models.OfflineAlert `json:"alerts"`
}

type SendMessageRequest struct {
	DriverID string `json:"driver_id,omitempty"` // empty or ALL broadcasts
	Text     string `json:"text"`
}

type MessagesResponse struct {
	Messages []models.Message `json:"messages"`
}

type ActivityResponse struct {
	Activity []models.Activity `json:"activity"`
}

type LeaderboardResponse struct {
	Scores []models.DriverScore `json:"scores"`
}

type HazardsResponse struct {
	Hazards []models.Hazard `json:"hazards"`
}

type TrailRequest struct {
	DriverID string `json:"driver_id"`
	Limit    int    `json:"limit,omitempty"`
}

type TrailResponse struct {
	Points []models.TrailPoint `json:"points"`
}

type PreviewRoutesRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Priority    string `json:"priority,omitempty"`
}

type RoutesResponse struct {
	Routes []RouteView `json:"routes"`
}

type MissionLogsResponse struct {
	Logs []models.MissionLog `json:"logs"`
}

// Driver

type OfferResponse struct {
	Mission *models.Mission `json:"mission,omitempty"` // nil when nothing is on offer
}

type AcceptResponse struct {
	Mission *models.Mission `json:"mission"`
	Routes  []RouteView     `json:"routes,omitempty"`
}

type DeclineRequest struct {
	MissionID string `json:"mission_id"`
	Reason    string `json:"reason,omitempty"`
}

type CompleteRequest struct {
	MissionID    string  `json:"mission_id"`
	DistanceKm   float64 `json:"distance_km,omitempty"`
	TimeSavedMin float64 `json:"time_saved_min,omitempty"`
	AvgSpeedKmh  float64 `json:"avg_speed_kmh,omitempty"`
}

type HeartbeatRequest struct {
	Status          string     `json:"status"`
	Position        *geo.Point `json:"position,omitempty"`
	Speed           float64    `json:"speed,omitempty"`
	Origin          string     `json:"origin,omitempty"`
	Destination     string     `json:"destination,omitempty"`
	ActiveMissionID string     `json:"active_mission_id,omitempty"`
	ClearanceStatus string     `json:"clearance_status,omitempty"`
	SelectedRouteID *int       `json:"selected_route_id,omitempty"`
}

type ClearanceResponse struct {
	Status string `json:"status"` // NONE, PENDING, GRANTED or DENIED
}

type MissionStatusResponse struct {
	MissionID string `json:"mission_id"`
	Status    string `json:"status"`
}

type InboxRequest struct {
	AfterID int64 `json:"after_id,omitempty"`
	Limit   int   `json:"limit,omitempty"`
}

type SendStatusRequest struct {
	Kind string `json:"kind,omitempty"` // STATUS, CRITICAL, WARNING or REQUEST
	Text string `json:"text"`
}

type SendStatusResponse struct {
	ID int64 `json:"id"`
}

type ReportHazardRequest struct {
	Position geo.Point `json:"position"`
	Kind     string    `json:"kind"`
}

type HazardResponse struct {
	Hazard *models.Hazard `json:"hazard"`
}

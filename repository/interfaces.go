package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"ambulanceDispatch/models"
)

// MissionRepositoryI defines operations on missions.
type MissionRepositoryI interface {
	Create(ctx context.Context, m *models.Mission) (*models.Mission, error)
	Exists(ctx context.Context, missionID string) (bool, error)
	GetByMissionID(ctx context.Context, missionID string) (*models.Mission, error)
	Accept(ctx context.Context, missionID, driverID string, at, cutoff time.Time) (bool, error)
	Complete(ctx context.Context, missionID, driverID string, at time.Time) (bool, error)
	Cancel(ctx context.Context, missionID string, at time.Time) (*string, bool, error)
	Reassign(ctx context.Context, missionID string, from, to *string) (bool, error)
	Expire(ctx context.Context, cutoff time.Time) (int64, error)
	FindOffer(ctx context.Context, driverID string, cutoff time.Time) (*models.Mission, error)
	ActiveForDriver(ctx context.Context, driverID string) (*models.Mission, error)
	List(ctx context.Context, p ListMissionsParams) ([]models.Mission, error)
	CompletedCount(ctx context.Context, driverID string) (int, error)
	Leaderboard(ctx context.Context, limit int) ([]models.DriverScore, error)
	OfflineAlerts(ctx context.Context, cutoff time.Time) ([]models.OfflineAlert, error)
	RecordLog(ctx context.Context, l *models.MissionLog) error
	Logs(ctx context.Context, limit int) ([]models.MissionLog, error)
}

// DeclineRepositoryI defines operations on the decline ledger.
type DeclineRepositoryI interface {
	Record(ctx context.Context, d models.MissionDecline) (bool, error)
	IsDeclined(ctx context.Context, missionID, driverID string) (bool, error)
	ListForMission(ctx context.Context, missionID string) ([]models.MissionDecline, error)
}

// DriverRepositoryI defines operations on driver telemetry rows and clearance state.
type DriverRepositoryI interface {
	Upsert(ctx context.Context, d *models.Driver) error
	GetByID(ctx context.Context, driverID string) (*models.Driver, error)
	List(ctx context.Context) ([]models.Driver, error)
	ListAvailable(ctx context.Context, cutoff time.Time) ([]models.AvailableDriver, error)
	SetAssignment(ctx context.Context, driverID string, status models.DriverStatus, missionID *string, origin, destination string) (bool, error)
	RequestClearance(ctx context.Context, driverID string, at time.Time) (bool, error)
	ResolveClearance(ctx context.Context, driverID string, decision models.ClearanceStatus, at time.Time) (bool, error)
	ConsumeClearance(ctx context.Context, driverID string, seen models.ClearanceStatus, at time.Time) (bool, error)
	PendingClearances(ctx context.Context) ([]models.Driver, error)
}

// AccountRepositoryI defines operations on driver accounts and operators.
type AccountRepositoryI interface {
	CreateDriver(ctx context.Context, a *models.DriverAccount) error
	GetDriverByID(ctx context.Context, driverID string) (*models.DriverAccount, error)
	GetDriverByUsername(ctx context.Context, username string) (*models.DriverAccount, error)
	DriverIDExists(ctx context.Context, driverID string) (bool, error)
	UpdateDriverDigest(ctx context.Context, driverID, digest string) error
	CreateOperator(ctx context.Context, o *models.Operator) error
	GetOperator(ctx context.Context, username string) (*models.Operator, error)
	UpdateOperatorDigest(ctx context.Context, username, digest string) error
}

// TelemetryRepositoryI defines operations on the ghost trail and hazards.
type TelemetryRepositoryI interface {
	AppendTrail(ctx context.Context, p models.TrailPoint, minGap time.Duration) (bool, error)
	Trail(ctx context.Context, driverID string, limit int) ([]models.TrailPoint, error)
	PruneTrail(ctx context.Context, cutoff time.Time) (int64, error)
	ReportHazard(ctx context.Context, h models.Hazard) (*models.Hazard, error)
	Hazards(ctx context.Context, limit int) ([]models.Hazard, error)
}

// MessageRepositoryI defines operations on the communication and activity logs.
type MessageRepositoryI interface {
	Append(ctx context.Context, m models.Message) (int64, error)
	Inbox(ctx context.Context, driverID string, afterID int64, limit int) ([]models.Message, error)
	Recent(ctx context.Context, limit int) ([]models.Message, error)
	LogActivity(ctx context.Context, a models.Activity) error
	Activity(ctx context.Context, limit int) ([]models.Activity, error)
}

var (
	_ MissionRepositoryI   = (*MissionRepository)(nil)
	_ DeclineRepositoryI   = (*DeclineRepository)(nil)
	_ DriverRepositoryI    = (*DriverRepository)(nil)
	_ AccountRepositoryI   = (*AccountRepository)(nil)
	_ TelemetryRepositoryI = (*TelemetryRepository)(nil)
	_ MessageRepositoryI   = (*MessageRepository)(nil)
)

// Set bundles every repository over one store handle.
type Set struct {
	Missions  *MissionRepository
	Declines  *DeclineRepository
	Drivers   *DriverRepository
	Accounts  *AccountRepository
	Telemetry *TelemetryRepository
	Messages  *MessageRepository
}

// NewSet builds all repositories over db.
func NewSet(db *sqlx.DB) *Set {
	return &Set{
		Missions:  NewMissionRepository(db),
		Declines:  NewDeclineRepository(db),
		Drivers:   NewDriverRepository(db),
		Accounts:  NewAccountRepository(db),
		Telemetry: NewTelemetryRepository(db),
		Messages:  NewMessageRepository(db),
	}
}

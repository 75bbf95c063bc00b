package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ambulanceDispatch/internal/auth"
	"ambulanceDispatch/internal/dispatch"
	"ambulanceDispatch/internal/geo"
	"ambulanceDispatch/internal/logger"
	"ambulanceDispatch/internal/testutil"
	"ambulanceDispatch/repository"
)

const (
	testSecret = "s3cr3t"
	lisie      = "Lisie Hospital (Kaloor)"
	pvs        = "PVS Memorial (Kaloor)"
)

type testDeps struct {
	hq       *HQServer
	drivers  *DriverServer
	auth     *AuthServer
	accounts *dispatch.AccountService
	clock    *testutil.Clock
	deps     Deps
}

// newTestDeps opens an in-memory DB, seeds the demo accounts and wires the servers directly (no network).
func newTestDeps(t *testing.T, name string) *testDeps {
	t.Helper()
	d := testutil.OpenInMemoryDB(t, name)
	repos := repository.NewSet(d)
	clock := testutil.NewClock()
	coord := dispatch.New(dispatch.StoresFrom(repos), dispatch.Options{Now: clock.Now, Log: logger.Discard()})
	// No TokenTTL: issued tokens carry no expiry, so the fake clock never makes them stale.
	accounts := dispatch.NewAccountService(repos.Accounts, dispatch.AccountOptions{Secret: testSecret, Now: clock.Now, Log: logger.Discard()})
	if err := accounts.SeedDefaults(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	deps := Deps{Coord: coord, Accounts: accounts, Operators: repos.Accounts}
	return &testDeps{
		hq:       &HQServer{Coord: coord, Operators: repos.Accounts},
		drivers:  &DriverServer{Coord: coord},
		auth:     &AuthServer{Accounts: accounts},
		accounts: accounts,
		clock:    clock,
		deps:     deps,
	}
}

func newPrincipalCtx(name, kind string) context.Context {
	return auth.WithPrincipal(context.Background(), &auth.Principal{Name: name, Kind: kind})
}

func hqCtx() context.Context { return newPrincipalCtx(dispatch.DefaultOperator, auth.KindHQ) }

func driverCtx(id string) context.Context { return newPrincipalCtx(id, auth.KindDriver) }

func (d *testDeps) signup(t *testing.T, username string) string {
	t.Helper()
	resp, err := d.auth.SignupDriver(context.Background(), &SignupDriverRequest{
		Username: username, Password: "pw-" + username, FullName: "Driver " + username,
	})
	if err != nil {
		t.Fatalf("signup %s: %v", username, err)
	}
	return resp.Account.DriverID
}

func (d *testDeps) beatAt(t *testing.T, driverID, location string) {
	t.Helper()
	p, ok := geo.DefaultDirectory().Lookup(location)
	if !ok {
		t.Fatalf("unknown location %s", location)
	}
	if _, err := d.drivers.Heartbeat(driverCtx(driverID), &HeartbeatRequest{Status: "idle", Position: &p}); err != nil {
		t.Fatalf("heartbeat %s: %v", driverID, err)
	}
}

func TestMissionFlowThroughServers(t *testing.T) {
	d := newTestDeps(t, "grpc_flow")
	other := d.signup(t, "ravi")
	d.beatAt(t, dispatch.DefaultDriverID, lisie)
	d.beatAt(t, other, pvs)

	created, err := d.hq.CreateMission(hqCtx(), &CreateMissionRequest{Origin: lisie, Destination: pvs, Priority: "critical"})
	if err != nil {
		t.Fatalf("CreateMission: %v", err)
	}
	id := created.Mission.MissionID

	offer, err := d.drivers.PollOffer(driverCtx(dispatch.DefaultDriverID), &Empty{})
	if err != nil || offer.Mission == nil || offer.Mission.MissionID != id {
		t.Fatalf("PollOffer = %+v, %v", offer, err)
	}

	acc, err := d.drivers.AcceptMission(driverCtx(dispatch.DefaultDriverID), &MissionRequest{MissionID: id})
	if err != nil {
		t.Fatalf("AcceptMission: %v", err)
	}
	if len(acc.Routes) == 0 {
		t.Fatalf("expected at least the direct route")
	}
	r := acc.Routes[0]
	if r.DisplayETAMinutes != int(r.ETAMinutes*0.65) {
		t.Fatalf("display eta %d not adjusted for CRITICAL (raw %.2f)", r.DisplayETAMinutes, r.ETAMinutes)
	}

	if _, err := d.drivers.AcceptMission(driverCtx(other), &MissionRequest{MissionID: id}); status.Code(err) != codes.Aborted {
		t.Fatalf("second accept: expected Aborted, got %v", err)
	}

	st, err := d.drivers.MissionStatus(driverCtx(dispatch.DefaultDriverID), &MissionRequest{MissionID: id})
	if err != nil || st.Status != "ACCEPTED" {
		t.Fatalf("MissionStatus = %+v, %v", st, err)
	}

	done, err := d.drivers.CompleteMission(driverCtx(dispatch.DefaultDriverID), &CompleteRequest{MissionID: id, AvgSpeedKmh: 42})
	if err != nil || done.Mission.Status != "COMPLETED" {
		t.Fatalf("CompleteMission = %+v, %v", done, err)
	}
	n, err := d.drivers.CompletedCount(driverCtx(dispatch.DefaultDriverID), &Empty{})
	if err != nil || n.Count != 1 {
		t.Fatalf("CompletedCount = %+v, %v", n, err)
	}
	board, err := d.hq.Leaderboard(hqCtx(), &LimitRequest{Limit: 5})
	if err != nil || len(board.Scores) == 0 || board.Scores[0].DriverID != dispatch.DefaultDriverID {
		t.Fatalf("Leaderboard = %+v, %v", board, err)
	}
	logs, err := d.hq.MissionLogs(hqCtx(), &LimitRequest{})
	if err != nil || len(logs.Logs) != 1 {
		t.Fatalf("MissionLogs = %+v, %v", logs, err)
	}
}

func TestHQMethodsRequireOperator(t *testing.T) {
	d := newTestDeps(t, "grpc_hq_perm")

	if _, err := d.hq.CreateMission(driverCtx(dispatch.DefaultDriverID), &CreateMissionRequest{Origin: lisie, Destination: pvs}); status.Code(err) != codes.PermissionDenied {
		t.Fatalf("driver creating mission: expected PermissionDenied, got %v", err)
	}
	ghost := newPrincipalCtx("GHOST", auth.KindHQ)
	if _, err := d.hq.ListDrivers(ghost, &Empty{}); status.Code(err) != codes.PermissionDenied {
		t.Fatalf("unknown operator: expected PermissionDenied, got %v", err)
	}
	if _, err := d.hq.ListDrivers(context.Background(), &Empty{}); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("no principal: expected Unauthenticated, got %v", err)
	}
	if _, err := d.drivers.PollOffer(hqCtx(), &Empty{}); status.Code(err) != codes.PermissionDenied {
		t.Fatalf("hq polling offers: expected PermissionDenied, got %v", err)
	}
}

func TestCreateMissionValidation(t *testing.T) {
	d := newTestDeps(t, "grpc_validation")
	cases := []*CreateMissionRequest{
		{Origin: "", Destination: pvs},
		{Origin: lisie, Destination: lisie},
		{Origin: lisie, Destination: pvs, Priority: "URGENT"},
		{Origin: lisie, Destination: pvs, AssignedDriverID: "UNIT-999"},
	}
	for i, req := range cases {
		if _, err := d.hq.CreateMission(hqCtx(), req); status.Code(err) != codes.InvalidArgument {
			t.Fatalf("case %d: expected InvalidArgument, got %v", i, err)
		}
	}
}

func TestListMissionsPaginationChaining(t *testing.T) {
	d := newTestDeps(t, "grpc_paging")
	want := map[string]bool{}
	for i := 0; i < 3; i++ {
		resp, err := d.hq.CreateMission(hqCtx(), &CreateMissionRequest{Origin: lisie, Destination: pvs, Notes: fmt.Sprintf("n%d", i)})
		if err != nil {
			t.Fatalf("CreateMission[%d]: %v", i, err)
		}
		want[resp.Mission.MissionID] = true
	}

	seen := map[string]bool{}
	token := ""
	for page := 0; page < 5; page++ {
		resp, err := d.hq.ListMissions(hqCtx(), &ListMissionsRequest{PageSize: 1, PageToken: token, Statuses: []string{"dispatched"}})
		if err != nil {
			t.Fatalf("ListMissions page=%d: %v", page, err)
		}
		for _, m := range resp.Missions {
			if seen[m.MissionID] {
				t.Fatalf("mission %s returned twice", m.MissionID)
			}
			seen[m.MissionID] = true
		}
		if resp.NextPageToken == "" {
			break
		}
		token = resp.NextPageToken
	}
	if len(seen) != len(want) {
		t.Fatalf("paged %d missions, want %d", len(seen), len(want))
	}

	if _, err := d.hq.ListMissions(hqCtx(), &ListMissionsRequest{PageToken: "%%%"}); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("bad token: expected InvalidArgument, got %v", err)
	}
	if _, err := d.hq.ListMissions(hqCtx(), &ListMissionsRequest{Statuses: []string{"LOST"}}); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("bad status: expected InvalidArgument, got %v", err)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	id, err := decodeCursor(encodeCursor(42))
	if err != nil || id != 42 {
		t.Fatalf("decode = %d, %v", id, err)
	}
	if _, err := decodeCursor(encodeCursor(0)); err == nil {
		t.Fatalf("expected error for zero id")
	}
}

func TestClearanceHandshakeThroughServers(t *testing.T) {
	d := newTestDeps(t, "grpc_clearance")
	unit := driverCtx(dispatch.DefaultDriverID)
	d.beatAt(t, dispatch.DefaultDriverID, lisie)

	r, err := d.drivers.RequestClearance(unit, &Empty{})
	if err != nil || r.Status != "PENDING" {
		t.Fatalf("RequestClearance = %+v, %v", r, err)
	}
	if r, err = d.drivers.RequestClearance(unit, &Empty{}); err != nil || r.Status != "PENDING" {
		t.Fatalf("repeat RequestClearance = %+v, %v", r, err)
	}
	pending, err := d.hq.PendingClearances(hqCtx(), &Empty{})
	if err != nil || len(pending.Drivers) != 1 {
		t.Fatalf("PendingClearances = %+v, %v", pending, err)
	}
	if _, err := d.hq.ResolveClearance(hqCtx(), &ResolveClearanceRequest{DriverID: dispatch.DefaultDriverID, Decision: "maybe"}); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("bad decision: expected InvalidArgument, got %v", err)
	}
	if _, err := d.hq.ResolveClearance(hqCtx(), &ResolveClearanceRequest{DriverID: dispatch.DefaultDriverID, Decision: "granted"}); err != nil {
		t.Fatalf("ResolveClearance: %v", err)
	}
	if _, err := d.drivers.RequestClearance(unit, &Empty{}); status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("request over unobserved decision: expected FailedPrecondition, got %v", err)
	}

	obs, err := d.drivers.ObserveClearance(unit, &Empty{})
	if err != nil || obs.Status != "GRANTED" {
		t.Fatalf("ObserveClearance = %+v, %v", obs, err)
	}
	if obs, err = d.drivers.ObserveClearance(unit, &Empty{}); err != nil || obs.Status != "NONE" {
		t.Fatalf("second ObserveClearance = %+v, %v", obs, err)
	}

	inbox, err := d.drivers.Inbox(unit, &InboxRequest{})
	if err != nil {
		t.Fatalf("Inbox: %v", err)
	}
	found := false
	for _, m := range inbox.Messages {
		if m.Kind == "HQ_GREENWAVE" {
			found = true
		}
	}
	if !found {
		t.Fatalf("green wave notification missing from inbox: %+v", inbox.Messages)
	}
}

func TestDriverCommsAndHazards(t *testing.T) {
	d := newTestDeps(t, "grpc_comms")
	unit := driverCtx(dispatch.DefaultDriverID)

	sent, err := d.drivers.SendStatus(unit, &SendStatusRequest{Text: "fuel low"})
	if err != nil || sent.ID == 0 {
		t.Fatalf("SendStatus = %+v, %v", sent, err)
	}
	if _, err := d.drivers.SendStatus(unit, &SendStatusRequest{Kind: "HQ_BROADCAST", Text: "spoof"}); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("driver sending hq kind: expected InvalidArgument, got %v", err)
	}
	if _, err := d.hq.SendMessage(hqCtx(), &SendMessageRequest{Text: "all units stand by"}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	msgs, err := d.hq.Messages(hqCtx(), &LimitRequest{Limit: 10})
	if err != nil || len(msgs.Messages) < 2 {
		t.Fatalf("Messages = %+v, %v", msgs, err)
	}

	h, err := d.drivers.ReportHazard(unit, &ReportHazardRequest{Position: geo.Point{Lat: 9.99, Lon: 76.29}, Kind: "flood"})
	if err != nil || h.Hazard.Kind != "FLOOD" {
		t.Fatalf("ReportHazard = %+v, %v", h, err)
	}
	hz, err := d.hq.Hazards(hqCtx(), &LimitRequest{})
	if err != nil || len(hz.Hazards) != 1 {
		t.Fatalf("Hazards = %+v, %v", hz, err)
	}
}

func TestLoginThroughAuthServer(t *testing.T) {
	d := newTestDeps(t, "grpc_login")

	if _, err := d.auth.LoginOperator(context.Background(), &LoginRequest{Login: dispatch.DefaultOperator, Password: "wrong"}); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("wrong password: expected Unauthenticated, got %v", err)
	}
	if _, err := d.auth.LoginDriver(context.Background(), &LoginRequest{Login: ""}); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("empty login: expected InvalidArgument, got %v", err)
	}
	resp, err := d.auth.LoginDriver(context.Background(), &LoginRequest{Login: dispatch.DefaultDriverID, Password: "TITAN-DRIVER"})
	if err != nil {
		t.Fatalf("LoginDriver: %v", err)
	}
	if resp.Principal != dispatch.DefaultDriverID || resp.Token == "" {
		t.Fatalf("unexpected login response %+v", resp)
	}
	if _, err := d.auth.SignupDriver(context.Background(), &SignupDriverRequest{Username: "x"}); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("incomplete signup: expected InvalidArgument, got %v", err)
	}
}

func TestToStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{fmt.Errorf("accept: %w", dispatch.ErrMissionAlreadyTaken), codes.Aborted},
		{dispatch.ErrConflict, codes.Aborted},
		{dispatch.ErrDuplicateMissionID, codes.AlreadyExists},
		{&dispatch.TransitionError{Op: "complete", MissionID: "CMD-1", From: "CANCELLED"}, codes.FailedPrecondition},
		{dispatch.ErrDriverBusy, codes.FailedPrecondition},
		{fmt.Errorf("list: %w", dispatch.ErrStoreUnavailable), codes.Unavailable},
		{dispatch.ErrNotFound, codes.NotFound},
		{dispatch.ErrInvalidInput, codes.InvalidArgument},
		{auth.ErrInvalidCredentials, codes.Unauthenticated},
		{status.Error(codes.PermissionDenied, "no"), codes.PermissionDenied},
		{errors.New("boom"), codes.Internal},
	}
	for _, tc := range cases {
		if got := status.Code(toStatus(tc.err)); got != tc.want {
			t.Fatalf("toStatus(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
	if toStatus(nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}

package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"voltgrid/internal/models"
	"voltgrid/internal/repository"
)

func newTestDeviceRepo(t *testing.T) *repository.DeviceModelRepository {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "registry.db") + "?_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := repository.Migrate(context.Background(), db, repository.DialectSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repository.NewDeviceModelRepository(db, zap.NewNop())
}

// seedAvailabilityModel reports the station-level component and one EVSE
// component per given id, each carrying an AvailabilityState attribute.
func seedAvailabilityModel(t *testing.T, repo *repository.DeviceModelRepository, stationID string, evseIDs ...int) {
	t.Helper()
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	station := models.Report{
		Component:  models.ComponentDescriptor{Name: models.ChargingStationComponent},
		Variable:   models.VariableDescriptor{Name: models.AvailabilityStateVariable},
		Attributes: []models.AttributeInput{{}},
	}
	if _, err := repo.CreateOrUpdateByReport(ctx, stationID, station, at); err != nil {
		t.Fatalf("seed station component: %v", err)
	}

	for _, id := range evseIDs {
		report := models.Report{
			Component:  models.ComponentDescriptor{Name: models.EvseComponent, Evse: &models.EvseDescriptor{ID: id}},
			Variable:   models.VariableDescriptor{Name: models.AvailabilityStateVariable},
			Attributes: []models.AttributeInput{{}},
		}
		if _, err := repo.CreateOrUpdateByReport(ctx, stationID, report, at); err != nil {
			t.Fatalf("seed evse %d component: %v", id, err)
		}
	}
}

func readState(t *testing.T, repo *repository.DeviceModelRepository, stationID, component string, evseID *int) string {
	t.Helper()
	attrs, err := repo.ReadAllByQuery(context.Background(), repository.AttributeQuery{
		StationID:     stationID,
		ComponentName: component,
		EvseID:        evseID,
		VariableName:  models.AvailabilityStateVariable,
	})
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	if len(attrs) != 1 {
		t.Fatalf("expected one availability attribute for %s, got %d", component, len(attrs))
	}
	if attrs[0].Value == nil {
		return ""
	}
	return *attrs[0].Value
}

func TestMergeStatuses(t *testing.T) {
	cases := []struct {
		name     string
		statuses []string
		want     models.AvailabilityState
	}{
		{"reserved wins", []string{"Occupied", "Available", "Reserved"}, models.StateReserved},
		{"occupied beats available", []string{"Occupied", "Available"}, models.StateOccupied},
		{"all unavailable", []string{"Unavailable", "Unavailable"}, models.StateUnavailable},
		{"all faulted", []string{"Faulted", "Faulted"}, models.StateFaulted},
		{"partial fault is available", []string{"Faulted", "Available"}, models.StateAvailable},
		{"mixed unavailable and faulted", []string{"Unavailable", "Faulted"}, models.StateAvailable},
		{"single available", []string{"Available"}, models.StateAvailable},
		{"case insensitive", []string{"occupied"}, models.StateOccupied},
		{"unknown strings count toward total", []string{"Unavailable", "garbage"}, models.StateAvailable},
		{"only unknown strings", []string{"garbage"}, models.StateAvailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := mergeStatuses(tc.statuses); got != tc.want {
				t.Fatalf("mergeStatuses(%v) = %s, want %s", tc.statuses, got, tc.want)
			}
		})
	}
}

func TestSubmitConnectorStatuses(t *testing.T) {
	repo := newTestDeviceRepo(t)
	svc := NewAvailabilityService(repo, nil, zap.NewNop())
	ctx := context.Background()

	seedAvailabilityModel(t, repo, "cs-1", 1, 2)

	evse1 := 1
	if err := svc.SubmitConnectorStatuses(ctx, "cs-1", models.ConnectorStatusBatch{
		EvseID:   &evse1,
		Statuses: []string{"Occupied", "Available", "Reserved"},
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := readState(t, repo, "cs-1", models.EvseComponent, &evse1); got != "Reserved" {
		t.Fatalf("evse 1 state = %q, want Reserved", got)
	}
	// EVSE 2 has no value yet; it counts toward the rollup total without a
	// bucket, so Reserved still wins at station level.
	if got := readState(t, repo, "cs-1", models.ChargingStationComponent, nil); got != "Reserved" {
		t.Fatalf("station state = %q, want Reserved", got)
	}

	evse2 := 2
	if err := svc.SubmitConnectorStatuses(ctx, "cs-1", models.ConnectorStatusBatch{
		EvseID:   &evse2,
		Statuses: []string{"Unavailable", "Unavailable"},
	}); err != nil {
		t.Fatalf("submit evse 2: %v", err)
	}
	if got := readState(t, repo, "cs-1", models.EvseComponent, &evse2); got != "Unavailable" {
		t.Fatalf("evse 2 state = %q, want Unavailable", got)
	}
	if got := readState(t, repo, "cs-1", models.ChargingStationComponent, nil); got != "Reserved" {
		t.Fatalf("station state = %q, want Reserved while evse 1 stays reserved", got)
	}

	// Both EVSEs unavailable: the station follows.
	if err := svc.SubmitConnectorStatuses(ctx, "cs-1", models.ConnectorStatusBatch{
		EvseID:   &evse1,
		Statuses: []string{"Unavailable"},
	}); err != nil {
		t.Fatalf("submit evse 1 unavailable: %v", err)
	}
	if got := readState(t, repo, "cs-1", models.ChargingStationComponent, nil); got != "Unavailable" {
		t.Fatalf("station state = %q, want Unavailable", got)
	}
}

func TestSubmitConnectorStatusesEmptyBatch(t *testing.T) {
	repo := newTestDeviceRepo(t)
	svc := NewAvailabilityService(repo, nil, zap.NewNop())
	ctx := context.Background()

	seedAvailabilityModel(t, repo, "cs-1", 1)

	evse1 := 1
	if err := svc.SubmitConnectorStatuses(ctx, "cs-1", models.ConnectorStatusBatch{
		EvseID:   &evse1,
		Statuses: []string{"Occupied"},
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Empty batch is a no-op, never writes Available.
	if err := svc.SubmitConnectorStatuses(ctx, "cs-1", models.ConnectorStatusBatch{EvseID: &evse1}); err != nil {
		t.Fatalf("empty submit: %v", err)
	}
	if got := readState(t, repo, "cs-1", models.EvseComponent, &evse1); got != "Occupied" {
		t.Fatalf("evse state = %q, want Occupied preserved", got)
	}
}

func TestSubmitConnectorStatusesStationWide(t *testing.T) {
	repo := newTestDeviceRepo(t)
	svc := NewAvailabilityService(repo, nil, zap.NewNop())
	ctx := context.Background()

	seedAvailabilityModel(t, repo, "cs-1", 1)

	// Without an EVSE scope the batch stands for the whole station.
	if err := svc.SubmitConnectorStatuses(ctx, "cs-1", models.ConnectorStatusBatch{
		Statuses: []string{"Faulted", "Faulted"},
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := readState(t, repo, "cs-1", models.ChargingStationComponent, nil); got != "Faulted" {
		t.Fatalf("station state = %q, want Faulted", got)
	}
	evse1 := 1
	if got := readState(t, repo, "cs-1", models.EvseComponent, &evse1); got != "" {
		t.Fatalf("evse state = %q, want untouched", got)
	}
}

func TestSubmitConnectorStatusesUnknownEvse(t *testing.T) {
	repo := newTestDeviceRepo(t)
	svc := NewAvailabilityService(repo, nil, zap.NewNop())

	seedAvailabilityModel(t, repo, "cs-1", 1)

	missing := 9
	err := svc.SubmitConnectorStatuses(context.Background(), "cs-1", models.ConnectorStatusBatch{
		EvseID:   &missing,
		Statuses: []string{"Available"},
	})
	if err == nil {
		t.Fatal("expected error for unknown evse")
	}
}

type recordingCache struct {
	stationStates map[string]models.AvailabilityState
	evseStates    map[int]models.AvailabilityState
}

func newRecordingCache() *recordingCache {
	return &recordingCache{
		stationStates: make(map[string]models.AvailabilityState),
		evseStates:    make(map[int]models.AvailabilityState),
	}
}

func (c *recordingCache) SetStationState(_ context.Context, stationID string, state models.AvailabilityState) error {
	c.stationStates[stationID] = state
	return nil
}

func (c *recordingCache) SetEvseState(_ context.Context, _ string, evseID int, state models.AvailabilityState) error {
	c.evseStates[evseID] = state
	return nil
}

func TestSubmitConnectorStatusesWritesCache(t *testing.T) {
	repo := newTestDeviceRepo(t)
	cache := newRecordingCache()
	svc := NewAvailabilityService(repo, cache, zap.NewNop())

	seedAvailabilityModel(t, repo, "cs-1", 1)

	evse1 := 1
	if err := svc.SubmitConnectorStatuses(context.Background(), "cs-1", models.ConnectorStatusBatch{
		EvseID:   &evse1,
		Statuses: []string{"Occupied"},
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if got := cache.evseStates[1]; got != models.StateOccupied {
		t.Fatalf("cached evse state = %s, want Occupied", got)
	}
	if got := cache.stationStates["cs-1"]; got != models.StateOccupied {
		t.Fatalf("cached station state = %s, want Occupied", got)
	}
}

func TestSubmitConnectorStatusesSkipsCacheWithoutStoredAttribute(t *testing.T) {
	repo := newTestDeviceRepo(t)
	cache := newRecordingCache()
	svc := NewAvailabilityService(repo, cache, zap.NewNop())
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	// The ChargingStation component exists, but its AvailabilityState slot
	// was never reported; only EVSE 1 carries one.
	station := models.Report{
		Component:  models.ComponentDescriptor{Name: models.ChargingStationComponent},
		Variable:   models.VariableDescriptor{Name: "Model"},
		Attributes: []models.AttributeInput{{}},
	}
	if _, err := repo.CreateOrUpdateByReport(ctx, "cs-1", station, at); err != nil {
		t.Fatalf("seed station component: %v", err)
	}
	evse := models.Report{
		Component:  models.ComponentDescriptor{Name: models.EvseComponent, Evse: &models.EvseDescriptor{ID: 1}},
		Variable:   models.VariableDescriptor{Name: models.AvailabilityStateVariable},
		Attributes: []models.AttributeInput{{}},
	}
	if _, err := repo.CreateOrUpdateByReport(ctx, "cs-1", evse, at); err != nil {
		t.Fatalf("seed evse component: %v", err)
	}

	evse1 := 1
	if err := svc.SubmitConnectorStatuses(ctx, "cs-1", models.ConnectorStatusBatch{
		EvseID:   &evse1,
		Statuses: []string{"Occupied"},
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := cache.evseStates[1]; got != models.StateOccupied {
		t.Fatalf("cached evse state = %s, want Occupied", got)
	}
	if len(cache.stationStates) != 0 {
		t.Fatalf("station state cached without a stored attribute: %v", cache.stationStates)
	}

	// Station-wide batch: same rule, no slot means no cache entry.
	if err := svc.SubmitConnectorStatuses(ctx, "cs-1", models.ConnectorStatusBatch{
		Statuses: []string{"Faulted"},
	}); err != nil {
		t.Fatalf("station-wide submit: %v", err)
	}
	if len(cache.stationStates) != 0 {
		t.Fatalf("station state cached without a stored attribute: %v", cache.stationStates)
	}
}

package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"voltgrid/internal/models"
	"voltgrid/internal/ocpp/protocol"
	"voltgrid/internal/repository"
	"voltgrid/internal/service"
)

type testEnv struct {
	devices  *repository.DeviceModelRepository
	stations *repository.StationRepository
	reports  *service.ReportService
}

func newTestEnv(t *testing.T) testEnv {
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

	devices := repository.NewDeviceModelRepository(db, zap.NewNop())
	return testEnv{
		devices:  devices,
		stations: repository.NewStationRepository(db),
		reports:  service.NewReportService(devices, zap.NewNop()),
	}
}

func TestBootNotificationHandler(t *testing.T) {
	env := newTestEnv(t)
	handler := NewBootNotificationHandler(env.stations, env.reports, 300*time.Second, zap.NewNop())
	ctx := context.Background()

	payload, _ := json.Marshal(protocol.BootNotificationRequest{
		Reason: "PowerUp",
		ChargingStation: protocol.ChargingStationType{
			Model:           "VG-200",
			VendorName:      "VoltGrid",
			FirmwareVersion: "1.2.3",
		},
	})
	resp, err := handler(ctx, "cs-1", payload)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	boot, ok := resp.(protocol.BootNotificationResponse)
	if !ok {
		t.Fatalf("unexpected response type %T", resp)
	}
	if boot.Status != protocol.RegistrationAccepted || boot.Interval != 300 {
		t.Fatalf("unexpected response: %+v", boot)
	}

	station, err := env.stations.Get(ctx, "cs-1")
	if err != nil {
		t.Fatalf("station not registered: %v", err)
	}
	if station.Vendor != "VoltGrid" || station.Model != "VG-200" {
		t.Fatalf("unexpected station: %+v", station)
	}
}

func TestBootNotificationPendingStatus(t *testing.T) {
	env := newTestEnv(t)
	handler := NewBootNotificationHandler(env.stations, env.reports, 300*time.Second, zap.NewNop())
	ctx := context.Background()

	value := "300"
	attrs, err := env.devices.CreateOrUpdateByReport(ctx, "cs-1", models.Report{
		Component:  models.ComponentDescriptor{Name: "OCPPCommCtrlr"},
		Variable:   models.VariableDescriptor{Name: "HeartbeatInterval"},
		Attributes: []models.AttributeInput{{Value: &value}},
	}, time.Now().UTC())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	setID := int64(7)
	if err := env.devices.SetBootConfig(ctx, attrs[0].ID, &setID); err != nil {
		t.Fatalf("flag pending: %v", err)
	}

	payload, _ := json.Marshal(protocol.BootNotificationRequest{
		ChargingStation: protocol.ChargingStationType{Model: "VG-200", VendorName: "VoltGrid"},
	})
	resp, err := handler(ctx, "cs-1", payload)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if boot := resp.(protocol.BootNotificationResponse); boot.Status != protocol.RegistrationPending {
		t.Fatalf("expected Pending with flagged configuration, got %s", boot.Status)
	}
}

func TestNotifyReportHandler(t *testing.T) {
	env := newTestEnv(t)
	handler := NewNotifyReportHandler(env.reports, zap.NewNop())
	ctx := context.Background()

	raw := `{
		"requestId": 1,
		"generatedAt": "2026-05-01T12:00:00Z",
		"seqNo": 0,
		"reportData": [
			{
				"component": {"name": "OCPPCommCtrlr"},
				"variable": {"name": "HeartbeatInterval"},
				"variableCharacteristics": {"dataType": "integer", "unit": "s"},
				"variableAttribute": [{"value": "300"}]
			},
			{
				"component": {"name": "EVSE", "evse": {"id": 1}},
				"variable": {"name": "Power"},
				"variableAttribute": [{"value": "22000", "mutability": "ReadOnly"}]
			}
		]
	}`
	if _, err := handler(ctx, "cs-1", json.RawMessage(raw)); err != nil {
		t.Fatalf("handler: %v", err)
	}

	attrs, err := env.devices.ReadAllByQuery(ctx, repository.AttributeQuery{StationID: "cs-1", VariableName: "HeartbeatInterval"})
	if err != nil || len(attrs) != 1 {
		t.Fatalf("heartbeat attribute missing: %v %d", err, len(attrs))
	}
	if *attrs[0].Value != "300" {
		t.Fatalf("unexpected value %s", *attrs[0].Value)
	}
	if !attrs[0].GeneratedAt.Equal(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected generatedAt from payload, got %v", attrs[0].GeneratedAt)
	}

	attrs, err = env.devices.ReadAllByQuery(ctx, repository.AttributeQuery{StationID: "cs-1", VariableName: "Power"})
	if err != nil || len(attrs) != 1 {
		t.Fatalf("power attribute missing: %v %d", err, len(attrs))
	}
	if attrs[0].Mutability != models.MutabilityReadOnly {
		t.Fatalf("expected ReadOnly, got %s", attrs[0].Mutability)
	}
}

func TestStatusNotificationHandler(t *testing.T) {
	env := newTestEnv(t)
	availability := service.NewAvailabilityService(env.devices, nil, zap.NewNop())
	handler := NewStatusNotificationHandler(availability, zap.NewNop())
	ctx := context.Background()

	// Device model first: ChargingStation and EVSE components with the
	// availability variable.
	for _, report := range []models.Report{
		{
			Component:  models.ComponentDescriptor{Name: models.ChargingStationComponent},
			Variable:   models.VariableDescriptor{Name: models.AvailabilityStateVariable},
			Attributes: []models.AttributeInput{{}},
		},
		{
			Component:  models.ComponentDescriptor{Name: models.EvseComponent, Evse: &models.EvseDescriptor{ID: 1}},
			Variable:   models.VariableDescriptor{Name: models.AvailabilityStateVariable},
			Attributes: []models.AttributeInput{{}},
		},
	} {
		if _, err := env.devices.CreateOrUpdateByReport(ctx, "cs-1", report, time.Now().UTC()); err != nil {
			t.Fatalf("seed report: %v", err)
		}
	}

	payload, _ := json.Marshal(protocol.StatusNotificationRequest{
		Timestamp:       time.Now().UTC(),
		ConnectorStatus: "Occupied",
		EvseID:          1,
		ConnectorID:     1,
	})
	if _, err := handler(ctx, "cs-1", payload); err != nil {
		t.Fatalf("handler: %v", err)
	}

	evseID := 1
	attrs, err := env.devices.ReadAllByQuery(ctx, repository.AttributeQuery{
		StationID:     "cs-1",
		ComponentName: models.EvseComponent,
		EvseID:        &evseID,
		VariableName:  models.AvailabilityStateVariable,
	})
	if err != nil || len(attrs) != 1 {
		t.Fatalf("evse availability missing: %v %d", err, len(attrs))
	}
	if attrs[0].Value == nil || *attrs[0].Value != "Occupied" {
		t.Fatalf("expected Occupied, got %v", attrs[0].Value)
	}
}

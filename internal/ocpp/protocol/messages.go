package protocol

import (
	"time"

	"voltgrid/internal/models"
)

// RegistrationStatus values returned in BootNotification responses.
const (
	RegistrationAccepted = "Accepted"
	RegistrationPending  = "Pending"
	RegistrationRejected = "Rejected"
)

// ChargingStationType describes the station in a BootNotification.
type ChargingStationType struct {
	Model           string `json:"model"`
	VendorName      string `json:"vendorName"`
	SerialNumber    string `json:"serialNumber,omitempty"`
	FirmwareVersion string `json:"firmwareVersion,omitempty"`
}

// BootNotificationRequest announces a station after (re)boot.
type BootNotificationRequest struct {
	Reason          string              `json:"reason"`
	ChargingStation ChargingStationType `json:"chargingStation"`
}

// BootNotificationResponse acknowledges registration.
type BootNotificationResponse struct {
	CurrentTime time.Time `json:"currentTime"`
	Interval    int       `json:"interval"`
	Status      string    `json:"status"`
}

// HeartbeatResponse carries server time.
type HeartbeatResponse struct {
	CurrentTime time.Time `json:"currentTime"`
}

// StatusNotificationRequest reports one connector's status.
type StatusNotificationRequest struct {
	Timestamp       time.Time `json:"timestamp"`
	ConnectorStatus string    `json:"connectorStatus"`
	EvseID          int       `json:"evseId"`
	ConnectorID     int       `json:"connectorId"`
}

// StatusNotificationResponse is empty per protocol.
type StatusNotificationResponse struct{}

// ReportData is one (component, variable) entry of a NotifyReport.
type ReportData struct {
	Component               models.ComponentDescriptor        `json:"component"`
	Variable                models.VariableDescriptor         `json:"variable"`
	VariableAttribute       []models.AttributeInput           `json:"variableAttribute"`
	VariableCharacteristics *models.CharacteristicsDescriptor `json:"variableCharacteristics,omitempty"`
}

// NotifyReportRequest carries a chunk of a station's device model report.
type NotifyReportRequest struct {
	RequestID   int          `json:"requestId"`
	GeneratedAt time.Time    `json:"generatedAt"`
	SeqNo       int          `json:"seqNo"`
	Tbc         bool         `json:"tbc"`
	ReportData  []ReportData `json:"reportData"`
}

// NotifyReportResponse is empty per protocol.
type NotifyReportResponse struct{}

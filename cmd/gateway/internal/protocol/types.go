package protocol

import "github.com/shubham-shewale/stock-ticker/pkg/models"

// client -> server
const (
	ActionAuthenticate       = "authenticate"
	ActionSubscriptionUpdate = "subscriptionUpdate"
)

// server -> client
const (
	TypeAuthResult      = "authResult"
	TypeInitialSnapshot = "initialSnapshot"
	TypePeriodicUpdate  = "periodicUpdate"
	TypeAck             = "ack"
	TypeError           = "error"
)

type WSRequest struct {
	Action  string         `json:"action"`
	Payload RequestPayload `json:"payload"`
	ID      string         `json:"id,omitempty"`
}

type RequestPayload struct {
	Identity string   `json:"identity,omitempty"`
	Symbols  []string `json:"symbols"`
}

type WSResponse struct {
	Type    string      `json:"type"`
	ID      string      `json:"id,omitempty"`     // Matches request ID
	Status  string      `json:"status,omitempty"` // "success", "error"
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type AuthResult struct {
	Identity             string   `json:"identity"`
	SupportedInstruments []string `json:"supportedInstruments"`
}

func NewAuthResult(res AuthResult) WSResponse {
	return WSResponse{Type: TypeAuthResult, Status: "success", Data: res}
}

func NewInitialSnapshot(quotes []models.Quote) WSResponse {
	return WSResponse{Type: TypeInitialSnapshot, Data: quotes}
}

func NewPeriodicUpdate(quotes []models.Quote) WSResponse {
	return WSResponse{Type: TypePeriodicUpdate, Data: quotes}
}

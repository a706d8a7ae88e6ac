package dto

// ReservationDTO is a hold on a serial for a registration form
type ReservationDTO struct {
	SerialNumber     int64  `json:"serial_number" example:"5004"`
	Serial           string `json:"serial" example:"05004"`
	ReservationToken string `json:"reservation_token" example:"0b7e2c1a-9d1f-4a43-8f1e-7f1c2a3b4c5d"`
	ReservedAt       string `json:"reserved_at" example:"2024-01-15T10:30:00Z"`
	ExpiresAt        string `json:"expires_at" example:"2024-01-15T11:30:00Z"`
	Reused           bool   `json:"reused" example:"false"`
}

// ReleaseReservationRequest gives a hold back before it expires
type ReleaseReservationRequest struct {
	ReservationToken string `json:"reservation_token" validate:"required,uuid"`
}

// NextSerialDTO previews the next serial; it is not reserved
type NextSerialDTO struct {
	SerialNumber int64  `json:"serial_number" example:"5004"`
	Serial       string `json:"serial" example:"05004"`
}

// SerialListDTO lists the serials of one state
type SerialListDTO struct {
	State   string  `json:"state" example:"active"`
	Count   int     `json:"count" example:"3"`
	Serials []int64 `json:"serials"`
}

// SerialUsageDTO counts serials per state
type SerialUsageDTO struct {
	Min      int64 `json:"min" example:"5000"`
	Max      int64 `json:"max" example:"99999"`
	Active   int64 `json:"active"`
	Retired  int64 `json:"retired"`
	Reserved int64 `json:"reserved"`
	Free     int64 `json:"free"`
}

// SweepResultDTO reports a manual expiry sweep
type SweepResultDTO struct {
	Removed int64 `json:"removed"`
}

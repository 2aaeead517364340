package domain

type DeliveryScheduleEntry struct {
	EventDate         Date   `json:"event_date"`
	IsDeliveryEnabled bool   `json:"is_delivery_enabled"`
	Notes             string `json:"notes,omitempty"`
}

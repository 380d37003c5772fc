package models

import "time"

// CollaboratorID and ZoneName are distinct key types so that grouping by one
// can never collide with grouping by the other.
type CollaboratorID string

type ZoneName string

type SaleRecord struct {
	ID               string         `json:"id"`
	ConfirmationDate time.Time      `json:"confirmation_date"`
	CollaboratorID   CollaboratorID `json:"collaborator_id"`
	CollaboratorName string         `json:"collaborator_name"`
	TotalAmount      float64        `json:"total_amount"`
	ZoneName         ZoneName       `json:"zone_name"`
}

type ProductStat struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Quantity    int     `json:"quantity"`
	AmountTotal float64 `json:"amount_total"`
}

func (p ProductStat) RankID() string { return p.ID }

type ClientStat struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Quantity    int     `json:"quantity"`
	AmountTotal float64 `json:"amount_total"`
}

func (c ClientStat) RankID() string { return c.ID }

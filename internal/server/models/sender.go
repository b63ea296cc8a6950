package models

import "time"

// SenderType distinguishes single payers from named groups.
type SenderType string

const (
	SenderIndividual SenderType = "individual"
	SenderGroup      SenderType = "group"
)

func (t SenderType) Valid() bool {
	return t == SenderIndividual || t == SenderGroup
}

type Sender struct {
	ID          string
	Name        string
	Type        SenderType
	CreatedBy   string
	CreatorName string
	CreatedAt   time.Time
	Members     []UserRef
}

// MemberNames returns the names of the sender's members in stored order.
func (s *Sender) MemberNames() []string {
	names := make([]string, 0, len(s.Members))
	for _, m := range s.Members {
		names = append(names, m.Name)
	}
	return names
}

package repo

import "time"

// Payment statuses as stored in the payments table.
const (
	PaymentStatusPending  = "pending"
	PaymentStatusVerified = "verified"
	PaymentStatusRejected = "rejected"
)

// Partner represents the partners table row.
type Partner struct {
	ID           string
	Name         string
	Phone        string
	RaffleNumber int
	MonthlyFee   int64
	SponsorID    *string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Payment represents the payments table row. Difference is always
// Amount - ExpectedAmount, maintained by the write paths.
type Payment struct {
	ID             string
	PartnerID      string
	PeriodID       string
	Month          int
	Year           int
	Amount         int64
	ExpectedAmount int64
	Difference     int64
	Status         string
	Notes          *string
	ReceiptRef     *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PendingPayment is a reporting row joining the partner display name.
type PendingPayment struct {
	PaymentID   string
	PartnerName string
	Month       int
	Year        int
	Amount      int64
	Expected    int64
	Notes       *string
}

// Period represents the periods table row; one period is active at a time.
type Period struct {
	ID        string
	Name      string
	Active    bool
	StartDate time.Time
	EndDate   time.Time
}

// User represents the users table row used for PIN authentication.
type User struct {
	ID        string
	Phone     string
	PIN       string
	Role      string
	Active    bool
	CreatedAt time.Time
}

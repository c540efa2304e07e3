// Package claim defines reimbursement claims as received from callers and
// validates them before they reach the rules engine.
package claim

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var ErrInvalidClaim = errors.New("invalid claim")

// Category is the expense category of a claim line.
type Category string

const (
	CategoryMeals               Category = "MEALS"
	CategoryLodging             Category = "LODGING"
	CategoryAirfare             Category = "AIRFARE"
	CategoryRail                Category = "RAIL"
	CategoryTaxi                Category = "TAXI"
	CategoryPublicTransit       Category = "PUBLIC_TRANSIT"
	CategoryMileage             Category = "MILEAGE"
	CategoryClientEntertainment Category = "CLIENT_ENTERTAINMENT"
	CategoryOffice              Category = "OFFICE"
	CategoryTraining            Category = "TRAINING"
	CategoryOther               Category = "OTHER"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryMeals, CategoryLodging, CategoryAirfare, CategoryRail, CategoryTaxi,
		CategoryPublicTransit, CategoryMileage, CategoryClientEntertainment,
		CategoryOffice, CategoryTraining, CategoryOther:
		return true
	}
	return false
}

// MealType qualifies MEALS lines. The empty value means unspecified.
type MealType string

const (
	MealBreakfast MealType = "BREAKFAST"
	MealLunch     MealType = "LUNCH"
	MealDinner    MealType = "DINNER"
	MealOther     MealType = "OTHER"
)

func (m MealType) Valid() bool {
	switch m {
	case "", MealBreakfast, MealLunch, MealDinner, MealOther:
		return true
	}
	return false
}

// AttendeeType distinguishes staff from external guests.
type AttendeeType string

const (
	AttendeeEmployee AttendeeType = "EMPLOYEE"
	AttendeeExternal AttendeeType = "EXTERNAL"
)

type Attendee struct {
	Name    string       `json:"name"`
	Type    AttendeeType `json:"type"`
	Company string       `json:"company,omitempty"`
}

type Mileage struct {
	KM            *float64 `json:"km,omitempty"`
	StartLocation string   `json:"start_location,omitempty"`
	EndLocation   string   `json:"end_location,omitempty"`
}

type Receipt struct {
	Provided  bool   `json:"provided"`
	ReceiptID string `json:"receipt_id,omitempty"`
	FileName  string `json:"file_name,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`
}

type PreApproval struct {
	Provided  bool   `json:"provided"`
	Reference string `json:"reference,omitempty"`
}

type Employee struct {
	EmployeeID  string `json:"employee_id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Department  string `json:"department"`
	ManagerID   string `json:"manager_id"`
	Country     string `json:"country"`
	Grade       string `json:"grade,omitempty"`
	CostCenter  string `json:"cost_center,omitempty"`
	ProjectCode string `json:"project_code,omitempty"`
}

type Trip struct {
	TripID             string `json:"trip_id,omitempty"`
	BusinessPurpose    string `json:"business_purpose,omitempty"`
	StartDate          string `json:"start_date,omitempty"`
	EndDate            string `json:"end_date,omitempty"`
	DestinationCity    string `json:"destination_city,omitempty"`
	DestinationCountry string `json:"destination_country,omitempty"`
}

// Line is one expense item.
type Line struct {
	LineID      string       `json:"line_id"`
	Date        Date         `json:"date"`
	Category    Category     `json:"category"`
	Amount      float64      `json:"amount"`
	Currency    string       `json:"currency"`
	Vendor      string       `json:"vendor"`
	Description string       `json:"description"`
	MealType    MealType     `json:"meal_type,omitempty"`
	Attendees   []Attendee   `json:"attendees,omitempty"`
	Mileage     *Mileage     `json:"mileage,omitempty"`
	Receipt     *Receipt     `json:"receipt,omitempty"`
	PreApproval *PreApproval `json:"preapproval,omitempty"`
}

// HasReceipt reports whether a receipt was provided for the line.
func (l Line) HasReceipt() bool { return l.Receipt != nil && l.Receipt.Provided }

// HasPreApproval reports whether a pre-approval was provided for the line.
func (l Line) HasPreApproval() bool { return l.PreApproval != nil && l.PreApproval.Provided }

// KM returns the mileage distance and whether it was given.
func (l Line) KM() (float64, bool) {
	if l.Mileage == nil || l.Mileage.KM == nil {
		return 0, false
	}
	return *l.Mileage.KM, true
}

// Claim is a reimbursement request.
type Claim struct {
	ClaimID        string   `json:"claim_id"`
	SubmissionDate Date     `json:"submission_date"`
	Currency       string   `json:"currency"`
	Employee       Employee `json:"employee"`
	Trip           *Trip    `json:"trip,omitempty"`
	Lines          []Line   `json:"lines"`
}

// Decode reads one claim from r and validates it.
func Decode(r io.Reader) (Claim, error) {
	var c Claim
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		if errors.Is(err, ErrInvalidClaim) {
			return Claim{}, err
		}
		return Claim{}, fmt.Errorf("%w: %v", ErrInvalidClaim, err)
	}
	if err := c.Validate(); err != nil {
		return Claim{}, err
	}
	return c, nil
}

// Validate checks the fields the rules engine relies on.
func (c Claim) Validate() error {
	if c.ClaimID == "" {
		return invalid("claim_id required")
	}
	if c.SubmissionDate.IsZero() {
		return invalid("submission_date required")
	}
	if len(c.Currency) != 3 {
		return invalid("currency must be a 3-letter code")
	}
	if len(c.Lines) == 0 {
		return invalid("at least one line required")
	}
	seen := make(map[string]struct{}, len(c.Lines))
	for i, l := range c.Lines {
		if l.LineID == "" {
			return invalid("line %d: line_id required", i)
		}
		if _, dup := seen[l.LineID]; dup {
			return invalid("line %s: duplicate line_id", l.LineID)
		}
		seen[l.LineID] = struct{}{}
		if err := l.validate(); err != nil {
			return fmt.Errorf("%w: line %s: %v", ErrInvalidClaim, l.LineID, err)
		}
	}
	return nil
}

func (l Line) validate() error {
	if l.Date.IsZero() {
		return errors.New("date required")
	}
	if !l.Category.Valid() {
		return fmt.Errorf("unknown category %q", l.Category)
	}
	if l.Amount < 0 {
		return errors.New("amount must be non-negative")
	}
	if len(l.Currency) != 3 {
		return errors.New("currency must be a 3-letter code")
	}
	if !l.MealType.Valid() {
		return fmt.Errorf("unknown meal_type %q", l.MealType)
	}
	for _, a := range l.Attendees {
		if a.Type != AttendeeEmployee && a.Type != AttendeeExternal {
			return fmt.Errorf("attendee %q: unknown type %q", a.Name, a.Type)
		}
	}
	if km, ok := l.KM(); ok && km < 0 {
		return errors.New("mileage km must be non-negative")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidClaim, fmt.Sprintf(format, args...))
}

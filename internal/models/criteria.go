package models

type TripType string

const (
	TripOneWay    TripType = "one_way"
	TripRoundTrip TripType = "round_trip"
	TripMultiLeg  TripType = "multi_leg"
)

type MarkupType string

const (
	MarkupFixed      MarkupType = "fixed"
	MarkupPercentage MarkupType = "percentage"
)

type Markup struct {
	Amount float64    `json:"amount"`
	Type   MarkupType `json:"type"`
}

type Passengers struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Infants  int `json:"infants"`
}

func (p Passengers) Total() int {
	return p.Adults + p.Children + p.Infants
}

type Leg struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Date        string `json:"date"`
}

// SearchCriteria is the canonical, validated form of a search. Dates are
// calendar dates in YYYY-MM-DD form.
type SearchCriteria struct {
	Origin            string     `json:"origin"`
	Destination       string     `json:"destination"`
	DepartureDate     string     `json:"departure_date"`
	ReturnDate        *string    `json:"return_date,omitempty"`
	TripType          TripType   `json:"trip_type"`
	Legs              []Leg      `json:"legs,omitempty"`
	Passengers        Passengers `json:"passengers"`
	CabinClass        string     `json:"cabin_class"`
	DirectOnly        bool       `json:"direct_only"`
	Markup            Markup     `json:"markup"`
	CorporateCode     *string    `json:"corporate_code,omitempty"`
	PreferredCarriers []string   `json:"preferred_carriers,omitempty"`
}

func (c SearchCriteria) IsRoundTrip() bool {
	return c.TripType == TripRoundTrip
}

func (c SearchCriteria) ReturnDateValue() string {
	if c.ReturnDate == nil {
		return ""
	}
	return *c.ReturnDate
}

// RawLeg is one leg of a multi-leg search as it arrives from a form or URL.
type RawLeg struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Date        string `json:"date"`
}

// RawCriteria carries loosely typed search input before normalization.
// Numeric fields stay as strings so any source (query string, stored blob,
// form state) can be funnelled through the same normalizer.
type RawCriteria struct {
	From          string
	To            string
	DepartureDate string
	ReturnDate    string
	TripType      string
	Legs          []RawLeg
	Passengers    string
	Adults        string
	Children      string
	Infants       string
	Cabin         string
	Direct        string
	Markup        string
	MarkupType    string
	CorporateCode string
	Carriers      []string
}

type ErrorCode string

const (
	ErrCodeInvalidLocation     ErrorCode = "InvalidLocation"
	ErrCodeInvalidDateRange    ErrorCode = "InvalidDateRange"
	ErrCodePassengerConstraint ErrorCode = "PassengerConstraintViolation"
	ErrCodeNoOffersFound       ErrorCode = "NoOffersFound"
	ErrCodeProviderError       ErrorCode = "ProviderError"
)

type ValidationError struct {
	Code    ErrorCode
	Message string
}

func (e *ValidationError) Error() string {
	return string(e.Code) + ": " + e.Message
}

func NewValidationError(code ErrorCode, message string) *ValidationError {
	return &ValidationError{Code: code, Message: message}
}

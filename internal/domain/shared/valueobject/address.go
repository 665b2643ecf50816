package valueobject

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Address is a value object representing a delivery address.
// It is immutable - all operations return new Address instances.
type Address struct {
	line1      string
	line2      string
	city       string
	state      string
	postalCode string
	country    string
}

// AddressOption is a functional option for configuring Address
type AddressOption func(*Address)

// WithLine2 sets the secondary address line (apartment, suite, etc.)
func WithLine2(line2 string) AddressOption {
	return func(a *Address) {
		a.line2 = strings.TrimSpace(line2)
	}
}

// WithCountry sets the country for the address
func WithCountry(country string) AddressOption {
	return func(a *Address) {
		a.country = strings.TrimSpace(country)
	}
}

// NewAddress creates a new Address. Line1, city, state and postal code are
// required; line2 and country are optional.
func NewAddress(line1, city, state, postalCode string, opts ...AddressOption) (Address, error) {
	line1 = strings.TrimSpace(line1)
	city = strings.TrimSpace(city)
	state = strings.TrimSpace(state)
	postalCode = strings.TrimSpace(postalCode)

	if line1 == "" {
		return Address{}, fmt.Errorf("address line1 is required")
	}
	if len(line1) > 200 {
		return Address{}, fmt.Errorf("address line1 cannot exceed 200 characters")
	}
	if city == "" {
		return Address{}, fmt.Errorf("city is required")
	}
	if state == "" {
		return Address{}, fmt.Errorf("state is required")
	}
	if postalCode == "" {
		return Address{}, fmt.Errorf("postal code is required")
	}
	if len(postalCode) > 20 {
		return Address{}, fmt.Errorf("postal code cannot exceed 20 characters")
	}

	addr := Address{
		line1:      line1,
		city:       city,
		state:      state,
		postalCode: postalCode,
		country:    "US",
	}

	for _, opt := range opts {
		opt(&addr)
	}

	if len(addr.country) > 100 {
		return Address{}, fmt.Errorf("country cannot exceed 100 characters")
	}

	return addr, nil
}

// Line1 returns the primary address line
func (a Address) Line1() string { return a.line1 }

// Line2 returns the secondary address line
func (a Address) Line2() string { return a.line2 }

// City returns the city
func (a Address) City() string { return a.city }

// State returns the state or region
func (a Address) State() string { return a.state }

// PostalCode returns the postal code
func (a Address) PostalCode() string { return a.postalCode }

// Country returns the country
func (a Address) Country() string { return a.country }

// IsZero returns true if the address has no fields set
func (a Address) IsZero() bool {
	return a.line1 == "" && a.city == "" && a.state == "" && a.postalCode == ""
}

// String returns a single-line representation of the address
func (a Address) String() string {
	parts := []string{a.line1}
	if a.line2 != "" {
		parts = append(parts, a.line2)
	}
	parts = append(parts, a.city, a.state, a.postalCode)
	if a.country != "" {
		parts = append(parts, a.country)
	}
	return strings.Join(parts, ", ")
}

// Equals returns true if both addresses have identical fields
func (a Address) Equals(other Address) bool {
	return a == other
}

type addressJSON struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country,omitempty"`
}

// MarshalJSON implements json.Marshaler
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(addressJSON{
		Line1:      a.line1,
		Line2:      a.line2,
		City:       a.city,
		State:      a.state,
		PostalCode: a.postalCode,
		Country:    a.country,
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (a *Address) UnmarshalJSON(data []byte) error {
	var v addressJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	a.line1 = v.Line1
	a.line2 = v.Line2
	a.city = v.City
	a.state = v.State
	a.postalCode = v.PostalCode
	a.country = v.Country
	return nil
}

package models

import (
	"encoding/json"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	// MinimumVotingAge is the age a voter must have reached at registration time
	MinimumVotingAge = 18
	// DateOfBirthLayout is the layout used for the dateOfBirth field
	DateOfBirthLayout = "2006-01-02"
)

var (
	// ErrInvalidRecord indicates a voter or candidate record that fails validation
	ErrInvalidRecord = errors.New("invalid record")

	aadhaarPattern = regexp.MustCompile(`^\d{12}$`)
	phonePattern   = regexp.MustCompile(`^\+91[6-9]\d{9}$`)
)

// AddressDetails is the structured postal address of a voter
type AddressDetails struct {
	HouseNumber string `json:"houseNumber"`
	Area        string `json:"area"`
	Town        string `json:"town"`
	Taluk       string `json:"taluk"`
	PinCode     string `json:"pinCode"`
}

// VoterRecord is the voter registration payload pinned to IPFS and written on-chain
type VoterRecord struct {
	UserID            string         `json:"userId"`
	Name              string         `json:"name"`
	DateOfBirth       string         `json:"dateOfBirth"`
	AddressDetails    AddressDetails `json:"addressDetails"`
	AadhaarNumber     string         `json:"aadhaarNumber"`
	Email             string         `json:"email"`
	PhoneNumber       string         `json:"phoneNumber"`
	ProfilePictureURL string         `json:"profilePictureUrl"`
	ContentHash       string         `json:"ipfsHash"`
}

// VoterUpdate carries the fields a registered voter may change
type VoterUpdate struct {
	Name              string         `json:"name"`
	DateOfBirth       string         `json:"dateOfBirth"`
	AddressDetails    AddressDetails `json:"addressDetails"`
	Email             string         `json:"email"`
	PhoneNumber       string         `json:"phoneNumber"`
	ProfilePictureURL string         `json:"profilePictureUrl"`
}

// EncodedAddress returns the address details as the JSON string stored on-chain
func (a AddressDetails) EncodedAddress() string {
	data, _ := json.Marshal(a)
	return string(data)
}

// ParseAddressDetails decodes the on-chain address string. Unstructured legacy values end up in Area.
func ParseAddressDetails(s string) AddressDetails {
	var a AddressDetails
	if err := json.Unmarshal([]byte(s), &a); err != nil {
		return AddressDetails{Area: s}
	}
	return a
}

// Validate checks the registration invariants of the record at the given time
func (v *VoterRecord) Validate(now time.Time) error {
	if strings.TrimSpace(v.Name) == "" {
		return errors.Wrap(ErrInvalidRecord, "name is required")
	}
	if err := validateDateOfBirth(v.DateOfBirth, now); err != nil {
		return err
	}
	if err := v.AddressDetails.validate(); err != nil {
		return err
	}
	if !aadhaarPattern.MatchString(v.AadhaarNumber) {
		return errors.Wrap(ErrInvalidRecord, "aadhaar number must be exactly 12 digits")
	}
	if err := validateContact(v.Email, v.PhoneNumber); err != nil {
		return err
	}
	return nil
}

// Validate checks the update against the same rules as registration
func (u *VoterUpdate) Validate(now time.Time) error {
	if strings.TrimSpace(u.Name) == "" {
		return errors.Wrap(ErrInvalidRecord, "name is required")
	}
	if err := validateDateOfBirth(u.DateOfBirth, now); err != nil {
		return err
	}
	if err := u.AddressDetails.validate(); err != nil {
		return err
	}
	return validateContact(u.Email, u.PhoneNumber)
}

func (a AddressDetails) validate() error {
	if a.HouseNumber == "" || a.Area == "" || a.Town == "" || a.Taluk == "" || a.PinCode == "" {
		return errors.Wrap(ErrInvalidRecord, "all address fields are required")
	}
	return nil
}

func validateContact(email, phone string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return errors.Wrapf(ErrInvalidRecord, "invalid email address %q", email)
	}
	if !phonePattern.MatchString(phone) {
		return errors.Wrapf(ErrInvalidRecord, "invalid phone number %q", phone)
	}
	return nil
}

func validateDateOfBirth(dob string, now time.Time) error {
	birthDate, err := time.Parse(DateOfBirthLayout, dob)
	if err != nil {
		return errors.Wrapf(ErrInvalidRecord, "invalid date of birth %q", dob)
	}
	if birthDate.After(now) {
		return errors.Wrap(ErrInvalidRecord, "date of birth is in the future")
	}
	if age := Age(birthDate, now); age < MinimumVotingAge {
		return errors.Wrapf(ErrInvalidRecord, "voter must be at least %d years old (current age: %d)", MinimumVotingAge, age)
	}
	return nil
}

// Age returns the age in whole years at now
func Age(birthDate, now time.Time) int {
	age := now.Year() - birthDate.Year()
	if now.Month() < birthDate.Month() ||
		(now.Month() == birthDate.Month() && now.Day() < birthDate.Day()) {
		age--
	}
	return age
}

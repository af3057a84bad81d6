package models

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func validVoter() VoterRecord {
	return VoterRecord{
		UserID:      "482913",
		Name:        "Asha Rao",
		DateOfBirth: "1990-05-17",
		AddressDetails: AddressDetails{
			HouseNumber: "12",
			Area:        "MG Road",
			Town:        "Mysuru",
			Taluk:       "Mysuru",
			PinCode:     "570001",
		},
		AadhaarNumber: "123412341234",
		Email:         "asha@example.com",
		PhoneNumber:   "+919876543210",
	}
}

func TestVoterRecordValidate(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		mutate func(*VoterRecord)
		ok     bool
	}{
		{"valid", func(*VoterRecord) {}, true},
		{"missing name", func(v *VoterRecord) { v.Name = " " }, false},
		{"short aadhaar", func(v *VoterRecord) { v.AadhaarNumber = "12341234123" }, false},
		{"alpha aadhaar", func(v *VoterRecord) { v.AadhaarNumber = "12341234123a" }, false},
		{"phone without country code", func(v *VoterRecord) { v.PhoneNumber = "9876543210" }, false},
		{"phone bad leading digit", func(v *VoterRecord) { v.PhoneNumber = "+915876543210" }, false},
		{"bad email", func(v *VoterRecord) { v.Email = "asha" }, false},
		{"missing pin code", func(v *VoterRecord) { v.AddressDetails.PinCode = "" }, false},
		{"bad date", func(v *VoterRecord) { v.DateOfBirth = "17/05/1990" }, false},
		{"future date", func(v *VoterRecord) { v.DateOfBirth = "2030-01-01" }, false},
		{"turns 18 tomorrow", func(v *VoterRecord) { v.DateOfBirth = "2006-06-02" }, false},
		{"turns 18 today", func(v *VoterRecord) { v.DateOfBirth = "2006-06-01" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := validVoter()
			tt.mutate(&v)
			err := v.Validate(now)
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Equal(t, ErrInvalidRecord, errors.Cause(err))
		})
	}
}

func TestAddressDetailsEncoding(t *testing.T) {
	require := require.New(t)
	a := validVoter().AddressDetails
	require.Equal(a, ParseAddressDetails(a.EncodedAddress()))
	require.Equal(AddressDetails{Area: "somewhere"}, ParseAddressDetails("somewhere"))
}

func TestConfirmationMessage(t *testing.T) {
	require.Equal(t, "Confirm Vote 2 for candidate Asha Rao", ConfirmationMessage(2, "Asha Rao"))
	require.Equal(t, "0xabc-0xdef", SessionKey("0xABC", "0xDeF"))
}

func TestVoteTally(t *testing.T) {
	require := require.New(t)
	tally := VoteTally{"0xB": 2, "0xA": 3}
	require.Equal(5, tally.Total())
	require.Equal([]string{"0xA", "0xB"}, tally.Candidates())
	clone := tally.Clone()
	clone["0xA"]++
	require.Equal(3, tally["0xA"])
}

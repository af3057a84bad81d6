package models

import (
	"strings"

	"github.com/pkg/errors"
)

// CandidateBasicInfo mirrors the basic info tuple of the candidate registry contract
type CandidateBasicInfo struct {
	CandidateID       string `json:"candidateId"`
	Name              string `json:"name"`
	PartyName         string `json:"partyName"`
	IsIndependent     bool   `json:"isIndependent"`
	Manifesto         string `json:"manifesto"`
	AmbitionsAndGoals string `json:"ambitionsAndGoals"`
}

// CandidateAdditionalInfo mirrors the additional info tuple of the candidate registry contract
type CandidateAdditionalInfo struct {
	Experience        string `json:"experience"`
	PastAchievements  string `json:"pastAchievements"`
	ContactInfo       string `json:"contactInfo"`
	SocialMediaLinks  string `json:"socialMediaLinks"`
	CandidateImageURL string `json:"candidateImageUrl"`
	PartySymbolURL    string `json:"partySymbolUrl"`
}

// CandidateMetadata is the registration metadata kept by the contract
type CandidateMetadata struct {
	WalletAddress         string `json:"walletAddress"`
	RegistrationTimestamp int64  `json:"registrationTimestamp"`
	IsRegistered          bool   `json:"isRegistered"`
	ContentHash           string `json:"ipfsHash"`
}

// CandidateProfile is the document pinned to IPFS at candidate registration
type CandidateProfile struct {
	BasicInfo      CandidateBasicInfo      `json:"basicInfo"`
	AdditionalInfo CandidateAdditionalInfo `json:"additionalInfo"`
}

// CandidateRecord is a candidate profile joined with its directory or ledger metadata
type CandidateRecord struct {
	Address        string                  `json:"address"`
	BasicInfo      CandidateBasicInfo      `json:"basicInfo"`
	AdditionalInfo CandidateAdditionalInfo `json:"additionalInfo"`
	Metadata       *CandidateMetadata      `json:"metadata,omitempty"`
	ContentHash    string                  `json:"cid,omitempty"`
}

// DirectoryEntry points at a pinned candidate profile
type DirectoryEntry struct {
	CID     string `json:"cid"`
	Address string `json:"address"`
}

// DisplayParty returns the party label shown for the candidate
func (b CandidateBasicInfo) DisplayParty() string {
	if b.IsIndependent {
		return "Independent"
	}
	return b.PartyName
}

// Validate checks that a profile carries the fields a listing needs
func (p *CandidateProfile) Validate() error {
	if strings.TrimSpace(p.BasicInfo.Name) == "" {
		return errors.Wrap(ErrInvalidRecord, "candidate name is required")
	}
	if !p.BasicInfo.IsIndependent && strings.TrimSpace(p.BasicInfo.PartyName) == "" {
		return errors.Wrap(ErrInvalidRecord, "party name is required for non-independent candidates")
	}
	return nil
}

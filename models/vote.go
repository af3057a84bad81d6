package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// VoteTally maps candidate addresses to their cached vote counts
type VoteTally map[string]int

// Total returns the sum of all counts
func (t VoteTally) Total() int {
	total := 0
	for _, c := range t {
		total += c
	}
	return total
}

// Clone returns an independent copy of the tally
func (t VoteTally) Clone() VoteTally {
	out := make(VoteTally, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Candidates returns the tallied addresses in sorted order
func (t VoteTally) Candidates() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// VoteCounts is the response shape of the vote count endpoint
type VoteCounts struct {
	VoteCounts VoteTally `json:"voteCounts"`
	TotalVotes int       `json:"totalVotes"`
	CID        string    `json:"cid,omitempty"`
}

// VoteSession tracks a voter's progress through the two-step confirmation
type VoteSession struct {
	CandidateAddress string    `json:"candidateAddress"`
	VoterAddress     string    `json:"voterAddress"`
	Step             int       `json:"step"`
	Signatures       []string  `json:"signatures"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// SessionKey builds the composite key of a vote session
func SessionKey(voterAddress, candidateAddress string) string {
	return strings.ToLower(voterAddress) + "-" + strings.ToLower(candidateAddress)
}

// ConfirmationMessage is the human readable text signed at each confirmation step
func ConfirmationMessage(step int, candidateName string) string {
	return fmt.Sprintf("Confirm Vote %d for candidate %s", step, candidateName)
}

// VoteStep is one signed confirmation step reported to the session endpoint
type VoteStep struct {
	CandidateAddress string `json:"candidateAddress"`
	VoterAddress     string `json:"voterAddress"`
	Signature        string `json:"signature"`
	Step             int    `json:"step"`
}

// VoteStepResult is the session endpoint's reply to a step
type VoteStepResult struct {
	Message    string `json:"message"`
	Step       int    `json:"step"`
	Commitment string `json:"commitment,omitempty"`
}

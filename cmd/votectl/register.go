package main

import (
	"mime"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"chainvote-backend/models"
	"chainvote-backend/service"
)

func registerVoterCmd() *cobra.Command {
	var (
		record  models.VoterRecord
		picture string
	)
	cmd := &cobra.Command{
		Use:   "register-voter",
		Short: "Pin a voter record and register the account on the voter registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			s, err := openSession(ctx, true)
			if err != nil {
				return err
			}
			defer s.Close()

			var upload *service.Upload
			if picture != "" {
				f, err := os.Open(picture)
				if err != nil {
					return errors.Wrap(err, "failed to open profile picture")
				}
				defer f.Close()
				upload = &service.Upload{
					Reader:   f,
					Filename: filepath.Base(picture),
					MimeType: mime.TypeByExtension(filepath.Ext(picture)),
				}
			}
			reg, err := s.svc.RegisterVoter(ctx, record, upload)
			if err != nil {
				return err
			}
			color.Green("Voter %s registered", s.gateway.Account().Hex())
			renderRegistration(cmd.OutOrStdout(), reg)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&record.UserID, "user-id", "", "user id")
	f.StringVar(&record.Name, "name", "", "full name")
	f.StringVar(&record.DateOfBirth, "dob", "", "date of birth, YYYY-MM-DD")
	f.StringVar(&record.AddressDetails.HouseNumber, "house", "", "house number")
	f.StringVar(&record.AddressDetails.Area, "area", "", "area")
	f.StringVar(&record.AddressDetails.Town, "town", "", "town")
	f.StringVar(&record.AddressDetails.Taluk, "taluk", "", "taluk")
	f.StringVar(&record.AddressDetails.PinCode, "pincode", "", "pin code")
	f.StringVar(&record.AadhaarNumber, "aadhaar", "", "12 digit Aadhaar number")
	f.StringVar(&record.Email, "email", "", "email address")
	f.StringVar(&record.PhoneNumber, "phone", "", "phone number, +91XXXXXXXXXX")
	f.StringVar(&picture, "picture", "", "profile picture file")
	for _, name := range []string{"name", "dob", "aadhaar"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func registerCandidateCmd() *cobra.Command {
	var (
		basic      models.CandidateBasicInfo
		additional models.CandidateAdditionalInfo
	)
	cmd := &cobra.Command{
		Use:   "register-candidate",
		Short: "Pin a candidate profile, list it in the directory and register on the candidate registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			s, err := openSession(ctx, true)
			if err != nil {
				return err
			}
			defer s.Close()

			reg, err := s.svc.RegisterCandidate(ctx, basic, additional)
			if err != nil {
				return err
			}
			color.Green("Candidate %s registered", s.gateway.Account().Hex())
			renderRegistration(cmd.OutOrStdout(), reg)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&basic.CandidateID, "candidate-id", "", "candidate id")
	f.StringVar(&basic.Name, "name", "", "candidate name")
	f.StringVar(&basic.PartyName, "party", "", "party name")
	f.BoolVar(&basic.IsIndependent, "independent", false, "stand as an independent")
	f.StringVar(&basic.Manifesto, "manifesto", "", "manifesto")
	f.StringVar(&basic.AmbitionsAndGoals, "goals", "", "ambitions and goals")
	f.StringVar(&additional.Experience, "experience", "", "experience")
	f.StringVar(&additional.PastAchievements, "achievements", "", "past achievements")
	f.StringVar(&additional.ContactInfo, "contact", "", "contact info")
	f.StringVar(&additional.SocialMediaLinks, "social", "", "social media links")
	f.StringVar(&additional.CandidateImageURL, "image-url", "", "candidate image URL")
	f.StringVar(&additional.PartySymbolURL, "symbol-url", "", "party symbol URL")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

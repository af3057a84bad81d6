package main

import (
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"chainvote-backend/confirm"
	"chainvote-backend/directory"
	"chainvote-backend/ledger"
	"chainvote-backend/models"
	"chainvote-backend/service"
)

func candidatesCmd() *cobra.Command {
	var fromLedger bool
	cmd := &cobra.Command{
		Use:   "candidates",
		Short: "List candidates from the directory, or from the ledger with --ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			client := newClient()
			if fromLedger {
				records, err := client.Candidates(ctx)
				if err != nil {
					return err
				}
				renderCandidates(cmd.OutOrStdout(), &directory.Listing{Candidates: records})
				return nil
			}
			listing, err := client.ResolvedCandidates(ctx)
			if err != nil {
				return err
			}
			renderCandidates(cmd.OutOrStdout(), listing)
			return nil
		},
	}
	cmd.Flags().BoolVar(&fromLedger, "ledger", false, "read the candidate registry instead of the directory")
	return cmd
}

func resultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "results",
		Short: "Show the cached vote tally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			client := newClient()
			counts, err := client.VoteCounts(ctx)
			if err != nil {
				return err
			}
			names := map[string]string{}
			if listing, err := client.ResolvedCandidates(ctx); err != nil {
				printErrorf("Candidate names unavailable: %v", err)
			} else {
				for _, c := range listing.Candidates {
					names[c.Address] = c.BasicInfo.Name
				}
			}
			renderResults(cmd.OutOrStdout(), counts, names)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [ADDRESS]",
		Short: "Show the registration and voting state of an account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			s, err := openSession(ctx, len(args) == 0)
			if err != nil {
				return err
			}
			defer s.Close()

			account := s.gateway.Account()
			if len(args) == 1 {
				if account, err = ledger.ParseAddress(args[0]); err != nil {
					return err
				}
			}
			st, err := s.svc.VoterStatus(ctx, account)
			if err != nil {
				return err
			}
			renderStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

func renderCandidates(w io.Writer, listing *directory.Listing) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Address", "Name", "Party", "CID"})
	for _, c := range listing.Candidates {
		table.Append([]string{c.Address, c.BasicInfo.Name, c.BasicInfo.DisplayParty(), c.ContentHash})
	}
	table.Render()
	for _, f := range listing.Failed {
		printErrorf("Skipped %s (%s): %s", f.Entry.CID, f.Entry.Address, f.Error)
	}
}

func renderResults(w io.Writer, counts *models.VoteCounts, names map[string]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Candidate", "Name", "Votes"})
	for _, addr := range counts.VoteCounts.Candidates() {
		table.Append([]string{addr, names[addr], strconv.Itoa(counts.VoteCounts[addr])})
	}
	table.SetFooter([]string{"", "Total", strconv.Itoa(counts.TotalVotes)})
	table.Render()
}

func renderStatus(w io.Writer, st *service.VoterStatus) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Address", "Chain", "Registered", "Voted", "Candidate"})
	table.Append([]string{st.Address, st.ChainID, yesNo(st.Registered), yesNo(st.HasVoted), yesNo(st.IsCandidate)})
	table.Render()
}

func renderRegistration(w io.Writer, reg *service.Registration) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Transaction", "Block", "IPFS Hash", "Picture"})
	var tx, block string
	if reg.Receipt != nil {
		tx, block = reg.Receipt.TxHash, strconv.FormatUint(reg.Receipt.BlockNumber, 10)
	}
	table.Append([]string{tx, block, reg.ContentHash, reg.PictureURL})
	table.Render()
}

func renderOutcome(w io.Writer, out *confirm.Outcome) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Transaction", "Block", "Voted", "Candidate Total", "Commitment"})
	var tx, block string
	if out.Receipt != nil {
		tx, block = out.Receipt.TxHash, strconv.FormatUint(out.Receipt.BlockNumber, 10)
	}
	table.Append([]string{tx, block, yesNo(out.HasVoted), strconv.Itoa(out.CandidateTotal), out.Commitment})
	table.Render()
}

func yesNo(b bool) string {
	if b {
		return color.GreenString("yes")
	}
	return color.RedString("no")
}

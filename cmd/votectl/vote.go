package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"chainvote-backend/confirm"
	"chainvote-backend/models"
	"chainvote-backend/wallet"
)

func voteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "vote CANDIDATE_ADDRESS",
		Short: "Vote for a candidate with two signed confirmations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(args[0]) {
				return errors.Wrapf(models.ErrInvalidRecord, "invalid candidate address %q", args[0])
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			s, err := openSession(ctx, true)
			if err != nil {
				return err
			}
			defer s.Close()

			listing, err := s.client.ResolvedCandidates(ctx)
			if err != nil {
				return err
			}
			candidate := findCandidate(listing.Candidates, common.HexToAddress(args[0]))
			if candidate == nil {
				return errors.Errorf("candidate %s is not in the directory", args[0])
			}

			key, err := wallet.KeyFromHex(s.keyHex)
			if err != nil {
				return err
			}
			signer := wallet.NewKeySigner(key)
			prompt := &wallet.PromptSigner{Signer: signer, Approve: approver(yes, cmd.InOrStdin(), cmd.OutOrStdout())}
			m, err := confirm.NewMachine(prompt, s.gateway,
				confirm.WithReporter(s.client),
				confirm.WithTally(s.client.Tally(signer.Address().Hex())))
			if err != nil {
				return err
			}
			if err := m.Select(candidate); err != nil {
				return err
			}
			color.Cyan("Voting for %s (%s)", candidate.BasicInfo.Name, candidate.BasicInfo.DisplayParty())
			if _, err := m.Confirm(ctx); err != nil {
				return err
			}
			color.Cyan("First confirmation recorded")
			out, err := m.Confirm(ctx)
			if out != nil {
				renderOutcome(cmd.OutOrStdout(), out)
			}
			if err != nil {
				if errors.Cause(err) == confirm.ErrTallyUpdate {
					printErrorf("Vote cast, but the cached tally was not updated: %v", err)
					return nil
				}
				return err
			}
			color.Green("Vote cast")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "sign both confirmations without prompting")
	return cmd
}

func findCandidate(records []*models.CandidateRecord, addr common.Address) *models.CandidateRecord {
	for _, r := range records {
		if common.IsHexAddress(r.Address) && common.HexToAddress(r.Address) == addr {
			return r
		}
	}
	return nil
}

// approver asks on in before each signature unless yes is set
func approver(yes bool, in io.Reader, out io.Writer) func(string) bool {
	if yes {
		return nil
	}
	reader := bufio.NewReader(in)
	return func(message string) bool {
		fmt.Fprintf(out, "Sign %q? [y/N] ", message)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		default:
			return false
		}
	}
}

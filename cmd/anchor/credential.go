package main

import (
	"math/big"

	"github.com/spf13/cobra"

	"campusLedger/internal/contracts"
)

func credentialCommands() []*cobra.Command {
	issueCmd := &cobra.Command{
		Use:   "issue <student-address> <credential-type>",
		Short: "Issue a credential and print its ledger id",
		Args:  cobra.ExactArgs(2),
		RunE:  runIssue,
	}
	issueCmd.Flags().String("data", "{}", "credential payload stored on chain")
	issueCmd.Flags().String("expires-at", "0", "expiry as unix seconds, 0 means never")

	revokeCmd := &cobra.Command{
		Use:   "revoke <credential-id>",
		Short: "Revoke a credential",
		Args:  cobra.ExactArgs(1),
		RunE:  runRevoke,
	}

	verifyCmd := &cobra.Command{
		Use:   "verify <credential-id>",
		Short: "Check whether a credential is valid",
		Args:  cobra.ExactArgs(1),
		RunE:  runVerify,
	}

	getCmd := &cobra.Command{
		Use:   "credential <credential-id>",
		Short: "Read a credential record",
		Args:  cobra.ExactArgs(1),
		RunE:  runGetCredential,
	}

	return []*cobra.Command{issueCmd, revokeCmd, verifyCmd, getCmd}
}

func runIssue(cmd *cobra.Command, args []string) error {
	data, _ := cmd.Flags().GetString("data")
	expiresRaw, _ := cmd.Flags().GetString("expires-at")
	expiresAt, err := parseUint256("expires-at", expiresRaw)
	if err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	result, err := s.client.IssueCredential(s.ctx, args[0], args[1], data, expiresAt)
	return s.finishWrite(contracts.MethodIssueCredential, s.credentialContract, result, err)
}

func runRevoke(cmd *cobra.Command, args []string) error {
	id, err := parseUint256("credential-id", args[0])
	if err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	result, err := s.client.RevokeCredential(s.ctx, id)
	return s.finishWrite(contracts.MethodRevokeCredential, s.credentialContract, result, err)
}

func runVerify(cmd *cobra.Command, args []string) error {
	id, err := parseUint256("credential-id", args[0])
	if err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	valid, err := s.client.VerifyCredential(s.ctx, id)
	if err != nil {
		return err
	}
	return printJSON(cmd, struct {
		CredentialID *big.Int `json:"credential_id"`
		Valid        bool     `json:"valid"`
	}{CredentialID: id, Valid: valid})
}

func runGetCredential(cmd *cobra.Command, args []string) error {
	id, err := parseUint256("credential-id", args[0])
	if err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	record, err := s.client.GetCredential(s.ctx, id)
	if err != nil {
		return err
	}
	return printJSON(cmd, record)
}

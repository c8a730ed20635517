package anchor

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"campusLedger/internal/contracts"
	"campusLedger/internal/events"
	"campusLedger/internal/model"
)

// IssueCredential anchors a credential for studentAddress and recovers the
// id the contract assigned to it.
func (c *Client) IssueCredential(ctx context.Context, studentAddress, credentialType, credentialData string, expiresAt *big.Int) (WriteResult, error) {
	student, err := model.ParseAddress(studentAddress)
	if err != nil {
		return WriteResult{}, err
	}
	if expiresAt == nil {
		expiresAt = new(big.Int)
	}

	result, receipt, err := c.write(ctx, c.credential, contracts.MethodIssueCredential, student, credentialType, credentialData, expiresAt)
	if err != nil {
		return result, err
	}

	c.correlate(ctx, &result, receipt, c.credential, contracts.EventCredentialIssued, "credentialId", contracts.MethodCredentialCount, []events.Key{
		{Field: "studentAddress", Value: student},
		{Field: "credentialType", Value: credentialType},
	})
	c.logger.Info("credential issued",
		zap.String("tx_hash", result.TxHash.Hex()),
		zap.String("student", model.FormatAddress(student)),
		zap.String("credential_type", credentialType),
		zap.Stringer("credential_id", result.LedgerID),
		zap.Bool("best_effort", result.BestEffort),
	)
	return result, nil
}

// RevokeCredential marks a credential revoked on chain.
func (c *Client) RevokeCredential(ctx context.Context, credentialID *big.Int) (WriteResult, error) {
	if credentialID == nil {
		return WriteResult{}, fmt.Errorf("credential id is required")
	}
	result, _, err := c.write(ctx, c.credential, contracts.MethodRevokeCredential, credentialID)
	if err != nil {
		return result, err
	}
	result.LedgerID = new(big.Int).Set(credentialID)
	return result, nil
}

// VerifyCredential asks the contract whether a credential is currently valid.
func (c *Client) VerifyCredential(ctx context.Context, credentialID *big.Int) (bool, error) {
	if credentialID == nil {
		return false, fmt.Errorf("credential id is required")
	}
	out, err := c.call(ctx, c.credential, contracts.MethodVerifyCredential, credentialID)
	if err != nil {
		return false, err
	}
	values, err := c.credential.ABI.Unpack(contracts.MethodVerifyCredential, out)
	if err != nil {
		return false, &model.AbiDecodeError{Field: contracts.MethodVerifyCredential, Reason: err.Error()}
	}
	if len(values) != 1 {
		return false, &model.AbiDecodeError{Field: contracts.MethodVerifyCredential, Reason: fmt.Sprintf("expected 1 value, got %d", len(values))}
	}
	valid, ok := values[0].(bool)
	if !ok {
		return false, &model.AbiDecodeError{Field: contracts.MethodVerifyCredential, Reason: fmt.Sprintf("unexpected type %T", values[0])}
	}
	return valid, nil
}

// GetCredential reads and decodes a credential record.
func (c *Client) GetCredential(ctx context.Context, credentialID *big.Int) (model.CredentialRecord, error) {
	if credentialID == nil {
		return model.CredentialRecord{}, fmt.Errorf("credential id is required")
	}
	out, err := c.call(ctx, c.credential, contracts.MethodGetCredential, credentialID)
	if err != nil {
		return model.CredentialRecord{}, err
	}
	return contracts.DecodeCredential(out)
}

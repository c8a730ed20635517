package contracts

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const credentialABIJSON = `[
  {
    "inputs": [
      {"internalType": "address", "name": "studentAddress", "type": "address"},
      {"internalType": "string", "name": "credentialType", "type": "string"},
      {"internalType": "string", "name": "credentialData", "type": "string"},
      {"internalType": "uint256", "name": "expiresAt", "type": "uint256"}
    ],
    "name": "issueCredential",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "credentialId", "type": "uint256"}],
    "name": "revokeCredential",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "credentialId", "type": "uint256"}],
    "name": "verifyCredential",
    "outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "credentialId", "type": "uint256"}],
    "name": "getCredential",
    "outputs": [
      {
        "components": [
          {"internalType": "uint256", "name": "credentialId", "type": "uint256"},
          {"internalType": "address", "name": "studentAddress", "type": "address"},
          {"internalType": "string", "name": "credentialType", "type": "string"},
          {"internalType": "string", "name": "credentialData", "type": "string"},
          {"internalType": "uint8", "name": "status", "type": "uint8"},
          {"internalType": "address", "name": "issuedBy", "type": "address"},
          {"internalType": "uint256", "name": "issuedAt", "type": "uint256"},
          {"internalType": "uint256", "name": "expiresAt", "type": "uint256"}
        ],
        "internalType": "struct Credential",
        "name": "",
        "type": "tuple"
      }
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "credentialCount",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "credentialId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "studentAddress", "type": "address"},
      {"indexed": false, "internalType": "string", "name": "credentialType", "type": "string"},
      {"indexed": true, "internalType": "address", "name": "issuedBy", "type": "address"}
    ],
    "name": "CredentialIssued",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "credentialId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "revokedBy", "type": "address"}
    ],
    "name": "CredentialRevoked",
    "type": "event"
  }
]`

// Credential contract method and event names.
const (
	MethodIssueCredential  = "issueCredential"
	MethodRevokeCredential = "revokeCredential"
	MethodVerifyCredential = "verifyCredential"
	MethodGetCredential    = "getCredential"
	MethodCredentialCount  = "credentialCount"

	EventCredentialIssued  = "CredentialIssued"
	EventCredentialRevoked = "CredentialRevoked"
)

var (
	credentialABI     abi.ABI
	credentialABIOnce sync.Once
	credentialABIErr  error
)

// CredentialABI returns the parsed credential registry ABI.
func CredentialABI() (abi.ABI, error) {
	credentialABIOnce.Do(func() {
		credentialABI, credentialABIErr = abi.JSON(strings.NewReader(credentialABIJSON))
	})
	return credentialABI, credentialABIErr
}

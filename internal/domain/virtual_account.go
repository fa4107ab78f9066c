/**
 * @description
 * This file defines the virtual account domain model. A virtual account is a set
 * of dedicated bank account numbers reserved for one user; inbound bank-transfer
 * webhooks are attributed to a user by looking up the destination account number.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// VirtualAccountBank is one dedicated account number at a partner bank.
type VirtualAccountBank struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

// VirtualAccount maps to the `virtual_accounts` table plus its
// `virtual_account_numbers` child rows (indexed by account_number).
type VirtualAccount struct {
	ID               uuid.UUID            `json:"id"`
	UserID           uuid.UUID            `json:"user_id"`
	AccountReference string               `json:"account_reference"`
	Banks            []VirtualAccountBank `json:"banks"`
	Status           string               `json:"status"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// ReserveVirtualAccountRequest is the DTO for virtual account provisioning.
type ReserveVirtualAccountRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	BVN   string `json:"bvn,omitempty"`
}

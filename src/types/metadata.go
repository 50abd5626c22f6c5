package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// PayoutMethodMetadata is a closed union over the destination details a
// seller can register. The Type discriminator selects which branch is
// populated; Validate rejects payloads that mix or miss branches.
type PayoutMethodMetadata struct {
	Type        PayoutMethodType       `json:"type"`
	BankAccount *UruguayanBankMetadata `json:"bank_account,omitempty"`
	PayPal      *PayPalMetadata        `json:"paypal,omitempty"`
}

type UruguayanBankMetadata struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountHolder string `json:"account_holder"`
	Branch        string `json:"branch,omitempty"`
}

type PayPalMetadata struct {
	Email string `json:"email"`
}

func (m PayoutMethodMetadata) Validate() error {
	switch m.Type {
	case PAYOUT_METHOD_BANK_ACCOUNT:
		if m.BankAccount == nil {
			return errors.New("bank_account metadata is required")
		}
		if m.PayPal != nil {
			return errors.New("paypal metadata is not allowed for bank_account")
		}
		if m.BankAccount.BankName == "" || m.BankAccount.AccountNumber == "" || m.BankAccount.AccountHolder == "" {
			return errors.New("bank_account metadata is incomplete")
		}
	case PAYOUT_METHOD_PAYPAL:
		if m.PayPal == nil {
			return errors.New("paypal metadata is required")
		}
		if m.BankAccount != nil {
			return errors.New("bank_account metadata is not allowed for paypal")
		}
		if m.PayPal.Email == "" {
			return errors.New("paypal metadata is incomplete")
		}
	default:
		return fmt.Errorf("unknown payout method type %q", m.Type)
	}
	return nil
}

func (m PayoutMethodMetadata) Value() (driver.Value, error) {
	valueString, err := json.Marshal(m)
	return string(valueString), err
}

func (m *PayoutMethodMetadata) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	return nil
}

/**
 * @description
 * Wire-level request/response models for the MTN MoMo API. These mirror the
 * gateway's JSON shapes exactly; amounts are fixed-point decimal strings on the
 * wire ("50.00"), never floats.
 */
package domain

// Party id types accepted by the gateway.
const (
	PartyIDTypeMSISDN = "msisdn"
	PartyIDTypeEmail  = "email"
)

// Gateway transaction statuses as transmitted over the wire.
const (
	GatewayStatusPending    = "PENDING"
	GatewayStatusSuccessful = "SUCCESSFUL"
	GatewayStatusFailed     = "FAILED"
	GatewayStatusCancelled  = "CANCELLED"
)

// LedgerStatusForGateway maps a gateway status onto the internal ledger status.
// The second return value is false for statuses the ledger does not recognize.
func LedgerStatusForGateway(gatewayStatus string) (string, bool) {
	switch gatewayStatus {
	case GatewayStatusPending:
		return StatusPending, true
	case GatewayStatusSuccessful:
		return StatusSuccessful, true
	case GatewayStatusFailed:
		return StatusFailed, true
	case GatewayStatusCancelled:
		return StatusCancelled, true
	}
	return "", false
}

// MoMoParty identifies one side of a payment.
type MoMoParty struct {
	PartyIDType string `json:"partyIdType"`
	PartyID     string `json:"partyId"`
}

// MoMoPayment is the request body for request-to-pay (payer set) and transfer
// (payee set). ExternalID is the caller-supplied idempotency key.
type MoMoPayment struct {
	Amount       string     `json:"amount"`
	Currency     string     `json:"currency"`
	ExternalID   string     `json:"externalId"`
	Payer        *MoMoParty `json:"payer,omitempty"`
	Payee        *MoMoParty `json:"payee,omitempty"`
	PayerMessage string     `json:"payerMessage,omitempty"`
	PayeeNote    string     `json:"payeeNote,omitempty"`
}

// GatewayTransactionStatus is the gateway's authoritative view of one payment
// attempt, fetched by reference id.
type GatewayTransactionStatus struct {
	Amount                 string     `json:"amount"`
	Currency               string     `json:"currency"`
	ExternalID             string     `json:"externalId"`
	Payer                  *MoMoParty `json:"payer,omitempty"`
	Payee                  *MoMoParty `json:"payee,omitempty"`
	Status                 string     `json:"status"`
	Reason                 string     `json:"reason,omitempty"`
	FinancialTransactionID string     `json:"financialTransactionId,omitempty"`
}

// MoMoAccessToken is the token endpoint response.
type MoMoAccessToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"` // seconds
}

// AccountBalance is the balance endpoint response.
type AccountBalance struct {
	AvailableBalance string `json:"availableBalance"`
	Currency         string `json:"currency"`
}

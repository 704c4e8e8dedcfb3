package domain

import "strings"

// PurposeKind is the closed set of known payment purposes. Anything outside the
// set is carried as PurposeOther with the raw tag preserved, so unknown tags
// survive a round trip through the ledger without losing type safety for the
// known cases.
type PurposeKind string

const (
	PurposeCVGeneration PurposeKind = "cv_generation"
	PurposeCoverLetter  PurposeKind = "cover_letter"
	PurposeJobAlerts    PurposeKind = "job_alerts"
	PurposeOther        PurposeKind = "other"
)

const purposePrefix = "ai_service_"

// Purpose tags a transaction with the service it pays for.
type Purpose struct {
	Kind PurposeKind
	Tag  string // raw tag, only meaningful when Kind == PurposeOther
}

// PurposeForService builds the purpose for a catalog service type.
func PurposeForService(serviceType string) Purpose {
	switch PurposeKind(serviceType) {
	case PurposeCVGeneration, PurposeCoverLetter, PurposeJobAlerts:
		return Purpose{Kind: PurposeKind(serviceType)}
	}
	return Purpose{Kind: PurposeOther, Tag: serviceType}
}

// ParsePurpose decodes the purpose column value stored in the ledger.
func ParsePurpose(raw string) Purpose {
	tag := strings.TrimPrefix(raw, purposePrefix)
	switch PurposeKind(tag) {
	case PurposeCVGeneration, PurposeCoverLetter, PurposeJobAlerts:
		return Purpose{Kind: PurposeKind(tag)}
	}
	return Purpose{Kind: PurposeOther, Tag: raw}
}

// String returns the ledger representation of the purpose.
func (p Purpose) String() string {
	if p.Kind == PurposeOther {
		return p.Tag
	}
	return purposePrefix + string(p.Kind)
}

// IsServicePurchase reports whether the purpose refers to a purchasable
// catalog service (and therefore has a backing entitlement).
func (p Purpose) IsServicePurchase() bool {
	return p.Kind != PurposeOther
}

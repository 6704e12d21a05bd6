package common

const (
	TransactionActionPreauthorization = "preauthorization"
	TransactionActionPayin            = "payin"
	TransactionActionTransfer         = "transfer"
	TransactionActionPayout           = "payout"

	TransactionLabelPayment        = "payment"
	TransactionLabelDeposit        = "deposit"
	TransactionLabelDepositPayment = "deposit-payment"
	TransactionLabelRenewDeposit   = "renew-deposit"
	TransactionLabelTakerFees      = "taker-fees"

	OperationDeposit        = "deposit"
	OperationPayment        = "payment"
	OperationDepositPayment = "deposit-payment"

	PaymentProviderStripe   = "stripe"
	PaymentProviderMangopay = "mangopay"

	CancellationReasonRejected          = "rejected"
	CancellationReasonTakerCancellation = "taker-cancellation"
	CancellationReasonNoPayment         = "no-payment"
	CancellationReasonNoActionTaker     = "no-action-taker"
	CancellationReasonAssessmentMissed  = "assessment-missed"
	CancellationReasonAssessmentRefused = "assessment-refused"
	CancellationReasonUserRemoved       = "user-removed"
	CancellationReasonItemRemoved       = "item-removed"
	CancellationReasonItemSold          = "item-sold"
	CancellationReasonOtherBookingFirst = "other-booking-first"
	CancellationReasonOutOfStock        = "out-of-stock"
	CancellationReasonForbidden         = "forbidden"
	CancellationReasonOther             = "other"

	CancellationTriggerOwner  = "owner"
	CancellationTriggerTaker  = "taker"
	CancellationTriggerAdmin  = "admin"
	CancellationTriggerSystem = "system"

	AgreementStatusPending         = "pending"
	AgreementStatusAgreed          = "agreed"
	AgreementStatusRejected        = "rejected"
	AgreementStatusRejectedByOther = "rejected-by-other"
	AgreementStatusCancelled       = "cancelled"

	EventPaymentCompleted  = "payment_completed"
	EventDepositSecured    = "deposit_secured"
	EventBookingCancelled  = "booking_cancelled"
	EventTransferCompleted = "transfer_completed"
	EventPayoutCompleted   = "payout_completed"
)

// CancellationReasons is the closed set accepted by the cancellation engine.
var CancellationReasons = map[string]bool{
	CancellationReasonRejected:          true,
	CancellationReasonTakerCancellation: true,
	CancellationReasonNoPayment:         true,
	CancellationReasonNoActionTaker:     true,
	CancellationReasonAssessmentMissed:  true,
	CancellationReasonAssessmentRefused: true,
	CancellationReasonUserRemoved:       true,
	CancellationReasonItemRemoved:       true,
	CancellationReasonItemSold:          true,
	CancellationReasonOtherBookingFirst: true,
	CancellationReasonOutOfStock:        true,
	CancellationReasonForbidden:         true,
	CancellationReasonOther:             true,
}

var CancellationTriggers = map[string]bool{
	CancellationTriggerOwner:  true,
	CancellationTriggerTaker:  true,
	CancellationTriggerAdmin:  true,
	CancellationTriggerSystem: true,
}

var PaymentProviders = map[string]bool{
	PaymentProviderStripe:   true,
	PaymentProviderMangopay: true,
}

package model

// ClickStage is the webhook phase Click is calling.
type ClickStage string

const (
	ClickPrepare  ClickStage = "prepare"
	ClickComplete ClickStage = "complete"
)

// Click action codes carried in the "action" field.
const (
	ClickActionPrepare  = 0
	ClickActionComplete = 1
)

// Reply codes understood by Click.
const (
	ClickOK              = 0
	ClickSignatureFailed = -1
	ClickAmountInvalid   = -2
	ClickActionNotFound  = -3
	ClickNotFound        = -5 // service or merchant
	ClickMissingField    = -8
	ClickTransactionErr  = -9 // unknown transaction, conflict or internal failure
)

// Click reports its own processor failures on complete with an error below this value.
const ClickProcessorFailureThreshold = -5000

// Inbound field names.
const (
	ClickFieldTransID           = "click_trans_id"
	ClickFieldServiceID         = "service_id"
	ClickFieldPaydocID          = "click_paydoc_id"
	ClickFieldMerchantTransID   = "merchant_trans_id"
	ClickFieldTransactionParam  = "transaction_param"
	ClickFieldMerchantPrepareID = "merchant_prepare_id"
	ClickFieldMerchantID        = "merchant_id"
	ClickFieldAmount            = "amount"
	ClickFieldAction            = "action"
	ClickFieldError             = "error"
	ClickFieldErrorNote         = "error_note"
	ClickFieldSignTime          = "sign_time"
	ClickFieldSignString        = "sign_string"
)

// ClickRequiredFields lists what each stage must carry before anything else is checked.
var ClickRequiredFields = map[ClickStage][]string{
	ClickPrepare: {
		ClickFieldTransID, ClickFieldServiceID, ClickFieldMerchantTransID,
		ClickFieldAmount, ClickFieldAction, ClickFieldSignTime, ClickFieldSignString,
	},
	// merchant_trans_id may be blank on complete; it is recovered from the ledger.
	ClickComplete: {
		ClickFieldTransID, ClickFieldServiceID, ClickFieldMerchantPrepareID,
		ClickFieldAmount, ClickFieldAction, ClickFieldError, ClickFieldSignTime, ClickFieldSignString,
	},
}

// ClickResponse is the JSON body returned to Click for both stages. Exactly
// one of MerchantPrepareID and MerchantConfirmID is set.
type ClickResponse struct {
	Error             int    `json:"error"`
	ErrorNote         string `json:"error_note"`
	ClickTransID      int64  `json:"click_trans_id"`
	MerchantTransID   string `json:"merchant_trans_id"`
	MerchantPrepareID *int64 `json:"merchant_prepare_id,omitempty"`
	MerchantConfirmID *int64 `json:"merchant_confirm_id,omitempty"`
}

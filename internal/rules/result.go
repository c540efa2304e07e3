package rules

// Decision is the recommended outcome for a claim.
type Decision string

const (
	DecisionApprove       Decision = "APPROVE_RECOMMENDED"
	DecisionReject        Decision = "REJECT_RECOMMENDED"
	DecisionNeedsMoreInfo Decision = "NEEDS_MORE_INFO"
)

// Status is the compliance verdict of one line.
type Status string

const (
	StatusCompliant    Status = "COMPLIANT"
	StatusNonCompliant Status = "NON_COMPLIANT"
)

// Issue codes raised by the deterministic checks.
const (
	CodeSubmissionLate                  = "SUBMISSION_LATE"
	CodeMissingReceipt                  = "MISSING_RECEIPT"
	CodeMealCapExceeded                 = "MEAL_CAP_EXCEEDED"
	CodeLodgingCapExceededNoPreapproval = "LODGING_CAP_EXCEEDED_NO_PREAPPROVAL"
	CodeMissingItemizedInvoice          = "MISSING_ITEMIZED_INVOICE"
	CodeMissingAttendees                = "MISSING_ATTENDEES"
	CodeMissingReceiptEntertainment     = "MISSING_RECEIPT_ENTERTAINMENT"
	CodeMissingMileageKM                = "MISSING_MILEAGE_KM"
	CodeMileageAmountMismatch           = "MILEAGE_AMOUNT_MISMATCH"
)

// Approver roles.
const (
	RoleManager = "MANAGER"
	RoleFinance = "FINANCE"
)

type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type LineResult struct {
	LineID string  `json:"line_id"`
	Status Status  `json:"status"`
	Issues []Issue `json:"issues"`
}

// HasIssue reports whether the line raised the given code.
func (r LineResult) HasIssue(code string) bool {
	for _, i := range r.Issues {
		if i.Code == code {
			return true
		}
	}
	return false
}

// EvaluationResult is the deterministic verdict for a claim. LineResults keep
// the claim's line order.
type EvaluationResult struct {
	Decision      Decision     `json:"decision"`
	ClaimTotal    float64      `json:"claim_total"`
	ApprovalRoute []string     `json:"approval_route"`
	LineResults   []LineResult `json:"line_results"`
	MissingInfo   []string     `json:"missing_info"`
}

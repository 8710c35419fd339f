package booking

// Stage is the current step of the booking lifecycle. Each stage maps to one
// mutually exclusive client screen with its own required inputs.
type Stage string

const (
	StageIdle                 Stage = "idle"
	StageCategorySelected     Stage = "category_selected"
	StageSubServiceSelected   Stage = "sub_service_selected"
	StageWorkerSelected       Stage = "worker_selected"
	StageAwaitingAcceptance   Stage = "awaiting_acceptance"
	StageAccepted             Stage = "accepted"
	StageTracking             Stage = "tracking"
	StageAwaitingVerification Stage = "awaiting_verification"
	StageInProgress           Stage = "in_progress"
	StageAwaitingPayment      Stage = "awaiting_payment"
	StageAwaitingRating       Stage = "awaiting_rating"
	StageCompleted            Stage = "completed"
)

func ParseStage(s string) (Stage, bool) {
	switch Stage(s) {
	case StageIdle, StageCategorySelected, StageSubServiceSelected, StageWorkerSelected,
		StageAwaitingAcceptance, StageAccepted, StageTracking, StageAwaitingVerification,
		StageInProgress, StageAwaitingPayment, StageAwaitingRating, StageCompleted:
		return Stage(s), true
	default:
		return "", false
	}
}

// EventKind names the intents and external signals the orchestrator accepts.
type EventKind string

const (
	EventSelectCategory      EventKind = "select_category"
	EventSelectSubService    EventKind = "select_sub_service"
	EventSelectWorker        EventKind = "select_worker"
	EventConfirmBooking      EventKind = "confirm_booking"
	EventAcceptanceReceived  EventKind = "acceptance_received"
	EventCancel              EventKind = "cancel"
	EventChangePaymentMethod EventKind = "change_payment_method"
	EventContinueToTracking  EventKind = "continue_to_tracking"
	EventArrivalDetected     EventKind = "arrival_detected"
	EventSubmitOTP           EventKind = "submit_otp"
	EventMarkServiceComplete EventKind = "mark_service_complete"
	EventSubmitPayment       EventKind = "submit_payment"
	EventSubmitRating        EventKind = "submit_rating"

	// EventETAProgress never transitions; it labels within-stage tracking
	// updates pushed to subscribers.
	EventETAProgress EventKind = "eta_progress"

	// EventResendOTP never transitions; it replaces the on-site code while
	// awaiting verification.
	EventResendOTP EventKind = "resend_otp"
)

// transitions represents the booking lifecycle flow as code. The value is the
// stage entered when the event's guards pass; rejected guards (wrong OTP,
// declined payment) leave the stage untouched. Cancel rows cover the browse
// stages too: no session exists there yet, cancel just discards selections.
var transitions = map[Stage]map[EventKind]Stage{
	StageIdle: {
		EventSelectCategory: StageCategorySelected,
	},
	StageCategorySelected: {
		EventSelectSubService: StageSubServiceSelected,
		EventCancel:           StageIdle,
	},
	StageSubServiceSelected: {
		EventSelectWorker: StageWorkerSelected,
		EventCancel:       StageIdle,
	},
	StageWorkerSelected: {
		EventConfirmBooking: StageAwaitingAcceptance,
		EventCancel:         StageIdle,
	},
	StageAwaitingAcceptance: {
		EventAcceptanceReceived: StageAccepted,
		EventCancel:             StageIdle,
	},
	StageAccepted: {
		EventChangePaymentMethod: StageAccepted,
		EventContinueToTracking:  StageTracking,
		EventCancel:              StageIdle,
	},
	StageTracking: {
		EventArrivalDetected: StageAwaitingVerification,
		EventCancel:          StageIdle,
	},
	StageAwaitingVerification: {
		EventSubmitOTP: StageInProgress,
		EventCancel:    StageIdle,
	},
	StageInProgress: {
		EventMarkServiceComplete: StageAwaitingPayment,
		EventCancel:              StageIdle,
	},
	StageAwaitingPayment: {
		EventSubmitPayment: StageAwaitingRating,
		EventCancel:        StageIdle,
	},
	StageAwaitingRating: {
		EventSubmitRating: StageCompleted,
	},
}

// NextStage resolves the stage entered by applying ev in from.
// ok is false when the event is not valid in that stage.
func NextStage(from Stage, ev EventKind) (Stage, bool) {
	row, ok := transitions[from]
	if !ok {
		return "", false
	}
	to, ok := row[ev]
	return to, ok
}

// eventOrder keeps AllowedEvents output stable for clients.
var eventOrder = []EventKind{
	EventSelectCategory,
	EventSelectSubService,
	EventSelectWorker,
	EventConfirmBooking,
	EventAcceptanceReceived,
	EventChangePaymentMethod,
	EventContinueToTracking,
	EventArrivalDetected,
	EventSubmitOTP,
	EventMarkServiceComplete,
	EventSubmitPayment,
	EventSubmitRating,
	EventCancel,
}

// AllowedEvents lists the events valid from stage, in a fixed order, so the
// rendering layer can enable and disable actions without duplicating the table.
func AllowedEvents(stage Stage) []EventKind {
	row, ok := transitions[stage]
	if !ok {
		return nil
	}
	out := make([]EventKind, 0, len(row))
	for _, ev := range eventOrder {
		if _, ok := row[ev]; ok {
			out = append(out, ev)
		}
	}
	return out
}

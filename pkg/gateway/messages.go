package gateway

// SuccessCode is the message code of a successful payment.
const SuccessCode = "0"

// Message is a customer facing message in English and French.
type Message struct {
	En string `json:"en"`
	Fr string `json:"fr"`
}

// Messages is a table of localized messages keyed by Smobilpay error code.
type Messages struct {
	// DefaultCode is used when a code is absent or unknown.
	DefaultCode string
	Table       map[string]Message
}

var genericFailure = Message{
	En: "The payment failed.",
	Fr: "Le paiement a échoué.",
}

// Lookup returns the message for code, the message of DefaultCode when code is unknown, and a generic failure
// message as a last resort.
func (m Messages) Lookup(code string) Message {
	if msg, ok := m.Table[code]; ok {
		return msg
	}

	if msg, ok := m.Table[m.DefaultCode]; ok {
		return msg
	}

	return genericFailure
}

// Failure is Lookup for a payment that failed. A failure reported with SuccessCode gets the default message.
func (m Messages) Failure(code string) Message {
	if code == SuccessCode {
		code = m.DefaultCode
	}
	return m.Lookup(code)
}

// Success returns the message sent when the payment went through.
func (m Messages) Success() Message {
	return m.Lookup(SuccessCode)
}

// common entries shared by both operators.
func common() map[string]Message {
	return map[string]Message{
		SuccessCode: {
			En: "The payment was successful.",
			Fr: "Le paiement a été effectué avec succès.",
		},
		"703202": {
			En: "You have rejected the transaction.",
			Fr: "Vous avez rejeté la transaction.",
		},
		"42001": {
			En: "Service number or bill number not found.",
			Fr: "Numéro de service ou numéro de facture introuvable.",
		},
		"703112": {
			En: "Recipient account limit (daily/weekly/monthly) has been reached.",
			Fr: "La limite du compte du destinataire (journalière/hebdomadaire/mensuelle) a été atteinte.",
		},
		"703111": {
			En: "Your account limit (daily/weekly/monthly) has been reached.",
			Fr: "La limite de votre compte (journalière/hebdomadaire/mensuelle) a été atteinte.",
		},
		"703203": {
			En: "Invalid PIN or confirmation token.",
			Fr: "Code PIN ou jeton de confirmation invalide.",
		},
		"703117": {
			En: "Your account is not enabled for this service.",
			Fr: "Votre compte n'est pas activé pour ce service.",
		},
		"702103": {
			En: "The amount is above the allowed limit.",
			Fr: "Le montant dépasse la limite autorisée.",
		},
	}
}

// DefaultMessages returns the message table of a payment method.
func DefaultMessages(method Method) Messages {
	table := common()

	switch method {
	case OrangeMoney:
		table["703108"] = Message{En: "You have insufficient balance.", Fr: "Vous n'avez pas un solde suffisant."}
		table["703201"] = Message{En: "The customer did not confirm the transaction.", Fr: "Vous n'avez pas confirmé la transaction."}
		table["703000"] = genericFailure

		return Messages{DefaultCode: "703000", Table: table}
	default:
		table["703108"] = Message{En: "Insufficient balance.", Fr: "Solde insuffisant."}
		table["703201"] = Message{En: "You did not confirm the transaction.", Fr: "Vous n'avez pas confirmé la transaction."}
		table["704005"] = genericFailure

		return Messages{DefaultCode: "704005", Table: table}
	}
}

package ivr

import (
	"fmt"
	"strings"

	"github.com/lisavoice/orderstatus/internal/afterbuy"
)

// DetectLanguage picks the prompt language from the caller's number.
// US/Canada and UK callers get English, everyone else German.
func DetectLanguage(callerNumber string) string {
	clean := strings.NewReplacer("+", "", " ", "").Replace(callerNumber)
	if strings.HasPrefix(clean, "1") || strings.HasPrefix(clean, "44") {
		return "en"
	}
	return "de"
}

// FormatOrderNumberForSpeech spaces the characters so the voice reads an
// order number digit by digit instead of as one large number.
func FormatOrderNumberForSpeech(orderNumber string) string {
	runes := []rune(strings.TrimSpace(orderNumber))
	parts := make([]string, len(runes))
	for i, r := range runes {
		parts[i] = string(r)
	}
	return strings.Join(parts, " ")
}

func greeting(lang string) string {
	if lang == "en" {
		return "Hello, you're speaking with Lisa, your voice assistant. To assure our service quality, calls may be recorded. Press 1 if you agree, or 2 if you do not agree to the recording."
	}
	return "Hallo, mein Name ist Lisa. Ich bin Ihr automatischer Servicemitarbeiter. Zur Qualitätssicherung können Gespräche aufgezeichnet werden. Drücken Sie 1, wenn Sie zustimmen, oder 2, wenn Sie der Aufzeichnung nicht zustimmen."
}

func goodbye(lang string) string {
	if lang == "en" {
		return "Thank you for calling. We are available for any further questions!"
	}
	return "Wir bedanken uns für Ihren Anruf und stehen bei weiteren Fragen zur Verfügung!"
}

func apology(lang string) string {
	if lang == "en" {
		return "Sorry, there was an error. Please try again later."
	}
	return "Entschuldigung, es ist ein Fehler aufgetreten. Bitte versuchen Sie es später erneut."
}

func consentAccepted(lang string) string {
	if lang == "en" {
		return "Thank you for your consent. I'm Lisa and I'm happy to help you. How can I help you today?"
	}
	return "Vielen Dank für Ihre Zustimmung. Bitte teilen Sie mir nun mit, wie ich Ihnen behilflich sein kann."
}

func consentDeclined(lang string) string {
	if lang == "en" {
		return "Thank you for calling. I'm happy to help you. How can I help you today?"
	}
	return "Danke für Ihren Anruf. Ich helfe Ihnen gerne weiter. Wie kann ich Ihnen behilflich sein?"
}

func consentRetry(lang string) string {
	if lang == "en" {
		return "Sorry, I didn't understand your response. Press 1 for Yes or 2 for No."
	}
	return "Entschuldigung, ich habe Ihre Antwort nicht verstanden. Drücken Sie 1 für Ja oder 2 für Nein."
}

func availabilityPrompt(lang string) string {
	if lang == "en" {
		return "Do you have your order number at hand? Press 1 for Yes or 2 to speak to a staff member."
	}
	return "Haben Sie Ihre Bestellnummer zur Hand? Drücken Sie 1 für Ja oder 2, um mit einem Mitarbeiter verbunden zu werden."
}

func orderNumberPrompt(lang string) string {
	if lang == "en" {
		return "If you would like to know the status of your item, please enter your order number using the keypad. Press the hash key when you are finished."
	}
	return "Bitte geben Sie jetzt Ihre Bestellnummer ein und drücken Sie die Raute-Taste, wenn Sie fertig sind."
}

func orderNumberRetry(lang string) string {
	if lang == "en" {
		return "Please enter your order number again using the keypad. Press the hash key when you are finished."
	}
	return "Bitte geben Sie Ihre Bestellnummer erneut über die Tastatur ein. Drücken Sie die Raute-Taste, wenn Sie fertig sind."
}

func orderNumberInvalid(lang, input string) string {
	if lang == "en" {
		return fmt.Sprintf("Sorry, I didn't recognize '%s' as a valid order number. Please enter your order number again using the keypad.", input)
	}
	return fmt.Sprintf("Entschuldigung, ich habe '%s' nicht als gültige Bestellnummer erkannt. Bitte geben Sie Ihre Bestellnummer erneut über die Tastatur ein.", input)
}

func confirmationPrompt(lang, spokenNumber string) string {
	if lang == "en" {
		return fmt.Sprintf("You have entered order number %s. Is this correct? Press 1 for Yes or 2 for No.", spokenNumber)
	}
	return fmt.Sprintf("Sie haben die folgende Bestellnummer %s eingetippt? Bitte bestätigen Sie durch 1 für Ja oder 2 für Nein.", spokenNumber)
}

func confirmationRetry(lang, spokenNumber string) string {
	if lang == "en" {
		return fmt.Sprintf("Sorry, I didn't understand your response. You have entered order number %s. Is this correct? Press 1 for Yes or 2 for No.", spokenNumber)
	}
	return fmt.Sprintf("Entschuldigung, ich habe Ihre Antwort nicht verstanden. Sie haben die Bestellnummer %s eingegeben. Ist das korrekt? Drücken Sie 1 für Ja oder 2 für Nein.", spokenNumber)
}

func checkingStatus(lang, spokenNumber string) string {
	if lang == "en" {
		return fmt.Sprintf("Thank you! I have confirmed your order number %s. I am checking the status for you. Please wait a moment.", spokenNumber)
	}
	return fmt.Sprintf("Vielen Dank! Ich habe Ihre Bestellnummer %s bestätigt. Ich prüfe den Status für Sie. Bitte warten Sie einen Moment.", spokenNumber)
}

func orderNotFound(lang, spokenNumber string) string {
	if lang == "en" {
		return fmt.Sprintf("Sorry, I couldn't find an order with number %s in our system. Please check the number or contact our customer service.", spokenNumber)
	}
	return fmt.Sprintf("Entschuldigung, ich konnte keinen Auftrag mit der Nummer %s in unserem System finden. Bitte überprüfen Sie die Nummer oder kontaktieren Sie unseren Kundenservice.", spokenNumber)
}

func overdueApology(lang string) string {
	if lang == "en" {
		return "I'm sorry, the promised delivery date for your order has already passed. I'm now connecting you with one of our staff who will clarify the current status. Please hold."
	}
	return "Es tut mir leid, der zugesagte Liefertermin für Ihre Bestellung ist bereits überschritten. Ich verbinde Sie jetzt mit einem unserer Mitarbeiter, der den aktuellen Stand für Sie klärt. Einen Moment bitte."
}

func moreHelpPrompt(lang string) string {
	if lang == "en" {
		return "If you have any questions, press 1 to leave a message, or press 2 to speak to a staff member."
	}
	return "Wenn Sie noch Fragen haben, drücken Sie 1 um eine Nachricht zu hinterlassen, oder drücken Sie 2 um mit einem Mitarbeiter verbunden zu werden."
}

func moreHelpRetry(lang string) string {
	if lang == "en" {
		return "Sorry, I didn't understand your response. If you have questions, press 1. To speak to a staff member, press 2."
	}
	return "Entschuldigung, ich habe Ihre Antwort nicht verstanden. Wenn Sie noch Fragen haben, drücken Sie 1. Um mit einem Mitarbeiter verbunden zu werden, drücken Sie 2."
}

func anotherOrderPrompt(lang string) string {
	if lang == "en" {
		return "Of course! If you would like to know the status of another order, please enter the order number using the keypad. Press the hash key when you are finished."
	}
	return "Gerne! Wenn Sie den Status einer anderen Bestellung erfahren möchten, geben Sie bitte die Bestellnummer über die Tastatur ein. Drücken Sie die Raute-Taste, wenn Sie fertig sind."
}

func transferAnnouncement(lang string) string {
	if lang == "en" {
		return "I'm now connecting you with one of our staff. Please hold."
	}
	return "Ich verbinde Sie jetzt mit einem unserer Mitarbeiter. Einen Moment bitte."
}

func noOrderTransfer(lang string) string {
	if lang == "en" {
		return "I didn't understand an order number. I'm now connecting you with one of our staff. Please hold."
	}
	return "Ich konnte keine Bestellnummer verstehen. Ich verbinde Sie jetzt mit einem unserer Mitarbeiter. Einen Moment bitte."
}

func recordPrompt(lang string) string {
	if lang == "en" {
		return "Please leave a message after the tone. You will receive a reply by email within 24 hours."
	}
	return "Bitte hinterlassen Sie nach dem Signalton eine Nachricht. Sie erhalten innerhalb von 24 Stunden eine Antwort per E-Mail."
}

func recordedThanks(lang string) string {
	if lang == "en" {
		return "Thank you for your message. We will contact you within 24 hours. Goodbye!"
	}
	return "Vielen Dank für Ihre Nachricht. Wir melden uns innerhalb von 24 Stunden bei Ihnen. Auf Wiedersehen!"
}

// affirmativeTokens are the words the free-speech more-help variant accepts
// as "yes, I need something else".
var affirmativeTokens = []string{"ja", "yes", "jawohl", "sure", "ok", "okay"}

func isAffirmative(speech string) bool {
	lower := strings.ToLower(speech)
	for _, tok := range affirmativeTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

// statusNarrative builds the long spoken summary for an on-schedule order.
func statusNarrative(lang string, order *afterbuy.Order, est Estimate) string {
	alreadyPaid := afterbuy.FormatAmountForSpeech(order.Payment.AlreadyPaid)
	fullAmount := afterbuy.FormatAmountForSpeech(order.Payment.FullAmount)
	spokenID := FormatOrderNumberForSpeech(order.OrderID)
	customer := strings.TrimSpace(order.Buyer.FirstName)

	if lang == "en" {
		var b strings.Builder
		fmt.Fprintf(&b, "The status of your order %s is: ", spokenID)
		fmt.Fprintf(&b, "%s Euros have been paid out of %s Euros total. ", alreadyPaid, fullAmount)
		if memo := afterbuy.ParseMemo(order.Memo); memo.PaymentPercent != "" {
			fmt.Fprintf(&b, "This represents a %s percent down payment. ", memo.PaymentPercent)
		}
		if customer != "" {
			fmt.Fprintf(&b, "The order was placed by %s. ", customer)
		}
		fmt.Fprintf(&b, "Your order was accepted on %s and handed to production on %s. ", est.OrderDate, est.ProductionStart)
		fmt.Fprintf(&b, "Your item is currently in production with an expected delivery time of %d to %d weeks. ", est.MinWeeks, est.MaxWeeks)
		fmt.Fprintf(&b, "We expect delivery in calendar week %d of %d, that is the week from %s to %s. ", est.DeliveryWeek, est.DeliveryYear, est.WindowStart, est.WindowEnd)
		b.WriteString("You will receive an email with further details.")
		return b.String()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Ihr Auftrag %s: ", spokenID)
	fmt.Fprintf(&b, "Sie haben für Ihren Auftrag insgesamt %s Euro bezahlt. ", alreadyPaid)
	fmt.Fprintf(&b, "Der gesamte Rechnungsbetrag beträgt %s Euro. ", fullAmount)
	if customer != "" {
		fmt.Fprintf(&b, "Der Auftrag wurde durch den Kunden %s erteilt. ", customer)
	}
	fmt.Fprintf(&b, "Ihr Auftrag wurde am %s angenommen und am %s an die Produktion übergeben. ", est.OrderDate, est.ProductionStart)
	fmt.Fprintf(&b, "Ihre Ware befindet sich derzeit in der Produktion und hat eine voraussichtliche Lieferzeit von %d bis %d Wochen. ", est.MinWeeks, est.MaxWeeks)
	fmt.Fprintf(&b, "Wir erwarten die Lieferung in der Kalenderwoche %d/%d, also in der Woche vom %s bis %s. ", est.DeliveryWeek, est.DeliveryYear, est.WindowStart, est.WindowEnd)
	b.WriteString("Wir freuen uns, Ihnen ein hochwertiges Produkt liefern zu dürfen, und halten Sie selbstverständlich über den weiteren Verlauf auf dem Laufenden.")
	return b.String()
}

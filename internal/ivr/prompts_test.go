package ivr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lisavoice/orderstatus/internal/afterbuy"
)

func TestPromptsSwitchLanguage(t *testing.T) {
	assert.Contains(t, greeting("de"), "mein Name ist Lisa")
	assert.Contains(t, greeting("en"), "my name is Lisa")
	assert.Contains(t, goodbye("de"), "Auf Wiederhören")
	assert.Contains(t, overdueApology("en"), "apologize")
	assert.Contains(t, recordPrompt("de"), "Signalton")
	assert.Contains(t, orderNumberInvalid("de", "hauptstrasse"), "hauptstrasse")
}

func TestIsAffirmative(t *testing.T) {
	assert.True(t, isAffirmative("Ja, bitte"))
	assert.True(t, isAffirmative("yes please"))
	assert.True(t, isAffirmative("okay"))
	assert.False(t, isAffirmative("nein danke"))
	assert.False(t, isAffirmative(""))
}

func TestStatusNarrativeGerman(t *testing.T) {
	order := &afterbuy.Order{
		OrderID: "180772819",
		Buyer:   afterbuy.Buyer{FirstName: "Rayan"},
		Payment: afterbuy.Payment{AlreadyPaid: "1.680,00", FullAmount: "11.200,00"},
	}
	est := EstimateDelivery("18.10.2025 16:27:55", "TR")
	require.False(t, est.Fallback)

	got := statusNarrative("de", order, est)
	assert.Contains(t, got, "1 8 0 7 7 2 8 1 9")
	assert.Contains(t, got, "1680 Euro")
	assert.Contains(t, got, "11200 Euro")
	assert.Contains(t, got, "Kunden Rayan")
	assert.Contains(t, got, "18.10.2025 angenommen")
	assert.Contains(t, got, "Kalenderwoche")
}

func TestStatusNarrativeEnglishIncludesDepositPercent(t *testing.T) {
	order := &afterbuy.Order{
		OrderID: "180772819",
		Memo:    "18.10.2025 - 15:30\nRayan Daouk\n131629 Anzahlung 15 %\n1.680,00 EUR",
		Payment: afterbuy.Payment{AlreadyPaid: "1.680,00", FullAmount: "11.200,00"},
	}
	est := EstimateDelivery("18.10.2025 16:27:55", "TR")

	got := statusNarrative("en", order, est)
	assert.Contains(t, got, "15 percent down payment")
	assert.Contains(t, got, "expected delivery time of 6 to 10 weeks")
}

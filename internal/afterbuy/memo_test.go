package afterbuy

import "testing"

func TestParseMemoFull(t *testing.T) {
	memo := "20.10.2025\nRayan Daouk\n131629 Anzahlung 15 %\n1.680,00 EUR\nhttps://farm01.afterbuy.de/afterbuy/shop/shopvorschau.aspx?id=180772819\n"
	info := ParseMemo(memo)

	if info.Date != "20.10.2025" {
		t.Errorf("date = %q", info.Date)
	}
	if info.CustomerName != "Rayan Daouk" {
		t.Errorf("customer = %q", info.CustomerName)
	}
	if info.OrderInfo != "131629 Anzahlung 15 %" {
		t.Errorf("order info = %q", info.OrderInfo)
	}
	if info.PaymentPercent != "15" {
		t.Errorf("percent = %q", info.PaymentPercent)
	}
	if info.Amount != "1.680,00 EUR" || info.AmountValue != 1680.00 {
		t.Errorf("amount = %q value = %v", info.Amount, info.AmountValue)
	}
	if info.Link != "https://farm01.afterbuy.de/afterbuy/shop/shopvorschau.aspx?id=180772819" {
		t.Errorf("link = %q", info.Link)
	}
}

func TestParseMemoPartial(t *testing.T) {
	info := ParseMemo("131629 Anzahlung ohne Prozent")
	if info.OrderInfo == "" {
		t.Error("expected deposit line to be recognized")
	}
	if info.PaymentPercent != "" {
		t.Errorf("percent should be empty, got %q", info.PaymentPercent)
	}
	if ParseMemo("").Date != "" {
		t.Error("empty memo should parse to zero values")
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1.680,00 EUR", 1680.00, true},
		{"1.680,00", 1680.00, true},
		{"11.200,50", 11200.50, true},
		{"0,00", 0, true},
		{"garbage", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseAmount(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseAmount(%q) = %v,%v want %v,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestFormatAmountForSpeech(t *testing.T) {
	cases := []struct{ in, want string }{
		{"1.680,00", "1680"},
		{"11.200,50", "11200.50"},
		{"0,00", "0"},
		{"unparseable", "unparseable"},
	}
	for _, tc := range cases {
		if got := FormatAmountForSpeech(tc.in); got != tc.want {
			t.Errorf("FormatAmountForSpeech(%q) = %q want %q", tc.in, got, tc.want)
		}
	}
}

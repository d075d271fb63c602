package afterbuy

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	memoDateRe    = regexp.MustCompile(`^\d{2}\.\d{2}\.\d{4}`)
	memoAmountRe  = regexp.MustCompile(`^[\d.,]+\s*EUR`)
	memoDepositRe = regexp.MustCompile(`(?i)\d+.*Anzahlung`)
	memoPercentRe = regexp.MustCompile(`(\d+)\s*%`)
)

// ParseMemo extracts the structured lines of an order memo. A typical memo:
//
//	20.10.2025
//	Rayan Daouk
//	131629 Anzahlung 15 %
//	1.680,00 EUR
//	https://farm01.afterbuy.de/afterbuy/shop/shopvorschau.aspx?id=180772819
//
// Lines are classified by shape, not position, except the customer name which
// is whatever follows the date line.
func ParseMemo(memo string) MemoInfo {
	info := MemoInfo{Raw: memo}
	if strings.TrimSpace(memo) == "" {
		return info
	}
	var lines []string
	for _, line := range strings.Split(memo, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	for i, line := range lines {
		switch {
		case memoDateRe.MatchString(line):
			info.Date = line
		case memoAmountRe.MatchString(strings.ToUpper(line)):
			info.Amount = line
			if v, ok := ParseAmount(line); ok {
				info.AmountValue = v
			}
		case strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://"):
			info.Link = line
		case memoDepositRe.MatchString(line):
			info.OrderInfo = line
			if m := memoPercentRe.FindStringSubmatch(line); m != nil {
				info.PaymentPercent = m[1]
			}
		case i > 0 && memoDateRe.MatchString(lines[i-1]):
			info.CustomerName = line
		}
	}
	return info
}

// ParseAmount converts a German-formatted amount like "1.680,00 EUR" to a
// float. Dots are thousand separators and the comma is the decimal mark.
func ParseAmount(s string) (float64, bool) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimSuffix(strings.ToUpper(cleaned), "EUR")
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// FormatAmountForSpeech renders a payment amount the way the TTS voice should
// read it. Whole euro amounts drop the decimals, so "1.680,00" becomes "1680".
func FormatAmountForSpeech(raw string) string {
	v, ok := ParseAmount(raw)
	if !ok {
		return raw
	}
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

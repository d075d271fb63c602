package afterbuy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const successResponse = `<?xml version="1.0" encoding="UTF-8"?>
<Afterbuy>
  <CallStatus>Success</CallStatus>
  <CallName>GetSoldItems</CallName>
  <Result>
    <Orders>
      <Order>
        <OrderID>180772819</OrderID>
        <InvoiceNumber>131629</InvoiceNumber>
        <OrderDate>18.10.2025 16:27:55</OrderDate>
        <Memo>20.10.2025
Rayan Daouk
131629 Anzahlung 15 %
1.680,00 EUR
https://farm01.afterbuy.de/afterbuy/shop/shopvorschau.aspx?id=180772819</Memo>
        <BuyerInfo>
          <BillingAddress>
            <FirstName>Rayan</FirstName>
            <LastName>Daouk</LastName>
            <Phone>+4915112345678</Phone>
            <Mail>rayan@example.com</Mail>
            <CountryISO>TR</CountryISO>
          </BillingAddress>
        </BuyerInfo>
        <PaymentInfo>
          <PaymentDate>20.10.2025</PaymentDate>
          <AlreadyPaid>1.680,00</AlreadyPaid>
          <FullAmount>11.200,00</FullAmount>
        </PaymentInfo>
        <SoldItems>
          <SoldItem>
            <ItemID>7712</ItemID>
            <ItemTitle>Massivholz Esstisch</ItemTitle>
            <ItemQuantity>1</ItemQuantity>
            <ItemPrice>11.200,00</ItemPrice>
          </SoldItem>
        </SoldItems>
        <ShippingInfo>
          <ShippingCost>0,00</ShippingCost>
        </ShippingInfo>
      </Order>
    </Orders>
  </Result>
</Afterbuy>`

const notFoundResponse = `<?xml version="1.0" encoding="UTF-8"?>
<Afterbuy>
  <CallStatus>Error</CallStatus>
  <Result>
    <ErrorList>
      <Error><ErrorCode>14</ErrorCode><ErrorDescription>Keine Daten gefunden</ErrorDescription></Error>
    </ErrorList>
  </Result>
</Afterbuy>`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := New(Config{
		BaseURL:      srv.URL,
		PartnerID:    "113464",
		PartnerToken: "partner-token",
		AccountToken: "account-token",
		UserID:       "user",
		UserPassword: "secret",
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{PartnerToken: "x", AccountToken: "y", UserID: "z"})
	if err == nil {
		t.Fatal("expected error for missing partner id")
	}
	_, err = New(Config{PartnerID: "1", UserID: "z"})
	if err == nil {
		t.Fatal("expected error for missing tokens")
	}
}

func TestGetOrderByInvoiceNumber(t *testing.T) {
	var gotBody string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "text/xml" {
			t.Errorf("content type = %q, want text/xml", ct)
		}
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		_, _ = w.Write([]byte(successResponse))
	})

	order, err := client.GetOrderByInvoiceNumber(context.Background(), "131629")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	for _, want := range []string{
		"<CallName>GetSoldItems</CallName>",
		"<FilterName>InvoiceNumber</FilterName>",
		"<FilterValue>131629</FilterValue>",
		"<DetailLevel>1</DetailLevel>",
	} {
		if !strings.Contains(gotBody, want) {
			t.Errorf("request body missing %s:\n%s", want, gotBody)
		}
	}
	if order.OrderID != "180772819" || order.InvoiceNumber != "131629" {
		t.Fatalf("unexpected order identity %+v", order)
	}
	if order.Buyer.FirstName != "Rayan" || order.Buyer.Country != "TR" {
		t.Errorf("unexpected buyer %+v", order.Buyer)
	}
	if order.Payment.AlreadyPaid != "1.680,00" || order.Payment.FullAmount != "11.200,00" {
		t.Errorf("unexpected payment %+v", order.Payment)
	}
	if len(order.Items) != 1 || order.Items[0].Title != "Massivholz Esstisch" {
		t.Errorf("unexpected items %+v", order.Items)
	}
}

func TestGetOrderByIDUsesOrderIDFilter(t *testing.T) {
	var gotBody string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		_, _ = w.Write([]byte(successResponse))
	})
	if _, err := client.GetOrderByID(context.Background(), "180772819"); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !strings.Contains(gotBody, "<FilterName>OrderID</FilterName>") {
		t.Errorf("request body missing OrderID filter:\n%s", gotBody)
	}
}

func TestLookupNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(notFoundResponse))
	})
	_, err := client.GetOrderByInvoiceNumber(context.Background(), "999999")
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestLookupEmptyOrderList(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<Afterbuy><CallStatus>Success</CallStatus><Result><Orders></Orders></Result></Afterbuy>`))
	})
	_, err := client.GetOrderByInvoiceNumber(context.Background(), "131629")
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestLookupServerErrorIsNotNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := client.GetOrderByInvoiceNumber(context.Background(), "131629")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("server failure must not look like a missing order: %v", err)
	}
}

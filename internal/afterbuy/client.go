package afterbuy

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.afterbuy.de/afterbuy/ABInterface.aspx"

// ErrOrderNotFound is returned when the API answers successfully but no order
// matches the filter. Transport and credential failures surface as ordinary
// errors so the caller can tell "unknown order" from "Afterbuy is down".
var ErrOrderNotFound = errors.New("afterbuy: order not found")

// Config controls how the Afterbuy client behaves.
type Config struct {
	BaseURL      string
	PartnerID    string
	PartnerToken string
	AccountToken string
	UserID       string
	UserPassword string
	Timeout      time.Duration
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// Client wraps the Afterbuy XML interface for order lookups.
type Client struct {
	baseURL      string
	partnerID    string
	partnerToken string
	accountToken string
	userID       string
	userPassword string
	httpClient   *http.Client
	logger       *slog.Logger
}

// New creates a configured Client with sane defaults.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.PartnerID) == "" {
		return nil, errors.New("afterbuy: partner id is required")
	}
	if strings.TrimSpace(cfg.PartnerToken) == "" || strings.TrimSpace(cfg.AccountToken) == "" {
		return nil, errors.New("afterbuy: partner and account tokens are required")
	}
	if strings.TrimSpace(cfg.UserID) == "" {
		return nil, errors.New("afterbuy: user id is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:      baseURL,
		partnerID:    cfg.PartnerID,
		partnerToken: cfg.PartnerToken,
		accountToken: cfg.AccountToken,
		userID:       cfg.UserID,
		userPassword: cfg.UserPassword,
		httpClient:   httpClient,
		logger:       logger,
	}, nil
}

// GetOrderByInvoiceNumber looks up an order by its invoice number, the number
// customers usually read off their paperwork.
func (c *Client) GetOrderByInvoiceNumber(ctx context.Context, invoiceNumber string) (*Order, error) {
	if strings.TrimSpace(invoiceNumber) == "" {
		return nil, errors.New("afterbuy: invoice number required")
	}
	return c.getOrder(ctx, "InvoiceNumber", invoiceNumber)
}

// GetOrderByID looks up an order by its internal Afterbuy OrderID.
func (c *Client) GetOrderByID(ctx context.Context, orderID string) (*Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, errors.New("afterbuy: order id required")
	}
	return c.getOrder(ctx, "OrderID", orderID)
}

func (c *Client) getOrder(ctx context.Context, filterName, filterValue string) (*Order, error) {
	body, err := c.buildRequest("GetSoldItems", filterName, filterValue)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("afterbuy: build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("afterbuy: http error: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("afterbuy: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("afterbuy: http status %d", resp.StatusCode)
	}
	order, err := parseSoldItemsResponse(data)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			c.logger.Warn("afterbuy lookup returned no order",
				"filter", filterName,
				"value", filterValue,
			)
		}
		return nil, err
	}
	return order, nil
}

type requestEnvelope struct {
	XMLName xml.Name      `xml:"Request"`
	Global  requestGlobal `xml:"AfterbuyGlobal"`
	Filter  dataFilter    `xml:"DataFilter"`
}

type requestGlobal struct {
	PartnerID     string `xml:"PartnerID"`
	PartnerToken  string `xml:"PartnerToken"`
	AccountToken  string `xml:"AccountToken"`
	UserID        string `xml:"UserID"`
	UserPassword  string `xml:"UserPassword"`
	CallName      string `xml:"CallName"`
	DetailLevel   int    `xml:"DetailLevel"`
	ErrorLanguage string `xml:"ErrorLanguage"`
}

type dataFilter struct {
	Filters []filter `xml:"Filter"`
}

type filter struct {
	Name   string   `xml:"FilterName"`
	Values []string `xml:"FilterValues>FilterValue"`
}

func (c *Client) buildRequest(callName, filterName, filterValue string) ([]byte, error) {
	env := requestEnvelope{
		Global: requestGlobal{
			PartnerID:     c.partnerID,
			PartnerToken:  c.partnerToken,
			AccountToken:  c.accountToken,
			UserID:        c.userID,
			UserPassword:  c.userPassword,
			CallName:      callName,
			DetailLevel:   1,
			ErrorLanguage: "DE",
		},
		Filter: dataFilter{
			Filters: []filter{{Name: filterName, Values: []string{filterValue}}},
		},
	}
	payload, err := xml.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("afterbuy: marshal request: %w", err)
	}
	return append([]byte(xml.Header), payload...), nil
}

type soldItemsResponse struct {
	CallStatus string          `xml:"CallStatus"`
	Orders     []responseOrder `xml:"Result>Orders>Order"`
}

type responseOrder struct {
	OrderID       string `xml:"OrderID"`
	InvoiceNumber string `xml:"InvoiceNumber"`
	OrderDate     string `xml:"OrderDate"`
	EbayAccount   string `xml:"EbayAccount"`
	Memo          string `xml:"Memo"`
	InvoiceMemo   string `xml:"InvoiceMemo"`
	FeedbackLink  string `xml:"FeedbackLink"`
	Billing       struct {
		FirstName  string `xml:"FirstName"`
		LastName   string `xml:"LastName"`
		Phone      string `xml:"Phone"`
		Mail       string `xml:"Mail"`
		Street     string `xml:"Street"`
		PostalCode string `xml:"PostalCode"`
		City       string `xml:"City"`
		CountryISO string `xml:"CountryISO"`
	} `xml:"BuyerInfo>BillingAddress"`
	Payment struct {
		PaymentID   string `xml:"PaymentID"`
		PaymentDate string `xml:"PaymentDate"`
		AlreadyPaid string `xml:"AlreadyPaid"`
		FullAmount  string `xml:"FullAmount"`
		InvoiceDate string `xml:"InvoiceDate"`
	} `xml:"PaymentInfo"`
	SoldItems []struct {
		ItemID   string `xml:"ItemID"`
		Title    string `xml:"ItemTitle"`
		Quantity string `xml:"ItemQuantity"`
		Price    string `xml:"ItemPrice"`
		TaxRate  string `xml:"TaxRate"`
		Weight   string `xml:"ItemWeight"`
	} `xml:"SoldItems>SoldItem"`
	Shipping struct {
		Cost      string `xml:"ShippingCost"`
		TotalCost string `xml:"ShippingTotalCost"`
		TaxRate   string `xml:"ShippingTaxRate"`
	} `xml:"ShippingInfo"`
}

func parseSoldItemsResponse(data []byte) (*Order, error) {
	var parsed soldItemsResponse
	if err := xml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("afterbuy: decode response: %w", err)
	}
	if parsed.CallStatus != "Success" {
		return nil, ErrOrderNotFound
	}
	if len(parsed.Orders) == 0 {
		return nil, ErrOrderNotFound
	}
	raw := parsed.Orders[0]
	order := &Order{
		OrderID:       strings.TrimSpace(raw.OrderID),
		InvoiceNumber: strings.TrimSpace(raw.InvoiceNumber),
		OrderDate:     strings.TrimSpace(raw.OrderDate),
		EbayAccount:   strings.TrimSpace(raw.EbayAccount),
		Memo:          strings.TrimSpace(raw.Memo),
		InvoiceMemo:   strings.TrimSpace(raw.InvoiceMemo),
		FeedbackLink:  strings.TrimSpace(raw.FeedbackLink),
		Buyer: Buyer{
			FirstName:  strings.TrimSpace(raw.Billing.FirstName),
			LastName:   strings.TrimSpace(raw.Billing.LastName),
			Phone:      strings.TrimSpace(raw.Billing.Phone),
			Email:      strings.TrimSpace(raw.Billing.Mail),
			Street:     strings.TrimSpace(raw.Billing.Street),
			PostalCode: strings.TrimSpace(raw.Billing.PostalCode),
			City:       strings.TrimSpace(raw.Billing.City),
			Country:    strings.TrimSpace(raw.Billing.CountryISO),
		},
		Payment: Payment{
			PaymentID:   strings.TrimSpace(raw.Payment.PaymentID),
			PaymentDate: strings.TrimSpace(raw.Payment.PaymentDate),
			AlreadyPaid: strings.TrimSpace(raw.Payment.AlreadyPaid),
			FullAmount:  strings.TrimSpace(raw.Payment.FullAmount),
			InvoiceDate: strings.TrimSpace(raw.Payment.InvoiceDate),
		},
		Shipping: Shipping{
			Cost:      strings.TrimSpace(raw.Shipping.Cost),
			TotalCost: strings.TrimSpace(raw.Shipping.TotalCost),
			TaxRate:   strings.TrimSpace(raw.Shipping.TaxRate),
		},
	}
	for _, item := range raw.SoldItems {
		order.Items = append(order.Items, SoldItem{
			ItemID:   strings.TrimSpace(item.ItemID),
			Title:    strings.TrimSpace(item.Title),
			Quantity: strings.TrimSpace(item.Quantity),
			Price:    strings.TrimSpace(item.Price),
			TaxRate:  strings.TrimSpace(item.TaxRate),
			Weight:   strings.TrimSpace(item.Weight),
		})
	}
	return order, nil
}
